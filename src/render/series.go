package render

import (
	"fmt"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	_ chart.Series = (*barSeries)(nil)
	_ chart.Series = (*labelSeries)(nil)
)

// barSeries draws one vertical bar per category. NaN values are skipped and
// bars are clipped to the y range.
type barSeries struct {
	Name    string
	Style   chart.Style
	YAxis   chart.YAxisType
	XValues []float64
	YValues []float64
	Width   float64 // fraction of a category slot, default 0.8
}

func (bs barSeries) GetName() string           { return bs.Name }
func (bs barSeries) GetStyle() chart.Style     { return bs.Style }
func (bs barSeries) GetYAxis() chart.YAxisType { return bs.YAxis }

func (bs barSeries) Validate() error {
	if len(bs.XValues) == 0 {
		return fmt.Errorf("bar series %q; must have values", bs.Name)
	}
	if len(bs.XValues) != len(bs.YValues) {
		return fmt.Errorf("bar series %q; must have same length xvalues as yvalues", bs.Name)
	}
	return nil
}

func (bs barSeries) Render(r chart.Renderer, canvasBox chart.Box, xrange, yrange chart.Range, defaults chart.Style) {
	style := bs.Style.InheritFrom(defaults)
	width := bs.Width
	if width <= 0 || width > 1 {
		width = 0.8
	}
	lo, hi := yrange.GetMin(), yrange.GetMax()
	base := math.Max(lo, 0)
	if base > hi {
		base = lo
	}
	bottom := canvasBox.Bottom - yrange.Translate(base)
	for i, x := range bs.XValues {
		v := bs.YValues[i]
		if math.IsNaN(v) || math.IsNaN(x) {
			continue
		}
		v = math.Max(lo, math.Min(hi, v))
		left := canvasBox.Left + xrange.Translate(x-width/2)
		right := canvasBox.Left + xrange.Translate(x+width/2)
		top := canvasBox.Bottom - yrange.Translate(v)
		style.GetFillAndStrokeOptions().WriteDrawingOptionsToRenderer(r)
		r.MoveTo(left, top)
		r.LineTo(right, top)
		r.LineTo(right, bottom)
		r.LineTo(left, bottom)
		r.Close()
		r.FillStroke()
	}
}

// valueLabel is a text annotation anchored at a data point. Align picks which
// edge of the text sits on X; the text baseline sits on Y.
type valueLabel struct {
	X, Y  float64
	Text  string
	Align chart.TextHorizontalAlign
}

// labelSeries draws value labels, optionally inside a filled box.
// Style.FillColor is the box fill; a zero FillColor draws bare text.
type labelSeries struct {
	YAxis  chart.YAxisType
	Style  chart.Style
	Labels []valueLabel
}

func (ls labelSeries) GetName() string           { return "" }
func (ls labelSeries) GetStyle() chart.Style     { return ls.Style }
func (ls labelSeries) GetYAxis() chart.YAxisType { return ls.YAxis }

func (ls labelSeries) Validate() error {
	if len(ls.Labels) == 0 {
		return fmt.Errorf("label series; must have labels")
	}
	return nil
}

func (ls labelSeries) Render(r chart.Renderer, canvasBox chart.Box, xrange, yrange chart.Range, defaults chart.Style) {
	style := ls.Style.InheritFrom(chart.Style{
		Font:      defaults.Font,
		FontSize:  8,
		FontColor: drawing.ColorBlack,
	})
	pad := style.Padding
	if pad.IsZero() {
		pad = chart.Box{Top: 3, Left: 3, Right: 3, Bottom: 3}
	}
	for _, l := range ls.Labels {
		if l.Text == "" || math.IsNaN(l.X) || math.IsNaN(l.Y) {
			continue
		}
		tb := chart.Draw.MeasureText(r, l.Text, style)
		px := canvasBox.Left + xrange.Translate(l.X)
		py := canvasBox.Bottom - yrange.Translate(l.Y)
		tx := px - tb.Width()>>1
		switch l.Align {
		case chart.TextHorizontalAlignLeft:
			tx = px
		case chart.TextHorizontalAlignRight:
			tx = px - tb.Width()
		}
		if !style.FillColor.IsZero() {
			chart.Draw.Box(r, chart.Box{
				Left:   tx - pad.Left,
				Top:    py - tb.Height() - pad.Top,
				Right:  tx + tb.Width() + pad.Right,
				Bottom: py + pad.Bottom,
			}, chart.Style{FillColor: style.FillColor, StrokeColor: style.StrokeColor, StrokeWidth: style.StrokeWidth})
		}
		chart.Draw.Text(r, l.Text, tx, py, style)
	}
}

// lineSeries splits ys at NaN gaps into continuous segments sharing one style.
// Only the first segment carries the name so the legend lists it once.
// A segment of one point still draws its marker.
func lineSeries(name string, axis chart.YAxisType, xs, ys []float64, style chart.Style) []chart.Series {
	var out []chart.Series
	var sx, sy []float64
	flush := func() {
		if len(sx) == 0 {
			return
		}
		seg := chart.ContinuousSeries{Name: name, YAxis: axis, XValues: sx, YValues: sy, Style: style}
		if len(out) > 0 {
			seg.Name = ""
		}
		out = append(out, seg)
		sx, sy = nil, nil
	}
	for i := range ys {
		if math.IsNaN(ys[i]) {
			flush()
			continue
		}
		sx = append(sx, xs[i])
		sy = append(sy, ys[i])
	}
	flush()
	return out
}

// hline is a horizontal reference line across every category.
func hline(axis chart.YAxisType, n int, y float64, style chart.Style) chart.Series {
	return chart.ContinuousSeries{
		YAxis:   axis,
		XValues: []float64{-0.5, float64(n) - 0.5},
		YValues: []float64{y, y},
		Style:   style,
	}
}

func indexes(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}
