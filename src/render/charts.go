package render

import (
	"errors"
	"fmt"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
)

// go-chart draws the primary y axis on the right and the secondary on the left.
const (
	leftAxis  = chart.YAxisSecondary
	rightAxis = chart.YAxisPrimary
)

// ErrEmptySeries is returned when a chart has nothing to plot.
var ErrEmptySeries = errors.New("empty series")

var (
	colorLightGreen = drawing.Color{R: 144, G: 238, B: 144, A: 255}
	colorLightBlue  = drawing.Color{R: 173, G: 216, B: 230, A: 255}
	colorGrid       = drawing.Color{R: 176, G: 176, B: 176, A: 255}
	colorGray       = drawing.Color{R: 128, G: 128, B: 128, A: 255}
)

func newChart(title string) *chart.Chart {
	return &chart.Chart{
		Title:      title,
		TitleStyle: chart.Style{FontSize: 14},
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 16, Right: 16, Bottom: 40}},
	}
}

// legendPadTop leaves room for a one-row legend between the title and the plot.
const legendPadTop = 90

// topLegend draws the series legend in a single row above the plot area so it
// never covers bars or value labels.
func topLegend(ch *chart.Chart) {
	ch.Background.Padding.Top = legendPadTop
	ch.Elements = []chart.Renderable{chart.LegendThin(ch)}
}

func markerLine(col drawing.Color) chart.Style {
	return chart.Style{StrokeColor: col, StrokeWidth: 2, DotColor: col, DotWidth: 4}
}

func dashedGrid(width float64) chart.Style {
	return chart.Style{StrokeColor: colorGrid, StrokeWidth: width, StrokeDashArray: []float64{4, 4}}
}

// zeroLine returns a y=0 reference line style when zero lies inside [lo,hi].
func zeroLine(lo, hi float64, style chart.Style) chart.GridLine {
	if lo > 0 || hi < 0 {
		return chart.GridLine{Style: chart.Hidden()}
	}
	return chart.GridLine{Value: 0, Style: style}
}

// hiddenAxis keeps a valid range on an axis no series uses.
func hiddenAxis(lo, hi float64) chart.YAxis {
	return chart.YAxis{Style: chart.Hidden(), Range: newAxisRange(lo, hi, nil), Zero: chart.GridLine{Style: chart.Hidden()}}
}

func checkLen(labels []string, cols ...[]float64) error {
	if len(labels) == 0 {
		return ErrEmptySeries
	}
	for _, c := range cols {
		if len(c) != len(labels) {
			return fmt.Errorf("series length %d does not match %d labels", len(c), len(labels))
		}
	}
	return nil
}

// Confidence plots the quarterly BTS confidence indicator.
func Confidence(title string, labels []string, values []float64) (*chart.Chart, error) {
	if err := checkLen(labels, values); err != nil {
		return nil, err
	}
	lo, hi, ok := analysis.MinMax(values)
	if !ok {
		return nil, ErrEmptySeries
	}
	offset := (hi - lo) * 0.03
	axLo, axHi := niceAxisBounds(math.Min(lo, 0), math.Max(hi+offset, 0))
	xs := indexes(len(values))

	ch := newChart(title)
	ch.XAxis = categoryAxis("Quarter", labels)
	ch.YAxisSecondary = chart.YAxis{
		Name:           "Confidence Interval (%)",
		Range:          newAxisRange(axLo, axHi, niceTicks(axLo, axHi, 7, formatTick)),
		GridMajorStyle: dashedGrid(0.5),
		GridMinorStyle: dashedGrid(0.5),
		Zero:           zeroLine(axLo, axHi, chart.Style{StrokeColor: drawing.ColorBlack, StrokeWidth: 1.5}),
	}
	ch.YAxis = hiddenAxis(axLo, axHi)
	ch.Series = append(ch.Series, lineSeries("Confidence", leftAxis, xs, values, markerLine(drawing.ColorBlue))...)
	var lbls []valueLabel
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lbls = append(lbls, valueLabel{X: xs[i], Y: v + offset, Text: fmt.Sprintf("%.1f", v)})
	}
	if len(lbls) > 0 {
		ch.Series = append(ch.Series, labelSeries{YAxis: leftAxis, Style: chart.Style{FontSize: 9}, Labels: lbls})
	}
	return ch, nil
}

// IPI plots index bars with MoM and YoY change lines on a second axis.
func IPI(title string, labels []string, index, mom, yoy []float64) (*chart.Chart, error) {
	if err := checkLen(labels, index, mom, yoy); err != nil {
		return nil, err
	}
	_, idxMax, ok := analysis.MinMax(index)
	if !ok {
		return nil, ErrEmptySeries
	}
	barHi := math.Max(idxMax*1.1, idxMax+4)
	chLo, chHi, ok := analysis.MinMax(append(append([]float64{}, mom...), yoy...))
	if !ok {
		chLo, chHi = 0, 1
	}
	chLo, chHi = niceAxisBounds(math.Min(chLo, 0)-3, math.Max(chHi, 0)+3)
	xs := indexes(len(index))

	ch := newChart(title)
	ch.XAxis = categoryAxis("", labels)
	ch.YAxisSecondary = chart.YAxis{
		Name:           "Index",
		NameStyle:      chart.Style{FontColor: drawing.ColorGreen},
		Range:          newAxisRange(0, barHi, niceTicks(0, barHi, 6, formatTick)),
		GridMajorStyle: dashedGrid(0.5),
		GridMinorStyle: dashedGrid(0.5),
		Zero:           chart.GridLine{Style: chart.Hidden()},
	}
	ch.YAxis = chart.YAxis{
		Name:  "Change (%)",
		Range: newAxisRange(chLo, chHi, niceTicks(chLo, chHi, 7, formatTick)),
		Zero:  chart.GridLine{Style: chart.Hidden()},
	}

	ch.Series = append(ch.Series, barSeries{
		Name: "Index", YAxis: leftAxis, XValues: xs, YValues: index,
		Style: chart.Style{FillColor: colorLightGreen, StrokeColor: colorLightGreen, StrokeWidth: 1},
	})
	ch.Series = append(ch.Series, hline(rightAxis, len(xs), 0, chart.Style{StrokeColor: colorGray, StrokeWidth: 1, StrokeDashArray: []float64{5, 4}}))
	ch.Series = append(ch.Series, lineSeries("IPP %MoM", rightAxis, xs, mom, markerLine(drawing.ColorBlack))...)
	yoyStyle := markerLine(drawing.ColorNavy)
	yoyStyle.StrokeDashArray = []float64{2, 3}
	ch.Series = append(ch.Series, lineSeries("IPP %YoY", rightAxis, xs, yoy, yoyStyle)...)

	var barLbls []valueLabel
	for i, v := range index {
		if !math.IsNaN(v) {
			barLbls = append(barLbls, valueLabel{X: xs[i], Y: v + 2, Text: fmt.Sprintf("%.1f", v)})
		}
	}
	var momLbls, yoyLbls []valueLabel
	for _, p := range PlaceChangeLabels(mom, yoy) {
		if !math.IsNaN(p.MoMY) {
			momLbls = append(momLbls, valueLabel{X: float64(p.Index), Y: p.MoMY, Text: fmt.Sprintf("%.1f", mom[p.Index]), Align: chart.TextHorizontalAlignLeft})
		}
		if !math.IsNaN(p.YoYY) {
			yoyLbls = append(yoyLbls, valueLabel{X: float64(p.Index) - 0.3, Y: p.YoYY, Text: fmt.Sprintf("%.1f", yoy[p.Index]), Align: chart.TextHorizontalAlignRight})
		}
	}
	if len(barLbls) > 0 {
		ch.Series = append(ch.Series, labelSeries{YAxis: leftAxis, Labels: barLbls})
	}
	if len(momLbls) > 0 {
		ch.Series = append(ch.Series, labelSeries{YAxis: rightAxis, Labels: momLbls,
			Style: chart.Style{FillColor: drawing.ColorWhite, StrokeColor: drawing.ColorBlack, StrokeWidth: 1}})
	}
	if len(yoyLbls) > 0 {
		ch.Series = append(ch.Series, labelSeries{YAxis: rightAxis, Labels: yoyLbls,
			Style: chart.Style{FillColor: drawing.ColorNavy, StrokeColor: drawing.ColorNavy, StrokeWidth: 1, FontColor: drawing.ColorWhite}})
	}
	topLegend(ch)
	return ch, nil
}

// LFS plots unemployed persons as bars with the unemployment rate on a second axis.
func LFS(title string, labels []string, unemployed, rate []float64) (*chart.Chart, error) {
	if err := checkLen(labels, unemployed, rate); err != nil {
		return nil, err
	}
	rateLo, rateHi, ok := analysis.MinMax(rate)
	if !ok {
		return nil, ErrEmptySeries
	}
	rateLo, rateHi = rateLo*0.95, rateHi*1.10
	_, uMax, hasBars := analysis.MinMax(unemployed)
	barHi := 1.0
	if hasBars && uMax > 0 {
		barHi = uMax * 1.15
	}
	xs := indexes(len(rate))

	ch := newChart(title)
	ch.XAxis = categoryAxis("Month", labels)
	ch.YAxisSecondary = chart.YAxis{
		Name:  "Unemployed (thousands)",
		Range: newAxisRange(0, barHi, niceTicks(0, barHi, 6, thousandsTick)),
		Zero:  chart.GridLine{Style: chart.Hidden()},
	}
	ch.YAxis = chart.YAxis{
		Name:  "Unemployment Rate (%)",
		Range: newAxisRange(rateLo, rateHi, niceTicks(rateLo, rateHi, 6, formatTick)),
		Zero:  chart.GridLine{Style: chart.Hidden()},
	}
	ch.Series = append(ch.Series, barSeries{
		Name: "Unemployed", YAxis: leftAxis, XValues: xs, YValues: unemployed,
		Style: chart.Style{FillColor: colorLightBlue, StrokeColor: colorLightBlue, StrokeWidth: 1},
	})
	ch.Series = append(ch.Series, lineSeries("Unemployment Rate", rightAxis, xs, rate, markerLine(drawing.ColorRed))...)

	var barLbls, rateLbls []valueLabel
	for i, h := range unemployed {
		if math.IsNaN(h) {
			continue
		}
		y := ClipLabel(h+uMax*0.01, barHi, uMax*0.03)
		barLbls = append(barLbls, valueLabel{X: xs[i], Y: y, Text: formatThousands(h, 0)})
	}
	for i, v := range rate {
		if math.IsNaN(v) {
			continue
		}
		rateLbls = append(rateLbls, valueLabel{X: xs[i], Y: ClipLabel(v+0.05, rateHi, 0.1), Text: fmt.Sprintf("%.1f", v)})
	}
	if len(barLbls) > 0 {
		ch.Series = append(ch.Series, labelSeries{YAxis: leftAxis, Labels: barLbls})
	}
	ch.Series = append(ch.Series, labelSeries{YAxis: rightAxis, Labels: rateLbls,
		Style: chart.Style{FillColor: drawing.ColorWhite, StrokeColor: drawing.ColorBlack, StrokeWidth: 1, Padding: chart.Box{Top: 2, Left: 2, Right: 2, Bottom: 2}}})
	topLegend(ch)
	return ch, nil
}

// WRT plots wholesale and retail sales bars with their YoY change on a second axis.
func WRT(title string, labels []string, sales, yoy []float64) (*chart.Chart, error) {
	if err := checkLen(labels, sales, yoy); err != nil {
		return nil, err
	}
	_, sMax, ok := analysis.MinMax(sales)
	if !ok {
		return nil, ErrEmptySeries
	}
	barLo, barHi := 140.0, sMax*1.15
	if barHi <= barLo {
		barLo = 0
	}
	yLo, yHi, hasYoY := analysis.MinMax(yoy)
	if !hasYoY {
		yLo, yHi = 0, 0
	}
	yLo, yHi = math.Min(yLo, 0)*1.15, math.Max(yHi, 0)*1.15
	if yHi <= yLo {
		yHi = yLo + 1
	}
	xs := indexes(len(sales))

	barTicks := stepTicks(barLo, barHi, 5, formatTick)
	if len(barTicks) > 20 {
		barTicks = niceTicks(barLo, barHi, 8, formatTick)
	}
	ch := newChart(title)
	ch.XAxis = categoryAxis("Month-Year", labels)
	ch.YAxisSecondary = chart.YAxis{
		Name:  "Sales (thousands)",
		Range: newAxisRange(barLo, barHi, barTicks),
		Zero:  chart.GridLine{Style: chart.Hidden()},
	}
	ch.YAxis = chart.YAxis{
		Name:      "Sales YoY (%)",
		NameStyle: chart.Style{FontColor: drawing.ColorRed},
		TickStyle: chart.Style{FontColor: drawing.ColorRed},
		Range:     newAxisRange(yLo, yHi, niceTicks(yLo, yHi, 6, formatTick)),
		Zero:      chart.GridLine{Style: chart.Hidden()},
	}
	ch.Series = append(ch.Series, barSeries{
		Name: "Sales", YAxis: leftAxis, XValues: xs, YValues: sales,
		Style: chart.Style{FillColor: colorLightBlue, StrokeColor: colorLightBlue, StrokeWidth: 1},
	})
	ch.Series = append(ch.Series, lineSeries("Sales YoY (%)", rightAxis, xs, yoy, markerLine(drawing.ColorRed))...)

	var barLbls, yoyLbls []valueLabel
	for i, h := range sales {
		if math.IsNaN(h) {
			continue
		}
		barLbls = append(barLbls, valueLabel{X: xs[i], Y: ClipLabel(h+sMax*0.01, barHi, sMax*0.03), Text: formatThousands(h, 1)})
	}
	for i, v := range yoy {
		if math.IsNaN(v) {
			continue
		}
		yoyLbls = append(yoyLbls, valueLabel{X: xs[i], Y: ClipLabel(v+0.25, yHi, 0.1), Text: fmt.Sprintf("%.1f%%", v)})
	}
	ch.Series = append(ch.Series, labelSeries{YAxis: leftAxis, Labels: barLbls})
	if len(yoyLbls) > 0 {
		ch.Series = append(ch.Series, labelSeries{YAxis: rightAxis, Labels: yoyLbls,
			Style: chart.Style{FillColor: drawing.ColorWhite, StrokeColor: drawing.ColorBlack, StrokeWidth: 1, Padding: chart.Box{Top: 2, Left: 2, Right: 2, Bottom: 2}}})
	}
	topLegend(ch)
	return ch, nil
}

func thousandsTick(v float64) string { return formatThousands(v, 0) }

var englishNumbers = message.NewPrinter(language.English)

// formatThousands formats v with comma thousand separators and the given decimals.
func formatThousands(v float64, decimals int) string {
	scale := math.Pow(10, float64(decimals))
	r := math.Round(v*scale) / scale
	if r == 0 {
		r = 0 // no "-0"
	}
	return englishNumbers.Sprintf(fmt.Sprintf("%%.%df", decimals), r)
}
