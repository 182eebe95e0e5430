package render

import (
	"fmt"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
)

// axisRange is a fixed y range that also supplies its own ticks, so the limits
// set by a chart builder are never widened to the tick extremes.
type axisRange struct {
	chart.ContinuousRange
	ticks []chart.Tick
}

func newAxisRange(min, max float64, ticks []chart.Tick) *axisRange {
	if max <= min {
		max = min + 1
	}
	return &axisRange{ContinuousRange: chart.ContinuousRange{Min: min, Max: max}, ticks: ticks}
}

// GetTicks implements chart.TicksProvider.
func (r *axisRange) GetTicks(_ chart.Renderer, _ chart.Style, _ chart.ValueFormatter) []chart.Tick {
	return r.ticks
}

// niceAxisBounds expands [min,max] by a small margin and rounds to "nice" numbers for readability.
func niceAxisBounds(min, max float64) (float64, float64) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return min, max
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	pad := span * 0.05
	a := min - pad
	b := max + pad
	mag := math.Pow(10, math.Floor(math.Log10(span)))
	if !math.IsInf(mag, 0) && mag > 0 {
		a = math.Floor(a/mag) * mag
		b = math.Ceil(b/mag) * mag
	}
	return a, b
}

// niceTicks returns about n ticks on 1/2/2.5/5 steps that lie inside [min,max].
func niceTicks(min, max float64, n int, format func(float64) string) []chart.Tick {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	bestStep := mag
	bestScore := math.MaxFloat64
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		step := c * mag
		count := math.Floor(span/step) + 1
		if score := math.Abs(count - float64(n)); score < bestScore {
			bestScore = score
			bestStep = step
		}
	}
	return stepTicks(min, max, bestStep, format)
}

// stepTicks returns ticks at every multiple of step inside [min,max].
func stepTicks(min, max, step float64, format func(float64) string) []chart.Tick {
	if step <= 0 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if format == nil {
		format = formatTick
	}
	var ticks []chart.Tick
	for v := math.Ceil(min/step-1e-9) * step; v <= max+step*1e-9; v += step {
		v = math.Round(v/step) * step
		ticks = append(ticks, chart.Tick{Value: v, Label: format(v)})
		if len(ticks) > 200 {
			break
		}
	}
	return ticks
}

func formatTick(v float64) string {
	if v == 0 {
		return "0"
	}
	av := math.Abs(v)
	switch {
	case av >= 100:
		return fmt.Sprintf("%.0f", v)
	case av >= 10:
		if v == math.Trunc(v) {
			return fmt.Sprintf("%.0f", v)
		}
		return fmt.Sprintf("%.1f", v)
	default:
		if v == math.Trunc(v) {
			return fmt.Sprintf("%.0f", v)
		}
		return fmt.Sprintf("%.1f", v)
	}
}

// categoryAxis places n categories at x = 0..n-1. Tick labels sit between the
// boundary ticks so multi-line labels ("Mac\n2024") wrap inside their slot.
func categoryAxis(name string, labels []string) chart.XAxis {
	n := len(labels)
	ticks := make([]chart.Tick, 0, n+1)
	ticks = append(ticks, chart.Tick{Value: -0.5})
	for i, l := range labels {
		ticks = append(ticks, chart.Tick{Value: float64(i) + 0.5, Label: l})
	}
	if n == 0 {
		ticks = append(ticks, chart.Tick{Value: 0.5})
	}
	return chart.XAxis{
		Name:         name,
		Ticks:        ticks,
		TickPosition: chart.TickPositionBetweenTicks,
		TickStyle:    chart.Style{TextWrap: chart.TextWrapWord, TextLineSpacing: 2},
	}
}
