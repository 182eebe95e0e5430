package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	chart "github.com/wcharczuk/go-chart/v2"
)

func tickValues(ts []chart.Tick) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = t.Value
	}
	return out
}

func TestNiceAxisBounds(t *testing.T) {
	lo, hi := niceAxisBounds(3, 97)
	assert.LessOrEqual(t, lo, 3.0)
	assert.GreaterOrEqual(t, hi, 97.0)
	assert.Equal(t, -10.0, lo)
	assert.Equal(t, 110.0, hi)

	lo, hi = niceAxisBounds(5, 5)
	assert.Less(t, lo, hi)
}

func TestStepTicks(t *testing.T) {
	ts := stepTicks(140, 161, 5, nil)
	assert.Equal(t, []float64{140, 145, 150, 155, 160}, tickValues(ts))
	assert.Equal(t, "145", ts[1].Label)
	assert.Nil(t, stepTicks(0, 10, 0, nil))
}

func TestNiceTicksInsideRange(t *testing.T) {
	ts := niceTicks(-3.2, 7.9, 6, formatTick)
	require.NotEmpty(t, ts)
	for _, tk := range ts {
		assert.GreaterOrEqual(t, tk.Value, -3.2)
		assert.LessOrEqual(t, tk.Value, 7.9)
	}
	assert.Equal(t, []float64{-2, 0, 2, 4, 6}, tickValues(ts))
}

func TestAxisRangeProvidesTicks(t *testing.T) {
	r := newAxisRange(2, 2, []chart.Tick{{Value: 2, Label: "2"}})
	assert.Equal(t, 3.0, r.GetMax())
	var tp chart.TicksProvider = r
	assert.Len(t, tp.GetTicks(nil, chart.Style{}, nil), 1)
}

func TestCategoryAxis(t *testing.T) {
	ax := categoryAxis("Month", []string{"Jan\n2024", "Feb\n2024"})
	require.Len(t, ax.Ticks, 3)
	assert.Equal(t, -0.5, ax.Ticks[0].Value)
	assert.Equal(t, 1.5, ax.Ticks[2].Value)
	assert.Equal(t, "Feb\n2024", ax.Ticks[2].Label)
	assert.Equal(t, chart.TickPositionBetweenTicks, ax.TickPosition)
}

func TestFormatThousands(t *testing.T) {
	assert.Equal(t, "1,234", formatThousands(1234.4, 0))
	assert.Equal(t, "612", formatThousands(612, 0))
	assert.Equal(t, "1,234,567.9", formatThousands(1234567.89, 1))
	assert.Equal(t, "-12,000", formatThousands(-12000, 0))
	assert.Equal(t, "0", formatThousands(-0.2, 0))
}

func TestLineSeriesSplitsAtGaps(t *testing.T) {
	nan := math.NaN()
	segs := lineSeries("MoM", rightAxis, indexes(6), []float64{nan, 1, 2, nan, 3, nan}, chart.Style{})
	require.Len(t, segs, 2)
	assert.Equal(t, "MoM", segs[0].GetName())
	assert.Equal(t, "", segs[1].GetName())
	first := segs[0].(chart.ContinuousSeries)
	assert.Equal(t, []float64{1, 2}, first.XValues)
	second := segs[1].(chart.ContinuousSeries)
	assert.Equal(t, []float64{4}, second.XValues)
	assert.Empty(t, lineSeries("x", rightAxis, indexes(2), []float64{nan, nan}, chart.Style{}))
}
