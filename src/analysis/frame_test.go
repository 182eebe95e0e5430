package analysis

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
)

func TestPctChange(t *testing.T) {
	got := PctChange([]float64{100, 110}, 1)
	require.Len(t, got, 2)
	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 10, got[1], 1e-9)

	got = PctChange([]float64{0, 5, math.NaN(), 8}, 1)
	assert.True(t, math.IsNaN(got[1]), "zero base")
	assert.InDelta(t, 0, got[2], 1e-9, "gap carries 5 forward")
	assert.InDelta(t, 60, got[3], 1e-9, "base filled from 5")

	got = PctChange([]float64{math.NaN(), 100, 110}, 1)
	assert.True(t, math.IsNaN(got[1]), "leading gap stays NaN")
	assert.InDelta(t, 10, got[2], 1e-9)

	got = PctChange([]float64{1, 2, 3}, 12)
	for _, v := range got {
		assert.True(t, math.IsNaN(v))
	}
}

func TestForwardFill(t *testing.T) {
	nan := math.NaN()
	got := ForwardFill([]float64{nan, 1, nan, nan, 4})
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, []float64{1, 1, 1, 4}, got[1:])
}

func TestPctChangeYoYAcrossMissingMonth(t *testing.T) {
	// 14 months of sales with month 13 unpublished: the YoY for month 13 compares
	// month 12's carried value, and month 14 still compares against month 2
	vals := make([]float64, 14)
	for i := range vals {
		vals[i] = 100 + float64(i)
	}
	vals[12] = math.NaN()
	got := PctChange(vals, 12)
	assert.InDelta(t, (111.0/100-1)*100, got[12], 1e-9)
	assert.InDelta(t, (113.0/101-1)*100, got[13], 1e-9)
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, 1.5, ToFloat(json.Number("1.5")))
	assert.Equal(t, 2.0, ToFloat(" 2 "))
	assert.Equal(t, 3.0, ToFloat(3.0))
	assert.True(t, math.IsNaN(ToFloat(nil)))
	assert.True(t, math.IsNaN(ToFloat("n/a")))
	assert.True(t, math.IsNaN(ToFloat(true)))
}

func TestBuildFrameFiltersCoercesAndSorts(t *testing.T) {
	recs := []monitor.Record{
		{"series": "abs", "date": "2025-03-01", "index": json.Number("120.5")},
		{"series": "growth_yoy", "date": "2025-02-01", "index": json.Number("2.0")},
		{"series": "abs", "date": "2025-01-01", "index": "118"},
		{"series": "abs", "date": "not a date", "index": json.Number("1")},
		{"series": "abs", "date": "2025-02-01", "index": nil},
		{"series": "abs", "date": "2024-12-01", "index": json.Number("117")},
	}
	f, err := BuildFrame(recs, FrameOptions{DateField: "date", Fields: []string{"index"}, Required: []string{"index"}, SeriesFilter: "abs"})
	require.NoError(t, err)
	require.Equal(t, 3, f.Len())
	assert.Equal(t, []float64{117, 118, 120.5}, f.Column("index"))
	dates := f.Dates()
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), dates[2])
}

func TestBuildFrameScaleAndOptionalFields(t *testing.T) {
	recs := []monitor.Record{
		{"date": "2025-01-01", "sales": json.Number("152000")},
		{"date": "2025-02-01", "sales": "bad"},
	}
	f, err := BuildFrame(recs, FrameOptions{Fields: []string{"sales"}, Scale: map[string]float64{"sales": 0.001}})
	require.NoError(t, err)
	require.Equal(t, 2, f.Len())
	assert.InDelta(t, 152, f.Rows[0].Get("sales"), 1e-9)
	assert.True(t, math.IsNaN(f.Rows[1].Get("sales")))
}

func TestBuildFrameNoRows(t *testing.T) {
	_, err := BuildFrame([]monitor.Record{{"date": "2025-01-01", "index": nil}}, FrameOptions{Fields: []string{"index"}, Required: []string{"index"}})
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestTail(t *testing.T) {
	f := &Frame{}
	for i := 0; i < 5; i++ {
		f.Rows = append(f.Rows, Row{Date: time.Date(2025, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC), Values: map[string]float64{"v": float64(i)}})
	}
	assert.Equal(t, []float64{3, 4}, f.Tail(2).Column("v"))
	assert.Equal(t, 5, f.Tail(0).Len())
	assert.Equal(t, 5, f.Tail(50).Len())
	last, ok := f.Last()
	require.True(t, ok)
	assert.Equal(t, 4.0, last.Get("v"))
	assert.True(t, math.IsNaN(last.Get("missing")))
}

func TestMinMaxIgnoresNaN(t *testing.T) {
	lo, hi, ok := MinMax([]float64{math.NaN(), 3, -1, 7})
	require.True(t, ok)
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 7.0, hi)
	_, _, ok = MinMax([]float64{math.NaN()})
	assert.False(t, ok)
}
