package analysis

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
)

// ErrNoRows is returned when no row survives filtering and coercion.
var ErrNoRows = errors.New("no usable rows")

// Row is one dated observation with any number of numeric columns.
// Missing or unparsable values are NaN.
type Row struct {
	Date   time.Time
	Values map[string]float64
}

// Get returns the column value or NaN when absent.
func (r Row) Get(field string) float64 {
	v, ok := r.Values[field]
	if !ok {
		return math.NaN()
	}
	return v
}

// Frame is a date-ordered table of rows.
type Frame struct {
	Rows []Row
}

// FrameOptions controls BuildFrame.
type FrameOptions struct {
	DateField    string
	Fields       []string
	Required     []string // rows with NaN in any of these are dropped
	SeriesFilter string   // keep only records whose "series" equals this, when set
	Scale        map[string]float64
}

// dateLayouts are tried in order when coercing a date cell.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01",
	"2006/01/02",
}

// ParseDate coerces a raw value to a date; ok is false when it cannot be parsed.
func ParseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ToFloat coerces a raw JSON value to float64; anything unparsable is NaN.
func ToFloat(v any) float64 {
	switch x := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// BuildFrame filters, coerces and date-sorts raw catalogue records.
func BuildFrame(recs []monitor.Record, opts FrameOptions) (*Frame, error) {
	dateField := opts.DateField
	if dateField == "" {
		dateField = "date"
	}
	f := &Frame{Rows: make([]Row, 0, len(recs))}
	for _, rec := range recs {
		if opts.SeriesFilter != "" {
			if s, _ := rec["series"].(string); s != opts.SeriesFilter {
				continue
			}
		}
		d, ok := ParseDate(rec[dateField])
		if !ok {
			continue
		}
		row := Row{Date: d, Values: make(map[string]float64, len(opts.Fields))}
		for _, field := range opts.Fields {
			v := ToFloat(rec[field])
			if s, ok := opts.Scale[field]; ok && !math.IsNaN(v) {
				v *= s
			}
			row.Values[field] = v
		}
		if !hasAll(row, opts.Required) {
			continue
		}
		f.Rows = append(f.Rows, row)
	}
	if len(f.Rows) == 0 {
		return nil, ErrNoRows
	}
	sort.SliceStable(f.Rows, func(i, j int) bool { return f.Rows[i].Date.Before(f.Rows[j].Date) })
	return f, nil
}

func hasAll(r Row, fields []string) bool {
	for _, field := range fields {
		if math.IsNaN(r.Get(field)) {
			return false
		}
	}
	return true
}

// Len returns the row count.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Column returns one column in row order.
func (f *Frame) Column(field string) []float64 {
	out := make([]float64, f.Len())
	for i, r := range f.Rows {
		out[i] = r.Get(field)
	}
	return out
}

// Dates returns the row dates in order.
func (f *Frame) Dates() []time.Time {
	out := make([]time.Time, f.Len())
	for i, r := range f.Rows {
		out[i] = r.Date
	}
	return out
}

// WithChange stores PctChange(field, periods) as column name on every row.
func (f *Frame) WithChange(field, name string, periods int) *Frame {
	ch := PctChange(f.Column(field), periods)
	for i := range f.Rows {
		f.Rows[i].Values[name] = ch[i]
	}
	return f
}

// Tail returns a frame with the last n rows; n <= 0 or n >= Len keeps all rows.
// Rows are shared with the receiver.
func (f *Frame) Tail(n int) *Frame {
	if n <= 0 || n >= f.Len() {
		return &Frame{Rows: f.Rows}
	}
	return &Frame{Rows: f.Rows[f.Len()-n:]}
}

// Last returns the final row.
func (f *Frame) Last() (Row, bool) {
	if f.Len() == 0 {
		return Row{}, false
	}
	return f.Rows[f.Len()-1], true
}

// PctChange returns the percentage change against the value periods rows back,
// (v[i]/v[i-periods] - 1) * 100, after carrying the last known value forward over
// gaps. The first periods entries are NaN, as is any entry whose operands are
// still NaN after filling (leading gaps) or whose base is zero.
func PctChange(vals []float64, periods int) []float64 {
	filled := ForwardFill(vals)
	out := make([]float64, len(vals))
	for i := range filled {
		if periods <= 0 || i < periods {
			out[i] = math.NaN()
			continue
		}
		base, cur := filled[i-periods], filled[i]
		if math.IsNaN(base) || math.IsNaN(cur) || base == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (cur/base - 1) * 100
	}
	return out
}

// ForwardFill returns a copy of vals with every NaN replaced by the closest
// earlier non-NaN value. Leading NaNs stay NaN.
func ForwardFill(vals []float64) []float64 {
	out := make([]float64, len(vals))
	last := math.NaN()
	for i, v := range vals {
		if !math.IsNaN(v) {
			last = v
		}
		out[i] = last
	}
	return out
}

// MinMax returns the extremes ignoring NaN; ok is false when every value is NaN.
func MinMax(vals []float64) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		ok = true
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if !ok {
		return math.NaN(), math.NaN(), false
	}
	return min, max, true
}
