package analysis

import (
	"fmt"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

// Derived column names.
const (
	ColValue = "value" // workbook series
	ColMoM   = "mom"
	ColYoY   = "yoy"
)

// Dataset is one indicator reshaped for charting.
type Dataset struct {
	Indicator types.Indicator
	Full      *Frame // every usable period, derived columns included
	Frame     *Frame // charted window (Tail of Full)
	Labels    []string
	SourceURL string
	FetchedAt string
	RunTag    string
}

// PrimaryField is the column summaries and alerts are computed on.
func PrimaryField(ind types.Indicator) string {
	if ind.Kind == types.KindBTSWorkbook {
		return ColValue
	}
	if len(ind.Required) > 0 {
		return ind.Required[0]
	}
	if len(ind.Fields) > 0 {
		return ind.Fields[0]
	}
	return ColValue
}

// RawFields are the source columns of an indicator, without derived changes.
func RawFields(ind types.Indicator) []string {
	if ind.Kind == types.KindBTSWorkbook {
		return []string{ColValue}
	}
	return ind.Fields
}

// Prepare turns a raw fetch result into a Dataset according to the indicator's chart.
func Prepare(ind types.Indicator, res *monitor.IndicatorResult) (*Dataset, error) {
	if res == nil {
		return nil, fmt.Errorf("%s: no result", ind.ID)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%s: fetch failed: %s", ind.ID, res.Error)
	}
	ds := &Dataset{Indicator: ind, SourceURL: res.SourceURL, FetchedAt: res.FetchedAtUTC}
	switch ind.Kind {
	case types.KindBTSWorkbook:
		if len(res.Values) == 0 {
			return nil, fmt.Errorf("%s: %w", ind.ID, ErrNoRows)
		}
		ds.Full = quarterFrame(res.Values, res.LatestYear, res.LatestQuarter)
		ds.Frame = ds.Full.Tail(ind.Tail)
		first := ds.Frame.Rows[0].Date
		ds.Labels = QuarterLabels(first.Year(), int(first.Month()-1)/3+1, ds.Frame.Len())
		return ds, nil
	case types.KindCatalogue:
		f, err := BuildFrame(res.Records, FrameOptions{
			DateField:    ind.DateField,
			Fields:       ind.Fields,
			Required:     ind.Required,
			SeriesFilter: ind.SeriesFilter,
			Scale:        ind.Scale,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ind.ID, err)
		}
		primary := PrimaryField(ind)
		// changes use the full history so the first charted month has a YoY
		f.WithChange(primary, ColMoM, 1).WithChange(primary, ColYoY, 12)
		ds.Full = f
		ds.Frame = f.Tail(ind.Tail)
		ds.Labels = MonthLabels(ds.Frame.Dates())
		return ds, nil
	default:
		return nil, fmt.Errorf("%s: unknown kind %q", ind.ID, ind.Kind)
	}
}

// quarterFrame lays consecutive quarterly values out so the last one falls on the latest period.
func quarterFrame(vals []float64, latestYear, latestQuarter int) *Frame {
	y, q := monitor.StartPeriod(latestYear, latestQuarter, len(vals))
	f := &Frame{Rows: make([]Row, len(vals))}
	for i, v := range vals {
		f.Rows[i] = Row{Date: QuarterStart(y, q), Values: map[string]float64{ColValue: v}}
		q++
		if q > 4 {
			q = 1
			y++
		}
	}
	return f
}
