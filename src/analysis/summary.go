package analysis

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

// ErrNoRecords is returned when the results file holds no matching snapshot.
var ErrNoRecords = errors.New("no matching records")

// Summary is the latest observation of one indicator.
type Summary struct {
	Indicator string    `json:"indicator"`
	Name      string    `json:"name,omitempty"`
	Field     string    `json:"field"`
	Period    string    `json:"period"`
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
	MoMPct    *float64  `json:"mom_pct,omitempty"`
	YoYPct    *float64  `json:"yoy_pct,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
}

// String renders the one line "latest data used" form.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s=%.2f", s.Indicator, s.Period, s.Field, s.Value)
	if s.MoMPct != nil {
		fmt.Fprintf(&b, " MoM=%+.2f%%", *s.MoMPct)
	}
	if s.YoYPct != nil {
		fmt.Fprintf(&b, " YoY=%+.2f%%", *s.YoYPct)
	}
	return b.String()
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Summarize returns the last charted period of ds.
func Summarize(ds *Dataset) (Summary, error) {
	if ds == nil {
		return Summary{}, ErrNoRows
	}
	last, ok := ds.Frame.Last()
	if !ok {
		return Summary{}, fmt.Errorf("%s: %w", ds.Indicator.ID, ErrNoRows)
	}
	field := PrimaryField(ds.Indicator)
	if math.IsNaN(last.Get(field)) {
		return Summary{}, fmt.Errorf("%s: latest %s missing: %w", ds.Indicator.ID, field, ErrNoRows)
	}
	s := Summary{
		Indicator: ds.Indicator.ID,
		Name:      ds.Indicator.Name,
		Field:     field,
		Date:      last.Date,
		Value:     last.Get(field),
		SourceURL: ds.SourceURL,
	}
	if ds.Indicator.Kind == types.KindBTSWorkbook {
		s.Period = fmt.Sprintf("%d Q%d", last.Date.Year(), int(last.Date.Month()-1)/3+1)
	} else {
		s.Period = last.Date.Format("2006-01")
		s.MoMPct = finitePtr(last.Get(ColMoM))
		s.YoYPct = finitePtr(last.Get(ColYoY))
	}
	return s, nil
}

// LoadSnapshots reads the JSONL results file and returns the most recent
// successful envelopes, oldest first. id filters by indicator when non-empty;
// schemaVersion filters when > 0; max <= 0 means 10.
func LoadSnapshots(path string, schemaVersion int, id string, max int) ([]*monitor.ResultEnvelope, error) {
	if max <= 0 {
		max = 10
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	monitor.Debugf("[analysis] reading results from %s (schema_version=%d, indicator=%q, max=%d)", path, schemaVersion, id, max)
	reader := bufio.NewReader(f)
	const maxLineBytes = 200 * 1024 * 1024
	var out []*monitor.ResultEnvelope
	lineNo, bad := 0, 0
	for {
		line, rerr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			line = bytes.TrimSpace(line)
			if len(line) > maxLineBytes {
				monitor.Warnf("[analysis] line %d exceeds %d bytes, skipped", lineNo, maxLineBytes)
			} else if len(line) > 0 {
				var env monitor.ResultEnvelope
				if err := json.Unmarshal(line, &env); err != nil {
					bad++
				} else if keepSnapshot(&env, schemaVersion, id) {
					out = append(out, &env)
				}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return nil, rerr
		}
	}
	if bad > 0 {
		monitor.Warnf("[analysis] %d unparsable lines in %s", bad, path)
	}
	if len(out) == 0 {
		return nil, ErrNoRecords
	}
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out, nil
}

func keepSnapshot(env *monitor.ResultEnvelope, schemaVersion int, id string) bool {
	if env.Meta == nil || env.IndicatorResult == nil {
		return false
	}
	if schemaVersion > 0 && env.Meta.SchemaVersion != schemaVersion {
		return false
	}
	if id != "" && !strings.EqualFold(env.IndicatorResult.Indicator, id) {
		return false
	}
	return env.IndicatorResult.Error == ""
}

// LatestByIndicator keeps the last envelope per indicator id.
func LatestByIndicator(envs []*monitor.ResultEnvelope) map[string]*monitor.ResultEnvelope {
	out := make(map[string]*monitor.ResultEnvelope)
	for _, e := range envs {
		out[e.IndicatorResult.Indicator] = e
	}
	return out
}

// Revision is a value that changed between two snapshots of the same period.
type Revision struct {
	Indicator string    `json:"indicator"`
	Date      time.Time `json:"date"`
	Field     string    `json:"field"`
	Old       *float64  `json:"old"` // nil when the period had no value
	New       *float64  `json:"new"`
}

// CompareRevisions lists every period present in both datasets whose raw
// field values differ. Derived change columns are ignored.
func CompareRevisions(prev, cur *Dataset) []Revision {
	if prev == nil || cur == nil || prev.Full.Len() == 0 || cur.Full.Len() == 0 {
		return nil
	}
	fields := RawFields(cur.Indicator)
	old := make(map[time.Time]Row, prev.Full.Len())
	for _, r := range prev.Full.Rows {
		old[r.Date] = r
	}
	var out []Revision
	for _, r := range cur.Full.Rows {
		p, ok := old[r.Date]
		if !ok {
			continue
		}
		for _, field := range fields {
			a, b := p.Get(field), r.Get(field)
			if math.IsNaN(a) && math.IsNaN(b) {
				continue
			}
			if math.IsNaN(a) || math.IsNaN(b) || math.Abs(a-b) > 1e-9 {
				out = append(out, Revision{Indicator: cur.Indicator.ID, Date: r.Date, Field: field, Old: finitePtr(a), New: finitePtr(b)})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
