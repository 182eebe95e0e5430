package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

// DefaultResultsFile centralizes the default JSONL results filename so main and
// internal fallbacks remain consistent.
const DefaultResultsFile = "indicator_results.jsonl"

// SchemaVersion indicates the compatibility / schema version for the JSONL meta+indicator_result structure.
// Increment this when breaking changes are made to field names/types.
// v2: workbook results carry latest_year/latest_quarter instead of a label string
const SchemaVersion = 2

// Record is one raw object of a data-catalogue payload.
type Record map[string]any

// IndicatorResult is the raw outcome of fetching one indicator, before any reshaping.
type IndicatorResult struct {
	Indicator    string   `json:"indicator"`
	Name         string   `json:"name,omitempty"`
	Kind         string   `json:"kind"`
	SourceURL    string   `json:"source_url,omitempty"`
	FetchedAtUTC string   `json:"fetched_at_utc"`
	DurationMs   int64    `json:"duration_ms"`
	Records      []Record `json:"records,omitempty"`
	// workbook results
	Values        []float64 `json:"values,omitempty"`
	LatestYear    int       `json:"latest_year,omitempty"`
	LatestQuarter int       `json:"latest_quarter,omitempty"`
	Probes        int       `json:"probes,omitempty"`
	Error         string    `json:"error,omitempty"`
	HTTPStatus    int       `json:"http_status,omitempty"`
}

// Meta holds run metadata written in front of every result line.
type Meta struct {
	TimestampUTC  string `json:"timestamp_utc"`
	RunTag        string `json:"run_tag,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	Hostname      string `json:"hostname,omitempty"`
	OS            string `json:"os,omitempty"`
	Arch          string `json:"arch,omitempty"`
	GoVersion     string `json:"go_version,omitempty"`
	SchemaVersion int    `json:"schema_version"`
}

// ResultEnvelope is the strongly-typed root object written as one JSONL line.
type ResultEnvelope struct {
	Meta            *Meta            `json:"meta"`
	IndicatorResult *IndicatorResult `json:"indicator_result"`
}

var (
	resultChan        chan *ResultEnvelope
	writerOnce        sync.Once
	writerWG          sync.WaitGroup
	resultPath        string
	runTag            string
	runID             = uuid.NewString()
	fallbackWriteOnce sync.Once
	httpTimeout       = 60 * time.Second
	now               = time.Now
)

// SetHTTPTimeout configures the default per-request total timeout for clients built without one.
func SetHTTPTimeout(d time.Duration) {
	if d > 0 {
		httpTimeout = d
	}
}

// SetRunTag sets the batch/run tag added into meta for each result line.
func SetRunTag(tag string) { runTag = tag }

// RunTag returns the current run tag.
func RunTag() string { return runTag }

// RunID returns the unique id of this process run.
func RunID() string { return runID }

// InitResultWriter sets up an async JSONL writer (single goroutine) with a buffered channel.
func InitResultWriter(path string) {
	resultPath = path
	writerOnce.Do(func() {
		Infof("[writer] results file (append): %s", resultPath)
		resultChan = make(chan *ResultEnvelope, 16)
		writerWG.Add(1)
		go func() {
			defer writerWG.Done()
			f, err := os.OpenFile(resultPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				Errorf("open results file: %v", err)
				for range resultChan {
				}
				return
			}
			defer f.Close()
			enc := json.NewEncoder(f)
			for r := range resultChan {
				if r == nil {
					continue
				}
				if err := enc.Encode(r); err != nil {
					Errorf("encode result: %v", err)
				}
			}
		}()
	})
}

// CloseResultWriter flushes and closes the async writer.
func CloseResultWriter() {
	if resultChan != nil {
		close(resultChan)
		writerWG.Wait()
	}
}

func wrapRoot(res *IndicatorResult) *ResultEnvelope {
	host, _ := os.Hostname()
	return &ResultEnvelope{
		Meta: &Meta{
			TimestampUTC:  now().UTC().Format(time.RFC3339Nano),
			RunTag:        runTag,
			RunID:         runID,
			Hostname:      host,
			OS:            runtime.GOOS,
			Arch:          runtime.GOARCH,
			GoVersion:     runtime.Version(),
			SchemaVersion: SchemaVersion,
		},
		IndicatorResult: res,
	}
}

func writeResult(env *ResultEnvelope) {
	if resultChan != nil {
		resultChan <- env
		return
	}
	path := resultPath
	if path == "" { // fallback only if async writer not initialized & no path set
		path = DefaultResultsFile
	}
	fallbackWriteOnce.Do(func() { Infof("[writer fallback] results file (append): %s", path) })
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		Errorf("write result: %v", err)
		return
	}
	defer f.Close()
	b, _ := json.Marshal(env)
	f.Write(append(b, '\n'))
}

// MonitorIndicator fetches one indicator, writes its result line and returns the envelope.
// A failed fetch is still recorded (with Error set) before the error is returned.
func MonitorIndicator(ctx context.Context, c *Client, ind types.Indicator) (*ResultEnvelope, error) {
	start := now()
	defer TimeTrack(start, "monitor "+ind.ID)
	res := &IndicatorResult{
		Indicator:    ind.ID,
		Name:         ind.Name,
		Kind:         ind.Kind,
		FetchedAtUTC: start.UTC().Format(time.RFC3339),
	}
	var err error
	switch ind.Kind {
	case types.KindCatalogue:
		res.SourceURL = ind.Endpoint()
		res.Records, err = FetchCatalogue(ctx, c, ind)
		if err == nil {
			Infof("[%s] %d records from %s", ind.ID, len(res.Records), res.SourceURL)
		}
	case types.KindBTSWorkbook:
		var wb *Workbook
		wb, err = FetchLatestWorkbook(ctx, c, ind)
		if wb != nil {
			res.SourceURL = wb.URL
			res.Values = wb.Values
			res.LatestYear = wb.Year
			res.LatestQuarter = wb.Quarter
			res.Probes = wb.Probes
		}
		if err == nil {
			Infof("[%s] extracted %d values from %s (latest %d Q%d)", ind.ID, len(res.Values), res.SourceURL, res.LatestYear, res.LatestQuarter)
		}
	default:
		err = fmt.Errorf("indicator %s: unknown kind %q", ind.ID, ind.Kind)
	}
	res.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		var he *HTTPError
		if errors.As(err, &he) {
			res.HTTPStatus = he.StatusCode
		}
	}
	env := wrapRoot(res)
	writeResult(env)
	if err != nil {
		return env, fmt.Errorf("%s: %w", ind.ID, err)
	}
	return env, nil
}
