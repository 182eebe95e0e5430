package main

import (
	"encoding/json"
	"errors"
	"image"
	_ "image/png" // register PNG decoder
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

// writeResultLine writes a minimal JSONL envelope suitable for dataset rebuilding.
func writeResultLine(t *testing.T, f *os.File, runTag string, res *monitor.IndicatorResult) {
	t.Helper()
	env := &monitor.ResultEnvelope{
		Meta: &monitor.Meta{
			TimestampUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			RunTag:        runTag,
			SchemaVersion: monitor.SchemaVersion,
		},
		IndicatorResult: res,
	}
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func monthlyRecords(n int, field string, base float64) []monitor.Record {
	recs := make([]monitor.Record, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, monitor.Record{
			"series": "abs",
			"date":   time.Date(2024, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			field:    base + float64(i),
		})
	}
	return recs
}

// writeResults creates a results file with bts and ipi snapshots, an older ipi run and a failed lfs fetch.
func writeResults(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "results-*.jsonl")
	if err != nil {
		t.Fatalf("create temp results: %v", err)
	}
	defer f.Close()
	writeResultLine(t, f, "r1", &monitor.IndicatorResult{Indicator: "ipi", Kind: types.KindCatalogue, Records: monthlyRecords(10, "index", 100)})
	writeResultLine(t, f, "r2", &monitor.IndicatorResult{Indicator: "ipi", Kind: types.KindCatalogue, Records: monthlyRecords(15, "index", 110)})
	writeResultLine(t, f, "r2", &monitor.IndicatorResult{
		Indicator: "bts", Kind: types.KindBTSWorkbook,
		Values: []float64{-3.2, 1.5, 4.0, -0.5, 2.2}, LatestYear: 2025, LatestQuarter: 2,
	})
	writeResultLine(t, f, "r2", &monitor.IndicatorResult{Indicator: "lfs", Kind: types.KindCatalogue, Error: "HTTP 503"})
	return f.Name()
}

func TestLoadData(t *testing.T) {
	d, err := loadData(writeResults(t), "", 50)
	if err != nil {
		t.Fatalf("loadData: %v", err)
	}
	got := d.ordered()
	if len(got) != 2 || got[0].Indicator.ID != "bts" || got[1].Indicator.ID != "ipi" {
		t.Fatalf("expected bts then ipi datasets, got %d", len(got))
	}
	if got[1].RunTag != "r2" || got[1].Full.Len() != 15 {
		t.Fatalf("expected newest ipi snapshot, got run %q with %d rows", got[1].RunTag, got[1].Full.Len())
	}
	if sum := d.summaries["ipi"]; sum.Period != "2025-03" {
		t.Fatalf("unexpected ipi summary period %q", sum.Period)
	}
	for _, id := range []string{"lfs", "wrt"} {
		if !errors.Is(d.failed[id], analysis.ErrNoRecords) {
			t.Fatalf("expected %s to have no records, got %v", id, d.failed[id])
		}
	}
	info := indicatorInfo(d, "ipi")
	if want := "Latest Data Used: ipi 2025-03 index=124.00"; len(info) < len(want) || info[:len(want)] != want {
		t.Fatalf("unexpected info %q", info)
	}
}

// TestScreenshotsMode renders the rebuildable indicators and checks the PNG sizes.
func TestScreenshotsMode(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "shots")
	paths, err := RunScreenshotsMode(writeResults(t), "", outDir, 1200, false)
	if err != nil {
		t.Fatalf("RunScreenshotsMode: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 screenshots, got %v", paths)
	}
	for _, name := range []string{"bts.png", "ipi.png"} {
		fh, err := os.Open(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		cfg, _, err := image.DecodeConfig(fh)
		fh.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if cfg.Width != 1200 || cfg.Height != 600 {
			t.Fatalf("%s: got %dx%d want 1200x600", name, cfg.Width, cfg.Height)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "lfs.png")); !os.IsNotExist(err) {
		t.Fatalf("did not expect lfs.png: %v", err)
	}
}

func TestScreenshotsModeNothingToRender(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "results-*.jsonl")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	writeResultLine(t, f, "r1", &monitor.IndicatorResult{Indicator: "ipi", Kind: types.KindCatalogue, Error: "timeout"})
	f.Close()
	if _, err := RunScreenshotsMode(f.Name(), "", t.TempDir(), 0, true); err == nil {
		t.Fatalf("expected error for a file without usable snapshots")
	}
	if _, err := RunScreenshotsMode(filepath.Join(t.TempDir(), "missing.jsonl"), "", t.TempDir(), 0, true); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
