package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/render"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/store"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

type fakeSaver struct {
	calls []string // indicator id + "/" + "ds" or "nil"
}

func (f *fakeSaver) SaveSnapshot(_ context.Context, env *monitor.ResultEnvelope, ds *analysis.Dataset) error {
	tag := "nil"
	if ds != nil {
		tag = "ds"
	}
	f.calls = append(f.calls, env.IndicatorResult.Indicator+"/"+tag)
	return nil
}

type fakePutter struct{ keys []string }

func (f *fakePutter) Key(id, runTag, name string) string { return id + "/" + runTag + "/" + name }
func (f *fakePutter) Put(_ context.Context, key string, body []byte, _ string) error {
	if len(body) == 0 {
		return fmt.Errorf("empty body for %s", key)
	}
	f.keys = append(f.keys, key)
	return nil
}

// ipiPayload returns n months of abs IPI records starting January 2024, plus one growth row per month.
func ipiPayload(n int, bump float64) string {
	var rows []string
	for i := 0; i < n; i++ {
		d := time.Date(2024, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		v := 120 + float64(i)
		if i == 3 {
			v += bump
		}
		rows = append(rows, fmt.Sprintf(`{"series":"abs","date":"%s","index":%.1f}`, d, v))
		rows = append(rows, fmt.Sprintf(`{"series":"growth_yoy","date":"%s","index":1.5}`, d))
	}
	return "[" + strings.Join(rows, ",") + "]"
}

func catalogueServer(t *testing.T, payload *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "ipi":
			fmt.Fprint(w, *payload)
		default:
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func indicatorsFor(t *testing.T, base string, ids ...string) []types.Indicator {
	t.Helper()
	inds, err := selectIndicators(types.DefaultIndicators(), strings.Join(ids, ","))
	require.NoError(t, err)
	for i := range inds {
		inds[i].URL = base + "/data-catalogue"
	}
	return inds
}

func TestPipelineLiveThenOffline(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	payload := ipiPayload(15, 0)
	srv := catalogueServer(t, &payload)
	inds := indicatorsFor(t, srv.URL, "ipi", "lfs")

	saver, putter := &fakeSaver{}, &fakePutter{}
	p := &pipeline{
		client:     monitor.NewClient(monitor.ClientOptions{}),
		chartsDir:  filepath.Join(dir, "charts"),
		parquetDir: filepath.Join(dir, "parquet"),
		db:         saver,
		s3:         putter,
		runTag:     "run1",
	}
	outs := p.runLive(context.Background(), inds)
	require.Len(t, outs, 2)
	require.NoError(t, outs[0].Err)
	assert.Error(t, outs[1].Err)
	assert.False(t, allFailed(outs))

	require.NotNil(t, outs[0].Summary)
	assert.Equal(t, "2025-03", outs[0].Summary.Period)
	assert.FileExists(t, filepath.Join(dir, "charts", render.FileName("ipi")))
	assert.FileExists(t, filepath.Join(dir, "parquet", "ipi.parquet"))
	assert.Equal(t, []string{"ipi/ds", "lfs/nil"}, saver.calls)
	assert.Equal(t, []string{"ipi/run1/ipi.png", "ipi/run1/ipi.parquet"}, putter.keys)

	// second live run with a revised April 2024 value
	payload = ipiPayload(15, 0.7)
	envs, err := analysis.LoadSnapshots(monitor.DefaultResultsFile, monitor.SchemaVersion, "", 0)
	require.NoError(t, err)
	p.previous, _ = splitSnapshots(envs)
	p.db, p.s3, p.parquetDir = nil, nil, ""
	outs = p.runLive(context.Background(), inds[:1])
	require.NoError(t, outs[0].Err)
	require.Len(t, outs[0].Revisions, 1)
	assert.Equal(t, "index", outs[0].Revisions[0].Field)

	// offline rebuild from the results file
	envs, err = analysis.LoadSnapshots(monitor.DefaultResultsFile, monitor.SchemaVersion, "", 0)
	require.NoError(t, err)
	latest, previous := splitSnapshots(envs)
	require.Contains(t, previous, "ipi")
	off := &pipeline{chartsDir: filepath.Join(dir, "offline"), runTag: "ignored", previous: previous}
	outs = off.runOffline(context.Background(), inds, latest)
	require.Len(t, outs, 2)
	require.NoError(t, outs[0].Err)
	assert.Len(t, outs[0].Revisions, 1)
	assert.ErrorIs(t, outs[1].Err, analysis.ErrNoRecords)
	assert.FileExists(t, filepath.Join(dir, "offline", "ipi.png"))
}

func TestAllFailed(t *testing.T) {
	assert.True(t, allFailed(nil))
	assert.True(t, allFailed([]outcome{{Err: assert.AnError}}))
	assert.False(t, allFailed([]outcome{{Err: assert.AnError}, {}}))
}

func TestSelectIndicators(t *testing.T) {
	all := types.DefaultIndicators()
	got, err := selectIndicators(all, "all")
	require.NoError(t, err)
	assert.Len(t, got, len(all))

	got, err = selectIndicators(all, " WRT, bts ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "wrt", got[0].ID)
	assert.Equal(t, "bts", got[1].ID)

	_, err = selectIndicators(all, "cpi")
	assert.Error(t, err)
	_, err = selectIndicators(all, ",")
	assert.Error(t, err)
}

func TestExpandHost(t *testing.T) {
	got, ok := expandHost("results_{host}.jsonl", "My.Host_01")
	assert.True(t, ok)
	assert.Equal(t, "results_my-host_01.jsonl", got)

	got, ok = expandHost("results.jsonl", "box")
	assert.False(t, ok)
	assert.Equal(t, "results.jsonl", got)
}

func TestSplitSnapshots(t *testing.T) {
	env := func(id, tag string) *monitor.ResultEnvelope {
		return &monitor.ResultEnvelope{Meta: &monitor.Meta{RunTag: tag}, IndicatorResult: &monitor.IndicatorResult{Indicator: id}}
	}
	latest, previous := splitSnapshots([]*monitor.ResultEnvelope{env("ipi", "a"), env("lfs", "a"), env("ipi", "b"), nil})
	assert.Equal(t, "b", latest["ipi"].Meta.RunTag)
	assert.Equal(t, "a", previous["ipi"].Meta.RunTag)
	assert.Equal(t, "a", latest["lfs"].Meta.RunTag)
	assert.NotContains(t, previous, "lfs")
}

type fakeSource map[string]*monitor.ResultEnvelope

func (f fakeSource) LatestSnapshot(_ context.Context, id string) (*monitor.ResultEnvelope, error) {
	if id == "wrt" {
		return nil, fmt.Errorf("connection reset")
	}
	env, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	return env, nil
}

func TestFillFromStore(t *testing.T) {
	env := func(id, tag string) *monitor.ResultEnvelope {
		return &monitor.ResultEnvelope{Meta: &monitor.Meta{RunTag: tag}, IndicatorResult: &monitor.IndicatorResult{Indicator: id}}
	}
	src := fakeSource{"ipi": env("ipi", "db"), "lfs": env("lfs", "db")}
	m := map[string]*monitor.ResultEnvelope{"ipi": env("ipi", "file")}
	inds, err := selectIndicators(types.DefaultIndicators(), "ipi,lfs,wrt,bts")
	require.NoError(t, err)

	n := fillFromStore(context.Background(), src, inds, m)
	assert.Equal(t, 1, n)
	assert.Equal(t, "file", m["ipi"].Meta.RunTag)
	assert.Equal(t, "db", m["lfs"].Meta.RunTag)
	assert.NotContains(t, m, "wrt")
	assert.NotContains(t, m, "bts")
}

func TestAnalyzeOnlyFallsBackToStore(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	payload := ipiPayload(15, 0)
	srv := catalogueServer(t, &payload)
	inds := indicatorsFor(t, srv.URL, "ipi")
	p := &pipeline{client: monitor.NewClient(monitor.ClientOptions{})}
	outs := p.runLive(context.Background(), inds)
	require.NoError(t, outs[0].Err)

	envs, err := analysis.LoadSnapshots(monitor.DefaultResultsFile, monitor.SchemaVersion, "", 0)
	require.NoError(t, err)
	stored, _ := splitSnapshots(envs)

	// results file gone; the stored snapshot alone rebuilds the chart
	require.NoError(t, os.Remove(monitor.DefaultResultsFile))
	envs, err = analysis.LoadSnapshots(monitor.DefaultResultsFile, monitor.SchemaVersion, "", 0)
	require.Error(t, err)
	latest, previous := splitSnapshots(envs)
	assert.Equal(t, 1, fillFromStore(context.Background(), fakeSource(stored), inds, latest))
	off := &pipeline{chartsDir: filepath.Join(dir, "offline"), previous: previous}
	outs = off.runOffline(context.Background(), inds, latest)
	require.NoError(t, outs[0].Err)
	assert.FileExists(t, filepath.Join(dir, "offline", "ipi.png"))
}

func TestS3DefaultsFromEnv(t *testing.T) {
	t.Setenv("MIM_S3_BUCKET", "charts")
	t.Setenv("MIM_S3_PREFIX", "")
	t.Setenv("MIM_S3_ACCESS_KEY_ID", "minio")
	t.Setenv("MIM_S3_SECRET_ACCESS_KEY", "minio123")
	cfg := s3DefaultsFromEnv()
	assert.Equal(t, "charts", cfg.Bucket)
	assert.Equal(t, "mim", cfg.Prefix)
	assert.Equal(t, "minio", cfg.AccessKeyID)
	assert.Equal(t, "minio123", cfg.SecretAccessKey)
}

func TestMain(m *testing.M) {
	monitor.SetLogLevel("error")
	os.Exit(m.Run())
}
