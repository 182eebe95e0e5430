package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/publish"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/render"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/store"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

// snapshotSaver is the part of store.Postgres the pipeline writes to.
type snapshotSaver interface {
	SaveSnapshot(ctx context.Context, env *monitor.ResultEnvelope, ds *analysis.Dataset) error
}

// snapshotSource is the read side of store.Postgres.
type snapshotSource interface {
	LatestSnapshot(ctx context.Context, indicator string) (*monitor.ResultEnvelope, error)
}

// artefactPutter is the part of publish.S3Publisher the pipeline uploads with.
type artefactPutter interface {
	Key(id, runTag, name string) string
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// pipeline carries one run's settings through fetch → transform → plot for every indicator.
type pipeline struct {
	client      *monitor.Client
	chartsDir   string
	render      render.Options
	parquetDir  string
	compression string
	db          snapshotSaver
	s3          artefactPutter
	runTag      string
	// previous holds the last snapshot per indicator before this run, for revision checks.
	previous map[string]*monitor.ResultEnvelope
}

// outcome is the result of one indicator's pipeline.
type outcome struct {
	Indicator types.Indicator
	Dataset   *analysis.Dataset
	Summary   *analysis.Summary
	Revisions []analysis.Revision
	ChartPath string
	Err       error
}

// runLive fetches every indicator in order. A failing indicator never stops the others.
func (p *pipeline) runLive(ctx context.Context, inds []types.Indicator) []outcome {
	outs := make([]outcome, 0, len(inds))
	for _, ind := range inds {
		if ctx.Err() != nil {
			outs = append(outs, outcome{Indicator: ind, Err: ctx.Err()})
			continue
		}
		env, err := monitor.MonitorIndicator(ctx, p.client, ind)
		if err != nil {
			monitor.Errorf("[%s] fetch failed: %v", ind.ID, err)
			p.save(ctx, env, nil)
			outs = append(outs, outcome{Indicator: ind, Err: err})
			continue
		}
		out := p.process(ctx, ind, env.IndicatorResult, p.runTag)
		p.save(ctx, env, out.Dataset)
		outs = append(outs, out)
	}
	return outs
}

// runOffline rebuilds every indicator from the latest stored snapshot without network access.
func (p *pipeline) runOffline(ctx context.Context, inds []types.Indicator, latest map[string]*monitor.ResultEnvelope) []outcome {
	outs := make([]outcome, 0, len(inds))
	for _, ind := range inds {
		env, ok := latest[ind.ID]
		if !ok || env.IndicatorResult == nil {
			err := fmt.Errorf("%s: %w", ind.ID, analysis.ErrNoRecords)
			monitor.Warnf("[analysis] %v", err)
			outs = append(outs, outcome{Indicator: ind, Err: err})
			continue
		}
		tag := p.runTag
		if env.Meta != nil && env.Meta.RunTag != "" {
			tag = env.Meta.RunTag
		}
		outs = append(outs, p.process(ctx, ind, env.IndicatorResult, tag))
	}
	return outs
}

// process turns one successful fetch result into a summary, a chart and the optional exports.
// runTag names the run the result belongs to.
func (p *pipeline) process(ctx context.Context, ind types.Indicator, res *monitor.IndicatorResult, runTag string) outcome {
	out := outcome{Indicator: ind}
	ds, err := analysis.Prepare(ind, res)
	if err != nil {
		monitor.Errorf("[%s] transform failed: %v", ind.ID, err)
		out.Err = err
		return out
	}
	ds.RunTag = runTag
	out.Dataset = ds

	sum, err := analysis.Summarize(ds)
	if err != nil {
		monitor.Warnf("[%s] no summary: %v", ind.ID, err)
	} else {
		out.Summary = &sum
		monitor.Infof("[%s] Latest Data Used: %s", ind.ID, sum.String())
	}

	if prev := p.previous[ind.ID]; prev != nil && prev.IndicatorResult != nil {
		if pds, perr := analysis.Prepare(ind, prev.IndicatorResult); perr == nil {
			out.Revisions = analysis.CompareRevisions(pds, ds)
			for _, r := range out.Revisions {
				monitor.Infof("[%s] revised %s %s: %s -> %s", ind.ID, r.Date.Format("2006-01-02"), r.Field, fmtPtr(r.Old), fmtPtr(r.New))
			}
		}
	}

	if p.chartsDir != "" {
		path, png, err := p.writeChart(ds)
		if err != nil {
			monitor.Errorf("[%s] chart failed: %v", ind.ID, err)
			out.Err = err
			return out
		}
		out.ChartPath = path
		p.upload(ctx, ind.ID, runTag, render.FileName(ind.ID), png, "image/png")
	}

	if p.parquetDir != "" || p.s3 != nil {
		data, n, err := publish.EncodeParquet(ds, runTag, p.compression)
		if err != nil {
			monitor.Warnf("[%s] parquet export skipped: %v", ind.ID, err)
			return out
		}
		name := strings.ToLower(ind.ID) + ".parquet"
		if p.parquetDir != "" {
			if err := os.MkdirAll(p.parquetDir, 0o755); err != nil {
				monitor.Errorf("[%s] create parquet dir: %v", ind.ID, err)
			} else if err := os.WriteFile(filepath.Join(p.parquetDir, name), data, 0o644); err != nil {
				monitor.Errorf("[%s] write parquet: %v", ind.ID, err)
			} else {
				monitor.Infof("[%s] wrote %d observations to %s", ind.ID, n, filepath.Join(p.parquetDir, name))
			}
		}
		p.upload(ctx, ind.ID, runTag, name, data, "application/vnd.apache.parquet")
	}
	return out
}

func (p *pipeline) writeChart(ds *analysis.Dataset) (string, []byte, error) {
	img, err := render.RenderIndicator(ds, p.render)
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		return "", nil, fmt.Errorf("png encode: %w", err)
	}
	if err := os.MkdirAll(p.chartsDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create charts dir: %w", err)
	}
	path := filepath.Join(p.chartsDir, render.FileName(ds.Indicator.ID))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", nil, fmt.Errorf("write %s: %w", path, err)
	}
	monitor.Infof("[%s] chart saved: %s", ds.Indicator.ID, path)
	return path, buf.Bytes(), nil
}

func (p *pipeline) save(ctx context.Context, env *monitor.ResultEnvelope, ds *analysis.Dataset) {
	if p.db == nil || env == nil {
		return
	}
	if err := p.db.SaveSnapshot(ctx, env, ds); err != nil {
		monitor.Errorf("[store] %v", err)
	}
}

func (p *pipeline) upload(ctx context.Context, id, runTag, name string, body []byte, contentType string) {
	if p.s3 == nil {
		return
	}
	if err := p.s3.Put(ctx, p.s3.Key(id, runTag, name), body, contentType); err != nil {
		monitor.Errorf("[publish] %v", err)
	}
}

// fillFromStore adds the newest stored snapshot of every indicator missing from m
// and returns how many were added. Indicators never stored are skipped quietly.
func fillFromStore(ctx context.Context, src snapshotSource, inds []types.Indicator, m map[string]*monitor.ResultEnvelope) int {
	n := 0
	for _, ind := range inds {
		if _, ok := m[ind.ID]; ok {
			continue
		}
		env, err := src.LatestSnapshot(ctx, ind.ID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				monitor.Warnf("[store] %v", err)
			}
			continue
		}
		m[ind.ID] = env
		n++
	}
	return n
}

func fmtPtr(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

// allFailed reports whether no indicator produced a dataset.
func allFailed(outs []outcome) bool {
	for _, o := range outs {
		if o.Err == nil {
			return false
		}
	}
	return true
}

// selectIndicators narrows the catalogue to ids (comma separated) and refuses an empty selection.
func selectIndicators(all []types.Indicator, ids string) ([]types.Indicator, error) {
	out, err := types.Select(all, ids)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no indicators selected")
	}
	return out, nil
}
