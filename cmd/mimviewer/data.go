package main

import (
	"context"
	"fmt"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

// viewData is everything the viewer shows, in catalogue order.
type viewData struct {
	inds      []types.Indicator
	datasets  map[string]*analysis.Dataset
	summaries map[string]analysis.Summary
	failed    map[string]error
	live      bool
}

// ordered returns the datasets that could be rebuilt, in catalogue order.
func (d *viewData) ordered() []*analysis.Dataset {
	var out []*analysis.Dataset
	for _, ind := range d.inds {
		if ds := d.datasets[ind.ID]; ds != nil {
			out = append(out, ds)
		}
	}
	return out
}

// newViewData rebuilds the dataset of every indicator from its envelope in latest.
// failed carries errors already known for some indicators (e.g. a failed live fetch).
func newViewData(inds []types.Indicator, latest map[string]*monitor.ResultEnvelope, failed map[string]error) *viewData {
	d := &viewData{
		inds:      inds,
		datasets:  map[string]*analysis.Dataset{},
		summaries: map[string]analysis.Summary{},
		failed:    map[string]error{},
	}
	for _, ind := range inds {
		if err, ok := failed[ind.ID]; ok {
			d.failed[ind.ID] = err
			continue
		}
		env, ok := latest[ind.ID]
		if !ok || env.IndicatorResult == nil {
			d.failed[ind.ID] = analysis.ErrNoRecords
			continue
		}
		ds, err := analysis.Prepare(ind, env.IndicatorResult)
		if err != nil {
			d.failed[ind.ID] = err
			continue
		}
		if env.Meta != nil {
			ds.RunTag = env.Meta.RunTag
		}
		d.datasets[ind.ID] = ds
		if sum, err := analysis.Summarize(ds); err == nil {
			d.summaries[ind.ID] = sum
		}
	}
	return d
}

// loadData reads up to n snapshots from filePath and rebuilds the newest dataset of every catalogue indicator.
func loadData(filePath, configPath string, n int) (*viewData, error) {
	inds, err := types.LoadCatalogue(configPath)
	if err != nil {
		return nil, err
	}
	envs, err := analysis.LoadSnapshots(filePath, monitor.SchemaVersion, "", n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return newViewData(inds, analysis.LatestByIndicator(envs), nil), nil
}

// fetchLive fetches every indicator now. Each result is also appended to the results file.
func fetchLive(ctx context.Context, c *monitor.Client, inds []types.Indicator) *viewData {
	latest := map[string]*monitor.ResultEnvelope{}
	failed := map[string]error{}
	for _, ind := range inds {
		env, err := monitor.MonitorIndicator(ctx, c, ind)
		if err != nil {
			monitor.Warnf("[viewer] live fetch %v", err)
			failed[ind.ID] = err
			continue
		}
		latest[ind.ID] = env
	}
	d := newViewData(inds, latest, failed)
	d.live = true
	return d
}
