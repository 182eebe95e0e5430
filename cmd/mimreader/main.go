// mimreader prints the latest summary per indicator from a results JSONL file,
// and from the Postgres store when -database-url is set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/store"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

func main() {
	var file, config, id, dbURL string
	var max int
	flag.StringVar(&file, "file", monitor.DefaultResultsFile, "Path to the results JSONL file")
	flag.StringVar(&config, "config", "", "Indicator catalogue YAML (empty = built-in defaults)")
	flag.StringVar(&id, "indicator", "", "Optional indicator filter (exact id)")
	flag.IntVar(&max, "n", 5000, "Max snapshots to load")
	flag.StringVar(&dbURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres URL to read stored snapshots from (optional)")
	flag.Parse()
	monitor.SetLogLevel("warn")

	inds, err := types.LoadCatalogue(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	envs, err := analysis.LoadSnapshots(file, monitor.SchemaVersion, id, max)
	if err != nil && dbURL == "" {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	lines, failed := summarize(inds, envs)
	if err == nil {
		fmt.Printf("Total snapshots: %d\n", len(envs))
		for _, l := range lines {
			fmt.Println(l)
		}
	}

	if dbURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		db, derr := store.Open(ctx, dbURL)
		if derr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", derr)
			os.Exit(1)
		}
		defer db.Close()
		if id != "" {
			inds, _ = types.Select(inds, id)
		}
		dbLines, dbFailed := summarizeStore(ctx, db, inds)
		fmt.Println("Database:")
		for _, l := range dbLines {
			fmt.Println(l)
		}
		lines = append(lines, dbLines...)
		failed += dbFailed
	}
	if failed > 0 && len(lines) == failed {
		os.Exit(1)
	}
}

// storeReader is the read side of store.Postgres.
type storeReader interface {
	LatestSnapshot(ctx context.Context, indicator string) (*monitor.ResultEnvelope, error)
	Observations(ctx context.Context, indicator, field string) ([]store.Observation, error)
}

// summarizeStore returns one line per catalogue indicator describing its newest stored snapshot
// and the stored history of its primary field.
func summarizeStore(ctx context.Context, db storeReader, inds []types.Indicator) ([]string, int) {
	var out []string
	failed := 0
	for _, ind := range inds {
		env, err := db.LatestSnapshot(ctx, ind.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				out = append(out, fmt.Sprintf("%s: nothing stored", ind.ID))
			} else {
				out = append(out, fmt.Sprintf("%s: %v", ind.ID, err))
			}
			failed++
			continue
		}
		line := ind.ID + ":"
		if env.Meta != nil && env.Meta.RunTag != "" {
			line += " run " + env.Meta.RunTag + ","
		}
		if ds, err := analysis.Prepare(ind, env.IndicatorResult); err != nil {
			line += fmt.Sprintf(" %v", err)
		} else if sum, err := analysis.Summarize(ds); err != nil {
			line += fmt.Sprintf(" %v", err)
		} else {
			line += " " + sum.String()
		}
		field := analysis.PrimaryField(ind)
		obs, err := db.Observations(ctx, ind.ID, field)
		switch {
		case err != nil:
			line += fmt.Sprintf("; history: %v", err)
		case len(obs) > 0:
			first, last := obs[0], obs[len(obs)-1]
			line += fmt.Sprintf("; %d stored %s periods %s..%s (last %.2f)", len(obs), field,
				first.Period.Format("2006-01"), last.Period.Format("2006-01"), last.Value)
		}
		out = append(out, line)
	}
	return out, failed
}

// summarize returns one line per indicator (sorted by id) and how many of them could not be rebuilt.
func summarize(inds []types.Indicator, envs []*monitor.ResultEnvelope) ([]string, int) {
	byID := make(map[string]types.Indicator, len(inds))
	for _, ind := range inds {
		byID[ind.ID] = ind
	}
	counts := map[string]int{}
	for _, e := range envs {
		counts[e.IndicatorResult.Indicator]++
	}
	latest := analysis.LatestByIndicator(envs)
	ids := make([]string, 0, len(latest))
	for k := range latest {
		ids = append(ids, k)
	}
	sort.Strings(ids)

	var out []string
	failed := 0
	for _, k := range ids {
		ind, ok := byID[k]
		if !ok {
			out = append(out, fmt.Sprintf("%s: %d snapshot(s), not in catalogue", k, counts[k]))
			failed++
			continue
		}
		ds, err := analysis.Prepare(ind, latest[k].IndicatorResult)
		if err != nil {
			out = append(out, fmt.Sprintf("%s: %d snapshot(s), %v", k, counts[k], err))
			failed++
			continue
		}
		sum, err := analysis.Summarize(ds)
		if err != nil {
			out = append(out, fmt.Sprintf("%s: %d snapshot(s), %v", k, counts[k], err))
			failed++
			continue
		}
		out = append(out, fmt.Sprintf("%s: %d snapshot(s), %s", k, counts[k], sum.String()))
	}
	return out, failed
}
