// Package store persists indicator snapshots and their per-period observations in Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
)

// ErrNotFound is returned when no snapshot exists for an indicator.
var ErrNotFound = errors.New("snapshot not found")

// Postgres is a snapshot store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Observation is one stored value of one field for one period.
type Observation struct {
	Period time.Time
	Field  string
	Value  float64
	RunID  string
}

// Open connects to databaseURL with every session in UTC and checks the connection.
func Open(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.ConnConfig.RuntimeParams["timezone"] = "UTC"
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

// SaveSnapshot stores the envelope and, when ds is non-nil, every finite raw
// value of ds.Full as observations of the envelope's run. Saving the same run
// twice replaces the earlier rows.
func (p *Postgres) SaveSnapshot(ctx context.Context, env *monitor.ResultEnvelope, ds *analysis.Dataset) error {
	if env == nil || env.Meta == nil || env.IndicatorResult == nil {
		return errors.New("incomplete envelope")
	}
	res := env.IndicatorResult
	runID := env.Meta.RunID
	if runID == "" {
		return fmt.Errorf("%s: envelope has no run id", res.Indicator)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO snapshots (run_id, indicator, run_tag, schema_version, fetched_at, error, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, indicator) DO UPDATE
		SET run_tag = EXCLUDED.run_tag, schema_version = EXCLUDED.schema_version,
		    fetched_at = EXCLUDED.fetched_at, error = EXCLUDED.error,
		    payload = EXCLUDED.payload, recorded_at = NOW()`,
		runID, res.Indicator, env.Meta.RunTag, env.Meta.SchemaVersion, res.FetchedAtUTC, res.Error, payload)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if ds != nil && ds.Full.Len() > 0 {
		batch := &pgx.Batch{}
		for _, row := range ds.Full.Rows {
			for _, field := range analysis.RawFields(ds.Indicator) {
				v := row.Get(field)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				batch.Queue(`
					INSERT INTO observations (indicator, period, field, run_id, value)
					VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (indicator, period, field, run_id) DO UPDATE SET value = EXCLUDED.value`,
					res.Indicator, row.Date, field, runID, v)
			}
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to insert observations: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	monitor.Debugf("[store] saved %s run=%s", res.Indicator, runID)
	return nil
}

// LatestSnapshot returns the most recently stored successful envelope for an indicator.
func (p *Postgres) LatestSnapshot(ctx context.Context, indicator string) (*monitor.ResultEnvelope, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx, `
		SELECT payload FROM snapshots
		WHERE indicator = $1 AND error = ''
		ORDER BY recorded_at DESC
		LIMIT 1`, indicator).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", indicator, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	var env monitor.ResultEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &env, nil
}

// Observations returns the newest stored value of field for every period of an indicator, oldest period first.
func (p *Postgres) Observations(ctx context.Context, indicator, field string) ([]Observation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT ON (period) period, field, value, run_id
		FROM observations
		WHERE indicator = $1 AND field = $2
		ORDER BY period, recorded_at DESC`, indicator, field)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()
	var out []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.Period, &o.Field, &o.Value, &o.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		o.Period = o.Period.UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}
