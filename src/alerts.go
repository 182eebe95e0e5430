package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
)

type alertReport struct {
	GeneratedAt   string              `json:"generated_at"`
	SchemaVersion int                 `json:"schema_version"`
	RunTag        string              `json:"run_tag"`
	AnalyzeOnly   bool                `json:"analyze_only,omitempty"`
	Summaries     []analysis.Summary  `json:"summaries"`
	Revisions     []analysis.Revision `json:"revisions,omitempty"`
	Failed        map[string]string   `json:"failed,omitempty"`
	Alerts        []string            `json:"alerts"`
	Thresholds    analysis.Thresholds `json:"thresholds"`
}

// buildAlertReport collects summaries, revisions and failures of a run and evaluates the alert thresholds.
func buildAlertReport(schemaVersion int, runTag string, analyzeOnly bool, outs []outcome, th analysis.Thresholds) alertReport {
	rep := alertReport{
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		SchemaVersion: schemaVersion,
		RunTag:        runTag,
		AnalyzeOnly:   analyzeOnly,
		Summaries:     []analysis.Summary{},
		Thresholds:    th,
	}
	for _, o := range outs {
		if o.Err != nil {
			if rep.Failed == nil {
				rep.Failed = map[string]string{}
			}
			rep.Failed[o.Indicator.ID] = o.Err.Error()
		}
		if o.Summary != nil {
			rep.Summaries = append(rep.Summaries, *o.Summary)
		}
		rep.Revisions = append(rep.Revisions, o.Revisions...)
	}
	rep.Alerts = analysis.EvaluateAlerts(rep.Summaries, th)
	rep.Alerts = append(rep.Alerts, analysis.RevisionAlerts(rep.Revisions)...)
	return rep
}

func writeAlertJSON(path string, rep alertReport) error {
	if rep.Alerts == nil {
		rep.Alerts = []string{}
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal alert report: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write alerts json: %w", err)
	}
	fmt.Printf("[analysis] wrote alert report JSON: %s\n", path)
	return nil
}

// deriveDefaultAlertsPath builds a default path for alerts JSON at repository root (parent of src if running inside src).
func deriveDefaultAlertsPath(runTag string) string {
	name := fmt.Sprintf("alerts_%s.json", runTag)
	cwd, err := os.Getwd()
	if err != nil {
		return name
	}
	if filepath.Base(cwd) == "src" {
		return filepath.Join(filepath.Dir(cwd), name)
	}
	return filepath.Join(cwd, name)
}
