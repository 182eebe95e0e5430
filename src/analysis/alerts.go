package analysis

import (
	"fmt"
	"math"
)

// Thresholds are absolute percentage moves that raise an alert; 0 disables a check.
type Thresholds struct {
	MoMPct float64 `json:"mom_pct"`
	YoYPct float64 `json:"yoy_pct"`
}

// EvaluateAlerts flags the latest MoM and YoY moves whose magnitude reaches the thresholds.
// Alerts are short strings in the form "<indicator> <metric> <value> >= <threshold>".
func EvaluateAlerts(summaries []Summary, th Thresholds) []string {
	alerts := []string{}
	for _, s := range summaries {
		if th.MoMPct > 0 && s.MoMPct != nil && math.Abs(*s.MoMPct) >= th.MoMPct {
			alerts = append(alerts, fmt.Sprintf("%s mom_change %+.1f%% >= %.1f%% (%s)", s.Indicator, *s.MoMPct, th.MoMPct, s.Period))
		}
		if th.YoYPct > 0 && s.YoYPct != nil && math.Abs(*s.YoYPct) >= th.YoYPct {
			alerts = append(alerts, fmt.Sprintf("%s yoy_change %+.1f%% >= %.1f%% (%s)", s.Indicator, *s.YoYPct, th.YoYPct, s.Period))
		}
	}
	return alerts
}

// RevisionAlerts reports one alert per indicator that had revised history.
func RevisionAlerts(revs []Revision) []string {
	counts := map[string]int{}
	var order []string
	for _, r := range revs {
		if counts[r.Indicator] == 0 {
			order = append(order, r.Indicator)
		}
		counts[r.Indicator]++
	}
	out := make([]string, 0, len(order))
	for _, id := range order {
		out = append(out, fmt.Sprintf("%s revised %d value(s)", id, counts[id]))
	}
	return out
}
