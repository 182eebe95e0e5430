package analysis

import (
	"fmt"
	"time"
)

// monthAbbrev follows the DOSM chart convention (Malay "Mac" for March).
var monthAbbrev = [12]string{"Jan", "Feb", "Mac", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthLabel returns a two line axis label such as "Mac\n2024".
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s\n%d", monthAbbrev[t.Month()-1], t.Year())
}

// MonthLabels maps MonthLabel over dates.
func MonthLabels(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = MonthLabel(d)
	}
	return out
}

// QuarterLabels returns n consecutive labels "YYYY Qn" starting at the given period.
func QuarterLabels(startYear, startQuarter, n int) []string {
	out := make([]string, 0, n)
	y, q := startYear, startQuarter
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("%d Q%d", y, q))
		q++
		if q > 4 {
			q = 1
			y++
		}
	}
	return out
}

// QuarterStart returns the first day of the quarter in UTC.
func QuarterStart(year, quarter int) time.Time {
	return time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
}
