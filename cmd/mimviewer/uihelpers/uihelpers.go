package uihelpers

import (
	"path/filepath"
	"strings"
)

// ComputeChartDimensions applies width/height clamp rules used for charts.
// Input: desired raw width (e.g., canvas width). Returns clamped width & height.
func ComputeChartDimensions(rawW int) (int, int) {
	w := rawW
	if w < 800 {
		w = 800
	}
	h := int(float32(w) * 0.5)
	if h < 400 {
		h = 400
	}
	if h > 720 {
		h = 720
	}
	return w, h
}

// ChartWidthForCanvas uses ~95% of the canvas width minus a small margin for scrollbars/padding.
func ChartWidthForCanvas(canvasW float32) int {
	return int(canvasW*95/100) - 12
}

// TruncatePath shortens p to about n characters, always keeping the base name.
func TruncatePath(p string, n int) string {
	if len(p) <= n {
		return p
	}
	base := filepath.Base(p)
	if len(base)+4 >= n {
		return "..." + base
	}
	dir := filepath.Dir(p)
	left := n - len(base) - 4
	if len(dir) > left {
		dir = dir[:left]
	}
	return dir + "/..." + base
}

// ParseRecent splits the newline separated recent-files preference.
func ParseRecent(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AddRecent puts path first, drops duplicates and keeps at most max entries.
func AddRecent(list []string, path string, max int) []string {
	out := []string{path}
	for _, f := range list {
		if f != path && len(out) < max {
			out = append(out, f)
		}
	}
	return out
}

// TabTitle is the label of an indicator tab; failed indicators get a marker.
func TabTitle(id string, failed bool) string {
	t := strings.ToUpper(id)
	if failed {
		t += " (!)"
	}
	return t
}
