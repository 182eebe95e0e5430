package render

import "math"

// ChangeLabel is where the MoM and YoY value labels of one month go.
// A NaN position means that label is not drawn.
type ChangeLabel struct {
	Index int
	MoMY  float64
	YoYY  float64
}

// ChangeLabelOffsets returns the vertical offsets (in percentage points) applied
// to the MoM and YoY labels of one month so they do not overlap.
// ok is false when both values are missing.
func ChangeLabelOffsets(mom, yoy float64) (momOff, yoyOff float64, ok bool) {
	hasMoM, hasYoY := !math.IsNaN(mom), !math.IsNaN(yoy)
	momOff, yoyOff = 0, 0.5
	switch {
	case !hasMoM && !hasYoY:
		return 0, 0, false
	case hasMoM && hasYoY:
		if math.Abs(mom-yoy) < 1 {
			if mom > yoy {
				momOff, yoyOff = 2, -2
			} else {
				momOff, yoyOff = -2, 2
			}
		} else if mom > yoy {
			momOff, yoyOff = 1.2, -1.2
		} else {
			momOff, yoyOff = -1.2, 1.2
		}
	case hasMoM:
		momOff = 1.5
		if mom > 0 {
			momOff = -1.5
		}
	default:
		yoyOff = 1.5
		if yoy > 0 {
			yoyOff = -1.5
		}
	}
	return momOff, yoyOff, true
}

// PlaceChangeLabels positions the MoM and YoY labels for every month that has
// at least one of the two values.
func PlaceChangeLabels(mom, yoy []float64) []ChangeLabel {
	n := len(mom)
	if len(yoy) < n {
		n = len(yoy)
	}
	out := make([]ChangeLabel, 0, n)
	for i := 0; i < n; i++ {
		momOff, yoyOff, ok := ChangeLabelOffsets(mom[i], yoy[i])
		if !ok {
			continue
		}
		out = append(out, ChangeLabel{Index: i, MoMY: mom[i] + momOff, YoYY: yoy[i] + yoyOff})
	}
	return out
}

// ClipLabel keeps a label anchor at least margin below the top of its axis.
func ClipLabel(y, top, margin float64) float64 {
	return math.Min(y, top-margin)
}
