package finder

import (
	"math"

	"github.com/banshee-data/helixtrack/internal/tpc/helix"
)

// continuityGapScale is the largest projected hit-to-hit step, in pad
// displacements, that still counts as continuous.
const continuityGapScale = 1.2

// TrackContinuity returns the fraction of the projected transverse path of t
// made of steps no longer than a pad gap, or -1 when it cannot be measured.
// Hits are left sorted by increasing travel length.
func (f *Finder) TrackContinuity(t *helix.Track) float64 {
	if t.NumHits() < 2 {
		return -1
	}
	t.SortHits(true)

	maxGap := continuityGapScale * f.pool.PadDisplacement()
	var total, continuous float64
	pi, pj, _ := f.frame.IJK(t.ProjectOnHelix(t.Hit(0).Position))
	for n := 1; n < t.NumHits(); n++ {
		i, j, _ := f.frame.IJK(t.ProjectOnHelix(t.Hit(n).Position))
		d := math.Hypot(i-pi, j-pj)
		total += d
		if d <= maxGap {
			continuous += d
		}
		pi, pj = i, j
	}
	if total == 0 {
		return -1
	}
	return continuous / total
}
