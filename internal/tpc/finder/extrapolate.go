package finder

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/helixtrack/internal/tpc/helix"
	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

// extrapolationLengthFactor bounds how far past an end the finder keeps
// searching without a hit, in units of the current track length.
const extrapolationLengthFactor = 3

func extrapolate(t *helix.Track, dir Direction, length float64) r3.Vec {
	if dir == GrowHead {
		return t.ExtrapolateHead(length)
	}
	return t.ExtrapolateTail(length)
}

// extend grows t from one end by stepping along the fitted model and
// collecting pooled hits near each step. The direction is flipped whenever
// a refit reverses the helicity, so the search keeps following the same
// physical end. It returns the direction in effect when the search stops.
func (f *Finder) extend(t *helix.Track, dir Direction) Direction {
	if t.NumHits() < f.cfg.CutMinNumHitsFinalTrack {
		return dir
	}

	// The first search is at the end itself.
	step := f.cfg.ExtrapolationStep
	length := 0.0
	iter := 0
	for ; iter < f.cfg.ExtrapolationMaxIterations; iter++ {
		helicity := t.Helicity()
		found, inside := f.buildByExtrapolation(t, extrapolate(t, dir, length))
		if !inside {
			break
		}
		if found {
			length = step
			if t.Helicity() != helicity {
				dir = dir.Flip()
			}
			continue
		}
		length += step
		if length > extrapolationLengthFactor*t.TrackLength() {
			break
		}
	}
	if iter == f.cfg.ExtrapolationMaxIterations {
		opsf("track %d: extrapolation toward %s stopped after %d iterations", t.ID, dir, iter)
	}
	return dir
}

// buildByExtrapolation pulls the pooled hits around pos and adds those that
// correlate with t, refitting after each. inside is false when pos is off
// the pad plane.
func (f *Finder) buildByExtrapolation(t *helix.Track, pos r3.Vec) (found, inside bool) {
	i, j, _ := f.frame.IJK(pos)
	if !f.pool.InBoundary(i, j) {
		return false, false
	}

	rms := math.Max(f.cfg.ExtrapolationRMSScale*t.RMSW(), f.cfg.ExtrapolationRMSFloor)
	padRange := int(rms / f.pool.PadDisplacement())

	f.pool.PullNeighborsAt(i, j, padRange, f.cand)
	f.cand.SortByCharge()
	for f.cand.Len() > 0 {
		h := f.cand.PopLast()
		if h.ParentTrackID() < 0 && f.cfg.CorrelateWithConfirmedTrack(t, h, 1) > 0 {
			t.AddHit(h)
			t.Fit()
			found = true
			continue
		}
		f.bad.Add(h)
	}
	return found, true
}

// buildAndConfirm re-checks every hit of t against the fit, walking from the
// end opposite dir, drops those that no longer correlate and then extends
// the track toward dir. ok is false when too few hits survive.
func (f *Finder) buildAndConfirm(t *helix.Track, dir Direction) (Direction, bool) {
	t.SortHits(dir == GrowTail)
	snapshot := t.Hits()
	for n := len(snapshot) - 1; n >= 1; n-- {
		h := snapshot[n]
		if f.cfg.CorrelateWithConfirmedTrack(t, h, 1) > 0 {
			continue
		}
		helicity := t.Helicity()
		t.RemoveHit(h)
		f.discard(h)
		t.Fit()
		if t.Helicity() != helicity {
			dir = dir.Flip()
		}
	}

	dir = f.extend(t, dir)
	if t.NumHits() < f.cfg.CutMinNumHitsFinalTrack {
		return dir, false
	}
	return dir, true
}

// discard parks a hit dropped from the current track in the matching
// rejection buffer.
func (f *Finder) discard(h *hits.Hit) {
	if h.IsAux() {
		f.auxBad.Add(h)
		return
	}
	f.bad.Add(h)
}
