// Package helix owns the geometric track model: an ordered set of hits with
// a fitted helix, or a line or plane when the hits do not constrain a curve.
//
// All fit quantities are expressed in the track's reference frame: K runs
// along the reference axis (the magnetic field direction) and the helix
// projects onto a circle in the (I, J) plane.
package helix

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/helixtrack/internal/tpc/geom"
	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

// Status classifies the current fit.
type Status int

const (
	// StatusBad means too few hits for any shape (fewer than three).
	StatusBad Status = iota
	StatusLine
	StatusPlane
	StatusHelix
)

func (s Status) String() string {
	switch s {
	case StatusBad:
		return "bad"
	case StatusLine:
		return "line"
	case StatusPlane:
		return "plane"
	case StatusHelix:
		return "helix"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Track is a track candidate or a finalized track.
type Track struct {
	ID    int
	Frame geom.Frame

	// Continuity is the fraction of the projected path covered by
	// consecutive hits; set when the track is finalized, -1 when unknown.
	Continuity float64

	hits []*hits.Hit
	fit  fitState
}

// NewTrack returns an empty track.
func NewTrack(id int, frame geom.Frame) *Track {
	return &Track{ID: id, Frame: frame, Continuity: -1}
}

// AddHit appends h and records the track's claim on it.
func (t *Track) AddHit(h *hits.Hit) {
	t.hits = append(t.hits, h)
	h.AddTrackCand(t.ID)
}

// RemoveHit drops h and its claim by this track. The fit is not updated.
func (t *Track) RemoveHit(h *hits.Hit) bool {
	for i, x := range t.hits {
		if x == h {
			t.hits = append(t.hits[:i], t.hits[i+1:]...)
			h.RemoveTrackCand(t.ID)
			return true
		}
	}
	return false
}

// NumHits returns the number of hits on the track.
func (t *Track) NumHits() int { return len(t.hits) }

// Hit returns the i-th hit.
func (t *Track) Hit(i int) *hits.Hit { return t.hits[i] }

// LastHit returns the last hit, or nil for an empty track.
func (t *Track) LastHit() *hits.Hit {
	if len(t.hits) == 0 {
		return nil
	}
	return t.hits[len(t.hits)-1]
}

// Hits returns a copy of the hit list in track order.
func (t *Track) Hits() []*hits.Hit {
	out := make([]*hits.Hit, len(t.hits))
	copy(out, t.hits)
	return out
}

// Status returns the classification of the last fit.
func (t *Track) Status() Status { return t.fit.status }

func (t *Track) IsBad() bool   { return t.fit.status == StatusBad }
func (t *Track) IsLine() bool  { return t.fit.status == StatusLine }
func (t *Track) IsPlane() bool { return t.fit.status == StatusPlane }
func (t *Track) IsHelix() bool { return t.fit.status == StatusHelix }

// Mean returns the charge-weighted mean hit position.
func (t *Track) Mean() r3.Vec { return hits.Mean(t.hits) }

// FinalizeHits stamps every hit with the track id as its only claim.
func (t *Track) FinalizeHits() {
	for _, h := range t.hits {
		h.Finalize(t.ID)
	}
}

// SortHits orders hits by travel length along the current fit, ascending
// when increasing is set. Ties keep their previous order.
func (t *Track) SortHits(increasing bool) {
	travel := make(map[*hits.Hit]float64, len(t.hits))
	for _, h := range t.hits {
		travel[h] = t.Map(h.Position).Z
	}
	sort.SliceStable(t.hits, func(a, b int) bool {
		ta, tb := travel[t.hits[a]], travel[t.hits[b]]
		if increasing {
			return ta < tb
		}
		return ta > tb
	})
}

func (t *Track) String() string {
	return fmt.Sprintf("track{#%d %s n=%d R=%.1f L=%.1f}", t.ID, t.fit.status, len(t.hits), t.HelixRadius(), t.TrackLength())
}
