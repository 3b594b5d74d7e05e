// Package hits owns the measured TPC hit and the hit buffers that move hits
// between the pool, the track finder and the tracks.
//
// A hit's physical attributes never change after construction. Its
// reconstruction state is the list of track candidates claiming it and,
// once a track is finalized, the final track id.
package hits

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Module distinguishes hits from the main pad detector from hits recorded
// by the auxiliary (forward) detector.
type Module int

const (
	ModuleMain Module = iota
	ModuleAux
)

func (m Module) String() string {
	switch m {
	case ModuleMain:
		return "main"
	case ModuleAux:
		return "aux"
	}
	return fmt.Sprintf("module(%d)", int(m))
}

// Claim sentinels returned by ParentTrackID.
const (
	// Unclaimed means no track has ever claimed the hit.
	Unclaimed = -2
	// Released marks a hit given back by an abandoned track.
	Released = -1
)

// NoTrack is the TrackID of a hit that is not part of a finalized track.
const NoTrack = -1

// Hit is a single pad measurement.
type Hit struct {
	ID         int     // unique within (event, module)
	Row        int     // pad row index
	Layer      int     // pad layer index
	Position   r3.Vec  // detector frame position
	Charge     float64 // deposited charge (arbitrary units)
	Module     Module
	DetectorID int // detector system id the hit was recorded by

	// TrackID is the final track id, NoTrack until the track is finalized.
	TrackID int

	cands []int
}

// New returns a main-detector hit with no claims.
func New(id, row, layer int, pos r3.Vec, charge float64) *Hit {
	return &Hit{
		ID:       id,
		Row:      row,
		Layer:    layer,
		Position: pos,
		Charge:   charge,
		Module:   ModuleMain,
		TrackID:  NoTrack,
	}
}

// NewAux returns an auxiliary-detector hit with no claims.
func NewAux(id, detectorID int, pos r3.Vec, charge float64) *Hit {
	return &Hit{
		ID:         id,
		Position:   pos,
		Charge:     charge,
		Module:     ModuleAux,
		DetectorID: detectorID,
		TrackID:    NoTrack,
	}
}

// IsAux reports whether the hit comes from the auxiliary detector.
func (h *Hit) IsAux() bool { return h.Module == ModuleAux }

// AddTrackCand records a claim by trackID (or Released).
func (h *Hit) AddTrackCand(trackID int) {
	h.cands = append(h.cands, trackID)
}

// RemoveTrackCand drops the first claim equal to trackID.
func (h *Hit) RemoveTrackCand(trackID int) bool {
	for i, id := range h.cands {
		if id == trackID {
			h.cands = append(h.cands[:i], h.cands[i+1:]...)
			return true
		}
	}
	return false
}

// ClearTrackCands drops every claim.
func (h *Hit) ClearTrackCands() { h.cands = h.cands[:0] }

// NumTrackCands returns the number of claims, release markers included.
func (h *Hit) NumTrackCands() int { return len(h.cands) }

// TrackCands returns a copy of the claim list.
func (h *Hit) TrackCands() []int {
	out := make([]int, len(h.cands))
	copy(out, h.cands)
	return out
}

// ParentTrackID resolves the claim list: Unclaimed when empty, Released when
// only release markers are present, otherwise the last claiming track id.
func (h *Hit) ParentTrackID() int {
	if len(h.cands) == 0 {
		return Unclaimed
	}
	parent := Released
	for _, id := range h.cands {
		if id != Released {
			parent = id
		}
	}
	return parent
}

// Finalize makes trackID the hit's only claim and final track id.
func (h *Hit) Finalize(trackID int) {
	h.cands = append(h.cands[:0], trackID)
	h.TrackID = trackID
}

// Reset clears all reconstruction state.
func (h *Hit) Reset() {
	h.cands = h.cands[:0]
	h.TrackID = NoTrack
}

func (h *Hit) String() string {
	return fmt.Sprintf("hit{%s #%d pad=(%d,%d) q=%.1f}", h.Module, h.ID, h.Row, h.Layer, h.Charge)
}
