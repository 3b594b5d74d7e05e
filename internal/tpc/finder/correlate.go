package finder

import (
	"math"

	"github.com/banshee-data/helixtrack/internal/tpc/helix"
	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

// candidateRMSFactor scales the clamped longitudinal RMS into the
// line/plane acceptance cut.
const candidateRMSFactor = 3

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// CorrelateWithConfirmedTrack scores h against a fitted track. The result
// is 0 when the hit is rejected and in (0, 1] otherwise, higher meaning
// closer to the helix. rScale widens (>1) or narrows the window.
func (c Config) CorrelateWithConfirmedTrack(t *helix.Track, h *hits.Hit, rScale float64) float64 {
	scale := rScale * c.DefaultScale
	if length := t.TrackLength(); length < c.CorrelationLengthRef {
		scale += (c.CorrelationLengthRef - length) / c.CorrelationLengthRef
	}
	cutW := scale * clamp(t.RMSW(), c.TrackWCutLL, c.TrackWCutHL)
	cutH := scale * clamp(t.RMSH(), c.TrackHCutLL, c.TrackHCutHL)

	qHead := t.Map(t.PositionAtHead())
	qTail := t.Map(t.PositionAtTail())
	q := t.Map(h.Position)

	// Reject hits more than a quarter turn beyond either end, where the
	// helix may be wrapping back onto itself.
	if qHead.Z > qTail.Z {
		if beyondQuarterTurn(t, q.Z-qHead.Z) || beyondQuarterTurn(t, qTail.Z-q.Z) {
			return 0
		}
	} else {
		if beyondQuarterTurn(t, q.Z-qTail.Z) || beyondQuarterTurn(t, qHead.Z-q.Z) {
			return 0
		}
	}

	dr := math.Abs(q.X)
	if dr < cutW && math.Abs(q.Y) < cutH {
		return (cutW - dr) / cutW
	}
	return 0
}

// beyondQuarterTurn reports whether a hit dLength past a track end is both
// further than half the track length and more than a quarter turn away.
func beyondQuarterTurn(t *helix.Track, dLength float64) bool {
	if dLength <= 0 || dLength <= 0.5*t.TrackLength() {
		return false
	}
	return math.Abs(t.AlphaAtTravelLength(dLength)) > 0.5*math.Pi
}

// CorrelateWithCandidateTrack scores h against a track that has no helix
// yet. It returns 1 to accept and 0 to reject; a hit claimed by any track
// is always rejected.
func (c Config) CorrelateWithCandidateTrack(t *helix.Track, h *hits.Hit) float64 {
	if h.NumTrackCands() != 0 {
		return 0
	}
	if !c.inExpectedTrackPath(t, h) {
		return 0
	}

	switch t.Status() {
	case helix.StatusBad:
		return 1
	case helix.StatusLine:
		perp := t.PerpLine(h.Position)
		rmsCut := candidateRMSFactor * clamp(t.RMSH(), c.TrackHCutLL, c.TrackHCutHL)
		if math.Abs(perp.K()) > rmsCut {
			return 0
		}
		perp.SetK(0)
		if perp.Mag() < c.LineTransverseCut {
			return 1
		}
	case helix.StatusPlane:
		rmsCut := candidateRMSFactor * clamp(t.RMSH(), c.TrackHCutLL, c.TrackHCutHL)
		if t.PerpPlane(h.Position).Mag() < rmsCut {
			return 1
		}
	}
	return 0
}

// inExpectedTrackPath reports whether the K step from h to at least one
// track hit on another pad is reachable given that hit's dip angle.
func (c Config) inExpectedTrackPath(t *helix.Track, h *hits.Hit) bool {
	hi, hj, hk := t.Frame.IJK(h.Position)
	for n := 0; n < t.NumHits(); n++ {
		th := t.Hit(n)
		if th.Row == h.Row && th.Layer == h.Layer {
			continue
		}
		ti, tj, tk := t.Frame.IJK(th.Position)
		var tanDip float64
		if tr := math.Hypot(ti, tj); tr > 0 {
			tanDip = math.Abs(tk) / tr
		}
		dkExpected := c.DkExpectedScale * math.Hypot(hi-ti, hj-tj) * tanDip
		if dkExpected < c.CutDkInExpectedTrackPath {
			dkExpected = c.CutDkInExpectedTrackPath
		}
		if math.Abs(hk-tk) < dkExpected {
			return true
		}
	}
	return false
}
