package helix

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/helixtrack/internal/testutil"
	"github.com/banshee-data/helixtrack/internal/tpc/geom"
	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

func trackOf(hs []*hits.Hit) *Track {
	tr := NewTrack(0, geom.NewFrame(geom.AxisZ))
	for _, h := range hs {
		tr.AddHit(h)
	}
	return tr
}

func hitAt(id int, x, y, z float64) *hits.Hit {
	return hits.New(id, 0, 0, r3.Vec{X: x, Y: y, Z: z}, 1)
}

func TestFit_RecoversCleanArc(t *testing.T) {
	arc := testutil.CleanArc()
	tr := trackOf(arc.Hits(8))
	tr.Fit()

	require.True(t, tr.IsHelix(), "status %s", tr.Status())
	assert.InDelta(t, arc.Radius, tr.HelixRadius(), 1e-6)
	ci, cj := tr.HelixCenter()
	assert.InDelta(t, arc.CenterX, ci, 1e-6)
	assert.InDelta(t, arc.CenterY, cj, 1e-6)
	assert.InDelta(t, 0, tr.RMSW(), 1e-6)
	assert.InDelta(t, 0, tr.RMSH(), 1e-6)
	assert.Equal(t, 1, tr.Helicity(), "head is the outer end")

	phi0 := math.Asin(arc.X0 / arc.Radius)
	phi1 := math.Asin((arc.X0 + arc.Step*float64(arc.N-1)) / arc.Radius)
	wantLen := (phi1 - phi0) * math.Hypot(arc.Radius, arc.DzDphi)
	assert.InDelta(t, wantLen, tr.TrackLength(), 1e-6)
	assert.InDelta(t, arc.DzDphi/arc.Radius, tr.DipSlope(), 1e-6)

	head := tr.PositionAtHead()
	last := arc.Point(arc.N - 1)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(head, last)), 1e-6)
	tail := tr.PositionAtTail()
	assert.InDelta(t, 0, r3.Norm(r3.Sub(tail, arc.Point(0))), 1e-6)
}

func TestFit_Deterministic(t *testing.T) {
	tr := trackOf(testutil.CleanArc().Hits(8))
	tr.Fit()
	first := tr.fit
	tr.Fit()
	assert.Equal(t, first, tr.fit)

	tr.FitPlane()
	tr.Fit()
	assert.Equal(t, first, tr.fit)
}

func TestFit_HelicityFollowsOuterEnd(t *testing.T) {
	arc := testutil.CleanArc()
	arc.CenterY = -500
	arc.Far = true
	tr := trackOf(arc.Hits(8))
	tr.Fit()

	require.True(t, tr.IsHelix())
	// The turning angle now grows towards the origin, so the head is the
	// inner end.
	assert.Equal(t, -1, tr.Helicity())
	assert.Less(t, tr.PositionAtHead().X, tr.PositionAtTail().X)
}

func TestFit_CollinearFallsBackToLine(t *testing.T) {
	tr := trackOf([]*hits.Hit{
		hitAt(1, 0, 0, 0), hitAt(2, 10, 10, 1), hitAt(3, 20, 20, 2), hitAt(4, 30, 30, 3),
	})
	tr.Fit()

	assert.True(t, tr.IsLine(), "status %s", tr.Status())
	assert.True(t, math.IsInf(tr.HelixRadius(), 1), "unconstrained curvature")
	assert.Equal(t, 1, tr.Helicity())
	assert.InDelta(t, math.Sqrt(30*30*2+9), tr.TrackLength(), 1e-9)
}

func TestHelixRadius_ByStatus(t *testing.T) {
	bad := trackOf([]*hits.Hit{hitAt(1, 0, 0, 0), hitAt(2, 10, 0, 0)})
	bad.Fit()
	assert.True(t, bad.IsBad())
	assert.Zero(t, bad.HelixRadius())

	// A sagitta far below the circle fit's reach falls back to a line.
	flat := trackOf([]*hits.Hit{
		hitAt(1, 0, 0, 0), hitAt(2, 100, 0, 0), hitAt(3, 200, 1e-4, 0), hitAt(4, 300, 0, 0), hitAt(5, 400, 0, 0),
	})
	flat.Fit()
	assert.False(t, flat.IsHelix())
	assert.True(t, math.IsInf(flat.HelixRadius(), 1))
}

func TestFitPlane_Classification(t *testing.T) {
	tests := []struct {
		name string
		hits []*hits.Hit
		want Status
	}{
		{"single hit", []*hits.Hit{hitAt(1, 5, 5, 5)}, StatusBad},
		{"two hits", []*hits.Hit{hitAt(1, 0, 0, 0), hitAt(2, 10, 0, 0)}, StatusBad},
		{"line", []*hits.Hit{hitAt(1, 0, 0, 0), hitAt(2, 10, 0, 0), hitAt(3, 20, 0, 0)}, StatusLine},
		{"plane", []*hits.Hit{hitAt(1, 0, 0, 0), hitAt(2, 10, 0, 0), hitAt(3, 0, 10, 0), hitAt(4, 10, 10, 0)}, StatusPlane},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := trackOf(tt.hits)
			tr.FitPlane()
			assert.Equal(t, tt.want, tr.Status())
		})
	}
}

func TestFitPlane_Perpendiculars(t *testing.T) {
	line := trackOf([]*hits.Hit{hitAt(1, 0, 0, 0), hitAt(2, 10, 0, 0), hitAt(3, 20, 0, 0)})
	line.FitPlane()
	perp := line.PerpLine(r3.Vec{X: 7, Y: 3, Z: -4})
	assert.InDelta(t, 0, perp.X, 1e-9)
	assert.InDelta(t, 3, perp.Y, 1e-9)
	assert.InDelta(t, -4, perp.K(), 1e-9)
	assert.InDelta(t, 5, line.PerpendicularDistance(r3.Vec{X: 7, Y: 3, Z: -4}), 1e-9)

	plane := trackOf([]*hits.Hit{hitAt(1, 0, 0, 0), hitAt(2, 10, 0, 0), hitAt(3, 0, 10, 0), hitAt(4, 10, 10, 0)})
	plane.FitPlane()
	pp := plane.PerpPlane(r3.Vec{X: 3, Y: 4, Z: 6})
	assert.InDelta(t, 6, math.Abs(pp.K()), 1e-9)
	assert.InDelta(t, 0, pp.Transverse(), 1e-9)
	assert.InDelta(t, 6, plane.PerpendicularDistance(r3.Vec{X: 3, Y: 4, Z: 6}), 1e-9)
}

func TestMap_ResidualsAndTravel(t *testing.T) {
	arc := testutil.CleanArc()
	tr := trackOf(arc.Hits(8))
	tr.Fit()
	require.True(t, tr.IsHelix())

	p := arc.Point(10)
	q := tr.Map(p)
	assert.InDelta(t, 0, q.X, 1e-6)
	assert.InDelta(t, 0, q.Y, 1e-6)

	// Push the point radially outwards and up in Z.
	ci, cj := tr.HelixCenter()
	dir := r3.Unit(r3.Vec{X: p.X - ci, Y: p.Y - cj})
	moved := r3.Add(p, r3.Add(r3.Scale(3, dir), r3.Vec{Z: 2}))
	q2 := tr.Map(moved)
	assert.InDelta(t, 3, q2.X, 1e-6)
	assert.InDelta(t, 2, q2.Y, 1e-6)
	assert.InDelta(t, q.Z, q2.Z, 1e-6)
	assert.InDelta(t, math.Hypot(3, 2), tr.PerpendicularDistance(moved), 1e-6)

	proj := tr.ProjectOnHelix(moved)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(proj, p)), 1e-6)
}

func TestExtrapolate_StaysOnHelix(t *testing.T) {
	arc := testutil.CleanArc()
	tr := trackOf(arc.Hits(8))
	tr.Fit()
	require.True(t, tr.IsHelix())

	headTravel := tr.Map(tr.PositionAtHead()).Z
	tailTravel := tr.Map(tr.PositionAtTail()).Z
	for _, l := range []float64{10, 50, 200} {
		h := tr.ExtrapolateHead(l)
		q := tr.Map(h)
		assert.InDelta(t, 0, q.X, 1e-6)
		assert.InDelta(t, 0, q.Y, 1e-6)
		assert.InDelta(t, headTravel+l, q.Z, 1e-6)

		tl := tr.ExtrapolateTail(l)
		assert.InDelta(t, tailTravel-l, tr.Map(tl).Z, 1e-6)
	}

	alpha := tr.AlphaAtTravelLength(math.Hypot(arc.Radius, arc.DzDphi) * math.Pi / 2)
	assert.InDelta(t, math.Pi/2, alpha, 1e-6)
}

func TestExtrapolate_Line(t *testing.T) {
	tr := trackOf([]*hits.Hit{hitAt(1, 10, 0, 0), hitAt(2, 20, 0, 0), hitAt(3, 30, 0, 0)})
	tr.Fit()
	require.True(t, tr.IsLine())

	assert.InDelta(t, 30, tr.PositionAtHead().X, 1e-9, "head points away from the origin")
	assert.InDelta(t, 45, tr.ExtrapolateHead(15).X, 1e-9)
	assert.InDelta(t, 5, tr.ExtrapolateTail(5).X, 1e-9)
	assert.Zero(t, tr.AlphaAtTravelLength(100))
}

func TestAddRemoveHit_Claims(t *testing.T) {
	tr := NewTrack(4, geom.NewFrame(geom.AxisZ))
	h := hitAt(1, 0, 0, 0)
	tr.AddHit(h)
	assert.Equal(t, 4, h.ParentTrackID())
	assert.Equal(t, 1, tr.NumHits())
	assert.Same(t, h, tr.LastHit())

	assert.True(t, tr.RemoveHit(h))
	assert.Equal(t, hits.Unclaimed, h.ParentTrackID())
	assert.False(t, tr.RemoveHit(h))
	assert.Nil(t, tr.LastHit())
}

func TestFinalizeHits(t *testing.T) {
	tr := NewTrack(2, geom.NewFrame(geom.AxisZ))
	a, b := hitAt(1, 0, 0, 0), hitAt(2, 1, 0, 0)
	a.AddTrackCand(hits.Released)
	tr.AddHit(a)
	tr.AddHit(b)
	tr.ID = 0
	tr.FinalizeHits()

	assert.Equal(t, []int{0}, a.TrackCands())
	assert.Equal(t, 0, b.TrackID)
}

func TestSortHits(t *testing.T) {
	hs := testutil.CleanArc().Hits(8)
	shuffled := []*hits.Hit{hs[5], hs[0], hs[29], hs[12], hs[3]}
	for _, h := range hs {
		if h != hs[5] && h != hs[0] && h != hs[29] && h != hs[12] && h != hs[3] {
			shuffled = append(shuffled, h)
		}
	}
	tr := trackOf(shuffled)
	tr.Fit()

	tr.SortHits(true)
	for i := 1; i < tr.NumHits(); i++ {
		assert.Less(t, tr.Hit(i-1).ID, tr.Hit(i).ID)
	}
	tr.SortHits(false)
	assert.Equal(t, 29, tr.Hit(0).ID)
	assert.Equal(t, 0, tr.LastHit().ID)
}
