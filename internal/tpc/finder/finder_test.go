package finder

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/helixtrack/internal/testutil"
	"github.com/banshee-data/helixtrack/internal/tpc/hits"
	"github.com/banshee-data/helixtrack/internal/tpc/padplane"
)

func newFinder(cfg Config) *Finder {
	return New(cfg, padplane.DefaultGridLayout())
}

func hitIDs(hs []*hits.Hit) []int {
	ids := make([]int, 0, len(hs))
	for _, h := range hs {
		ids = append(ids, h.ID)
	}
	sort.Ints(ids)
	return ids
}

// assertPartition checks that every input hit ends up either pooled or on
// exactly one track.
func assertPartition(t *testing.T, f *Finder, input []*hits.Hit) {
	t.Helper()
	seen := make(map[int]int)
	for _, h := range f.Pool().Hits() {
		seen[h.ID]++
		assert.Equal(t, hits.NoTrack, h.TrackID, "pooled hit %d has a track", h.ID)
	}
	for _, tr := range f.Tracks() {
		for _, h := range tr.Hits() {
			if h.IsAux() {
				continue
			}
			seen[h.ID]++
			assert.Equal(t, tr.ID, h.TrackID)
			assert.Equal(t, []int{tr.ID}, h.TrackCands())
		}
	}
	for _, h := range input {
		assert.Equal(t, 1, seen[h.ID], "hit %d", h.ID)
	}
	assert.Len(t, seen, len(input))
}

func TestFinder_CleanArc(t *testing.T) {
	input := testutil.CleanArc().Hits(8)
	f := newFinder(DefaultConfig())
	f.SetEvent(input, nil)
	f.Exec()

	assert.Equal(t, StepEndOfEvent, f.NextStep())
	tracks := f.Tracks()
	require.Len(t, tracks, 1)
	tr := tracks[0]
	assert.Equal(t, 0, tr.ID)
	assert.Equal(t, 30, tr.NumHits())
	assert.True(t, tr.IsHelix())
	assert.InDelta(t, 500, tr.HelixRadius(), 1e-3)
	assert.Equal(t, 0, f.Pool().Len())
	assert.Equal(t, 1, f.Phase())
	assert.Nil(t, f.Current())
	// Every projected step, the steepest included, is within the pad gap.
	assert.InDelta(t, 1.0, tr.Continuity, 1e-9)
	assertPartition(t, f, input)
}

func TestFinder_TwoArcs(t *testing.T) {
	a := testutil.CleanArc()
	b := testutil.CleanArc()
	b.CenterY -= 400
	b.FirstID = 100
	input := append(a.Hits(8), b.Hits(8)...)

	f := newFinder(DefaultConfig())
	f.SetEvent(input, nil)
	f.Exec()

	tracks := f.Tracks()
	require.Len(t, tracks, 2)
	for id, tr := range tracks {
		assert.Equal(t, id, tr.ID)
		assert.Equal(t, 30, tr.NumHits())
	}
	// Arc b sits at lower layers, so it is seeded first.
	assert.Equal(t, 100, hitIDs(tracks[0].Hits())[0])
	assert.Equal(t, 0, hitIDs(tracks[1].Hits())[0])
	assertPartition(t, f, input)
}

func TestFinder_IsolatedHitsFormNoTrack(t *testing.T) {
	input := testutil.Scatter(25, 100, 8, 0)
	f := newFinder(DefaultConfig())
	f.SetEvent(input, nil)
	f.Exec()

	assert.Empty(t, f.Tracks())
	assert.Equal(t, len(input), f.Pool().Len())
	for _, h := range input {
		assert.Equal(t, hits.Unclaimed, h.ParentTrackID(), "hit %d", h.ID)
	}
	assertPartition(t, f, input)
}

func TestFinder_RadiusCutRejectsArc(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CutMinHelixRadius = 1000
	input := testutil.CleanArc().Hits(8)
	f := newFinder(cfg)
	f.SetEvent(input, nil)
	f.Exec()

	assert.Empty(t, f.Tracks())
	assert.Equal(t, len(input), f.Pool().Len())
	assertPartition(t, f, input)
}

func TestFinder_MinFinalHits(t *testing.T) {
	arc := testutil.CleanArc()
	arc.N = 14

	f := newFinder(DefaultConfig())
	f.SetEvent(arc.Hits(8), nil)
	f.Exec()
	assert.Empty(t, f.Tracks(), "14 hits is below the default final cut")

	cfg := DefaultConfig()
	cfg.CutMinNumHitsFinalTrack = 12
	f = newFinder(cfg)
	input := arc.Hits(8)
	f.SetEvent(input, nil)
	f.Exec()
	require.Len(t, f.Tracks(), 1)
	assert.Equal(t, 14, f.Tracks()[0].NumHits())
	assertPartition(t, f, input)
}

func TestFinder_AuxHitsJoinTrack(t *testing.T) {
	arc := testutil.CleanArc()
	input := arc.Hits(8)
	var aux []*hits.Hit
	for n := arc.N; n < arc.N+5; n++ {
		aux = append(aux, hits.NewAux(1000+n, 3, arc.Point(n), 1))
	}

	f := newFinder(DefaultConfig())
	f.SetEvent(input, aux)
	f.Exec()

	require.Len(t, f.Tracks(), 1)
	tr := f.Tracks()[0]
	assert.Equal(t, 35, tr.NumHits())
	assert.Equal(t, 0, f.AuxRemaining())
	for _, h := range aux {
		assert.Equal(t, tr.ID, h.TrackID)
	}
	assertPartition(t, f, input)
}

func TestFinder_FarAuxHitUnused(t *testing.T) {
	input := testutil.CleanArc().Hits(8)
	far := hits.NewAux(2000, 1, r3.Vec{X: -600, Y: -600, Z: 900}, 1)

	f := newFinder(DefaultConfig())
	f.SetEvent(input, []*hits.Hit{far})
	f.Exec()

	require.Len(t, f.Tracks(), 1)
	assert.Equal(t, 30, f.Tracks()[0].NumHits())
	assert.Equal(t, 1, f.AuxRemaining())
	assert.Equal(t, []*hits.Hit{far}, f.AuxHits())
	assert.Equal(t, hits.NoTrack, far.TrackID)
}

func TestFinder_ExecUptoTrackNum(t *testing.T) {
	a := testutil.CleanArc()
	b := testutil.CleanArc()
	b.CenterY -= 400
	b.FirstID = 100

	f := newFinder(DefaultConfig())
	f.SetEvent(append(a.Hits(8), b.Hits(8)...), nil)

	require.True(t, f.ExecUptoTrackNum(1))
	assert.Equal(t, StepNewTrack, f.NextStep())
	assert.Len(t, f.Tracks(), 1)

	for f.ExecStep() {
	}
	assert.Len(t, f.Tracks(), 2)
	assert.False(t, f.ExecUptoTrackNum(3), "event already ended")
	assert.False(t, f.ExecStep())
}

type trackSummary struct {
	ID         int
	HitIDs     []int
	Continuity float64
}

func summarize(f *Finder) []trackSummary {
	var out []trackSummary
	for _, tr := range f.Tracks() {
		out = append(out, trackSummary{ID: tr.ID, HitIDs: hitIDs(tr.Hits()), Continuity: tr.Continuity})
	}
	return out
}

func TestFinder_EndEventIdempotent(t *testing.T) {
	a := testutil.CleanArc()
	b := testutil.CleanArc()
	b.CenterY -= 400
	b.FirstID = 100

	f := newFinder(DefaultConfig())
	f.SetEvent(append(a.Hits(8), b.Hits(8)...), nil)
	f.Exec()
	first := summarize(f)
	require.Len(t, first, 2)

	f.EndEvent()
	if diff := cmp.Diff(first, summarize(f)); diff != "" {
		t.Errorf("EndEvent changed tracks (-first +second):\n%s", diff)
	}
}

func TestFinder_RerunIsDeterministic(t *testing.T) {
	input := testutil.CleanArc().Hits(8)
	f := newFinder(DefaultConfig())
	f.SetEvent(input, nil)
	f.Exec()
	first := summarize(f)

	f.SetEvent(input, nil)
	f.Exec()
	if diff := cmp.Diff(first, summarize(f)); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestFinder_EmptyEvent(t *testing.T) {
	f := newFinder(DefaultConfig())
	f.SetEvent(nil, nil)
	f.Exec()
	assert.Empty(t, f.Tracks())
	assert.Equal(t, 0, f.Pool().Len())
	assert.Equal(t, StepEndOfEvent, f.NextStep())
}

func TestFinder_Logging(t *testing.T) {
	var diag, trace bytes.Buffer
	SetLogWriters(nil, &diag, &trace)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	f := newFinder(DefaultConfig())
	f.SetEvent(testutil.CleanArc().Hits(8), nil)
	f.Exec()

	assert.Contains(t, diag.String(), "[finder] ")
	assert.Contains(t, diag.String(), "found 1 tracks")
	assert.Contains(t, trace.String(), "finalized")
}

func TestTrackContinuity(t *testing.T) {
	f := newFinder(DefaultConfig())
	arc := testutil.CleanArc()

	tr := newTrack(arc.Hits(8)...)
	tr.Fit()
	assert.InDelta(t, 1.0, f.TrackContinuity(tr), 1e-9)

	// Dropping every other hit leaves 16-unit steps, above 1.2 pads.
	var sparse []*hits.Hit
	for n, h := range arc.Hits(8) {
		if n%2 == 0 {
			sparse = append(sparse, h)
		}
	}
	tr = newTrack(sparse...)
	tr.Fit()
	assert.InDelta(t, 0, f.TrackContinuity(tr), 1e-9)

	assert.Equal(t, -1.0, f.TrackContinuity(newTrack(padHit(0, 4, 4, 4))))
}

func TestFinder_StraightTracks(t *testing.T) {
	straight := make([]*hits.Hit, 0, 40)
	for k := 0; k < 40; k++ {
		p := r3.Vec{X: 44 + 8*float64(k), Y: 204, Z: 50 + 2*float64(k)}
		straight = append(straight, hits.New(k, int(math.Floor(p.X/8)), int(math.Floor(p.Y/8)), p, 1))
	}
	// Sagitta of a third of a unit over the track, beyond the circle fit.
	nearly := testutil.Arc{CenterY: 200204, Radius: 200000, X0: 44, Step: 8, N: 40, Z0: 50, DzDphi: 20}

	tests := []struct {
		name  string
		input []*hits.Hit
	}{
		{"straight", straight},
		{"radius beyond fit range", nearly.Hits(8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFinder(DefaultConfig())
			f.SetEvent(tt.input, nil)
			f.Exec()

			tracks := f.Tracks()
			require.Len(t, tracks, 1)
			tr := tracks[0]
			assert.Equal(t, 40, tr.NumHits())
			assert.Greater(t, tr.HelixRadius(), 1e4)
			assert.InDelta(t, 1.0, tr.Continuity, 1e-9)
			assert.Equal(t, 0, f.Pool().Len())
			assertPartition(t, f, tt.input)
		})
	}

	f := newFinder(DefaultConfig())
	f.SetEvent(straight, nil)
	f.Exec()
	require.Len(t, f.Tracks(), 1)
	assert.True(t, f.Tracks()[0].IsLine())
	assert.True(t, math.IsInf(f.Tracks()[0].HelixRadius(), 1))
}

func TestFinder_RelaxedPhaseReseedsReleasedHits(t *testing.T) {
	var trace bytes.Buffer
	SetLogWriters(nil, nil, &trace)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	// A first-pass cap below the graduation count abandons every first-pass
	// seed; only the relaxed cap lets the arc graduate.
	cfg := DefaultConfig()
	cfg.CutMinNumHitsInitTrack = 16
	cfg.CutMaxNumHitsInitTrack = 15
	cfg.CutMaxNumHitsInitTrackRelaxed = 25

	input := testutil.CleanArc().Hits(8)
	f := newFinder(cfg)
	f.SetEvent(input, nil)

	finalizedIn := -1
	for f.ExecStep() {
		if f.NextStep() == StepFinalizeTrack && finalizedIn < 0 {
			finalizedIn = f.Phase()
		}
		if f.NextStep() == StepNextPhase && f.Phase() == 0 {
			assert.Empty(t, f.Tracks())
			require.Equal(t, len(input), f.Pool().Len())
			for _, h := range f.Pool().Hits() {
				assert.Equal(t, hits.Released, h.ParentTrackID(), "hit %d", h.ID)
			}
		}
	}

	assert.Equal(t, 1, finalizedIn)
	tracks := f.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, 0, tracks[0].ID)
	assert.Equal(t, 30, tracks[0].NumHits())
	assert.Contains(t, trace.String(), "too many hits while seeding")
	assertPartition(t, f, input)
}

func TestFinder_ConfirmationPrunesOutlier(t *testing.T) {
	arc := testutil.CleanArc()
	input := arc.Hits(8)

	// On the circle between hits 13 and 14 but 6.45 high: inside the K
	// window of the 15-hit track that first meets it, outside the window of
	// the full track.
	x := 152.0
	phi := math.Asin(x / arc.Radius)
	p := r3.Vec{X: x, Y: arc.CenterY - arc.Radius*math.Cos(phi), Z: arc.Z0 + arc.DzDphi*phi + 6.45}
	outlier := hits.New(500, int(math.Floor(p.X/8)), int(math.Floor(p.Y/8)), p, 1)
	input = append(input, outlier)

	f := newFinder(DefaultConfig())
	f.SetEvent(input, nil)
	checked := false
	for f.ExecStep() {
		if f.NextStep() == StepConfirmation && !checked {
			assert.Contains(t, f.Current().Hits(), outlier, "accepted while growing")
			assert.Equal(t, 31, f.Current().NumHits())
			checked = true
		}
	}
	require.True(t, checked)

	tracks := f.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, 30, tracks[0].NumHits())
	assert.NotContains(t, tracks[0].Hits(), outlier)
	assert.Equal(t, []*hits.Hit{outlier}, f.Pool().Hits())
	assert.Equal(t, hits.Unclaimed, outlier.ParentTrackID())
	assert.Equal(t, hits.NoTrack, outlier.TrackID)
	assertPartition(t, f, input)
}

func TestFinder_ExtrapolationIterationGuard(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	cfg := DefaultConfig()
	cfg.ExtrapolationMaxIterations = 2
	input := testutil.CleanArc().Hits(8)
	f := newFinder(cfg)
	f.SetEvent(input, nil)
	f.Exec()

	require.Len(t, f.Tracks(), 1)
	assert.Equal(t, 30, f.Tracks()[0].NumHits())
	assert.Contains(t, ops.String(), "[finder] ")
	assert.Contains(t, ops.String(), "track 0: extrapolation toward head stopped after 2 iterations")
	assertPartition(t, f, input)
}

func TestFinder_HitsClaimedByLiveTrackAreRejected(t *testing.T) {
	a := testutil.CleanArc()
	b := testutil.CleanArc()
	b.CenterY -= 400
	b.FirstID = 100
	input := append(a.Hits(8), b.Hits(8)...)

	f := newFinder(DefaultConfig())
	f.SetEvent(input, nil)
	require.True(t, f.ExecUptoTrackNum(1))
	owner := f.Tracks()[0]

	// Hits on arc a that track 0 already claims: one inside the arc, met
	// while growing, and one past its head, met by extrapolation.
	x := 208.0
	phi := math.Asin(x / a.Radius)
	inner := r3.Vec{X: x, Y: a.CenterY - a.Radius*math.Cos(phi), Z: a.Z0 + a.DzDphi*phi}
	beyond := a.Point(a.N + 1)
	var claimed []*hits.Hit
	for n, p := range []r3.Vec{inner, beyond} {
		h := hits.New(900+n, int(math.Floor(p.X/8)), int(math.Floor(p.Y/8)), p, 1)
		h.AddTrackCand(owner.ID)
		f.Pool().Return(h)
		claimed = append(claimed, h)
	}

	for f.ExecStep() {
	}

	tracks := f.Tracks()
	require.Len(t, tracks, 2)
	for _, tr := range tracks {
		assert.Equal(t, 30, tr.NumHits())
	}
	assert.Equal(t, 0, hitIDs(tracks[1].Hits())[0])
	for _, h := range claimed {
		assert.NotContains(t, tracks[1].Hits(), h)
		assert.Equal(t, []int{owner.ID}, h.TrackCands())
	}
	assert.ElementsMatch(t, claimed, f.Pool().Hits())
	assertPartition(t, f, append(input, claimed...))
}
