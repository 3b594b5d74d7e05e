// Package finder owns the helix track-finding state machine.
//
// A Finder reconstructs one event at a time. It seeds tracks from the hit
// pool, grows them through neighbour search and correlation gating, extends
// them by extrapolation, confirms them in both directions and either
// finalizes or abandons them. Two phases run per event; the second reseeds
// hits released by abandoned tracks under a looser seeding cap.
//
// The machine is single-threaded and advances one step per ExecStep call.
package finder

import (
	"github.com/banshee-data/helixtrack/internal/tpc/geom"
	"github.com/banshee-data/helixtrack/internal/tpc/helix"
	"github.com/banshee-data/helixtrack/internal/tpc/hits"
	"github.com/banshee-data/helixtrack/internal/tpc/padplane"
)

// Finder is the track-finding state machine. It is not safe for concurrent
// use.
type Finder struct {
	cfg   Config
	frame geom.Frame
	pool  *padplane.Pool

	mainHits []*hits.Hit
	auxHits  []*hits.Hit

	next        Step
	phase       int
	maxInitHits int

	// tracks is indexed by track id; removed tracks leave a nil slot until
	// EndEvent compacts the arena.
	tracks  []*helix.Track
	current *helix.Track

	cand *hits.List // candidates awaiting correlation
	good *hits.List // hits accepted since the last neighbour search
	bad  *hits.List // rejected hits, returned to the pool in batches

	auxGood *hits.List // aux hits to offer the current track
	auxCand *hits.List
	auxBad  *hits.List // aux hits rejected by the current track

	removeReason string
}

// New returns a finder over the given pad layout.
func New(cfg Config, layout padplane.Layout) *Finder {
	return &Finder{
		cfg:     cfg,
		frame:   geom.NewFrame(cfg.RefAxis),
		pool:    padplane.NewPool(layout),
		next:    StepEndOfEvent,
		cand:    hits.NewList(),
		good:    hits.NewList(),
		bad:     hits.NewList(),
		auxGood: hits.NewList(),
		auxCand: hits.NewList(),
		auxBad:  hits.NewList(),
	}
}

// SetEvent loads the hits of the next event and rewinds the state machine.
// Aux hits may be nil.
func (f *Finder) SetEvent(main, aux []*hits.Hit) {
	f.mainHits = main
	f.auxHits = aux
	f.next = StepInitArray
}

// Exec runs the current event to completion.
func (f *Finder) Exec() {
	f.next = StepInitArray
	for f.ExecStep() {
	}
}

// ExecStep performs one state transition. It returns false once the event
// has ended.
func (f *Finder) ExecStep() bool {
	if f.next == StepEndOfEvent {
		return false
	}
	prev := f.next
	switch f.next {
	case StepInitArray:
		f.next = f.stepInitArray()
	case StepNewTrack:
		f.next = f.stepNewTrack()
	case StepRemoveTrack:
		f.next = f.stepRemoveTrack()
	case StepInitTrack:
		f.next = f.stepInitTrack()
	case StepInitTrackAddHit:
		f.next = f.stepInitTrackAddHit()
	case StepContinuum:
		f.next = f.stepContinuum()
	case StepContinuumAddHit:
		f.next = f.stepContinuumAddHit()
	case StepExtrapolation:
		f.next = f.stepExtrapolation()
	case StepExtrapolationAddHit:
		f.next = f.stepExtrapolationAddHit()
	case StepConfirmation:
		f.next = f.stepConfirmation()
	case StepFinalizeTrack:
		f.next = f.stepFinalizeTrack()
	case StepNextPhase:
		f.next = f.stepNextPhase()
	case StepEndEvent:
		f.next = f.stepEndEvent()
	}
	if prev != f.next && (prev == StepRemoveTrack || prev == StepFinalizeTrack || prev == StepNextPhase) {
		tracef("%s -> %s", prev, f.next)
	}
	return true
}

// ExecUptoTrackNum runs until at least numTracks tracks exist and the
// machine is about to seed a new track, or the event ends. It returns false
// if the event had already ended.
func (f *Finder) ExecUptoTrackNum(numTracks int) bool {
	if f.next == StepEndOfEvent {
		return false
	}
	for f.ExecStep() {
		if f.next == StepNewTrack && f.NumTracks() >= numTracks {
			break
		}
	}
	return true
}

// EndEvent compacts the track arena, renumbers tracks sequentially and
// finalizes their hits. Calling it again without new hits changes nothing.
func (f *Finder) EndEvent() {
	f.next = f.stepEndEvent()
}

// NextStep returns the step the next ExecStep call will run.
func (f *Finder) NextStep() Step { return f.next }

// Phase returns 0 during the first pass and 1 during the relaxed pass.
func (f *Finder) Phase() int { return f.phase }

// Current returns the track under construction, or nil.
func (f *Finder) Current() *helix.Track { return f.current }

// Pool exposes the hit pool.
func (f *Finder) Pool() *padplane.Pool { return f.pool }

// Frame returns the reference frame tracks are fitted in.
func (f *Finder) Frame() geom.Frame { return f.frame }

// NumTracks counts live tracks, including the one under construction.
func (f *Finder) NumTracks() int {
	n := 0
	for _, t := range f.tracks {
		if t != nil {
			n++
		}
	}
	return n
}

// Tracks returns the live tracks in id order.
func (f *Finder) Tracks() []*helix.Track {
	out := make([]*helix.Track, 0, len(f.tracks))
	for _, t := range f.tracks {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// AuxRemaining returns the number of aux hits not owned by any track.
func (f *Finder) AuxRemaining() int {
	return f.auxGood.Len() + f.auxCand.Len() + f.auxBad.Len()
}

// AuxHits returns the aux hits not owned by any track.
func (f *Finder) AuxHits() []*hits.Hit {
	out := make([]*hits.Hit, 0, f.AuxRemaining())
	out = append(out, f.auxGood.Hits()...)
	out = append(out, f.auxCand.Hits()...)
	return append(out, f.auxBad.Hits()...)
}

func (f *Finder) returnBadHits() {
	f.pool.ReturnAll(f.bad)
}

func (f *Finder) stepInitArray() Step {
	f.current = nil
	f.phase = 0
	f.maxInitHits = f.cfg.CutMaxNumHitsInitTrack
	f.removeReason = ""

	f.pool.Reset(f.mainHits)
	clear(f.tracks)
	f.tracks = f.tracks[:0]
	f.cand.Clear()
	f.good.Clear()
	f.bad.Clear()
	f.auxGood.Clear()
	f.auxCand.Clear()
	f.auxBad.Clear()
	for _, h := range f.auxHits {
		h.Reset()
		f.auxGood.Add(h)
	}
	return StepNewTrack
}

func (f *Finder) stepNewTrack() Step {
	f.pool.ReturnAll(f.cand)
	f.good.Clear()
	f.returnBadHits()
	f.auxBad.MoveTo(f.auxGood)

	seed := f.pool.PullNextFreeHit()
	if seed == nil {
		return StepNextPhase
	}

	t := helix.NewTrack(len(f.tracks), f.frame)
	f.tracks = append(f.tracks, t)
	f.current = t
	t.AddHit(seed)
	t.FitPlane()
	f.good.Add(seed)
	return StepInitTrack
}

func (f *Finder) stepRemoveTrack() Step {
	t := f.current
	f.good.Clear()
	f.pool.ReturnAll(f.cand)
	f.returnBadHits()

	for _, h := range t.Hits() {
		t.RemoveHit(h)
		if h.IsAux() {
			f.auxBad.Add(h)
			continue
		}
		h.AddTrackCand(hits.Released)
		f.pool.Return(h)
	}
	tracef("removed track %d: %s", t.ID, f.removeReason)
	f.tracks[t.ID] = nil
	f.current = nil
	f.removeReason = ""
	return StepNewTrack
}

func (f *Finder) remove(reason string) Step {
	f.removeReason = reason
	return StepRemoveTrack
}

func (f *Finder) stepInitTrack() Step {
	f.pool.PullNeighbors(f.good.Hits(), f.cand)
	f.good.Clear()
	if f.cand.Len() == 0 {
		return f.remove("no neighbours while seeding")
	}
	f.cand.SortByDistanceDesc(f.current.Mean())
	return StepInitTrackAddHit
}

func (f *Finder) stepInitTrackAddHit() Step {
	t := f.current
	h := f.cand.PopLast()

	var quality float64
	if t.IsHelix() {
		quality = f.cfg.CorrelateWithConfirmedTrack(t, h, 1)
	} else {
		quality = f.cfg.CorrelateWithCandidateTrack(t, h)
	}

	if quality > 0 {
		f.good.Add(h)
		t.AddHit(h)
		t.FitPlane()

		n := t.NumHits()
		if n > f.maxInitHits {
			return f.remove("too many hits while seeding")
		}
		if n >= f.cfg.MinHitsToFitInitTrack {
			t.Fit()
			if n > f.cfg.CutMinNumHitsInitTrack &&
				t.HelixRadius() > f.cfg.CutMinHelixRadius &&
				t.TrackLength() > f.cfg.TrackLengthCutScale*t.RMSH() {
				return StepContinuum
			}
			t.FitPlane()
		}
	} else {
		f.bad.Add(h)
	}

	if f.cand.Len() == 0 {
		return StepInitTrack
	}
	return StepInitTrackAddHit
}

func (f *Finder) stepContinuum() Step {
	f.pool.PullNeighbors(f.good.Hits(), f.cand)
	f.good.Clear()
	f.auxGood.MoveTo(f.auxCand)

	if f.cand.Len() == 0 && f.auxCand.Len() == 0 {
		return StepExtrapolation
	}
	f.cand.SortByCharge()
	return StepContinuumAddHit
}

func (f *Finder) stepContinuumAddHit() Step {
	t := f.current
	for f.cand.Len() > 0 {
		h := f.cand.PopLast()
		var quality float64
		if h.ParentTrackID() == hits.Unclaimed {
			quality = f.cfg.CorrelateWithConfirmedTrack(t, h, 1)
		}
		if quality > 0 {
			f.good.Add(h)
			t.AddHit(h)
			t.Fit()
		} else {
			f.bad.Add(h)
		}
	}

	// Aux hits join the track directly; they never enter the pool.
	for f.auxCand.Len() > 0 {
		h := f.auxCand.PopLast()
		var quality float64
		if h.ParentTrackID() == hits.Unclaimed {
			quality = f.cfg.CorrelateWithConfirmedTrack(t, h, 1)
		}
		if quality > 0 {
			t.AddHit(h)
			t.Fit()
		} else {
			f.auxBad.Add(h)
		}
	}
	return StepContinuum
}

func (f *Finder) stepExtrapolation() Step {
	f.returnBadHits()
	return StepExtrapolationAddHit
}

func (f *Finder) stepExtrapolationAddHit() Step {
	t := f.current
	dir := f.extend(t, GrowHead)
	f.extend(t, dir.Flip())
	f.returnBadHits()

	if t.HelixRadius() < f.cfg.CutMinHelixRadius {
		return f.remove("helix radius below cut after extrapolation")
	}
	return StepConfirmation
}

func (f *Finder) stepConfirmation() Step {
	t := f.current

	// Grows the head first when the head sits higher along the reference
	// axis than the tail.
	// TODO(review): confirm the head-vs-tail K comparison picks the intended
	// first direction for negative-K tracks.
	_, _, headK := f.frame.IJK(t.PositionAtHead())
	_, _, tailK := f.frame.IJK(t.PositionAtTail())
	dir := GrowTail
	if headK > tailK {
		dir = GrowHead
	}

	f.returnBadHits()
	dir, ok := f.buildAndConfirm(t, dir)
	if !ok {
		return f.remove("too few hits after first confirmation")
	}

	f.returnBadHits()
	if _, ok := f.buildAndConfirm(t, dir.Flip()); !ok {
		return f.remove("too few hits after second confirmation")
	}
	f.returnBadHits()
	return StepFinalizeTrack
}

func (f *Finder) stepFinalizeTrack() Step {
	// Main hits keep their claim and stay out of the pool for the rest of
	// the event.
	f.good.Clear()
	tracef("finalized %s", f.current)
	f.current = nil
	return StepNewTrack
}

func (f *Finder) stepNextPhase() Step {
	if f.phase == 0 {
		f.phase = 1
		f.pool.ReturnAll(f.cand)
		f.good.Clear()
		f.returnBadHits()
		f.pool.ResetPhase()
		f.maxInitHits = f.cfg.CutMaxNumHitsInitTrackRelaxed
		diagf("phase 1: %d hits left in pool, %d tracks", f.pool.Len(), f.NumTracks())
		return StepNewTrack
	}
	return StepEndEvent
}

func (f *Finder) stepEndEvent() Step {
	// Hits left in the pool leave the event unclaimed.
	f.pool.ResetPhase()

	live := f.tracks[:0]
	for _, t := range f.tracks {
		if t != nil {
			live = append(live, t)
		}
	}
	clear(f.tracks[len(live):])
	f.tracks = live

	for id, t := range f.tracks {
		t.ID = id
		t.FinalizeHits()
		t.Continuity = f.TrackContinuity(t)
	}
	diagf("found %d tracks, %d hits left in pool, %d aux hits unused", len(f.tracks), f.pool.Len(), f.AuxRemaining())
	return StepEndOfEvent
}
