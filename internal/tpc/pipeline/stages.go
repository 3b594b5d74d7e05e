package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/helixtrack/internal/tpc/finder"
	"github.com/banshee-data/helixtrack/internal/tpc/helix"
)

// FinderStage reconstructs the tracks of an event with the state machine.
type FinderStage struct {
	Finder *finder.Finder

	// MaxTracks stops the search once this many tracks exist. Zero means
	// run the event to completion.
	MaxTracks int
}

func (s *FinderStage) Name() string { return "finder" }

func (s *FinderStage) Init(context.Context) error {
	if s.Finder == nil {
		return fmt.Errorf("finder stage has no finder")
	}
	return nil
}

func (s *FinderStage) Exec(_ context.Context, ev *Event) error {
	f := s.Finder
	f.SetEvent(ev.Hits, ev.AuxHits)
	if s.MaxTracks > 0 {
		f.ExecUptoTrackNum(s.MaxTracks)
		f.EndEvent()
	} else {
		f.Exec()
	}
	ev.Tracks = f.Tracks()
	ev.Unassigned = f.Pool().Len()
	ev.AuxUnused = f.AuxRemaining()
	return nil
}

// TrackSink receives the finalized tracks of each event.
type TrackSink interface {
	SaveTracks(ctx context.Context, runID string, eventID int64, tracks []*helix.Track) error
}

// PersistStage writes the tracks of each event to a sink under one run.
type PersistStage struct {
	Sink  TrackSink
	RunID string
}

func (s *PersistStage) Name() string { return "persist" }

func (s *PersistStage) Init(context.Context) error {
	if isNilInterface(s.Sink) {
		return fmt.Errorf("persist stage has no sink")
	}
	if s.RunID == "" {
		return fmt.Errorf("persist stage has no run id")
	}
	return nil
}

func (s *PersistStage) Exec(ctx context.Context, ev *Event) error {
	if err := s.Sink.SaveTracks(ctx, s.RunID, ev.ID, ev.Tracks); err != nil {
		opsf("event %d: failed to persist %d tracks: %v", ev.ID, len(ev.Tracks), err)
		return err
	}
	return nil
}
