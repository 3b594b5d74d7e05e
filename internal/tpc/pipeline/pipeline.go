package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/banshee-data/helixtrack/internal/tpc/helix"
	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

// Event is one unit of reconstruction work. Stages fill Tracks in place.
type Event struct {
	ID      int64
	Hits    []*hits.Hit
	AuxHits []*hits.Hit
	Tracks  []*helix.Track

	// Unassigned counts main hits left in the pool once the finder is done.
	Unassigned int
	// AuxUnused counts aux hits no track claimed.
	AuxUnused int
}

// Stage is one step of the event pipeline.
type Stage interface {
	Name() string
	// Init is called once before the first event.
	Init(ctx context.Context) error
	// Exec processes a single event.
	Exec(ctx context.Context, ev *Event) error
}

// EventSource provides the events of a batch run.
type EventSource interface {
	EventIDs(ctx context.Context) ([]int64, error)
	LoadEvent(ctx context.Context, eventID int64) (main, aux []*hits.Hit, err error)
}

// Summary aggregates what a run produced.
type Summary struct {
	Events     int
	Tracks     int
	Hits       int
	Unassigned int
	Elapsed    time.Duration
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Runner drives events through its stages in order.
type Runner struct {
	stages []Stage
	inited bool
}

// NewRunner returns a runner over the given stages. Nil stages are skipped.
func NewRunner(stages ...Stage) *Runner {
	r := &Runner{}
	for _, s := range stages {
		if !isNilInterface(s) {
			r.stages = append(r.stages, s)
		}
	}
	return r
}

// Stages returns the stage names in execution order.
func (r *Runner) Stages() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name()
	}
	return names
}

// Init initialises every stage once. Later calls are no-ops.
func (r *Runner) Init(ctx context.Context) error {
	if r.inited {
		return nil
	}
	for _, s := range r.stages {
		if err := s.Init(ctx); err != nil {
			return fmt.Errorf("init stage %s: %w", s.Name(), err)
		}
	}
	r.inited = true
	return nil
}

// Exec runs one event through every stage, stopping at the first error or
// when ctx is cancelled.
func (r *Runner) Exec(ctx context.Context, ev *Event) error {
	if err := r.Init(ctx); err != nil {
		return err
	}
	for _, s := range r.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := s.Exec(ctx, ev); err != nil {
			return fmt.Errorf("event %d: stage %s: %w", ev.ID, s.Name(), err)
		}
		tracef("event %d: %s took %v", ev.ID, s.Name(), time.Since(start))
	}
	return nil
}

// Run loads every event of src in turn and executes it. When only is
// non-empty, events with other ids are skipped.
func (r *Runner) Run(ctx context.Context, src EventSource, only ...int64) (Summary, error) {
	var sum Summary
	start := time.Now()

	ids, err := src.EventIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("list events: %w", err)
	}
	if len(only) > 0 {
		want := make(map[int64]bool, len(only))
		for _, id := range only {
			want[id] = true
		}
		filtered := ids[:0]
		for _, id := range ids {
			if want[id] {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}

	for _, id := range ids {
		main, aux, err := src.LoadEvent(ctx, id)
		if err != nil {
			return sum, fmt.Errorf("load event %d: %w", id, err)
		}
		ev := &Event{ID: id, Hits: main, AuxHits: aux}
		if err := r.Exec(ctx, ev); err != nil {
			return sum, err
		}
		sum.Events++
		sum.Tracks += len(ev.Tracks)
		sum.Hits += len(ev.Hits)
		sum.Unassigned += ev.Unassigned
		diagf("event %d: %d hits, %d tracks, %d unassigned", id, len(ev.Hits), len(ev.Tracks), ev.Unassigned)
	}
	sum.Elapsed = time.Since(start)
	return sum, nil
}
