// Command helixtrack reconstructs helix tracks from the TPC events stored in
// a SQLite database and writes the tracks back under a new run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/helixtrack/internal/config"
	"github.com/banshee-data/helixtrack/internal/tpc/finder"
	"github.com/banshee-data/helixtrack/internal/tpc/geom"
	"github.com/banshee-data/helixtrack/internal/tpc/hits"
	"github.com/banshee-data/helixtrack/internal/tpc/padplane"
	"github.com/banshee-data/helixtrack/internal/tpc/pipeline"
	"github.com/banshee-data/helixtrack/internal/tpc/storage/sqlite"
	"github.com/banshee-data/helixtrack/internal/version"
)

var (
	dbFile      = flag.String("db", "helixtrack.db", "Path to the SQLite database file")
	configFile  = flag.String("config", "", "Path to a tuning config JSON file (default: built-in defaults)")
	eventID     = flag.Int64("event", -1, "Only reconstruct this event id (default: all events)")
	maxTracks   = flag.Int("max-tracks", 0, "Stop each event after this many tracks (0: no limit)")
	assignPads  = flag.Bool("assign-pads", false, "Recompute pad rows and layers from hit positions")
	verbose     = flag.Bool("verbose", false, "Enable diagnostic logging")
	trace       = flag.Bool("trace", false, "Enable per-step trace logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options is the resolved command line.
type options struct {
	DBPath     string
	Tuning     *config.TuningConfig
	EventIDs   []int64
	MaxTracks  int
	AssignPads bool
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("helixtrack %s\n", version.String())
		return
	}

	var diag, tr io.Writer
	if *verbose || *trace {
		diag = os.Stderr
	}
	if *trace {
		tr = os.Stderr
	}
	if os.Getenv("HELIXTRACK_DEBUG_LOG") != "" {
		pipeline.SetLegacyLogger(os.Stderr)
	} else {
		pipeline.SetLogWriters(os.Stderr, diag, tr)
	}
	finder.SetLogWriters(os.Stderr, diag, tr)
	sqlite.SetLogWriters(os.Stderr, diag, tr)

	tuning := config.EmptyTuningConfig()
	if *configFile != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(*configFile); err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	opts := options{
		DBPath:     *dbFile,
		Tuning:     tuning,
		MaxTracks:  *maxTracks,
		AssignPads: *assignPads,
	}
	if *eventID >= 0 {
		opts.EventIDs = []int64{*eventID}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, runID, err := run(ctx, opts)
	if err != nil {
		log.Fatalf("helixtrack: %v", err)
	}
	fmt.Printf("run %s: %d events, %d tracks, %d of %d hits unassigned (%v)\n",
		runID, sum.Events, sum.Tracks, sum.Unassigned, sum.Hits, sum.Elapsed)
}

// run reconstructs the selected events of the database and persists the
// tracks under a new run, returning the run summary and id.
func run(ctx context.Context, opts options) (pipeline.Summary, string, error) {
	var sum pipeline.Summary
	if opts.Tuning == nil {
		opts.Tuning = config.EmptyTuningConfig()
	}
	if err := opts.Tuning.Validate(); err != nil {
		return sum, "", fmt.Errorf("invalid tuning config: %w", err)
	}
	layout := padplane.GridLayoutFromTuning(opts.Tuning)
	if err := layout.Validate(); err != nil {
		return sum, "", err
	}
	cfg := finder.ConfigFromTuning(opts.Tuning)

	store, err := sqlite.Open(opts.DBPath)
	if err != nil {
		return sum, "", err
	}
	defer store.Close()

	runID, err := store.CreateRun(ctx, opts.Tuning.JSON())
	if err != nil {
		return sum, "", err
	}

	var src pipeline.EventSource = store
	if opts.AssignPads {
		src = &padAssigner{EventSource: store, layout: layout, frame: geom.NewFrame(cfg.RefAxis)}
	}

	runner := pipeline.NewRunner(
		&pipeline.FinderStage{Finder: finder.New(cfg, layout), MaxTracks: opts.MaxTracks},
		&pipeline.PersistStage{Sink: store, RunID: runID},
	)
	sum, err = runner.Run(ctx, src, opts.EventIDs...)
	if errors.Is(err, context.Canceled) {
		log.Printf("interrupted after %d events", sum.Events)
	}
	return sum, runID, err
}

// padAssigner derives the pad of every loaded main hit from its position.
type padAssigner struct {
	pipeline.EventSource
	layout padplane.GridLayout
	frame  geom.Frame
}

func (p *padAssigner) LoadEvent(ctx context.Context, id int64) ([]*hits.Hit, []*hits.Hit, error) {
	mainHits, aux, err := p.EventSource.LoadEvent(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	for _, h := range mainHits {
		p.layout.Assign(p.frame, h)
	}
	return mainHits, aux, nil
}
