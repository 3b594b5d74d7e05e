package finder

import (
	"github.com/banshee-data/helixtrack/internal/config"
	"github.com/banshee-data/helixtrack/internal/tpc/geom"
)

// Config holds the cuts of the track finder. Fields mirror the tuning
// config keys of the same name.
type Config struct {
	RefAxis geom.Axis

	// Correlation window: the RMS of the current fit clamped to [LL, HL]
	// per axis, times the scale.
	DefaultScale         float64
	TrackWCutLL          float64
	TrackWCutHL          float64
	TrackHCutLL          float64
	TrackHCutHL          float64
	CorrelationLengthRef float64 // cuts widen for tracks shorter than this

	MinHitsToFitInitTrack         int
	CutMinNumHitsInitTrack        int
	CutMaxNumHitsInitTrack        int // first phase
	CutMaxNumHitsInitTrackRelaxed int // second phase
	CutMinNumHitsFinalTrack       int
	CutMinHelixRadius             float64
	TrackLengthCutScale           float64
	CutDkInExpectedTrackPath      float64
	DkExpectedScale               float64
	LineTransverseCut             float64

	ExtrapolationStep          float64
	ExtrapolationMaxIterations int
	ExtrapolationRMSScale      float64
	ExtrapolationRMSFloor      float64
}

// DefaultConfig returns the built-in cuts.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning derives the finder cuts from a tuning config.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		RefAxis:                       cfg.GetRefAxis(),
		DefaultScale:                  cfg.GetDefaultScale(),
		TrackWCutLL:                   cfg.GetTrackWCutLL(),
		TrackWCutHL:                   cfg.GetTrackWCutHL(),
		TrackHCutLL:                   cfg.GetTrackHCutLL(),
		TrackHCutHL:                   cfg.GetTrackHCutHL(),
		CorrelationLengthRef:          cfg.GetCorrelationLengthRef(),
		MinHitsToFitInitTrack:         cfg.GetMinHitsToFitInitTrack(),
		CutMinNumHitsInitTrack:        cfg.GetCutMinNumHitsInitTrack(),
		CutMaxNumHitsInitTrack:        cfg.GetCutMaxNumHitsInitTrack(),
		CutMaxNumHitsInitTrackRelaxed: cfg.GetCutMaxNumHitsInitTrackRelaxed(),
		CutMinNumHitsFinalTrack:       cfg.GetCutMinNumHitsFinalTrack(),
		CutMinHelixRadius:             cfg.GetCutMinHelixRadius(),
		TrackLengthCutScale:           cfg.GetTrackLengthCutScale(),
		CutDkInExpectedTrackPath:      cfg.GetCutDkInExpectedTrackPath(),
		DkExpectedScale:               cfg.GetDkExpectedScale(),
		LineTransverseCut:             cfg.GetLineTransverseCut(),
		ExtrapolationStep:             cfg.GetExtrapolationStep(),
		ExtrapolationMaxIterations:    cfg.GetExtrapolationMaxIterations(),
		ExtrapolationRMSScale:         cfg.GetExtrapolationRMSScale(),
		ExtrapolationRMSFloor:         cfg.GetExtrapolationRMSFloor(),
	}
}
