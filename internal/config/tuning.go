package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/helixtrack/internal/tpc/geom"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for track reconstruction.
// Every field is optional; the Get* methods supply the default for any
// field left out of the JSON, so partial configs are safe.
type TuningConfig struct {
	// Frame and pad plane
	RefAxis   *string  `json:"ref_axis,omitempty"` // "x", "y", "z" or negated
	PadPitchI *float64 `json:"pad_pitch_i,omitempty"`
	PadPitchJ *float64 `json:"pad_pitch_j,omitempty"`
	PadMinI   *float64 `json:"pad_min_i,omitempty"`
	PadMaxI   *float64 `json:"pad_max_i,omitempty"`
	PadMinJ   *float64 `json:"pad_min_j,omitempty"`
	PadMaxJ   *float64 `json:"pad_max_j,omitempty"`

	// Correlation cuts
	DefaultScale         *float64 `json:"default_scale,omitempty"`
	TrackWCutLL          *float64 `json:"track_w_cut_ll,omitempty"`
	TrackWCutHL          *float64 `json:"track_w_cut_hl,omitempty"`
	TrackHCutLL          *float64 `json:"track_h_cut_ll,omitempty"`
	TrackHCutHL          *float64 `json:"track_h_cut_hl,omitempty"`
	CorrelationLengthRef *float64 `json:"correlation_length_ref,omitempty"`

	// Track building cuts
	MinHitsToFitInitTrack         *int     `json:"min_hits_to_fit_init_track,omitempty"`
	CutMinNumHitsInitTrack        *int     `json:"cut_min_num_hits_init_track,omitempty"`
	CutMaxNumHitsInitTrack        *int     `json:"cut_max_num_hits_init_track,omitempty"`
	CutMaxNumHitsInitTrackRelaxed *int     `json:"cut_max_num_hits_init_track_relaxed,omitempty"`
	CutMinNumHitsFinalTrack       *int     `json:"cut_min_num_hits_final_track,omitempty"`
	CutMinHelixRadius             *float64 `json:"cut_min_helix_radius,omitempty"`
	TrackLengthCutScale           *float64 `json:"track_length_cut_scale,omitempty"`
	CutDkInExpectedTrackPath      *float64 `json:"cut_dk_in_expected_track_path,omitempty"`
	DkExpectedScale               *float64 `json:"dk_expected_scale,omitempty"`
	LineTransverseCut             *float64 `json:"line_transverse_cut,omitempty"`

	// Extrapolation
	ExtrapolationStep          *float64 `json:"extrapolation_step,omitempty"`
	ExtrapolationMaxIterations *int     `json:"extrapolation_max_iterations,omitempty"`
	ExtrapolationRMSScale      *float64 `json:"extrapolation_rms_scale,omitempty"`
	ExtrapolationRMSFloor      *float64 `json:"extrapolation_rms_floor,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/tpc/finder/
		"../../../../" + DefaultConfigPath,    // from internal/tpc/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// JSON returns the config as compact JSON, for recording alongside results.
func (c *TuningConfig) JSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.RefAxis != nil {
		if _, err := geom.ParseAxis(*c.RefAxis); err != nil {
			return fmt.Errorf("invalid ref_axis: %w", err)
		}
	}

	if c.GetPadPitchI() <= 0 || c.GetPadPitchJ() <= 0 {
		return fmt.Errorf("pad pitches must be positive, got (%f, %f)", c.GetPadPitchI(), c.GetPadPitchJ())
	}
	if c.GetPadMaxI() <= c.GetPadMinI() || c.GetPadMaxJ() <= c.GetPadMinJ() {
		return fmt.Errorf("pad bounds must be non-empty")
	}

	if c.GetDefaultScale() <= 0 {
		return fmt.Errorf("default_scale must be positive, got %f", c.GetDefaultScale())
	}
	if c.GetTrackWCutLL() > c.GetTrackWCutHL() {
		return fmt.Errorf("track_w_cut_ll (%f) exceeds track_w_cut_hl (%f)", c.GetTrackWCutLL(), c.GetTrackWCutHL())
	}
	if c.GetTrackHCutLL() > c.GetTrackHCutHL() {
		return fmt.Errorf("track_h_cut_ll (%f) exceeds track_h_cut_hl (%f)", c.GetTrackHCutLL(), c.GetTrackHCutHL())
	}
	if c.GetCorrelationLengthRef() <= 0 {
		return fmt.Errorf("correlation_length_ref must be positive, got %f", c.GetCorrelationLengthRef())
	}

	if c.GetMinHitsToFitInitTrack() < 3 {
		return fmt.Errorf("min_hits_to_fit_init_track must be at least 3, got %d", c.GetMinHitsToFitInitTrack())
	}
	if c.GetCutMinNumHitsFinalTrack() < 1 {
		return fmt.Errorf("cut_min_num_hits_final_track must be positive, got %d", c.GetCutMinNumHitsFinalTrack())
	}
	if c.GetCutMaxNumHitsInitTrack() < c.GetCutMinNumHitsInitTrack() {
		return fmt.Errorf("cut_max_num_hits_init_track (%d) below cut_min_num_hits_init_track (%d)",
			c.GetCutMaxNumHitsInitTrack(), c.GetCutMinNumHitsInitTrack())
	}
	if c.GetCutMaxNumHitsInitTrackRelaxed() < c.GetCutMaxNumHitsInitTrack() {
		return fmt.Errorf("cut_max_num_hits_init_track_relaxed (%d) tighter than cut_max_num_hits_init_track (%d)",
			c.GetCutMaxNumHitsInitTrackRelaxed(), c.GetCutMaxNumHitsInitTrack())
	}

	if c.GetExtrapolationStep() <= 0 {
		return fmt.Errorf("extrapolation_step must be positive, got %f", c.GetExtrapolationStep())
	}
	if c.GetExtrapolationMaxIterations() < 1 {
		return fmt.Errorf("extrapolation_max_iterations must be positive, got %d", c.GetExtrapolationMaxIterations())
	}

	return nil
}

// GetRefAxis returns the parsed ref_axis value or the default (z).
func (c *TuningConfig) GetRefAxis() geom.Axis {
	if c.RefAxis == nil {
		return geom.AxisZ
	}
	a, err := geom.ParseAxis(*c.RefAxis)
	if err != nil {
		return geom.AxisZ // default on parse error
	}
	return a
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// GetPadPitchI returns the pad_pitch_i value or the default.
func (c *TuningConfig) GetPadPitchI() float64 { return getFloat(c.PadPitchI, 8) }

// GetPadPitchJ returns the pad_pitch_j value or the default.
func (c *TuningConfig) GetPadPitchJ() float64 { return getFloat(c.PadPitchJ, 8) }

func (c *TuningConfig) GetPadMinI() float64 { return getFloat(c.PadMinI, -1000) }
func (c *TuningConfig) GetPadMaxI() float64 { return getFloat(c.PadMaxI, 1000) }
func (c *TuningConfig) GetPadMinJ() float64 { return getFloat(c.PadMinJ, -1000) }
func (c *TuningConfig) GetPadMaxJ() float64 { return getFloat(c.PadMaxJ, 1000) }

// GetDefaultScale returns the default_scale value or the default.
func (c *TuningConfig) GetDefaultScale() float64 { return getFloat(c.DefaultScale, 2.5) }

// GetTrackWCutLL returns the transverse cut floor or the default.
func (c *TuningConfig) GetTrackWCutLL() float64 { return getFloat(c.TrackWCutLL, 4) }

// GetTrackWCutHL returns the transverse cut ceiling or the default.
func (c *TuningConfig) GetTrackWCutHL() float64 { return getFloat(c.TrackWCutHL, 10) }

// GetTrackHCutLL returns the longitudinal cut floor or the default.
func (c *TuningConfig) GetTrackHCutLL() float64 { return getFloat(c.TrackHCutLL, 2) }

// GetTrackHCutHL returns the longitudinal cut ceiling or the default.
func (c *TuningConfig) GetTrackHCutHL() float64 { return getFloat(c.TrackHCutHL, 4) }

// GetCorrelationLengthRef returns the track length beyond which cuts stop
// widening, or the default.
func (c *TuningConfig) GetCorrelationLengthRef() float64 {
	return getFloat(c.CorrelationLengthRef, 500)
}

// GetMinHitsToFitInitTrack returns the min_hits_to_fit_init_track value or the default.
func (c *TuningConfig) GetMinHitsToFitInitTrack() int { return getInt(c.MinHitsToFitInitTrack, 7) }

// GetCutMinNumHitsInitTrack returns the cut_min_num_hits_init_track value or the default.
func (c *TuningConfig) GetCutMinNumHitsInitTrack() int { return getInt(c.CutMinNumHitsInitTrack, 10) }

// GetCutMaxNumHitsInitTrack returns the first-phase seeding hit cap or the default.
func (c *TuningConfig) GetCutMaxNumHitsInitTrack() int { return getInt(c.CutMaxNumHitsInitTrack, 15) }

// GetCutMaxNumHitsInitTrackRelaxed returns the second-phase seeding hit cap or the default.
func (c *TuningConfig) GetCutMaxNumHitsInitTrackRelaxed() int {
	return getInt(c.CutMaxNumHitsInitTrackRelaxed, 25)
}

// GetCutMinNumHitsFinalTrack returns the cut_min_num_hits_final_track value or the default.
func (c *TuningConfig) GetCutMinNumHitsFinalTrack() int {
	return getInt(c.CutMinNumHitsFinalTrack, 15)
}

// GetCutMinHelixRadius returns the cut_min_helix_radius value or the default.
func (c *TuningConfig) GetCutMinHelixRadius() float64 { return getFloat(c.CutMinHelixRadius, 30) }

// GetTrackLengthCutScale returns the track_length_cut_scale value or the default.
func (c *TuningConfig) GetTrackLengthCutScale() float64 {
	return getFloat(c.TrackLengthCutScale, 2.5)
}

// GetCutDkInExpectedTrackPath returns the floor of the candidate K window or the default.
func (c *TuningConfig) GetCutDkInExpectedTrackPath() float64 {
	return getFloat(c.CutDkInExpectedTrackPath, 4)
}

// GetDkExpectedScale returns the dk_expected_scale value or the default.
func (c *TuningConfig) GetDkExpectedScale() float64 { return getFloat(c.DkExpectedScale, 1.2) }

// GetLineTransverseCut returns the line_transverse_cut value or the default.
func (c *TuningConfig) GetLineTransverseCut() float64 { return getFloat(c.LineTransverseCut, 15) }

// GetExtrapolationStep returns the extrapolation_step value or the default.
func (c *TuningConfig) GetExtrapolationStep() float64 { return getFloat(c.ExtrapolationStep, 10) }

// GetExtrapolationMaxIterations returns the extrapolation_max_iterations value or the default.
func (c *TuningConfig) GetExtrapolationMaxIterations() int {
	return getInt(c.ExtrapolationMaxIterations, 200)
}

// GetExtrapolationRMSScale returns the extrapolation_rms_scale value or the default.
func (c *TuningConfig) GetExtrapolationRMSScale() float64 {
	return getFloat(c.ExtrapolationRMSScale, 3)
}

// GetExtrapolationRMSFloor returns the extrapolation_rms_floor value or the default.
func (c *TuningConfig) GetExtrapolationRMSFloor() float64 {
	return getFloat(c.ExtrapolationRMSFloor, 25)
}
