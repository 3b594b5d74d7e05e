// Package padplane owns the pad geometry of the readout plane and the hit
// pool: the spatial index of hits not yet assigned to a track.
package padplane

import (
	"fmt"
	"math"

	"github.com/banshee-data/helixtrack/internal/config"
	"github.com/banshee-data/helixtrack/internal/tpc/geom"
	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

// Pad identifies one readout pad and its centre in the transverse (I, J)
// plane.
type Pad struct {
	Row   int
	Layer int
	I     float64
	J     float64
}

// Layout is the pad geometry consumed by the pool and the track finder.
type Layout interface {
	// PadAt returns the pad containing the transverse position (i, j). The
	// boolean is false when the position lies outside the instrumented area;
	// the returned indices are still valid for neighbour arithmetic.
	PadAt(i, j float64) (Pad, bool)
	// InBoundary reports whether (i, j) lies on the instrumented area.
	InBoundary(i, j float64) bool
	// PadDisplacement is the typical centre-to-centre distance of adjacent
	// pads.
	PadDisplacement() float64
}

// GridLayout is a rectangular pad grid. Rows run along I and layers along J.
type GridLayout struct {
	PitchI float64
	PitchJ float64
	MinI   float64
	MaxI   float64
	MinJ   float64
	MaxJ   float64
}

// DefaultGridLayout returns an 8 x 8 pad grid spanning +-1000 in I and J.
func DefaultGridLayout() GridLayout {
	return GridLayout{
		PitchI: 8, PitchJ: 8,
		MinI: -1000, MaxI: 1000,
		MinJ: -1000, MaxJ: 1000,
	}
}

// GridLayoutFromTuning builds the pad grid described by the tuning config.
func GridLayoutFromTuning(cfg *config.TuningConfig) GridLayout {
	return GridLayout{
		PitchI: cfg.GetPadPitchI(),
		PitchJ: cfg.GetPadPitchJ(),
		MinI:   cfg.GetPadMinI(),
		MaxI:   cfg.GetPadMaxI(),
		MinJ:   cfg.GetPadMinJ(),
		MaxJ:   cfg.GetPadMaxJ(),
	}
}

// Validate checks that the grid is non-degenerate.
func (g GridLayout) Validate() error {
	if g.PitchI <= 0 || g.PitchJ <= 0 {
		return fmt.Errorf("pad pitch must be positive, got (%g, %g)", g.PitchI, g.PitchJ)
	}
	if g.MaxI <= g.MinI || g.MaxJ <= g.MinJ {
		return fmt.Errorf("empty pad grid bounds i=[%g,%g] j=[%g,%g]", g.MinI, g.MaxI, g.MinJ, g.MaxJ)
	}
	return nil
}

func (g GridLayout) PadAt(i, j float64) (Pad, bool) {
	row := int(math.Floor(i / g.PitchI))
	layer := int(math.Floor(j / g.PitchJ))
	return Pad{
		Row:   row,
		Layer: layer,
		I:     (float64(row) + 0.5) * g.PitchI,
		J:     (float64(layer) + 0.5) * g.PitchJ,
	}, g.InBoundary(i, j)
}

func (g GridLayout) InBoundary(i, j float64) bool {
	return i >= g.MinI && i <= g.MaxI && j >= g.MinJ && j <= g.MaxJ
}

func (g GridLayout) PadDisplacement() float64 {
	return math.Max(g.PitchI, g.PitchJ)
}

// Assign fills the hit's row and layer from its position projected onto the
// frame's transverse plane.
func (g GridLayout) Assign(frame geom.Frame, h *hits.Hit) {
	i, j, _ := frame.IJK(h.Position)
	pad, _ := g.PadAt(i, j)
	h.Row, h.Layer = pad.Row, pad.Layer
}
