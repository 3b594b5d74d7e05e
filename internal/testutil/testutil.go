// Package testutil provides shared test utilities and synthetic hit
// fixtures for the reconstruction packages.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Arc describes a noise-free helical arc with its axis along Z, sampled at
// evenly spaced X positions. Hits lie on the circle half nearest the
// origin unless Far is set.
type Arc struct {
	CenterX, CenterY float64
	Radius           float64
	X0               float64 // X of the first hit
	Step             float64 // X spacing between hits
	N                int
	Z0               float64 // Z at turning angle zero
	DzDphi           float64 // Z advance per radian
	Charge           float64 // 0 means 1
	FirstID          int
	Far              bool
}

// CleanArc returns the reference arc: radius 500 around (0, 500), 30 hits
// one 8-unit pad apart, rising slowly in Z.
func CleanArc() Arc {
	return Arc{
		CenterY: 500,
		Radius:  500,
		X0:      44,
		Step:    8,
		N:       30,
		Z0:      50,
		DzDphi:  20,
	}
}

// Point returns the position of the n-th sample.
func (a Arc) Point(n int) r3.Vec {
	x := a.X0 + a.Step*float64(n)
	phi := math.Asin((x - a.CenterX) / a.Radius)
	y := a.CenterY - a.Radius*math.Cos(phi)
	if a.Far {
		y = a.CenterY + a.Radius*math.Cos(phi)
	}
	return r3.Vec{X: x, Y: y, Z: a.Z0 + a.DzDphi*phi}
}

// Hits samples the arc. Rows and layers are the floor of X and Y over pitch.
func (a Arc) Hits(pitch float64) []*hits.Hit {
	q := a.Charge
	if q == 0 {
		q = 1
	}
	out := make([]*hits.Hit, 0, a.N)
	for n := 0; n < a.N; n++ {
		p := a.Point(n)
		row := int(math.Floor(p.X / pitch))
		layer := int(math.Floor(p.Y / pitch))
		out = append(out, hits.New(a.FirstID+n, row, layer, p, q))
	}
	return out
}

// Scatter returns hits on a square lattice with the given spacing, far
// enough apart that no two share or touch a pad when spacing exceeds two
// pitches.
func Scatter(n int, spacing, pitch float64, firstID int) []*hits.Hit {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	out := make([]*hits.Hit, 0, n)
	for k := 0; k < n; k++ {
		p := r3.Vec{
			X: float64(k%side)*spacing + 0.5*pitch,
			Y: float64(k/side)*spacing + 0.5*pitch,
			Z: 10,
		}
		row := int(math.Floor(p.X / pitch))
		layer := int(math.Floor(p.Y / pitch))
		out = append(out, hits.New(firstID+k, row, layer, p, 1))
	}
	return out
}
