package helix

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/helixtrack/internal/tpc/geom"
)

// helixPoint returns the detector position at turning angle alpha.
func (t *Track) helixPoint(alpha float64) r3.Vec {
	f := &t.fit
	return t.Frame.FromIJK(
		f.ci+f.radius*math.Cos(alpha),
		f.cj+f.radius*math.Sin(alpha),
		f.slope*alpha+f.k0,
	)
}

// lengthPerAlpha is the helix path length per radian of turning angle.
func (t *Track) lengthPerAlpha() float64 {
	return math.Hypot(t.fit.radius, t.fit.slope)
}

// axisPoint returns the point at distance s along the principal axis.
func (t *Track) axisPoint(s float64) r3.Vec {
	return r3.Add(t.fit.mean, r3.Scale(s, t.fit.axis))
}

// alphaOf returns the turning angle of p, unwrapped around the middle of
// the track.
func (t *Track) alphaOf(p r3.Vec) float64 {
	f := &t.fit
	i, j, _ := t.Frame.IJK(p)
	return unwrap(math.Atan2(j-f.cj, i-f.ci), 0.5*(f.alphaHead+f.alphaTail))
}

// HelixRadius returns the fitted circle radius. Line and plane tracks do
// not constrain the curvature and report +Inf; bad tracks report 0.
func (t *Track) HelixRadius() float64 {
	switch t.fit.status {
	case StatusHelix:
		return t.fit.radius
	case StatusBad:
		return 0
	}
	return math.Inf(1)
}

// HelixCenter returns the (I, J) circle centre of a helix track.
func (t *Track) HelixCenter() (i, j float64) { return t.fit.ci, t.fit.cj }

// DipSlope returns dK per unit transverse path length.
func (t *Track) DipSlope() float64 {
	if t.IsHelix() {
		return t.fit.slope / t.fit.radius
	}
	v := t.Frame.Vector(t.fit.axis)
	if tr := v.Transverse(); tr > 0 {
		return v.K() / tr
	}
	return 0
}

// RMSW returns the transverse residual spread of the last fit.
func (t *Track) RMSW() float64 { return t.fit.rmsW }

// RMSH returns the longitudinal residual spread of the last fit.
func (t *Track) RMSH() float64 { return t.fit.rmsH }

// Helicity is +1 when travelling from tail to head moves away from the
// frame origin and -1 otherwise. Non-helix tracks report +1.
func (t *Track) Helicity() int {
	if !t.IsHelix() {
		return 1
	}
	return t.fit.helicity
}

// TrackLength returns the path length between tail and head.
func (t *Track) TrackLength() float64 {
	if t.IsHelix() {
		return (t.fit.alphaHead - t.fit.alphaTail) * t.lengthPerAlpha()
	}
	if len(t.hits) < 2 {
		return 0
	}
	return t.fit.tHead - t.fit.tTail
}

// PositionAtHead returns the model position of the head end.
func (t *Track) PositionAtHead() r3.Vec { return t.ExtrapolateHead(0) }

// PositionAtTail returns the model position of the tail end.
func (t *Track) PositionAtTail() r3.Vec { return t.ExtrapolateTail(0) }

// ExtrapolateHead returns the point length beyond the head along the model.
func (t *Track) ExtrapolateHead(length float64) r3.Vec {
	if t.IsHelix() {
		return t.helixPoint(t.fit.alphaHead + length/t.lengthPerAlpha())
	}
	if len(t.hits) < 2 {
		return t.fit.mean
	}
	return t.axisPoint(t.fit.tHead + length)
}

// ExtrapolateTail returns the point length beyond the tail along the model.
func (t *Track) ExtrapolateTail(length float64) r3.Vec {
	if t.IsHelix() {
		return t.helixPoint(t.fit.alphaTail - length/t.lengthPerAlpha())
	}
	if len(t.hits) < 2 {
		return t.fit.mean
	}
	return t.axisPoint(t.fit.tTail - length)
}

// Map expresses p in the track's local frame: X is the transverse offset
// from the model, Y the longitudinal offset and Z the travel length along
// the model.
func (t *Track) Map(p r3.Vec) r3.Vec {
	f := &t.fit
	if t.IsHelix() {
		i, j, k := t.Frame.IJK(p)
		alpha := t.alphaOf(p)
		return r3.Vec{
			X: math.Hypot(i-f.ci, j-f.cj) - f.radius,
			Y: k - (f.slope*alpha + f.k0),
			Z: alpha * t.lengthPerAlpha(),
		}
	}
	d := r3.Sub(p, f.mean)
	s := r3.Dot(d, f.axis)
	perp := t.Frame.Vector(r3.Sub(d, r3.Scale(s, f.axis)))
	return r3.Vec{X: perp.Transverse(), Y: perp.K(), Z: s}
}

// AlphaAtTravelLength converts a helix path length to a turning angle.
func (t *Track) AlphaAtTravelLength(length float64) float64 {
	if !t.IsHelix() {
		return 0
	}
	return length / t.lengthPerAlpha()
}

// ProjectOnHelix returns the model point closest in turning angle (or, for
// non-helix tracks, along the principal axis) to p.
func (t *Track) ProjectOnHelix(p r3.Vec) r3.Vec {
	if t.IsHelix() {
		return t.helixPoint(t.alphaOf(p))
	}
	return t.axisPoint(r3.Dot(r3.Sub(p, t.fit.mean), t.fit.axis))
}

// PerpLine returns the vector from the principal line to p.
func (t *Track) PerpLine(p r3.Vec) geom.AxisVector {
	d := r3.Sub(p, t.fit.mean)
	s := r3.Dot(d, t.fit.axis)
	return t.Frame.Vector(r3.Sub(d, r3.Scale(s, t.fit.axis)))
}

// PerpPlane returns the vector from the principal plane to p.
func (t *Track) PerpPlane(p r3.Vec) geom.AxisVector {
	d := r3.Sub(p, t.fit.mean)
	return t.Frame.Vector(r3.Scale(r3.Dot(d, t.fit.normal), t.fit.normal))
}

// PerpendicularDistance returns the distance from p to the current model.
func (t *Track) PerpendicularDistance(p r3.Vec) float64 {
	switch t.fit.status {
	case StatusHelix:
		q := t.Map(p)
		return math.Hypot(q.X, q.Y)
	case StatusPlane:
		return t.PerpPlane(p).Mag()
	}
	return t.PerpLine(p).Mag()
}
