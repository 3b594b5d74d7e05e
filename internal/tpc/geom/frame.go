package geom

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Axis names a detector axis, optionally negated.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisMinusX
	AxisMinusY
	AxisMinusZ
)

// String returns the short axis name used in configuration files.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	case AxisMinusX:
		return "-x"
	case AxisMinusY:
		return "-y"
	case AxisMinusZ:
		return "-z"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// ParseAxis parses "x", "y", "z" or their negations ("-x", ...).
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x", "+x":
		return AxisX, nil
	case "y", "+y":
		return AxisY, nil
	case "z", "+z":
		return AxisZ, nil
	case "-x":
		return AxisMinusX, nil
	case "-y":
		return AxisMinusY, nil
	case "-z":
		return AxisMinusZ, nil
	}
	return AxisZ, fmt.Errorf("unknown axis %q", s)
}

// Negative reports whether the axis points along a negated detector axis.
func (a Axis) Negative() bool { return a >= AxisMinusX }

// component reads the detector component the axis refers to, with sign.
func (a Axis) component(v r3.Vec) float64 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	case AxisMinusX:
		return -v.X
	case AxisMinusY:
		return -v.Y
	case AxisMinusZ:
		return -v.Z
	}
	return math.NaN()
}

// set writes value into the detector component the axis refers to.
func (a Axis) set(v *r3.Vec, value float64) {
	switch a {
	case AxisX:
		v.X = value
	case AxisY:
		v.Y = value
	case AxisZ:
		v.Z = value
	case AxisMinusX:
		v.X = -value
	case AxisMinusY:
		v.Y = -value
	case AxisMinusZ:
		v.Z = -value
	}
}

// Frame is a right-handed (I, J, K) permutation of the detector axes with
// K along the reference axis.
type Frame struct {
	Ref Axis
}

// NewFrame returns the frame whose K axis is ref.
func NewFrame(ref Axis) Frame { return Frame{Ref: ref} }

// Axes returns the detector axes backing I, J and K.
func (f Frame) Axes() (i, j, k Axis) {
	switch f.Ref {
	case AxisX:
		return AxisY, AxisZ, AxisX
	case AxisY:
		return AxisZ, AxisX, AxisY
	case AxisMinusX:
		return AxisZ, AxisY, AxisMinusX
	case AxisMinusY:
		return AxisX, AxisZ, AxisMinusY
	case AxisMinusZ:
		return AxisY, AxisX, AxisMinusZ
	}
	return AxisX, AxisY, AxisZ
}

// IJK returns the frame components of a detector vector.
func (f Frame) IJK(v r3.Vec) (i, j, k float64) {
	ai, aj, ak := f.Axes()
	return ai.component(v), aj.component(v), ak.component(v)
}

// FromIJK maps frame components back to a detector vector.
func (f Frame) FromIJK(i, j, k float64) r3.Vec {
	ai, aj, ak := f.Axes()
	var v r3.Vec
	ai.set(&v, i)
	aj.set(&v, j)
	ak.set(&v, k)
	return v
}

// Vector wraps a detector vector with this frame's reference axis.
func (f Frame) Vector(v r3.Vec) AxisVector {
	return AxisVector{Vec: v, Ref: f.Ref}
}

// AxisVector is a detector vector read through a reference axis.
type AxisVector struct {
	r3.Vec
	Ref Axis
}

func (v AxisVector) frame() Frame { return Frame{Ref: v.Ref} }

// I returns the first transverse component.
func (v AxisVector) I() float64 {
	i, _, _ := v.frame().IJK(v.Vec)
	return i
}

// J returns the second transverse component.
func (v AxisVector) J() float64 {
	_, j, _ := v.frame().IJK(v.Vec)
	return j
}

// K returns the longitudinal component.
func (v AxisVector) K() float64 {
	_, _, k := v.frame().IJK(v.Vec)
	return k
}

// SetK replaces the longitudinal component, keeping I and J.
func (v *AxisVector) SetK(k float64) {
	f := v.frame()
	i, j, _ := f.IJK(v.Vec)
	v.Vec = f.FromIJK(i, j, k)
}

// Transverse returns the length of the (I, J) projection.
func (v AxisVector) Transverse() float64 {
	i, j, _ := v.frame().IJK(v.Vec)
	return math.Hypot(i, j)
}

// Mag returns the vector length.
func (v AxisVector) Mag() float64 { return r3.Norm(v.Vec) }
