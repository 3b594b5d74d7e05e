// Package geom owns the coordinate conventions of the TPC reconstruction.
//
// Detector positions are gonum r3.Vec values in the detector frame. A Frame
// picks one detector axis as the reference (longitudinal, K) axis and names
// the other two I and J, so that fits and pad lookups can work in a
// canonical (transverse, transverse, longitudinal) frame regardless of how
// the detector is mounted.
package geom
