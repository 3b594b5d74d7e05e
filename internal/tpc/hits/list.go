package hits

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// List is an ordered hit buffer. Buffers own their hits: moving a hit from
// one buffer to another must remove it from the first.
type List struct {
	hits []*Hit
}

// NewList returns a buffer holding hs in order.
func NewList(hs ...*Hit) *List {
	l := &List{}
	l.hits = append(l.hits, hs...)
	return l
}

// Add appends a hit.
func (l *List) Add(h *Hit) { l.hits = append(l.hits, h) }

// Len returns the number of hits.
func (l *List) Len() int { return len(l.hits) }

// At returns the i-th hit.
func (l *List) At(i int) *Hit { return l.hits[i] }

// Last returns the last hit, or nil when empty.
func (l *List) Last() *Hit {
	if len(l.hits) == 0 {
		return nil
	}
	return l.hits[len(l.hits)-1]
}

// PopLast removes and returns the last hit, or nil when empty.
func (l *List) PopLast() *Hit {
	n := len(l.hits)
	if n == 0 {
		return nil
	}
	h := l.hits[n-1]
	l.hits[n-1] = nil
	l.hits = l.hits[:n-1]
	return h
}

// Remove drops h from the buffer, keeping order.
func (l *List) Remove(h *Hit) bool {
	for i, x := range l.hits {
		if x == h {
			copy(l.hits[i:], l.hits[i+1:])
			l.hits[len(l.hits)-1] = nil
			l.hits = l.hits[:len(l.hits)-1]
			return true
		}
	}
	return false
}

// Clear empties the buffer.
func (l *List) Clear() {
	for i := range l.hits {
		l.hits[i] = nil
	}
	l.hits = l.hits[:0]
}

// MoveTo appends every hit to dst and empties l.
func (l *List) MoveTo(dst *List) {
	dst.hits = append(dst.hits, l.hits...)
	l.Clear()
}

// Hits returns the backing slice. Callers must not keep it across mutations.
func (l *List) Hits() []*Hit { return l.hits }

// Mean returns the charge-weighted mean position. Hits without positive
// charge weigh 1.
func (l *List) Mean() r3.Vec { return Mean(l.hits) }

// SortByDistanceDesc orders hits farthest-first from p, so PopLast yields
// the nearest hit.
func (l *List) SortByDistanceDesc(p r3.Vec) {
	sort.SliceStable(l.hits, func(a, b int) bool {
		da := r3.Norm2(r3.Sub(l.hits[a].Position, p))
		db := r3.Norm2(r3.Sub(l.hits[b].Position, p))
		return da > db
	})
}

// SortByCharge orders hits by ascending charge, so PopLast yields the
// highest-charge hit.
func (l *List) SortByCharge() {
	sort.SliceStable(l.hits, func(a, b int) bool {
		return l.hits[a].Charge < l.hits[b].Charge
	})
}

// Weight is the fit weight of a hit.
func Weight(h *Hit) float64 {
	if h.Charge > 0 {
		return h.Charge
	}
	return 1
}

// Mean returns the charge-weighted mean position of hs.
func Mean(hs []*Hit) r3.Vec {
	if len(hs) == 0 {
		return r3.Vec{}
	}
	xs := make([]float64, len(hs))
	ys := make([]float64, len(hs))
	zs := make([]float64, len(hs))
	ws := make([]float64, len(hs))
	for i, h := range hs {
		xs[i], ys[i], zs[i] = h.Position.X, h.Position.Y, h.Position.Z
		ws[i] = Weight(h)
	}
	return r3.Vec{X: stat.Mean(xs, ws), Y: stat.Mean(ys, ws), Z: stat.Mean(zs, ws)}
}
