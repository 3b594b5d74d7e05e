package padplane

import (
	"sort"

	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

// padCell holds the pooled hits of one pad, in insertion order.
type padCell struct {
	row   int
	layer int
	hits  []*hits.Hit
}

// Pool is the set of hits not currently owned by a track or a finder buffer,
// indexed by pad. A hit pulled from the pool belongs to the caller until it
// is returned.
//
// Pads are kept in (row, layer) order so seeding is deterministic. Pads are
// never dropped within an event, which keeps the seed cursor stable.
type Pool struct {
	layout Layout
	cells  map[int64]*padCell
	order  []*padCell
	cursor int
	count  int
}

// NewPool returns an empty pool over layout.
func NewPool(layout Layout) *Pool {
	return &Pool{
		layout: layout,
		cells:  make(map[int64]*padCell),
	}
}

// Reset discards the current hit map, clears every given hit's
// reconstruction state and pools them.
func (p *Pool) Reset(hs []*hits.Hit) {
	p.cells = make(map[int64]*padCell, len(hs))
	p.order = p.order[:0]
	p.count = 0
	for _, h := range hs {
		h.Reset()
		p.Return(h)
	}
	p.cursor = 0
}

// ResetPhase rewinds the seed cursor and drops release markers from pooled
// hits, so hits given back by abandoned tracks can seed again.
func (p *Pool) ResetPhase() {
	p.cursor = 0
	for _, c := range p.order {
		for _, h := range c.hits {
			for h.RemoveTrackCand(hits.Released) {
			}
		}
	}
}

// Return inserts h into the pool.
func (p *Pool) Return(h *hits.Hit) {
	c := p.cell(h.Row, h.Layer, true)
	c.hits = append(c.hits, h)
	p.count++
}

// ReturnAll inserts every hit of l into the pool and empties l.
func (p *Pool) ReturnAll(l *hits.List) {
	for _, h := range l.Hits() {
		p.Return(h)
	}
	l.Clear()
}

// PullNextFreeHit removes and returns the first unclaimed hit at or after
// the seed cursor, or nil when none is left in this phase.
func (p *Pool) PullNextFreeHit() *hits.Hit {
	for ; p.cursor < len(p.order); p.cursor++ {
		c := p.order[p.cursor]
		for idx, h := range c.hits {
			if h.NumTrackCands() == 0 {
				p.take(c, idx)
				return h
			}
		}
	}
	return nil
}

// PullNeighbors moves every pooled hit on a pad adjacent to (or shared with)
// any hit of around into dst.
func (p *Pool) PullNeighbors(around []*hits.Hit, dst *hits.List) {
	for _, h := range around {
		p.pullRange(h.Row, h.Layer, 1, dst)
	}
}

// PullNeighborsAt moves every pooled hit within padRange pads of the pad
// containing (i, j) into dst.
func (p *Pool) PullNeighborsAt(i, j float64, padRange int, dst *hits.List) {
	pad, _ := p.layout.PadAt(i, j)
	p.pullRange(pad.Row, pad.Layer, padRange, dst)
}

// Len returns the number of pooled hits.
func (p *Pool) Len() int { return p.count }

// Hits returns a snapshot of the pooled hits in pool order.
func (p *Pool) Hits() []*hits.Hit {
	out := make([]*hits.Hit, 0, p.count)
	for _, c := range p.order {
		out = append(out, c.hits...)
	}
	return out
}

// InBoundary reports whether (i, j) lies on the pad plane.
func (p *Pool) InBoundary(i, j float64) bool { return p.layout.InBoundary(i, j) }

// PadDisplacement returns the pad-to-pad distance of the layout.
func (p *Pool) PadDisplacement() float64 { return p.layout.PadDisplacement() }

// Layout returns the pad geometry the pool indexes by.
func (p *Pool) Layout() Layout { return p.layout }

func (p *Pool) pullRange(row, layer, padRange int, dst *hits.List) {
	if padRange < 0 {
		padRange = 0
	}
	for r := row - padRange; r <= row+padRange; r++ {
		for l := layer - padRange; l <= layer+padRange; l++ {
			c := p.cell(r, l, false)
			if c == nil || len(c.hits) == 0 {
				continue
			}
			for _, h := range c.hits {
				dst.Add(h)
			}
			p.count -= len(c.hits)
			clear(c.hits)
			c.hits = c.hits[:0]
		}
	}
}

func (p *Pool) take(c *padCell, idx int) {
	copy(c.hits[idx:], c.hits[idx+1:])
	c.hits[len(c.hits)-1] = nil
	c.hits = c.hits[:len(c.hits)-1]
	p.count--
}

// cell looks up the pad (row, layer), creating it in order when create is set.
func (p *Pool) cell(row, layer int, create bool) *padCell {
	id := padID(row, layer)
	if c, ok := p.cells[id]; ok {
		return c
	}
	if !create {
		return nil
	}
	c := &padCell{row: row, layer: layer}
	p.cells[id] = c
	at := sort.Search(len(p.order), func(k int) bool {
		o := p.order[k]
		return o.row > row || (o.row == row && o.layer > layer)
	})
	p.order = append(p.order, nil)
	copy(p.order[at+1:], p.order[at:])
	p.order[at] = c
	if at <= p.cursor && p.cursor < len(p.order)-1 {
		p.cursor++
	}
	return c
}

// padID computes a unique pad identifier using Szudzik's pairing function
// over zigzag-encoded indices, so negative rows and layers are handled.
func padID(row, layer int) int64 {
	a := zigzag(int64(row))
	b := zigzag(int64(layer))
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}
