package helix

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/helixtrack/internal/tpc/hits"
)

const (
	// MaxHelixRadius bounds the circle fit; larger radii are treated as
	// straight and fall back to the line/plane fit.
	MaxHelixRadius = 1e5

	// LineAspect is the largest ratio of second to first principal spread
	// still classified as a line.
	LineAspect = 0.05
)

// fitState is the result of the last Fit or FitPlane call.
type fitState struct {
	status Status

	// principal-axis model, always filled for two or more hits
	mean   r3.Vec
	axis   r3.Vec // direction of largest spread
	normal r3.Vec // direction of smallest spread
	tHead  float64
	tTail  float64
	rmsPCA float64

	// helix model in (I, J, K), valid for StatusHelix
	ci, cj    float64 // circle centre
	radius    float64
	slope     float64 // dK/dalpha
	k0        float64 // K at alpha = 0
	alphaHead float64
	alphaTail float64
	rmsW      float64
	rmsH      float64
	helicity  int
}

// FitPlane classifies the hits as bad, line or plane with a charge-weighted
// principal component analysis, discarding any helix fit.
func (t *Track) FitPlane() {
	t.fit = fitState{status: StatusBad, helicity: 1}
	n := len(t.hits)
	if n == 0 {
		return
	}
	f := &t.fit
	f.mean = hits.Mean(t.hits)
	if n < 2 {
		return
	}

	var wsum float64
	var cov [9]float64
	for _, h := range t.hits {
		w := hits.Weight(h)
		d := r3.Sub(h.Position, f.mean)
		c := [3]float64{d.X, d.Y, d.Z}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				cov[3*a+b] += w * c[a] * c[b]
			}
		}
		wsum += w
	}
	for i := range cov {
		cov[i] /= wsum
	}

	var es mat.EigenSym
	if !es.Factorize(mat.NewSymDense(3, cov[:]), true) {
		return
	}
	vals := es.Values(nil) // ascending
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	column := func(c int) r3.Vec {
		return r3.Vec{X: vecs.At(0, c), Y: vecs.At(1, c), Z: vecs.At(2, c)}
	}
	lmin, lmid, lmax := math.Max(vals[0], 0), math.Max(vals[1], 0), math.Max(vals[2], 0)
	if lmax <= 0 {
		return
	}
	f.axis = column(2)
	f.normal = column(0)
	// +axis points away from the frame origin, like the helix head.
	ai, aj, _ := t.Frame.IJK(f.axis)
	mi, mj, _ := t.Frame.IJK(f.mean)
	if ai*mi+aj*mj < 0 {
		f.axis = r3.Scale(-1, f.axis)
	}
	f.tHead, f.tTail = math.Inf(-1), math.Inf(1)
	for _, h := range t.hits {
		s := r3.Dot(r3.Sub(h.Position, f.mean), f.axis)
		f.tHead = math.Max(f.tHead, s)
		f.tTail = math.Min(f.tTail, s)
	}
	if n < 3 {
		return
	}

	if math.Sqrt(lmid/lmax) < LineAspect {
		f.status = StatusLine
		f.rmsPCA = math.Sqrt(lmid + lmin)
	} else {
		f.status = StatusPlane
		f.rmsPCA = math.Sqrt(lmin)
	}
	f.rmsW, f.rmsH = f.rmsPCA, f.rmsPCA
}

// Fit fits a helix through the hits. The circle is an algebraic least
// squares fit in (I, J) and K is fitted linearly against the turning angle,
// both weighted by charge. When the hits do not constrain a circle the
// track keeps the FitPlane classification. Fit never fails and repeated
// calls on the same hit set give identical parameters.
func (t *Track) Fit() {
	t.FitPlane()
	n := len(t.hits)
	if n < 3 {
		return
	}

	is := make([]float64, n)
	js := make([]float64, n)
	ks := make([]float64, n)
	ws := make([]float64, n)
	for x, h := range t.hits {
		is[x], js[x], ks[x] = t.Frame.IJK(h.Position)
		ws[x] = hits.Weight(h)
	}
	mi := stat.Mean(is, ws)
	mj := stat.Mean(js, ws)

	// (u^2 + v^2) + D u + E v + F = 0 on centred coordinates.
	a := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for x := range is {
		sw := math.Sqrt(ws[x])
		u, v := is[x]-mi, js[x]-mj
		a.Set(x, 0, sw*u)
		a.Set(x, 1, sw*v)
		a.Set(x, 2, sw)
		b.SetVec(x, -sw*(u*u+v*v))
	}
	var qr mat.QR
	qr.Factorize(a)
	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return
	}
	u0, v0 := -params.AtVec(0)/2, -params.AtVec(1)/2
	r2 := u0*u0 + v0*v0 - params.AtVec(2)
	if !(r2 > 0) {
		return
	}
	radius := math.Sqrt(r2)
	if radius > MaxHelixRadius || math.IsNaN(radius) {
		return
	}
	ci, cj := mi+u0, mj+v0

	ref := math.Atan2(mj-cj, mi-ci)
	alphas := make([]float64, n)
	for x := range is {
		alphas[x] = unwrap(math.Atan2(js[x]-cj, is[x]-ci), ref)
	}
	k0, slope := stat.LinearRegression(alphas, ks, ws, false)

	f := &t.fit
	f.status = StatusHelix
	f.ci, f.cj = ci, cj
	f.radius = radius
	f.slope, f.k0 = slope, k0
	f.alphaHead, f.alphaTail = math.Inf(-1), math.Inf(1)
	var sw, sdr, sdk float64
	for x := range is {
		f.alphaHead = math.Max(f.alphaHead, alphas[x])
		f.alphaTail = math.Min(f.alphaTail, alphas[x])
		dr := math.Hypot(is[x]-ci, js[x]-cj) - radius
		dk := ks[x] - (slope*alphas[x] + k0)
		sdr += ws[x] * dr * dr
		sdk += ws[x] * dk * dk
		sw += ws[x]
	}
	f.rmsW = math.Sqrt(sdr / sw)
	f.rmsH = math.Sqrt(sdk / sw)

	hi, hj, _ := t.Frame.IJK(t.helixPoint(f.alphaHead))
	ti, tj, _ := t.Frame.IJK(t.helixPoint(f.alphaTail))
	f.helicity = 1
	if math.Hypot(hi, hj) < math.Hypot(ti, tj) {
		f.helicity = -1
	}
}

// unwrap returns the angle equivalent to a that lies within pi of ref.
func unwrap(a, ref float64) float64 {
	d := math.Remainder(a-ref, 2*math.Pi)
	return ref + d
}
