package vo

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/odometry.report/internal/camera"
)

// normalizedPair is a correspondence in normalized camera coordinates
// (pixels through the inverse intrinsics). Index 1 is the previous
// frame, 2 the current.
type normalizedPair struct {
	x1, y1 float64
	x2, y2 float64
}

// normalizePairs converts correspondences into normalized coordinates.
func normalizePairs(corr []Correspondence, in camera.Intrinsics) []normalizedPair {
	pairs := make([]normalizedPair, len(corr))
	for i, c := range corr {
		x1, y1 := in.Normalize(c.Prev.X, c.Prev.Y)
		x2, y2 := in.Normalize(c.Cur.X, c.Cur.Y)
		pairs[i] = normalizedPair{x1: x1, y1: y1, x2: x2, y2: y2}
	}
	return pairs
}

// estimateEssential fits an essential matrix to the pairs selected by
// idx using the eight-point algorithm: least-squares null vector of the
// epipolar constraint system, projected onto the essential manifold
// (two equal singular values, third zero). Returns false when the system
// is rank deficient.
func estimateEssential(pairs []normalizedPair, idx []int) (*mat.Dense, bool) {
	if len(idx) < 8 {
		return nil, false
	}

	a := mat.NewDense(len(idx), 9, nil)
	for r, i := range idx {
		p := pairs[i]
		a.SetRow(r, []float64{
			p.x2 * p.x1, p.x2 * p.y1, p.x2,
			p.y2 * p.x1, p.y2 * p.y1, p.y2,
			p.x1, p.y1, 1,
		})
	}

	// Full SVD: with a minimal 8x9 system the null vector lives in the
	// right singular vectors a thin decomposition would drop.
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, false
	}
	var v mat.Dense
	svd.VTo(&v)

	e := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		e.Set(i/3, i%3, v.At(i, 8))
	}

	return projectEssential(e)
}

// projectEssential replaces the singular values of e with (s, s, 0),
// s being the mean of the two largest, producing a valid essential
// matrix.
func projectEssential(e *mat.Dense) (*mat.Dense, bool) {
	var svd mat.SVD
	if !svd.Factorize(e, mat.SVDFull) {
		return nil, false
	}
	sv := svd.Values(nil)
	if sv[0] < 1e-12 {
		return nil, false
	}
	s := (sv[0] + sv[1]) / 2

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	d := mat.NewDiagDense(3, []float64{s, s, 0})
	var tmp, out mat.Dense
	tmp.Mul(&u, d)
	out.Mul(&tmp, v.T())
	return &out, true
}

// sampsonDistance returns the first-order geometric (Sampson) distance
// of a normalized correspondence from the epipolar constraint of e.
func sampsonDistance(e *mat.Dense, p normalizedPair) float64 {
	// l2 = E * p1, l1 = E^T * p2 (epipolar lines).
	l2x := e.At(0, 0)*p.x1 + e.At(0, 1)*p.y1 + e.At(0, 2)
	l2y := e.At(1, 0)*p.x1 + e.At(1, 1)*p.y1 + e.At(1, 2)
	l2z := e.At(2, 0)*p.x1 + e.At(2, 1)*p.y1 + e.At(2, 2)

	l1x := e.At(0, 0)*p.x2 + e.At(1, 0)*p.y2 + e.At(2, 0)
	l1y := e.At(0, 1)*p.x2 + e.At(1, 1)*p.y2 + e.At(2, 1)

	c := p.x2*l2x + p.y2*l2y + l2z
	denom := l2x*l2x + l2y*l2y + l1x*l1x + l1y*l1y
	if denom < 1e-18 {
		return math.Inf(1)
	}
	return math.Abs(c) / math.Sqrt(denom)
}
