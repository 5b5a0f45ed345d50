package vo

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func singularValues(t *testing.T, m *mat.Dense) []float64 {
	t.Helper()
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		t.Fatal("SVD factorization failed")
	}
	return svd.Values(nil)
}

func TestEstimateEssentialSatisfiesEpipolarConstraint(t *testing.T) {
	r, tr := stepMotion()
	corr := makeCorrespondences(t, testIntrinsics, r, tr, syntheticPoints(40, 51))
	pairs := normalizePairs(corr, testIntrinsics)

	idx := make([]int, len(pairs))
	for i := range idx {
		idx[i] = i
	}
	e, ok := estimateEssential(pairs, idx)
	if !ok {
		t.Fatal("estimateEssential failed on exact data")
	}

	// x2^T E x1 = 0 for every generating pair.
	for i, p := range pairs {
		c := p.x2*(e.At(0, 0)*p.x1+e.At(0, 1)*p.y1+e.At(0, 2)) +
			p.y2*(e.At(1, 0)*p.x1+e.At(1, 1)*p.y1+e.At(1, 2)) +
			(e.At(2, 0)*p.x1 + e.At(2, 1)*p.y1 + e.At(2, 2))
		if math.Abs(c) > 1e-8 {
			t.Fatalf("pair %d violates constraint: %g", i, c)
		}
	}
}

func TestEstimateEssentialSingularValues(t *testing.T) {
	r, tr := stepMotion()
	corr := makeCorrespondences(t, testIntrinsics, r, tr, syntheticPoints(40, 52))
	pairs := normalizePairs(corr, testIntrinsics)

	idx := []int{0, 1, 2, 3, 4, 5, 6, 7}
	e, ok := estimateEssential(pairs, idx)
	if !ok {
		t.Fatal("estimateEssential failed on a minimal sample")
	}

	sv := singularValues(t, e)
	if math.Abs(sv[0]-sv[1]) > 1e-9*sv[0] {
		t.Errorf("top singular values differ: %g vs %g", sv[0], sv[1])
	}
	if sv[2] > 1e-9*sv[0] {
		t.Errorf("third singular value %g not zero", sv[2])
	}
}

func TestEstimateEssentialTooFew(t *testing.T) {
	if _, ok := estimateEssential(nil, []int{0, 1, 2}); ok {
		t.Error("estimateEssential accepted fewer than 8 pairs")
	}
}

func TestSampsonDistanceExactPairs(t *testing.T) {
	r, tr := stepMotion()
	corr := makeCorrespondences(t, testIntrinsics, r, tr, syntheticPoints(40, 53))
	pairs := normalizePairs(corr, testIntrinsics)

	idx := make([]int, len(pairs))
	for i := range idx {
		idx[i] = i
	}
	e, ok := estimateEssential(pairs, idx)
	if !ok {
		t.Fatal("estimateEssential failed")
	}

	for i, p := range pairs {
		if d := sampsonDistance(e, p); d > 1e-8 {
			t.Fatalf("pair %d Sampson distance = %g, want ~0", i, d)
		}
	}

	// A grossly displaced pair must sit far outside any plausible inlier
	// threshold.
	bad := pairs[0]
	bad.x2 += 0.1
	bad.y2 -= 0.1
	if d := sampsonDistance(e, bad); d < 1e-3 {
		t.Errorf("displaced pair distance = %g, want large", d)
	}
}
