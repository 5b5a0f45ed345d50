package vo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/odometry.report/internal/camera"
)

// RelativeMotion is the rigid transform between two consecutive frames:
// rotation plus a unit-norm translation direction (monocular motion is
// scale ambiguous). The rotation is row-major. Valid is false when the
// motion could not be established; such motions carry zero rotation and
// translation and must not be composed.
type RelativeMotion struct {
	R           [9]float64
	T           [3]float64
	InlierCount int
	Valid       bool
}

// InvalidMotion returns the motion recorded for a failed step.
func InvalidMotion() RelativeMotion {
	return RelativeMotion{Valid: false}
}

// poseCandidate is one of the four algebraic decompositions of an
// essential matrix.
type poseCandidate struct {
	r *mat.Dense
	t [3]float64
}

// EstimateRelativePose decomposes the fitted essential matrix into its
// four rotation/translation candidates and selects the one for which the
// majority of inlier correspondences triangulate in front of both
// cameras. Returns ErrAmbiguousMotion when no candidate wins an outright
// majority.
func EstimateRelativePose(res *FilterResult, in camera.Intrinsics) (RelativeMotion, error) {
	if res == nil || res.E == nil {
		return InvalidMotion(), fmt.Errorf("%w: no epipolar model", ErrDegenerateGeometry)
	}

	candidates, err := decomposeEssential(res.E)
	if err != nil {
		return InvalidMotion(), err
	}

	pairs := normalizePairs(res.Inliers, in)

	// Score every candidate by positive-depth support. The scoring is a
	// pure function of the candidate, so the outcome does not depend on
	// enumeration order.
	counts := make([]int, len(candidates))
	for i, c := range candidates {
		counts[i] = positiveDepthCount(c, pairs)
	}

	best, bestCount, tied := -1, -1, false
	for i, n := range counts {
		switch {
		case n > bestCount:
			best, bestCount, tied = i, n, false
		case n == bestCount:
			tied = true
		}
	}

	if tied || bestCount*2 <= len(pairs) {
		return InvalidMotion(), fmt.Errorf("%w: best depth support %d of %d",
			ErrAmbiguousMotion, bestCount, len(pairs))
	}

	winner := candidates[best]
	var motion RelativeMotion
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			motion.R[r*3+c] = winner.r.At(r, c)
		}
	}
	motion.T = normalize3(winner.t)
	motion.InlierCount = len(res.Inliers)
	motion.Valid = true
	Tracef("[Pose] candidate %d wins with %d/%d positive depths", best, bestCount, len(pairs))
	return motion, nil
}

// decomposeEssential produces the four (R, t) candidates of an essential
// matrix via its SVD.
func decomposeEssential(e *mat.Dense) ([]poseCandidate, error) {
	var svd mat.SVD
	if !svd.Factorize(e, mat.SVDFull) {
		return nil, fmt.Errorf("%w: essential decomposition failed", ErrDegenerateGeometry)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Force proper rotations: U and V must both have determinant +1.
	if mat.Det(&u) < 0 {
		u.Scale(-1, &u)
	}
	if mat.Det(&v) < 0 {
		v.Scale(-1, &v)
	}

	w := mat.NewDense(3, 3, []float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	})

	var ra, rb, tmp mat.Dense
	tmp.Mul(&u, w)
	ra.Mul(&tmp, v.T())
	tmp.Mul(&u, w.T())
	rb.Mul(&tmp, v.T())

	t := [3]float64{u.At(0, 2), u.At(1, 2), u.At(2, 2)}
	neg := [3]float64{-t[0], -t[1], -t[2]}

	return []poseCandidate{
		{r: &ra, t: t},
		{r: &ra, t: neg},
		{r: &rb, t: t},
		{r: &rb, t: neg},
	}, nil
}

// positiveDepthCount triangulates each pair under the candidate and
// counts points with positive depth in both cameras.
func positiveDepthCount(c poseCandidate, pairs []normalizedPair) int {
	count := 0
	for _, p := range pairs {
		x, ok := triangulate(c, p)
		if !ok {
			continue
		}
		if x[2] <= 0 {
			continue
		}
		// Depth in the second camera: z component of R*x + t.
		z2 := c.r.At(2, 0)*x[0] + c.r.At(2, 1)*x[1] + c.r.At(2, 2)*x[2] + c.t[2]
		if z2 > 0 {
			count++
		}
	}
	return count
}

// triangulate solves the linear (DLT) triangulation of one normalized
// correspondence with P1 = [I|0] and P2 = [R|t]. The result is in the
// first camera's coordinates.
func triangulate(c poseCandidate, p normalizedPair) ([3]float64, bool) {
	r := c.r
	a := mat.NewDense(4, 4, []float64{
		-1, 0, p.x1, 0,
		0, -1, p.y1, 0,
		p.x2*r.At(2, 0) - r.At(0, 0), p.x2*r.At(2, 1) - r.At(0, 1), p.x2*r.At(2, 2) - r.At(0, 2), p.x2*c.t[2] - c.t[0],
		p.y2*r.At(2, 0) - r.At(1, 0), p.y2*r.At(2, 1) - r.At(1, 1), p.y2*r.At(2, 2) - r.At(1, 2), p.y2*c.t[2] - c.t[1],
	})

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return [3]float64{}, false
	}
	var v mat.Dense
	svd.VTo(&v)

	wHom := v.At(3, 3)
	if math.Abs(wHom) < 1e-12 {
		return [3]float64{}, false
	}
	return [3]float64{
		v.At(0, 3) / wHom,
		v.At(1, 3) / wHom,
		v.At(2, 3) / wHom,
	}, true
}

func normalize3(t [3]float64) [3]float64 {
	n := math.Sqrt(t[0]*t[0] + t[1]*t[1] + t[2]*t[2])
	if n < 1e-12 {
		return t
	}
	return [3]float64{t[0] / n, t[1] / n, t[2] / n}
}

// RotationToQuaternion converts a row-major rotation matrix to a unit
// quaternion (w, x, y, z), choosing the numerically stable branch by the
// largest diagonal term.
func RotationToQuaternion(r [9]float64) [4]float64 {
	tr := r[0] + r[4] + r[8]
	var q [4]float64
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q[0] = s / 4
		q[1] = (r[7] - r[5]) / s
		q[2] = (r[2] - r[6]) / s
		q[3] = (r[3] - r[1]) / s
	case r[0] > r[4] && r[0] > r[8]:
		s := math.Sqrt(1+r[0]-r[4]-r[8]) * 2
		q[0] = (r[7] - r[5]) / s
		q[1] = s / 4
		q[2] = (r[1] + r[3]) / s
		q[3] = (r[2] + r[6]) / s
	case r[4] > r[8]:
		s := math.Sqrt(1+r[4]-r[0]-r[8]) * 2
		q[0] = (r[2] - r[6]) / s
		q[1] = (r[1] + r[3]) / s
		q[2] = s / 4
		q[3] = (r[5] + r[7]) / s
	default:
		s := math.Sqrt(1+r[8]-r[0]-r[4]) * 2
		q[0] = (r[3] - r[1]) / s
		q[1] = (r[2] + r[6]) / s
		q[2] = (r[5] + r[7]) / s
		q[3] = s / 4
	}
	return q
}

// QuaternionToRotation converts a unit quaternion (w, x, y, z) back to a
// row-major rotation matrix.
func QuaternionToRotation(q [4]float64) [9]float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}
