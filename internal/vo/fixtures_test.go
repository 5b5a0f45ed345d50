package vo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/odometry.report/internal/camera"
)

// Shared geometric fixtures: a known rigid motion applied to a known 3D
// point cloud, projected through known intrinsics. The geometry stages
// are tested against these exact inputs rather than rendered images.

var testIntrinsics = camera.Intrinsics{Fx: 700, Fy: 700, Cx: 320, Cy: 240}

// rotY returns the row-major rotation of theta radians about the Y axis.
func rotY(theta float64) [9]float64 {
	c, s := math.Cos(theta), math.Sin(theta)
	return [9]float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}
}

// syntheticPoints draws a non-planar point cloud in front of the camera.
func syntheticPoints(n int, seed int64) [][3]float64 {
	rng := rand.New(rand.NewSource(seed))
	pts := make([][3]float64, n)
	for i := range pts {
		pts[i] = [3]float64{
			rng.Float64()*4 - 2,
			rng.Float64()*4 - 2,
			rng.Float64()*4 + 4,
		}
	}
	return pts
}

// transformPoint applies X' = R*X + t.
func transformPoint(r [9]float64, t [3]float64, p [3]float64) [3]float64 {
	return [3]float64{
		r[0]*p[0] + r[1]*p[1] + r[2]*p[2] + t[0],
		r[3]*p[0] + r[4]*p[1] + r[5]*p[2] + t[1],
		r[6]*p[0] + r[7]*p[1] + r[8]*p[2] + t[2],
	}
}

// projectPoint projects a camera-frame point to pixels. ok is false for
// points at or behind the camera.
func projectPoint(in camera.Intrinsics, p [3]float64) (px, py float64, ok bool) {
	if p[2] <= 1e-9 {
		return 0, 0, false
	}
	px, py = in.Project(p[0]/p[2], p[1]/p[2])
	return px, py, true
}

// makeCorrespondences projects the cloud into the previous camera
// (identity) and the current camera (r, t) and pairs the projections.
func makeCorrespondences(t *testing.T, in camera.Intrinsics, r [9]float64, tr [3]float64, pts [][3]float64) []Correspondence {
	t.Helper()
	var corr []Correspondence
	for _, p := range pts {
		x1, y1, ok := projectPoint(in, p)
		if !ok {
			continue
		}
		q := transformPoint(r, tr, p)
		x2, y2, ok := projectPoint(in, q)
		if !ok {
			continue
		}
		corr = append(corr, Correspondence{
			Prev:       Keypoint{X: x1, Y: y1},
			Cur:        Keypoint{X: x2, Y: y2},
			Confidence: 1,
		})
	}
	if len(corr) < 10 {
		t.Fatalf("fixture produced only %d correspondences", len(corr))
	}
	return corr
}

// stepMotion is the rigid step used across the geometry tests: a small
// yaw with a mostly-forward translation.
func stepMotion() ([9]float64, [3]float64) {
	return rotY(0.03), [3]float64{0.1, 0.02, 0.3}
}
