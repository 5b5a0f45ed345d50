package camera

import "fmt"

// Intrinsics holds the pinhole camera parameters shared read-only across
// the whole pipeline: focal lengths and principal point, in pixels.
type Intrinsics struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
}

// Validate checks that the intrinsics describe a usable pinhole camera.
func (in Intrinsics) Validate() error {
	if in.Fx <= 0 || in.Fy <= 0 {
		return fmt.Errorf("focal lengths must be positive, got fx=%g fy=%g", in.Fx, in.Fy)
	}
	if in.Cx < 0 || in.Cy < 0 {
		return fmt.Errorf("principal point must be non-negative, got cx=%g cy=%g", in.Cx, in.Cy)
	}
	return nil
}

// Normalize converts a pixel coordinate into normalized camera
// coordinates (the z=1 image plane).
func (in Intrinsics) Normalize(px, py float64) (x, y float64) {
	return (px - in.Cx) / in.Fx, (py - in.Cy) / in.Fy
}

// Project converts normalized camera coordinates back to pixels.
func (in Intrinsics) Project(x, y float64) (px, py float64) {
	return x*in.Fx + in.Cx, y*in.Fy + in.Cy
}

// MeanFocal returns the mean of the two focal lengths. Residual
// thresholds given in pixels are divided by this to move them into
// normalized coordinates.
func (in Intrinsics) MeanFocal() float64 {
	return (in.Fx + in.Fy) / 2
}
