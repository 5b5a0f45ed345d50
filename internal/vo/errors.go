package vo

import "errors"

// Failure taxonomy for the odometry pipeline. The first four are
// per-frame conditions: InvalidFrame skips the frame without a record,
// the other three produce an invalid TrajectoryRecord and move the
// accumulator to Degraded. ErrConfiguration is fatal at startup.
var (
	// ErrInvalidFrame marks a malformed input frame (zero dimensions or
	// a pixel buffer that does not match them).
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrInsufficientFeatures marks a matching step where one of the two
	// keypoint sets was empty.
	ErrInsufficientFeatures = errors.New("insufficient features")

	// ErrDegenerateGeometry marks a correspondence set too small or too
	// inconsistent to constrain a unique epipolar model.
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// ErrAmbiguousMotion marks a pose decomposition where no candidate
	// won a positive-depth majority.
	ErrAmbiguousMotion = errors.New("ambiguous motion")

	// ErrConfiguration marks malformed startup configuration. It aborts
	// the session before any frame is processed.
	ErrConfiguration = errors.New("configuration error")
)

// FailureReason names a recoverable failure for the record stream.
// Empty for valid records.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFeatures):
		return "insufficient_features"
	case errors.Is(err, ErrDegenerateGeometry):
		return "degenerate_geometry"
	case errors.Is(err, ErrAmbiguousMotion):
		return "ambiguous_motion"
	case errors.Is(err, ErrInvalidFrame):
		return "invalid_frame"
	default:
		return "internal_error"
	}
}
