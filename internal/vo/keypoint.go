package vo

import "math"

// DescriptorSize is the fixed length of every keypoint descriptor. All
// descriptors within a frame (and across frames) share this length.
const DescriptorSize = 64

// Keypoint is a detected, described salient image location. Coordinates
// are sub-pixel, in pixels. Score is the detector response used for
// strength ordering. Immutable after extraction.
type Keypoint struct {
	X, Y        float64
	Score       float64
	Scale       float64
	Orientation float64 // radians, local gradient direction
	Descriptor  [DescriptorSize]float64
}

// Correspondence pairs a keypoint from the previous frame with one from
// the current frame, with a match confidence in (0, 1].
type Correspondence struct {
	Prev       Keypoint
	Cur        Keypoint
	Confidence float64
}

// DescriptorDistance returns the Euclidean distance between two
// descriptors.
func DescriptorDistance(a, b *[DescriptorSize]float64) float64 {
	var sum float64
	for i := 0; i < DescriptorSize; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
