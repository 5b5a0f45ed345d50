// Package camera holds the frame and intrinsics types shared by the
// visual odometry pipeline, plus thin frame acquisition and persistence
// adapters. The pipeline core lives in internal/vo; this package has no
// geometry of its own.
package camera

import (
	"fmt"
	"time"
)

// Frame is a single grayscale camera frame. Pix holds row-major intensity
// samples, len(Pix) == Width*Height. Frames are immutable once built: the
// pipeline reads them but never writes back.
type Frame struct {
	Index     int64
	Timestamp time.Time
	Width     int
	Height    int
	Pix       []uint8
}

// NewFrame allocates an empty frame of the given dimensions.
func NewFrame(index int64, ts time.Time, width, height int) *Frame {
	return &Frame{
		Index:     index,
		Timestamp: ts,
		Width:     width,
		Height:    height,
		Pix:       make([]uint8, width*height),
	}
}

// Validate reports whether the frame is well formed: positive dimensions
// and a pixel buffer matching them.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("frame is nil")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame %d has empty dimensions %dx%d", f.Index, f.Width, f.Height)
	}
	if len(f.Pix) != f.Width*f.Height {
		return fmt.Errorf("frame %d pixel buffer is %d bytes, want %d", f.Index, len(f.Pix), f.Width*f.Height)
	}
	return nil
}

// At returns the intensity sample at integer coordinates (x, y).
// Coordinates outside the frame are clamped to the border.
func (f *Frame) At(x, y int) uint8 {
	if x < 0 {
		x = 0
	} else if x >= f.Width {
		x = f.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= f.Height {
		y = f.Height - 1
	}
	return f.Pix[y*f.Width+x]
}

// Set writes the intensity sample at (x, y). Out-of-range coordinates are
// ignored. Used by frame builders and test fixtures, not by the pipeline.
func (f *Frame) Set(x, y int, v uint8) {
	if x < 0 || x >= f.Width || y < 0 || y >= f.Height {
		return
	}
	f.Pix[y*f.Width+x] = v
}

// SampleBilinear returns the bilinearly interpolated intensity at the
// sub-pixel position (x, y), with border clamping.
func (f *Frame) SampleBilinear(x, y float64) float64 {
	x0 := int(x)
	y0 := int(y)
	if x < 0 {
		x0 = 0
		x = 0
	}
	if y < 0 {
		y0 = 0
		y = 0
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	v00 := float64(f.At(x0, y0))
	v10 := float64(f.At(x0+1, y0))
	v01 := float64(f.At(x0, y0+1))
	v11 := float64(f.At(x0+1, y0+1))

	top := v00*(1-fx) + v10*fx
	bot := v01*(1-fx) + v11*fx
	return top*(1-fy) + bot*fy
}
