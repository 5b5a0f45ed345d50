package camera

import (
	"context"
	"fmt"
	"image"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	// Register decoders for the formats a DirectorySource accepts.
	_ "image/jpeg"
	_ "image/png"
)

// FrameSource supplies frames in strictly increasing index order. Next
// returns io.EOF once the source is exhausted. Gaps in the index sequence
// are allowed (skipped frames); out-of-order delivery is not.
type FrameSource interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// DirectorySource reads grayscale frames from image files in a directory.
// Files are ordered lexicographically by name, which matches capture
// order for the zero-padded naming convention used by FrameStore. The
// frame index is the position in that ordering.
type DirectorySource struct {
	paths []string
	next  int
}

// NewDirectorySource lists the supported image files under dir. It fails
// when the directory cannot be read or contains no frames.
func NewDirectorySource(dir string) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}
	return &DirectorySource{paths: paths}, nil
}

// Next decodes the next frame. Decode failures are returned to the caller
// so the pipeline can skip the frame without ending the session.
func (s *DirectorySource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.paths) {
		return nil, io.EOF
	}
	path := s.paths[s.next]
	index := int64(s.next)
	s.next++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}

	info, err := os.Stat(path)
	ts := time.Now()
	if err == nil {
		ts = info.ModTime()
	}
	return frameFromImage(index, ts, img), nil
}

// Close releases the source. DirectorySource holds no open handles
// between calls, so this is a no-op.
func (s *DirectorySource) Close() error { return nil }

// frameFromImage converts a decoded image to a grayscale Frame using the
// standard luma weights.
func frameFromImage(index int64, ts time.Time, img image.Image) *Frame {
	b := img.Bounds()
	frame := NewFrame(index, ts, b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// 16-bit channels; luma in 0..255.
			luma := (299*r + 587*g + 114*bl) / 1000 >> 8
			frame.Pix[y*frame.Width+x] = uint8(luma)
		}
	}
	return frame
}

// SyntheticSource renders a deterministic translating dot field. It
// stands in for a live camera in dev mode and in tests, the same role the
// fixtures-backed mock source plays for the serial sensors.
type SyntheticSource struct {
	width, height int
	count         int
	shiftPerFrame float64
	dots          [][2]float64
	next          int
	start         time.Time
	interval      time.Duration
}

// NewSyntheticSource builds a source of count frames of the given size.
// The dot layout is drawn from the seed, so identical seeds produce
// identical frame sequences.
func NewSyntheticSource(width, height, count int, seed int64) *SyntheticSource {
	rng := rand.New(rand.NewSource(seed))
	const numDots = 120
	dots := make([][2]float64, numDots)
	for i := range dots {
		dots[i] = [2]float64{
			rng.Float64() * float64(width),
			rng.Float64() * float64(height),
		}
	}
	return &SyntheticSource{
		width:         width,
		height:        height,
		count:         count,
		shiftPerFrame: 2.5,
		dots:          dots,
		start:         time.Now(),
		interval:      100 * time.Millisecond,
	}
}

// Next renders the next frame of the sequence.
func (s *SyntheticSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= s.count {
		return nil, io.EOF
	}
	index := int64(s.next)
	shift := float64(s.next) * s.shiftPerFrame
	s.next++

	frame := NewFrame(index, s.start.Add(time.Duration(index)*s.interval), s.width, s.height)
	for i := range frame.Pix {
		frame.Pix[i] = 16 // dark background
	}
	for _, d := range s.dots {
		cx := d[0] - shift
		cy := d[1]
		drawSquare(frame, cx, cy, 4, 230)
	}
	return frame, nil
}

// Close releases the source.
func (s *SyntheticSource) Close() error { return nil }

// drawSquare fills a bright axis-aligned square centred at (cx, cy).
// Square corners give the detector strong, stable responses.
func drawSquare(f *Frame, cx, cy float64, half int, v uint8) {
	x0 := int(cx) - half
	y0 := int(cy) - half
	for y := y0; y <= y0+2*half; y++ {
		for x := x0; x <= x0+2*half; x++ {
			f.Set(x, y, v)
		}
	}
}
