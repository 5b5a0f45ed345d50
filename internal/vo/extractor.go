package vo

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/odometry.report/internal/camera"
)

// ExtractorParams tunes corner detection and description.
type ExtractorParams struct {
	// MaxKeypoints caps the number of keypoints returned per frame,
	// keeping downstream matching cost bounded. Zero means no cap.
	MaxKeypoints int

	// MinScore is the minimum Shi-Tomasi response for a candidate
	// corner. Responses scale with local contrast; the default suits
	// 8-bit input.
	MinScore float64
}

// DefaultExtractorParams returns the tuning used when the config file
// does not override it.
func DefaultExtractorParams() ExtractorParams {
	return ExtractorParams{
		MaxKeypoints: 500,
		MinScore:     40,
	}
}

// borderMargin keeps keypoints far enough from the frame edge that the
// descriptor patch and its bilinear taps stay inside the image.
const borderMargin = 10

// descriptor patch: 8x8 samples at 2px spacing, offsets -7..+7.
const (
	descGrid    = 8
	descSpacing = 2.0
)

// FeatureExtractor detects Shi-Tomasi corners and describes them with
// normalized intensity patches. Detection is deterministic: identical
// frame content yields an identical keypoint sequence.
type FeatureExtractor struct {
	params ExtractorParams
}

// NewFeatureExtractor returns an extractor with the given tuning.
func NewFeatureExtractor(params ExtractorParams) *FeatureExtractor {
	return &FeatureExtractor{params: params}
}

// Extract detects keypoints in the frame, ordered by detection strength
// descending and capped at MaxKeypoints. It returns ErrInvalidFrame for
// malformed input and never mutates the frame.
func (e *FeatureExtractor) Extract(frame *camera.Frame) ([]Keypoint, error) {
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	w, h := frame.Width, frame.Height
	if w <= 2*borderMargin || h <= 2*borderMargin {
		// Frame too small to host a single descriptor patch.
		return nil, nil
	}

	gx, gy := sobel(frame)
	resp := shiTomasiResponse(gx, gy, w, h)

	var kps []Keypoint
	for y := borderMargin; y < h-borderMargin; y++ {
		for x := borderMargin; x < w-borderMargin; x++ {
			r := resp[y*w+x]
			if r < e.params.MinScore {
				continue
			}
			if !isLocalMax(resp, w, x, y) {
				continue
			}
			dx, dy := subPixelOffset(resp, w, x, y)
			kp := Keypoint{
				X:           float64(x) + dx,
				Y:           float64(y) + dy,
				Score:       r,
				Scale:       1,
				Orientation: localOrientation(gx, gy, w, x, y),
			}
			describePatch(frame, &kp)
			kps = append(kps, kp)
		}
	}

	// Strength descending; ties broken by raster position so the order
	// is stable for identical content.
	sort.Slice(kps, func(i, j int) bool {
		if kps[i].Score != kps[j].Score {
			return kps[i].Score > kps[j].Score
		}
		if kps[i].Y != kps[j].Y {
			return kps[i].Y < kps[j].Y
		}
		return kps[i].X < kps[j].X
	})

	if e.params.MaxKeypoints > 0 && len(kps) > e.params.MaxKeypoints {
		kps = kps[:e.params.MaxKeypoints]
	}
	Tracef("[Extract] frame %d: %d keypoints", frame.Index, len(kps))
	return kps, nil
}

// sobel computes image gradients with the 3x3 Sobel operator. Border
// pixels keep zero gradients.
func sobel(f *camera.Frame) (gx, gy []float64) {
	w, h := f.Width, f.Height
	gx = make([]float64, w*h)
	gy = make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			p00 := float64(f.Pix[(y-1)*w+x-1])
			p01 := float64(f.Pix[(y-1)*w+x])
			p02 := float64(f.Pix[(y-1)*w+x+1])
			p10 := float64(f.Pix[y*w+x-1])
			p12 := float64(f.Pix[y*w+x+1])
			p20 := float64(f.Pix[(y+1)*w+x-1])
			p21 := float64(f.Pix[(y+1)*w+x])
			p22 := float64(f.Pix[(y+1)*w+x+1])
			gx[y*w+x] = (p02 + 2*p12 + p22 - p00 - 2*p10 - p20) / 8
			gy[y*w+x] = (p20 + 2*p21 + p22 - p00 - 2*p01 - p02) / 8
		}
	}
	return gx, gy
}

// shiTomasiResponse computes the minimum eigenvalue of the structure
// tensor summed over a 5x5 window at each interior pixel.
func shiTomasiResponse(gx, gy []float64, w, h int) []float64 {
	const r = 2
	resp := make([]float64, w*h)
	for y := r + 1; y < h-r-1; y++ {
		for x := r + 1; x < w-r-1; x++ {
			var sxx, sxy, syy float64
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					i := (y+dy)*w + x + dx
					sxx += gx[i] * gx[i]
					sxy += gx[i] * gy[i]
					syy += gy[i] * gy[i]
				}
			}
			tr := sxx + syy
			det := math.Sqrt((sxx-syy)*(sxx-syy) + 4*sxy*sxy)
			resp[y*w+x] = (tr - det) / 2
		}
	}
	return resp
}

// isLocalMax reports whether the response at (x, y) dominates its 3x3
// neighbourhood. Strictly-greater on the trailing side breaks plateau
// ties deterministically.
func isLocalMax(resp []float64, w, x, y int) bool {
	c := resp[y*w+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := resp[(y+dy)*w+x+dx]
			if dy < 0 || (dy == 0 && dx < 0) {
				if n >= c {
					return false
				}
			} else if n > c {
				return false
			}
		}
	}
	return true
}

// subPixelOffset refines the peak position with a 1D quadratic fit per
// axis. Offsets are clamped to half a pixel.
func subPixelOffset(resp []float64, w, x, y int) (dx, dy float64) {
	fit := func(l, c, r float64) float64 {
		denom := l - 2*c + r
		if denom >= 0 {
			return 0
		}
		off := 0.5 * (l - r) / denom
		if off > 0.5 {
			off = 0.5
		} else if off < -0.5 {
			off = -0.5
		}
		return off
	}
	dx = fit(resp[y*w+x-1], resp[y*w+x], resp[y*w+x+1])
	dy = fit(resp[(y-1)*w+x], resp[y*w+x], resp[(y+1)*w+x])
	return dx, dy
}

// localOrientation returns the dominant gradient direction over a 5x5
// window.
func localOrientation(gx, gy []float64, w, x, y int) float64 {
	const r = 2
	var sx, sy float64
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			i := (y+dy)*w + x + dx
			sx += gx[i]
			sy += gy[i]
		}
	}
	return math.Atan2(sy, sx)
}

// describePatch fills the keypoint descriptor with a zero-mean,
// unit-norm 8x8 intensity patch sampled bilinearly around the keypoint.
func describePatch(f *camera.Frame, kp *Keypoint) {
	var mean float64
	var raw [DescriptorSize]float64
	i := 0
	for gy := 0; gy < descGrid; gy++ {
		for gx := 0; gx < descGrid; gx++ {
			ox := (float64(gx) - float64(descGrid-1)/2) * descSpacing
			oy := (float64(gy) - float64(descGrid-1)/2) * descSpacing
			v := f.SampleBilinear(kp.X+ox, kp.Y+oy)
			raw[i] = v
			mean += v
			i++
		}
	}
	mean /= DescriptorSize

	var norm float64
	for i := range raw {
		raw[i] -= mean
		norm += raw[i] * raw[i]
	}
	norm = math.Sqrt(norm)
	if norm < 1e-9 {
		// Flat patch: leave the zero descriptor.
		return
	}
	for i := range raw {
		kp.Descriptor[i] = raw[i] / norm
	}
}
