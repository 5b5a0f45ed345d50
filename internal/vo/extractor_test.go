package vo

import (
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/odometry.report/internal/camera"
)

// checkerFrame renders bright squares on a dark background, giving the
// detector strong corner responses at known locations.
func checkerFrame(t *testing.T, index int64) *camera.Frame {
	t.Helper()
	f := camera.NewFrame(index, time.Now(), 160, 120)
	for i := range f.Pix {
		f.Pix[i] = 16
	}
	for _, c := range [][2]int{{40, 30}, {80, 30}, {120, 30}, {40, 90}, {80, 90}, {120, 90}, {60, 60}, {100, 60}} {
		for y := c[1] - 6; y <= c[1]+6; y++ {
			for x := c[0] - 6; x <= c[0]+6; x++ {
				f.Set(x, y, 230)
			}
		}
	}
	return f
}

func TestExtractDeterministic(t *testing.T) {
	e := NewFeatureExtractor(DefaultExtractorParams())
	a, err := e.Extract(checkerFrame(t, 0))
	if err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	b, err := e.Extract(checkerFrame(t, 0))
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if len(a) == 0 {
		t.Fatal("no keypoints detected in corner-rich frame")
	}
	if len(a) != len(b) {
		t.Fatalf("keypoint counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("keypoint %d differs between identical frames", i)
		}
	}
}

func TestExtractOrdering(t *testing.T) {
	e := NewFeatureExtractor(DefaultExtractorParams())
	kps, err := e.Extract(checkerFrame(t, 0))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i := 1; i < len(kps); i++ {
		if kps[i].Score > kps[i-1].Score {
			t.Fatalf("keypoint %d score %g above predecessor %g", i, kps[i].Score, kps[i-1].Score)
		}
	}
}

func TestExtractCap(t *testing.T) {
	e := NewFeatureExtractor(ExtractorParams{MaxKeypoints: 4, MinScore: 40})
	kps, err := e.Extract(checkerFrame(t, 0))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(kps) > 4 {
		t.Errorf("got %d keypoints, cap is 4", len(kps))
	}
}

func TestExtractKeypointsInsideFrame(t *testing.T) {
	e := NewFeatureExtractor(DefaultExtractorParams())
	frame := checkerFrame(t, 0)
	kps, err := e.Extract(frame)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, kp := range kps {
		if kp.X < 0 || kp.X >= float64(frame.Width) || kp.Y < 0 || kp.Y >= float64(frame.Height) {
			t.Errorf("keypoint at (%g, %g) outside %dx%d frame", kp.X, kp.Y, frame.Width, frame.Height)
		}
	}
}

func TestExtractFlatFrame(t *testing.T) {
	e := NewFeatureExtractor(DefaultExtractorParams())
	f := camera.NewFrame(0, time.Now(), 64, 64)
	for i := range f.Pix {
		f.Pix[i] = 128
	}
	kps, err := e.Extract(f)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(kps) != 0 {
		t.Errorf("flat frame produced %d keypoints", len(kps))
	}
}

func TestExtractInvalidFrame(t *testing.T) {
	e := NewFeatureExtractor(DefaultExtractorParams())
	tests := []struct {
		name  string
		frame *camera.Frame
	}{
		{"nil", nil},
		{"zero dimensions", &camera.Frame{}},
		{"short buffer", &camera.Frame{Width: 10, Height: 10, Pix: make([]uint8, 5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Extract(tt.frame); !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("Extract error = %v, want ErrInvalidFrame", err)
			}
		})
	}
}

func TestDescriptorNormalized(t *testing.T) {
	e := NewFeatureExtractor(DefaultExtractorParams())
	kps, err := e.Extract(checkerFrame(t, 0))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i, kp := range kps {
		var norm float64
		for _, v := range kp.Descriptor {
			norm += v * v
		}
		if norm < 0.99 || norm > 1.01 {
			t.Errorf("keypoint %d descriptor norm^2 = %g, want 1", i, norm)
		}
	}
}
