package vo

import (
	"errors"
	"math/rand"
	"testing"
)

func TestFilterKeepsConsistentSet(t *testing.T) {
	r, tr := stepMotion()
	corr := makeCorrespondences(t, testIntrinsics, r, tr, syntheticPoints(40, 1))

	f := NewConsensusFilter(DefaultFilterParams(), testIntrinsics)
	res, err := f.Filter(corr, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(res.Inliers) != len(corr) {
		t.Errorf("kept %d of %d exact correspondences", len(res.Inliers), len(corr))
	}
	if res.InlierRatio < 0.99 {
		t.Errorf("inlier ratio = %g, want ~1", res.InlierRatio)
	}
	if res.E == nil {
		t.Error("result carries no epipolar model")
	}
}

func TestFilterRejectsOutliers(t *testing.T) {
	r, tr := stepMotion()
	corr := makeCorrespondences(t, testIntrinsics, r, tr, syntheticPoints(40, 2))

	// Corrupt a quarter of the set with gross pixel offsets.
	clean := len(corr)
	outliers := clean / 4
	for i := 0; i < outliers; i++ {
		corr[i].Cur.X += 35 + float64(i%7)*11
		corr[i].Cur.Y -= 28 + float64(i%5)*9
	}

	f := NewConsensusFilter(DefaultFilterParams(), testIntrinsics)
	res, err := f.Filter(corr, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	survived := 0
	for _, c := range res.Inliers {
		for i := 0; i < outliers; i++ {
			if c.Prev == corr[i].Prev && c.Cur == corr[i].Cur {
				survived++
			}
		}
	}
	// A corrupted pair can fall near its own epipolar line by chance, but
	// the bulk must be rejected.
	if survived > 1 {
		t.Errorf("%d of %d corrupted correspondences survived the filter", survived, outliers)
	}
	if len(res.Inliers) < clean-outliers-2 {
		t.Errorf("kept %d inliers, expected close to %d", len(res.Inliers), clean-outliers)
	}
}

func TestFilterReproducibleUnderSeed(t *testing.T) {
	r, tr := stepMotion()
	corr := makeCorrespondences(t, testIntrinsics, r, tr, syntheticPoints(40, 4))
	for i := 0; i < 8; i++ {
		corr[i].Cur.X += 40
	}

	f := NewConsensusFilter(DefaultFilterParams(), testIntrinsics)
	a, err := f.Filter(corr, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatalf("first Filter: %v", err)
	}
	b, err := f.Filter(corr, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatalf("second Filter: %v", err)
	}
	if len(a.Inliers) != len(b.Inliers) {
		t.Fatalf("inlier counts differ under identical seed: %d vs %d", len(a.Inliers), len(b.Inliers))
	}
	for i := range a.Inliers {
		if a.Inliers[i] != b.Inliers[i] {
			t.Fatalf("inlier %d differs under identical seed", i)
		}
	}
	if a.MeanResidual != b.MeanResidual {
		t.Errorf("mean residuals differ: %g vs %g", a.MeanResidual, b.MeanResidual)
	}
}

func TestFilterTooFewCorrespondences(t *testing.T) {
	r, tr := stepMotion()
	corr := makeCorrespondences(t, testIntrinsics, r, tr, syntheticPoints(40, 5))

	f := NewConsensusFilter(DefaultFilterParams(), testIntrinsics)
	if _, err := f.Filter(corr[:7], rand.New(rand.NewSource(1))); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("7 correspondences: err = %v, want ErrDegenerateGeometry", err)
	}
	if _, err := f.Filter(nil, rand.New(rand.NewSource(1))); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("empty input: err = %v, want ErrDegenerateGeometry", err)
	}
}

func TestFilterAllOutliers(t *testing.T) {
	// Independent random pairs carry no epipolar structure; consensus
	// should stay below the minimum.
	rng := rand.New(rand.NewSource(6))
	corr := make([]Correspondence, 30)
	for i := range corr {
		corr[i] = Correspondence{
			Prev: Keypoint{X: rng.Float64() * 640, Y: rng.Float64() * 480},
			Cur:  Keypoint{X: rng.Float64() * 640, Y: rng.Float64() * 480},
		}
	}
	params := DefaultFilterParams()
	params.MinInliers = 25
	f := NewConsensusFilter(params, testIntrinsics)
	if _, err := f.Filter(corr, rand.New(rand.NewSource(7))); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("structureless input: err = %v, want ErrDegenerateGeometry", err)
	}
}

func TestBetterModel(t *testing.T) {
	tests := []struct {
		name                   string
		count, bestCount       int
		residual, bestResidual float64
		want                   bool
	}{
		{"larger consensus wins", 20, 10, 0.5, 0.1, true},
		{"smaller consensus loses", 10, 20, 0.1, 0.5, false},
		{"tie goes to smaller residual", 10, 10, 0.1, 0.5, true},
		{"tie with larger residual loses", 10, 10, 0.5, 0.1, false},
		{"empty candidate never wins", 0, 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := betterModel(tt.count, tt.residual, tt.bestCount, tt.bestResidual); got != tt.want {
				t.Errorf("betterModel(%d, %g, %d, %g) = %v, want %v",
					tt.count, tt.residual, tt.bestCount, tt.bestResidual, got, tt.want)
			}
		})
	}
}
