package vo

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/odometry.report/internal/camera"
)

// minimalSampleSize is the correspondence count of one consensus trial
// (eight-point algorithm).
const minimalSampleSize = 8

// FilterParams tunes the consensus outlier filter.
type FilterParams struct {
	// Iterations is the fixed trial budget. The search always terminates
	// after this many trials.
	Iterations int

	// ResidualThresholdPx is the inlier threshold as a Sampson distance
	// in pixels. It is divided by the mean focal length to move it into
	// normalized coordinates.
	ResidualThresholdPx float64

	// MinInliers is the smallest consensus set accepted as a unique
	// model. Below it the geometry is reported degenerate.
	MinInliers int
}

// DefaultFilterParams returns the default consensus tuning.
func DefaultFilterParams() FilterParams {
	return FilterParams{
		Iterations:          200,
		ResidualThresholdPx: 1.5,
		MinInliers:          12,
	}
}

// FilterResult carries the surviving correspondences and the fitted
// epipolar model they support.
type FilterResult struct {
	Inliers      []Correspondence
	InlierRatio  float64
	MeanResidual float64

	// E is the fitted essential matrix, consumed by pose estimation.
	E *mat.Dense
}

// ConsensusFilter removes geometrically inconsistent correspondences by
// randomized consensus over the essential relation: sample a minimal
// subset, fit, count support within the residual threshold, keep the
// candidate with the largest consensus set. Ties go to the smaller mean
// residual regardless of trial order.
type ConsensusFilter struct {
	params     FilterParams
	intrinsics camera.Intrinsics
}

// NewConsensusFilter returns a filter for the given camera.
func NewConsensusFilter(params FilterParams, in camera.Intrinsics) *ConsensusFilter {
	return &ConsensusFilter{params: params, intrinsics: in}
}

// Filter runs the consensus search. The random generator is injected so
// runs are reproducible under a fixed seed. Returns ErrDegenerateGeometry
// when the input or the surviving set is too small to constrain a unique
// model.
func (f *ConsensusFilter) Filter(corr []Correspondence, rng *rand.Rand) (*FilterResult, error) {
	need := f.params.MinInliers
	if need < minimalSampleSize {
		need = minimalSampleSize
	}
	if len(corr) < need {
		return nil, fmt.Errorf("%w: %d correspondences, need %d", ErrDegenerateGeometry, len(corr), need)
	}

	pairs := normalizePairs(corr, f.intrinsics)
	threshold := f.params.ResidualThresholdPx / f.intrinsics.MeanFocal()

	var (
		bestE        *mat.Dense
		bestInliers  []int
		bestResidual = 0.0
	)

	sample := make([]int, minimalSampleSize)
	for trial := 0; trial < f.params.Iterations; trial++ {
		perm := rng.Perm(len(pairs))
		copy(sample, perm[:minimalSampleSize])

		e, ok := estimateEssential(pairs, sample)
		if !ok {
			continue
		}

		inliers, meanRes := consensus(e, pairs, threshold)
		if betterModel(len(inliers), meanRes, len(bestInliers), bestResidual) {
			bestE = e
			bestInliers = inliers
			bestResidual = meanRes
		}
	}

	if bestE == nil || len(bestInliers) < need {
		return nil, fmt.Errorf("%w: best consensus %d of %d, need %d",
			ErrDegenerateGeometry, len(bestInliers), len(corr), need)
	}

	// Refit on the full consensus set for a tighter model, keeping the
	// refit only when it does not shrink the support.
	if refit, ok := estimateEssential(pairs, bestInliers); ok {
		inliers, meanRes := consensus(refit, pairs, threshold)
		if len(inliers) >= len(bestInliers) {
			bestE = refit
			bestInliers = inliers
			bestResidual = meanRes
		}
	}

	kept := make([]Correspondence, len(bestInliers))
	for i, idx := range bestInliers {
		kept[i] = corr[idx]
	}
	Tracef("[Filter] %d -> %d inliers (ratio %.2f, mean residual %.2g)",
		len(corr), len(kept), float64(len(kept))/float64(len(corr)), bestResidual)

	return &FilterResult{
		Inliers:      kept,
		InlierRatio:  float64(len(kept)) / float64(len(corr)),
		MeanResidual: bestResidual,
		E:            bestE,
	}, nil
}

// consensus returns the indices within threshold of the model and their
// mean residual.
func consensus(e *mat.Dense, pairs []normalizedPair, threshold float64) ([]int, float64) {
	var inliers []int
	var sum float64
	for i, p := range pairs {
		d := sampsonDistance(e, p)
		if d <= threshold {
			inliers = append(inliers, i)
			sum += d
		}
	}
	if len(inliers) == 0 {
		return nil, 0
	}
	return inliers, sum / float64(len(inliers))
}

// betterModel implements the documented selection rule: larger consensus
// wins, equal consensus goes to the smaller mean residual.
func betterModel(count int, residual float64, bestCount int, bestResidual float64) bool {
	if count != bestCount {
		return count > bestCount
	}
	return count > 0 && residual < bestResidual
}
