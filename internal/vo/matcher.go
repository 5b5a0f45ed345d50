package vo

import "fmt"

// MatcherParams tunes correspondence matching.
type MatcherParams struct {
	// MaxRatio is the Lowe ratio: a match is kept only when the best
	// descriptor distance is at most MaxRatio times the second best.
	// Lower is stricter. Typical value: 0.8.
	MaxRatio float64
}

// DefaultMatcherParams returns the default matching tuning.
func DefaultMatcherParams() MatcherParams {
	return MatcherParams{MaxRatio: 0.8}
}

// Matcher pairs keypoints between two frames by descriptor distance with
// a mutual nearest neighbour check. Matching is one-to-one: each keypoint
// appears in at most one correspondence. Side-effect free.
type Matcher struct {
	params MatcherParams
}

// NewMatcher returns a matcher with the given tuning.
func NewMatcher(params MatcherParams) *Matcher {
	return &Matcher{params: params}
}

// Match returns mutual-nearest-neighbour correspondences between the
// previous and current keypoint sets, rejecting ambiguous matches by the
// ratio test. Returns ErrInsufficientFeatures when either set is empty.
func (m *Matcher) Match(prev, cur []Keypoint) ([]Correspondence, error) {
	if len(prev) == 0 || len(cur) == 0 {
		return nil, fmt.Errorf("%w: %d previous, %d current keypoints",
			ErrInsufficientFeatures, len(prev), len(cur))
	}

	// One pass over the distance matrix tracks both directions: best and
	// second-best current match per previous keypoint, and best previous
	// match per current keypoint.
	bestForPrev := make([]int, len(prev))
	bestDist := make([]float64, len(prev))
	secondDist := make([]float64, len(prev))
	bestForCur := make([]int, len(cur))
	bestCurDist := make([]float64, len(cur))
	for j := range cur {
		bestForCur[j] = -1
		bestCurDist[j] = inf()
	}
	for i := range prev {
		bestForPrev[i] = -1
		bestDist[i] = inf()
		secondDist[i] = inf()
		for j := range cur {
			d := DescriptorDistance(&prev[i].Descriptor, &cur[j].Descriptor)
			if d < bestDist[i] {
				secondDist[i] = bestDist[i]
				bestDist[i] = d
				bestForPrev[i] = j
			} else if d < secondDist[i] {
				secondDist[i] = d
			}
			if d < bestCurDist[j] {
				bestCurDist[j] = d
				bestForCur[j] = i
			}
		}
	}

	var matches []Correspondence
	for i := range prev {
		j := bestForPrev[i]
		if j < 0 || bestForCur[j] != i {
			continue // not mutual
		}
		// Ratio test: reject when the runner-up is nearly as close.
		if secondDist[i] < inf() && bestDist[i] > m.params.MaxRatio*secondDist[i] {
			continue
		}
		conf := 1.0
		if secondDist[i] > 1e-12 {
			conf = 1 - bestDist[i]/secondDist[i]
		}
		matches = append(matches, Correspondence{
			Prev:       prev[i],
			Cur:        cur[j],
			Confidence: conf,
		})
	}
	Tracef("[Match] %d x %d keypoints -> %d correspondences", len(prev), len(cur), len(matches))
	return matches, nil
}

func inf() float64 { return 1e300 }
