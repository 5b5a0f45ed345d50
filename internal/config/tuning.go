// Package config loads and validates the odometry tuning file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/odometry.report/internal/camera"
	"github.com/banshee-data/odometry.report/internal/vo"
)

// TuningConfig is the JSON startup configuration. All fields are
// pointers so a file can override just the values it names; nil fields
// keep the defaults.
type TuningConfig struct {
	// Camera intrinsics (pixels). Required: there are no defaults for a
	// physical camera.
	Fx *float64 `json:"fx,omitempty"`
	Fy *float64 `json:"fy,omitempty"`
	Cx *float64 `json:"cx,omitempty"`
	Cy *float64 `json:"cy,omitempty"`

	// Extractor params
	MaxKeypoints     *int     `json:"max_keypoints,omitempty"`
	MinKeypointScore *float64 `json:"min_keypoint_score,omitempty"`

	// Matcher params
	MatchMaxRatio *float64 `json:"match_max_ratio,omitempty"`

	// Consensus filter params
	ConsensusIterations *int     `json:"consensus_iterations,omitempty"`
	ResidualThresholdPx *float64 `json:"residual_threshold_px,omitempty"`
	MinInliers          *int     `json:"min_inliers,omitempty"`

	// RandomSeed feeds the consensus generator. Fixed seeds reproduce
	// outlier rejection exactly.
	RandomSeed *int64 `json:"random_seed,omitempty"`
}

// maxConfigSize caps the tuning file size. A tuning file is a handful
// of scalars; anything larger is the wrong file.
const maxConfigSize = 1 << 20

// Load reads a tuning file. An empty path returns an empty config so the
// caller can apply defaults and then fail on what is genuinely required
// (the intrinsics).
func Load(path string) (*TuningConfig, error) {
	if path == "" {
		return &TuningConfig{}, nil
	}
	if filepath.Ext(path) != ".json" {
		return nil, fmt.Errorf("tuning config must be a .json file, got %s", path)
	}
	if info, err := os.Stat(path); err == nil && info.Size() > maxConfigSize {
		return nil, fmt.Errorf("tuning config %s is %d bytes, limit %d", path, info.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning config: %w", err)
	}
	var cfg TuningConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse tuning config %s: %w", path, err)
	}
	return &cfg, nil
}

// Intrinsics builds and validates the camera intrinsics. Missing or
// invalid intrinsics are a configuration error: the session must not
// start without them.
func (c *TuningConfig) Intrinsics() (camera.Intrinsics, error) {
	if c.Fx == nil || c.Fy == nil || c.Cx == nil || c.Cy == nil {
		return camera.Intrinsics{}, fmt.Errorf("%w: camera intrinsics (fx, fy, cx, cy) are required", vo.ErrConfiguration)
	}
	in := camera.Intrinsics{Fx: *c.Fx, Fy: *c.Fy, Cx: *c.Cx, Cy: *c.Cy}
	if err := in.Validate(); err != nil {
		return camera.Intrinsics{}, fmt.Errorf("%w: %v", vo.ErrConfiguration, err)
	}
	return in, nil
}

// ExtractorParams returns the extractor tuning with defaults applied.
func (c *TuningConfig) ExtractorParams() vo.ExtractorParams {
	p := vo.DefaultExtractorParams()
	if c.MaxKeypoints != nil {
		p.MaxKeypoints = *c.MaxKeypoints
	}
	if c.MinKeypointScore != nil {
		p.MinScore = *c.MinKeypointScore
	}
	return p
}

// MatcherParams returns the matcher tuning with defaults applied.
func (c *TuningConfig) MatcherParams() vo.MatcherParams {
	p := vo.DefaultMatcherParams()
	if c.MatchMaxRatio != nil {
		p.MaxRatio = *c.MatchMaxRatio
	}
	return p
}

// FilterParams returns the consensus tuning with defaults applied.
func (c *TuningConfig) FilterParams() vo.FilterParams {
	p := vo.DefaultFilterParams()
	if c.ConsensusIterations != nil {
		p.Iterations = *c.ConsensusIterations
	}
	if c.ResidualThresholdPx != nil {
		p.ResidualThresholdPx = *c.ResidualThresholdPx
	}
	if c.MinInliers != nil {
		p.MinInliers = *c.MinInliers
	}
	return p
}

// Seed returns the consensus seed, zero when unset.
func (c *TuningConfig) Seed() int64 {
	if c.RandomSeed != nil {
		return *c.RandomSeed
	}
	return 0
}
