package vo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"reflect"
	"sync"

	"github.com/banshee-data/odometry.report/internal/camera"
)

// Stage interfaces. The concrete implementations in this package are the
// defaults; tests and alternative front ends inject their own.

// Extractor detects and describes keypoints in a single frame.
type Extractor interface {
	Extract(frame *camera.Frame) ([]Keypoint, error)
}

// CorrespondenceMatcher pairs keypoints between two frames.
type CorrespondenceMatcher interface {
	Match(prev, cur []Keypoint) ([]Correspondence, error)
}

// OutlierFilter removes geometrically inconsistent correspondences. The
// generator is injected per invocation so consensus runs are
// reproducible under a fixed seed.
type OutlierFilter interface {
	Filter(corr []Correspondence, rng *rand.Rand) (*FilterResult, error)
}

// PoseEstimator turns a filtered correspondence set into a relative
// motion.
type PoseEstimator interface {
	Estimate(res *FilterResult) (RelativeMotion, error)
}

// EssentialPoseEstimator is the default PoseEstimator: essential matrix
// decomposition with a positive-depth vote.
type EssentialPoseEstimator struct {
	Intrinsics camera.Intrinsics
}

// Estimate implements PoseEstimator.
func (e *EssentialPoseEstimator) Estimate(res *FilterResult) (RelativeMotion, error) {
	return EstimateRelativePose(res, e.Intrinsics)
}

// RecordSink receives one TrajectoryRecord per processed frame, in
// strictly increasing frame-index order, append-only. Sink failures are
// logged and do not stop the session.
type RecordSink interface {
	PersistRecord(rec *TrajectoryRecord) error
}

// PipelineConfig holds dependencies for the odometry pipeline. Stage
// fields left nil get the package defaults built from the params fields.
type PipelineConfig struct {
	SessionID  string
	Intrinsics camera.Intrinsics

	// Seed feeds the consensus filter's random generator. Fixed seeds
	// make outlier rejection reproducible.
	Seed int64

	ExtractorParams ExtractorParams
	MatcherParams   MatcherParams
	FilterParams    FilterParams

	Extractor Extractor
	Matcher   CorrespondenceMatcher
	Filter    OutlierFilter
	Pose      PoseEstimator

	// Records receives the trajectory stream. Optional; records are
	// also returned from ProcessFrame.
	Records RecordSink

	// Frames receives each raw frame for image persistence. Optional.
	Frames camera.FrameStore
}

// Pipeline sequences extraction, matching, filtering, pose estimation
// and accumulation per incoming frame. Frames are processed strictly
// sequentially; the previous frame's extraction result is cached so each
// frame is extracted once.
type Pipeline struct {
	cfg PipelineConfig

	extractor Extractor
	matcher   CorrespondenceMatcher
	filter    OutlierFilter
	pose      PoseEstimator
	rng       *rand.Rand

	acc *Accumulator

	// refKeypoints are the keypoints of the reference frame: the last
	// frame that ended in a valid record. While degraded, the reference
	// stays at the last good frame so recovery composes from the last
	// good pose against the scene it was seen in. An empty reference can
	// never match anything, so it is re-seated from the current frame
	// even on a failed step.
	refKeypoints []Keypoint
	refIndex     int64

	started bool

	// mu guards the accumulator and the snapshot fields below; Status is
	// served concurrently with the frame loop.
	mu        sync.Mutex
	lastIndex int64
	processed int
	lastRec   *TrajectoryRecord
}

// NewPipeline validates the configuration and builds default stages for
// any left nil. Malformed configuration is fatal: the session must not
// start.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrConfiguration)
	}
	if err := cfg.Intrinsics.Validate(); err != nil {
		return nil, fmt.Errorf("%w: intrinsics: %v", ErrConfiguration, err)
	}
	if cfg.FilterParams.Iterations <= 0 {
		return nil, fmt.Errorf("%w: consensus iteration budget must be positive", ErrConfiguration)
	}
	if cfg.FilterParams.ResidualThresholdPx <= 0 {
		return nil, fmt.Errorf("%w: residual threshold must be positive", ErrConfiguration)
	}

	p := &Pipeline{
		cfg:       cfg,
		extractor: cfg.Extractor,
		matcher:   cfg.Matcher,
		filter:    cfg.Filter,
		pose:      cfg.Pose,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		acc:       NewAccumulator(cfg.SessionID),
		lastIndex: -1,
		refIndex:  -1,
	}
	if isNilInterface(p.extractor) {
		p.extractor = NewFeatureExtractor(cfg.ExtractorParams)
	}
	if isNilInterface(p.matcher) {
		p.matcher = NewMatcher(cfg.MatcherParams)
	}
	if isNilInterface(p.filter) {
		p.filter = NewConsensusFilter(cfg.FilterParams, cfg.Intrinsics)
	}
	if isNilInterface(p.pose) {
		p.pose = &EssentialPoseEstimator{Intrinsics: cfg.Intrinsics}
	}
	return p, nil
}

// Status is a read-only snapshot for the HTTP surface.
type Status struct {
	SessionID       string        `json:"session_id"`
	State           TrackingState `json:"state"`
	FramesProcessed int           `json:"frames_processed"`
	LastFrameIndex  int64         `json:"last_frame_index"`
	LastValid       bool          `json:"last_valid"`
	LastInlierCount int           `json:"last_inlier_count"`
	Pose            Pose          `json:"pose"`
}

// Status returns the current pipeline snapshot.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		SessionID:       p.cfg.SessionID,
		State:           p.acc.State(),
		FramesProcessed: p.processed,
		LastFrameIndex:  p.lastIndex,
		Pose:            p.acc.Pose(),
	}
	if p.lastRec != nil {
		st.LastValid = p.lastRec.Valid
		st.LastInlierCount = p.lastRec.InlierCount
	}
	return st
}

// ProcessFrame runs one pipeline step. Component failures downstream of
// extraction produce an invalid record and a nil error: a single bad
// frame must not terminate the session. A non-nil error means the frame
// was skipped with no record (malformed frame or out-of-order delivery).
func (p *Pipeline) ProcessFrame(ctx context.Context, frame *camera.Frame) (*TrajectoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame != nil && p.started && frame.Index <= p.lastIndex {
		return nil, fmt.Errorf("%w: frame %d after frame %d", ErrInvalidFrame, frame.Index, p.lastIndex)
	}

	keypoints, err := p.extractor.Extract(frame)
	if err != nil {
		// Malformed frame: fatal to this frame only, no record emitted.
		Opsf("[Pipeline] frame dropped: %v", err)
		return nil, err
	}

	p.persistFrame(frame)

	var rec TrajectoryRecord
	if !p.started {
		p.commit(frame, func() TrajectoryRecord {
			return p.acc.RecordInitial(frame.Index, frame.Timestamp)
		}, &rec)
		p.started = true
		p.refKeypoints = keypoints
		p.refIndex = frame.Index
	} else {
		motion, stepErr := p.step(keypoints)
		p.commit(frame, func() TrajectoryRecord {
			return p.acc.Apply(motion, frame.Index, frame.Timestamp, FailureReason(stepErr))
		}, &rec)
		if stepErr != nil {
			Diagf("[Pipeline] frame %d invalid (ref %d): %v", frame.Index, p.refIndex, stepErr)
		}
		if motion.Valid || len(p.refKeypoints) == 0 {
			p.refKeypoints = keypoints
			p.refIndex = frame.Index
		}
	}

	p.persistRecord(&rec)
	return &rec, nil
}

// commit runs the accumulator transition and updates the status snapshot
// in one critical section, so Status never observes a pose from one
// frame paired with the state of another.
func (p *Pipeline) commit(frame *camera.Frame, transition func() TrajectoryRecord, rec *TrajectoryRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*rec = transition()
	p.lastIndex = frame.Index
	p.processed++
	p.lastRec = rec
}

// step runs matching, filtering and pose estimation against the
// reference keypoints, converting each component failure into an invalid
// motion.
func (p *Pipeline) step(cur []Keypoint) (RelativeMotion, error) {
	matches, err := p.matcher.Match(p.refKeypoints, cur)
	if err != nil {
		return InvalidMotion(), err
	}
	res, err := p.filter.Filter(matches, p.rng)
	if err != nil {
		return InvalidMotion(), err
	}
	motion, err := p.pose.Estimate(res)
	if err != nil {
		return InvalidMotion(), err
	}
	return motion, nil
}

// Run drains the frame source through the pipeline. Cancellation is
// checked at frame granularity: the in-flight frame completes, no new
// frame is admitted afterwards.
func (p *Pipeline) Run(ctx context.Context, src camera.FrameSource) error {
	for {
		if err := ctx.Err(); err != nil {
			Opsf("[Pipeline] session %s stopped: %v", p.cfg.SessionID, err)
			return err
		}
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			Opsf("[Pipeline] session %s complete: %d frames", p.cfg.SessionID, p.Status().FramesProcessed)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A frame the source could not produce is a skipped frame,
			// not the end of the session.
			Opsf("[Pipeline] frame source error, skipping: %v", err)
			continue
		}
		if _, err := p.ProcessFrame(ctx, frame); err != nil && !errors.Is(err, ErrInvalidFrame) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			Opsf("[Pipeline] frame %d failed: %v", frame.Index, err)
		}
	}
}

func (p *Pipeline) persistFrame(frame *camera.Frame) {
	if isNilInterface(p.cfg.Frames) {
		return
	}
	if err := p.cfg.Frames.PersistFrame(frame); err != nil {
		// Image persistence is best-effort and never affects the
		// trajectory.
		Opsf("[Pipeline] persist frame %d failed: %v", frame.Index, err)
	}
}

func (p *Pipeline) persistRecord(rec *TrajectoryRecord) {
	if isNilInterface(p.cfg.Records) {
		return
	}
	if err := p.cfg.Records.PersistRecord(rec); err != nil {
		Opsf("[Pipeline] persist record for frame %d failed: %v", rec.FrameIndex, err)
	}
}

// isNilInterface checks if an interface value is nil or contains a nil
// pointer. This handles the Go interface nil pitfall where i != nil but
// the underlying value is nil.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
