package vo

import (
	"time"
)

// TrackingState is the accumulator's explicit tagged state.
type TrackingState string

const (
	// StateInitialized: identity pose, no relative motion composed yet.
	StateInitialized TrackingState = "initialized"
	// StateTracking: at least one valid relative motion composed and the
	// most recent step was valid.
	StateTracking TrackingState = "tracking"
	// StateDegraded: the most recent step was invalid; the last good
	// pose is retained untouched.
	StateDegraded TrackingState = "degraded"
)

// Pose is the absolute rotation and translation accumulated from the
// sequence start. Rotation is row-major. Translation is unscaled: each
// valid step contributes a unit-norm displacement by convention, and the
// accumulator never attempts metric-scale recovery.
type Pose struct {
	R [9]float64
	T [3]float64
}

// IdentityPose returns the origin pose.
func IdentityPose() Pose {
	return Pose{R: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// Compose applies a valid relative motion to the pose:
// R' = R·Rrel, T' = T + R·Trel.
func (p Pose) Compose(m RelativeMotion) Pose {
	var out Pose
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += p.R[r*3+k] * m.R[k*3+c]
			}
			out.R[r*3+c] = sum
		}
	}
	for r := 0; r < 3; r++ {
		out.T[r] = p.T[r] + p.R[r*3]*m.T[0] + p.R[r*3+1]*m.T[1] + p.R[r*3+2]*m.T[2]
	}
	return out
}

// TrajectoryRecord is the persisted output unit, one per processed
// frame. Written once, never mutated. Records are outputs of the
// accumulator, never inputs: re-emitting a record cannot alter the pose.
type TrajectoryRecord struct {
	SessionID     string
	FrameIndex    int64
	Timestamp     time.Time
	Pose          Pose
	InlierCount   int
	Valid         bool
	State         TrackingState
	FailureReason string
}

// Accumulator composes relative motions into the running absolute pose
// and emits one TrajectoryRecord per step. It has exactly one logical
// writer (the orchestrator's sequential loop) and is not safe for
// concurrent mutation.
type Accumulator struct {
	sessionID string
	state     TrackingState
	pose      Pose
}

// NewAccumulator returns an accumulator at the identity pose.
func NewAccumulator(sessionID string) *Accumulator {
	return &Accumulator{
		sessionID: sessionID,
		state:     StateInitialized,
		pose:      IdentityPose(),
	}
}

// State returns the current tagged state.
func (a *Accumulator) State() TrackingState { return a.state }

// Pose returns the current absolute pose (the last good pose while
// degraded).
func (a *Accumulator) Pose() Pose { return a.pose }

// RecordInitial emits the record for the first processed frame: identity
// pose, no motion composed. State stays Initialized.
func (a *Accumulator) RecordInitial(frameIndex int64, ts time.Time) TrajectoryRecord {
	return TrajectoryRecord{
		SessionID:  a.sessionID,
		FrameIndex: frameIndex,
		Timestamp:  ts,
		Pose:       a.pose,
		Valid:      true,
		State:      a.state,
	}
}

// Apply transitions the state machine on one relative motion and emits
// exactly one record.
//
// A valid motion composes onto the pose and moves to Tracking (also the
// recovery path out of Degraded, resuming from the last good pose). An
// invalid motion leaves the pose untouched and moves to Degraded; its
// record carries the retained pose and the failure reason.
func (a *Accumulator) Apply(m RelativeMotion, frameIndex int64, ts time.Time, reason string) TrajectoryRecord {
	if m.Valid {
		a.pose = a.pose.Compose(m)
		a.state = StateTracking
	} else {
		a.state = StateDegraded
		if reason == "" {
			reason = "invalid_motion"
		}
	}
	rec := TrajectoryRecord{
		SessionID:   a.sessionID,
		FrameIndex:  frameIndex,
		Timestamp:   ts,
		Pose:        a.pose,
		InlierCount: m.InlierCount,
		Valid:       m.Valid,
		State:       a.state,
	}
	if !m.Valid {
		rec.FailureReason = reason
	}
	return rec
}
