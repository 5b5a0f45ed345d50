// Package sqlite persists trajectory sessions and records. It is an
// adapter, not a domain layer: the pipeline emits records through the
// vo.RecordSink interface and never reads them back.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/odometry.report/internal/vo"
)

// RecordStore writes and queries trajectory records.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore returns a store backed by the given database. The
// schema is managed by the db package's migrations.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

// CreateSession registers a new trajectory session.
func (s *RecordStore) CreateSession(sessionID, source string, startedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO vo_sessions (session_id, source, started_unix_nanos)
		VALUES (?, ?, ?)
	`, sessionID, source, startedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sessionID, err)
	}
	return nil
}

// PersistRecord appends one trajectory record. Records are written once
// and never mutated; re-emitting a record for an already stored
// (session, frame index) is a no-op, so persistence is idempotent.
func (s *RecordStore) PersistRecord(rec *vo.TrajectoryRecord) error {
	q := vo.RotationToQuaternion(rec.Pose.R)
	_, err := s.db.Exec(`
		INSERT INTO vo_trajectory_records (
			session_id, frame_index, ts_unix_nanos, state, valid,
			failure_reason, inlier_count,
			qw, qx, qy, qz, tx, ty, tz
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, frame_index) DO NOTHING
	`,
		rec.SessionID,
		rec.FrameIndex,
		rec.Timestamp.UnixNano(),
		string(rec.State),
		boolToInt(rec.Valid),
		rec.FailureReason,
		rec.InlierCount,
		q[0], q[1], q[2], q[3],
		rec.Pose.T[0], rec.Pose.T[1], rec.Pose.T[2],
	)
	if err != nil {
		return fmt.Errorf("insert record %s/%d: %w", rec.SessionID, rec.FrameIndex, err)
	}
	return nil
}

// GetRecords returns up to limit records for a session in frame-index
// order. limit <= 0 means no limit.
func (s *RecordStore) GetRecords(sessionID string, limit int) ([]*vo.TrajectoryRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats negative LIMIT as unlimited
	}
	rows, err := s.db.Query(`
		SELECT session_id, frame_index, ts_unix_nanos, state, valid,
		       failure_reason, inlier_count,
		       qw, qx, qy, qz, tx, ty, tz
		FROM vo_trajectory_records
		WHERE session_id = ?
		ORDER BY frame_index ASC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query records for %s: %w", sessionID, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetRecordsInRange returns records with frame index in [startIndex,
// endIndex], in frame-index order.
func (s *RecordStore) GetRecordsInRange(sessionID string, startIndex, endIndex int64) ([]*vo.TrajectoryRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, frame_index, ts_unix_nanos, state, valid,
		       failure_reason, inlier_count,
		       qw, qx, qy, qz, tx, ty, tz
		FROM vo_trajectory_records
		WHERE session_id = ? AND frame_index BETWEEN ? AND ?
		ORDER BY frame_index ASC
	`, sessionID, startIndex, endIndex)
	if err != nil {
		return nil, fmt.Errorf("query record range for %s: %w", sessionID, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// LatestRecord returns the record with the highest frame index, or nil
// when the session has no records yet.
func (s *RecordStore) LatestRecord(sessionID string) (*vo.TrajectoryRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, frame_index, ts_unix_nanos, state, valid,
		       failure_reason, inlier_count,
		       qw, qx, qy, qz, tx, ty, tz
		FROM vo_trajectory_records
		WHERE session_id = ?
		ORDER BY frame_index DESC
		LIMIT 1
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query latest record for %s: %w", sessionID, err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func scanRecords(rows *sql.Rows) ([]*vo.TrajectoryRecord, error) {
	var recs []*vo.TrajectoryRecord
	for rows.Next() {
		var (
			rec      vo.TrajectoryRecord
			tsNanos  int64
			state    string
			valid    int
			failure  sql.NullString
			q        [4]float64
		)
		if err := rows.Scan(
			&rec.SessionID, &rec.FrameIndex, &tsNanos, &state, &valid,
			&failure, &rec.InlierCount,
			&q[0], &q[1], &q[2], &q[3],
			&rec.Pose.T[0], &rec.Pose.T[1], &rec.Pose.T[2],
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Timestamp = time.Unix(0, tsNanos)
		rec.State = vo.TrackingState(state)
		rec.Valid = valid != 0
		if failure.Valid {
			rec.FailureReason = failure.String
		}
		rec.Pose.R = vo.QuaternionToRotation(q)
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return recs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
