// Package api exposes the odometry session over HTTP: status, record
// queries and the trajectory chart. It is a read-only surface; the
// pipeline owns all mutation.
package api

import (
	"net/http"
	"strconv"

	"github.com/banshee-data/odometry.report/internal/httputil"
	"github.com/banshee-data/odometry.report/internal/vo"
	"github.com/banshee-data/odometry.report/internal/vo/monitor"
	"github.com/banshee-data/odometry.report/internal/vo/storage/sqlite"
)

// StatusProvider reports the live pipeline snapshot.
type StatusProvider interface {
	Status() vo.Status
}

// Server serves the HTTP API.
type Server struct {
	pipeline StatusProvider
	store    *sqlite.RecordStore
}

// NewServer builds the API server around a running pipeline and its
// record store.
func NewServer(pipeline StatusProvider, store *sqlite.RecordStore) *Server {
	return &Server{pipeline: pipeline, store: store}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/vo/status", s.handleStatus)
	mux.HandleFunc("/api/vo/records", s.handleRecords)
	mux.HandleFunc("/api/vo/trajectory.html", s.handleTrajectoryChart)
	mux.HandleFunc("/api/vo/trajectory.png", s.handleTrajectoryPNG)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.pipeline.Status())
}

// recordAPI is the JSON shape of one trajectory record.
type recordAPI struct {
	FrameIndex    int64      `json:"frame_index"`
	TSUnixNanos   int64      `json:"ts_unix_nanos"`
	State         string     `json:"state"`
	Valid         bool       `json:"valid"`
	FailureReason string     `json:"failure_reason,omitempty"`
	InlierCount   int        `json:"inlier_count"`
	Rotation      [9]float64 `json:"rotation"`
	Translation   [3]float64 `json:"translation"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = s.pipeline.Status().SessionID
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 0 {
			httputil.BadRequest(w, "invalid limit")
			return
		}
		limit = v
	}

	records, err := s.store.GetRecords(sessionID, limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	out := make([]recordAPI, len(records))
	for i, rec := range records {
		out[i] = recordAPI{
			FrameIndex:    rec.FrameIndex,
			TSUnixNanos:   rec.Timestamp.UnixNano(),
			State:         string(rec.State),
			Valid:         rec.Valid,
			FailureReason: rec.FailureReason,
			InlierCount:   rec.InlierCount,
			Rotation:      rec.Pose.R,
			Translation:   rec.Pose.T,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"records":    out,
	})
}

func (s *Server) handleTrajectoryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = s.pipeline.Status().SessionID
	}
	records, err := s.store.GetRecords(sessionID, 0)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(records) == 0 {
		httputil.NotFound(w, "no records for session")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := monitor.RenderTrajectoryChart(w, sessionID, records); err != nil {
		vo.Opsf("[API] render trajectory chart: %v", err)
	}
}

func (s *Server) handleTrajectoryPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = s.pipeline.Status().SessionID
	}
	records, err := s.store.GetRecords(sessionID, 0)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(records) == 0 {
		httputil.NotFound(w, "no records for session")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := monitor.WriteTrajectoryPNG(w, sessionID, records); err != nil {
		vo.Opsf("[API] render trajectory png: %v", err)
	}
}
