package monitor

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/odometry.report/internal/vo"
)

func chartRecords(n int) []*vo.TrajectoryRecord {
	recs := make([]*vo.TrajectoryRecord, n)
	for i := range recs {
		rec := &vo.TrajectoryRecord{
			SessionID:  "s1",
			FrameIndex: int64(i),
			Timestamp:  time.Unix(int64(100+i), 0),
			Pose:       vo.IdentityPose(),
			Valid:      i%3 != 0,
			State:      vo.StateTracking,
		}
		rec.Pose.T = [3]float64{float64(i) * 0.5, 0, float64(i)}
		recs[i] = rec
	}
	return recs
}

func TestRenderTrajectoryChart(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderTrajectoryChart(&buf, "s1", chartRecords(6)); err != nil {
		t.Fatalf("RenderTrajectoryChart: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "echarts") {
		t.Error("rendered chart does not embed the chart library")
	}
	// Both series present: the fixture mixes valid and invalid records.
	if !strings.Contains(out, "pose") || !strings.Contains(out, "degraded") {
		t.Error("rendered chart missing a series")
	}
}

func TestRenderTrajectoryChartNoRecords(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderTrajectoryChart(&buf, "s1", nil); err == nil {
		t.Error("expected error for empty record set, got nil")
	}
}
