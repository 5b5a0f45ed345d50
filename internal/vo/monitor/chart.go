// Package monitor renders trajectory visualisations: an HTML chart for
// quick inspection in a browser and a PNG plotter for reports.
package monitor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/odometry.report/internal/vo"
)

// RenderTrajectoryChart writes an HTML scatter chart of the ground-plane
// trajectory (x against z, the camera's forward axis) to w. Valid and
// invalid records are separate series so drift/failure points stand out.
func RenderTrajectoryChart(w io.Writer, sessionID string, records []*vo.TrajectoryRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("no records for session %s", sessionID)
	}

	var valid, invalid []opts.ScatterData
	pad := 1.0
	for _, rec := range records {
		x, z := rec.Pose.T[0], rec.Pose.T[2]
		if ax := abs(x); ax > pad {
			pad = ax
		}
		if az := abs(z); az > pad {
			pad = az
		}
		d := opts.ScatterData{Value: []interface{}{x, z}}
		if rec.Valid {
			valid = append(valid, d)
		} else {
			invalid = append(invalid, d)
		}
	}
	pad *= 1.1

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Trajectory",
			Subtitle: fmt.Sprintf("session=%s records=%d", sessionID, len(records)),
		}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (unit steps)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Z (unit steps)", NameLocation: "middle", NameGap: 35}),
	)
	scatter.AddSeries("pose", valid, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	if len(invalid) > 0 {
		scatter.AddSeries("degraded", invalid, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("render trajectory chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
