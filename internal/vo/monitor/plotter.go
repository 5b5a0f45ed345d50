package monitor

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/odometry.report/internal/vo"
)

// trajectoryPlot builds the ground-plane line plot. Invalid records plot
// at the retained pose, so degraded stretches show up as repeated points
// on the path.
func trajectoryPlot(sessionID string, records []*vo.TrajectoryRecord) (*plot.Plot, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records for session %s", sessionID)
	}

	pts := make(plotter.XYs, len(records))
	for i, rec := range records {
		pts[i].X = rec.Pose.T[0]
		pts[i].Y = rec.Pose.T[2]
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trajectory %s", sessionID)
	p.X.Label.Text = "X (unit steps)"
	p.Y.Label.Text = "Z (unit steps)"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("build trajectory line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)
	return p, nil
}

// SaveTrajectoryPNG writes the trajectory plot to a PNG file.
func SaveTrajectoryPNG(path, sessionID string, records []*vo.TrajectoryRecord) error {
	p, err := trajectoryPlot(sessionID, records)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	return nil
}

// WriteTrajectoryPNG renders the trajectory plot as PNG to w.
func WriteTrajectoryPNG(w io.Writer, sessionID string, records []*vo.TrajectoryRecord) error {
	p, err := trajectoryPlot(sessionID, records)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render trajectory plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write trajectory plot: %w", err)
	}
	return nil
}
