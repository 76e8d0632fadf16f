package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ferrous-data/condition.report/internal/aggregate"
)

// RenderSpeedPlot saves the car's speed trace as a PNG.
func RenderSpeedPlot(path, unit, car string, sum *aggregate.Summary) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s car %s - Train Speed", unit, car)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Speed (km/h)"

	pts := make(plotter.XYs, 0, len(sum.Trace))
	for i, sp := range sum.Trace {
		pts = append(pts, plotter.XY{X: float64(i), Y: sp.V})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build speed line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("speed", line)
	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save speed plot: %w", err)
	}

	return nil
}
