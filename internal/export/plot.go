package export

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/bottleneck/internal/sim"
)

var (
	speedColour = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	riskColour  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	countColour = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// historyPlot builds the speed, risk and vehicle count lines against
// simulated hours since the first sample.
func historyPlot(title string, history []sim.HistorySample) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "simulated hours"
	p.Y.Label.Text = "km/h, %, vehicles"
	p.Add(plotter.NewGrid())

	if len(history) == 0 {
		return p, nil
	}
	start := history[0].Time
	speed := make(plotter.XYs, 0, len(history))
	risk := make(plotter.XYs, 0, len(history))
	count := make(plotter.XYs, 0, len(history))
	for _, h := range history {
		x := h.Time.Sub(start).Hours()
		speed = append(speed, plotter.XY{X: x, Y: h.AverageSpeed})
		risk = append(risk, plotter.XY{X: x, Y: h.Risk})
		count = append(count, plotter.XY{X: x, Y: float64(h.VehicleCount)})
	}

	for _, s := range []struct {
		name   string
		pts    plotter.XYs
		colour color.Color
	}{
		{"avg speed", speed, speedColour},
		{"risk", risk, riskColour},
		{"vehicles", count, countColour},
	} {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", s.name, err)
		}
		line.Width = vg.Points(1)
		line.Color = s.colour
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	return p, nil
}

// WriteHistoryPlot renders the history log as a PNG to w.
func WriteHistoryPlot(w io.Writer, title string, history []sim.HistorySample) error {
	p, err := historyPlot(title, history)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SaveHistoryPlot renders the history log to a PNG file.
func SaveHistoryPlot(path, title string, history []sim.HistorySample) error {
	p, err := historyPlot(title, history)
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
