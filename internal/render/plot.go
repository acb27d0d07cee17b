package render

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/dvsim/internal/dvs"
)

var (
	onColor  = color.RGBA{R: 46, G: 160, B: 67, A: 255}
	offColor = color.RGBA{R: 207, G: 34, B: 46, A: 255}
)

// WritePlot renders ev as a PNG: the sensor plane with ON and OFF events on
// the left (origin top-left, as in the source image) and a stacked
// histogram of events over time on the right, split into bins time bins
// (DefaultBins when zero).
func WritePlot(w io.Writer, ev *dvs.Events, width, height, bins int) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	plane, err := planePlot(ev, width, height)
	if err != nil {
		return fmt.Errorf("sensor plane plot: %w", err)
	}
	hist, err := histogramPlot(ev, bins)
	if err != nil {
		return fmt.Errorf("histogram plot: %w", err)
	}

	img := vgimg.New(14*vg.Inch, 6*vg.Inch)
	dc := draw.New(img)
	t := draw.Tiles{
		Rows: 1,
		Cols: 2,
		PadX: vg.Millimeter * 4,
		PadY: vg.Millimeter * 4,

		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	plots := [][]*plot.Plot{{plane, hist}}
	canvases := plot.Align(plots, t, dc)
	for j, p := range plots[0] {
		p.Draw(canvases[0][j])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func planePlot(ev *dvs.Events, width, height int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Events (%d)", ev.Len())
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.X.Min, p.X.Max = 0, float64(max(width, 1))
	p.Y.Min, p.Y.Max = 0, float64(max(height, 1))
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	p.Legend.Top = true

	var onPts, offPts plotter.XYs
	for i := 0; i < ev.Len(); i++ {
		pt := plotter.XY{X: float64(ev.XPositions[i]), Y: float64(ev.YPositions[i])}
		if ev.Polarities[i] {
			onPts = append(onPts, pt)
		} else {
			offPts = append(offPts, pt)
		}
	}

	for _, s := range []struct {
		name  string
		pts   plotter.XYs
		color color.Color
	}{
		{"ON", onPts, onColor},
		{"OFF", offPts, offColor},
	} {
		if len(s.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(s.pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = s.color
		sc.GlyphStyle.Radius = vg.Points(1)
		sc.GlyphStyle.Shape = draw.BoxGlyph{}
		p.Add(sc)
		p.Legend.Add(s.name, sc)
	}
	return p, nil
}

func histogramPlot(ev *dvs.Events, bins int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Events over time"
	p.X.Label.Text = "bin"
	p.Y.Label.Text = "events"
	p.Legend.Top = true

	_, edges, on, off := TimeBins(ev, bins)
	if len(edges) == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
		return p, nil
	}
	p.Title.Text = fmt.Sprintf("Events over time (%d to %d µs)", ev.Timestamps[0], ev.Timestamps[ev.Len()-1])

	barWidth := vg.Points(4)
	onBars, err := plotter.NewBarChart(plotter.Values(on), barWidth)
	if err != nil {
		return nil, err
	}
	onBars.Color = onColor
	onBars.LineStyle.Width = 0

	offBars, err := plotter.NewBarChart(plotter.Values(off), barWidth)
	if err != nil {
		return nil, err
	}
	offBars.Color = offColor
	offBars.LineStyle.Width = 0
	offBars.StackOn(onBars)

	p.Add(onBars, offBars)
	p.Legend.Add("ON", onBars)
	p.Legend.Add("OFF", offBars)
	return p, nil
}
