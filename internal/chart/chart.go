// Package chart renders the fitness curve, the population on it and the
// per-generation trace as PNG images.
package chart

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/store"
)

// Default image size
const (
	Width  = 8 * vg.Inch
	Height = 5 * vg.Inch
)

var (
	curveColor = color.RGBA{R: 70, G: 110, B: 200, A: 255}
	popColor   = color.RGBA{R: 230, G: 140, B: 30, A: 255}
	bestColor  = color.RGBA{R: 200, G: 30, B: 40, A: 255}
	meanColor  = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// Population draws the sampled curve with every individual and the best one
// highlighted.
func Population(w io.Writer, snap controller.Snapshot) error {
	if len(snap.Points) == 0 {
		return fmt.Errorf("snapshot has no curve points")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Generation %d (%s)", snap.Generation, snap.Goal)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "f(x)"
	p.Add(plotter.NewGrid())

	curvePts := make(plotter.XYs, len(snap.Points))
	for i, pt := range snap.Points {
		curvePts[i].X = float64(pt.X)
		curvePts[i].Y = pt.Y
	}
	curve, err := plotter.NewLine(curvePts)
	if err != nil {
		return fmt.Errorf("failed to build curve: %w", err)
	}
	curve.Color = curveColor
	curve.Width = vg.Points(1.5)
	p.Add(curve)
	p.Legend.Add("f(x)", curve)

	if len(snap.Population) > 0 {
		popPts := make(plotter.XYs, len(snap.Population))
		for i, ind := range snap.Population {
			popPts[i].X = float64(ind.X)
			popPts[i].Y = ind.Y
		}
		scatter, err := plotter.NewScatter(popPts)
		if err != nil {
			return fmt.Errorf("failed to build population scatter: %w", err)
		}
		scatter.GlyphStyle.Color = popColor
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add("population", scatter)
	}

	if snap.Best != nil {
		best, err := plotter.NewScatter(plotter.XYs{{X: float64(snap.Best.X), Y: snap.Best.Y}})
		if err != nil {
			return fmt.Errorf("failed to build best marker: %w", err)
		}
		best.GlyphStyle.Color = bestColor
		best.GlyphStyle.Shape = draw.PyramidGlyph{}
		best.GlyphStyle.Radius = vg.Points(5)
		p.Add(best)
		p.Legend.Add(fmt.Sprintf("best x=%d", snap.Best.X), best)
	}

	return writePNG(w, p)
}

// Trace draws best and mean fitness per generation.
func Trace(w io.Writer, entries []store.TraceEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("trace is empty")
	}

	p := plot.New()
	p.Title.Text = "Fitness by generation"
	p.X.Label.Text = "generation"
	p.Y.Label.Text = "f(x)"
	p.Add(plotter.NewGrid())

	bestPts := make(plotter.XYs, len(entries))
	meanPts := make(plotter.XYs, len(entries))
	for i, e := range entries {
		bestPts[i].X = float64(e.Generation)
		bestPts[i].Y = e.BestY
		meanPts[i].X = float64(e.Generation)
		meanPts[i].Y = e.MeanY
	}

	bestLine, err := plotter.NewLine(bestPts)
	if err != nil {
		return fmt.Errorf("failed to build best line: %w", err)
	}
	bestLine.Color = bestColor

	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return fmt.Errorf("failed to build mean line: %w", err)
	}
	meanLine.Color = meanColor
	meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(bestLine, meanLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)

	return writePNG(w, p)
}

func writePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}
