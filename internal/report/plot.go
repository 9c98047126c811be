// Package report renders training diagnostics as image files.
package report

import (
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// Size is the edge length of saved plots.
var Size = 5 * vg.Inch

// LossCurve plots one loss value per sweep. The format follows the file
// extension (png, svg, pdf, ...).
func LossCurve(losses []float64, title, path string) error {
	if len(losses) == 0 {
		return errors.NewValueError("report.LossCurve", "no loss values to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Sweep"
	p.Y.Label.Text = "Loss per instance"

	pts := make(plotter.XYs, len(losses))
	for i, l := range losses {
		pts[i].X = float64(i + 1)
		pts[i].Y = l
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "failed to build loss line")
	}
	line.Color = color.RGBA{B: 200, A: 255}
	p.Add(line, plotter.NewGrid())

	return save(p, path)
}

// Scatter plots the first two embedding coordinates, one colour per group.
// groups may be nil; a one-dimensional embedding is drawn on the x axis.
func Scatter(embedded mat.Matrix, groups []int, title, path string) error {
	n, d := embedded.Dims()
	if n == 0 || d == 0 {
		return errors.NewValueError("report.Scatter", "no points to plot")
	}
	if groups != nil && len(groups) != n {
		return errors.NewDimensionError("report.Scatter", n, len(groups), 0)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "target0"
	p.Y.Label.Text = "target1"

	byGroup := map[int]plotter.XYs{}
	for i := 0; i < n; i++ {
		g := 0
		if groups != nil {
			g = groups[i]
		}
		pt := plotter.XY{X: embedded.At(i, 0)}
		if d > 1 {
			pt.Y = embedded.At(i, 1)
		}
		byGroup[g] = append(byGroup[g], pt)
	}

	keys := make([]int, 0, len(byGroup))
	for g := range byGroup {
		keys = append(keys, g)
	}
	sort.Ints(keys)

	for i, g := range keys {
		s, err := plotter.NewScatter(byGroup[g])
		if err != nil {
			return errors.Wrap(err, "failed to build scatter")
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(2)
		p.Add(s)
		if groups != nil {
			p.Legend.Add(fmt.Sprintf("group %d", g), s)
		}
	}

	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if err := p.Save(Size, Size, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %s", path)
	}
	return nil
}
