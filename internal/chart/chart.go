// Package chart renders ranking bar charts.
package chart

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Bar is one labelled value.
type Bar struct {
	Label string
	Value float64
}

// Palette used by the pipeline for the two partitions.
var (
	SkyBlue    = color.RGBA{R: 135, G: 206, B: 235, A: 255}
	LightGreen = color.RGBA{R: 144, G: 238, B: 144, A: 255}
)

// TopBars writes a horizontal bar chart to path; the image format follows the
// file extension (png, svg, pdf...). Bars are drawn in the given order from
// top to bottom, so callers pass them highest first.
func TopBars(path, title, xLabel string, bars []Bar, fill color.Color) error {
	if len(bars) == 0 {
		return errors.New("chart: no bars to draw")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.X.Min = 0

	// plotter draws index 0 at the bottom.
	n := len(bars)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i, b := range bars {
		values[n-1-i] = b.Value
		labels[n-1-i] = b.Label
	}

	bc, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	bc.Horizontal = true
	bc.Color = fill
	bc.LineStyle.Width = 0
	p.Add(bc)
	p.NominalY(labels...)

	height := vg.Length(n)*0.3*vg.Inch + 1.5*vg.Inch
	if err := p.Save(10*vg.Inch, height, path); err != nil {
		return fmt.Errorf("chart: save %s: %w", path, err)
	}
	return nil
}
