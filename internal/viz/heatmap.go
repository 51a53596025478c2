package viz

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// beliefGrid adapts a belief matrix to plotter.GridXYZ. Row 0 is drawn at
// the top so the image matches WriteGrid.
type beliefGrid struct {
	m mat.Matrix
}

func (g beliefGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g beliefGrid) Z(c, r int) float64 {
	rows, _ := g.m.Dims()
	return g.m.At(rows-1-r, c)
}

func (g beliefGrid) X(c int) float64 { return float64(c) }

func (g beliefGrid) Y(r int) float64 { return float64(r) }

// SaveHeatmapPNG renders beliefs to a PNG file, creating parent directories.
func SaveHeatmapPNG(beliefs mat.Matrix, title, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "column"
	p.Y.Label.Text = "row (top = 0)"

	hm := plotter.NewHeatMap(beliefGrid{m: beliefs}, palette.Heat(12, 1))
	// a uniform grid has no range to spread the palette over
	if hm.Max == hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	rows, cols := beliefs.Dims()
	w := vg.Length(cols) * vg.Inch
	h := vg.Length(rows) * vg.Inch
	if w < 4*vg.Inch {
		w = 4 * vg.Inch
	}
	if h < 4*vg.Inch {
		h = 4 * vg.Inch
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("failed to save heatmap: %w", err)
	}
	return nil
}
