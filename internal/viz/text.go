// Package viz renders belief grids as text, PNG heatmaps and HTML heatmaps.
package viz

import (
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/gridloc/internal/worldmap"
	"gonum.org/v1/gonum/mat"
)

// WriteGrid prints beliefs one row per line with the given number of
// decimals, cells separated by two spaces.
func WriteGrid(w io.Writer, beliefs mat.Matrix, decimals int) error {
	rows, cols := beliefs.Dims()
	var b strings.Builder
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if j > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%.*f", decimals, beliefs.At(i, j))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteMap prints a world map in the same layout it is read in.
func WriteMap(w io.Writer, m interface {
	Dims() (int, int)
	ColorAt(i, j int) worldmap.Color
}) error {
	rows, cols := m.Dims()
	var b strings.Builder
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(string(m.ColorAt(i, j)))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
