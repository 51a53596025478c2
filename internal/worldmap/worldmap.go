// Package worldmap holds the immutable color map a robot localizes against.
package worldmap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrRagged is returned when map rows have differing lengths.
var ErrRagged = errors.New("map rows have differing lengths")

// Color is a discrete cell label such as "R" or "G".
type Color string

// Map is a rectangular grid of colors. The zero value is an empty map.
type Map struct {
	rows, cols int
	cells      []Color
}

// New copies rows into a Map. All rows must have the same length. An empty
// or zero-width map is accepted; consumers decide whether it is usable.
func New(rows [][]Color) (*Map, error) {
	m := &Map{rows: len(rows)}
	if m.rows == 0 {
		return m, nil
	}
	m.cols = len(rows[0])
	m.cells = make([]Color, 0, m.rows*m.cols)
	for i, row := range rows {
		if len(row) != m.cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrRagged, i, len(row), m.cols)
		}
		m.cells = append(m.cells, row...)
	}
	return m, nil
}

// FromStrings builds a map where each rune of each string is one cell.
func FromStrings(rows ...string) (*Map, error) {
	grid := make([][]Color, len(rows))
	for i, r := range rows {
		grid[i] = make([]Color, 0, len(r))
		for _, c := range r {
			grid[i] = append(grid[i], Color(string(c)))
		}
	}
	return New(grid)
}

// Dims returns the number of rows and columns.
func (m *Map) Dims() (r, c int) {
	return m.rows, m.cols
}

// ColorAt returns the color of cell (i, j). It panics when out of range.
func (m *Map) ColorAt(i, j int) Color {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("worldmap: index (%d, %d) out of range %dx%d", i, j, m.rows, m.cols))
	}
	return m.cells[i*m.cols+j]
}

// Palette returns the distinct colors in the map, sorted.
func (m *Map) Palette() []Color {
	seen := make(map[Color]struct{})
	for _, c := range m.cells {
		seen[c] = struct{}{}
	}
	out := make([]Color, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Count returns how many cells carry color c.
func (m *Map) Count(c Color) int {
	n := 0
	for _, v := range m.cells {
		if v == c {
			n++
		}
	}
	return n
}

// Read parses a map where each line is one row of whitespace separated
// color tokens, e.g. "R G G". Blank lines are skipped.
func Read(r io.Reader) (*Map, error) {
	var grid [][]Color
	scan := bufio.NewScanner(r)
	line := 0
	for scan.Scan() {
		line++
		fields := strings.Fields(scan.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]Color, len(fields))
		for j, f := range fields {
			row[j] = Color(f)
		}
		if len(grid) > 0 && len(row) != len(grid[0]) {
			return nil, fmt.Errorf("%w: line %d has %d cells, want %d", ErrRagged, line, len(row), len(grid[0]))
		}
		grid = append(grid, row)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("failed to read map: %w", err)
	}
	return New(grid)
}

// Load reads a map file from disk.
func Load(path string) (*Map, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open map: %w", err)
	}
	defer f.Close()
	return Read(f)
}
