// Package localizer implements the belief updates of a histogram filter on
// a toroidal grid.
//
// Each update is a pure function: it reads its arguments and returns a new
// grid. Callers thread the returned grid into the next call, alternating
// Sense and Move. Session wraps that loop for drivers that want it.
package localizer

import (
	"fmt"
	"math"

	"github.com/banshee-data/gridloc/internal/smoothing"
	"github.com/banshee-data/gridloc/internal/worldmap"
	"gonum.org/v1/gonum/mat"
)

// WorldMap is the read-only view of the color map the filter needs.
type WorldMap interface {
	Dims() (r, c int)
	ColorAt(i, j int) worldmap.Color
}

// SensorModel holds observation likelihoods: Hit for a cell whose color
// matches the observation, Miss otherwise.
type SensorModel struct {
	Hit  float64
	Miss float64
}

// Validate reports ErrInvalidParameter unless both likelihoods are
// positive and finite.
func (s SensorModel) Validate() error {
	if !(s.Hit > 0) || math.IsInf(s.Hit, 0) {
		return fmt.Errorf("%w: p_hit must be positive, got %v", ErrInvalidParameter, s.Hit)
	}
	if !(s.Miss > 0) || math.IsInf(s.Miss, 0) {
		return fmt.Errorf("%w: p_miss must be positive, got %v", ErrInvalidParameter, s.Miss)
	}
	return nil
}

// InitializeBeliefs returns a uniform grid shaped like world.
func InitializeBeliefs(world WorldMap) (*mat.Dense, error) {
	rows, cols := world.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: map is %dx%d", ErrDomain, rows, cols)
	}
	perCell := 1.0 / float64(rows*cols)
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = perCell
	}
	return mat.NewDense(rows, cols, data), nil
}

// Sense applies Bayes' rule for observing color: every cell is weighted by
// pHit when its map color matches and pMiss otherwise, then the grid is
// renormalized through smoothing.Default. beliefs is assumed to sum to one.
func Sense(color worldmap.Color, world WorldMap, beliefs mat.Matrix, pHit, pMiss float64) (*mat.Dense, error) {
	if err := (SensorModel{Hit: pHit, Miss: pMiss}).Validate(); err != nil {
		return nil, err
	}
	rows, cols := beliefs.Dims()
	if err := sameShape(world, beliefs); err != nil {
		return nil, err
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: beliefs are %dx%d", ErrDomain, rows, cols)
	}

	posterior := mat.NewDense(rows, cols, nil)
	evidence := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			w := pMiss
			if world.ColorAt(i, j) == color {
				w = pHit
			}
			v := beliefs.At(i, j) * w
			posterior.Set(i, j, v)
			evidence += v
		}
	}

	if evidence == 0 || math.IsNaN(evidence) || math.IsInf(evidence, 0) {
		return nil, fmt.Errorf("%w: observation %q has total evidence %v", ErrDomain, color, evidence)
	}
	out, err := smoothing.Default.Normalize(posterior)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDomain, err)
	}
	return out, nil
}

// Move shifts beliefs by (dy, dx) with wrap-around at every edge, then
// applies blur with the given amount to model motion noise. A nil blur
// uses smoothing.Default.
func Move(dy, dx int, beliefs mat.Matrix, amount float64, blur smoothing.Blurrer) (*mat.Dense, error) {
	if math.IsNaN(amount) || amount < 0 || amount > 1 {
		return nil, fmt.Errorf("%w: blur amount must be within [0, 1], got %v", ErrInvalidParameter, amount)
	}
	rows, cols := beliefs.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: beliefs are %dx%d", ErrDomain, rows, cols)
	}
	if blur == nil {
		blur = smoothing.Default
	}

	// reduce before adding so i+oy cannot overflow for any dy
	oy, ox := floorMod(dy, rows), floorMod(dx, cols)
	shifted := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		di := floorMod(i+oy, rows)
		for j := 0; j < cols; j++ {
			shifted.Set(di, floorMod(j+ox, cols), beliefs.At(i, j))
		}
	}

	out, err := blur.Blur(shifted, amount)
	if err != nil {
		return nil, fmt.Errorf("blur failed: %w", err)
	}
	if r, c := out.Dims(); r != rows || c != cols {
		return nil, fmt.Errorf("%w: blur returned %dx%d for %dx%d input", ErrShapeMismatch, r, c, rows, cols)
	}
	return out, nil
}

// floorMod is the mathematical modulo: the result is in [0, n) for any a.
func floorMod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

func sameShape(world WorldMap, beliefs mat.Matrix) error {
	wr, wc := world.Dims()
	br, bc := beliefs.Dims()
	if wr != br || wc != bc {
		return fmt.Errorf("%w: map is %dx%d, beliefs are %dx%d", ErrShapeMismatch, wr, wc, br, bc)
	}
	return nil
}
