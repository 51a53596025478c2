// Package smoothing provides the normalization and motion-noise blur used
// by the histogram filter. Blur strategies are injected through Blurrer so
// alternative noise models can replace the default window.
package smoothing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrZeroMass is returned when a distribution sums to zero.
	ErrZeroMass = errors.New("distribution has zero total mass")
	// ErrInvalidAmount is returned for blur amounts outside [0, 1].
	ErrInvalidAmount = errors.New("blur amount must be within [0, 1]")
)

// Normalizer rescales a grid so its cells sum to one.
type Normalizer interface {
	Normalize(grid mat.Matrix) (*mat.Dense, error)
}

// Blurrer spreads probability mass to model motion noise. Implementations
// must return a grid of the same shape and total mass as the input, and
// must treat amount 0 as the identity.
type Blurrer interface {
	Blur(grid mat.Matrix, amount float64) (*mat.Dense, error)
}

// Provider bundles both capabilities.
type Provider interface {
	Normalizer
	Blurrer
}

// Default is the provider used when callers do not inject one.
var Default Provider = Window{}

// Normalize returns a copy of grid scaled to sum to one.
func Normalize(grid mat.Matrix) (*mat.Dense, error) {
	total := mat.Sum(grid)
	if total == 0 {
		return nil, ErrZeroMass
	}
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: total is %v", ErrZeroMass, total)
	}
	var out mat.Dense
	out.Scale(1/total, grid)
	return &out, nil
}

// NormalizeValues is Normalize for a flat sequence.
func NormalizeValues(values []float64) ([]float64, error) {
	total := floats.Sum(values)
	if total == 0 {
		return nil, ErrZeroMass
	}
	out := make([]float64, len(values))
	copy(out, values)
	floats.Scale(1/total, out)
	return out, nil
}

func checkAmount(amount float64) error {
	if math.IsNaN(amount) || amount < 0 || amount > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, amount)
	}
	return nil
}

// Identity never spreads mass. It is useful for deterministic replays.
type Identity struct{}

// Normalize implements Normalizer.
func (Identity) Normalize(grid mat.Matrix) (*mat.Dense, error) { return Normalize(grid) }

// Blur validates amount and returns a copy of grid.
func (Identity) Blur(grid mat.Matrix, amount float64) (*mat.Dense, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(grid), nil
}
