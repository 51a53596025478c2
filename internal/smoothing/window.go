package smoothing

import (
	"gonum.org/v1/gonum/mat"
)

// Window blurs with a 3x3 kernel on a cyclic grid: the center keeps
// 1-amount, each edge neighbour receives amount/6 and each corner
// amount/12. Mass crossing an edge re-enters on the opposite side.
//
// For amount 0.12 a unit spike becomes
//
//	0.01 0.02 0.01
//	0.02 0.88 0.02
//	0.01 0.02 0.01
type Window struct{}

// Weights returns the kernel for amount, indexed [dy+1][dx+1].
func (Window) Weights(amount float64) [3][3]float64 {
	center := 1.0 - amount
	edge := amount / 6.0
	corner := amount / 12.0
	return [3][3]float64{
		{corner, edge, corner},
		{edge, center, edge},
		{corner, edge, corner},
	}
}

// Normalize implements Normalizer.
func (Window) Normalize(grid mat.Matrix) (*mat.Dense, error) { return Normalize(grid) }

// Blur implements Blurrer. The output is rescaled to the input's total mass.
func (w Window) Blur(grid mat.Matrix, amount float64) (*mat.Dense, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if amount == 0 {
		return mat.DenseCopyOf(grid), nil
	}

	rows, cols := grid.Dims()
	kernel := w.Weights(amount)
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := grid.At(i, j)
			if v == 0 {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				ni := (i + dy + rows) % rows
				for dx := -1; dx <= 1; dx++ {
					nj := (j + dx + cols) % cols
					out.Set(ni, nj, out.At(ni, nj)+kernel[dy+1][dx+1]*v)
				}
			}
		}
	}

	in := mat.Sum(grid)
	got := mat.Sum(out)
	if got != 0 && in != got {
		out.Scale(in/got, out)
	}
	return out, nil
}
