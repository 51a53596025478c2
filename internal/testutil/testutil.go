// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// GridTolerance is the per-cell tolerance used when comparing belief grids.
const GridTolerance = 1e-4

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// CloseEnough reports whether two grids have the same shape and every cell
// differs by at most tol.
func CloseEnough(a, b mat.Matrix, tol float64) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return false
	}
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			if math.Abs(a.At(i, j)-b.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}

// AssertGridClose fails the test unless got matches want within GridTolerance.
func AssertGridClose(t *testing.T, want, got mat.Matrix) {
	t.Helper()
	if !CloseEnough(want, got, GridTolerance) {
		t.Errorf("grids differ\nwant:\n%v\ngot:\n%v", mat.Formatted(want), mat.Formatted(got))
	}
}

// AssertSumsToOne fails the test unless the grid's cells sum to one within tol.
func AssertSumsToOne(t *testing.T, g mat.Matrix, tol float64) {
	t.Helper()
	if sum := mat.Sum(g); math.Abs(sum-1) > tol {
		t.Errorf("grid sums to %v, want 1 (tol %v)", sum, tol)
	}
}

// Grid builds a dense matrix from row literals.
func Grid(rows ...[]float64) *mat.Dense {
	if len(rows) == 0 {
		panic("testutil: Grid needs at least one row")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			panic(fmt.Sprintf("testutil: row %d has %d cells, want %d", i, len(r), cols))
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data)
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
