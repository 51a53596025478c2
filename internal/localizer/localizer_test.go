package localizer

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/gridloc/internal/smoothing"
	"github.com/banshee-data/gridloc/internal/testutil"
	"github.com/banshee-data/gridloc/internal/worldmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func mustMap(t *testing.T, rows ...string) *worldmap.Map {
	t.Helper()
	m, err := worldmap.FromStrings(rows...)
	require.NoError(t, err)
	return m
}

func TestInitializeBeliefs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rows []string
	}{
		{"single cell", []string{"R"}},
		{"square", []string{"RGG", "RRG", "RRR"}},
		{"wide", []string{"RGRGR", "GGGGG"}},
		{"tall", []string{"R", "G", "G", "R"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			world := mustMap(t, tt.rows...)
			got, err := InitializeBeliefs(world)
			require.NoError(t, err)

			r, c := got.Dims()
			wr, wc := world.Dims()
			require.Equal(t, wr, r)
			require.Equal(t, wc, c)

			want := 1.0 / float64(r*c)
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					assert.Equal(t, want, got.At(i, j))
				}
			}
			testutil.AssertSumsToOne(t, got, 1e-12)
		})
	}
}

func TestInitializeBeliefsZeroArea(t *testing.T) {
	empty, err := worldmap.New(nil)
	require.NoError(t, err)
	_, err = InitializeBeliefs(empty)
	assert.ErrorIs(t, err, ErrDomain)

	noCols, err := worldmap.New([][]worldmap.Color{{}, {}})
	require.NoError(t, err)
	_, err = InitializeBeliefs(noCols)
	assert.ErrorIs(t, err, ErrDomain)
}

func TestSenseScenario(t *testing.T) {
	world := mustMap(t, "RGG", "RRG", "RRR")
	beliefs, err := InitializeBeliefs(world)
	require.NoError(t, err)

	got, err := Sense("R", world, beliefs, 0.6, 0.2)
	require.NoError(t, err)
	testutil.AssertSumsToOne(t, got, 1e-9)

	var red, green []float64
	rows, cols := world.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if world.ColorAt(i, j) == "R" {
				red = append(red, got.At(i, j))
			} else {
				green = append(green, got.At(i, j))
			}
		}
	}
	require.Len(t, red, 6)
	require.Len(t, green, 3)

	// 6 red cells at 0.6/9 and 3 green at 0.2/9 give 1/7 and 1/21.
	for _, v := range red {
		assert.InDelta(t, 1.0/7.0, v, 1e-12)
	}
	for _, v := range green {
		assert.InDelta(t, 1.0/21.0, v, 1e-12)
	}
	assert.Greater(t, red[0], green[0])
}

func TestSenseMatchesProviderNormalize(t *testing.T) {
	world := mustMap(t, "RG", "GR")
	beliefs := testutil.Grid([]float64{0.1, 0.2}, []float64{0.3, 0.4})

	got, err := Sense("R", world, beliefs, 0.9, 0.1)
	require.NoError(t, err)

	weighted := testutil.Grid([]float64{0.1 * 0.9, 0.2 * 0.1}, []float64{0.3 * 0.1, 0.4 * 0.9})
	want, err := smoothing.Default.Normalize(weighted)
	require.NoError(t, err)
	testutil.AssertGridClose(t, want, got)
}

func TestSenseDoesNotMutateInput(t *testing.T) {
	world := mustMap(t, "RG")
	beliefs := testutil.Grid([]float64{0.5, 0.5})
	before := mat.DenseCopyOf(beliefs)

	_, err := Sense("R", world, beliefs, 0.9, 0.1)
	require.NoError(t, err)
	assert.True(t, mat.Equal(before, beliefs))
}

func TestSenseNoEvidenceKeepsBeliefs(t *testing.T) {
	world := mustMap(t, "RGB", "GGR")
	beliefs := testutil.Grid(
		[]float64{0.1, 0.2, 0.05},
		[]float64{0.3, 0.25, 0.1},
	)
	for _, p := range []float64{0.2, 1, 3.5} {
		got, err := Sense("G", world, beliefs, p, p)
		require.NoError(t, err)
		assert.True(t, testutil.CloseEnough(beliefs, got, 1e-12), "p=%v", p)
	}
}

func TestSenseConcentratesOnRepeatedObservation(t *testing.T) {
	world := mustMap(t, "RGGG")
	beliefs, err := InitializeBeliefs(world)
	require.NoError(t, err)

	prev := beliefs.At(0, 0)
	for k := 0; k < 5; k++ {
		beliefs, err = Sense("R", world, beliefs, 0.8, 0.2)
		require.NoError(t, err)
		testutil.AssertSumsToOne(t, beliefs, 1e-9)
		assert.Greater(t, beliefs.At(0, 0), prev)
		prev = beliefs.At(0, 0)
	}
}

func TestSenseUnknownColorIsUninformative(t *testing.T) {
	world := mustMap(t, "RG", "GR")
	beliefs := testutil.Grid([]float64{0.4, 0.1}, []float64{0.2, 0.3})
	got, err := Sense("B", world, beliefs, 0.9, 0.1)
	require.NoError(t, err)
	assert.True(t, testutil.CloseEnough(beliefs, got, 1e-12))
}

func TestSenseErrors(t *testing.T) {
	t.Parallel()

	world := mustMap(t, "RG", "GR")
	uniform, err := InitializeBeliefs(world)
	require.NoError(t, err)

	tests := []struct {
		name    string
		beliefs mat.Matrix
		pHit    float64
		pMiss   float64
		want    error
	}{
		{"shape mismatch", testutil.Grid([]float64{0.5, 0.5}), 0.6, 0.2, ErrShapeMismatch},
		{"transposed shape", testutil.Grid([]float64{0.5}, []float64{0.5}), 0.6, 0.2, ErrShapeMismatch},
		{"zero p_hit", uniform, 0, 0.2, ErrInvalidParameter},
		{"negative p_miss", uniform, 0.6, -0.2, ErrInvalidParameter},
		{"zero p_miss", uniform, 0.6, 0, ErrInvalidParameter},
		{"NaN p_hit", uniform, math.NaN(), 0.2, ErrInvalidParameter},
		{"infinite p_miss", uniform, 0.6, math.Inf(1), ErrInvalidParameter},
		{"zero evidence", mat.NewDense(2, 2, nil), 0.6, 0.2, ErrDomain},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Sense("R", world, tt.beliefs, tt.pHit, tt.pMiss)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestMoveIdentity(t *testing.T) {
	beliefs := testutil.Grid(
		[]float64{0.1, 0.2, 0.05},
		[]float64{0.3, 0.25, 0.1},
	)
	got, err := Move(0, 0, beliefs, 0, smoothing.Window{})
	require.NoError(t, err)
	assert.True(t, mat.Equal(beliefs, got))
}

func TestMoveShiftsRowsDown(t *testing.T) {
	beliefs := testutil.Grid([]float64{0.1, 0.2}, []float64{0.3, 0.4})
	got, err := Move(1, 0, beliefs, 0, nil)
	require.NoError(t, err)

	want := testutil.Grid([]float64{0.3, 0.4}, []float64{0.1, 0.2})
	assert.True(t, mat.Equal(want, got), "got\n%v", mat.Formatted(got))

	uniform := testutil.Grid([]float64{0.25, 0.25}, []float64{0.25, 0.25})
	got, err = Move(1, 0, uniform, 0, nil)
	require.NoError(t, err)
	assert.True(t, mat.Equal(uniform, got))
}

func TestMoveNonSquare(t *testing.T) {
	beliefs := testutil.Grid(
		[]float64{0.1, 0.2, 0.05},
		[]float64{0.3, 0.25, 0.1},
	)

	got, err := Move(0, 1, beliefs, 0, nil)
	require.NoError(t, err)
	want := testutil.Grid(
		[]float64{0.05, 0.1, 0.2},
		[]float64{0.1, 0.3, 0.25},
	)
	assert.True(t, mat.Equal(want, got), "got\n%v", mat.Formatted(got))

	got, err = Move(1, 2, beliefs, 0, nil)
	require.NoError(t, err)
	want = testutil.Grid(
		[]float64{0.25, 0.1, 0.3},
		[]float64{0.2, 0.05, 0.1},
	)
	assert.True(t, mat.Equal(want, got), "got\n%v", mat.Formatted(got))
}

func TestMoveNegativeDisplacementWraps(t *testing.T) {
	beliefs := testutil.Grid(
		[]float64{1, 0, 0},
		[]float64{0, 0, 0},
	)
	got, err := Move(-1, -1, beliefs, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.At(1, 2))
	assert.Equal(t, 1.0, mat.Sum(got))
}

func TestMoveLargeDisplacements(t *testing.T) {
	beliefs := testutil.Grid(
		[]float64{0.1, 0.2, 0.05, 0.05},
		[]float64{0.3, 0.1, 0.0, 0.0},
		[]float64{0.0, 0.1, 0.05, 0.05},
	)

	full, err := Move(3, 0, beliefs, 0, nil)
	require.NoError(t, err)
	assert.True(t, mat.Equal(beliefs, full), "moving by the height is a full wrap")

	full, err = Move(-6, 8, beliefs, 0, nil)
	require.NoError(t, err)
	assert.True(t, mat.Equal(beliefs, full))

	// on a 3x4 grid MaxInt reduces to (1, 3) and MinInt to (1, 0)
	tests := []struct {
		name           string
		dy, dx         int
		wantDY, wantDX int
	}{
		{"beyond both sides", 7, -9, 1, 3},
		{"max int", math.MaxInt, math.MaxInt, 1, 3},
		{"min int", math.MinInt, math.MinInt, 1, 0},
		{"mixed extremes", math.MaxInt, math.MinInt, 1, 0},
		{"negated max int", -math.MaxInt, -math.MaxInt, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Move(tt.dy, tt.dx, beliefs, 0, nil)
			require.NoError(t, err)
			want, err := Move(tt.wantDY, tt.wantDX, beliefs, 0, nil)
			require.NoError(t, err)
			assert.True(t, mat.Equal(want, got), "want\n%v\ngot\n%v", mat.Formatted(want), mat.Formatted(got))
			assert.InDelta(t, 1.0, mat.Sum(got), 1e-12)
		})
	}
}

func TestMoveMaxIntColumn(t *testing.T) {
	beliefs := testutil.Grid([]float64{0.2}, []float64{0.3}, []float64{0.5})

	got, err := Move(math.MaxInt, 0, beliefs, 0, smoothing.Identity{})
	require.NoError(t, err)
	testutil.AssertGridClose(t, testutil.Grid([]float64{0.5}, []float64{0.2}, []float64{0.3}), got)
	testutil.AssertSumsToOne(t, got, 1e-12)
}

func TestMoveRoundTrip(t *testing.T) {
	beliefs := testutil.Grid(
		[]float64{0.1, 0.2, 0.05},
		[]float64{0.3, 0.25, 0.1},
	)
	for _, d := range [][2]int{{1, 0}, {0, -2}, {5, 7}, {-3, 4}, {math.MaxInt, -math.MaxInt}} {
		there, err := Move(d[0], d[1], beliefs, 0, nil)
		require.NoError(t, err)
		back, err := Move(-d[0], -d[1], there, 0, nil)
		require.NoError(t, err)
		assert.True(t, mat.Equal(beliefs, back), "displacement %v", d)
	}
}

func TestMoveIsPermutation(t *testing.T) {
	rows, cols := 4, 5
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(i + 1)
	}
	beliefs := mat.NewDense(rows, cols, data)

	extremes := []int{math.MaxInt, math.MaxInt - 1, math.MinInt, math.MinInt + 1}
	var dys, dxs []int
	for d := -5; d <= 5; d++ {
		dys = append(dys, d)
	}
	for d := -6; d <= 6; d++ {
		dxs = append(dxs, d)
	}
	dys = append(dys, extremes...)
	dxs = append(dxs, extremes...)

	for _, dy := range dys {
		for _, dx := range dxs {
			got, err := Move(dy, dx, beliefs, 0, smoothing.Identity{})
			require.NoError(t, err)
			seen := make(map[float64]bool)
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					v := got.At(i, j)
					require.False(t, seen[v], "value %v assigned twice for (%d,%d)", v, dy, dx)
					seen[v] = true
				}
			}
			require.Len(t, seen, rows*cols)
		}
	}
}

func TestMoveBlurPreservesMass(t *testing.T) {
	beliefs := testutil.Grid(
		[]float64{0, 0, 0},
		[]float64{0, 1, 0},
		[]float64{0, 0, 0},
	)
	got, err := Move(1, 1, beliefs, 0.12, nil)
	require.NoError(t, err)
	testutil.AssertSumsToOne(t, got, 1e-12)
	assert.InDelta(t, 0.88, got.At(2, 2), 1e-12)
	assert.InDelta(t, 0.02, got.At(1, 2), 1e-12)
	assert.InDelta(t, 0.01, got.At(0, 0), 1e-12)
}

type shrinkingBlur struct{}

func (shrinkingBlur) Blur(grid mat.Matrix, _ float64) (*mat.Dense, error) {
	return mat.NewDense(1, 1, []float64{mat.Sum(grid)}), nil
}

type failingBlur struct{}

func (failingBlur) Blur(mat.Matrix, float64) (*mat.Dense, error) {
	return nil, smoothing.ErrInvalidAmount
}

func TestMoveErrors(t *testing.T) {
	t.Parallel()

	beliefs := testutil.Grid([]float64{0.5, 0.5})

	tests := []struct {
		name    string
		beliefs mat.Matrix
		amount  float64
		blur    smoothing.Blurrer
		want    error
	}{
		{"negative amount", beliefs, -0.01, nil, ErrInvalidParameter},
		{"amount above one", beliefs, 1.01, nil, ErrInvalidParameter},
		{"NaN amount", beliefs, math.NaN(), nil, ErrInvalidParameter},
		{"empty grid", &mat.Dense{}, 0, nil, ErrDomain},
		{"blur changes shape", beliefs, 0.1, shrinkingBlur{}, ErrShapeMismatch},
		{"blur fails", beliefs, 0.1, failingBlur{}, smoothing.ErrInvalidAmount},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Move(1, 1, tt.beliefs, tt.amount, tt.blur)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSenseMoveLoop(t *testing.T) {
	// The robot starts on the only R cell, moves right twice and sees G, G.
	world := mustMap(t, "RGGGG")
	beliefs, err := InitializeBeliefs(world)
	require.NoError(t, err)

	beliefs, err = Sense("R", world, beliefs, 0.9, 0.1)
	require.NoError(t, err)
	for k := 0; k < 2; k++ {
		beliefs, err = Move(0, 1, beliefs, 0, nil)
		require.NoError(t, err)
		beliefs, err = Sense("G", world, beliefs, 0.9, 0.1)
		require.NoError(t, err)
	}
	testutil.AssertSumsToOne(t, beliefs, 1e-9)
	est := MostLikely(beliefs)
	assert.Equal(t, 0, est.Row)
	assert.Equal(t, 2, est.Col)
}

func TestFloorMod(t *testing.T) {
	cases := []struct{ a, n, want int }{
		{0, 3, 0}, {4, 3, 1}, {-1, 3, 2}, {-3, 3, 0}, {-7, 3, 2}, {-1, 1, 0},
		{math.MaxInt, 3, 1}, {math.MinInt, 3, 1}, {math.MaxInt, 4, 3}, {math.MinInt, 4, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, floorMod(c.a, c.n), "floorMod(%d, %d)", c.a, c.n)
	}
}
