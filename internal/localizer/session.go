package localizer

import (
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/gridloc/internal/smoothing"
	"github.com/banshee-data/gridloc/internal/worldmap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SessionConfig configures a Session.
type SessionConfig struct {
	Sensor   SensorModel
	Blurring float64           // motion noise passed to Blurrer on every move
	Blurrer  smoothing.Blurrer // nil means smoothing.Default
}

// Estimate is the most probable cell of a belief grid.
type Estimate struct {
	Row         int     `json:"row"`
	Col         int     `json:"col"`
	Probability float64 `json:"probability"`
}

// Session runs the sense/move loop against one world map, keeping the
// current belief grid between calls. It is safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	world   WorldMap
	cfg     SessionConfig
	beliefs *mat.Dense
	steps   int
}

// NewSession validates cfg and starts from uniform beliefs.
func NewSession(world WorldMap, cfg SessionConfig) (*Session, error) {
	if err := cfg.Sensor.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(cfg.Blurring) || cfg.Blurring < 0 || cfg.Blurring > 1 {
		return nil, fmt.Errorf("%w: blur amount must be within [0, 1], got %v", ErrInvalidParameter, cfg.Blurring)
	}
	if cfg.Blurrer == nil {
		cfg.Blurrer = smoothing.Default
	}
	beliefs, err := InitializeBeliefs(world)
	if err != nil {
		return nil, err
	}
	return &Session{world: world, cfg: cfg, beliefs: beliefs}, nil
}

// Sense folds an observation into the beliefs.
func (s *Session) Sense(color worldmap.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Sense(color, s.world, s.beliefs, s.cfg.Sensor.Hit, s.cfg.Sensor.Miss)
	if err != nil {
		return err
	}
	return s.replace(next)
}

// Move applies a commanded displacement.
func (s *Session) Move(dy, dx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Move(dy, dx, s.beliefs, s.cfg.Blurring, s.cfg.Blurrer)
	if err != nil {
		return err
	}
	return s.replace(next)
}

// replace swaps in next if it keeps the session shape. Callers hold mu.
func (s *Session) replace(next *mat.Dense) error {
	r, c := s.beliefs.Dims()
	nr, nc := next.Dims()
	if r != nr || c != nc {
		return fmt.Errorf("%w: step produced %dx%d, session is %dx%d", ErrShapeMismatch, nr, nc, r, c)
	}
	s.beliefs = next
	s.steps++
	return nil
}

// Beliefs returns a copy of the current grid.
func (s *Session) Beliefs() *mat.Dense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mat.DenseCopyOf(s.beliefs)
}

// Steps returns how many updates have succeeded.
func (s *Session) Steps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps
}

// Config returns the session configuration.
func (s *Session) Config() SessionConfig {
	return s.cfg
}

// Estimate returns the most probable cell of the current grid.
func (s *Session) Estimate() Estimate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return MostLikely(s.beliefs)
}

// Entropy returns the Shannon entropy of the current grid in nats.
func (s *Session) Entropy() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Entropy(s.beliefs)
}

// MostLikely returns the cell with the highest probability. Ties resolve to
// the first cell in row-major order.
func MostLikely(beliefs mat.Matrix) Estimate {
	rows, cols := beliefs.Dims()
	best := Estimate{Probability: -1}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := beliefs.At(i, j); v > best.Probability {
				best = Estimate{Row: i, Col: j, Probability: v}
			}
		}
	}
	return best
}

// Entropy returns -sum(p log p) over the grid, skipping empty cells.
func Entropy(beliefs mat.Matrix) float64 {
	rows, cols := beliefs.Dims()
	p := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := beliefs.At(i, j); v > 0 {
				p = append(p, v)
			}
		}
	}
	return stat.Entropy(p)
}
