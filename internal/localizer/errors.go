package localizer

import "errors"

var (
	// ErrShapeMismatch is returned when a belief grid and the grid it is
	// combined with differ in rows or columns.
	ErrShapeMismatch = errors.New("grid shape mismatch")
	// ErrDomain is returned for inputs that leave the update undefined: a
	// zero-area grid, or an observation with zero total evidence.
	ErrDomain = errors.New("degenerate input")
	// ErrInvalidParameter is returned for non-positive sensor likelihoods
	// or a blur amount outside [0, 1].
	ErrInvalidParameter = errors.New("invalid parameter")
)
