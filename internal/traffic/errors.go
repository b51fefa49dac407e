package traffic

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAction is returned when an action code is outside [0, NumActions)
	// and the environment rejects invalid actions.
	ErrInvalidAction = errors.New("invalid action")

	// ErrActionCount is returned when Step receives a different number of
	// actions than there are intersections.
	ErrActionCount = errors.New("action count does not match intersection count")

	// ErrEpisodeDone is returned by Step once the episode horizon is reached.
	// State is left untouched; call Reset to start a new episode.
	ErrEpisodeDone = errors.New("episode is done")

	// ErrInvariantViolation marks an internal consistency failure.
	// It indicates a bug and should be treated as fatal.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")
)

// InvariantError describes which invariant failed and where.
type InvariantError struct {
	Intersection string
	Direction    Direction
	Detail       string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: intersection %s, %s: %s", ErrInvariantViolation, e.Intersection, e.Direction, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}
