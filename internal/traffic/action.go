package traffic

import (
	"fmt"

	"github.com/samber/lo"
)

// Action is the discrete control input an intersection receives each step.
// The code values are fixed; trained policies depend on them.
type Action int

const (
	// ActionHold keeps the current phase.
	ActionHold Action = iota
	// ActionSwitch requests a phase flip. The request is deferred while any
	// crossing is in progress.
	ActionSwitch
	// ActionRightTurn holds the phase and lets each red approach release one
	// queued vehicle as a right turn on red, unless its exit crosswalk is busy.
	ActionRightTurn
	// ActionPedestrianPriority holds the phase and admits pedestrians before
	// vehicles this step.
	ActionPedestrianPriority
)

// NumActions is the size of the per-intersection action space.
const NumActions = 4

var actionNames = [NumActions]string{"hold", "switch", "right_turn", "pedestrian_priority"}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// Valid returns true if a is inside the action space.
func (a Action) Valid() bool {
	return a >= 0 && a < NumActions
}

// ParseAction maps an action name to its code.
func ParseAction(s string) (Action, bool) {
	for i, name := range actionNames {
		if name == s {
			return Action(i), true
		}
	}
	return 0, false
}

// ActionPolicy selects how out-of-range action codes are handled.
type ActionPolicy string

const (
	// RejectInvalid makes Step fail with ErrInvalidAction and leave state untouched.
	RejectInvalid ActionPolicy = "reject"
	// ClampInvalid clamps codes into [0, NumActions-1].
	ClampInvalid ActionPolicy = "clamp"
)

// normalize applies the policy to a raw action code.
func (p ActionPolicy) normalize(a Action) (Action, error) {
	if a.Valid() {
		return a, nil
	}
	if p == ClampInvalid {
		return lo.Clamp(a, ActionHold, NumActions-1), nil
	}
	return a, fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidAction, int(a), NumActions)
}
