package agent

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/traffic"
)

// Policy picks an action for one intersection from its slice of the
// observation.
type Policy interface {
	SelectAction(ctx context.Context, obs traffic.Observation) (traffic.Action, error)
}

// Names lists the built-in policies accepted by New.
var Names = []string{"hold", "fixed", "greedy", "random"}

// DefaultCyclePeriod is the green length used by the fixed-cycle policy.
const DefaultCyclePeriod = 10

// New returns a built-in policy by name. seed only affects "random".
func New(name string, seed uint64) (Policy, error) {
	switch name {
	case "hold":
		return Hold{}, nil
	case "fixed":
		return FixedCycle{Period: DefaultCyclePeriod}, nil
	case "greedy":
		return Greedy{MinGreen: 2}, nil
	case "random":
		return NewRandom(seed), nil
	default:
		return nil, fmt.Errorf("unknown policy: %s", name)
	}
}

// Hold never changes the signal.
type Hold struct{}

func (Hold) SelectAction(ctx context.Context, _ traffic.Observation) (traffic.Action, error) {
	return traffic.ActionHold, ctx.Err()
}

// FixedCycle switches every Period steps regardless of demand.
type FixedCycle struct {
	Period int
}

func (f FixedCycle) SelectAction(ctx context.Context, obs traffic.Observation) (traffic.Action, error) {
	if err := ctx.Err(); err != nil {
		return traffic.ActionHold, err
	}
	if obs.PhaseTimer() >= f.Period-1 {
		return traffic.ActionSwitch, nil
	}
	return traffic.ActionHold, nil
}

// Greedy compares the demand on the red approaches with the demand on the
// green ones and switches once red outweighs green. Waiting pedestrians count
// as one unit of demand each.
type Greedy struct {
	// MinGreen is the shortest phase the policy will cut.
	MinGreen int
}

func (g Greedy) SelectAction(ctx context.Context, obs traffic.Observation) (traffic.Action, error) {
	if err := ctx.Err(); err != nil {
		return traffic.ActionHold, err
	}
	phase := obs.Phase()

	var green, red, redQueued, greenPeds int
	for _, d := range traffic.Directions {
		demand := obs.Queue(d)
		if obs.PedestrianPending(d) {
			demand++
		}
		if phase.Grants(d) {
			green += demand
			if obs.PedestrianPending(d) {
				greenPeds++
			}
		} else {
			red += demand
			redQueued += obs.Queue(d)
		}
	}

	switch {
	case red > green && obs.PhaseTimer() >= g.MinGreen:
		return traffic.ActionSwitch, nil
	case greenPeds > 0:
		return traffic.ActionPedestrianPriority, nil
	case redQueued > 0:
		return traffic.ActionRightTurn, nil
	default:
		return traffic.ActionHold, nil
	}
}

// Random picks uniformly from the action space.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Random policy with its own seeded stream.
func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))}
}

func (r *Random) SelectAction(ctx context.Context, _ traffic.Observation) (traffic.Action, error) {
	if err := ctx.Err(); err != nil {
		return traffic.ActionHold, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return traffic.Action(r.rng.IntN(traffic.NumActions)), nil
}

// SelectAll splits obs across policies and collects one action per
// intersection.
func SelectAll(ctx context.Context, policies []Policy, obs traffic.Observation) ([]traffic.Action, error) {
	actions := make([]traffic.Action, len(policies))
	for i, p := range policies {
		part, err := traffic.SplitObservation(obs, i, len(policies))
		if err != nil {
			return nil, err
		}
		a, err := p.SelectAction(ctx, part)
		if err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
		actions[i] = a
	}
	return actions, nil
}
