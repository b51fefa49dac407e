package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/agent"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/events"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/storage/postgres"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/traffic"
	"github.com/google/uuid"
)

// EpisodeResult summarises one finished episode.
type EpisodeResult struct {
	ID                string  `json:"id"`
	Episode           int     `json:"episode"`
	Steps             int     `json:"steps"`
	Reward            float64 `json:"reward"`
	VehiclesCrossed   []int   `json:"vehicles_crossed"`
	PedestriansServed int     `json:"pedestrians_served"`
	AvgPedWait        float64 `json:"avg_ped_wait"`
}

// TotalVehicles returns the vehicles crossed across all intersections.
func (r EpisodeResult) TotalVehicles() int {
	n := 0
	for _, v := range r.VehiclesCrossed {
		n += v
	}
	return n
}

// Row converts the result for storage.
func (r EpisodeResult) Row() postgres.EpisodeRow {
	return postgres.EpisodeRow{
		ID:                r.ID,
		Episode:           r.Episode,
		Steps:             r.Steps,
		Reward:            r.Reward,
		VehiclesCrossed:   r.VehiclesCrossed,
		PedestriansServed: r.PedestriansServed,
		AvgPedWait:        r.AvgPedWait,
	}
}

// Store persists finished episodes. The Postgres client satisfies it.
type Store interface {
	SaveEpisode(ctx context.Context, ep postgres.EpisodeRow) error
}

// Runner drives a session with one policy per intersection.
type Runner struct {
	session  *Session
	policies []agent.Policy
	bus      *events.Bus

	// Store, when set, receives every finished episode.
	Store Store
	// Interval paces steps; zero runs as fast as possible.
	Interval time.Duration
	// StepEvents emits an episode.step event after every step.
	StepEvents bool
	// OnStep is called with the state after every step.
	OnStep func(traffic.EnvironmentView, traffic.StepResult)
}

// New returns a runner. There must be exactly one policy per intersection.
func New(session *Session, policies []agent.Policy, bus *events.Bus) (*Runner, error) {
	if n := len(session.IntersectionIDs()); len(policies) != n {
		return nil, fmt.Errorf("%w: %d policies for %d intersections", traffic.ErrActionCount, len(policies), n)
	}
	if bus == nil {
		bus = events.NewBus(256)
	}
	return &Runner{session: session, policies: policies, bus: bus}, nil
}

// Session returns the session the runner drives.
func (r *Runner) Session() *Session {
	return r.session
}

// RunEpisode resets the environment and steps it until done. A cancelled
// context aborts between steps and returns the context error.
func (r *Runner) RunEpisode(ctx context.Context) (EpisodeResult, error) {
	obs := r.session.Reset()
	view := r.session.View()
	id := uuid.NewString()

	r.bus.Emit("info", "episode.started", "", map[string]interface{}{
		"episode_id": id,
		"episode":    view.Episode,
		"max_steps":  view.MaxSteps,
	})

	var ticker *time.Ticker
	if r.Interval > 0 {
		ticker = time.NewTicker(r.Interval)
		defer ticker.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			return EpisodeResult{}, err
		}

		actions, err := agent.SelectAll(ctx, r.policies, obs)
		if err != nil {
			return EpisodeResult{}, err
		}

		res, err := r.session.Step(actions)
		switch {
		case errors.Is(err, traffic.ErrEpisodeDone):
			// an HTTP client finished the episode first
			return r.finish(ctx, id)
		case isInvalidAction(err):
			r.bus.Emit("warn", "action.invalid", err.Error(), map[string]interface{}{
				"episode_id": id,
				"actions":    actionCodes(actions),
			})
			return EpisodeResult{}, err
		case err != nil:
			r.bus.Emit("error", "system.error", "step failed", map[string]interface{}{
				"episode_id": id,
				"error":      err.Error(),
			})
			return EpisodeResult{}, err
		}

		r.emitStep(id, res)
		if r.OnStep != nil {
			r.OnStep(r.session.View(), res)
		}
		obs = res.Observation

		if res.Done {
			return r.finish(ctx, id)
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return EpisodeResult{}, ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// Run plays n episodes. n <= 0 runs until ctx is cancelled. Results
// gathered before a cancellation are returned along with the error.
func (r *Runner) Run(ctx context.Context, n int) ([]EpisodeResult, error) {
	var results []EpisodeResult
	for i := 0; n <= 0 || i < n; i++ {
		res, err := r.RunEpisode(ctx)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) finish(ctx context.Context, id string) (EpisodeResult, error) {
	view := r.session.View()
	result := EpisodeResult{
		ID:                id,
		Episode:           view.Episode,
		Steps:             view.Step,
		Reward:            r.session.EpisodeReward(),
		VehiclesCrossed:   view.VehiclesCrossed,
		PedestriansServed: view.PedestriansServed,
		AvgPedWait:        view.MeanPedestrianWait,
	}

	r.bus.Emit("info", "episode.completed", "", map[string]interface{}{
		"episode_id":         id,
		"episode":            result.Episode,
		"steps":              result.Steps,
		"reward":             result.Reward,
		"vehicles_crossed":   result.VehiclesCrossed,
		"pedestrians_served": result.PedestriansServed,
		"avg_ped_wait":       result.AvgPedWait,
	})

	if r.Store != nil {
		if err := r.Store.SaveEpisode(ctx, result.Row()); err != nil {
			r.bus.Emit("error", "system.error", "failed to save episode", map[string]interface{}{
				"episode_id": id,
				"error":      err.Error(),
			})
		}
	}
	return result, nil
}

func (r *Runner) emitStep(id string, res traffic.StepResult) {
	for _, rep := range res.Info.Intersections {
		if rep.Switched {
			r.bus.Emit("info", "signal.switched", "", map[string]interface{}{
				"episode_id":   id,
				"step":         res.Info.Step,
				"intersection": rep.Intersection,
				"phase":        rep.Phase.String(),
			})
		}
		if rep.SwitchDeferred {
			r.bus.Emit("debug", "signal.switch_deferred", "crossing in progress", map[string]interface{}{
				"episode_id":   id,
				"step":         res.Info.Step,
				"intersection": rep.Intersection,
			})
		}
	}
	if r.StepEvents {
		r.bus.Emit("debug", "episode.step", "", map[string]interface{}{
			"episode_id": id,
			"step":       res.Info.Step,
			"reward":     res.Reward,
			"rewards":    res.Rewards,
		})
	}
}

func isInvalidAction(err error) bool {
	return errors.Is(err, traffic.ErrInvalidAction) || errors.Is(err, traffic.ErrActionCount)
}

func actionCodes(actions []traffic.Action) []int {
	out := make([]int, len(actions))
	for i, a := range actions {
		out[i] = int(a)
	}
	return out
}
