package traffic

import (
	"fmt"

	"github.com/samber/lo"
)

// StepResult is returned by Environment.Step.
type StepResult struct {
	Observation Observation `json:"observation"`
	Reward      float64     `json:"reward"`
	Rewards     []float64   `json:"rewards"`
	Done        bool        `json:"done"`
	Info        StepInfo    `json:"info"`
}

// StepInfo carries diagnostic data for one step.
type StepInfo struct {
	Episode       int          `json:"episode"`
	Step          int          `json:"step"`
	Intersections []StepReport `json:"intersections"`
}

// Environment owns the intersections of one simulation and exposes the
// multi-agent reset/step contract. It is not safe for concurrent use.
type Environment struct {
	cfg           Config
	params        stepParams
	intersections []*Intersection
	elapsed       int
	episode       int
	done          bool
}

// New validates cfg and builds an environment in its initial state.
func New(cfg Config) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Intersections = append([]IntersectionConfig(nil), cfg.Intersections...)

	schedule := cfg.Schedule
	if schedule == nil {
		schedule = NewConstantSchedule(cfg.Intersections)
	}

	e := &Environment{
		cfg: cfg,
		params: stepParams{
			vehicleTime:    cfg.VehicleCrossingTime,
			pedestrianTime: cfg.PedestrianCrossingTime,
			rewards:        cfg.Rewards,
			schedule:       schedule,
		},
	}
	for i, ic := range cfg.Intersections {
		e.intersections = append(e.intersections, newIntersection(ic.ID, i, cfg.Seed))
	}
	return e, nil
}

// Reset starts a new episode and returns the initial observation.
// The random streams continue from where the previous episode left them.
func (e *Environment) Reset() Observation {
	for _, x := range e.intersections {
		x.reset()
	}
	e.elapsed = 0
	e.done = false
	e.episode++
	return e.Observation()
}

// ResetSeed reseeds every intersection's random stream, then resets.
func (e *Environment) ResetSeed(seed uint64) Observation {
	for _, x := range e.intersections {
		x.reseed(seed)
	}
	return e.Reset()
}

// Step applies one action per intersection and advances time by one step.
//
// Invalid action codes are rejected with ErrInvalidAction (state untouched)
// or clamped, depending on Config.InvalidActions. Calling Step after the
// episode is done returns ErrEpisodeDone and changes nothing.
func (e *Environment) Step(actions []Action) (StepResult, error) {
	if e.done {
		return StepResult{}, ErrEpisodeDone
	}
	if len(actions) != len(e.intersections) {
		return StepResult{}, fmt.Errorf("%w: got %d, want %d", ErrActionCount, len(actions), len(e.intersections))
	}

	effective := make([]Action, len(actions))
	for i, a := range actions {
		na, err := e.cfg.InvalidActions.normalize(a)
		if err != nil {
			return StepResult{}, fmt.Errorf("intersection %s: %w", e.intersections[i].id, err)
		}
		effective[i] = na
	}

	reports := make([]StepReport, len(e.intersections))
	for i, x := range e.intersections {
		reports[i] = x.step(e.elapsed, effective[i], &e.params)
	}

	e.elapsed++
	if e.elapsed >= e.cfg.MaxSteps {
		e.done = true
	}

	rewards := lo.Map(reports, func(r StepReport, _ int) float64 { return r.Reward })
	res := StepResult{
		Observation: e.Observation(),
		Reward:      lo.Sum(rewards),
		Rewards:     rewards,
		Done:        e.done,
		Info: StepInfo{
			Episode:       e.episode,
			Step:          e.elapsed,
			Intersections: reports,
		},
	}

	for _, x := range e.intersections {
		if err := x.verify(&e.params); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Observation returns the current flattened observation.
func (e *Environment) Observation() Observation {
	obs := make(Observation, ObservationSize*len(e.intersections))
	for i, x := range e.intersections {
		x.observe(obs[i*ObservationSize : (i+1)*ObservationSize])
	}
	return obs
}

// VehicleMetrics returns the vehicles crossed this episode, per intersection.
func (e *Environment) VehicleMetrics() []int {
	return lo.Map(e.intersections, func(x *Intersection, _ int) int {
		return x.metrics.VehiclesCrossed
	})
}

// PedestrianMetrics returns the pedestrians served this episode across all
// intersections and their mean wait in steps (0 when nobody was served).
func (e *Environment) PedestrianMetrics() (served int, meanWait float64) {
	wait := 0
	for _, x := range e.intersections {
		served += x.metrics.PedestriansServed
		wait += x.metrics.WaitTime
	}
	if served == 0 {
		return 0, 0
	}
	return served, float64(wait) / float64(served)
}

// View returns a deep copy of the environment state for inspection.
func (e *Environment) View() EnvironmentView {
	served, wait := e.PedestrianMetrics()
	return EnvironmentView{
		Episode:             e.episode,
		Step:                e.elapsed,
		MaxSteps:            e.cfg.MaxSteps,
		Done:                e.done,
		VehicleCrossingTime: e.cfg.VehicleCrossingTime,
		Intersections: lo.Map(e.intersections, func(x *Intersection, _ int) IntersectionView {
			return x.view()
		}),
		VehiclesCrossed:    e.VehicleMetrics(),
		PedestriansServed:  served,
		MeanPedestrianWait: wait,
	}
}

// Clone returns an independent copy, including random stream positions.
func (e *Environment) Clone() *Environment {
	c := *e
	c.intersections = lo.Map(e.intersections, func(x *Intersection, _ int) *Intersection {
		return x.clone()
	})
	return &c
}

// Done returns true once the episode horizon has been reached.
func (e *Environment) Done() bool {
	return e.done
}

// Elapsed returns the number of steps taken this episode.
func (e *Environment) Elapsed() int {
	return e.elapsed
}

// Episode returns the number of resets performed so far.
func (e *Environment) Episode() int {
	return e.episode
}

// MaxSteps returns the episode horizon.
func (e *Environment) MaxSteps() int {
	return e.cfg.MaxSteps
}

// NumIntersections returns how many intersections the environment owns.
func (e *Environment) NumIntersections() int {
	return len(e.intersections)
}

// IntersectionIDs returns the intersection labels in observation order.
func (e *Environment) IntersectionIDs() []string {
	return lo.Map(e.intersections, func(x *Intersection, _ int) string { return x.id })
}
