package traffic

import (
	"fmt"
)

// Defaults for a standard two-intersection episode.
const (
	DefaultMaxSteps               = 200
	DefaultVehicleCrossingTime    = 2
	DefaultPedestrianCrossingTime = 3
	DefaultVehicleArrival         = 0.3
	DefaultPedestrianArrival      = 0.1
	DefaultSeed                   = 42
)

// Rates holds one probability per approach, indexed by Direction.
type Rates [NumDirections]float64

// UniformRates returns Rates with p on every approach.
func UniformRates(p float64) Rates {
	return Rates{p, p, p, p}
}

// IntersectionConfig describes one intersection.
type IntersectionConfig struct {
	ID                string
	VehicleArrival    Rates
	PedestrianArrival Rates
}

// Config parameterises an Environment.
type Config struct {
	Intersections          []IntersectionConfig
	MaxSteps               int
	VehicleCrossingTime    int
	PedestrianCrossingTime int
	Rewards                RewardCalculator
	Seed                   uint64
	InvalidActions         ActionPolicy

	// Schedule overrides the per-intersection rates when set.
	Schedule ArrivalSchedule
}

// DefaultConfig returns intersections A and B with uniform default rates.
func DefaultConfig() Config {
	return Config{
		Intersections: []IntersectionConfig{
			{ID: "A", VehicleArrival: UniformRates(DefaultVehicleArrival), PedestrianArrival: UniformRates(DefaultPedestrianArrival)},
			{ID: "B", VehicleArrival: UniformRates(DefaultVehicleArrival), PedestrianArrival: UniformRates(DefaultPedestrianArrival)},
		},
		MaxSteps:               DefaultMaxSteps,
		VehicleCrossingTime:    DefaultVehicleCrossingTime,
		PedestrianCrossingTime: DefaultPedestrianCrossingTime,
		Rewards:                DefaultRewards(),
		Seed:                   DefaultSeed,
		InvalidActions:         RejectInvalid,
	}
}

// Validate checks the configuration for values the simulation cannot run with.
func (c *Config) Validate() error {
	if len(c.Intersections) == 0 {
		return fmt.Errorf("%w: at least one intersection required", ErrInvalidConfig)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: max_steps must be positive, got %d", ErrInvalidConfig, c.MaxSteps)
	}
	if c.VehicleCrossingTime <= 0 {
		return fmt.Errorf("%w: vehicle_crossing_time must be positive, got %d", ErrInvalidConfig, c.VehicleCrossingTime)
	}
	if c.PedestrianCrossingTime <= 0 {
		return fmt.Errorf("%w: pedestrian_crossing_time must be positive, got %d", ErrInvalidConfig, c.PedestrianCrossingTime)
	}
	switch c.InvalidActions {
	case RejectInvalid, ClampInvalid:
	case "":
		c.InvalidActions = RejectInvalid
	default:
		return fmt.Errorf("%w: unknown invalid_action policy %q", ErrInvalidConfig, c.InvalidActions)
	}

	seen := make(map[string]bool, len(c.Intersections))
	for i, ic := range c.Intersections {
		if ic.ID == "" {
			return fmt.Errorf("%w: intersection %d has no id", ErrInvalidConfig, i)
		}
		if seen[ic.ID] {
			return fmt.Errorf("%w: duplicate intersection id %s", ErrInvalidConfig, ic.ID)
		}
		seen[ic.ID] = true
		for _, d := range Directions {
			if err := checkProbability(ic.ID, d, "vehicle", ic.VehicleArrival[d]); err != nil {
				return err
			}
			if err := checkProbability(ic.ID, d, "pedestrian", ic.PedestrianArrival[d]); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkProbability(id string, d Direction, kind string, p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("%w: intersection %s %s %s arrival %v outside [0,1]", ErrInvalidConfig, id, d, kind, p)
	}
	return nil
}

// ArrivalSchedule supplies per-step arrival probabilities.
type ArrivalSchedule interface {
	VehicleProbability(step, intersection int, d Direction) float64
	PedestrianProbability(step, intersection int, d Direction) float64
}

// ConstantSchedule returns the configured rates regardless of step.
type ConstantSchedule struct {
	Vehicle    []Rates
	Pedestrian []Rates
}

// NewConstantSchedule builds a schedule from the intersections' rates.
func NewConstantSchedule(intersections []IntersectionConfig) *ConstantSchedule {
	s := &ConstantSchedule{
		Vehicle:    make([]Rates, len(intersections)),
		Pedestrian: make([]Rates, len(intersections)),
	}
	for i, ic := range intersections {
		s.Vehicle[i] = ic.VehicleArrival
		s.Pedestrian[i] = ic.PedestrianArrival
	}
	return s
}

func (s *ConstantSchedule) VehicleProbability(_ int, intersection int, d Direction) float64 {
	return s.Vehicle[intersection][d]
}

func (s *ConstantSchedule) PedestrianProbability(_ int, intersection int, d Direction) float64 {
	return s.Pedestrian[intersection][d]
}

// ScheduleFuncs adapts plain functions to ArrivalSchedule. A nil function
// yields probability 0.
type ScheduleFuncs struct {
	Vehicle    func(step, intersection int, d Direction) float64
	Pedestrian func(step, intersection int, d Direction) float64
}

func (f ScheduleFuncs) VehicleProbability(step, intersection int, d Direction) float64 {
	if f.Vehicle == nil {
		return 0
	}
	return f.Vehicle(step, intersection, d)
}

func (f ScheduleFuncs) PedestrianProbability(step, intersection int, d Direction) float64 {
	if f.Pedestrian == nil {
		return 0
	}
	return f.Pedestrian(step, intersection, d)
}
