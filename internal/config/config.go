package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/traffic"
	"gopkg.in/yaml.v3"
)

// SimConfig is the on-disk simulation configuration (sim.yaml).
type SimConfig struct {
	Version    int              `yaml:"version"`
	Simulation SimulationConfig `yaml:"simulation"`
	Rewards    RewardsConfig    `yaml:"rewards"`
	Agents     AgentsConfig     `yaml:"agents"`
	Network    NetworkConfig    `yaml:"network"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Storage    StorageConfig    `yaml:"storage"`
}

type SimulationConfig struct {
	MaxSteps               int                  `yaml:"max_steps"`
	VehicleCrossingTime    int                  `yaml:"vehicle_crossing_time"`
	PedestrianCrossingTime int                  `yaml:"pedestrian_crossing_time"`
	Seed                   uint64               `yaml:"seed"`
	InvalidActions         string               `yaml:"invalid_actions"`
	VehicleArrival         float64              `yaml:"vehicle_arrival"`
	PedestrianArrival      float64              `yaml:"pedestrian_arrival"`
	Intersections          []IntersectionConfig `yaml:"intersections"`
}

// IntersectionConfig overrides the default rates for one intersection.
// Rates are keyed by direction name (north, east, south, west); missing
// directions use the simulation-wide rate.
type IntersectionConfig struct {
	ID                string             `yaml:"id"`
	VehicleArrival    map[string]float64 `yaml:"vehicle_arrival"`
	PedestrianArrival map[string]float64 `yaml:"pedestrian_arrival"`
}

type RewardsConfig struct {
	VehicleCrossed    float64 `yaml:"vehicle_crossed"`
	PedestrianServed  float64 `yaml:"pedestrian_served"`
	VehicleBlocked    float64 `yaml:"vehicle_blocked"`
	PedestrianBlocked float64 `yaml:"pedestrian_blocked"`
	RightTurnConflict float64 `yaml:"right_turn_conflict"`
}

// AgentsConfig selects a policy per intersection. "remote" hands the
// intersection to an agent connected over MQTT.
type AgentsConfig struct {
	Default  string            `yaml:"default"`
	Policies map[string]string `yaml:"policies"`
	Seed     uint64            `yaml:"seed"`
}

type NetworkConfig struct {
	APIPort        int `yaml:"api_port"`
	StepIntervalMS int `yaml:"step_interval_ms"`
}

type MQTTConfig struct {
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id"`
	Username        string `yaml:"username"`
	TopicPrefix     string `yaml:"topic_prefix"`
	ActionTimeoutMS int    `yaml:"action_timeout_ms"`
	HeartbeatSec    int    `yaml:"heartbeat_sec"`
}

type StorageConfig struct {
	Postgres   bool   `yaml:"postgres"`
	MetricsCSV string `yaml:"metrics_csv"`
}

// Default returns the configuration used when no file is given.
func Default() *SimConfig {
	d := traffic.DefaultRewards()
	return &SimConfig{
		Version: 1,
		Simulation: SimulationConfig{
			MaxSteps:               traffic.DefaultMaxSteps,
			VehicleCrossingTime:    traffic.DefaultVehicleCrossingTime,
			PedestrianCrossingTime: traffic.DefaultPedestrianCrossingTime,
			Seed:                   traffic.DefaultSeed,
			InvalidActions:         string(traffic.RejectInvalid),
			VehicleArrival:         traffic.DefaultVehicleArrival,
			PedestrianArrival:      traffic.DefaultPedestrianArrival,
			Intersections:          []IntersectionConfig{{ID: "A"}, {ID: "B"}},
		},
		Rewards: RewardsConfig{
			VehicleCrossed:    d.VehicleReward,
			PedestrianServed:  d.PedReward,
			VehicleBlocked:    d.BlockedPenalty,
			PedestrianBlocked: d.CrossingPenalty,
			RightTurnConflict: d.TurnOverPenalty,
		},
		Agents: AgentsConfig{
			Default: "greedy",
			Seed:    1,
		},
		Network: NetworkConfig{
			APIPort:        8080,
			StepIntervalMS: 250,
		},
		MQTT: MQTTConfig{
			Broker:          "tcp://127.0.0.1:1883",
			ClientID:        "trafficsim",
			TopicPrefix:     "traffic",
			ActionTimeoutMS: 500,
			HeartbeatSec:    5,
		},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values.
func Load(path string) (*SimConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported sim.yaml version: %d", cfg.Version)
	}

	return cfg, nil
}

// APIPort returns the configured API port, defaulting to 8080 if not set.
func (c *SimConfig) APIPort() int {
	if c.Network.APIPort == 0 {
		return 8080
	}
	return c.Network.APIPort
}

// PolicyFor returns the policy name configured for an intersection.
func (c *SimConfig) PolicyFor(id string) string {
	if p, ok := c.Agents.Policies[id]; ok && p != "" {
		return p
	}
	if c.Agents.Default == "" {
		return "hold"
	}
	return c.Agents.Default
}

// IntersectionIDs returns the configured intersection labels in order.
func (c *SimConfig) IntersectionIDs() []string {
	ids := make([]string, len(c.Simulation.Intersections))
	for i, ic := range c.Simulation.Intersections {
		ids[i] = ic.ID
	}
	return ids
}

// ToTrafficConfig converts the file representation into a validated
// traffic.Config.
func (c *SimConfig) ToTrafficConfig() (traffic.Config, error) {
	s := c.Simulation
	out := traffic.Config{
		MaxSteps:               s.MaxSteps,
		VehicleCrossingTime:    s.VehicleCrossingTime,
		PedestrianCrossingTime: s.PedestrianCrossingTime,
		Seed:                   s.Seed,
		InvalidActions:         traffic.ActionPolicy(s.InvalidActions),
		Rewards: traffic.RewardCalculator{
			VehicleReward:   c.Rewards.VehicleCrossed,
			PedReward:       c.Rewards.PedestrianServed,
			BlockedPenalty:  c.Rewards.VehicleBlocked,
			CrossingPenalty: c.Rewards.PedestrianBlocked,
			TurnOverPenalty: c.Rewards.RightTurnConflict,
		},
	}

	for _, ic := range s.Intersections {
		vehicle, err := rates(ic.VehicleArrival, s.VehicleArrival)
		if err != nil {
			return traffic.Config{}, fmt.Errorf("intersection %s vehicle_arrival: %w", ic.ID, err)
		}
		ped, err := rates(ic.PedestrianArrival, s.PedestrianArrival)
		if err != nil {
			return traffic.Config{}, fmt.Errorf("intersection %s pedestrian_arrival: %w", ic.ID, err)
		}
		out.Intersections = append(out.Intersections, traffic.IntersectionConfig{
			ID:                ic.ID,
			VehicleArrival:    vehicle,
			PedestrianArrival: ped,
		})
	}

	if err := out.Validate(); err != nil {
		return traffic.Config{}, err
	}
	return out, nil
}

func rates(m map[string]float64, fallback float64) (traffic.Rates, error) {
	r := traffic.UniformRates(fallback)
	for name, p := range m {
		d, ok := traffic.ParseDirection(strings.ToLower(name))
		if !ok {
			return r, fmt.Errorf("%w: unknown direction %q", traffic.ErrInvalidConfig, name)
		}
		r[d] = p
	}
	return r, nil
}
