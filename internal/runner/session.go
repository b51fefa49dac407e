package runner

import (
	"sync"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/traffic"
)

// Stats are cumulative counters across every episode a session has run.
type Stats struct {
	Steps             uint64  `json:"steps_total"`
	Episodes          uint64  `json:"episodes_completed_total"`
	InvalidActions    uint64  `json:"invalid_actions_total"`
	VehiclesCrossed   uint64  `json:"vehicles_crossed_total"`
	PedestriansServed uint64  `json:"pedestrians_served_total"`
	LastReward        float64 `json:"last_episode_reward"`
}

// Session serialises access to one environment so that a background runner
// and HTTP control requests can share it.
type Session struct {
	mu     sync.Mutex
	env    *traffic.Environment
	reward float64
	stats  Stats
}

// NewSession wraps env.
func NewSession(env *traffic.Environment) *Session {
	return &Session{env: env}
}

// Reset starts a new episode and returns its initial observation.
func (s *Session) Reset() traffic.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reward = 0
	return s.env.Reset()
}

// Step applies actions. A step on a finished episode returns
// traffic.ErrEpisodeDone.
func (s *Session) Step(actions []traffic.Action) (traffic.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.env.Step(actions)
	if err != nil {
		if isInvalidAction(err) {
			s.stats.InvalidActions++
		}
		return res, err
	}

	s.stats.Steps++
	s.reward += res.Reward
	for _, rep := range res.Info.Intersections {
		s.stats.VehiclesCrossed += uint64(rep.VehiclesCrossed)
		s.stats.PedestriansServed += uint64(rep.PedestriansServed)
	}
	if res.Done {
		s.stats.Episodes++
		s.stats.LastReward = s.reward
	}
	return res, nil
}

// Observation returns the current observation.
func (s *Session) Observation() traffic.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.Observation()
}

// View returns a copy of the current state.
func (s *Session) View() traffic.EnvironmentView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.View()
}

// EpisodeReward returns the reward accumulated in the current episode.
func (s *Session) EpisodeReward() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reward
}

// Stats returns a copy of the cumulative counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// IntersectionIDs returns the environment's intersection labels.
func (s *Session) IntersectionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.IntersectionIDs()
}
