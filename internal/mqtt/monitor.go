package mqtt

import (
	"sync"
	"time"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/events"
)

// DefaultHeartbeatSec applies to agents that register without one.
const DefaultHeartbeatSec = 5

// AgentState tracks a registered agent's health.
type AgentState struct {
	Agent     RegisteredAgent
	LastSeen  time.Time
	Connected bool
}

// Monitor tracks agent registration and health. Agents that miss their
// heartbeat are removed from the registry so their intersection falls back
// to the local policy.
type Monitor struct {
	mu            sync.RWMutex
	agents        map[string]*AgentState
	registry      *AgentRegistry
	topics        Topics
	intersections []string
	bus           *events.Bus
	tolerance     float64 // multiplier for heartbeat interval (e.g., 2.0 = 2x heartbeat)
	now           func() time.Time
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewMonitor creates a new agent monitor.
// tolerance is the multiplier for heartbeat interval before considering disconnected.
func NewMonitor(bus *events.Bus, registry *AgentRegistry, topics Topics, intersections []string, tolerance float64) *Monitor {
	if tolerance <= 1.0 {
		tolerance = 2.0 // default: miss 1 heartbeat
	}
	return &Monitor{
		agents:        make(map[string]*AgentState),
		registry:      registry,
		topics:        topics,
		intersections: append([]string(nil), intersections...),
		bus:           bus,
		tolerance:     tolerance,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

// HandleRegistration processes a registration payload.
// Returns validation result and emits appropriate events.
func (m *Monitor) HandleRegistration(payload *RegistrationPayload) *ValidationResult {
	result := ValidateRegistration(payload, m.intersections, m.registry)
	info := payload.Agent

	if !result.Valid {
		m.bus.Emit("error", "system.error", "agent registration rejected", map[string]interface{}{
			"agent_id": info.ID,
			"errors":   result.Errors,
		})
		return result
	}

	heartbeat := info.HeartbeatSec
	if heartbeat == 0 {
		heartbeat = DefaultHeartbeatSec
	}
	agent := RegisteredAgent{
		AgentID:          info.ID,
		Intersection:     info.Intersection,
		Policy:           info.Policy,
		ObservationTopic: m.topics.Observation(info.Intersection),
		ActionTopic:      m.topics.Action(info.Intersection),
		HeartbeatSec:     heartbeat,
		RegisteredAt:     m.now(),
	}

	m.mu.Lock()
	existing, known := m.agents[info.ID]
	isReconnect := known && !existing.Connected
	displaced := m.registry.Register(&agent)
	if displaced != "" {
		delete(m.agents, displaced)
	}
	m.agents[info.ID] = &AgentState{Agent: agent, LastSeen: agent.RegisteredAt, Connected: true}
	m.mu.Unlock()

	m.bus.Emit("info", "agent.registered", "", map[string]interface{}{
		"agent_id":     info.ID,
		"intersection": info.Intersection,
		"policy":       info.Policy,
		"displaced":    displaced,
	})
	m.bus.Emit("info", "agent.connected", "", map[string]interface{}{
		"agent_id":     info.ID,
		"intersection": info.Intersection,
		"reconnect":    isReconnect,
	})

	return result
}

// HandleHeartbeat refreshes an agent. An agent that had timed out is put
// back in the registry. It returns false for unknown agents.
func (m *Monitor) HandleHeartbeat(agentID string) bool {
	m.mu.Lock()
	state, ok := m.agents[agentID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	state.LastSeen = m.now()
	reconnected := !state.Connected
	var displaced string
	if reconnected {
		state.Connected = true
		displaced = m.registry.Register(&state.Agent)
		if displaced != "" {
			delete(m.agents, displaced)
		}
	}
	agent := state.Agent
	m.mu.Unlock()

	if reconnected {
		m.bus.Emit("info", "agent.connected", "", map[string]interface{}{
			"agent_id":     agent.AgentID,
			"intersection": agent.Intersection,
			"reconnect":    true,
			"displaced":    displaced,
		})
	}
	return true
}

// Start begins the background health check loop.
func (m *Monitor) Start(checkInterval time.Duration) {
	if checkInterval <= 0 {
		checkInterval = DefaultHeartbeatSec * time.Second
	}
	m.wg.Add(1)
	go m.healthCheckLoop(checkInterval)
}

// Stop stops the background health check loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) healthCheckLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

func (m *Monitor) checkHealth() {
	now := m.now()

	var lost []AgentState
	m.mu.Lock()
	for _, state := range m.agents {
		if !state.Connected {
			continue
		}
		timeout := m.timeout(state.Agent.HeartbeatSec)
		if now.Sub(state.LastSeen) > timeout {
			state.Connected = false
			m.registry.Unregister(state.Agent.AgentID)
			lost = append(lost, *state)
		}
	}
	m.mu.Unlock()

	for _, state := range lost {
		m.bus.Emit("warn", "agent.disconnected", "heartbeat timeout", map[string]interface{}{
			"agent_id":     state.Agent.AgentID,
			"intersection": state.Agent.Intersection,
			"last_seen":    state.LastSeen.Format(time.RFC3339),
			"timeout_sec":  m.timeout(state.Agent.HeartbeatSec).Seconds(),
		})
	}
}

func (m *Monitor) timeout(heartbeatSec int) time.Duration {
	return time.Duration(float64(heartbeatSec) * m.tolerance * float64(time.Second))
}

// State returns a copy of an agent's state (for testing/inspection).
func (m *Monitor) State(agentID string) *AgentState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.agents[agentID]; ok {
		cpy := *state
		return &cpy
	}
	return nil
}

// ConnectedAgents returns the IDs of currently connected agents.
func (m *Monitor) ConnectedAgents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, state := range m.agents {
		if state.Connected {
			ids = append(ids, id)
		}
	}
	return ids
}
