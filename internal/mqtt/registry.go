package mqtt

import (
	"sort"
	"sync"
	"time"
)

// RegisteredAgent holds runtime information about a connected agent.
type RegisteredAgent struct {
	AgentID          string
	Intersection     string
	Policy           string
	ObservationTopic string
	ActionTopic      string
	HeartbeatSec     int
	RegisteredAt     time.Time
}

// AgentRegistry maps intersections to the agent controlling them. At most
// one agent holds an intersection; a new registration replaces the old one.
type AgentRegistry struct {
	mu     sync.RWMutex
	byID   map[string]*RegisteredAgent
	byNode map[string]string
}

// NewAgentRegistry creates a new empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{
		byID:   make(map[string]*RegisteredAgent),
		byNode: make(map[string]string),
	}
}

// Register adds or replaces an agent. It returns the ID of an agent that was
// displaced from the same intersection, or "".
func (r *AgentRegistry) Register(a *RegisteredAgent) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byID[a.AgentID]; ok && prev.Intersection != a.Intersection {
		delete(r.byNode, prev.Intersection)
	}

	displaced := ""
	if holder, ok := r.byNode[a.Intersection]; ok && holder != a.AgentID {
		delete(r.byID, holder)
		displaced = holder
	}

	cpy := *a
	r.byID[a.AgentID] = &cpy
	r.byNode[a.Intersection] = a.AgentID
	return displaced
}

// Unregister removes an agent.
func (r *AgentRegistry) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[agentID]; ok {
		delete(r.byNode, a.Intersection)
		delete(r.byID, agentID)
	}
}

// Get returns a copy of an agent by ID, or nil if not found.
func (r *AgentRegistry) Get(agentID string) *RegisteredAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.byID[agentID]; ok {
		cpy := *a
		return &cpy
	}
	return nil
}

// ForIntersection returns a copy of the agent holding an intersection, or nil.
func (r *AgentRegistry) ForIntersection(id string) *RegisteredAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if agentID, ok := r.byNode[id]; ok {
		cpy := *r.byID[agentID]
		return &cpy
	}
	return nil
}

// All returns copies of all registered agents ordered by intersection.
func (r *AgentRegistry) All() []*RegisteredAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*RegisteredAgent, 0, len(r.byID))
	for _, a := range r.byID {
		cpy := *a
		result = append(result, &cpy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Intersection < result[j].Intersection })
	return result
}

// Clear removes all agents from the registry.
func (r *AgentRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*RegisteredAgent)
	r.byNode = make(map[string]string)
}
