package mqtt

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/events"
)

// Gateway connects remote agents to the simulation. It handles agent
// registration and heartbeats and routes action replies to the matching
// RemotePolicy.
type Gateway struct {
	transport Transport
	topics    Topics
	monitor   *Monitor
	registry  *AgentRegistry
	bus       *events.Bus

	mu       sync.RWMutex
	policies map[string]*RemotePolicy
}

// NewGateway creates a gateway for the given intersections.
func NewGateway(transport Transport, topics Topics, intersections []string, bus *events.Bus) *Gateway {
	registry := NewAgentRegistry()
	return &Gateway{
		transport: transport,
		topics:    topics,
		registry:  registry,
		monitor:   NewMonitor(bus, registry, topics, intersections, 2.0),
		bus:       bus,
		policies:  make(map[string]*RemotePolicy),
	}
}

// Registry returns the agent registry.
func (g *Gateway) Registry() *AgentRegistry {
	return g.registry
}

// Monitor returns the health monitor.
func (g *Gateway) Monitor() *Monitor {
	return g.monitor
}

// Policy returns the remote policy for an intersection, creating it on
// first use.
func (g *Gateway) Policy(intersection string, timeout time.Duration) *RemotePolicy {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.policies[intersection]; ok {
		return p
	}
	p := newRemotePolicy(intersection, g.transport, g.registry, g.topics, g.bus, timeout)
	g.policies[intersection] = p
	return p
}

// Start subscribes to the registration, heartbeat and action topics.
func (g *Gateway) Start() error {
	subs := []struct {
		topic   string
		handler paho.MessageHandler
	}{
		{g.topics.Register(), g.handleRegistration},
		{g.topics.Heartbeat(), g.handleHeartbeat},
		{g.topics.Actions(), g.handleAction},
	}
	for _, s := range subs {
		if err := g.transport.Subscribe(s.topic, s.handler); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) handleRegistration(_ paho.Client, msg paho.Message) {
	payload, err := ParseRegistration(msg.Payload())
	if err != nil {
		g.bus.Emit("error", "system.error", "invalid agent registration", map[string]interface{}{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}
	g.monitor.HandleRegistration(payload)
}

func (g *Gateway) handleHeartbeat(_ paho.Client, msg paho.Message) {
	var hb HeartbeatPayload
	if err := json.Unmarshal(msg.Payload(), &hb); err != nil || hb.ID == "" {
		return
	}
	g.monitor.HandleHeartbeat(hb.ID)
}

func (g *Gateway) handleAction(_ paho.Client, msg paho.Message) {
	action, err := DecodeAction(msg.Payload())
	if err != nil {
		g.bus.Emit("error", "system.error", "invalid action message", map[string]interface{}{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}
	intersection := g.intersectionFromTopic(msg.Topic())
	if action.Intersection == "" {
		action.Intersection = intersection
	}
	if action.Intersection != intersection {
		return
	}

	holder := g.registry.ForIntersection(intersection)
	if holder == nil || holder.AgentID != action.AgentID {
		// only the registered agent may control the intersection
		return
	}
	g.monitor.HandleHeartbeat(action.AgentID)

	g.mu.RLock()
	p := g.policies[intersection]
	g.mu.RUnlock()
	if p != nil {
		p.deliver(action)
	}
}

func (g *Gateway) intersectionFromTopic(topic string) string {
	s := strings.TrimPrefix(topic, g.topics.Prefix+"/")
	return strings.TrimSuffix(s, "/action")
}
