package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/agent"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/events"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/traffic"
)

// RemotePolicy asks the agent registered for an intersection to pick the
// action. While no agent is registered, or when the agent does not answer
// within the timeout, the fallback policy decides.
type RemotePolicy struct {
	intersection string
	transport    Transport
	registry     *AgentRegistry
	topics       Topics
	bus          *events.Bus
	timeout      time.Duration
	fallback     agent.Policy

	mu      sync.Mutex
	seq     uint64
	replies chan ActionMessage
}

func newRemotePolicy(intersection string, transport Transport, registry *AgentRegistry, topics Topics, bus *events.Bus, timeout time.Duration) *RemotePolicy {
	return &RemotePolicy{
		intersection: intersection,
		transport:    transport,
		registry:     registry,
		topics:       topics,
		bus:          bus,
		timeout:      timeout,
		fallback:     agent.Hold{},
		replies:      make(chan ActionMessage, 1),
	}
}

// SetFallback replaces the policy used when no agent answers.
func (p *RemotePolicy) SetFallback(fallback agent.Policy) {
	p.fallback = fallback
}

func (p *RemotePolicy) SelectAction(ctx context.Context, obs traffic.Observation) (traffic.Action, error) {
	holder := p.registry.ForIntersection(p.intersection)
	if holder == nil {
		return p.fallback.SelectAction(ctx, obs)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	seq := p.seq
	p.drain()

	payload, err := EncodeObservation(ObservationMessage{
		Intersection: p.intersection,
		Seq:          seq,
		Observation:  obs,
	})
	if err != nil {
		return traffic.ActionHold, err
	}
	if err := p.transport.Publish(p.topics.Observation(p.intersection), payload); err != nil {
		p.bus.Emit("error", "system.error", "failed to publish observation", map[string]interface{}{
			"intersection": p.intersection,
			"error":        err.Error(),
		})
		return p.fallback.SelectAction(ctx, obs)
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return traffic.ActionHold, ctx.Err()
		case <-timer.C:
			p.bus.Emit("warn", "agent.timeout", "no action received", map[string]interface{}{
				"agent_id":     holder.AgentID,
				"intersection": p.intersection,
				"seq":          seq,
				"timeout_ms":   p.timeout.Milliseconds(),
			})
			return p.fallback.SelectAction(ctx, obs)
		case msg := <-p.replies:
			if msg.Seq != seq {
				continue
			}
			a := traffic.Action(msg.Action)
			if !a.Valid() {
				p.bus.Emit("warn", "action.invalid", "remote agent sent an out-of-range action", map[string]interface{}{
					"agent_id":     msg.AgentID,
					"intersection": p.intersection,
					"action":       msg.Action,
				})
				return p.fallback.SelectAction(ctx, obs)
			}
			return a, nil
		}
	}
}

// deliver hands a reply to a waiting SelectAction. Without a waiter the
// reply is buffered and discarded by the next request.
func (p *RemotePolicy) deliver(msg ActionMessage) {
	select {
	case p.replies <- msg:
	default:
		// a reply is already buffered; keep the newest
		select {
		case <-p.replies:
		default:
		}
		select {
		case p.replies <- msg:
		default:
		}
	}
}

func (p *RemotePolicy) drain() {
	for {
		select {
		case <-p.replies:
		default:
			return
		}
	}
}
