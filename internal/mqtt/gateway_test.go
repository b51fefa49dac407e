package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/events"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/traffic"
)

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

// fakeTransport records subscriptions and publishes and routes injected
// messages to the matching handler.
type fakeTransport struct {
	mu        sync.Mutex
	handlers  map[string]paho.MessageHandler
	published map[string][][]byte
	onPublish func(topic string, payload []byte)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers:  make(map[string]paho.MessageHandler),
		published: make(map[string][][]byte),
	}
}

func (f *fakeTransport) Subscribe(topic string, handler paho.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	f.published[topic] = append(f.published[topic], payload)
	hook := f.onPublish
	f.mu.Unlock()
	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (f *fakeTransport) inject(topic string, payload []byte) {
	f.mu.Lock()
	var handler paho.MessageHandler
	for filter, h := range f.handlers {
		if topicMatches(filter, topic) {
			handler = h
		}
	}
	f.mu.Unlock()
	if handler != nil {
		handler(nil, &mockMessage{topic: topic, payload: payload})
	}
}

func (f *fakeTransport) publishCount(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[topic])
}

func topicMatches(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	if len(fp) != len(tp) {
		return false
	}
	for i := range fp {
		if fp[i] != "+" && fp[i] != tp[i] {
			return false
		}
	}
	return true
}

func countEvents(bus *events.Bus, name string) int {
	n := 0
	for _, e := range bus.Snapshot() {
		if e.Name == name {
			n++
		}
	}
	return n
}

func newTestGateway(t *testing.T) (*Gateway, *fakeTransport, *events.Bus) {
	t.Helper()
	transport := newFakeTransport()
	bus := events.NewBus(256)
	g := NewGateway(transport, Topics{Prefix: "traffic"}, []string{"A", "B"}, bus)
	if err := g.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return g, transport, bus
}

func register(t *testing.T, transport *fakeTransport, id, intersection string) {
	t.Helper()
	b, _ := json.Marshal(RegistrationPayload{Version: 1, Agent: AgentInfo{ID: id, Intersection: intersection, HeartbeatSec: 5}})
	transport.inject("traffic/agents/register", b)
}

func testObservation() traffic.Observation {
	obs := make(traffic.Observation, traffic.ObservationSize)
	obs[0] = 3
	obs[4] = 1
	return obs
}

func TestGateway_StartSubscribes(t *testing.T) {
	_, transport, _ := newTestGateway(t)

	for _, topic := range []string{"traffic/agents/register", "traffic/agents/heartbeat", "traffic/+/action"} {
		if _, ok := transport.handlers[topic]; !ok {
			t.Errorf("expected subscription to %s", topic)
		}
	}
}

func TestGateway_Registration(t *testing.T) {
	g, transport, bus := newTestGateway(t)
	register(t, transport, "dqn-1", "A")

	a := g.Registry().ForIntersection("A")
	if a == nil || a.AgentID != "dqn-1" {
		t.Fatalf("expected dqn-1 to hold A, got %+v", a)
	}
	if a.ObservationTopic != "traffic/A/observation" || a.ActionTopic != "traffic/A/action" {
		t.Errorf("unexpected topics %+v", a)
	}
	if countEvents(bus, "agent.registered") != 1 || countEvents(bus, "agent.connected") != 1 {
		t.Error("expected registered and connected events")
	}

	register(t, transport, "dqn-2", "Z")
	if g.Registry().Get("dqn-2") != nil {
		t.Error("registration for an unknown intersection must be rejected")
	}
	if countEvents(bus, "system.error") != 1 {
		t.Error("expected rejection to be reported")
	}

	transport.inject("traffic/agents/register", []byte("{not json"))
	if countEvents(bus, "system.error") != 2 {
		t.Error("expected malformed registration to be reported")
	}
}

func TestRemotePolicy_NoAgentFallsBack(t *testing.T) {
	g, transport, _ := newTestGateway(t)
	p := g.Policy("A", time.Second)

	a, err := p.SelectAction(context.Background(), testObservation())
	if err != nil || a != traffic.ActionHold {
		t.Errorf("expected hold fallback, got %s (%v)", a, err)
	}
	if transport.publishCount("traffic/A/observation") != 0 {
		t.Error("nothing should be published without an agent")
	}
}

func TestRemotePolicy_RoundTrip(t *testing.T) {
	g, transport, _ := newTestGateway(t)
	register(t, transport, "dqn-1", "A")
	p := g.Policy("A", time.Second)

	var got ObservationMessage
	transport.onPublish = func(topic string, payload []byte) {
		msg, err := DecodeObservation(payload)
		if err != nil {
			t.Errorf("decode failed: %v", err)
			return
		}
		got = msg
		// a stale reply first, then the real one
		stale, _ := EncodeAction(ActionMessage{AgentID: "dqn-1", Seq: msg.Seq - 1, Action: 3})
		transport.inject("traffic/A/action", stale)
		reply, _ := EncodeAction(ActionMessage{AgentID: "dqn-1", Intersection: "A", Seq: msg.Seq, Action: int(traffic.ActionSwitch)})
		transport.inject("traffic/A/action", reply)
	}

	a, err := p.SelectAction(context.Background(), testObservation())
	if err != nil {
		t.Fatalf("SelectAction failed: %v", err)
	}
	if a != traffic.ActionSwitch {
		t.Errorf("expected switch, got %s", a)
	}
	if got.Intersection != "A" || got.Seq != 1 || len(got.Observation) != traffic.ObservationSize || got.Observation[0] != 3 {
		t.Errorf("unexpected observation message %+v", got)
	}
}

func TestRemotePolicy_Timeout(t *testing.T) {
	g, transport, bus := newTestGateway(t)
	register(t, transport, "dqn-1", "A")
	p := g.Policy("A", 20*time.Millisecond)
	p.SetFallback(fixedPolicy(traffic.ActionRightTurn))

	a, err := p.SelectAction(context.Background(), testObservation())
	if err != nil {
		t.Fatalf("SelectAction failed: %v", err)
	}
	if a != traffic.ActionRightTurn {
		t.Errorf("expected fallback action, got %s", a)
	}
	if countEvents(bus, "agent.timeout") != 1 {
		t.Error("expected agent.timeout event")
	}
}

func TestRemotePolicy_IgnoresOtherAgents(t *testing.T) {
	g, transport, _ := newTestGateway(t)
	register(t, transport, "dqn-1", "A")
	p := g.Policy("A", 30*time.Millisecond)

	transport.onPublish = func(topic string, payload []byte) {
		msg, _ := DecodeObservation(payload)
		reply, _ := EncodeAction(ActionMessage{AgentID: "intruder", Seq: msg.Seq, Action: int(traffic.ActionSwitch)})
		transport.inject("traffic/A/action", reply)
	}

	a, _ := p.SelectAction(context.Background(), testObservation())
	if a != traffic.ActionHold {
		t.Errorf("expected hold after ignoring foreign reply, got %s", a)
	}
}

func TestRemotePolicy_InvalidActionFallsBack(t *testing.T) {
	g, transport, bus := newTestGateway(t)
	register(t, transport, "dqn-1", "B")
	p := g.Policy("B", time.Second)

	transport.onPublish = func(topic string, payload []byte) {
		msg, _ := DecodeObservation(payload)
		reply, _ := EncodeAction(ActionMessage{AgentID: "dqn-1", Seq: msg.Seq, Action: 42})
		transport.inject("traffic/B/action", reply)
	}

	a, err := p.SelectAction(context.Background(), testObservation())
	if err != nil || a != traffic.ActionHold {
		t.Errorf("expected hold fallback, got %s (%v)", a, err)
	}
	if countEvents(bus, "action.invalid") != 1 {
		t.Error("expected action.invalid event")
	}
}

func TestRemotePolicy_ContextCancelled(t *testing.T) {
	g, transport, _ := newTestGateway(t)
	register(t, transport, "dqn-1", "A")
	p := g.Policy("A", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	transport.onPublish = func(string, []byte) { cancel() }

	if _, err := p.SelectAction(ctx, testObservation()); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCodec_ActionRoundTrip(t *testing.T) {
	in := ActionMessage{AgentID: "x", Intersection: "A", Seq: 9, Action: 2}
	b, err := EncodeAction(in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	out, err := DecodeAction(b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}

	if _, err := DecodeAction([]byte{0xc1}); err == nil {
		t.Error("expected error for garbage payload")
	}
}

type fixedPolicy traffic.Action

func (f fixedPolicy) SelectAction(context.Context, traffic.Observation) (traffic.Action, error) {
	return traffic.Action(f), nil
}
