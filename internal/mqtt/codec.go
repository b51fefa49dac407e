package mqtt

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ObservationMessage is published to a remote agent each step.
type ObservationMessage struct {
	Intersection string    `msgpack:"intersection"`
	Seq          uint64    `msgpack:"seq"`
	Observation  []float64 `msgpack:"obs"`
}

// ActionMessage is a remote agent's reply. Seq must echo the observation.
type ActionMessage struct {
	AgentID      string `msgpack:"agent_id"`
	Intersection string `msgpack:"intersection"`
	Seq          uint64 `msgpack:"seq"`
	Action       int    `msgpack:"action"`
}

func EncodeObservation(m ObservationMessage) ([]byte, error) {
	b, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode observation: %w", err)
	}
	return b, nil
}

func DecodeObservation(data []byte) (ObservationMessage, error) {
	var m ObservationMessage
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("invalid observation message: %w", err)
	}
	return m, nil
}

func EncodeAction(m ActionMessage) ([]byte, error) {
	b, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action: %w", err)
	}
	return b, nil
}

func DecodeAction(data []byte) (ActionMessage, error) {
	var m ActionMessage
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("invalid action message: %w", err)
	}
	return m, nil
}

// Topics builds the topic names under a prefix.
type Topics struct {
	Prefix string
}

func (t Topics) Register() string  { return t.Prefix + "/agents/register" }
func (t Topics) Heartbeat() string { return t.Prefix + "/agents/heartbeat" }

// Actions matches the action topic of every intersection.
func (t Topics) Actions() string { return t.Prefix + "/+/action" }

func (t Topics) Observation(intersection string) string {
	return t.Prefix + "/" + intersection + "/observation"
}

func (t Topics) Action(intersection string) string {
	return t.Prefix + "/" + intersection + "/action"
}
