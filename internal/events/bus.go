package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Sink persists events. The Postgres client satisfies it.
type Sink interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error
}

// Bus validates events, keeps the recent ones in a ring buffer, fans them
// out to subscribers and optionally writes them to a sink and a JSON log.
type Bus struct {
	buffer *RingBuffer

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}

	mu         sync.RWMutex
	sink       Sink
	sinkFailed bool
	out        io.Writer
	sessionID  string
}

// NewBus returns a bus that keeps the last size events.
func NewBus(size int) *Bus {
	return &Bus{
		buffer:      NewRingBuffer(size),
		subscribers: make(map[Subscriber]struct{}),
	}
}

// SetSink sets the sink used for event persistence.
func (b *Bus) SetSink(s Sink) {
	b.mu.Lock()
	b.sink = s
	b.sinkFailed = false
	b.mu.Unlock()
}

// SetOutput makes every event also be written to w as one JSON line.
func (b *Bus) SetOutput(w io.Writer) {
	b.mu.Lock()
	b.out = w
	b.mu.Unlock()
}

// SetSession tags persisted events with id.
func (b *Bus) SetSession(id string) {
	b.mu.Lock()
	b.sessionID = id
	b.mu.Unlock()
}

func (b *Bus) Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	b.buffer.Add(e)

	b.mu.RLock()
	sink, failed, sessionID := b.sink, b.sinkFailed, b.sessionID
	b.mu.RUnlock()

	if sink != nil {
		if err := sink.Append(ts, level, name, msg, fields, sessionID); err != nil && !failed {
			// Report the first failure only. The error event goes straight to
			// the buffer so a broken sink cannot recurse through Emit.
			b.mu.Lock()
			first := !b.sinkFailed
			b.sinkFailed = true
			b.mu.Unlock()
			if first {
				errEvent := Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "event sink append failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				}
				b.buffer.Add(errEvent)
				b.broadcast(errEvent)
			}
		}
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	b.mu.Lock()
	if b.out != nil {
		b.out.Write(append(raw, '\n'))
	}
	b.mu.Unlock()

	b.broadcast(e)
	return raw, nil
}

func (b *Bus) Snapshot() []Event {
	return b.buffer.Snapshot()
}

// TotalCount returns how many events have been emitted on this bus.
func (b *Bus) TotalCount() uint64 {
	return b.buffer.Total()
}

// Clear resets the event buffer.
func (b *Bus) Clear() {
	b.buffer.Clear()
}
