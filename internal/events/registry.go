package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// episode
	"episode.started":   {},
	"episode.step":      {},
	"episode.completed": {},

	// signal
	"signal.switched":        {},
	"signal.switch_deferred": {},

	// action
	"action.invalid": {},

	// agent
	"agent.registered":   {},
	"agent.connected":    {},
	"agent.disconnected": {},
	"agent.timeout":      {},

	// session
	"session.reset": {},
	"session.step":  {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
