package mqtt

import (
	"encoding/json"
	"fmt"
)

// RegistrationPayload represents a v1 agent registration message.
type RegistrationPayload struct {
	Version int       `json:"version"`
	Agent   AgentInfo `json:"agent"`
}

// AgentInfo contains agent metadata.
type AgentInfo struct {
	ID           string `json:"id"`
	Intersection string `json:"intersection"`
	Policy       string `json:"policy,omitempty"`
	HeartbeatSec int    `json:"heartbeat_sec"`
}

// HeartbeatPayload is sent periodically by a registered agent.
type HeartbeatPayload struct {
	ID string `json:"id"`
}

// ParseRegistration parses a registration payload from JSON bytes.
func ParseRegistration(data []byte) (*RegistrationPayload, error) {
	var payload RegistrationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid registration JSON: %w", err)
	}

	if payload.Version != 1 {
		return nil, fmt.Errorf("unsupported registration version: %d", payload.Version)
	}

	if payload.Agent.ID == "" {
		return nil, fmt.Errorf("agent.id is required")
	}

	return &payload, nil
}

// ValidationResult contains validation outcome.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateRegistration checks a registration against the simulated
// intersections and the agents already holding them.
func ValidateRegistration(payload *RegistrationPayload, intersections []string, registry *AgentRegistry) *ValidationResult {
	result := &ValidationResult{Valid: true}
	a := payload.Agent

	if a.Intersection == "" {
		result.Errors = append(result.Errors, "agent.intersection is required")
		result.Valid = false
	} else if !containsString(intersections, a.Intersection) {
		result.Errors = append(result.Errors, fmt.Sprintf("unknown intersection: %s", a.Intersection))
		result.Valid = false
	}

	if a.HeartbeatSec < 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("heartbeat_sec must not be negative, got %d", a.HeartbeatSec))
		result.Valid = false
	} else if a.HeartbeatSec == 0 {
		result.Warnings = append(result.Warnings, "heartbeat_sec not set, using default")
	}

	if registry != nil && result.Valid {
		if holder := registry.ForIntersection(a.Intersection); holder != nil && holder.AgentID != a.ID {
			result.Warnings = append(result.Warnings, fmt.Sprintf("intersection %s taken over from agent %s", a.Intersection, holder.AgentID))
		}
	}

	return result
}

func containsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
