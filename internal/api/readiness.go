package api

import (
	"net/http"
	"strings"
	"sync"
)

// Readiness tracks the status of the server's dependencies.
type Readiness struct {
	mu                sync.RWMutex
	simulationReady   bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}

// SetSimulationReady marks whether the session has been reset and can step.
func (r *Readiness) SetSimulationReady(ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simulationReady = ready
}

// SetMQTTState records the broker connection. An optional dependency that
// is down does not make the server unready.
func (r *Readiness) SetMQTTState(connected, optional bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mqttConnected = connected
	r.mqttOptional = optional
}

// SetPostgresState records the database connection.
func (r *Readiness) SetPostgresState(connected, optional bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.postgresConnected = connected
	r.postgresOptional = optional
}

// CheckStatus is the result of one dependency check.
type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

// ReadinessResponse is the body of /ready.
type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckStatus `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func dependencyStatus(connected, optional bool) CheckStatus {
	switch {
	case connected:
		return CheckStatus{Status: "ok", Optional: optional}
	case optional:
		return CheckStatus{Status: "unavailable", Optional: true}
	default:
		return CheckStatus{Status: "not_ready"}
	}
}

// Check evaluates every dependency.
func (r *Readiness) Check() ReadinessResponse {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resp := ReadinessResponse{Ready: true, Checks: map[string]CheckStatus{}}
	var reasons []string

	if r.simulationReady {
		resp.Checks["simulation"] = CheckStatus{Status: "ok"}
	} else {
		resp.Checks["simulation"] = CheckStatus{Status: "not_ready"}
		reasons = append(reasons, "simulation not started")
	}

	resp.Checks["mqtt"] = dependencyStatus(r.mqttConnected, r.mqttOptional)
	if resp.Checks["mqtt"].Status == "not_ready" {
		reasons = append(reasons, "mqtt not connected")
	}

	resp.Checks["postgres"] = dependencyStatus(r.postgresConnected, r.postgresOptional)
	if resp.Checks["postgres"].Status == "not_ready" {
		reasons = append(reasons, "postgres not connected")
	}

	if len(reasons) > 0 {
		resp.Ready = false
		resp.NotReadyMsg = strings.Join(reasons, "; ")
	}
	return resp
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	resp := s.readiness.Check()
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
