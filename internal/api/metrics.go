package api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/version"
)

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats := s.session.Stats()
	view := s.session.View()
	ready := s.readiness.Check()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	labels := fmt.Sprintf(`instance="%s",version="%s"`, hostname, version.Version)

	writeMetric("trafficsim_uptime_seconds", "gauge",
		"Number of seconds since the server started", time.Since(s.startTime).Seconds(), labels)
	writeMetric("trafficsim_episode", "gauge",
		"Current episode number", view.Episode, labels)
	writeMetric("trafficsim_episode_step", "gauge",
		"Steps taken in the current episode", view.Step, labels)
	writeMetric("trafficsim_steps_total", "counter",
		"Total number of environment steps", stats.Steps, labels)
	writeMetric("trafficsim_episodes_completed_total", "counter",
		"Total number of finished episodes", stats.Episodes, labels)
	writeMetric("trafficsim_invalid_actions_total", "counter",
		"Total number of rejected actions", stats.InvalidActions, labels)
	writeMetric("trafficsim_vehicles_crossed_total", "counter",
		"Total number of vehicles that completed a crossing", stats.VehiclesCrossed, labels)
	writeMetric("trafficsim_pedestrians_served_total", "counter",
		"Total number of pedestrians that completed a crossing", stats.PedestriansServed, labels)
	writeMetric("trafficsim_last_episode_reward", "gauge",
		"Total reward of the last finished episode", stats.LastReward, labels)
	writeMetric("trafficsim_events_total", "counter",
		"Total number of events emitted since startup", s.bus.TotalCount(), labels)
	writeMetric("trafficsim_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", boolGauge(ready.Checks["mqtt"].Status == "ok"), labels)
	writeMetric("trafficsim_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", boolGauge(ready.Checks["postgres"].Status == "ok"), labels)
	writeMetric("trafficsim_ws_clients", "gauge",
		"Number of active WebSocket client connections", s.bus.SubscriberCount(), labels)
}
