package api

import (
	"net/http"
)

// handleSystemStatus reports registry size and the health of optional
// infrastructure connections.
func (s *Server) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"version":        s.version,
		"devices":        s.registry.Count(),
		"config_entries": s.entries.Count(),
		"ws_clients":     s.hub.ClientCount(),
	}

	mqttStatus := "disabled"
	if s.mqtt != nil {
		mqttStatus = "disconnected"
		if s.mqtt.IsConnected() {
			mqttStatus = "connected"
		}
	}
	status["mqtt"] = mqttStatus

	telemetryStatus := "disabled"
	if s.telemetry != nil {
		telemetryStatus = "disconnected"
		if s.telemetry.IsConnected() {
			telemetryStatus = "connected"
		}
	}
	status["telemetry"] = telemetryStatus

	writeJSON(w, http.StatusOK, status)
}
