package handlers

import (
	"net/http"

	"github.com/longregen/alicia-edge/internal/application"
)

// StatusSource reports the device status.
type StatusSource interface {
	Status() application.Status
}

type HealthHandler struct {
	version string
	source  StatusSource
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

func NewHealthHandlerWithDeps(version string, source StatusSource) *HealthHandler {
	return &HealthHandler{version: version, source: source}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type DetailedHealthResponse struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version"`
	Services map[string]ServiceHealth `json:"services"`
}

type ServiceHealth struct {
	Status string  `json:"status"`
	Error  *string `json:"error,omitempty"`
}

// Handle reports that the process is serving requests.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{Status: "ok", Version: h.version}, http.StatusOK)
}

// HandleDetailed reports each runtime component. A stopped runtime is
// unhealthy; a running one without a usable gateway session is degraded.
func (h *HealthHandler) HandleDetailed(w http.ResponseWriter, r *http.Request) {
	response := DetailedHealthResponse{
		Version:  h.version,
		Services: make(map[string]ServiceHealth),
	}

	if h.source != nil {
		st := h.source.Status()
		response.Services["assistant"] = check(st.Started, "assistant stopped")
		response.Services["playback"] = check(st.Playback.Started, "playback stopped")
		response.Services["network"] = check(!st.NetworkDisconnected, "network disconnected")
		response.Services["gateway"] = check(!st.GatewayDisconnected, "gateway disconnected")
		response.Services["account"] = check(!st.Unauthorized, "account unauthorized")
	}

	response.Status = calculateOverallStatus(response.Services)

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	respondJSON(w, response, statusCode)
}

func check(ok bool, problem string) ServiceHealth {
	if ok {
		return ServiceHealth{Status: "healthy"}
	}
	return ServiceHealth{Status: "unhealthy", Error: &problem}
}

// calculateOverallStatus is unhealthy when the runtime itself is down and
// degraded when only connectivity is missing.
func calculateOverallStatus(services map[string]ServiceHealth) string {
	status := "healthy"
	for name, svc := range services {
		if svc.Status == "healthy" {
			continue
		}
		switch name {
		case "assistant", "playback":
			return "unhealthy"
		default:
			status = "degraded"
		}
	}
	return status
}
