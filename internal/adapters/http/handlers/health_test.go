package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/longregen/alicia-edge/internal/application"
)

type staticStatus application.Status

func (s staticStatus) Status() application.Status { return application.Status(s) }

func runningStatus() application.Status {
	st := application.Status{Started: true, Active: true, Volume: 40}
	st.Playback.Started = true
	return st
}

func TestHealthHandler_Handle_Success(t *testing.T) {
	handler := NewHealthHandler("0.3.1")

	req := httptest.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()

	handler.Handle(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}
	if response.Version != "0.3.1" {
		t.Errorf("expected version '0.3.1', got '%s'", response.Version)
	}
}

func TestHealthHandler_HandleDetailed(t *testing.T) {
	offline := runningStatus()
	offline.NetworkDisconnected = true
	offline.GatewayDisconnected = true

	stopped := runningStatus()
	stopped.Started = false
	stopped.Playback.Started = false

	tests := []struct {
		name       string
		status     application.Status
		wantStatus string
		wantCode   int
	}{
		{name: "running", status: runningStatus(), wantStatus: "healthy", wantCode: http.StatusOK},
		{name: "offline", status: offline, wantStatus: "degraded", wantCode: http.StatusOK},
		{name: "stopped", status: stopped, wantStatus: "unhealthy", wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandlerWithDeps("dev", staticStatus(tt.status))
			rr := httptest.NewRecorder()
			handler.HandleDetailed(rr, httptest.NewRequest("GET", "/readyz", nil))

			if rr.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rr.Code)
			}
			var response DetailedHealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != tt.wantStatus {
				t.Errorf("expected overall status %q, got %q", tt.wantStatus, response.Status)
			}
			if len(response.Services) != 5 {
				t.Errorf("expected 5 services, got %d", len(response.Services))
			}
		})
	}
}

func TestHealthHandler_HandleDetailed_NoSource(t *testing.T) {
	handler := NewHealthHandler("dev")
	rr := httptest.NewRecorder()
	handler.HandleDetailed(rr, httptest.NewRequest("GET", "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestCalculateOverallStatus(t *testing.T) {
	problem := "down"
	tests := []struct {
		name     string
		services map[string]ServiceHealth
		want     string
	}{
		{name: "empty", services: map[string]ServiceHealth{}, want: "healthy"},
		{
			name: "gateway down",
			services: map[string]ServiceHealth{
				"assistant": {Status: "healthy"},
				"gateway":   {Status: "unhealthy", Error: &problem},
			},
			want: "degraded",
		},
		{
			name: "playback down",
			services: map[string]ServiceHealth{
				"gateway":  {Status: "unhealthy", Error: &problem},
				"playback": {Status: "unhealthy", Error: &problem},
			},
			want: "unhealthy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateOverallStatus(tt.services); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
