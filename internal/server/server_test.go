package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"facebridge-go/internal/config"
)

func TestHandleConfig(t *testing.T) {
	srv := &Server{
		cfg: config.AppConfig{
			OSCIP:    "10.0.0.5",
			OSCPort:  57122,
			Endpoint: "tcp://sensor:31300",
			Port:     8890,
		},
	}

	req := httptest.NewRequest("GET", "/config", nil)
	rec := httptest.NewRecorder()
	srv.handleConfig(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if payload["osc_ip"].(string) != "10.0.0.5" {
		t.Fatalf("unexpected osc_ip: %v", payload["osc_ip"])
	}
	if payload["osc_port"].(float64) != 57122 {
		t.Fatalf("unexpected osc_port: %v", payload["osc_port"])
	}
	if payload["feed_endpoint"].(string) != "tcp://sensor:31300" {
		t.Fatalf("unexpected feed_endpoint: %v", payload["feed_endpoint"])
	}
}

func TestHandleStatus(t *testing.T) {
	srv := &Server{
		clients: nil,
		statusFn: func() map[string]any {
			return map[string]any{
				"tracking": "tracking id=6, model=default (146 vertices)",
				"metrics":  map[string]any{"messages_sent_total": 42},
			}
		},
	}

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["tracking"].(string) == "" {
		t.Fatal("missing tracking status")
	}
	metrics := payload["metrics"].(map[string]any)
	if metrics["ws_clients"].(float64) != 0 {
		t.Fatalf("unexpected ws_clients: %v", metrics["ws_clients"])
	}
	if metrics["messages_sent_total"].(float64) != 42 {
		t.Fatalf("unexpected messages_sent_total: %v", metrics["messages_sent_total"])
	}
}

func TestHandleHealth(t *testing.T) {
	srv := &Server{}
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, req)
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}
