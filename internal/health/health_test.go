package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

func get(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	resp := rec.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestServer_Endpoints(t *testing.T) {
	tests := []struct {
		name       string
		chainUp    bool
		serviceUp  bool
		wantHealth int
		wantReady  int
		wantStatus string
	}{
		{"all healthy", true, true, http.StatusOK, http.StatusOK, "ok"},
		{"chain down", false, true, http.StatusServiceUnavailable, http.StatusServiceUnavailable, "degraded"},
		{"service down", true, false, http.StatusServiceUnavailable, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(0, "v1.2.3", &mockLogger{})
			s.RegisterCheck("chain", func(ctx context.Context) (bool, string) {
				return tt.chainUp, "block 100"
			})
			s.RegisterCheck("protocol_service", func(ctx context.Context) (bool, string) {
				return tt.serviceUp, ""
			})
			h := s.Handler()

			resp, body := get(t, h, "/health")
			if resp.StatusCode != tt.wantHealth {
				t.Errorf("health: expected %d, got %d", tt.wantHealth, resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected json content type, got %q", ct)
			}
			var status Status
			if err := json.Unmarshal([]byte(body), &status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if status.Status != tt.wantStatus || status.Version != "v1.2.3" || len(status.Checks) != 2 {
				t.Errorf("unexpected status %+v", status)
			}
			if status.Checks["chain"].Message != "block 100" {
				t.Errorf("expected check message, got %+v", status.Checks["chain"])
			}

			if resp, _ := get(t, h, "/ready"); resp.StatusCode != tt.wantReady {
				t.Errorf("ready: expected %d, got %d", tt.wantReady, resp.StatusCode)
			}
			if resp, body := get(t, h, "/live"); resp.StatusCode != http.StatusOK || body != "alive" {
				t.Errorf("live: got %d %q", resp.StatusCode, body)
			}
		})
	}
}

func TestServer_ExtraHandler(t *testing.T) {
	s := NewServer(0, "dev", &mockLogger{})
	s.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("metrics"))
	}))

	if _, body := get(t, s.Handler(), "/metrics"); body != "metrics" {
		t.Errorf("expected mounted handler, got %q", body)
	}
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(0, "dev", &mockLogger{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("stop: %v", err)
	}
}
