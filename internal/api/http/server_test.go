package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/portside-dev/portside/internal/api"
	"github.com/portside-dev/portside/internal/metrics"
)

func TestNewServerRequiresController(t *testing.T) {
	_, err := NewServer(Config{})
	if err == nil {
		t.Fatalf("expected error when controller is missing")
	}
}

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":           defaultAddr,
		":80":        "127.0.0.1:80",
		"0.0.0.0:80": "0.0.0.0:80",
		"[::]:80":    "[::]:80",
		"host:9000":  "host:9000",
		"[::1]:443":  "[::1]:443",
	}

	for input, expected := range tests {
		input, expected := input, expected
		t.Run(fmt.Sprintf("%s->%s", input, expected), func(t *testing.T) {
			t.Parallel()
			if got := normalizeAddr(input); got != expected {
				t.Fatalf("normalizeAddr(%q)=%q, want %q", input, got, expected)
			}
		})
	}
}

func TestHandleServers(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return &api.StatusReport{
				GeneratedAt: time.Unix(123, 0),
				Servers: map[string]api.ServerReport{
					"web": {Name: "web", Up: true, URL: "http://localhost:3000"},
				},
			}, nil
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/servers", nil)
	rec := httptest.NewRecorder()

	server.handleServers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}

	var body api.StatusReport
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response: %v", err)
	}
	if !body.Servers["web"].Up {
		t.Fatalf("expected web to be reported up, got %+v", body.Servers["web"])
	}
}

func TestHandleServersError(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return nil, errors.New("boom")
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/servers", nil)
	rec := httptest.NewRecorder()

	server.handleServers(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "internal_error" {
		t.Fatalf("expected internal_error code, got %q", body.Code)
	}
}

func TestHandleServersMethodNotAllowed(t *testing.T) {
	ctrl := &mockController{}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/servers", nil)
	rec := httptest.NewRecorder()
	server.handleServers(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
		t.Fatalf("expected Allow header %q, got %q", http.MethodGet, allow)
	}
}

func TestHandleServerAction(t *testing.T) {
	tests := []struct {
		action string
		fn     func(ctrl *mockController, capture *string)
	}{
		{"start", func(ctrl *mockController, capture *string) {
			ctrl.startFn = func(_ stdcontext.Context, name string) (*api.ActionResult, error) {
				*capture = name
				return &api.ActionResult{Server: name, Action: "start"}, nil
			}
		}},
		{"stop", func(ctrl *mockController, capture *string) {
			ctrl.stopFn = func(_ stdcontext.Context, name string) (*api.ActionResult, error) {
				*capture = name
				return &api.ActionResult{Server: name, Action: "stop", Killed: true}, nil
			}
		}},
		{"restart", func(ctrl *mockController, capture *string) {
			ctrl.restartFn = func(_ stdcontext.Context, name string) (*api.ActionResult, error) {
				*capture = name
				return &api.ActionResult{Server: name, Action: "restart"}, nil
			}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.action, func(t *testing.T) {
			ctrl := &mockController{}
			var called string
			tc.fn(ctrl, &called)
			server := newTestServer(t, ctrl)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/servers/web/"+tc.action, nil)
			rec := httptest.NewRecorder()
			server.handleServerAction(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if called != "web" {
				t.Fatalf("expected controller to receive server %q, got %q", "web", called)
			}
			var body map[string]api.ActionResult
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			result, ok := body["result"]
			if !ok {
				t.Fatalf("expected result field in response")
			}
			if result.Action != tc.action {
				t.Fatalf("expected action %q, got %q", tc.action, result.Action)
			}
		})
	}
}

func TestHandleServerActionUnknownAction(t *testing.T) {
	ctrl := &mockController{}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/servers/web/bounce", nil)
	rec := httptest.NewRecorder()
	server.handleServerAction(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "unknown_action" {
		t.Fatalf("expected unknown_action code, got %q", body.Code)
	}
}

func TestHandleServerActionInvalidPath(t *testing.T) {
	ctrl := &mockController{}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/servers/web", nil)
	rec := httptest.NewRecorder()
	server.handleServerAction(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "unknown_server" {
		t.Fatalf("expected unknown_server code, got %q", body.Code)
	}
	details, ok := body.Details.(map[string]any)
	if !ok {
		t.Fatalf("expected map details, got %T", body.Details)
	}
	if _, ok := details["timestamp"]; !ok {
		t.Fatalf("expected timestamp key in details")
	}
}

func TestHandleServerActionConflict(t *testing.T) {
	ctrl := &mockController{
		stopFn: func(stdcontext.Context, string) (*api.ActionResult, error) {
			return nil, api.ErrNotRunning
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/servers/web/stop", nil)
	rec := httptest.NewRecorder()
	server.handleServerAction(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "not_running" {
		t.Fatalf("expected not_running code, got %q", body.Code)
	}
}

func TestHandleScan(t *testing.T) {
	ctrl := &mockController{
		scanFn: func(_ stdcontext.Context, root string) (*api.ScanResult, error) {
			if root != "/work/app" {
				t.Fatalf("unexpected root %q", root)
			}
			return &api.ScanResult{
				Root: root,
				Suggestions: []api.Suggestion{
					{Name: "web", URL: "http://localhost:3000", Command: "npm run dev"},
				},
			}, nil
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(`{"root":"/work/app"}`))
	rec := httptest.NewRecorder()
	server.handleScan(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body api.ScanResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(body.Suggestions) != 1 || body.Suggestions[0].Command != "npm run dev" {
		t.Fatalf("unexpected suggestions %+v", body.Suggestions)
	}
}

func TestHandleScanEmptyBodyDefaultsRoot(t *testing.T) {
	ctrl := &mockController{
		scanFn: func(_ stdcontext.Context, root string) (*api.ScanResult, error) {
			if root != "." {
				t.Fatalf("expected default root, got %q", root)
			}
			return &api.ScanResult{Root: root}, nil
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", nil)
	rec := httptest.NewRecorder()
	server.handleScan(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ctrl := &mockController{}
	server := newTestServer(t, ctrl)

	name := "http_metrics"
	metrics.SetServerUp(name, true)
	metrics.IncrementKill(name, true)
	metrics.EmitBuildInfo()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics endpoint, got %d", rec.Code)
	}
	body := rec.Body.String()
	expected := fmt.Sprintf("portside_server_up{server=\"%s\"} 1", name)
	if !strings.Contains(body, expected) {
		t.Fatalf("expected body to contain %q, got:\n%s", expected, body)
	}
	killA := fmt.Sprintf("portside_kills_total{outcome=\"killed\",server=\"%s\"} 1", name)
	killB := fmt.Sprintf("portside_kills_total{server=\"%s\",outcome=\"killed\"} 1", name)
	if !strings.Contains(body, killA) && !strings.Contains(body, killB) {
		t.Fatalf("expected metrics output to include kill counter for %q, got:\n%s", name, body)
	}
	if !strings.Contains(body, "portside_build_info{") {
		t.Fatalf("expected metrics output to include build info, got:\n%s", body)
	}
}

type mockController struct {
	statusFn  func(stdcontext.Context) (*api.StatusReport, error)
	startFn   func(stdcontext.Context, string) (*api.ActionResult, error)
	stopFn    func(stdcontext.Context, string) (*api.ActionResult, error)
	restartFn func(stdcontext.Context, string) (*api.ActionResult, error)
	scanFn    func(stdcontext.Context, string) (*api.ScanResult, error)
}

func (m *mockController) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return nil, nil
}

func (m *mockController) StartServer(ctx stdcontext.Context, name string) (*api.ActionResult, error) {
	if m.startFn != nil {
		return m.startFn(ctx, name)
	}
	return nil, nil
}

func (m *mockController) StopServer(ctx stdcontext.Context, name string) (*api.ActionResult, error) {
	if m.stopFn != nil {
		return m.stopFn(ctx, name)
	}
	return nil, nil
}

func (m *mockController) RestartServer(ctx stdcontext.Context, name string) (*api.ActionResult, error) {
	if m.restartFn != nil {
		return m.restartFn(ctx, name)
	}
	return nil, nil
}

func (m *mockController) Scan(ctx stdcontext.Context, root string) (*api.ScanResult, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, root)
	}
	return nil, nil
}

func newTestServer(t *testing.T, ctrl api.Controller) *Server {
	t.Helper()
	server, err := NewServer(Config{Controller: ctrl})
	if err != nil {
		t.Fatalf("failed creating server: %v", err)
	}
	return server
}
