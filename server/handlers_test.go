package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	afterhoursagent "github.com/wireheat/afterhours/agent/agents/afterhours"
	eventsx "github.com/wireheat/afterhours/agent/events"
	intakex "github.com/wireheat/afterhours/agent/intake"
	statex "github.com/wireheat/afterhours/agent/state"
	toolx "github.com/wireheat/afterhours/agent/tool"
	workflowx "github.com/wireheat/afterhours/agent/workflow"
	signalwirex "github.com/wireheat/afterhours/pkg/signalwire"
)

func newTestServer(t *testing.T) (*Server, *intakex.MemoryRepository) {
	t.Helper()

	registry, err := toolx.NewAfterhoursRegistry()
	if err != nil {
		t.Fatalf("NewAfterhoursRegistry() error = %v", err)
	}
	repo := intakex.NewMemoryRepository()
	hub := eventsx.NewHub()

	agent, err := afterhoursagent.New(statex.NewMemoryStore(), workflowx.Afterhours(), registry, repo, hub)
	if err != nil {
		t.Fatalf("agent New() error = %v", err)
	}

	cfg := Config{CompanyName: "Wire Heating and Air", PhoneNumber: "+15550001111"}
	return New(cfg, agent, repo, hub, nil), repo
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func seedRequest(t *testing.T, repo *intakex.MemoryRepository, id string, emergency bool) {
	t.Helper()
	err := repo.Create(context.Background(), &intakex.Request{
		ID:               id,
		CustomerName:     "John Smith",
		ServiceAddress:   "123 Main St",
		Ownership:        intakex.OwnershipOwn,
		CallbackPrimary:  "+15551234567",
		IssueType:        intakex.IssueACRepair,
		IsEmergency:      emergency,
		IssueDescription: "AC not cooling",
	})
	if err != nil {
		t.Fatalf("seed Create(%s) error = %v", id, err)
	}
}

// unavailableRepo fails every operation the way an unreachable backend does
// after retry exhaustion.
type unavailableRepo struct{}

func (unavailableRepo) Create(ctx context.Context, req *intakex.Request) error {
	return fmt.Errorf("%w: connection refused", intakex.ErrStorageUnavailable)
}

func (unavailableRepo) Get(ctx context.Context, id string) (*intakex.Request, error) {
	return nil, fmt.Errorf("%w: connection refused", intakex.ErrStorageUnavailable)
}

func (unavailableRepo) List(ctx context.Context) ([]*intakex.Request, error) {
	return nil, fmt.Errorf("%w: connection refused", intakex.ErrStorageUnavailable)
}

func (unavailableRepo) UpdateStatus(ctx context.Context, id string, next intakex.Status) (*intakex.Request, error) {
	return nil, fmt.Errorf("%w: connection refused", intakex.ErrStorageUnavailable)
}

func (unavailableRepo) Stats(ctx context.Context) (intakex.Stats, error) {
	return intakex.Stats{}, fmt.Errorf("%w: connection refused", intakex.ErrStorageUnavailable)
}

func newUnavailableServer(t *testing.T) *Server {
	t.Helper()

	registry, err := toolx.NewAfterhoursRegistry()
	if err != nil {
		t.Fatalf("NewAfterhoursRegistry() error = %v", err)
	}
	hub := eventsx.NewHub()
	repo := unavailableRepo{}

	agent, err := afterhoursagent.New(statex.NewMemoryStore(), workflowx.Afterhours(), registry, repo, hub)
	if err != nil {
		t.Fatalf("agent New() error = %v", err)
	}
	return New(Config{}, agent, repo, hub, nil)
}

func TestStorageUnavailableMapsTo503(t *testing.T) {
	t.Parallel()

	srv := newUnavailableServer(t)

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/requests", nil},
		{http.MethodGet, "/api/requests/100001", nil},
		{http.MethodGet, "/api/stats", nil},
		{http.MethodPatch, "/api/requests/100001/status", map[string]string{"status": "dispatched"}},
	}
	for _, tc := range cases {
		w := doJSON(t, srv, tc.method, tc.path, tc.body)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected 503, got %d body=%s", tc.method, tc.path, w.Code, w.Body.String())
		}
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "healthy" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadyBeforeAndAfterRegistration(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/ready", nil)
	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "initializing" {
		t.Fatalf("unexpected status before registration: %v", body)
	}

	srv.SetHandlerInfo(&signalwirex.HandlerInfo{
		ID:        "h1",
		AddressID: "a1",
		Address:   "/public/afterhours",
	})

	w = doJSON(t, srv, http.MethodGet, "/ready", nil)
	decode(t, w, &body)
	if body["status"] != "ready" || body["address"] != "/public/afterhours" {
		t.Fatalf("unexpected status after registration: %v", body)
	}
}

func TestGetConfig(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/api/config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	var body map[string]string
	decode(t, w, &body)
	if body["company_name"] != "Wire Heating and Air" || body["phone_number"] != "+15550001111" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestGetTokenWithoutTelephony(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/api/token", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", w.Code)
	}
}

func TestListRequestsNewestFirst(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t)
	for i, id := range []string{"100001", "100002", "100003"} {
		seedRequest(t, repo, id, i == 0)
	}

	w := doJSON(t, srv, http.MethodGet, "/api/requests", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	var body struct {
		Requests       []intakex.Request `json:"requests"`
		TotalCount     int               `json:"total_count"`
		EmergencyCount int               `json:"emergency_count"`
	}
	decode(t, w, &body)

	if body.TotalCount != 3 || body.EmergencyCount != 1 {
		t.Fatalf("unexpected counts: %+v", body)
	}
	want := []string{"100003", "100002", "100001"}
	for i, id := range want {
		if body.Requests[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, body.Requests[i].ID, id)
		}
	}
}

func TestGetRequestNotFound(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t)
	seedRequest(t, repo, "100001", false)

	w := doJSON(t, srv, http.MethodGet, "/api/requests/100001", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	var req intakex.Request
	decode(t, w, &req)
	if req.ID != "100001" || req.Status != intakex.StatusPending {
		t.Fatalf("unexpected record: %+v", req)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/requests/999999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unexpected status for missing id: %d", w.Code)
	}
}

func TestUpdateRequestStatus(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t)
	seedRequest(t, repo, "100001", false)

	w := doJSON(t, srv, http.MethodPatch, "/api/requests/100001/status", map[string]string{"status": "dispatched"})
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", w.Code, w.Body.String())
	}
	var req intakex.Request
	decode(t, w, &req)
	if req.Status != intakex.StatusDispatched {
		t.Fatalf("status not updated: %s", req.Status)
	}

	// Repeating the same transition conflicts.
	w = doJSON(t, srv, http.MethodPatch, "/api/requests/100001/status", map[string]string{"status": "dispatched"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on repeat, got %d", w.Code)
	}

	// Unknown status value is rejected before hitting the repository.
	w = doJSON(t, srv, http.MethodPatch, "/api/requests/100001/status", map[string]string{"status": "archived"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown status, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPatch, "/api/requests/999999/status", map[string]string{"status": "dispatched"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing id, got %d", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t)
	for i := 0; i < 4; i++ {
		seedRequest(t, repo, fmt.Sprintf("20000%d", i), i%2 == 0)
	}

	w := doJSON(t, srv, http.MethodGet, "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	var stats intakex.Stats
	decode(t, w, &stats)
	if stats.TotalCount != 4 || stats.EmergencyCount != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHandleToolFlow(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/afterhours/tool", map[string]any{
		"tool": "start_service_request",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", w.Code, w.Body.String())
	}
	var turn struct {
		SessionID string `json:"session_id"`
		Reply     string `json:"reply"`
		Context   string `json:"context"`
		Step      string `json:"step"`
		RequestID string `json:"request_id"`
	}
	decode(t, w, &turn)
	if turn.SessionID == "" || turn.Reply == "" {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	if turn.Context != workflowx.ContextServiceRequest || turn.Step != workflowx.StepGetIssueType {
		t.Fatalf("unexpected position: %s/%s", turn.Context, turn.Step)
	}
	sid := turn.SessionID

	turns := []map[string]any{
		{"tool": "set_issue_type", "args": map[string]any{"issue_type": "ac_repair", "is_emergency": true}},
		{"tool": "set_customer_name", "args": map[string]any{"name": "John Smith"}},
		{"tool": "set_service_address", "args": map[string]any{"address": "123 Main St"}},
		{"tool": "set_unit_info", "args": map[string]any{"unit_info": "Trane rooftop"}},
		{"tool": "set_ownership", "args": map[string]any{"ownership": "own"}},
		{"tool": "set_callback_numbers", "args": map[string]any{"primary": "+15551234567"}},
		{"tool": "set_issue_description", "args": map[string]any{"description": "AC not cooling"}},
		{"tool": "confirm_request"},
	}
	for _, body := range turns {
		body["session_id"] = sid
		w = doJSON(t, srv, http.MethodPost, "/afterhours/tool", body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d body=%s", body["tool"], w.Code, w.Body.String())
		}
	}
	decode(t, w, &turn)
	if turn.RequestID == "" {
		t.Fatal("expected a request id after confirm")
	}

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != turn.RequestID {
		t.Fatalf("unexpected repository contents: %+v", list)
	}
}

func TestHandleToolErrorMapping(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	// Unauthorized tool for the entry step.
	w := doJSON(t, srv, http.MethodPost, "/afterhours/tool", map[string]any{"tool": "confirm_request"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unauthorized tool, got %d body=%s", w.Code, w.Body.String())
	}

	// Missing tool name fails binding.
	w = doJSON(t, srv, http.MethodPost, "/afterhours/tool", map[string]any{"args": map[string]any{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing tool, got %d", w.Code)
	}

	// Bad enum value is an argument validation failure.
	start := doJSON(t, srv, http.MethodPost, "/afterhours/tool", map[string]any{"tool": "start_service_request"})
	var turn struct {
		SessionID string `json:"session_id"`
	}
	decode(t, start, &turn)

	w = doJSON(t, srv, http.MethodPost, "/afterhours/tool", map[string]any{
		"session_id": turn.SessionID,
		"tool":       "set_issue_type",
		"args":       map[string]any{"issue_type": "plumbing", "is_emergency": true},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad enum, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestSessionEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	start := doJSON(t, srv, http.MethodPost, "/afterhours/tool", map[string]any{"tool": "start_service_request"})
	var turn struct {
		SessionID string `json:"session_id"`
	}
	decode(t, start, &turn)

	w := doJSON(t, srv, http.MethodGet, "/afterhours/sessions/"+turn.SessionID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	var sess struct {
		SessionID string `json:"session_id"`
		Context   string `json:"context"`
		Step      string `json:"step"`
	}
	decode(t, w, &sess)
	if sess.Context != workflowx.ContextServiceRequest || sess.Step != workflowx.StepGetIssueType {
		t.Fatalf("unexpected session: %+v", sess)
	}

	w = doJSON(t, srv, http.MethodDelete, "/afterhours/sessions/"+turn.SessionID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/afterhours/sessions/"+turn.SessionID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after end, got %d", w.Code)
	}
}
