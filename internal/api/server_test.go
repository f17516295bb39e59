package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relayhq/relay-core/internal/automation"
	"github.com/relayhq/relay-core/internal/infrastructure/config"
	"github.com/relayhq/relay-core/internal/infrastructure/logging"
)

// stubStore is an empty domain store; manual scans over it find nothing.
type stubStore struct{}

func (stubStore) ListEntitiesInWindow(context.Context, automation.TriggerType, time.Time, time.Time) ([]automation.EntitySnapshot, error) {
	return nil, nil
}

func (stubStore) GetUserProfile(context.Context, string) (automation.UserProfile, error) {
	return automation.UserProfile{}, errors.New("no users")
}

// stubRepo serves canned automations.
type stubRepo struct {
	automations map[string]*automation.Automation
	listErr     error
}

func (r *stubRepo) GetByID(_ context.Context, id string) (*automation.Automation, error) {
	a, ok := r.automations[id]
	if !ok {
		return nil, automation.ErrAutomationNotFound
	}
	return a, nil
}

func (r *stubRepo) List(context.Context) ([]automation.Automation, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []automation.Automation
	for _, a := range r.automations {
		out = append(out, *a)
	}
	return out, nil
}

func (r *stubRepo) ListActiveByTrigger(context.Context, automation.TriggerType) ([]automation.Automation, error) {
	return nil, nil
}

func (r *stubRepo) Create(_ context.Context, a *automation.Automation) error {
	r.automations[a.ID] = a
	return nil
}

func (r *stubRepo) IncrementExecutionStats(context.Context, string, time.Time) error {
	return nil
}

// stubLedger serves canned execution records.
type stubLedger struct {
	records  []automation.ExecutionRecord
	listErr  error
	gotLimit int
}

func (l *stubLedger) HasSucceeded(context.Context, string, string) (bool, error) {
	return false, nil
}

func (l *stubLedger) Record(context.Context, *automation.ExecutionRecord) error {
	return nil
}

func (l *stubLedger) GetExecution(context.Context, string) (*automation.ExecutionRecord, error) {
	return nil, automation.ErrExecutionNotFound
}

func (l *stubLedger) ListByAutomation(_ context.Context, _ string, limit int) ([]automation.ExecutionRecord, error) {
	l.gotLimit = limit
	if l.listErr != nil {
		return nil, l.listErr
	}
	return l.records, nil
}

type stubHealth struct {
	err error
}

func (h stubHealth) HealthCheck(context.Context) error {
	return h.err
}

func testAutomation(id string) *automation.Automation {
	return &automation.Automation{
		ID:          id,
		OwnerID:     "user-1",
		Name:        "Reminder",
		TriggerType: automation.TriggerMeetingReminder,
		Actions: []automation.ActionSpec{{
			Type:     automation.ActionSendEmail,
			Name:     "Reminder email",
			Template: "Hello {{client_name}}",
		}},
		IsActive: true,
	}
}

// newTestServer builds a server over stubs and returns it with its router.
func newTestServer(t *testing.T, repo *stubRepo, ledger *stubLedger, health map[string]HealthChecker) http.Handler {
	t.Helper()

	store := stubStore{}
	scanner := automation.NewScanner(store, repo, ledger, nil)
	dispatcher := automation.NewDispatcher(repo, ledger, automation.NewRegistry(), store, time.Second)
	engine := automation.NewEngine(scanner, dispatcher)

	s, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 8080},
		Logger:  logging.Default(),
		Engine:  engine,
		Repo:    repo,
		Ledger:  ledger,
		Health:  health,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s.buildRouter()
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNew_MissingDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("expected an error with no dependencies")
	}
}

func TestHandleHealth(t *testing.T) {
	repo := &stubRepo{automations: map[string]*automation.Automation{}}
	router := newTestServer(t, repo, &stubLedger{}, map[string]HealthChecker{
		"database": stubHealth{},
	})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Status != "ok" || body.Components["database"] != "ok" {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleHealth_Degraded(t *testing.T) {
	repo := &stubRepo{automations: map[string]*automation.Automation{}}
	router := newTestServer(t, repo, &stubLedger{}, map[string]HealthChecker{
		"database": stubHealth{err: errors.New("locked")},
	})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleRunScan(t *testing.T) {
	repo := &stubRepo{automations: map[string]*automation.Automation{}}
	router := newTestServer(t, repo, &stubLedger{}, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scan")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var summary automation.ScanSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if summary.TriggersFound != 0 {
		t.Errorf("TriggersFound = %d, want 0 over an empty store", summary.TriggersFound)
	}
}

func TestHandleListAutomations(t *testing.T) {
	repo := &stubRepo{automations: map[string]*automation.Automation{
		"auto-1": testAutomation("auto-1"),
	}}
	router := newTestServer(t, repo, &stubLedger{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/automations")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestHandleGetAutomation(t *testing.T) {
	repo := &stubRepo{automations: map[string]*automation.Automation{
		"auto-1": testAutomation("auto-1"),
	}}
	router := newTestServer(t, repo, &stubLedger{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/automations/auto-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/automations/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown automation", rec.Code)
	}
}

func TestHandleListExecutions(t *testing.T) {
	repo := &stubRepo{automations: map[string]*automation.Automation{
		"auto-1": testAutomation("auto-1"),
	}}
	ledger := &stubLedger{records: []automation.ExecutionRecord{
		{ID: "exec-1", AutomationID: "auto-1", EntityID: "meeting-1", Status: automation.StatusSuccess},
	}}
	router := newTestServer(t, repo, ledger, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/automations/auto-1/executions?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ledger.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", ledger.gotLimit)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestHandleListExecutions_BadLimit(t *testing.T) {
	repo := &stubRepo{automations: map[string]*automation.Automation{
		"auto-1": testAutomation("auto-1"),
	}}
	router := newTestServer(t, repo, &stubLedger{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/automations/auto-1/executions?limit=zero")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleListExecutions_UnknownAutomation(t *testing.T) {
	repo := &stubRepo{automations: map[string]*automation.Automation{}}
	router := newTestServer(t, repo, &stubLedger{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/automations/missing/executions")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	repo := &stubRepo{automations: map[string]*automation.Automation{}}
	router := newTestServer(t, repo, &stubLedger{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated X-Request-ID header")
	}
}
