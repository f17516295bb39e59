package automation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// engineFixture wires an engine over a real in-memory SQLite ledger and
// repository with mocked domain store and mailer.
type engineFixture struct {
	engine *Engine
	repo   *SQLiteRepository
	ledger *SQLiteLedger
	store  *mockDomainStore
	mailer *mockMailer
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()

	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ledger := NewSQLiteLedger(db)
	store := testStore()
	mailer := &mockMailer{}

	scanner := NewScanner(store, repo, ledger, meetingTriggers())
	dispatcher := NewDispatcher(repo, ledger, testRegistry(t, mailer), store, 5*time.Second)
	engine := NewEngine(scanner, dispatcher)

	return &engineFixture{
		engine: engine,
		repo:   repo,
		ledger: ledger,
		store:  store,
		mailer: mailer,
	}
}

// addMeeting puts a meeting snapshot into the mocked domain store.
func (f *engineFixture) addMeeting(entityID string, startsIn time.Duration) {
	anchor := time.Now().UTC().Add(startsIn)
	if f.store.entities == nil {
		f.store.entities = make(map[TriggerType][]EntitySnapshot)
	}
	f.store.entities[TriggerMeetingReminder] = append(
		f.store.entities[TriggerMeetingReminder],
		meetingSnapshot(entityID, anchor),
	)
}

// Scenario: an active meeting reminder automation and a meeting starting
// in two hours produce one email, one success record, and one stats bump.
func TestEngine_RunScan_MeetingFires(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	if err := f.repo.Create(ctx, testAutomation("auto-1", "Reminder")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.addMeeting("meeting-1", 2*time.Hour)

	summary, err := f.engine.RunScan(ctx)
	if err != nil {
		t.Fatalf("RunScan() error = %v", err)
	}

	if summary.TriggersFound != 1 || summary.Successes != 1 || summary.Failures != 0 {
		t.Errorf("summary = %+v, want 1 found / 1 success / 0 failures", summary)
	}
	if f.mailer.sendCount != 1 {
		t.Errorf("sendCount = %d, want 1", f.mailer.sendCount)
	}

	records, err := f.ledger.ListByAutomation(ctx, "auto-1", 10)
	if err != nil {
		t.Fatalf("ListByAutomation() error = %v", err)
	}
	if len(records) != 1 || records[0].Status != StatusSuccess {
		t.Fatalf("records = %+v, want one success", records)
	}

	auto, err := f.repo.GetByID(ctx, "auto-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if auto.ExecutionCount != 1 {
		t.Errorf("ExecutionCount = %d, want 1", auto.ExecutionCount)
	}
	if auto.LastExecutedAt == nil {
		t.Error("LastExecutedAt should be set")
	}
}

// Scenario: a second scan with no state change finds zero new work for
// the already-handled meeting.
func TestEngine_RunScan_DedupAcrossScans(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	if err := f.repo.Create(ctx, testAutomation("auto-1", "Reminder")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.addMeeting("meeting-1", 2*time.Hour)

	if _, err := f.engine.RunScan(ctx); err != nil {
		t.Fatalf("first RunScan() error = %v", err)
	}

	summary, err := f.engine.RunScan(ctx)
	if err != nil {
		t.Fatalf("second RunScan() error = %v", err)
	}
	if summary.TriggersFound != 0 {
		t.Errorf("TriggersFound = %d, want 0 on second scan", summary.TriggersFound)
	}
	if f.mailer.sendCount != 1 {
		t.Errorf("sendCount = %d, want still 1", f.mailer.sendCount)
	}
}

// Scenario: a meeting outside the window produces zero candidates.
func TestEngine_RunScan_OutsideWindow(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	if err := f.repo.Create(ctx, testAutomation("auto-1", "Reminder")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.addMeeting("meeting-1", 4*time.Hour)

	summary, err := f.engine.RunScan(ctx)
	if err != nil {
		t.Fatalf("RunScan() error = %v", err)
	}
	if summary.TriggersFound != 0 {
		t.Errorf("TriggersFound = %d, want 0", summary.TriggersFound)
	}
	if f.mailer.sendCount != 0 {
		t.Errorf("sendCount = %d, want 0", f.mailer.sendCount)
	}
}

// Scenario: a delivery failure writes a failure record, leaves the
// statistics untouched, and the meeting stays eligible for a retry.
func TestEngine_RunScan_DeliveryFailureRetryable(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	if err := f.repo.Create(ctx, testAutomation("auto-1", "Reminder")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.addMeeting("meeting-1", 2*time.Hour)
	f.mailer.sendErr = errors.New("delivery rejected")

	summary, err := f.engine.RunScan(ctx)
	if err != nil {
		t.Fatalf("RunScan() error = %v", err)
	}
	if summary.Failures != 1 || summary.Successes != 0 {
		t.Errorf("summary = %+v, want 1 failure / 0 successes", summary)
	}

	records, err := f.ledger.ListByAutomation(ctx, "auto-1", 10)
	if err != nil {
		t.Fatalf("ListByAutomation() error = %v", err)
	}
	if len(records) != 1 || records[0].Status != StatusFailure {
		t.Fatalf("records = %+v, want one failure", records)
	}

	auto, _ := f.repo.GetByID(ctx, "auto-1")
	if auto.ExecutionCount != 0 {
		t.Errorf("ExecutionCount = %d, want 0 after failure", auto.ExecutionCount)
	}

	// Delivery recovers; the next scan retries and succeeds.
	f.mailer.sendErr = nil
	summary, err = f.engine.RunScan(ctx)
	if err != nil {
		t.Fatalf("retry RunScan() error = %v", err)
	}
	if summary.Successes != 1 {
		t.Errorf("Successes = %d, want 1 on retry", summary.Successes)
	}
}

// Scenario: the at-most-once invariant holds over repeated scans.
func TestEngine_RunScan_AtMostOnceInvariant(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	if err := f.repo.Create(ctx, testAutomation("auto-1", "Reminder")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.addMeeting("meeting-1", 2*time.Hour)

	for i := 0; i < 5; i++ {
		if _, err := f.engine.RunScan(ctx); err != nil {
			t.Fatalf("RunScan() #%d error = %v", i+1, err)
		}
	}

	records, err := f.ledger.ListByAutomation(ctx, "auto-1", 100)
	if err != nil {
		t.Fatalf("ListByAutomation() error = %v", err)
	}
	successes := 0
	for _, rec := range records {
		if rec.Status == StatusSuccess {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("success records = %d, want exactly 1", successes)
	}
}

func TestEngine_RunScan_ScanErrorAborts(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	if err := f.repo.Create(ctx, testAutomation("auto-1", "Reminder")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.store.listErr = errors.New("database unreachable")

	_, err := f.engine.RunScan(ctx)
	if err == nil {
		t.Fatal("expected RunScan to surface scan errors")
	}
}

// ─── Observability hooks ────────────────────────────────────────────────────

type recordingMetrics struct {
	mu         sync.Mutex
	starts     int
	completes  int
	executions []string
}

func (m *recordingMetrics) ScanStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
}

func (m *recordingMetrics) ScanCompleted(ScanSummary, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completes++
}

func (m *recordingMetrics) ExecutionRecorded(triggerType, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, triggerType+"/"+status)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	if !json.Valid(payload) {
		return errors.New("invalid payload")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func TestEngine_RunScan_ObservabilityHooks(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	metrics := &recordingMetrics{}
	publisher := &recordingPublisher{}
	f.engine.SetMetrics(metrics)
	f.engine.SetEventPublisher(publisher)

	if err := f.repo.Create(ctx, testAutomation("auto-1", "Reminder")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.addMeeting("meeting-1", 2*time.Hour)

	if _, err := f.engine.RunScan(ctx); err != nil {
		t.Fatalf("RunScan() error = %v", err)
	}

	if metrics.starts != 1 || metrics.completes != 1 {
		t.Errorf("metrics starts/completes = %d/%d, want 1/1", metrics.starts, metrics.completes)
	}
	if len(metrics.executions) != 1 || metrics.executions[0] != "meeting_reminder/success" {
		t.Errorf("executions = %v", metrics.executions)
	}

	wantFired := "relay/events/automation/auto-1/fired"
	wantScan := "relay/events/scan/completed"
	if len(publisher.topics) != 2 || publisher.topics[0] != wantFired || publisher.topics[1] != wantScan {
		t.Errorf("topics = %v, want [%s, %s]", publisher.topics, wantFired, wantScan)
	}
}
