package automation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testRecord(automationID, entityID string, status ExecutionStatus) *ExecutionRecord {
	return &ExecutionRecord{
		ID:           GenerateID(),
		AutomationID: automationID,
		EntityID:     entityID,
		UserID:       "user-1",
		Status:       status,
		Metadata: map[string]string{
			"trigger_type": string(TriggerMeetingReminder),
		},
	}
}

func TestLedger_RecordAndHasSucceeded(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewSQLiteLedger(db)
	ctx := context.Background()

	succeeded, err := ledger.HasSucceeded(ctx, "auto-1", "meeting-1")
	if err != nil {
		t.Fatalf("HasSucceeded() error = %v", err)
	}
	if succeeded {
		t.Error("expected no success record before any write")
	}

	if err := ledger.Record(ctx, testRecord("auto-1", "meeting-1", StatusSuccess)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	succeeded, err = ledger.HasSucceeded(ctx, "auto-1", "meeting-1")
	if err != nil {
		t.Fatalf("HasSucceeded() error = %v", err)
	}
	if !succeeded {
		t.Error("expected success record after write")
	}
}

func TestLedger_DuplicateSuccessRejected(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewSQLiteLedger(db)
	ctx := context.Background()

	if err := ledger.Record(ctx, testRecord("auto-1", "meeting-1", StatusSuccess)); err != nil {
		t.Fatalf("first Record() error = %v", err)
	}

	// The partial unique index makes the second success an atomic reject.
	err := ledger.Record(ctx, testRecord("auto-1", "meeting-1", StatusSuccess))
	if !errors.Is(err, ErrDuplicateExecution) {
		t.Errorf("second Record() error = %v, want ErrDuplicateExecution", err)
	}
}

func TestLedger_FailuresAccumulate(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewSQLiteLedger(db)
	ctx := context.Background()

	// Repeated failures for the same pair never block each other or a
	// later success.
	for i := 0; i < 3; i++ {
		if err := ledger.Record(ctx, testRecord("auto-1", "meeting-1", StatusFailure)); err != nil {
			t.Fatalf("failure Record() #%d error = %v", i+1, err)
		}
	}
	if err := ledger.Record(ctx, testRecord("auto-1", "meeting-1", StatusSuccess)); err != nil {
		t.Fatalf("success Record() after failures error = %v", err)
	}

	succeeded, err := ledger.HasSucceeded(ctx, "auto-1", "meeting-1")
	if err != nil {
		t.Fatalf("HasSucceeded() error = %v", err)
	}
	if !succeeded {
		t.Error("expected success record")
	}
}

func TestLedger_SuccessScopedToPair(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewSQLiteLedger(db)
	ctx := context.Background()

	if err := ledger.Record(ctx, testRecord("auto-1", "meeting-1", StatusSuccess)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Different entity and different automation are both unaffected.
	if err := ledger.Record(ctx, testRecord("auto-1", "meeting-2", StatusSuccess)); err != nil {
		t.Errorf("different entity Record() error = %v", err)
	}
	if err := ledger.Record(ctx, testRecord("auto-2", "meeting-1", StatusSuccess)); err != nil {
		t.Errorf("different automation Record() error = %v", err)
	}
}

func TestLedger_GetExecution(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewSQLiteLedger(db)
	ctx := context.Background()

	rec := testRecord("auto-1", "meeting-1", StatusFailure)
	rec.Metadata["error"] = "delivery rejected"
	if err := ledger.Record(ctx, rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := ledger.GetExecution(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetExecution() error = %v", err)
	}
	if got.Status != StatusFailure {
		t.Errorf("Status = %q, want failure", got.Status)
	}
	if got.Metadata["error"] != "delivery rejected" {
		t.Errorf("Metadata[error] = %q", got.Metadata["error"])
	}
	if got.ExecutedAt.IsZero() {
		t.Error("ExecutedAt should be set")
	}
}

func TestLedger_GetExecution_NotFound(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewSQLiteLedger(db)

	_, err := ledger.GetExecution(context.Background(), "missing")
	if !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("GetExecution() error = %v, want ErrExecutionNotFound", err)
	}
}

func TestLedger_ListByAutomation(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewSQLiteLedger(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := testRecord("auto-1", GenerateID(), StatusSuccess)
		rec.ExecutedAt = base.Add(time.Duration(i) * time.Hour)
		if err := ledger.Record(ctx, rec); err != nil {
			t.Fatalf("Record() #%d error = %v", i, err)
		}
	}
	// A record for another automation must not appear.
	if err := ledger.Record(ctx, testRecord("auto-2", "meeting-x", StatusSuccess)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	records, err := ledger.ListByAutomation(ctx, "auto-1", 3)
	if err != nil {
		t.Fatalf("ListByAutomation() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len = %d, want 3", len(records))
	}

	// Newest first
	for i := 1; i < len(records); i++ {
		if records[i].ExecutedAt.After(records[i-1].ExecutedAt) {
			t.Errorf("records not in newest-first order at index %d", i)
		}
	}
}

func TestLedger_ListByAutomation_LimitClamped(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewSQLiteLedger(db)
	ctx := context.Background()

	if err := ledger.Record(ctx, testRecord("auto-1", "meeting-1", StatusSuccess)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Zero and negative limits fall back to the default.
	records, err := ledger.ListByAutomation(ctx, "auto-1", 0)
	if err != nil {
		t.Fatalf("ListByAutomation() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("len = %d, want 1", len(records))
	}
}
