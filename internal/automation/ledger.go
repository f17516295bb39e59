package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Ledger defines the interface for execution record persistence.
// It is the sole source of truth for deduplication and statistics.
// This abstraction allows different implementations (SQLite, mock)
// and enables unit testing without database dependencies.
type Ledger interface {
	// HasSucceeded reports whether a success record exists for the
	// (automationID, entityID) pair. Used as the scan-time pre-filter;
	// the authoritative gate is the unique constraint enforced by Record.
	HasSucceeded(ctx context.Context, automationID, entityID string) (bool, error)

	// Record appends one execution record. Inserting a second success
	// for the same (automation_id, entity_id) pair returns
	// ErrDuplicateExecution; failure records always insert.
	Record(ctx context.Context, rec *ExecutionRecord) error

	// GetExecution retrieves a record by ID.
	GetExecution(ctx context.Context, id string) (*ExecutionRecord, error)

	// ListByAutomation retrieves recent records for an automation,
	// newest first. Limit is clamped to 1-100 (default 10).
	ListByAutomation(ctx context.Context, automationID string, limit int) ([]ExecutionRecord, error)
}

// executionColumns is the SELECT column list for execution queries.
const executionColumns = `id, automation_id, entity_id, user_id, status, metadata, executed_at`

// SQLiteLedger implements Ledger using SQLite.
//
// The dedup invariant is enforced by a partial unique index on
// (automation_id, entity_id) WHERE status='success', making Record an
// atomic insert-if-absent for successes. Concurrent scan passes racing
// on the same pair produce exactly one success row; the loser gets
// ErrDuplicateExecution.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger creates a new SQLite-backed execution ledger.
func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

// HasSucceeded reports whether a success record exists for the pair.
func (l *SQLiteLedger) HasSucceeded(ctx context.Context, automationID, entityID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM automation_executions
		WHERE automation_id = ? AND entity_id = ? AND status = ?`

	var count int
	err := l.db.QueryRowContext(ctx, query, automationID, entityID, string(StatusSuccess)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("querying execution success: %w", err)
	}
	return count > 0, nil
}

// Record appends one execution record.
func (l *SQLiteLedger) Record(ctx context.Context, rec *ExecutionRecord) error {
	metadataJSON, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	if rec.ExecutedAt.IsZero() {
		rec.ExecutedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO automation_executions (
			id, automation_id, entity_id, user_id, status, metadata, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = l.db.ExecContext(ctx, query,
		rec.ID,
		rec.AutomationID,
		rec.EntityID,
		rec.UserID,
		string(rec.Status),
		metadataJSON,
		rec.ExecutedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateExecution
		}
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution record by ID.
func (l *SQLiteLedger) GetExecution(ctx context.Context, id string) (*ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + ` FROM automation_executions WHERE id = ?`

	row := l.db.QueryRowContext(ctx, query, id)
	rec, err := scanExecutionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	return rec, nil
}

// ListByAutomation retrieves recent executions for an automation.
func (l *SQLiteLedger) ListByAutomation(ctx context.Context, automationID string, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT ` + executionColumns + `
		FROM automation_executions
		WHERE automation_id = ?
		ORDER BY executed_at DESC
		LIMIT ?`

	rows, err := l.db.QueryContext(ctx, query, automationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		rec, scanErr := scanExecutionRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning execution: %w", scanErr)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return records, nil
}

// scanExecutionRow scans a row into an ExecutionRecord.
// Works with both *sql.Row and *sql.Rows via the rowScanner interface.
func scanExecutionRow(scanner rowScanner) (*ExecutionRecord, error) {
	var rec ExecutionRecord
	var status, executedAt string
	var metadataJSON sql.NullString

	err := scanner.Scan(
		&rec.ID,
		&rec.AutomationID,
		&rec.EntityID,
		&rec.UserID,
		&status,
		&metadataJSON,
		&executedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = ExecutionStatus(status)
	if t, parseErr := time.Parse(time.RFC3339, executedAt); parseErr == nil {
		rec.ExecutedAt = t
	}

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if jsonErr := json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", jsonErr)
		}
	}

	return &rec, nil
}

// marshalMetadata encodes an execution's metadata map for storage.
func marshalMetadata(metadata map[string]string) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
