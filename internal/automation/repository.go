package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for automation persistence.
// This abstraction allows different implementations (SQLite, mock)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves an automation by its unique identifier.
	GetByID(ctx context.Context, id string) (*Automation, error)

	// List retrieves all automations, newest first.
	List(ctx context.Context) ([]Automation, error)

	// ListActiveByTrigger retrieves active automations of a trigger
	// type, newest first (the most-recently-created rule wins ties).
	ListActiveByTrigger(ctx context.Context, triggerType TriggerType) ([]Automation, error)

	// Create inserts a new automation.
	Create(ctx context.Context, a *Automation) error

	// IncrementExecutionStats bumps execution_count and sets
	// last_executed_at. Called by the dispatcher on success only.
	IncrementExecutionStats(ctx context.Context, id string, executedAt time.Time) error
}

// automationColumns is the SELECT column list for automation queries.
const automationColumns = `id, owner_id, name, description, trigger_type, trigger_conditions,
			actions, is_active, execution_count, last_executed_at, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves an automation by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	a, err := scanAutomationRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAutomationNotFound
		}
		return nil, fmt.Errorf("querying automation by id: %w", err)
	}
	return a, nil
}

// List retrieves all automations, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations ORDER BY created_at DESC, id`
	return r.queryAutomations(ctx, query)
}

// ListActiveByTrigger retrieves active automations of a trigger type,
// newest first.
func (r *SQLiteRepository) ListActiveByTrigger(ctx context.Context, triggerType TriggerType) ([]Automation, error) {
	query := `SELECT ` + automationColumns + `
		FROM automations
		WHERE trigger_type = ? AND is_active = 1
		ORDER BY created_at DESC, id`
	return r.queryAutomations(ctx, query, string(triggerType))
}

// Create inserts a new automation.
func (r *SQLiteRepository) Create(ctx context.Context, a *Automation) error {
	if err := ValidateAutomation(a); err != nil {
		return err
	}

	actionsJSON, err := json.Marshal(a.Actions)
	if err != nil {
		return fmt.Errorf("marshalling actions: %w", err)
	}
	conditionsJSON, err := marshalConditions(a.TriggerConditions)
	if err != nil {
		return fmt.Errorf("marshalling trigger conditions: %w", err)
	}

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `
		INSERT INTO automations (
			id, owner_id, name, description, trigger_type, trigger_conditions,
			actions, is_active, execution_count, last_executed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		a.ID,
		a.OwnerID,
		a.Name,
		nullableString(a.Description),
		string(a.TriggerType),
		conditionsJSON,
		string(actionsJSON),
		boolToInt(a.IsActive),
		a.ExecutionCount,
		nullableTime(a.LastExecutedAt),
		a.CreatedAt.Format(time.RFC3339),
		a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrAutomationExists
		}
		return fmt.Errorf("inserting automation: %w", err)
	}
	return nil
}

// IncrementExecutionStats bumps execution_count and sets last_executed_at.
//
// The increment happens in SQL so concurrent successful dispatches for
// the same automation never lose an update.
func (r *SQLiteRepository) IncrementExecutionStats(ctx context.Context, id string, executedAt time.Time) error {
	query := `
		UPDATE automations SET
			execution_count = execution_count + 1,
			last_executed_at = ?,
			updated_at = ?
		WHERE id = ?`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, query, executedAt.UTC().Format(time.RFC3339), now, id)
	if err != nil {
		return fmt.Errorf("updating execution stats: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAutomationNotFound
	}
	return nil
}

// queryAutomations executes a query and returns a slice of automations.
func (r *SQLiteRepository) queryAutomations(ctx context.Context, query string, args ...any) ([]Automation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying automations: %w", err)
	}
	defer rows.Close()

	var automations []Automation
	for rows.Next() {
		a, scanErr := scanAutomationRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning automation: %w", scanErr)
		}
		automations = append(automations, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating automations: %w", err)
	}
	return automations, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAutomationRow(scanner rowScanner) (*Automation, error) {
	var a Automation
	var description, conditionsJSON, lastExecutedAt sql.NullString
	var triggerType, actionsJSON string
	var isActive int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&a.ID,
		&a.OwnerID,
		&a.Name,
		&description,
		&triggerType,
		&conditionsJSON,
		&actionsJSON,
		&isActive,
		&a.ExecutionCount,
		&lastExecutedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.TriggerType = TriggerType(triggerType)
	a.IsActive = isActive != 0

	if description.Valid {
		a.Description = &description.String
	}

	// Parse timestamps (stored as RFC3339 by SQLite default expressions)
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		a.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		a.UpdatedAt = t
	}
	if lastExecutedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, lastExecutedAt.String); parseErr == nil {
			a.LastExecutedAt = &t
		}
	}

	// Unmarshal embedded JSON
	if conditionsJSON.Valid && conditionsJSON.String != "" && conditionsJSON.String != "null" {
		if jsonErr := json.Unmarshal([]byte(conditionsJSON.String), &a.TriggerConditions); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling trigger conditions: %w", jsonErr)
		}
	}
	if actionsJSON != "" && actionsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(actionsJSON), &a.Actions); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling actions: %w", jsonErr)
		}
	}
	if a.Actions == nil {
		a.Actions = []ActionSpec{}
	}

	return &a, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalConditions(conditions map[string]string) (sql.NullString, error) {
	if len(conditions) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(conditions)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
