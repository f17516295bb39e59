package domain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/relayhq/relay-core/internal/automation"
)

// Human-readable formats used in snapshot fields (and therefore in
// rendered email bodies).
const (
	meetingTimeFormat = "Monday 2 January 2006 at 15:04"
	dueDateFormat     = "2 January 2006"
)

// SQLiteStore implements automation.DomainStore over the domain tables.
// It also serves user and client lookups for the admin API.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed domain store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// ListEntitiesInWindow returns snapshots of live entities whose anchor
// time falls inside [windowStart, windowEnd], both bounds inclusive.
//
// Parameters:
//   - triggerType: Selects the entity table and status filter
//     (meetings must be scheduled, invoices must be sent)
//   - windowStart: Earliest eligible anchor time (inclusive)
//   - windowEnd: Latest eligible anchor time (inclusive)
//
// Returns:
//   - []automation.EntitySnapshot: One snapshot per eligible entity,
//     with the owning client flattened in
//   - error: ErrUnknownTriggerType for unmapped trigger types, or a
//     wrapped query error
func (s *SQLiteStore) ListEntitiesInWindow(ctx context.Context, triggerType automation.TriggerType, windowStart, windowEnd time.Time) ([]automation.EntitySnapshot, error) {
	switch triggerType {
	case automation.TriggerMeetingReminder:
		return s.listMeetingSnapshots(ctx, windowStart, windowEnd)
	case automation.TriggerInvoiceOverdue:
		return s.listInvoiceSnapshots(ctx, windowStart, windowEnd)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTriggerType, triggerType)
	}
}

// GetUserProfile returns the name and email of a user.
func (s *SQLiteStore) GetUserProfile(ctx context.Context, userID string) (automation.UserProfile, error) {
	query := `SELECT id, name, email FROM users WHERE id = ?`

	var profile automation.UserProfile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&profile.ID, &profile.Name, &profile.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return automation.UserProfile{}, ErrUserNotFound
		}
		return automation.UserProfile{}, fmt.Errorf("querying user profile: %w", err)
	}
	return profile, nil
}

// GetClient retrieves a client by its unique identifier.
func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*Client, error) {
	query := `
		SELECT id, user_id, name, email, phone, created_at, updated_at
		FROM clients WHERE id = ?`

	var c Client
	var phone sql.NullString
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.Name, &c.Email, &phone, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("querying client: %w", err)
	}

	if phone.Valid {
		c.Phone = &phone.String
	}
	c.CreatedAt = parseStoredTime(createdAt)
	c.UpdatedAt = parseStoredTime(updatedAt)
	return &c, nil
}

// listMeetingSnapshots returns scheduled meetings starting inside the
// window, joined with their client.
func (s *SQLiteStore) listMeetingSnapshots(ctx context.Context, windowStart, windowEnd time.Time) ([]automation.EntitySnapshot, error) {
	query := `
		SELECT m.id, m.user_id, m.title, m.location, m.start_time,
		       c.id, c.name, c.email
		FROM meetings m
		JOIN clients c ON c.id = m.client_id
		WHERE m.status = ? AND m.start_time >= ? AND m.start_time <= ?
		ORDER BY m.start_time, m.id`

	rows, err := s.db.QueryContext(ctx, query,
		string(MeetingScheduled),
		windowStart.UTC().Format(time.RFC3339),
		windowEnd.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying meetings in window: %w", err)
	}
	defer rows.Close()

	var snapshots []automation.EntitySnapshot
	for rows.Next() {
		var meetingID, userID, title string
		var location sql.NullString
		var startTime string
		var client automation.ClientInfo

		if scanErr := rows.Scan(
			&meetingID, &userID, &title, &location, &startTime,
			&client.ID, &client.Name, &client.Email,
		); scanErr != nil {
			return nil, fmt.Errorf("scanning meeting: %w", scanErr)
		}

		anchor := parseStoredTime(startTime)
		fields := map[string]string{
			"meeting_title": title,
			"meeting_time":  anchor.Format(meetingTimeFormat),
		}
		if location.Valid && location.String != "" {
			fields["location"] = location.String
		}

		snapshots = append(snapshots, automation.EntitySnapshot{
			EntityID:   meetingID,
			UserID:     userID,
			AnchorTime: anchor,
			Client:     client,
			Fields:     fields,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating meetings: %w", err)
	}
	return snapshots, nil
}

// listInvoiceSnapshots returns sent invoices whose due date falls
// inside the window, joined with their client.
func (s *SQLiteStore) listInvoiceSnapshots(ctx context.Context, windowStart, windowEnd time.Time) ([]automation.EntitySnapshot, error) {
	query := `
		SELECT i.id, i.user_id, i.number, i.amount_cents, i.currency, i.due_date,
		       c.id, c.name, c.email
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.status = ? AND i.due_date >= ? AND i.due_date <= ?
		ORDER BY i.due_date, i.id`

	rows, err := s.db.QueryContext(ctx, query,
		string(InvoiceSent),
		windowStart.UTC().Format(time.RFC3339),
		windowEnd.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying invoices in window: %w", err)
	}
	defer rows.Close()

	var snapshots []automation.EntitySnapshot
	for rows.Next() {
		var invoiceID, userID, number, currency string
		var amountCents int64
		var dueDate string
		var client automation.ClientInfo

		if scanErr := rows.Scan(
			&invoiceID, &userID, &number, &amountCents, &currency, &dueDate,
			&client.ID, &client.Name, &client.Email,
		); scanErr != nil {
			return nil, fmt.Errorf("scanning invoice: %w", scanErr)
		}

		anchor := parseStoredTime(dueDate)
		inv := Invoice{AmountCents: amountCents, Currency: currency}
		fields := map[string]string{
			"invoice_number": number,
			"amount_due":     inv.FormatAmount(),
			"due_date":       anchor.Format(dueDateFormat),
		}

		snapshots = append(snapshots, automation.EntitySnapshot{
			EntityID:   invoiceID,
			UserID:     userID,
			AnchorTime: anchor,
			Client:     client,
			Fields:     fields,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoices: %w", err)
	}
	return snapshots, nil
}

// parseStoredTime parses an RFC3339 TEXT timestamp. Malformed values
// return the zero time rather than failing the whole query.
func parseStoredTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
