package domain

import (
	"fmt"
	"time"
)

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// User is an account owner. Rules, clients, meetings, and invoices all
// belong to a user.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is a customer of a user.
type Client struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Meeting is a scheduled appointment between a user and a client.
type Meeting struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	ClientID  string        `json:"client_id"`
	Title     string        `json:"title"`
	Location  *string       `json:"location,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	Status    MeetingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Invoice is a bill issued by a user to a client. Amounts are integer
// cents to avoid floating-point money.
type Invoice struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	ClientID    string        `json:"client_id"`
	Number      string        `json:"number"`
	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency"`
	DueDate     time.Time     `json:"due_date"`
	Status      InvoiceStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// FormatAmount renders the invoice amount as "150.00 EUR".
func (i Invoice) FormatAmount() string {
	return fmt.Sprintf("%d.%02d %s", i.AmountCents/100, i.AmountCents%100, i.Currency)
}
