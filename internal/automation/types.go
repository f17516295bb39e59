package automation

import "time"

// TriggerType identifies the kind of time-anchored condition an
// automation fires on. The set is closed; adding a type means adding
// a scanner query and (usually) new template variables.
type TriggerType string

const (
	// TriggerMeetingReminder fires for scheduled meetings whose start
	// time falls inside the configured look-ahead window.
	TriggerMeetingReminder TriggerType = "meeting_reminder"

	// TriggerInvoiceOverdue fires for sent invoices whose due date has
	// passed (or is about to pass) within the configured window.
	TriggerInvoiceOverdue TriggerType = "invoice_overdue"
)

// AllTriggerTypes returns all valid trigger types.
func AllTriggerTypes() []TriggerType {
	return []TriggerType{
		TriggerMeetingReminder,
		TriggerInvoiceOverdue,
	}
}

// ActionType identifies the side effect an ActionSpec performs.
// The set is closed; see executor.go for the handler per type.
type ActionType string

const (
	ActionSendEmail        ActionType = "send_email"
	ActionCreateInvoice    ActionType = "create_invoice"
	ActionUpdateStatus     ActionType = "update_status"
	ActionSendNotification ActionType = "send_notification"
)

// AllActionTypes returns all valid action types.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionSendEmail,
		ActionCreateInvoice,
		ActionUpdateStatus,
		ActionSendNotification,
	}
}

// Automation is a user-defined rule pairing a trigger with actions.
//
// Automations are created and edited by the owning user outside this
// engine; the engine reads them and only ever writes ExecutionCount
// and LastExecutedAt (on successful execution). Never deleted here.
type Automation struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`

	TriggerType TriggerType `json:"trigger_type"`

	// TriggerConditions holds optional per-rule condition overrides
	// (reserved for owner-facing filtering; the engine passes it through).
	TriggerConditions map[string]string `json:"trigger_conditions,omitempty"`

	// Actions to execute (ordered). Only the first action runs per
	// firing; see Dispatcher.dispatch.
	Actions []ActionSpec `json:"actions"`

	IsActive bool `json:"is_active"`

	// Statistics, maintained by the dispatcher on the success path.
	ExecutionCount int        `json:"execution_count"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActionSpec defines a single action within an automation.
// Immutable once embedded in an automation's action list; the engine
// reads, never mutates, an ActionSpec.
type ActionSpec struct {
	Type ActionType `json:"type"`
	Name string     `json:"name"`

	// Parameters are action-specific settings (e.g. "subject" for
	// send_email). Values may contain {{variable}} placeholders.
	Parameters map[string]string `json:"parameters,omitempty"`

	// Template is the optional templated body (e.g. email HTML).
	Template string `json:"template,omitempty"`
}

// ExecutionStatus is the outcome of one attempted execution.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusFailure ExecutionStatus = "failure"
)

// ExecutionRecord is one row of the append-only execution audit trail.
//
// Records are immutable once written. For a given (AutomationID,
// EntityID) at most one success record exists; failure records may
// accumulate and never block a retry.
type ExecutionRecord struct {
	ID           string          `json:"id"`
	AutomationID string          `json:"automation_id"`
	EntityID     string          `json:"entity_id"`
	UserID       string          `json:"user_id"`
	Status       ExecutionStatus `json:"status"`

	// Metadata carries trigger_type plus entity-specific keys for audit
	// (e.g. meeting_title, error).
	Metadata map[string]string `json:"metadata,omitempty"`

	ExecutedAt time.Time `json:"executed_at"`
}

// TriggerDef describes one trigger's firing window relative to scan time.
// An entity fires when its anchor timestamp falls in
// [now+WindowStart, now+WindowEnd], bounds inclusive.
type TriggerDef struct {
	Type        TriggerType
	WindowStart time.Duration
	WindowEnd   time.Duration
}

// ClientInfo is the client subset the engine needs for payloads.
type ClientInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserProfile is the owning user's profile subset for payloads.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EntitySnapshot is a point-in-time view of a domain entity inside a
// trigger window, as returned by the domain store. Fields carries the
// trigger-specific template variables (e.g. meeting_title, due_date).
type EntitySnapshot struct {
	EntityID   string
	UserID     string
	AnchorTime time.Time
	Client     ClientInfo
	Fields     map[string]string
}

// TriggerCandidate is one (automation, entity) pair found eligible
// during a scan pass. Ephemeral; never persisted.
type TriggerCandidate struct {
	AutomationID string
	TriggerType  TriggerType
	EntityID     string
	UserID       string
	Snapshot     EntitySnapshot
}

// ActionPayload is the context handed to executors. Built fresh per
// dispatch; never persisted.
type ActionPayload struct {
	Client     ClientInfo
	Automation Automation
	User       UserProfile

	// TriggerVariables feed the template renderer: entity snapshot
	// fields merged with client/user fields.
	TriggerVariables map[string]string

	ExecutionID string
}

// ActionResult is the transient outcome of one executor invocation.
type ActionResult struct {
	Success bool
	Message string
	Data    map[string]string
	Error   string
}

// ScanSummary reports the outcome of one RunScan pass.
type ScanSummary struct {
	TriggersFound int `json:"triggers_found"`
	Successes     int `json:"successes"`
	Failures      int `json:"failures"`
}
