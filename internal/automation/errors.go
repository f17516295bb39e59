package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrDuplicateExecution) {
//	    // success record already exists for this pair
//	}
var (
	// ErrAutomationNotFound is returned when an automation ID does not exist.
	ErrAutomationNotFound = errors.New("automation: not found")

	// ErrAutomationExists is returned when creating an automation with an ID
	// that already exists.
	ErrAutomationExists = errors.New("automation: already exists")

	// ErrAutomationInactive is returned when dispatching against an
	// automation that has been deactivated since scan time.
	ErrAutomationInactive = errors.New("automation: inactive")

	// ErrInvalidAutomation is returned when automation validation fails.
	ErrInvalidAutomation = errors.New("automation: invalid")

	// ErrInvalidName is returned when an automation name is empty or too long.
	ErrInvalidName = errors.New("automation: invalid name")

	// ErrInvalidTriggerType is returned for a trigger type outside the closed set.
	ErrInvalidTriggerType = errors.New("automation: invalid trigger type")

	// ErrInvalidAction is returned when an action spec is invalid.
	ErrInvalidAction = errors.New("automation: invalid action")

	// ErrNoActions is returned when an automation has no actions defined.
	ErrNoActions = errors.New("automation: no actions")

	// ErrDuplicateExecution is returned when recording a success for a
	// (automation, entity) pair that already has one. The unique index on
	// the ledger makes the insert-if-absent atomic.
	ErrDuplicateExecution = errors.New("execution: duplicate success")

	// ErrExecutionNotFound is returned when an execution ID does not exist.
	ErrExecutionNotFound = errors.New("execution: not found")
)
