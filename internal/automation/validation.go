package automation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxDescriptionLen = 500
	maxActions        = 10
	maxParameterKeys  = 20
	maxTemplateLength = 10000
)

// Pre-computed validation sets for O(1) type lookups.
var (
	validTriggerTypes map[TriggerType]struct{}
	validActionTypes  map[ActionType]struct{}
)

func init() {
	validTriggerTypes = make(map[TriggerType]struct{}, len(AllTriggerTypes()))
	for _, t := range AllTriggerTypes() {
		validTriggerTypes[t] = struct{}{}
	}
	validActionTypes = make(map[ActionType]struct{}, len(AllActionTypes()))
	for _, a := range AllActionTypes() {
		validActionTypes[a] = struct{}{}
	}
}

// ValidateAutomation performs comprehensive validation on an automation.
// Returns an error describing the first validation failure found.
//
// Automations are stored by the owner-facing application; the engine
// validates them again before dispatch so a malformed rule surfaces as
// a clear error rather than a downstream executor failure.
func ValidateAutomation(a *Automation) error {
	if a == nil {
		return ErrInvalidAutomation
	}

	if err := ValidateName(a.Name); err != nil {
		return err
	}

	if a.OwnerID == "" {
		return fmt.Errorf("%w: owner_id is required", ErrInvalidAutomation)
	}

	if a.Description != nil && len(*a.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidAutomation, maxDescriptionLen)
	}

	if err := ValidateTriggerType(a.TriggerType); err != nil {
		return err
	}

	if len(a.Actions) == 0 {
		return ErrNoActions
	}
	if len(a.Actions) > maxActions {
		return fmt.Errorf("%w: exceeds maximum of %d actions", ErrInvalidAction, maxActions)
	}

	for i, action := range a.Actions {
		if err := ValidateActionSpec(action); err != nil {
			return fmt.Errorf("action[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateName checks if an automation name is valid.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateTriggerType checks the trigger type against the closed set.
func ValidateTriggerType(t TriggerType) error {
	if _, ok := validTriggerTypes[t]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTriggerType, t)
	}
	return nil
}

// ValidateActionSpec checks if an action spec is valid.
func ValidateActionSpec(action ActionSpec) error {
	if _, ok := validActionTypes[action.Type]; !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, action.Type)
	}
	if len(action.Parameters) > maxParameterKeys {
		return fmt.Errorf("%w: parameters exceeds %d keys", ErrInvalidAction, maxParameterKeys)
	}
	if len(action.Template) > maxTemplateLength {
		return fmt.Errorf("%w: template exceeds %d characters", ErrInvalidAction, maxTemplateLength)
	}
	return nil
}

// GenerateID creates a new UUID for an automation or execution record.
func GenerateID() string {
	return uuid.New().String()
}
