package domain

import "errors"

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrClientNotFound indicates the requested client does not exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrUnknownTriggerType indicates a window query for a trigger type
	// the store has no entity mapping for.
	ErrUnknownTriggerType = errors.New("unknown trigger type")
)
