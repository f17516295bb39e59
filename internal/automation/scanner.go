package automation

import (
	"context"
	"fmt"
	"time"
)

// DomainStore is the interface the engine needs from the domain layer.
// It provides windowed entity queries and user profile lookups.
type DomainStore interface {
	// ListEntitiesInWindow returns snapshots of live entities of the
	// trigger's kind whose anchor timestamp falls in [windowStart,
	// windowEnd], bounds inclusive.
	ListEntitiesInWindow(ctx context.Context, triggerType TriggerType, windowStart, windowEnd time.Time) ([]EntitySnapshot, error)

	// GetUserProfile retrieves the owning user's profile.
	GetUserProfile(ctx context.Context, userID string) (UserProfile, error)
}

// Scanner finds entities that have entered a trigger's firing window
// and have not yet produced a successful execution for the relevant
// automation.
//
// One candidate is emitted per (active automation, entity) pair; the
// automation is pinned at scan time so the dispatcher never has to
// re-resolve which rule a candidate belongs to. The ledger check here
// is a pre-filter that keeps already-handled entities out of the
// dispatch path; the authoritative dedup gate is the ledger's unique
// constraint at record time.
type Scanner struct {
	store    DomainStore
	repo     Repository
	ledger   Ledger
	triggers []TriggerDef
	logger   Logger
}

// NewScanner creates a scanner over the given trigger definitions.
//
// Parameters:
//   - store: Domain store for windowed entity queries
//   - repo: Automation repository for active-rule lookups
//   - ledger: Execution ledger for the dedup pre-filter
//   - triggers: Enabled trigger definitions with their window offsets
func NewScanner(store DomainStore, repo Repository, ledger Ledger, triggers []TriggerDef) *Scanner {
	return &Scanner{
		store:    store,
		repo:     repo,
		ledger:   ledger,
		triggers: triggers,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the scanner.
func (s *Scanner) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Scan performs one pass over all configured triggers at the given time.
//
// A store or ledger query failure aborts the whole pass with an error;
// dedup state is untouched and the pass is safe to retry on the next
// scheduled invocation.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - now: The scan reference time (windows are computed relative to it)
//
// Returns:
//   - []TriggerCandidate: Eligible (automation, entity) pairs
//   - error: If any query fails
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]TriggerCandidate, error) {
	var candidates []TriggerCandidate

	for _, trigger := range s.triggers {
		found, err := s.scanTrigger(ctx, trigger, now)
		if err != nil {
			return nil, fmt.Errorf("scanning trigger %s: %w", trigger.Type, err)
		}
		candidates = append(candidates, found...)
	}

	return candidates, nil
}

// scanTrigger evaluates one trigger definition.
func (s *Scanner) scanTrigger(ctx context.Context, trigger TriggerDef, now time.Time) ([]TriggerCandidate, error) {
	automations, err := s.repo.ListActiveByTrigger(ctx, trigger.Type)
	if err != nil {
		return nil, fmt.Errorf("listing active automations: %w", err)
	}
	if len(automations) == 0 {
		return nil, nil
	}

	windowStart := now.Add(trigger.WindowStart)
	windowEnd := now.Add(trigger.WindowEnd)

	entities, err := s.store.ListEntitiesInWindow(ctx, trigger.Type, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("listing entities in window: %w", err)
	}

	s.logger.Debug("trigger window scanned",
		"trigger_type", trigger.Type,
		"window_start", windowStart,
		"window_end", windowEnd,
		"entities", len(entities),
		"automations", len(automations),
	)

	var candidates []TriggerCandidate
	for _, entity := range entities {
		// The store query bounds the window; re-check inclusively here
		// so a store that returns loose results cannot widen the window.
		if entity.AnchorTime.Before(windowStart) || entity.AnchorTime.After(windowEnd) {
			continue
		}

		// One candidate per active automation matching this trigger type.
		for _, a := range automations {
			succeeded, err := s.ledger.HasSucceeded(ctx, a.ID, entity.EntityID)
			if err != nil {
				return nil, fmt.Errorf("checking execution history: %w", err)
			}
			if succeeded {
				continue
			}

			candidates = append(candidates, TriggerCandidate{
				AutomationID: a.ID,
				TriggerType:  trigger.Type,
				EntityID:     entity.EntityID,
				UserID:       entity.UserID,
				Snapshot:     entity,
			})
		}
	}

	return candidates, nil
}
