package automation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// defaultDispatchTimeout bounds one candidate's dispatch (payload
// build, executor side effect, ledger write) when no timeout is
// configured.
const defaultDispatchTimeout = 30 * time.Second

// Dispatcher turns one TriggerCandidate into one attempted execution
// and records the outcome.
//
// Within one candidate's dispatch the steps are strictly sequential:
// load automation, re-check the dedup gate, build the payload, execute,
// record, update statistics. Candidates share no mutable state except
// the ledger, so different candidates may be dispatched in any order.
type Dispatcher struct {
	repo     Repository
	ledger   Ledger
	registry *Registry
	store    DomainStore
	timeout  time.Duration
	logger   Logger
}

// NewDispatcher creates a dispatcher.
//
// Parameters:
//   - repo: Automation repository (rule loads and statistics updates)
//   - ledger: Execution ledger (dedup gate and audit writes)
//   - registry: Executor registry for the closed action type set
//   - store: Domain store for user profile lookups
//   - timeout: Per-candidate dispatch timeout (0 uses the default)
func NewDispatcher(repo Repository, ledger Ledger, registry *Registry, store DomainStore, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{
		repo:     repo,
		ledger:   ledger,
		registry: registry,
		store:    store,
		timeout:  timeout,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

// Dispatch attempts one candidate and records the outcome.
//
// Returns:
//   - *ExecutionRecord: The written record, or nil if the candidate was
//     skipped (automation gone/inactive, already succeeded, or payload
//     could not be built — all logged, none fatal)
//   - error: Only for ledger failures that leave an executed side
//     effect unrecorded; the record is still returned alongside
func (d *Dispatcher) Dispatch(ctx context.Context, candidate TriggerCandidate) (*ExecutionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// (1) Load the automation pinned at scan time. A rule deleted or
	// deactivated mid-pass is skipped with a warning, no record.
	auto, err := d.repo.GetByID(ctx, candidate.AutomationID)
	if err != nil {
		if errors.Is(err, ErrAutomationNotFound) {
			d.logger.Warn("automation vanished before dispatch",
				"automation_id", candidate.AutomationID,
				"entity_id", candidate.EntityID,
			)
			return nil, nil
		}
		return nil, fmt.Errorf("loading automation: %w", err)
	}
	if !auto.IsActive {
		d.logger.Warn("automation deactivated before dispatch",
			"automation_id", auto.ID,
			"entity_id", candidate.EntityID,
		)
		return nil, nil
	}
	if len(auto.Actions) == 0 {
		d.logger.Warn("automation has no actions",
			"automation_id", auto.ID,
		)
		return nil, nil
	}

	// (2) Re-check the dedup gate immediately before dispatch. The scan
	// pre-filter may be stale under overlapping passes; the ledger's
	// unique constraint at step (4) remains the final arbiter.
	succeeded, err := d.ledger.HasSucceeded(ctx, auto.ID, candidate.EntityID)
	if err != nil {
		return nil, fmt.Errorf("checking execution history: %w", err)
	}
	if succeeded {
		d.logger.Debug("candidate already executed",
			"automation_id", auto.ID,
			"entity_id", candidate.EntityID,
		)
		return nil, nil
	}

	// (3) Build the payload from the snapshot, the automation, and the
	// owning user's profile.
	payload, err := d.buildPayload(ctx, auto, candidate)
	if err != nil {
		d.logger.Warn("failed to build action payload",
			"automation_id", auto.ID,
			"entity_id", candidate.EntityID,
			"error", err,
		)
		return nil, nil
	}

	// Only the first action in the list executes. Multi-action rules
	// are accepted but actions beyond the first never run; extending
	// dispatch to iterate the full list is a deliberate non-change.
	spec := auto.Actions[0]
	result := d.registry.Execute(ctx, spec, payload)

	// (4) Write the outcome. This must be durable before the candidate
	// counts as handled.
	rec := d.buildRecord(payload.ExecutionID, auto, candidate, spec, result)
	if recordErr := d.ledger.Record(ctx, rec); recordErr != nil {
		if errors.Is(recordErr, ErrDuplicateExecution) {
			// A concurrent pass won the insert race. Our side effect
			// already happened; the invariant holds but the duplicate
			// effect must be visible to operators.
			d.logger.Error("duplicate execution detected after side effect",
				"automation_id", auto.ID,
				"entity_id", candidate.EntityID,
				"execution_id", rec.ID,
			)
			return nil, recordErr
		}
		if result.Success {
			// The most dangerous failure class: the side effect happened
			// but is unrecorded, so the next scan may repeat it.
			d.logger.Error("ledger write failed after successful side effect",
				"automation_id", auto.ID,
				"entity_id", candidate.EntityID,
				"execution_id", rec.ID,
				"error", recordErr,
			)
		}
		return rec, fmt.Errorf("recording execution: %w", recordErr)
	}

	// (5) Update statistics on the success path only.
	if result.Success {
		if statsErr := d.repo.IncrementExecutionStats(ctx, auto.ID, rec.ExecutedAt); statsErr != nil {
			d.logger.Warn("failed to update automation statistics",
				"automation_id", auto.ID,
				"error", statsErr,
			)
		}
		d.logger.Info("automation executed",
			"automation_id", auto.ID,
			"automation_name", auto.Name,
			"entity_id", candidate.EntityID,
			"execution_id", rec.ID,
			"action_type", spec.Type,
		)
	} else {
		d.logger.Warn("automation execution failed",
			"automation_id", auto.ID,
			"entity_id", candidate.EntityID,
			"execution_id", rec.ID,
			"action_type", spec.Type,
			"error", result.Error,
		)
	}

	return rec, nil
}

// buildPayload assembles the executor context for one candidate.
func (d *Dispatcher) buildPayload(ctx context.Context, auto *Automation, candidate TriggerCandidate) (ActionPayload, error) {
	user, err := d.store.GetUserProfile(ctx, candidate.UserID)
	if err != nil {
		return ActionPayload{}, fmt.Errorf("loading user profile: %w", err)
	}

	// Trigger variables: snapshot fields plus client/user identity.
	vars := make(map[string]string, len(candidate.Snapshot.Fields)+4)
	for k, v := range candidate.Snapshot.Fields {
		vars[k] = v
	}
	vars["client_name"] = candidate.Snapshot.Client.Name
	vars["client_email"] = candidate.Snapshot.Client.Email
	vars["user_name"] = user.Name
	vars["user_email"] = user.Email

	return ActionPayload{
		Client:           candidate.Snapshot.Client,
		Automation:       *auto,
		User:             user,
		TriggerVariables: vars,
		ExecutionID:      GenerateID(),
	}, nil
}

// buildRecord assembles the audit record for one attempted execution.
func (d *Dispatcher) buildRecord(executionID string, auto *Automation, candidate TriggerCandidate, spec ActionSpec, result ActionResult) *ExecutionRecord {
	status := StatusFailure
	if result.Success {
		status = StatusSuccess
	}

	metadata := map[string]string{
		"trigger_type": string(candidate.TriggerType),
		"action_type":  string(spec.Type),
	}
	for k, v := range candidate.Snapshot.Fields {
		metadata[k] = v
	}
	if result.Message != "" {
		metadata["message"] = result.Message
	}
	if result.Error != "" {
		metadata["error"] = result.Error
	}

	return &ExecutionRecord{
		ID:           executionID,
		AutomationID: auto.ID,
		EntityID:     candidate.EntityID,
		UserID:       candidate.UserID,
		Status:       status,
		Metadata:     metadata,
		ExecutedAt:   time.Now().UTC(),
	}
}
