package automation

import (
	"context"
	"fmt"
)

// Logger defines the logging interface used throughout the engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Executor performs one side effect for a single action type.
//
// Contract: an executor must never panic; all failures surface as
// ActionResult.Success=false with a human-readable message. The side
// effect is attempted at most once per invocation — idempotency across
// invocations is the dispatcher's job, not the executor's.
type Executor interface {
	// Type returns the action type this executor handles.
	Type() ActionType

	// Execute performs the side effect described by spec with the
	// given payload. Must respect ctx cancellation on external calls.
	Execute(ctx context.Context, spec ActionSpec, payload ActionPayload) ActionResult
}

// Registry maps action types to their executors.
//
// The action type set is closed (see AllActionTypes); Register rejects
// types outside it, and Execute returns a "not implemented" failure
// for any type without a registered executor so the dispatcher can
// still write a failure record.
//
// All public methods are thread-safe once registration is complete;
// register executors during startup, before the first scan.
type Registry struct {
	executors map[ActionType]Executor
	logger    Logger
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[ActionType]Executor, len(AllActionTypes())),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Register adds an executor for its declared action type.
// Registering a second executor for the same type replaces the first.
func (r *Registry) Register(exec Executor) error {
	if exec == nil {
		return fmt.Errorf("%w: nil executor", ErrInvalidAction)
	}
	if err := validateActionType(exec.Type()); err != nil {
		return err
	}
	r.executors[exec.Type()] = exec
	return nil
}

// Execute invokes the executor for the spec's action type.
//
// Guarantees a total function: unknown or unregistered types return
// a not-implemented failure, and a panicking executor is recovered
// and converted into a failure result. Execute never panics.
func (r *Registry) Execute(ctx context.Context, spec ActionSpec, payload ActionPayload) (result ActionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("executor panic recovered",
				"action_type", spec.Type,
				"execution_id", payload.ExecutionID,
				"panic", rec,
			)
			result = ActionResult{
				Success: false,
				Message: "action execution panicked",
				Error:   fmt.Sprintf("panic: %v", rec),
			}
		}
	}()

	exec, ok := r.executors[spec.Type]
	if !ok {
		return notImplementedResult(spec.Type)
	}

	return exec.Execute(ctx, spec, payload)
}

// validateActionType checks an action type against the closed set.
func validateActionType(t ActionType) error {
	if _, ok := validActionTypes[t]; !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, t)
	}
	return nil
}

// notImplementedResult is the mandated placeholder outcome for action
// types without a working executor.
func notImplementedResult(t ActionType) ActionResult {
	return ActionResult{
		Success: false,
		Message: fmt.Sprintf("action type %q is not implemented", t),
		Error:   "not implemented",
	}
}

// ─── Email Executor ─────────────────────────────────────────────────────────

// Mailer is the email-delivery collaborator consumed by the send_email
// executor. Implemented by the mailer package's HTTP client.
type Mailer interface {
	// Send delivers one email. from may be empty, in which case the
	// implementation's configured sender is used. Returns the provider's
	// message ID.
	Send(ctx context.Context, to, subject, html, from string) (string, error)
}

// EmailExecutor implements the send_email action type.
//
// It renders the spec's subject parameter and template body with the
// payload's trigger variables, then hands the result to the mailer.
// The recipient defaults to the client's email address; a "to"
// parameter (itself templated) overrides it.
type EmailExecutor struct {
	mailer Mailer
}

// NewEmailExecutor creates the send_email executor.
func NewEmailExecutor(mailer Mailer) *EmailExecutor {
	return &EmailExecutor{mailer: mailer}
}

// Type returns ActionSendEmail.
func (e *EmailExecutor) Type() ActionType {
	return ActionSendEmail
}

// Execute renders and sends one email. All failures surface in the
// result; Execute never panics.
func (e *EmailExecutor) Execute(ctx context.Context, spec ActionSpec, payload ActionPayload) ActionResult {
	if e.mailer == nil {
		return ActionResult{
			Success: false,
			Message: "email delivery is not configured",
			Error:   "mailer unavailable",
		}
	}

	vars := payload.TriggerVariables
	params := RenderAll(spec.Parameters, vars)

	to := params["to"]
	if to == "" {
		to = payload.Client.Email
	}
	if to == "" {
		return ActionResult{
			Success: false,
			Message: "no recipient address available",
			Error:   "missing recipient",
		}
	}

	subject := params["subject"]
	if subject == "" {
		subject = spec.Name
	}

	body := Render(spec.Template, vars)

	id, err := e.mailer.Send(ctx, to, subject, body, params["from"])
	if err != nil {
		return ActionResult{
			Success: false,
			Message: fmt.Sprintf("email delivery to %s failed", to),
			Error:   err.Error(),
		}
	}

	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("email sent to %s", to),
		Data:    map[string]string{"message_id": id},
	}
}

// ─── Stub Executors ─────────────────────────────────────────────────────────

// StubExecutor is a placeholder for action types without a working
// implementation yet. It always returns a not-implemented failure so
// the dispatcher records an auditable outcome instead of crashing.
type StubExecutor struct {
	actionType ActionType
}

// NewStubExecutor creates a placeholder executor for the given type.
func NewStubExecutor(t ActionType) *StubExecutor {
	return &StubExecutor{actionType: t}
}

// Type returns the stubbed action type.
func (s *StubExecutor) Type() ActionType {
	return s.actionType
}

// Execute returns the mandated not-implemented failure.
func (s *StubExecutor) Execute(_ context.Context, _ ActionSpec, _ ActionPayload) ActionResult {
	return notImplementedResult(s.actionType)
}
