package automation

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// mockMailer records sent emails and can be set to fail.
type mockMailer struct {
	sendErr error

	lastTo      string
	lastSubject string
	lastHTML    string
	lastFrom    string
	sendCount   int
}

func (m *mockMailer) Send(_ context.Context, to, subject, html, from string) (string, error) {
	m.sendCount++
	m.lastTo = to
	m.lastSubject = subject
	m.lastHTML = html
	m.lastFrom = from
	if m.sendErr != nil {
		return "", m.sendErr
	}
	return "msg-123", nil
}

// panickingExecutor always panics; used to test the recover guard.
type panickingExecutor struct{}

func (panickingExecutor) Type() ActionType { return ActionUpdateStatus }
func (panickingExecutor) Execute(context.Context, ActionSpec, ActionPayload) ActionResult {
	panic("boom")
}

func testPayload() ActionPayload {
	return ActionPayload{
		Client: ClientInfo{ID: "client-1", Name: "Acme Ltd", Email: "billing@acme.test"},
		User:   UserProfile{ID: "user-1", Name: "Jo Bloggs", Email: "jo@relay.test"},
		TriggerVariables: map[string]string{
			"client_name":   "Acme Ltd",
			"meeting_title": "Kickoff",
			"meeting_time":  "14:00",
		},
		ExecutionID: "exec-1",
	}
}

func TestRegistry_UnknownTypeNotImplemented(t *testing.T) {
	registry := NewRegistry()

	result := registry.Execute(context.Background(), ActionSpec{Type: ActionCreateInvoice}, testPayload())
	if result.Success {
		t.Error("expected failure for unregistered action type")
	}
	if result.Error != "not implemented" {
		t.Errorf("Error = %q, want %q", result.Error, "not implemented")
	}
}

func TestRegistry_RegisterRejectsUnknownType(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register(NewStubExecutor("launch_rocket"))
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("Register() error = %v, want ErrInvalidAction", err)
	}
}

func TestRegistry_RecoversFromPanic(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(panickingExecutor{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result := registry.Execute(context.Background(), ActionSpec{Type: ActionUpdateStatus}, testPayload())
	if result.Success {
		t.Error("expected failure after panic")
	}
	if !strings.Contains(result.Error, "boom") {
		t.Errorf("Error = %q, want panic message included", result.Error)
	}
}

func TestStubExecutor(t *testing.T) {
	for _, actionType := range []ActionType{ActionCreateInvoice, ActionUpdateStatus, ActionSendNotification} {
		stub := NewStubExecutor(actionType)
		result := stub.Execute(context.Background(), ActionSpec{Type: actionType}, testPayload())
		if result.Success {
			t.Errorf("%s: expected failure", actionType)
		}
		if result.Error != "not implemented" {
			t.Errorf("%s: Error = %q, want %q", actionType, result.Error, "not implemented")
		}
	}
}

func TestEmailExecutor_Success(t *testing.T) {
	mailer := &mockMailer{}
	exec := NewEmailExecutor(mailer)

	spec := ActionSpec{
		Type: ActionSendEmail,
		Name: "Meeting reminder",
		Parameters: map[string]string{
			"subject": "Reminder: {{meeting_title}}",
		},
		Template: "Hello {{client_name}}, your meeting starts at {{meeting_time}}.",
	}

	result := exec.Execute(context.Background(), spec, testPayload())
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	if mailer.sendCount != 1 {
		t.Errorf("sendCount = %d, want 1", mailer.sendCount)
	}
	if mailer.lastTo != "billing@acme.test" {
		t.Errorf("to = %q, want client email", mailer.lastTo)
	}
	if mailer.lastSubject != "Reminder: Kickoff" {
		t.Errorf("subject = %q", mailer.lastSubject)
	}
	if mailer.lastHTML != "Hello Acme Ltd, your meeting starts at 14:00." {
		t.Errorf("body = %q", mailer.lastHTML)
	}
	if result.Data["message_id"] != "msg-123" {
		t.Errorf("message_id = %q", result.Data["message_id"])
	}
}

func TestEmailExecutor_ToParameterOverride(t *testing.T) {
	mailer := &mockMailer{}
	exec := NewEmailExecutor(mailer)

	spec := ActionSpec{
		Type:       ActionSendEmail,
		Parameters: map[string]string{"to": "override@acme.test"},
		Template:   "body",
	}

	result := exec.Execute(context.Background(), spec, testPayload())
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if mailer.lastTo != "override@acme.test" {
		t.Errorf("to = %q, want override", mailer.lastTo)
	}
}

func TestEmailExecutor_DeliveryFailure(t *testing.T) {
	mailer := &mockMailer{sendErr: errors.New("smtp rejected")}
	exec := NewEmailExecutor(mailer)

	spec := ActionSpec{Type: ActionSendEmail, Template: "body"}

	result := exec.Execute(context.Background(), spec, testPayload())
	if result.Success {
		t.Error("expected failure when delivery fails")
	}
	if !strings.Contains(result.Error, "smtp rejected") {
		t.Errorf("Error = %q, want delivery error included", result.Error)
	}
}

func TestEmailExecutor_NoRecipient(t *testing.T) {
	mailer := &mockMailer{}
	exec := NewEmailExecutor(mailer)

	payload := testPayload()
	payload.Client.Email = ""

	result := exec.Execute(context.Background(), ActionSpec{Type: ActionSendEmail}, payload)
	if result.Success {
		t.Error("expected failure without a recipient")
	}
	if mailer.sendCount != 0 {
		t.Error("no send should be attempted without a recipient")
	}
}

func TestEmailExecutor_NilMailer(t *testing.T) {
	exec := NewEmailExecutor(nil)

	result := exec.Execute(context.Background(), ActionSpec{Type: ActionSendEmail}, testPayload())
	if result.Success {
		t.Error("expected failure without a configured mailer")
	}
}
