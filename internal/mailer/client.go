package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/relayhq/relay-core/internal/infrastructure/config"
)

var (
	// ErrNotConfigured indicates no delivery endpoint is configured.
	ErrNotConfigured = errors.New("mailer not configured")

	// ErrDeliveryFailed indicates the provider rejected the message.
	ErrDeliveryFailed = errors.New("email delivery failed")
)

// maxErrorBodyBytes bounds how much of a provider error response is
// read back for diagnostics.
const maxErrorBodyBytes = 2048

// httpDoer is satisfied by *http.Client.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends email through an HTTP JSON delivery API.
type Client struct {
	endpoint    string
	apiKey      string
	fromAddress string
	fromName    string
	httpClient  httpDoer
}

// message is the request body posted to the delivery endpoint.
type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// deliveryResponse is the provider's acknowledgement.
type deliveryResponse struct {
	MessageID string `json:"message_id"`
	ID        string `json:"id"`
}

// NewClient creates a mail client from configuration.
func NewClient(cfg config.MailerConfig) *Client {
	return &Client{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		httpClient:  &http.Client{Timeout: cfg.GetTimeout()},
	}
}

// Send posts one message to the delivery endpoint.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//   - to: Recipient address
//   - subject: Message subject
//   - html: HTML message body
//   - from: Sender; the configured default sender is used when empty
//
// Returns:
//   - string: Provider-assigned message identifier (may be empty if
//     the provider does not return one)
//   - error: ErrNotConfigured, ErrDeliveryFailed (wrapped with the
//     provider's status and response), or a transport error
func (c *Client) Send(ctx context.Context, to, subject, html, from string) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}
	if to == "" {
		return "", fmt.Errorf("%w: no recipient", ErrDeliveryFailed)
	}
	if from == "" {
		from = c.defaultSender()
	}

	body, err := json.Marshal(message{
		From:    from,
		To:      to,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf("%w: provider returned %d: %s",
			ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var ack deliveryResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&ack); decodeErr != nil {
		// Accepted but unparseable acknowledgement; the send succeeded.
		return "", nil
	}
	if ack.MessageID != "" {
		return ack.MessageID, nil
	}
	return ack.ID, nil
}

// defaultSender formats the configured sender as "Name <address>".
func (c *Client) defaultSender() string {
	if c.fromName == "" {
		return c.fromAddress
	}
	return fmt.Sprintf("%s <%s>", c.fromName, c.fromAddress)
}
