// Package mailer sends transactional email through the SendGrid v3 API.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// DefaultHost is the public SendGrid API host.
const DefaultHost = "https://api.sendgrid.com"

// DefaultTimeout bounds one send when Config.Timeout is unset. The SendGrid
// client's default HTTP client has no timeout of its own.
const DefaultTimeout = 15 * time.Second

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("mailer: api key not configured")

type Config struct {
	APIKey    string
	Host      string // Optional: overrides DefaultHost (tests, EU data residency)
	FromEmail string
	FromName  string
	Timeout   time.Duration // Optional: defaults to DefaultTimeout
}

// Message is one templated email to one recipient.
type Message struct {
	ToEmail    string
	ToName     string
	TemplateID string
	Data       map[string]any
	Categories []string
}

// Receipt describes an accepted send.
type Receipt struct {
	StatusCode int
	MessageID  string
}

// SendError is returned when the provider rejects a send.
type SendError struct {
	StatusCode int
	Messages   []string
}

func (e *SendError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("mailer: send failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("mailer: send failed with status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// Dispatcher sends templated mail. It holds no state besides configuration.
type Dispatcher struct {
	cfg Config
}

func New(cfg Config) *Dispatcher {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Dispatcher{cfg: cfg}
}

// Enabled reports whether an API key is configured.
func (d *Dispatcher) Enabled() bool {
	return d.cfg.APIKey != ""
}

// Send issues a single POST /v3/mail/send. There is no retry.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (Receipt, error) {
	if !d.Enabled() {
		return Receipt{}, ErrNotConfigured
	}
	if msg.ToEmail == "" {
		return Receipt{}, errors.New("mailer: recipient is required")
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(d.cfg.FromName, d.cfg.FromEmail))
	if msg.TemplateID != "" {
		m.SetTemplateID(msg.TemplateID)
	}

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.ToEmail))
	for key, value := range msg.Data {
		p.SetDynamicTemplateData(key, value)
	}
	m.AddPersonalizations(p)
	if len(msg.Categories) > 0 {
		m.AddCategories(msg.Categories...)
	}

	request := sendgrid.GetRequest(d.cfg.APIKey, "/v3/mail/send", d.cfg.Host)
	request.Method = http.MethodPost
	request.Body = mail.GetRequestBody(m)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return Receipt{}, fmt.Errorf("mailer: failed to send request: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return Receipt{}, &SendError{
			StatusCode: response.StatusCode,
			Messages:   parseErrorMessages(response.Body),
		}
	}

	receipt := Receipt{StatusCode: response.StatusCode}
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		receipt.MessageID = ids[0]
	}
	return receipt, nil
}

func parseErrorMessages(body string) []string {
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
			Field   string `json:"field"`
		} `json:"errors"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil
	}

	out := make([]string, 0, len(payload.Errors))
	for _, e := range payload.Errors {
		if e.Field != "" {
			out = append(out, e.Field+": "+e.Message)
			continue
		}
		out = append(out, e.Message)
	}
	return out
}
