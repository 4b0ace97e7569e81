// Package notify is the outbound message sink: push notifications for
// deadlines and one-off links for the identity service. Delivery is best
// effort; callers log failures and move on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/legal-desk-backend/internal/config"
	"github.com/aldoetobex/legal-desk-backend/pkg/sanitize"
)

// Message is a single push notification.
type Message struct {
	Title    string
	Body     string
	Priority string // critical | normal
	Tags     []string
	Click    string // optional link opened by the notification
}

// Publisher delivers a message to everyone subscribed to topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
}

const maxBody = 1024

// New picks the push server when NOTIFY_URL is set and the log otherwise.
func New(cfg config.NotifyConfig, log *slog.Logger) Publisher {
	if cfg.URL == "" {
		return LogPublisher{Logger: log}
	}
	return NewHTTPPublisher(cfg.URL, cfg.Token)
}

// HTTPPublisher posts ntfy-style JSON messages to a push server.
type HTTPPublisher struct {
	baseURL string
	token   string
	timeout time.Duration
}

func NewHTTPPublisher(baseURL, token string) *HTTPPublisher {
	return &HTTPPublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: 10 * time.Second,
	}
}

type ntfyPayload struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
	Click    string   `json:"click,omitempty"`
}

// Publish sends msg. Bodies are redacted and truncated before leaving the process.
func (p *HTTPPublisher) Publish(ctx context.Context, topic string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload := ntfyPayload{
		Topic:    topic,
		Title:    msg.Title,
		Message:  sanitize.Summary(sanitize.RedactPII(msg.Body), maxBody),
		Priority: ntfyPriority(msg.Priority),
		Tags:     msg.Tags,
		Click:    msg.Click,
	}

	timeout := p.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	a := fiber.Post(p.baseURL).JSON(payload).Timeout(timeout)
	if p.token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+p.token)
	}
	if err := a.Parse(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errs[0])
	}
	if code >= 300 {
		return fmt.Errorf("notify error: %d | %s", code, string(body))
	}
	return nil
}

func ntfyPriority(p string) int {
	switch p {
	case "critical":
		return 5
	case "normal":
		return 3
	default:
		return 3
	}
}

// LogPublisher writes messages to the log instead of delivering them.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, topic string, msg Message) error {
	p.Logger.Info("notification",
		"topic", topic,
		"title", msg.Title,
		"priority", msg.Priority,
		"body", sanitize.RedactPII(msg.Body),
	)
	return nil
}

// UserTopic is the private topic of a single user.
func UserTopic(base, userID string) string {
	return base + "-" + userID
}
