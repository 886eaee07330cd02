package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"veriscope/internal/config"
)

const userAgent = "Veriscope/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyJobQueued(ctx context.Context, filename string, jobID int64) error
	NotifyJobCompleted(ctx context.Context, filename string, label string, score float64) error
	NotifyJobFailed(ctx context.Context, filename, message string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		sendQueued:    cfg.Notifications.JobQueued,
		sendCompleted: cfg.Notifications.JobCompleted,
		sendErrors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	sendQueued    bool
	sendCompleted bool
	sendErrors    bool
}

func (n *ntfyService) NotifyJobQueued(ctx context.Context, filename string, jobID int64) error {
	if !n.sendQueued {
		return nil
	}
	filename = strings.TrimSpace(filename)
	data := payload{
		title:   "Veriscope - Job Queued",
		message: fmt.Sprintf("Queued for analysis: %s (job %d)", filename, jobID),
		tags:    []string{"veriscope", "job", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, filename string, label string, score float64) error {
	if !n.sendCompleted {
		return nil
	}
	filename = strings.TrimSpace(filename)
	label = strings.TrimSpace(label)
	if label == "" {
		label = "unknown"
	}
	data := payload{
		title:    "Veriscope - Analysis Complete",
		message:  fmt.Sprintf("Verdict for %s: %s (score %.2f)", filename, label, score),
		tags:     []string{"veriscope", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, filename, message string) error {
	if !n.sendErrors {
		return nil
	}
	filename = strings.TrimSpace(filename)
	message = strings.TrimSpace(message)
	if message == "" {
		message = "failed without error detail"
	}
	data := payload{
		title:    "Veriscope - Analysis Failed",
		message:  fmt.Sprintf("Analysis failed for %s: %s", filename, message),
		tags:     []string{"veriscope", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.sendErrors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Veriscope - Error",
		message:  builder.String(),
		tags:     []string{"veriscope", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Veriscope - Test",
		message:  "Notification system test",
		tags:     []string{"veriscope", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobQueued(context.Context, string, int64) error              { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, string, float64) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error             { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
