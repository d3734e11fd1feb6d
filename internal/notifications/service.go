// Package notifications publishes pipeline events to ntfy when configured.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"revoice/internal/config"
)

const userAgent = "Revoice-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyBatchStarted(ctx context.Context, count int) error
	NotifyBatchCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyFileCompleted(ctx context.Context, displayName string) error
	NotifyFileFailed(ctx context.Context, displayName, stage, message string) error
	NotifyReviewWaiting(ctx context.Context, count int) error
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		batch:    cfg.Notifications.Batch,
		review:   cfg.Notifications.Review,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	batch    bool
	review   bool
	errors   bool
}

func (n *ntfyService) NotifyBatchStarted(ctx context.Context, count int) error {
	if !n.batch {
		return nil
	}
	data := payload{
		title:   "Revoice - Batch Started",
		message: fmt.Sprintf("Started processing %d files", count),
		tags:    []string{"revoice", "batch", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.batch {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Revoice - Batch Complete"
		message = fmt.Sprintf("Batch complete: %d files processed in %s", processed, durationText)
	} else {
		title = "Revoice - Batch Complete (with errors)"
		message = fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"revoice", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFileCompleted(ctx context.Context, displayName string) error {
	if !n.batch {
		return nil
	}
	data := payload{
		title:   "Revoice - File Complete",
		message: fmt.Sprintf("Audio ready: %s", strings.TrimSpace(displayName)),
		tags:    []string{"revoice", "file", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFileFailed(ctx context.Context, displayName, stage, message string) error {
	if !n.errors {
		return nil
	}
	displayName = strings.TrimSpace(displayName)
	stage = strings.TrimSpace(stage)
	detail := strings.TrimSpace(message)
	if detail == "" {
		detail = "unknown error"
	}
	body := fmt.Sprintf("Failed: %s", displayName)
	if stage != "" {
		body = fmt.Sprintf("%s (%s)", body, stage)
	}
	body = fmt.Sprintf("%s\n%s", body, detail)
	data := payload{
		title:    "Revoice - File Failed",
		message:  body,
		tags:     []string{"revoice", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewWaiting(ctx context.Context, count int) error {
	if !n.review {
		return nil
	}
	data := payload{
		title:   "Revoice - Review Waiting",
		message: fmt.Sprintf("%d files waiting for review", count),
		tags:    []string{"revoice", "review", "waiting"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Revoice - Test",
		message:  "Notification system test",
		tags:     []string{"revoice", "test"},
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

func (noopService) NotifyBatchStarted(context.Context, int) error                       { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyFileCompleted(context.Context, string) error                   { return nil }
func (noopService) NotifyFileFailed(context.Context, string, string, string) error      { return nil }
func (noopService) NotifyReviewWaiting(context.Context, int) error                      { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
