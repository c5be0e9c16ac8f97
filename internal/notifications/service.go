package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"curator/internal/config"
)

const userAgent = "Curator/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyClassified(ctx context.Context, filename, suggestedPath string, confidence int) error
	NotifyOrganized(ctx context.Context, filename, destination string) error
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
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		classification: cfg.Notifications.Classification,
		organization:   cfg.Notifications.Organization,
		errors:         cfg.Notifications.Errors,
		dedupWindow:    time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		now:            time.Now,
		recent:         make(map[string]time.Time),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	classification bool
	organization   bool
	errors         bool

	dedupWindow time.Duration
	now         func() time.Time
	mu          sync.Mutex
	recent      map[string]time.Time
}

func (n *ntfyService) NotifyClassified(ctx context.Context, filename, suggestedPath string, confidence int) error {
	if !n.classification {
		return nil
	}
	data := payload{
		title:   "Curator - Classified",
		message: fmt.Sprintf("%s -> %s (confidence %d)", strings.TrimSpace(filename), strings.TrimSpace(suggestedPath), confidence),
		tags:    []string{"curator", "classify", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyOrganized(ctx context.Context, filename, destination string) error {
	if !n.organization {
		return nil
	}
	filename = strings.TrimSpace(filename)
	message := fmt.Sprintf("Added to library: %s", filename)
	if destination = strings.TrimSpace(destination); destination != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, destination)
	}
	data := payload{
		title:   "Curator - Library Updated",
		message: message,
		tags:    []string{"curator", "library", "added"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, filename, message string) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:    "Curator - Job Failed",
		message:  fmt.Sprintf("Failed: %s\n%s", strings.TrimSpace(filename), strings.TrimSpace(message)),
		tags:     []string{"curator", "error", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
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
		title:    "Curator - Error",
		message:  builder.String(),
		tags:     []string{"curator", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Curator - Test",
		message:  "Notification system test",
		tags:     []string{"curator", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

// suppressed reports whether an identical notification fired inside the
// dedup window, recording this one otherwise.
func (n *ntfyService) suppressed(data payload) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	key := data.title + "\x00" + data.message
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.recent[key]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	n.recent[key] = now
	for k, at := range n.recent {
		if now.Sub(at) >= n.dedupWindow {
			delete(n.recent, k)
		}
	}
	return false
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if n.suppressed(data) {
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

func (noopService) NotifyClassified(context.Context, string, string, int) error { return nil }
func (noopService) NotifyOrganized(context.Context, string, string) error       { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error       { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
