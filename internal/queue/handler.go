package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

// Handler executes one notification job.  A returned error makes the
// worker retry the job according to its policy.
type Handler interface {
	Handle(ctx context.Context, job model.NotificationJob) error
}

// EventPublisher is the bus the notifier announces deliveries on.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Notifier is the production Handler.  It records each job in an
// append-only log file, pushes it onto the feed of every recipient and
// announces it on the bus as notification.sent.
type Notifier struct {
	LogPath string
	Feed    *Feed
	Events  EventPublisher
	Log     *slog.Logger
	Now     func() time.Time

	mu sync.Mutex
}

// DefaultLogPath is where the notifier appends job records.
var DefaultLogPath = filepath.Join("logs", "notifications.log")

func (n *Notifier) now() time.Time {
	if n.Now != nil {
		return n.Now().UTC()
	}
	return time.Now().UTC()
}

// Handle implements Handler.
func (n *Notifier) Handle(ctx context.Context, job model.NotificationJob) error {
	sentAt := n.now()
	if err := n.appendLog(job, sentAt); err != nil {
		return err
	}
	if n.Feed != nil {
		entry := FeedEntry{Type: job.Type, Payload: job.Payload, SentAt: sentAt.Format(time.RFC3339)}
		for _, id := range Recipients(job.Payload) {
			if err := n.Feed.Push(ctx, id, entry); err != nil {
				return err
			}
		}
	}
	if n.Events != nil {
		ev := model.NotificationSentEvent{Type: job.Type, Payload: job.Payload, SentAt: sentAt}
		if err := n.Events.Publish(ctx, model.TopicNotificationSent, ev); err != nil && n.Log != nil {
			// the job itself succeeded; a lost announcement is not retried
			n.Log.Warn("notification_announce_failed", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

func (n *Notifier) appendLog(job model.NotificationJob, at time.Time) error {
	path := n.LogPath
	if path == "" {
		path = DefaultLogPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	line := fmt.Sprintf("[%s] Notification sent | type=%s | job_id=%s | payload=%s\n",
		at.Format(time.RFC3339), job.Type, job.ID, payload)

	n.mu.Lock()
	defer n.mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// Recipients returns the user ids listed under the payload's "recipients"
// key, in order and without duplicates or blanks.
func Recipients(payload map[string]any) []string {
	var ids []string
	switch v := payload["recipients"].(type) {
	case []string:
		ids = v
	case []any:
		for _, x := range v {
			if s, ok := x.(string); ok {
				ids = append(ids, s)
			}
		}
	case string:
		ids = []string{v}
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
