package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *capturePublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func newFeed(t *testing.T) (*miniredis.Miniredis, *Feed) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewFeed(rdb)
}

func TestNotifier_Handle(t *testing.T) {
	_, feed := newFeed(t)
	pub := &capturePublisher{}
	logPath := filepath.Join(t.TempDir(), "logs", "notifications.log")
	sent := time.Date(2030, 1, 1, 9, 30, 0, 0, time.UTC)
	n := &Notifier{LogPath: logPath, Feed: feed, Events: pub, Log: quietLogger(), Now: func() time.Time { return sent }}

	job := model.NotificationJob{
		ID:   "job-1",
		Type: model.JobBookingCreated,
		Payload: map[string]any{
			"bookingId":  "bk-1",
			"recipients": []any{"rider-1", "driver-1", "rider-1"},
		},
	}
	if err := n.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "type=booking.created") || !strings.Contains(line, "job_id=job-1") || !strings.HasSuffix(line, "\n") {
		t.Errorf("unexpected log line %q", line)
	}

	for _, id := range []string{"rider-1", "driver-1"} {
		entries, err := feed.Recent(context.Background(), id)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Type != model.JobBookingCreated || entries[0].SentAt != "2030-01-01T09:30:00Z" {
			t.Errorf("%s: unexpected feed %+v", id, entries)
		}
	}

	if len(pub.topics) != 1 || pub.topics[0] != model.TopicNotificationSent {
		t.Fatalf("expected notification.sent, got %v", pub.topics)
	}
	ev := pub.events[0].(model.NotificationSentEvent)
	if ev.Type != model.JobBookingCreated || !ev.SentAt.Equal(sent) {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestNotifier_AnnounceFailureIsNotRetried(t *testing.T) {
	n := &Notifier{
		LogPath: filepath.Join(t.TempDir(), "n.log"),
		Events:  &capturePublisher{err: errors.New("bus down")},
		Log:     quietLogger(),
	}
	if err := n.Handle(context.Background(), model.NotificationJob{ID: "j", Type: "x"}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestNotifier_FeedFailureIsRetried(t *testing.T) {
	mr, feed := newFeed(t)
	mr.Close()
	n := &Notifier{LogPath: filepath.Join(t.TempDir(), "n.log"), Feed: feed, Log: quietLogger()}

	job := model.NotificationJob{ID: "j", Type: "x", Payload: map[string]any{"recipients": []string{"u1"}}}
	if err := n.Handle(context.Background(), job); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}

func TestFeed_TrimsToLength(t *testing.T) {
	mr, feed := newFeed(t)
	ctx := context.Background()
	for i := 0; i < FeedLength+7; i++ {
		if err := feed.Push(ctx, "u1", FeedEntry{Type: fmt.Sprintf("t%d", i)}); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}
	list, err := mr.List(FeedKey("u1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != FeedLength {
		t.Errorf("expected %d entries, got %d", FeedLength, len(list))
	}
	entries, _ := feed.Recent(ctx, "u1")
	if entries[0].Type != fmt.Sprintf("t%d", FeedLength+6) {
		t.Errorf("expected newest first, got %s", entries[0].Type)
	}
}

func TestRecipients(t *testing.T) {
	cases := []struct {
		payload map[string]any
		want    string
	}{
		{map[string]any{"recipients": []string{"a", "b", "a", ""}}, "a,b"},
		{map[string]any{"recipients": []any{"a", 3, "c"}}, "a,c"},
		{map[string]any{"recipients": "solo"}, "solo"},
		{map[string]any{}, ""},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := strings.Join(Recipients(tc.payload), ","); got != tc.want {
			t.Errorf("Recipients(%v) = %q, want %q", tc.payload, got, tc.want)
		}
	}
}
