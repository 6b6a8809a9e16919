package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

// DefaultPolicy is the retry policy stamped on jobs when none is given.
var DefaultPolicy = model.RetryPolicy{Attempts: 3, Backoff: 5 * time.Second}

// Dispatcher enqueues notification jobs as persistent messages on the
// jobs queue.  The broker connection is opened on first use and reopened
// on the next call after any publish failure, so a broker outage only
// fails the jobs enqueued while it lasts.
type Dispatcher struct {
	url    string
	policy model.RetryPolicy
	log    *slog.Logger
	open   func(url string) (channel, func(), error)

	mu      sync.Mutex
	ch      channel
	release func()
}

// NewDispatcher returns a dispatcher for the broker at url.  A policy with
// non-positive fields falls back to DefaultPolicy.
func NewDispatcher(url string, policy model.RetryPolicy, log *slog.Logger) *Dispatcher {
	if policy.Attempts < 1 {
		policy.Attempts = DefaultPolicy.Attempts
	}
	if policy.Backoff <= 0 {
		policy.Backoff = DefaultPolicy.Backoff
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{url: url, policy: policy, log: log, open: dialChannel}
}

func dialChannel(url string) (channel, func(), error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, func() { _ = ch.Close(); _ = conn.Close() }, nil
}

// Enqueue publishes a job of the given type.  The returned handle names
// the job id and the queue it was written to.
func (d *Dispatcher) Enqueue(ctx context.Context, jobType string, payload map[string]any) (model.JobHandle, error) {
	job := model.NotificationJob{
		ID:         uuid.NewString(),
		Type:       jobType,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(job)
	if err != nil {
		return model.JobHandle{}, fmt.Errorf("marshal job: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Type:         jobType,
		Timestamp:    job.EnqueuedAt,
		Headers: amqp.Table{
			HeaderAttempts:  int32(d.policy.Attempts),
			HeaderBackoffMS: int64(d.policy.Backoff / time.Millisecond),
			HeaderAttempt:   int32(1),
		},
		Body: body,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	ch, err := d.channelLocked()
	if err != nil {
		return model.JobHandle{}, err
	}
	if err := ch.PublishWithContext(ctx, "", JobsQueue, false, false, msg); err != nil {
		d.resetLocked()
		return model.JobHandle{}, fmt.Errorf("publish job: %w", err)
	}
	d.log.Debug("notification_enqueued", "job_id", job.ID, "type", jobType)
	return model.JobHandle{ID: job.ID, Queue: JobsQueue}, nil
}

func (d *Dispatcher) channelLocked() (channel, error) {
	if d.ch != nil {
		return d.ch, nil
	}
	ch, release, err := d.open(d.url)
	if err != nil {
		return nil, err
	}
	if err := declareTopology(ch); err != nil {
		release()
		return nil, err
	}
	d.ch, d.release = ch, release
	return ch, nil
}

func (d *Dispatcher) resetLocked() {
	if d.release != nil {
		d.release()
	}
	d.ch, d.release = nil, nil
}

// Close releases the broker connection, if one is open.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}
