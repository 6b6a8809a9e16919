package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

const (
	minReconnect = time.Second
	maxReconnect = 30 * time.Second
)

// Worker consumes the jobs queue and runs each job through a Handler.
// Every delivery is acknowledged once its outcome is recorded: success,
// a scheduled retry on the retry queue for its delay, or a final record on
// the failed queue.  A delivery is requeued only when that bookkeeping itself fails.
type Worker struct {
	url      string
	handler  Handler
	policy   model.RetryPolicy
	log      *slog.Logger
	prefetch int
}

// NewWorker returns a worker for the broker at url.  policy applies to
// messages that carry no retry headers.
func NewWorker(url string, h Handler, policy model.RetryPolicy, log *slog.Logger) *Worker {
	if policy.Attempts < 1 {
		policy.Attempts = DefaultPolicy.Attempts
	}
	if policy.Backoff <= 0 {
		policy.Backoff = DefaultPolicy.Backoff
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{url: url, handler: h, policy: policy, log: log, prefetch: 50}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with a doubling backoff whenever the connection drops.
func (w *Worker) Run(ctx context.Context) error {
	backoff := minReconnect
	for {
		conn, err := amqp.Dial(w.url)
		if err != nil {
			w.log.Warn("worker_dial_failed", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = minReconnect

		err = w.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.log.Warn("worker_consume_ended", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnect {
		d = maxReconnect
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (w *Worker) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		w.log.Warn("worker_qos_failed", "error", err)
	}
	if err := declareTopology(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(JobsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	w.log.Info("worker_consuming", "queue", JobsQueue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := w.process(ctx, ch, d.Body, d.Headers); err != nil {
				w.log.Error("worker_bookkeeping_failed", "message_id", d.MessageId, "error", err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// process runs one delivery and records its outcome.  A nil return means
// the delivery can be acknowledged.
func (w *Worker) process(ctx context.Context, ch channel, body []byte, headers amqp.Table) error {
	if headers == nil {
		headers = amqp.Table{}
	}
	var job model.NotificationJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.log.Error("notification_malformed", "error", err)
		return w.forward(ctx, ch, FailedQueue, body, withError(headers, err))
	}

	attempt := headerInt(headers, HeaderAttempt, 1)
	policy := model.RetryPolicy{
		Attempts: headerInt(headers, HeaderAttempts, w.policy.Attempts),
		Backoff:  time.Duration(headerInt(headers, HeaderBackoffMS, int(w.policy.Backoff/time.Millisecond))) * time.Millisecond,
	}

	err := w.handler.Handle(ctx, job)
	if err == nil {
		w.log.Info("notification_sent", "job_id", job.ID, "type", job.Type, "attempt", attempt)
		return nil
	}

	if attempt < policy.Attempts {
		delay := policy.Delay(attempt)
		next := copyTable(headers)
		next[HeaderAttempt] = int32(attempt + 1)
		retryQueue, derr := declareRetryQueue(ch, delay)
		if derr != nil {
			return derr
		}
		w.log.Warn("notification_retry_scheduled", "job_id", job.ID, "type", job.Type,
			"attempt", attempt, "delay", delay.String(), "queue", retryQueue, "error", err)
		return w.forward(ctx, ch, retryQueue, body, next)
	}

	w.log.Error("notification_failed", "job_id", job.ID, "type", job.Type, "attempts", attempt, "error", err)
	return w.forward(ctx, ch, FailedQueue, body, withError(headers, err))
}

func (w *Worker) forward(ctx context.Context, ch channel, queue string, body []byte, headers amqp.Table) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

func copyTable(t amqp.Table) amqp.Table {
	out := make(amqp.Table, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	return out
}

func withError(t amqp.Table, err error) amqp.Table {
	out := copyTable(t)
	out[HeaderError] = err.Error()
	return out
}
