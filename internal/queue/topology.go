// Package queue carries notification jobs over RabbitMQ.  The API side
// enqueues jobs through Dispatcher; the worker process consumes them with
// Worker, which parks failed jobs on a retry queue that dead-letters back
// into the main queue once its fixed TTL runs out.  There is one retry
// queue per delay: RabbitMQ only expires messages at the head of a queue,
// so mixing delays in one queue would hold short delays behind long ones.
package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names.  Retry queues are named RetryQueue plus the delay in
// milliseconds, see RetryQueueFor.
const (
	JobsQueue   = "notifications"
	RetryQueue  = "notifications.retry"
	FailedQueue = "notifications.failed"
)

// Message headers carrying the retry policy of a job.
const (
	HeaderAttempts  = "x-attempts"
	HeaderBackoffMS = "x-backoff-ms"
	HeaderAttempt   = "x-attempt"
	HeaderError     = "x-error"
)

// channel is the subset of *amqp.Channel the dispatcher and worker use.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// declareTopology declares the jobs and failed queues.  Declarations are
// idempotent so both processes run it on every (re)connect.
func declareTopology(ch channel) error {
	for _, q := range []string{JobsQueue, FailedQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", q, err)
		}
	}
	return nil
}

// RetryQueueFor names the retry queue that holds messages for delay.
func RetryQueueFor(delay time.Duration) string {
	return RetryQueue + "." + strconv.FormatInt(delay.Milliseconds(), 10)
}

// declareRetryQueue declares the retry queue for delay and returns its
// name.  Every message in it expires after the same TTL and goes back to
// the jobs queue through the default exchange.
func declareRetryQueue(ch channel, delay time.Duration) (string, error) {
	name := RetryQueueFor(delay)
	args := amqp.Table{
		"x-message-ttl":             delay.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": JobsQueue,
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return "", fmt.Errorf("declare %s: %w", name, err)
	}
	return name, nil
}

// headerInt reads an integer header.  AMQP tables decode integers with
// the width they were encoded with, so every numeric type is accepted.
func headerInt(h amqp.Table, key string, def int) int {
	switch v := h[key].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
