package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	minResubscribe = time.Second
	maxResubscribe = 30 * time.Second
)

// Subscriber forwards Redis pub/sub messages on a fixed topic set to a
// Hub.  When the subscription breaks it resubscribes with a doubling
// backoff; messages published in the gap are lost.
type Subscriber struct {
	rdb    *redis.Client
	topics []string
	hub    *Hub
	log    *slog.Logger

	// minBackoff is the first resubscribe delay.
	minBackoff time.Duration
}

func NewSubscriber(rdb *redis.Client, hub *Hub, topics []string, log *slog.Logger) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{rdb: rdb, topics: topics, hub: hub, log: log, minBackoff: minResubscribe}
}

// Run subscribes and forwards until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := s.minBackoff
	for {
		err := s.session(ctx, func() { backoff = s.minBackoff })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("bus_subscription_lost", "error", err, "retry_in", backoff.String())
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
		if backoff > maxResubscribe {
			backoff = maxResubscribe
		}
	}
}

// session runs one subscription until it fails.  onReady is called once
// the subscription is confirmed by the server.
func (s *Subscriber) session(ctx context.Context, onReady func()) error {
	ps := s.rdb.Subscribe(ctx, s.topics...)
	defer ps.Close()

	// a blocked read does not observe ctx; closing the subscription
	// unblocks it
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ps.Close()
		case <-stop:
		}
	}()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	onReady()
	s.log.Info("bus_subscribed", "topics", s.topics)

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		s.hub.Broadcast(msg.Channel, []byte(msg.Payload))
	}
}
