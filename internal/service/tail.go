package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// tailRunner runs post-commit side effects.  Each effect gets its own
// goroutine and a context detached from the request, so a slow bus or
// broker never delays the response and a cancelled request never cuts an
// effect short.  Failures are logged and dropped.
type tailRunner struct {
	log     *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func newTailRunner(log *slog.Logger, timeout time.Duration) *tailRunner {
	return &tailRunner{log: log, timeout: timeout}
}

func (t *tailRunner) goEffect(name string, fn func(ctx context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		if err := t.run(ctx, fn); err != nil {
			t.log.Warn("tail_effect_failed", "effect", name, "error", err)
		}
	}()
}

func (t *tailRunner) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (t *tailRunner) wait() { t.wg.Wait() }
