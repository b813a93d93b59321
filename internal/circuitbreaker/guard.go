// v3
// internal/circuitbreaker/guard.go
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of kafka.Writer a guard wraps.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// PublishGuard retries writes through a Breaker. A nil guard passes writes
// straight through.
type PublishGuard struct {
	brk      *Breaker
	attempts int
	timeout  time.Duration
	backoff  time.Duration
}

// NewPublishGuard builds a guard from the shared breaker config. It returns
// nil when the policy is disabled.
func NewPublishGuard(name string, cfg Config, policy PublishPolicy, opts ...Option) (*PublishGuard, error) {
	if !policy.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if policy.AttemptTimeout < 0 || policy.Backoff < 0 {
		return nil, errors.New("publish timeout and backoff must not be negative")
	}
	return &PublishGuard{
		brk:      New(name, cfg, nil, opts...),
		attempts: cfg.MaxFailures,
		timeout:  policy.AttemptTimeout,
		backoff:  policy.Backoff,
	}, nil
}

// Breaker exposes the underlying breaker.
func (g *PublishGuard) Breaker() *Breaker {
	if g == nil {
		return nil
	}
	return g.brk
}

// Attempts is the number of tries a single write gets before failing.
func (g *PublishGuard) Attempts() int {
	if g == nil {
		return 1
	}
	return g.attempts
}

// Do runs op until it succeeds, the attempts run out or ctx ends. A fast
// failure from an open breaker spends an attempt like any other error.
func (g *PublishGuard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if g == nil {
		return op(ctx)
	}
	tries := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tries++
		err := g.attempt(ctx, op)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tries >= g.attempts {
			return err
		}
		if err := g.sleep(ctx); err != nil {
			return err
		}
	}
}

func (g *PublishGuard) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if g.timeout <= 0 {
		return g.brk.Execute(ctx, op)
	}
	actx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.brk.Execute(actx, op)
}

func (g *PublishGuard) sleep(ctx context.Context) error {
	if g.backoff <= 0 {
		return nil
	}
	t := time.NewTimer(g.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GuardedWriter routes WriteMessages through a PublishGuard.
type GuardedWriter struct {
	inner MessageWriter
	guard *PublishGuard
}

func NewGuardedWriter(inner MessageWriter, guard *PublishGuard) *GuardedWriter {
	return &GuardedWriter{inner: inner, guard: guard}
}

func (w *GuardedWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w == nil || w.inner == nil {
		return errors.New("nil kafka writer")
	}
	return w.guard.Do(ctx, func(c context.Context) error {
		return w.inner.WriteMessages(c, msgs...)
	})
}
