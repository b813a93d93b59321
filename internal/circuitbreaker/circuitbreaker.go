// v1
// internal/circuitbreaker/circuitbreaker.go
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// StateListener observes transitions, e.g. to export them as a gauge.
type StateListener func(name string, from, to State)

type Breaker struct {
	name     string
	cfg      Config
	logger   *slog.Logger
	listener StateListener
	now      func() time.Time

	mu          sync.Mutex
	state       State
	recentFails int
	successes   int
	openedAt    time.Time

	probe func(ctx context.Context) error
}

// Option customizes a Breaker.
type Option func(*Breaker)

func WithLogger(l *slog.Logger) Option {
	return func(b *Breaker) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithStateListener(fn StateListener) Option {
	return func(b *Breaker) { b.listener = fn }
}

func New(name string, cfg Config, probe func(ctx context.Context) error, opts ...Option) *Breaker {
	cfg = cfg.withDefaults()
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		state:  Closed,
		probe:  probe,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(slog.String("breaker", name))
	b.logger.Info("breaker_created", slog.Int("maxFailures", cfg.MaxFailures), slog.Duration("resetTimeout", cfg.ResetTimeout), slog.Int("successesToClose", cfg.SuccessesToClose))
	return b
}

func (b *Breaker) Name() string { return b.name }

// Execute runs op unless the breaker is open. Once the reset timeout has
// elapsed the breaker moves to half-open, runs the probe and lets op through.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	state := b.state
	openedAt := b.openedAt
	b.mu.Unlock()

	if state == Open {
		since := b.now().Sub(openedAt)
		if since < b.cfg.ResetTimeout {
			b.logger.Debug("breaker_fast_fail", slog.Duration("sinceOpen", since))
			return ErrOpen
		}
		if err := b.enterHalfOpen(ctx); err != nil {
			return err
		}
	}

	err := op(ctx)
	if err == nil {
		b.onSuccess()
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// caller gave up; not a downstream failure
		return err
	}
	if b.onFailure(err) {
		return fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return err
}

func (b *Breaker) enterHalfOpen(ctx context.Context) error {
	b.mu.Lock()
	b.setState(HalfOpen)
	b.successes = 0
	had := b.recentFails
	b.mu.Unlock()
	b.logger.Info("breaker_probe_start", slog.Int("previousFailures", had))

	if b.probe == nil {
		return nil
	}
	if err := b.probe(ctx); err != nil {
		b.logger.Warn("breaker_probe_failed", slog.Any("err", err))
		b.mu.Lock()
		b.trip()
		b.mu.Unlock()
		return ErrOpen
	}
	b.logger.Info("breaker_probe_ok")
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentFails = 0
	if b.state != HalfOpen {
		return
	}
	b.successes++
	if b.successes >= b.cfg.SuccessesToClose {
		b.setState(Closed)
		b.successes = 0
	}
}

// onFailure records err and reports whether the breaker is now open.
func (b *Breaker) onFailure(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentFails++
	b.logger.Warn("operation_failure", slog.Int("failures", b.recentFails), slog.Any("err", err))
	if b.state == HalfOpen || b.recentFails >= b.cfg.MaxFailures {
		b.trip()
		return true
	}
	return false
}

// trip opens the breaker. Callers hold mu.
func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.successes = 0
	if b.state != Open {
		b.logger.Error("breaker_opened", slog.Int("maxFailures", b.cfg.MaxFailures))
	}
	b.setState(Open)
}

// setState records a transition. Callers hold mu.
func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.logger.Info("breaker_state_change", slog.String("from", from.String()), slog.String("to", to.String()))
	if b.listener != nil {
		b.listener(b.name, from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
