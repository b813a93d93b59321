// v0
// internal/codes/instrumented.go
package codes

import (
	"context"
	"errors"
	"time"

	"github.com/auton88n/tradeayn-sub003/internal/compliance"
)

// RequestObserver records backend latency and outcome.
type RequestObserver interface {
	CodesRequest(duration time.Duration, success bool)
}

// Instrumented times every call to the wrapped Source. Unknown code systems
// count as successful lookups.
type Instrumented struct {
	inner Source
	obs   RequestObserver
}

func NewInstrumented(inner Source, obs RequestObserver) *Instrumented {
	return &Instrumented{inner: inner, obs: obs}
}

func (s *Instrumented) Codes(ctx context.Context, codeSystem string) ([]compliance.BuildingCode, error) {
	start := time.Now()
	rows, err := s.inner.Codes(ctx, codeSystem)
	s.observe(start, err)
	return rows, err
}

func (s *Instrumented) Systems(ctx context.Context) ([]string, error) {
	start := time.Now()
	out, err := s.inner.Systems(ctx)
	s.observe(start, err)
	return out, err
}

func (s *Instrumented) observe(start time.Time, err error) {
	if s.obs == nil {
		return
	}
	s.obs.CodesRequest(time.Since(start), err == nil || errors.Is(err, ErrUnknownCodeSystem))
}
