// v0
// internal/service/service.go

// Package service orchestrates a compliance run: resolve the rule table,
// evaluate, persist, and notify.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/auton88n/tradeayn-sub003/internal/codes"
	"github.com/auton88n/tradeayn-sub003/internal/compliance"
	"github.com/auton88n/tradeayn-sub003/internal/events"
	"github.com/auton88n/tradeayn-sub003/internal/report"
	"github.com/auton88n/tradeayn-sub003/internal/runstore"
)

// ValidationError reports a malformed check request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CheckRequest is the body of a compliance run.
type CheckRequest struct {
	ProjectID  string                   `json:"projectId"`
	CodeSystem string                   `json:"codeSystem"`
	Project    compliance.ProjectConfig `json:"project"`
	Inputs     []compliance.Input       `json:"inputs"`
	// Codes, when present, replaces the rule table lookup.
	Codes []compliance.BuildingCode `json:"codes,omitempty"`
}

// RunStore is the persistence surface used by the service.
type RunStore interface {
	Append(run *runstore.Run) (*runstore.Run, error)
	Get(id string) (*runstore.Run, error)
	Query(projectID string, page, size int) ([]*runstore.Run, int)
}

// Metrics receives run-level measurements. *observability.Metrics
// satisfies it.
type Metrics interface {
	RunEvaluated(codeSystem string, compliant bool, results []compliance.Result, elapsed time.Duration)
	UnknownUnit(unit string)
}

// Options wires a Service.
type Options struct {
	Source        codes.Source
	Store         RunStore
	Notifier      events.Notifier
	Metrics       Metrics
	Logger        *slog.Logger
	ReportSkipped bool
	Now           func() time.Time
}

// Service runs compliance checks. It is safe for concurrent use.
type Service struct {
	source   codes.Source
	store    RunStore
	notifier events.Notifier
	metrics  Metrics
	log      *slog.Logger
	skipped  bool
	now      func() time.Time
}

func New(opts Options) (*Service, error) {
	if opts.Source == nil {
		return nil, errors.New("service requires a codes source")
	}
	if opts.Store == nil {
		return nil, errors.New("service requires a run store")
	}
	s := &Service{
		source:   opts.Source,
		store:    opts.Store,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		skipped:  opts.ReportSkipped,
		now:      opts.Now,
	}
	if s.notifier == nil {
		s.notifier = events.Nop{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Evaluate validates req, resolves its rule table and runs the engine. It
// persists nothing, so the CLI and Check share it. src may be nil when req
// carries inline codes.
func Evaluate(ctx context.Context, src codes.Source, req CheckRequest, opts compliance.Options) (string, []compliance.Result, error) {
	if err := Validate(req); err != nil {
		return "", nil, err
	}
	system := codes.CanonicalSystem(req.CodeSystem)
	rows := req.Codes
	if len(rows) == 0 {
		if src == nil {
			return "", nil, errors.New("no codes source configured")
		}
		var err error
		rows, err = src.Codes(ctx, system)
		if err != nil {
			return "", nil, fmt.Errorf("load codes %s: %w", system, err)
		}
	}
	results := compliance.New(opts).Run(req.Inputs, rows, req.Project)
	if results == nil {
		results = []compliance.Result{}
	}
	return system, results, nil
}

// Check validates req, evaluates it, stores the run and notifies listeners.
// A notification failure is logged and does not fail the run.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*runstore.Run, error) {
	started := s.now()
	obs := &unitObserver{log: s.log, metrics: s.metrics, system: codes.CanonicalSystem(req.CodeSystem)}
	system, results, err := Evaluate(ctx, s.source, req, compliance.Options{ReportSkipped: s.skipped, Observer: obs})
	if err != nil {
		return nil, err
	}
	summary := report.Summarize(results)
	s.metrics.RunEvaluated(system, summary.Compliant, results, s.now().Sub(started))

	inputs := req.Inputs
	if inputs == nil {
		inputs = []compliance.Input{}
	}
	stored, err := s.store.Append(&runstore.Run{
		ProjectID:  req.ProjectID,
		CodeSystem: system,
		CreatedAt:  started,
		Project:    req.Project,
		Inputs:     inputs,
		Results:    results,
		Summary:    summary,
	})
	if err != nil {
		return nil, fmt.Errorf("persist run: %w", err)
	}

	s.log.Info("compliance_run_completed",
		slog.String("runId", stored.ID),
		slog.String("projectId", stored.ProjectID),
		slog.String("codeSystem", system),
		slog.Int("results", summary.Total),
		slog.Int("fail", summary.Fail),
		slog.Int("warning", summary.Warning),
		slog.Bool("compliant", summary.Compliant),
	)

	ev := events.NewRunCompleted(stored.ID, stored.ProjectID, system, stored.CreatedAt, results)
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("run_notify_failed", slog.String("runId", stored.ID), slog.Any("err", err))
	}
	return stored, nil
}

// Get returns a stored run.
func (s *Service) Get(_ context.Context, id string) (*runstore.Run, error) {
	return s.store.Get(id)
}

// List pages through stored runs, newest first.
func (s *Service) List(_ context.Context, projectID string, page, size int) ([]*runstore.Run, int) {
	return s.store.Query(projectID, page, size)
}

// Report builds the exportable document of a stored run.
func (s *Service) Report(ctx context.Context, id string) (report.Report, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return report.Report{}, err
	}
	return report.Build(run.ID, run.ProjectID, run.CodeSystem, run.CreatedAt, run.Results), nil
}

// Codes returns the rule table of a code system.
func (s *Service) Codes(ctx context.Context, codeSystem string) ([]compliance.BuildingCode, error) {
	return s.source.Codes(ctx, codes.CanonicalSystem(codeSystem))
}

// Systems lists the known code systems.
func (s *Service) Systems(ctx context.Context) ([]string, error) {
	return s.source.Systems(ctx)
}

// Validate rejects requests that cannot be evaluated. Inline codes are only
// checked for what the engine needs; their code_system is ignored.
func Validate(req CheckRequest) error {
	if len(req.Codes) == 0 && codes.CanonicalSystem(req.CodeSystem) == "" {
		return &ValidationError{Field: "codeSystem", Reason: "required when no codes are supplied"}
	}
	for i, in := range req.Inputs {
		if err := in.Validate(); err != nil {
			return &ValidationError{Field: fmt.Sprintf("inputs[%d]", i), Reason: err.Error()}
		}
	}
	for i, c := range req.Codes {
		if err := c.CheckEvaluable(); err != nil {
			return &ValidationError{Field: fmt.Sprintf("codes[%d]", i), Reason: err.Error()}
		}
	}
	if req.Project.NumStoreys < 0 {
		return &ValidationError{Field: "project.num_storeys", Reason: "must not be negative"}
	}
	return nil
}

// unitObserver forwards engine diagnostics to logs and metrics.
type unitObserver struct {
	log     *slog.Logger
	metrics Metrics
	system  string
}

func (o *unitObserver) UnknownUnit(code compliance.BuildingCode) {
	o.log.Warn("unknown_code_unit",
		slog.String("codeSystem", o.system),
		slog.String("code", code.ID),
		slog.String("unit", code.Unit),
	)
	o.metrics.UnknownUnit(code.Unit)
}

type nopMetrics struct{}

func (nopMetrics) RunEvaluated(string, bool, []compliance.Result, time.Duration) {}

func (nopMetrics) UnknownUnit(string) {}
