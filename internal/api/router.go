// v0
// internal/api/router.go
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/auton88n/tradeayn-sub003/internal/compliance"
	"github.com/auton88n/tradeayn-sub003/internal/report"
	"github.com/auton88n/tradeayn-sub003/internal/runstore"
	"github.com/auton88n/tradeayn-sub003/internal/service"
)

// Checker is the subset of service.Service exposed over HTTP.
type Checker interface {
	Check(ctx context.Context, req service.CheckRequest) (*runstore.Run, error)
	Get(ctx context.Context, id string) (*runstore.Run, error)
	List(ctx context.Context, projectID string, page, size int) ([]*runstore.Run, int)
	Report(ctx context.Context, id string) (report.Report, error)
	Codes(ctx context.Context, codeSystem string) ([]compliance.BuildingCode, error)
	Systems(ctx context.Context) ([]string, error)
}

// Instrumenter wraps handlers with request metrics. *observability.Metrics
// satisfies it.
type Instrumenter interface {
	WrapHandler(route string, next http.Handler) http.Handler
	Handler() http.Handler
}

// RouterOptions carries everything NewRouter needs.
type RouterOptions struct {
	Logger      *slog.Logger
	Health      *HealthState
	Service     Checker
	Metrics     Instrumenter
	CORSOrigins []string
}

// NewRouter wires all HTTP routes and the shared middleware chain.
func NewRouter(opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{log: logger, svc: opts.Service}

	r := mux.NewRouter()
	handle := func(path, method string, next http.Handler) {
		if opts.Metrics != nil {
			next = opts.Metrics.WrapHandler(path, next)
		}
		r.Handle(path, next).Methods(method)
	}

	handle("/health", http.MethodGet, healthLiveHandler())
	handle("/health/live", http.MethodGet, healthLiveHandler())
	handle("/health/ready", http.MethodGet, healthReadyHandler(opts.Health))
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	handle("/codes", http.MethodGet, http.HandlerFunc(h.Systems))
	handle("/codes/{system}", http.MethodGet, http.HandlerFunc(h.Codes))
	handle("/compliance/runs", http.MethodPost, http.HandlerFunc(h.CreateRun))
	handle("/compliance/runs", http.MethodGet, http.HandlerFunc(h.ListRuns))
	handle("/compliance/runs/{id}", http.MethodGet, http.HandlerFunc(h.GetRun))
	handle("/compliance/runs/{id}/report", http.MethodGet, http.HandlerFunc(h.RunReport))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, logger, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, logger, http.StatusMethodNotAllowed, "method not allowed")
	})

	var handler http.Handler = r
	handler = WrapWithLogging(logger, handler)
	if len(opts.CORSOrigins) > 0 {
		handler = handlers.CORS(
			handlers.AllowedOrigins(opts.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		)(handler)
	}
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slogRecoveryLogger{log: logger}),
		handlers.PrintRecoveryStack(false),
	)(handler)
	return handler
}

func healthLiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func healthReadyHandler(health *HealthState) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if health == nil || !health.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
