// v0
// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/auton88n/tradeayn-sub003/internal/circuitbreaker"
	"github.com/auton88n/tradeayn-sub003/internal/codes"
	"github.com/auton88n/tradeayn-sub003/internal/report"
	"github.com/auton88n/tradeayn-sub003/internal/runstore"
	"github.com/auton88n/tradeayn-sub003/internal/service"
)

const (
	maxBodyBytes = 4 << 20
	maxPageSize  = 500
)

// Handlers serves the compliance endpoints.
type Handlers struct {
	log *slog.Logger
	svc Checker
}

type runListResponse struct {
	Page  int             `json:"page"`
	Size  int             `json:"size"`
	Total int             `json:"total"`
	Runs  []*runstore.Run `json:"runs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req service.CheckRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	run, err := h.svc.Check(r.Context(), req)
	if err != nil {
		h.fail(w, "create_run_failed", err)
		return
	}
	w.Header().Set("Location", "/compliance/runs/"+run.ID)
	writeJSON(w, h.log, http.StatusCreated, run)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePositive(q.Get("page"), 1)
	if err != nil {
		writeError(w, h.log, http.StatusBadRequest, "page: "+err.Error())
		return
	}
	size, err := parsePositive(q.Get("size"), 50)
	if err != nil {
		writeError(w, h.log, http.StatusBadRequest, "size: "+err.Error())
		return
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	runs, total := h.svc.List(r.Context(), strings.TrimSpace(q.Get("projectId")), page, size)
	writeJSON(w, h.log, http.StatusOK, runListResponse{Page: page, Size: size, Total: total, Runs: runs})
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "get_run_failed", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, run)
}

func (h *Handlers) RunReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := h.svc.Report(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "run_report_failed", err)
		return
	}
	if format == report.FormatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	if err := report.Render(w, rep, format); err != nil {
		h.log.Error("write_response_failed", slog.Any("err", err))
	}
}

func (h *Handlers) Systems(w http.ResponseWriter, r *http.Request) {
	systems, err := h.svc.Systems(r.Context())
	if err != nil {
		h.fail(w, "list_systems_failed", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]any{"systems": systems})
}

func (h *Handlers) Codes(w http.ResponseWriter, r *http.Request) {
	system := codes.CanonicalSystem(mux.Vars(r)["system"])
	rows, err := h.svc.Codes(r.Context(), system)
	if err != nil {
		h.fail(w, "list_codes_failed", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]any{"codeSystem": system, "codes": rows})
}

// fail maps service errors onto HTTP status codes.
func (h *Handlers) fail(w http.ResponseWriter, event string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(event, slog.Any("err", err))
	} else {
		h.log.Info(event, slog.Int("status", status), slog.Any("err", err))
	}
	writeError(w, h.log, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case service.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, runstore.ErrNotFound), errors.Is(err, codes.ErrUnknownCodeSystem):
		return http.StatusNotFound
	case errors.Is(err, circuitbreaker.ErrOpen), errors.Is(err, codes.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func parsePositive(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer, got %q", raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write_response_failed", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, errorResponse{Error: msg})
}
