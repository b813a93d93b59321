// v0
// internal/events/events.go

// Package events announces completed compliance runs to downstream systems.
package events

import (
	"context"
	"time"

	"github.com/auton88n/tradeayn-sub003/internal/compliance"
	"github.com/auton88n/tradeayn-sub003/internal/report"
)

const (
	EventTypeRunCompleted = "compliance.run.completed"
	SchemaVersionV1       = "v1"
)

// Failure is the compact form of a failing result carried on the wire.
type Failure struct {
	CodeRequirementID string `json:"codeRequirementId"`
	RequirementName   string `json:"requirementName"`
	RoomName          string `json:"roomName"`
	RequiredValue     string `json:"requiredValue"`
}

// RunCompleted is emitted once per persisted run.
type RunCompleted struct {
	Type          string         `json:"type"`
	SchemaVersion string         `json:"schemaVersion"`
	RunID         string         `json:"runId"`
	ProjectID     string         `json:"projectId"`
	CodeSystem    string         `json:"codeSystem"`
	CompletedAt   time.Time      `json:"completedAt"`
	Summary       report.Summary `json:"summary"`
	Failures      []Failure      `json:"failures"`
}

// NewRunCompleted builds the event for a result set.
func NewRunCompleted(runID, projectID, codeSystem string, at time.Time, results []compliance.Result) RunCompleted {
	failures := []Failure{}
	for _, r := range results {
		if r.Status != compliance.StatusFail {
			continue
		}
		failures = append(failures, Failure{
			CodeRequirementID: r.CodeRequirementID,
			RequirementName:   r.RequirementName,
			RoomName:          r.RoomName,
			RequiredValue:     r.RequiredValue,
		})
	}
	return RunCompleted{
		Type:          EventTypeRunCompleted,
		SchemaVersion: SchemaVersionV1,
		RunID:         runID,
		ProjectID:     projectID,
		CodeSystem:    codeSystem,
		CompletedAt:   at.UTC(),
		Summary:       report.Summarize(results),
		Failures:      failures,
	}
}

// Notifier delivers RunCompleted events.
type Notifier interface {
	Notify(ctx context.Context, ev RunCompleted) error
}

// Recorder observes delivery outcomes ("ok" or "fail") per sink.
type Recorder interface {
	Published(sink, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Published(string, string) {}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, RunCompleted) error { return nil }
