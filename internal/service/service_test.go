// v0
// internal/service/service_test.go
package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auton88n/tradeayn-sub003/internal/codes"
	"github.com/auton88n/tradeayn-sub003/internal/compliance"
	"github.com/auton88n/tradeayn-sub003/internal/events"
	"github.com/auton88n/tradeayn-sub003/internal/logging"
	"github.com/auton88n/tradeayn-sub003/internal/runstore"
	"github.com/auton88n/tradeayn-sub003/internal/units"
)

type stubSource struct {
	rows map[string][]compliance.BuildingCode
	err  error
}

func (s stubSource) Codes(_ context.Context, system string) ([]compliance.BuildingCode, error) {
	if s.err != nil {
		return nil, s.err
	}
	rows, ok := s.rows[system]
	if !ok {
		return nil, codes.ErrUnknownCodeSystem
	}
	return rows, nil
}

func (s stubSource) Systems(context.Context) ([]string, error) {
	out := make([]string, 0, len(s.rows))
	for k := range s.rows {
		out = append(out, k)
	}
	return out, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.RunCompleted
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.RunCompleted) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

type recordingMetrics struct {
	runs    int
	units   []string
	lastSys string
}

func (m *recordingMetrics) RunEvaluated(system string, _ bool, _ []compliance.Result, _ time.Duration) {
	m.runs++
	m.lastSys = system
}

func (m *recordingMetrics) UnknownUnit(unit string) { m.units = append(m.units, unit) }

func ircTable() map[string][]compliance.BuildingCode {
	return map[string][]compliance.BuildingCode{
		"IRC_2024": {
			{
				ID: "bed-area", CodeSystem: "IRC_2024", Category: compliance.CategoryRoomSize,
				RequirementName: "Minimum floor area", CheckType: compliance.CheckMin,
				ValueMin: compliance.Float(70), Unit: "sqft", AppliesTo: "bedroom",
				FixSuggestion: compliance.String("Enlarge the room"),
			},
			{
				ID: "smoke", CodeSystem: "IRC_2024", Category: compliance.CategoryAlarms,
				RequirementName: "Smoke alarm", CheckType: compliance.CheckBoolean,
				Unit: "boolean", AppliesTo: "smoke_alarm",
			},
		},
	}
}

func newTestService(t *testing.T, src codes.Source, n events.Notifier, m Metrics) (*Service, *runstore.FileStore) {
	t.Helper()
	store, err := runstore.NewFileStore(filepath.Join(t.TempDir(), "runs.jsonl"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	svc, err := New(Options{Source: src, Store: store, Notifier: n, Metrics: m, Logger: logging.Discard()})
	require.NoError(t, err)
	return svc, store
}

func TestCheckPersistsAndNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	metrics := &recordingMetrics{}
	svc, _ := newTestService(t, stubSource{rows: ircTable()}, notifier, metrics)

	run, err := svc.Check(context.Background(), CheckRequest{
		ProjectID:  "p-1",
		CodeSystem: " irc_2024 ",
		Inputs: []compliance.Input{
			{InputType: compliance.InputRoom, RoomName: "Bed 1", RoomType: "bedroom", RoomArea: compliance.Float(60), UnitSystem: units.Imperial},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "IRC_2024", run.CodeSystem)
	require.Len(t, run.Results, 2)
	assert.Equal(t, compliance.StatusFail, run.Results[0].Status)
	assert.Equal(t, compliance.StatusWarning, run.Results[1].Status)
	assert.False(t, run.Summary.Compliant)
	assert.Equal(t, 1, run.Summary.Fail)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, run.ID, notifier.events[0].RunID)
	require.Len(t, notifier.events[0].Failures, 1)
	assert.Equal(t, "bed-area", notifier.events[0].Failures[0].CodeRequirementID)
	assert.Equal(t, 1, metrics.runs)
	assert.Equal(t, "IRC_2024", metrics.lastSys)

	got, err := svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Hash, got.Hash)

	list, total := svc.List(context.Background(), "P-1", 1, 10)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)

	rep, err := svc.Report(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, rep.RunID)
	assert.Len(t, rep.Groups, 2)
}

func TestCheckInlineCodesReportUnknownUnits(t *testing.T) {
	metrics := &recordingMetrics{}
	svc, _ := newTestService(t, stubSource{}, nil, metrics)

	run, err := svc.Check(context.Background(), CheckRequest{
		Codes: []compliance.BuildingCode{{
			ID: "odd", CodeSystem: "LOCAL", Category: compliance.CategoryRoomSize,
			RequirementName: "Floor area", CheckType: compliance.CheckMin,
			ValueMin: compliance.Float(5), Unit: "tatami", AppliesTo: "habitable_room",
		}},
		Inputs: []compliance.Input{
			{InputType: compliance.InputRoom, RoomArea: compliance.Float(6), UnitSystem: units.Metric},
		},
	})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)
	assert.Equal(t, compliance.StatusPass, run.Results[0].Status)
	assert.Equal(t, []string{"tatami"}, metrics.units)
}

func TestCheckInlineCodesNeedNoCodeSystem(t *testing.T) {
	svc, store := newTestService(t, stubSource{}, nil, nil)

	run, err := svc.Check(context.Background(), CheckRequest{
		Inputs: []compliance.Input{
			{InputType: compliance.InputRoom, RoomName: "Bedroom 1", RoomType: "bedroom", RoomArea: compliance.Float(65), UnitSystem: units.Imperial},
		},
		Codes: []compliance.BuildingCode{{
			ID: "r1", Category: compliance.CategoryRoomSize, RequirementName: "Minimum room area",
			CheckType: compliance.CheckMin, ValueMin: compliance.Float(70), Unit: "sqft", AppliesTo: "bedroom",
		}},
	})
	require.NoError(t, err)

	require.Len(t, run.Results, 1)
	res := run.Results[0]
	assert.Equal(t, compliance.StatusFail, res.Status)
	require.NotNil(t, res.UserValue)
	assert.Equal(t, 65.0, *res.UserValue)
	assert.Equal(t, "≥ 70 sqft", res.RequiredValue)
	assert.Equal(t, "Bedroom 1", res.RoomName)

	_, err = store.Get(run.ID)
	assert.NoError(t, err)
}

func TestEvaluateSharesValidationWithoutPersisting(t *testing.T) {
	system, results, err := Evaluate(context.Background(), stubSource{rows: ircTable()}, CheckRequest{CodeSystem: "irc_2024"}, compliance.Options{})
	require.NoError(t, err)
	assert.Equal(t, "IRC_2024", system)
	require.Len(t, results, 1)
	assert.Equal(t, compliance.StatusWarning, results[0].Status)

	_, _, err = Evaluate(context.Background(), nil, CheckRequest{CodeSystem: "IRC_2024"}, compliance.Options{})
	assert.Error(t, err)

	_, _, err = Evaluate(context.Background(), nil, CheckRequest{
		Codes: []compliance.BuildingCode{{ID: "r1", Category: "room_size", CheckType: compliance.CheckMin, Field: "room_volume"}},
	}, compliance.Options{})
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestCheckNotifyFailureDoesNotFailRun(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker down")}
	svc, store := newTestService(t, stubSource{rows: ircTable()}, notifier, nil)

	run, err := svc.Check(context.Background(), CheckRequest{CodeSystem: "IRC_2024"})
	require.NoError(t, err)
	_, err = store.Get(run.ID)
	assert.NoError(t, err)
}

func TestCheckValidation(t *testing.T) {
	svc, _ := newTestService(t, stubSource{rows: ircTable()}, nil, nil)
	cases := map[string]CheckRequest{
		"no system":        {},
		"bad input type":   {CodeSystem: "IRC_2024", Inputs: []compliance.Input{{InputType: "garage", UnitSystem: units.Imperial}}},
		"bad unit system":  {CodeSystem: "IRC_2024", Inputs: []compliance.Input{{InputType: compliance.InputRoom, UnitSystem: "cubits"}}},
		"bad inline code":  {Codes: []compliance.BuildingCode{{ID: "x", Category: "room_size", CheckType: "between"}}},
		"bad inline range": {Codes: []compliance.BuildingCode{{ID: "x", CheckType: compliance.CheckRange, ValueMin: compliance.Float(9), ValueMax: compliance.Float(1)}}},
		"negative storeys": {CodeSystem: "IRC_2024", Project: compliance.ProjectConfig{NumStoreys: -1}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Check(context.Background(), req)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "got %v", err)
		})
	}
}

func TestCheckUnknownSystem(t *testing.T) {
	svc, _ := newTestService(t, stubSource{rows: ircTable()}, nil, nil)
	_, err := svc.Check(context.Background(), CheckRequest{CodeSystem: "NBC_1990"})
	require.Error(t, err)
	assert.ErrorIs(t, err, codes.ErrUnknownCodeSystem)
	assert.False(t, IsValidation(err))
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Source: stubSource{}})
	assert.Error(t, err)
}
