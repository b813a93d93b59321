// v0
// internal/app/app_test.go
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auton88n/tradeayn-sub003/internal/config"
	"github.com/auton88n/tradeayn-sub003/internal/runstore"
)

const codesYAML = `IRC_2024:
  - id: irc-bed-area
    category: room_size
    requirement_id: R304.1
    requirement_name: Minimum habitable room area
    check_type: min
    value_min: 70
    unit: sqft
    applies_to: habitable_room
    fix_suggestion: Enlarge the room
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	codesPath := filepath.Join(dir, "codes.yaml")
	require.NoError(t, os.WriteFile(codesPath, []byte(codesYAML), 0o644))

	cfg := config.Defaults()
	cfg.LogFilePath = filepath.Join(dir, "logs", "compliance.log")
	cfg.RunStorePath = filepath.Join(dir, "runs.jsonl")
	cfg.CodesFile = codesPath
	return cfg
}

func TestNewWiresFileSourceEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	body := []byte(`{"projectId":"p-9","codeSystem":"irc_2024","inputs":[
		{"input_type":"room","room_name":"Den","room_area":65,"unit_system":"imperial"}]}`)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/compliance/runs", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run runstore.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Len(t, run.Results, 1)
	assert.Equal(t, "fail", string(run.Results[0].Status))

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/codes", nil))
	assert.Contains(t, rec.Body.String(), "IRC_2024")

	require.NoError(t, a.Close())
	report, err := runstore.VerifyFile(cfg.RunStorePath)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Runs)
	assert.NoError(t, a.Close())
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.CodesWatch = true
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}

func TestNewRejectsMissingCodesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.CodesFile = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
