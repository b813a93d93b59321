// v0
// internal/circuitbreaker/circuitbreaker_test.go
package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := New("t", Config{MaxFailures: 2, ResetTimeout: time.Minute}, nil)

	assert.ErrorIs(t, b.Execute(context.Background(), fail), errBoom)
	assert.Equal(t, Closed, b.State())

	err := b.Execute(context.Background(), fail)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, Open, b.State())

	called := false
	err = b.Execute(context.Background(), func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must fast-fail")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	probeErr := errBoom
	b := New("t", Config{MaxFailures: 1, ResetTimeout: time.Second}, func(context.Context) error { return probeErr })
	b.now = func() time.Time { return now }

	require.ErrorIs(t, b.Execute(context.Background(), fail), ErrOpen)

	now = now.Add(2 * time.Second)
	require.ErrorIs(t, b.Execute(context.Background(), ok), ErrOpen, "failed probe keeps the breaker open")
	assert.Equal(t, Open, b.State())

	now = now.Add(2 * time.Second)
	probeErr = nil
	require.NoError(t, b.Execute(context.Background(), ok))
	assert.Equal(t, Closed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("t", Config{MaxFailures: 3, ResetTimeout: time.Second, SuccessesToClose: 2}, nil)
	b.now = func() time.Time { return now }
	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	require.Equal(t, Open, b.State())

	now = now.Add(time.Second)
	assert.ErrorIs(t, b.Execute(context.Background(), fail), ErrOpen)
	assert.Equal(t, Open, b.State())
}

func TestConfigFromProperties(t *testing.T) {
	cfg, err := ConfigFromProperties(map[string]string{
		"circuit.maxFailures":      "3",
		"circuit.resetSeconds":     "1.5",
		"circuit.successesToClose": "2",
		"unrelated":                "x",
	})
	require.NoError(t, err)
	assert.Equal(t, Config{MaxFailures: 3, ResetTimeout: 1500 * time.Millisecond, SuccessesToClose: 2}, cfg)

	_, err = ConfigFromProperties(map[string]string{"circuit.maxFailures": "0"})
	assert.Error(t, err)

	cfg, err = ConfigFromProperties(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestHTTPClientCountsServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient("http", Config{MaxFailures: 2, ResetTimeout: time.Minute}, "", srv.Client())
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := c.Do(req)
		require.Error(t, err)
		assert.Nil(t, resp)
	}
	assert.Equal(t, int32(2), hits.Load(), "third call must not reach the server")
	assert.Equal(t, Open, c.Breaker().State())
}

func TestHTTPClientPassesClientErrorsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient("http", Config{MaxFailures: 1, ResetTimeout: time.Minute}, "", srv.Client())
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, Closed, c.Breaker().State())
}
