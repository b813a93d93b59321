// v1
// internal/circuitbreaker/httpcb.go
package circuitbreaker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps a standard http.Client with circuit breaker behavior.
// 5xx responses count as failures; the response is still returned to the
// caller when the breaker stays closed.
type HTTPClient struct {
	Client *http.Client
	brk    *Breaker
}

func NewHTTPClient(name string, cfg Config, probeURL string, httpClient *http.Client, opts ...Option) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	var probe func(ctx context.Context) error
	if probeURL != "" {
		probe = func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
			if err != nil {
				return err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, _ = io.CopyN(io.Discard, resp.Body, 64)
			if resp.StatusCode < http.StatusInternalServerError {
				return nil
			}
			return fmt.Errorf("probe_bad_status: %d", resp.StatusCode)
		}
	}
	return &HTTPClient{Client: httpClient, brk: New(name, cfg, probe, opts...)}
}

func (h *HTTPClient) Breaker() *Breaker { return h.brk }

func (h *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := h.brk.Execute(req.Context(), func(ctx context.Context) error {
		r, err := h.Client.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			_, _ = io.CopyN(io.Discard, r.Body, 512)
			r.Body.Close()
			return fmt.Errorf("upstream status %d", r.StatusCode)
		}
		resp = r
		return nil
	})
	return resp, err
}
