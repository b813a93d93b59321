// v1
// internal/codes/remote.go
package codes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/auton88n/tradeayn-sub003/internal/compliance"
)

// Doer is satisfied by *http.Client and the circuit-breaker HTTP client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteClient reads rule tables from a PostgREST-style REST table:
// GET {base}/rest/v1/building_codes?code_system=eq.X&limit=&offset=
type RemoteClient struct {
	base   string
	apiKey string
	table  string
	size   int
	h      Doer
}

// NewRemoteClient builds a client. A nil doer gets a plain http.Client.
func NewRemoteClient(base, apiKey string, h Doer) *RemoteClient {
	if h == nil {
		h = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteClient{
		base:   strings.TrimRight(base, "/"),
		apiKey: apiKey,
		table:  "building_codes",
		size:   500,
		h:      h,
	}
}

// Codes fetches every row of codeSystem, following pagination until a short
// page is returned.
func (c *RemoteClient) Codes(ctx context.Context, codeSystem string) ([]compliance.BuildingCode, error) {
	q := url.Values{}
	q.Set("code_system", "eq."+strings.TrimSpace(codeSystem))
	q.Set("order", "id.asc")
	var out []compliance.BuildingCode
	err := c.paginate(ctx, q, func(body io.Reader) (int, error) {
		var page []compliance.BuildingCode
		if err := json.NewDecoder(body).Decode(&page); err != nil {
			return 0, err
		}
		out = append(out, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodeSystem, codeSystem)
	}
	for i, row := range out {
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("remote row %d: %w", i, err)
		}
	}
	return out, nil
}

// Systems lists the distinct code systems present in the remote table.
func (c *RemoteClient) Systems(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Set("select", "code_system")
	seen := make(map[string]bool)
	err := c.paginate(ctx, q, func(body io.Reader) (int, error) {
		var page []struct {
			CodeSystem string `json:"code_system"`
		}
		if err := json.NewDecoder(body).Decode(&page); err != nil {
			return 0, err
		}
		for _, p := range page {
			seen[CanonicalSystem(p.CodeSystem)] = true
		}
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (c *RemoteClient) paginate(ctx context.Context, base url.Values, decode func(io.Reader) (int, error)) error {
	offset := 0
	for {
		u, err := url.Parse(c.base + "/rest/v1/" + c.table)
		if err != nil {
			return err
		}
		q := url.Values{}
		for k, v := range base {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(c.size))
		q.Set("offset", strconv.Itoa(offset))
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("apikey", c.apiKey)
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err := c.h.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrUpstream, u.Path, err)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			return fmt.Errorf("%w: %s returned %d: %s", ErrUpstream, u.Path, resp.StatusCode, strings.TrimSpace(string(b)))
		}
		n, err := decode(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: decode page at offset %d: %w", ErrUpstream, offset, err)
		}
		if n < c.size {
			return nil
		}
		offset += n
	}
}
