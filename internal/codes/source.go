// v0
// internal/codes/source.go

// Package codes loads building-code rule tables from files, SQLite or a
// remote REST table.
package codes

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/auton88n/tradeayn-sub003/internal/cache"
	"github.com/auton88n/tradeayn-sub003/internal/compliance"
)

// ErrUnknownCodeSystem is returned when no rows exist for a code system.
var ErrUnknownCodeSystem = errors.New("unknown code system")

// ErrUpstream marks failures of a remote rule table backend.
var ErrUpstream = errors.New("codes upstream")

// Source provides the rule table for a jurisdiction.
type Source interface {
	Codes(ctx context.Context, codeSystem string) ([]compliance.BuildingCode, error)
	Systems(ctx context.Context) ([]string, error)
}

// CanonicalSystem normalizes a code system name for lookups.
func CanonicalSystem(codeSystem string) string {
	return cache.CanonicalSystem(codeSystem)
}

// table is an in-memory rule table keyed by canonical code system.
type table map[string][]compliance.BuildingCode

// buildTable validates rows and groups them, keeping file order per system.
func buildTable(rows []compliance.BuildingCode) (table, error) {
	t := make(table)
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if seen[row.ID] {
			return nil, fmt.Errorf("row %d: duplicate code id %q", i, row.ID)
		}
		seen[row.ID] = true
		key := CanonicalSystem(row.CodeSystem)
		t[key] = append(t[key], row)
	}
	return t, nil
}

func (t table) codes(codeSystem string) ([]compliance.BuildingCode, error) {
	rows, ok := t[CanonicalSystem(codeSystem)]
	if !ok || len(rows) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodeSystem, codeSystem)
	}
	out := make([]compliance.BuildingCode, len(rows))
	copy(out, rows)
	return out, nil
}

func (t table) systems() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
