// v0
// internal/codes/sqlite.go
package codes

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/auton88n/tradeayn-sub003/internal/compliance"
)

// SQLiteStore keeps rule tables in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create codes db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open codes db: %w", err)
	}
	// one writer; modernc serializes anyway
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS building_codes (
  id TEXT PRIMARY KEY,
  code_system TEXT NOT NULL,
  category TEXT NOT NULL,
  requirement_id TEXT NOT NULL DEFAULT '',
  requirement_name TEXT NOT NULL DEFAULT '',
  check_type TEXT NOT NULL,
  value_min REAL,
  value_max REAL,
  unit TEXT NOT NULL DEFAULT '',
  applies_to TEXT NOT NULL DEFAULT '',
  exception_notes TEXT,
  fix_suggestion TEXT,
  field TEXT NOT NULL DEFAULT '',
  position INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_building_codes_system ON building_codes(upper(code_system), position);
`)
	if err != nil {
		return fmt.Errorf("migrate codes db: %w", err)
	}
	return nil
}

// Upsert validates and writes rows in one transaction. Row order within the
// call becomes the evaluation order for its code system.
func (s *SQLiteStore) Upsert(ctx context.Context, rows []compliance.BuildingCode) (int, error) {
	if _, err := buildTable(rows); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO building_codes (id, code_system, category, requirement_id, requirement_name, check_type,
  value_min, value_max, unit, applies_to, exception_notes, fix_suggestion, field, position)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  code_system = excluded.code_system,
  category = excluded.category,
  requirement_id = excluded.requirement_id,
  requirement_name = excluded.requirement_name,
  check_type = excluded.check_type,
  value_min = excluded.value_min,
  value_max = excluded.value_max,
  unit = excluded.unit,
  applies_to = excluded.applies_to,
  exception_notes = excluded.exception_notes,
  fix_suggestion = excluded.fix_suggestion,
  field = excluded.field,
  position = excluded.position`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.CodeSystem, r.Category, r.RequirementID, r.RequirementName, string(r.CheckType),
			nullFloat(r.ValueMin), nullFloat(r.ValueMax), r.Unit, r.AppliesTo,
			nullString(r.ExceptionNotes), nullString(r.FixSuggestion), string(r.Field), i,
		); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *SQLiteStore) Codes(ctx context.Context, codeSystem string) ([]compliance.BuildingCode, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, code_system, category, requirement_id, requirement_name, check_type,
  value_min, value_max, unit, applies_to, exception_notes, fix_suggestion, field
FROM building_codes WHERE upper(code_system) = ? ORDER BY position, id`, CanonicalSystem(codeSystem))
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	defer rows.Close()

	var out []compliance.BuildingCode
	for rows.Next() {
		var (
			c                  compliance.BuildingCode
			checkType, field   string
			vmin, vmax         sql.NullFloat64
			exceptions, fixSug sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.CodeSystem, &c.Category, &c.RequirementID, &c.RequirementName, &checkType,
			&vmin, &vmax, &c.Unit, &c.AppliesTo, &exceptions, &fixSug, &field); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		c.CheckType = compliance.CheckType(checkType)
		c.Field = compliance.Field(field)
		if vmin.Valid {
			c.ValueMin = compliance.Float(vmin.Float64)
		}
		if vmax.Valid {
			c.ValueMax = compliance.Float(vmax.Float64)
		}
		if exceptions.Valid {
			c.ExceptionNotes = compliance.String(exceptions.String)
		}
		if fixSug.Valid {
			c.FixSuggestion = compliance.String(fixSug.String)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodeSystem, codeSystem)
	}
	return out, nil
}

func (s *SQLiteStore) Systems(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT upper(code_system) FROM building_codes ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("query systems: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var sys string
		if err := rows.Scan(&sys); err != nil {
			return nil, err
		}
		out = append(out, sys)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
