// v0
// internal/report/report.go

// Package report aggregates compliance results for display and export.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/auton88n/tradeayn-sub003/internal/compliance"
	"github.com/auton88n/tradeayn-sub003/internal/units"
)

// Counts tallies results by status.
type Counts struct {
	Total         int `json:"total"`
	Pass          int `json:"pass"`
	Fail          int `json:"fail"`
	Warning       int `json:"warning"`
	NotApplicable int `json:"notApplicable"`
}

func (c *Counts) add(s compliance.Status) {
	c.Total++
	switch s {
	case compliance.StatusPass:
		c.Pass++
	case compliance.StatusFail:
		c.Fail++
	case compliance.StatusWarning:
		c.Warning++
	case compliance.StatusNotApplicable:
		c.NotApplicable++
	}
}

// Summary is the badge-level view of a run.
type Summary struct {
	Counts
	Compliant  bool              `json:"compliant"`
	ByCategory map[string]Counts `json:"byCategory"`
}

// CategoryGroup holds the results of one category in insertion order.
type CategoryGroup struct {
	Category string              `json:"category"`
	Counts   Counts              `json:"counts"`
	Results  []compliance.Result `json:"results"`
}

// Summarize counts results per status overall and per category.
func Summarize(results []compliance.Result) Summary {
	s := Summary{ByCategory: make(map[string]Counts)}
	for _, r := range results {
		s.add(r.Status)
		c := s.ByCategory[r.Category]
		c.add(r.Status)
		s.ByCategory[r.Category] = c
	}
	s.Compliant = s.Fail == 0
	return s
}

// GroupByCategory groups results, keeping categories in first-seen order.
func GroupByCategory(results []compliance.Result) []CategoryGroup {
	index := make(map[string]int)
	var groups []CategoryGroup
	for _, r := range results {
		i, ok := index[r.Category]
		if !ok {
			i = len(groups)
			index[r.Category] = i
			groups = append(groups, CategoryGroup{Category: r.Category})
		}
		groups[i].Counts.add(r.Status)
		groups[i].Results = append(groups[i].Results, r)
	}
	return groups
}

// Report is the exportable document for one compliance run.
type Report struct {
	RunID       string          `json:"runId,omitempty"`
	ProjectID   string          `json:"projectId,omitempty"`
	CodeSystem  string          `json:"codeSystem,omitempty"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Summary     Summary         `json:"summary"`
	Groups      []CategoryGroup `json:"groups"`
}

// Build assembles a report from a result set.
func Build(runID, projectID, codeSystem string, generatedAt time.Time, results []compliance.Result) Report {
	return Report{
		RunID:       runID,
		ProjectID:   projectID,
		CodeSystem:  codeSystem,
		GeneratedAt: generatedAt.UTC(),
		Summary:     Summarize(results),
		Groups:      GroupByCategory(results),
	}
}

// Format selects a rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat maps a user-supplied name to a Format, defaulting to JSON.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return FormatJSON, nil
	case "text", "table", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unsupported report format %q", raw)
}

// Render writes rep to w in the requested format.
func Render(w io.Writer, rep Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatText:
		return renderText(w, rep)
	}
	return fmt.Errorf("unsupported report format %q", format)
}

func renderText(w io.Writer, rep Report) error {
	verdict := "COMPLIANT"
	if !rep.Summary.Compliant {
		verdict = "NOT COMPLIANT"
	}
	if _, err := fmt.Fprintf(w, "%s  pass=%d fail=%d warning=%d n/a=%d\n",
		verdict, rep.Summary.Pass, rep.Summary.Fail, rep.Summary.Warning, rep.Summary.NotApplicable); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range rep.Groups {
		fmt.Fprintf(tw, "\n[%s]\n", g.Category)
		fmt.Fprintln(tw, "STATUS\tLOCATION\tREQUIREMENT\tVALUE\tREQUIRED\tFIX")
		for _, r := range g.Results {
			value := "-"
			if r.UserValue != nil {
				value = units.FormatWithUnit(*r.UserValue, r.Unit)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				strings.ToUpper(string(r.Status)), r.RoomName, clause(r), value, r.RequiredValue, r.FixSuggestion)
		}
	}
	return tw.Flush()
}

func clause(r compliance.Result) string {
	if r.RequirementClause == "" {
		return r.RequirementName
	}
	return r.RequirementClause + " " + r.RequirementName
}
