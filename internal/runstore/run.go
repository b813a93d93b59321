// v0
// internal/runstore/run.go
package runstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/auton88n/tradeayn-sub003/internal/compliance"
	"github.com/auton88n/tradeayn-sub003/internal/report"
)

// Run is one persisted compliance check. Records are chained: Hash covers
// every other field including PrevHash.
type Run struct {
	ID         string                   `json:"id"`
	Seq        int64                    `json:"seq"`
	ProjectID  string                   `json:"projectId"`
	CodeSystem string                   `json:"codeSystem"`
	CreatedAt  time.Time                `json:"createdAt"`
	Project    compliance.ProjectConfig `json:"project"`
	Inputs     []compliance.Input       `json:"inputs"`
	Results    []compliance.Result      `json:"results"`
	Summary    report.Summary           `json:"summary"`
	PrevHash   string                   `json:"prevHash"`
	Hash       string                   `json:"hash"`
}

// ComputeHash returns the sha256 of the record with Hash blanked.
func (r *Run) ComputeHash() (string, error) {
	tmp := *r
	tmp.Hash = ""
	tmp.CreatedAt = r.CreatedAt.UTC()
	b, err := json.Marshal(tmp)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:]), nil
}

// Clone copies the record and its top-level slices.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Inputs != nil {
		cp.Inputs = make([]compliance.Input, len(r.Inputs))
		copy(cp.Inputs, r.Inputs)
	}
	if r.Results != nil {
		cp.Results = make([]compliance.Result, len(r.Results))
		copy(cp.Results, r.Results)
	}
	return &cp
}
