// v0
// internal/compliance/compare.go
package compliance

import (
	"math"
	"strings"

	"github.com/auton88n/tradeayn-sub003/internal/units"
)

// Compare checks an already-normalized value against a code threshold.
// Bounds are inclusive; a missing minimum defaults to 0 and a missing maximum
// to +Inf. The fix suggestion is carried only on failure.
func Compare(userValue float64, code BuildingCode, roomName string) Result {
	lo, hi := bounds(code)

	var pass bool
	switch code.CheckType {
	case CheckMin:
		pass = userValue >= lo
	case CheckMax:
		pass = userValue <= hi
	case CheckRange:
		pass = userValue >= lo && userValue <= hi
	case CheckBoolean:
		pass = userValue != 0
	}

	status := StatusFail
	fix := code.fixSuggestion()
	if pass {
		status = StatusPass
		fix = ""
	}
	rounded := units.Round2(userValue)
	return Result{
		CodeRequirementID: code.ID,
		RequirementClause: code.RequirementID,
		RequirementName:   code.RequirementName,
		Category:          code.Category,
		Status:            status,
		UserValue:         &rounded,
		RequiredValue:     RequiredValue(code),
		Unit:              code.Unit,
		RoomName:          roomName,
		FixSuggestion:     fix,
	}
}

// RequiredValue renders the human-readable threshold of a code.
func RequiredValue(code BuildingCode) string {
	lo, hi := bounds(code)
	var s string
	switch code.CheckType {
	case CheckMin:
		s = "≥ " + units.FormatNumber(lo) + " " + code.Unit
	case CheckMax:
		if math.IsInf(hi, 1) {
			s = "≤ ∞ " + code.Unit
		} else {
			s = "≤ " + units.FormatNumber(hi) + " " + code.Unit
		}
	case CheckRange:
		upper := "∞"
		if !math.IsInf(hi, 1) {
			upper = units.FormatNumber(hi)
		}
		s = units.FormatNumber(lo) + "–" + upper + " " + code.Unit
	default:
		return "Required"
	}
	return strings.TrimSpace(s)
}

func bounds(code BuildingCode) (float64, float64) {
	lo, hi := 0.0, math.Inf(1)
	if code.ValueMin != nil {
		lo = *code.ValueMin
	}
	if code.ValueMax != nil {
		hi = *code.ValueMax
	}
	return lo, hi
}

func notApplicable(code BuildingCode, roomName string) Result {
	return Result{
		CodeRequirementID: code.ID,
		RequirementClause: code.RequirementID,
		RequirementName:   code.RequirementName,
		Category:          code.Category,
		Status:            StatusNotApplicable,
		RequiredValue:     RequiredValue(code),
		Unit:              code.Unit,
		RoomName:          roomName,
	}
}
