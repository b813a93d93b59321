// v0
// internal/units/units.go

// Package units converts user measurements into the unit a code requirement
// is expressed in.
package units

import (
	"math"
	"strconv"
	"strings"
)

// System identifies the measurement system a user entered values in.
type System string

const (
	Imperial System = "imperial"
	Metric   System = "metric"
)

// Valid reports whether s is one of the supported systems.
func (s System) Valid() bool {
	return s == Imperial || s == Metric
}

// Kind groups unit tags by what they measure.
type Kind int

const (
	KindPassthrough Kind = iota
	KindArea
	KindLength
	KindPressure
)

// Unit describes a recognized code-unit tag.
type Unit struct {
	Tag    string
	Kind   Kind
	System System // empty for tags that are never converted
	Label  string
	// factor converts one imperial unit of this dimension to its metric pair.
	factor float64
}

const (
	sqftToM2   = 0.092903
	ftToM      = 0.3048
	inToMM     = 25.4
	psfToKPa   = 0.04788
	psiToMPa   = 0.006895
	roundScale = 100
)

var known = map[string]Unit{
	"sqft":    {Tag: "sqft", Kind: KindArea, System: Imperial, Label: "sq ft", factor: sqftToM2},
	"ft2":     {Tag: "sqft", Kind: KindArea, System: Imperial, Label: "sq ft", factor: sqftToM2},
	"sq ft":   {Tag: "sqft", Kind: KindArea, System: Imperial, Label: "sq ft", factor: sqftToM2},
	"m2":      {Tag: "m2", Kind: KindArea, System: Metric, Label: "m²", factor: sqftToM2},
	"sqm":     {Tag: "m2", Kind: KindArea, System: Metric, Label: "m²", factor: sqftToM2},
	"ft":      {Tag: "ft", Kind: KindLength, System: Imperial, Label: "ft", factor: ftToM},
	"feet":    {Tag: "ft", Kind: KindLength, System: Imperial, Label: "ft", factor: ftToM},
	"m":       {Tag: "m", Kind: KindLength, System: Metric, Label: "m", factor: ftToM},
	"in":      {Tag: "in", Kind: KindLength, System: Imperial, Label: "in", factor: inToMM},
	"inch":    {Tag: "in", Kind: KindLength, System: Imperial, Label: "in", factor: inToMM},
	"inches":  {Tag: "in", Kind: KindLength, System: Imperial, Label: "in", factor: inToMM},
	"mm":      {Tag: "mm", Kind: KindLength, System: Metric, Label: "mm", factor: inToMM},
	"psf":     {Tag: "psf", Kind: KindPressure, System: Imperial, Label: "psf", factor: psfToKPa},
	"kpa":     {Tag: "kPa", Kind: KindPressure, System: Metric, Label: "kPa", factor: psfToKPa},
	"psi":     {Tag: "psi", Kind: KindPressure, System: Imperial, Label: "psi", factor: psiToMPa},
	"mpa":     {Tag: "MPa", Kind: KindPressure, System: Metric, Label: "MPa", factor: psiToMPa},
	"percent": {Tag: "percent", Label: "%"},
	"%":       {Tag: "percent", Label: "%"},
	"boolean": {Tag: "boolean"},
	"degf":    {Tag: "degF", Label: "°F"},
	"degc":    {Tag: "degC", Label: "°C"},
	"count":   {Tag: "count", Label: ""},
}

func canonical(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Lookup resolves a code-unit tag. The second result is false for tags the
// converter does not know; those still pass through NormalizeToCodeUnit
// unchanged, so callers should surface them.
func Lookup(tag string) (Unit, bool) {
	u, ok := known[canonical(tag)]
	return u, ok
}

// NormalizeToCodeUnit converts value, entered in userUnit, into codeUnit.
// Values already in the code's system, non-convertible tags, and unknown tags
// are returned unchanged.
func NormalizeToCodeUnit(value float64, userUnit System, codeUnit string) float64 {
	u, ok := Lookup(codeUnit)
	if !ok || u.System == "" || u.System == userUnit {
		return value
	}
	switch userUnit {
	case Imperial:
		// code wants metric
		return value * u.factor
	case Metric:
		return value / u.factor
	default:
		return value
	}
}

// Round2 rounds v to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*roundScale) / roundScale
}

// FormatNumber renders v without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatWithUnit renders value rounded to two decimals with a human label.
func FormatWithUnit(value float64, unit string) string {
	rounded := FormatNumber(Round2(value))
	u, ok := Lookup(unit)
	if !ok {
		return rounded + " " + unit
	}
	switch u.Tag {
	case "boolean":
		if value != 0 {
			return "Yes"
		}
		return "No"
	case "percent", "degF", "degC":
		return rounded + u.Label
	case "count":
		return rounded
	}
	return rounded + " " + u.Label
}
