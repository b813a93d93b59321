// v0
// internal/compliance/models.go
package compliance

import (
	"fmt"

	"github.com/auton88n/tradeayn-sub003/internal/units"
)

// CheckType selects how a code threshold is compared.
type CheckType string

const (
	CheckMin     CheckType = "min"
	CheckMax     CheckType = "max"
	CheckRange   CheckType = "range"
	CheckBoolean CheckType = "boolean"
)

// Valid reports whether c is a known check type.
func (c CheckType) Valid() bool {
	switch c {
	case CheckMin, CheckMax, CheckRange, CheckBoolean:
		return true
	}
	return false
}

// Status is the verdict for one (input, requirement) pair.
type Status string

const (
	StatusPass          Status = "pass"
	StatusFail          Status = "fail"
	StatusWarning       Status = "warning"
	StatusNotApplicable Status = "not_applicable"
)

// Code categories understood by the engine.
const (
	CategoryRoomSize            = "room_size"
	CategoryCeilingHeight       = "ceiling_height"
	CategoryLightingVentilation = "lighting_ventilation"
	CategoryEgress              = "egress"
	CategoryStairs              = "stairs"
	CategoryHandrails           = "handrails"
	CategoryHallwaysDoors       = "hallways_doors"
	CategoryFireSeparation      = "fire_separation"
	CategoryAlarms              = "alarms"
)

// InputType tags a compliance input.
type InputType string

const (
	InputRoom    InputType = "room"
	InputWindow  InputType = "window"
	InputStair   InputType = "stair"
	InputDoor    InputType = "door"
	InputHallway InputType = "hallway"
	InputAlarm   InputType = "alarm"
)

// Valid reports whether t is a known input type.
func (t InputType) Valid() bool {
	switch t {
	case InputRoom, InputWindow, InputStair, InputDoor, InputHallway, InputAlarm:
		return true
	}
	return false
}

// BuildingCode is one row of a jurisdictional rule table. Rows are treated as
// immutable for the duration of a run.
type BuildingCode struct {
	ID              string    `json:"id" yaml:"id"`
	CodeSystem      string    `json:"code_system" yaml:"code_system"`
	Category        string    `json:"category" yaml:"category"`
	RequirementID   string    `json:"requirement_id" yaml:"requirement_id"`
	RequirementName string    `json:"requirement_name" yaml:"requirement_name"`
	CheckType       CheckType `json:"check_type" yaml:"check_type"`
	ValueMin        *float64  `json:"value_min" yaml:"value_min"`
	ValueMax        *float64  `json:"value_max" yaml:"value_max"`
	Unit            string    `json:"unit" yaml:"unit"`
	AppliesTo       string    `json:"applies_to" yaml:"applies_to"`
	ExceptionNotes  *string   `json:"exception_notes" yaml:"exception_notes"`
	FixSuggestion   *string   `json:"fix_suggestion" yaml:"fix_suggestion"`
	// Field optionally pins the input field this row measures, bypassing
	// requirement-name keyword matching.
	Field Field `json:"field,omitempty" yaml:"field,omitempty"`
}

// Validate rejects rows that cannot be stored in a rule table.
func (c BuildingCode) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("code row without id")
	case c.CodeSystem == "":
		return fmt.Errorf("code %s: missing code_system", c.ID)
	case c.Category == "":
		return fmt.Errorf("code %s: missing category", c.ID)
	}
	return c.CheckEvaluable()
}

// CheckEvaluable rejects only rows the engine could not evaluate. Rows sent
// inline with a request need neither an id nor a code_system.
func (c BuildingCode) CheckEvaluable() error {
	switch {
	case !c.CheckType.Valid():
		return fmt.Errorf("code %s: unknown check_type %q", c.ref(), c.CheckType)
	case c.Field != "" && !c.Field.Valid():
		return fmt.Errorf("code %s: unknown field %q", c.ref(), c.Field)
	}
	if c.CheckType == CheckRange && c.ValueMin != nil && c.ValueMax != nil && *c.ValueMin > *c.ValueMax {
		return fmt.Errorf("code %s: value_min %v exceeds value_max %v", c.ref(), *c.ValueMin, *c.ValueMax)
	}
	return nil
}

func (c BuildingCode) ref() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.RequirementID != "":
		return c.RequirementID
	}
	return fmt.Sprintf("%q", c.RequirementName)
}

func (c BuildingCode) fixSuggestion() string {
	if c.FixSuggestion == nil {
		return ""
	}
	return *c.FixSuggestion
}

// Input is one user-entered building element. Only the fields relevant to
// InputType are meaningful; nil means "not provided", never zero.
type Input struct {
	ID         string       `json:"id,omitempty"`
	InputType  InputType    `json:"input_type"`
	RoomName   string       `json:"room_name,omitempty"`
	RoomType   string       `json:"room_type,omitempty"`
	UnitSystem units.System `json:"unit_system"`

	RoomArea         *float64 `json:"room_area,omitempty"`
	RoomMinDimension *float64 `json:"room_min_dimension,omitempty"`
	CeilingHeight    *float64 `json:"ceiling_height,omitempty"`
	HasSlopedCeiling *bool    `json:"has_sloped_ceiling,omitempty"`

	WindowOpeningArea   *float64 `json:"window_opening_area,omitempty"`
	WindowOpeningWidth  *float64 `json:"window_opening_width,omitempty"`
	WindowOpeningHeight *float64 `json:"window_opening_height,omitempty"`
	WindowSillHeight    *float64 `json:"window_sill_height,omitempty"`
	WindowGlazingArea   *float64 `json:"window_glazing_area,omitempty"`
	WindowIsEgress      *bool    `json:"window_is_egress,omitempty"`

	StairWidth          *float64 `json:"stair_width,omitempty"`
	StairRiserHeight    *float64 `json:"stair_riser_height,omitempty"`
	StairTreadDepth     *float64 `json:"stair_tread_depth,omitempty"`
	StairHeadroom       *float64 `json:"stair_headroom,omitempty"`
	StairHasHandrail    *bool    `json:"stair_has_handrail,omitempty"`
	StairHandrailHeight *float64 `json:"stair_handrail_height,omitempty"`
	StairLandingLength  *float64 `json:"stair_landing_length,omitempty"`
	StairFlightHeight   *float64 `json:"stair_flight_height,omitempty"`

	DoorWidth    *float64 `json:"door_width,omitempty"`
	DoorHeight   *float64 `json:"door_height,omitempty"`
	DoorIsEgress *bool    `json:"door_is_egress,omitempty"`
	HallwayWidth *float64 `json:"hallway_width,omitempty"`

	AlarmType string `json:"alarm_type,omitempty"`
}

// Validate checks the tag fields; per-type measurements are optional.
func (in Input) Validate() error {
	if !in.InputType.Valid() {
		return fmt.Errorf("unknown input_type %q", in.InputType)
	}
	if in.InputType != InputAlarm && !in.UnitSystem.Valid() {
		return fmt.Errorf("input %q: unknown unit_system %q", in.label(), in.UnitSystem)
	}
	return nil
}

// label is the display name used in results.
func (in Input) label() string {
	if in.RoomName != "" {
		return in.RoomName
	}
	switch in.InputType {
	case InputRoom:
		return "Room"
	case InputWindow:
		return "Window"
	case InputStair:
		return "Stair"
	case InputDoor:
		return "Door"
	case InputHallway:
		return "Hallway"
	case InputAlarm:
		return "Alarm"
	}
	return string(in.InputType)
}

// Result is the verdict for one evaluated pair.
type Result struct {
	CodeRequirementID string   `json:"code_requirement_id"`
	RequirementClause string   `json:"requirement_clause"`
	RequirementName   string   `json:"requirement_name"`
	Category          string   `json:"category"`
	Status            Status   `json:"status"`
	UserValue         *float64 `json:"user_value"`
	RequiredValue     string   `json:"required_value"`
	Unit              string   `json:"unit"`
	RoomName          string   `json:"room_name"`
	FixSuggestion     string   `json:"fix_suggestion"`
}

// ProjectConfig carries the project-level facts that gate whole-building
// checks. It is passed by value.
type ProjectConfig struct {
	HasBasement             bool   `json:"has_basement"`
	HasGarage               bool   `json:"has_garage"`
	GarageAttached          bool   `json:"garage_attached"`
	HasFuelBurningAppliance bool   `json:"has_fuel_burning_appliance"`
	NumStoreys              int    `json:"num_storeys"`
	BuildingType            string `json:"building_type"`
}

// Float and Bool are small helpers for building optional fields.
func Float(v float64) *float64 { return &v }

func Bool(v bool) *bool { return &v }

func String(v string) *string { return &v }
