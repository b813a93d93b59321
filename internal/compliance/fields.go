// v0
// internal/compliance/fields.go
package compliance

import "strings"

// Field names the input measurement a code requirement is checked against.
// The values double as the optional `field` column of a rule table.
type Field string

const (
	FieldNone Field = ""

	FieldRoomArea         Field = "room_area"
	FieldRoomMinDimension Field = "room_min_dimension"
	FieldCeilingHeight    Field = "ceiling_height"

	FieldWindowOpeningArea   Field = "window_opening_area"
	FieldWindowOpeningWidth  Field = "window_opening_width"
	FieldWindowOpeningHeight Field = "window_opening_height"
	FieldWindowSillHeight    Field = "window_sill_height"
	FieldWindowIsEgress      Field = "window_is_egress"

	FieldStairWidth          Field = "stair_width"
	FieldStairRiserHeight    Field = "stair_riser_height"
	FieldStairTreadDepth     Field = "stair_tread_depth"
	FieldStairHeadroom       Field = "stair_headroom"
	FieldStairFlightHeight   Field = "stair_flight_height"
	FieldStairLandingLength  Field = "stair_landing_length"
	FieldStairHandrailHeight Field = "stair_handrail_height"
	FieldStairHasHandrail    Field = "stair_has_handrail"

	FieldDoorWidth    Field = "door_width"
	FieldDoorHeight   Field = "door_height"
	FieldHallwayWidth Field = "hallway_width"
)

// fieldKind groups fields by the input phase that reads them.
type fieldKind int

const (
	kindRoom fieldKind = iota + 1
	kindWindow
	kindStair
	kindDoor
)

type fieldSpec struct {
	kind    fieldKind
	boolean bool
	get     func(Input) *float64
	getBool func(Input) *bool
}

var fieldSpecs = map[Field]fieldSpec{
	FieldRoomArea:         {kind: kindRoom, get: func(in Input) *float64 { return in.RoomArea }},
	FieldRoomMinDimension: {kind: kindRoom, get: func(in Input) *float64 { return in.RoomMinDimension }},
	FieldCeilingHeight:    {kind: kindRoom, get: func(in Input) *float64 { return in.CeilingHeight }},

	FieldWindowOpeningArea:   {kind: kindWindow, get: func(in Input) *float64 { return in.WindowOpeningArea }},
	FieldWindowOpeningWidth:  {kind: kindWindow, get: func(in Input) *float64 { return in.WindowOpeningWidth }},
	FieldWindowOpeningHeight: {kind: kindWindow, get: func(in Input) *float64 { return in.WindowOpeningHeight }},
	FieldWindowSillHeight:    {kind: kindWindow, get: func(in Input) *float64 { return in.WindowSillHeight }},
	FieldWindowIsEgress:      {kind: kindWindow, boolean: true, getBool: func(in Input) *bool { return in.WindowIsEgress }},

	FieldStairWidth:          {kind: kindStair, get: func(in Input) *float64 { return in.StairWidth }},
	FieldStairRiserHeight:    {kind: kindStair, get: func(in Input) *float64 { return in.StairRiserHeight }},
	FieldStairTreadDepth:     {kind: kindStair, get: func(in Input) *float64 { return in.StairTreadDepth }},
	FieldStairHeadroom:       {kind: kindStair, get: func(in Input) *float64 { return in.StairHeadroom }},
	FieldStairFlightHeight:   {kind: kindStair, get: func(in Input) *float64 { return in.StairFlightHeight }},
	FieldStairLandingLength:  {kind: kindStair, get: func(in Input) *float64 { return in.StairLandingLength }},
	FieldStairHandrailHeight: {kind: kindStair, get: func(in Input) *float64 { return in.StairHandrailHeight }},
	FieldStairHasHandrail:    {kind: kindStair, boolean: true, getBool: func(in Input) *bool { return in.StairHasHandrail }},

	FieldDoorWidth:    {kind: kindDoor, get: func(in Input) *float64 { return in.DoorWidth }},
	FieldDoorHeight:   {kind: kindDoor, get: func(in Input) *float64 { return in.DoorHeight }},
	FieldHallwayWidth: {kind: kindDoor, get: func(in Input) *float64 { return in.HallwayWidth }},
}

// Valid reports whether f is a known selector. The empty selector is valid
// and means "derive from the requirement name".
func (f Field) Valid() bool {
	if f == FieldNone {
		return true
	}
	_, ok := fieldSpecs[f]
	return ok
}

func (f Field) isBoolean() bool {
	return fieldSpecs[f].boolean
}

// value extracts the measurement for f. Boolean fields always yield a value
// (absent counts as false) so that presence checks are never suppressed.
func (f Field) value(in Input) (float64, bool) {
	spec, ok := fieldSpecs[f]
	if !ok {
		return 0, false
	}
	if spec.boolean {
		if b := spec.getBool(in); b != nil && *b {
			return 1, true
		}
		return 0, true
	}
	v := spec.get(in)
	if v == nil {
		return 0, false
	}
	return *v, true
}

// fieldRule maps a requirement to a field. A rule matches when every keyword
// in all is present, at least one of any is present (if any is set), no
// keyword in none is present, and, if set, the category matches. orBoolean
// additionally matches any boolean check.
type fieldRule struct {
	field     Field
	all       []string
	any       []string
	none      []string
	category  string
	appliesTo string
	orBoolean bool
}

func (r fieldRule) matches(code BuildingCode, name string) bool {
	if r.orBoolean && code.CheckType == CheckBoolean {
		return true
	}
	if r.appliesTo != "" && code.AppliesTo == r.appliesTo {
		return true
	}
	if len(r.all) == 0 && len(r.any) == 0 && r.category == "" {
		return false
	}
	for _, kw := range r.all {
		if !strings.Contains(name, kw) {
			return false
		}
	}
	if len(r.any) > 0 {
		hit := false
		for _, kw := range r.any {
			if strings.Contains(name, kw) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, kw := range r.none {
		if strings.Contains(name, kw) {
			return false
		}
	}
	if r.category != "" && code.Category != r.category {
		return false
	}
	return true
}

// Rules are evaluated top to bottom; the first match wins.
var fieldRules = map[fieldKind][]fieldRule{
	kindRoom: {
		{field: FieldRoomArea, any: []string{"area"}},
		{field: FieldRoomMinDimension, any: []string{"dimension"}},
		{field: FieldCeilingHeight, category: CategoryCeilingHeight},
	},
	kindWindow: {
		{field: FieldWindowOpeningArea, any: []string{"opening area", "net clear"}},
		{field: FieldWindowOpeningWidth, any: []string{"width"}},
		{field: FieldWindowOpeningHeight, any: []string{"height"}, none: []string{"sill"}},
		{field: FieldWindowSillHeight, any: []string{"sill"}},
	},
	kindStair: {
		{field: FieldStairWidth, any: []string{"width"}},
		{field: FieldStairRiserHeight, any: []string{"riser"}},
		{field: FieldStairTreadDepth, any: []string{"tread"}},
		{field: FieldStairHeadroom, any: []string{"headroom"}},
		{field: FieldStairFlightHeight, any: []string{"flight"}},
		{field: FieldStairLandingLength, any: []string{"landing"}},
		{field: FieldStairHandrailHeight, all: []string{"handrail", "height"}},
		{field: FieldStairHasHandrail, all: []string{"handrail", "required"}, orBoolean: true},
	},
	kindDoor: {
		{field: FieldHallwayWidth, any: []string{"hallway"}, appliesTo: "hallway"},
		{field: FieldDoorHeight, any: []string{"height"}},
		{field: FieldDoorWidth, any: []string{"width"}},
	},
}

// SelectField resolves which field of an input of the given type a code is
// checked against. An explicit Field on the code wins when it belongs to the
// same input phase; otherwise the keyword table is consulted.
func SelectField(t InputType, code BuildingCode) (Field, bool) {
	kind, ok := kindOf(t)
	if !ok {
		return FieldNone, false
	}
	if code.Field != FieldNone {
		spec, known := fieldSpecs[code.Field]
		if !known || spec.kind != kind {
			return FieldNone, false
		}
		return code.Field, true
	}
	name := strings.ToLower(code.RequirementName)
	for _, rule := range fieldRules[kind] {
		if rule.matches(code, name) {
			return rule.field, true
		}
	}
	return FieldNone, false
}

func kindOf(t InputType) (fieldKind, bool) {
	switch t {
	case InputRoom:
		return kindRoom, true
	case InputWindow:
		return kindWindow, true
	case InputStair:
		return kindStair, true
	case InputDoor, InputHallway:
		return kindDoor, true
	}
	return 0, false
}
