// v0
// internal/compliance/engine.go
package compliance

import (
	"strings"

	"github.com/auton88n/tradeayn-sub003/internal/units"
)

// Observer receives diagnostics from a run. Implementations must be safe for
// concurrent use when one Engine serves concurrent runs.
type Observer interface {
	// UnknownUnit is called once per run for each code whose unit tag the
	// converter does not recognize. The value was compared unconverted.
	UnknownUnit(code BuildingCode)
}

// Options tune an Engine. The zero value omits skipped pairs and observes nothing.
type Options struct {
	// ReportSkipped emits a not_applicable result for pairs whose input lacks
	// the measured field, instead of omitting them.
	ReportSkipped bool
	Observer      Observer
}

// Engine evaluates compliance inputs against a rule table. It holds no state
// between runs.
type Engine struct {
	opts Options
}

// New builds an Engine with the supplied options.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Run evaluates inputs against codes with default options.
func Run(inputs []Input, codes []BuildingCode, project ProjectConfig) []Result {
	return New(Options{}).Run(inputs, codes, project)
}

var roomCategories = map[string]bool{
	CategoryRoomSize:            true,
	CategoryCeilingHeight:       true,
	CategoryLightingVentilation: true,
}

var stairCategories = map[string]bool{
	CategoryStairs:    true,
	CategoryHandrails: true,
}

// Run produces one result per applicable (input, code) pair followed by the
// project-level checks. Results keep insertion order: rooms, windows,
// stairs, doors and hallways, fire separation, alarms.
func (e *Engine) Run(inputs []Input, codes []BuildingCode, project ProjectConfig) []Result {
	r := &run{opts: e.opts, reported: make(map[string]bool)}

	for _, in := range inputs {
		if in.InputType == InputRoom {
			r.checkRoom(in, codes)
		}
	}
	for _, in := range inputs {
		if in.InputType == InputWindow {
			r.checkWindow(in, codes)
		}
	}
	for _, in := range inputs {
		if in.InputType == InputStair {
			r.checkStair(in, codes)
		}
	}
	for _, in := range inputs {
		if in.InputType == InputDoor || in.InputType == InputHallway {
			r.checkDoor(in, codes)
		}
	}
	r.checkFireSeparation(codes, project)
	r.checkAlarms(inputs, codes, project)

	if r.results == nil {
		return []Result{}
	}
	return r.results
}

// run is the per-invocation scratch space.
type run struct {
	opts     Options
	results  []Result
	reported map[string]bool
}

func (r *run) emit(res Result) {
	r.results = append(r.results, res)
}

func (r *run) evaluate(in Input, field Field, code BuildingCode) {
	raw, ok := field.value(in)
	if !ok {
		if r.opts.ReportSkipped {
			r.emit(notApplicable(code, in.label()))
		}
		return
	}
	if field.isBoolean() {
		// presence fields are judged on truthiness whatever the check type
		code.CheckType = CheckBoolean
		r.emit(Compare(raw, code, in.label()))
		return
	}
	r.noteUnit(code)
	v := units.NormalizeToCodeUnit(raw, in.UnitSystem, code.Unit)
	r.emit(Compare(v, code, in.label()))
}

func (r *run) noteUnit(code BuildingCode) {
	if r.opts.Observer == nil {
		return
	}
	if _, ok := units.Lookup(code.Unit); ok {
		return
	}
	key := code.ID + "\x00" + code.Unit
	if r.reported[key] {
		return
	}
	r.reported[key] = true
	r.opts.Observer.UnknownUnit(code)
}

func (r *run) checkRoom(in Input, codes []BuildingCode) {
	tags := MapRoomType(in.RoomType)
	for _, code := range codes {
		if !roomCategories[code.Category] || !containsTag(tags, code.AppliesTo) {
			continue
		}
		field, ok := SelectField(InputRoom, code)
		if !ok {
			continue
		}
		r.evaluate(in, field, code)
	}
}

func (r *run) checkWindow(in Input, codes []BuildingCode) {
	egress := in.WindowIsEgress != nil && *in.WindowIsEgress
	for _, code := range codes {
		if code.Category != CategoryEgress {
			continue
		}
		if code.CheckType == CheckBoolean {
			r.evaluate(in, FieldWindowIsEgress, code)
			continue
		}
		// Non-egress windows are not held to egress dimensions.
		if !egress {
			continue
		}
		field, ok := SelectField(InputWindow, code)
		if !ok {
			continue
		}
		r.evaluate(in, field, code)
	}
}

func (r *run) checkStair(in Input, codes []BuildingCode) {
	for _, code := range codes {
		if !stairCategories[code.Category] {
			continue
		}
		field, ok := SelectField(InputStair, code)
		if !ok {
			continue
		}
		r.evaluate(in, field, code)
	}
}

func (r *run) checkDoor(in Input, codes []BuildingCode) {
	for _, code := range codes {
		if code.Category != CategoryHallwaysDoors {
			continue
		}
		field, ok := SelectField(in.InputType, code)
		if !ok {
			continue
		}
		if field == FieldHallwayWidth && in.InputType != InputHallway {
			continue
		}
		r.evaluate(in, field, code)
	}
}

func (r *run) checkFireSeparation(codes []BuildingCode, project ProjectConfig) {
	if !project.HasGarage {
		return
	}
	for _, code := range codes {
		if code.Category != CategoryFireSeparation {
			continue
		}
		required := code.fixSuggestion()
		if required == "" {
			required = "Required"
		}
		r.emit(Result{
			CodeRequirementID: code.ID,
			RequirementClause: code.RequirementID,
			RequirementName:   code.RequirementName,
			Category:          code.Category,
			Status:            StatusWarning,
			RequiredValue:     required,
			Unit:              code.Unit,
			RoomName:          "Garage",
		})
	}
}

func (r *run) checkAlarms(inputs []Input, codes []BuildingCode, project ProjectConfig) {
	present := false
	for _, in := range inputs {
		if in.InputType == InputAlarm {
			present = true
			break
		}
	}
	status := StatusWarning
	if present {
		status = StatusPass
	}
	for _, code := range codes {
		if code.Category != CategoryAlarms {
			continue
		}
		if strings.HasPrefix(code.AppliesTo, "co_") && !project.HasFuelBurningAppliance && !project.HasGarage {
			continue
		}
		r.emit(Result{
			CodeRequirementID: code.ID,
			RequirementClause: code.RequirementID,
			RequirementName:   code.RequirementName,
			Category:          code.Category,
			Status:            status,
			RequiredValue:     "Required",
			Unit:              code.Unit,
			RoomName:          "Whole building",
		})
	}
}

// MapRoomType returns the applicability tags for a room type.
func MapRoomType(roomType string) []string {
	switch strings.ToLower(strings.TrimSpace(roomType)) {
	case "bedroom":
		return []string{"bedroom", "habitable_room"}
	case "living_room":
		return []string{"living_room", "habitable_room"}
	case "kitchen":
		return []string{"kitchen", "habitable_room"}
	case "basement":
		return []string{"basement", "habitable_room"}
	case "bathroom":
		return []string{"bathroom"}
	case "laundry":
		return []string{"laundry"}
	case "hallway":
		return []string{"hallway"}
	default:
		return []string{"habitable_room"}
	}
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
