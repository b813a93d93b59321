// v0
// internal/compliance/engine_test.go
package compliance

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auton88n/tradeayn-sub003/internal/units"
)

func minCode(id, category, name string, min float64, unit, appliesTo string) BuildingCode {
	return BuildingCode{
		ID:              id,
		CodeSystem:      "IRC_2024",
		Category:        category,
		RequirementID:   "R" + id,
		RequirementName: name,
		CheckType:       CheckMin,
		ValueMin:        Float(min),
		Unit:            unit,
		AppliesTo:       appliesTo,
		FixSuggestion:   String("fix " + id),
	}
}

func boolCode(id, category, name, appliesTo string) BuildingCode {
	return BuildingCode{
		ID:              id,
		Category:        category,
		RequirementID:   "R" + id,
		RequirementName: name,
		CheckType:       CheckBoolean,
		Unit:            "boolean",
		AppliesTo:       appliesTo,
		FixSuggestion:   String("fix " + id),
	}
}

func TestBedroomAreaScenario(t *testing.T) {
	inputs := []Input{{InputType: InputRoom, RoomType: "bedroom", RoomArea: Float(65), UnitSystem: units.Imperial}}
	codes := []BuildingCode{{
		ID:              "r1",
		Category:        CategoryRoomSize,
		RequirementName: "Minimum room area",
		CheckType:       CheckMin,
		ValueMin:        Float(70),
		Unit:            "sqft",
		AppliesTo:       "bedroom",
	}}

	got := Run(inputs, codes, ProjectConfig{NumStoreys: 1})

	require.Len(t, got, 1)
	assert.Equal(t, StatusFail, got[0].Status)
	require.NotNil(t, got[0].UserValue)
	assert.Equal(t, 65.0, *got[0].UserValue)
	assert.Equal(t, "≥ 70 sqft", got[0].RequiredValue)
	assert.Equal(t, "", got[0].FixSuggestion)
	assert.Equal(t, "r1", got[0].CodeRequirementID)
	assert.Equal(t, "Room", got[0].RoomName)
}

func TestThresholdBoundaryIsInclusive(t *testing.T) {
	code := minCode("a", CategoryRoomSize, "Minimum floor area", 70, "sqft", "habitable_room")

	pass := Run([]Input{{InputType: InputRoom, RoomArea: Float(70), UnitSystem: units.Imperial}}, []BuildingCode{code}, ProjectConfig{})
	require.Len(t, pass, 1)
	assert.Equal(t, StatusPass, pass[0].Status)
	assert.Empty(t, pass[0].FixSuggestion)

	fail := Run([]Input{{InputType: InputRoom, RoomArea: Float(69.999), UnitSystem: units.Imperial}}, []BuildingCode{code}, ProjectConfig{})
	require.Len(t, fail, 1)
	assert.Equal(t, StatusFail, fail[0].Status)
	assert.Equal(t, "fix a", fail[0].FixSuggestion)
	assert.Equal(t, 70.0, *fail[0].UserValue, "user value is rounded for display only")
}

func TestRoomNormalizesMetricInput(t *testing.T) {
	code := minCode("a", CategoryRoomSize, "Minimum room area", 70, "sqft", "bedroom")
	in := Input{InputType: InputRoom, RoomName: "Bed 2", RoomType: "Bedroom", RoomArea: Float(7), UnitSystem: units.Metric}

	got := Run([]Input{in}, []BuildingCode{code}, ProjectConfig{})

	require.Len(t, got, 1)
	assert.Equal(t, StatusPass, got[0].Status)
	assert.Equal(t, 75.35, *got[0].UserValue)
	assert.Equal(t, "Bed 2", got[0].RoomName)
}

func TestRoomApplicabilityAndFieldSelection(t *testing.T) {
	codes := []BuildingCode{
		minCode("area", CategoryRoomSize, "Minimum habitable area", 70, "sqft", "habitable_room"),
		minCode("dim", CategoryRoomSize, "Minimum horizontal dimension", 7, "ft", "habitable_room"),
		minCode("ceil", CategoryCeilingHeight, "Minimum ceiling", 7, "ft", "habitable_room"),
		minCode("bath", CategoryRoomSize, "Bathroom area", 30, "sqft", "bathroom"),
		minCode("egress", CategoryEgress, "Opening area", 5.7, "sqft", "habitable_room"),
	}
	bedroom := Input{InputType: InputRoom, RoomType: "bedroom", UnitSystem: units.Imperial,
		RoomArea: Float(100), RoomMinDimension: Float(6), CeilingHeight: Float(8)}
	bathroom := Input{InputType: InputRoom, RoomType: "bathroom", UnitSystem: units.Imperial, RoomArea: Float(20)}

	got := Run([]Input{bedroom, bathroom}, codes, ProjectConfig{})

	require.Len(t, got, 4)
	ids := []string{got[0].CodeRequirementID, got[1].CodeRequirementID, got[2].CodeRequirementID, got[3].CodeRequirementID}
	assert.Equal(t, []string{"area", "dim", "ceil", "bath"}, ids)
	assert.Equal(t, StatusPass, got[0].Status)
	assert.Equal(t, StatusFail, got[1].Status)
	assert.Equal(t, StatusPass, got[2].Status)
	assert.Equal(t, StatusFail, got[3].Status)
}

func TestMissingFieldsAreSkipped(t *testing.T) {
	codes := []BuildingCode{minCode("area", CategoryRoomSize, "Minimum room area", 70, "sqft", "habitable_room")}
	in := Input{InputType: InputRoom, UnitSystem: units.Imperial}

	assert.Empty(t, Run([]Input{in}, codes, ProjectConfig{}))

	reported := New(Options{ReportSkipped: true}).Run([]Input{in}, codes, ProjectConfig{})
	require.Len(t, reported, 1)
	assert.Equal(t, StatusNotApplicable, reported[0].Status)
	assert.Nil(t, reported[0].UserValue)
	assert.Equal(t, "≥ 70 sqft", reported[0].RequiredValue)
}

func TestWindowEgress(t *testing.T) {
	codes := []BuildingCode{
		boolCode("req", CategoryEgress, "Egress window required", "bedroom"),
		minCode("area", CategoryEgress, "Net clear opening area", 5.7, "sqft", "bedroom"),
		minCode("w", CategoryEgress, "Minimum opening width", 20, "in", "bedroom"),
		minCode("h", CategoryEgress, "Minimum opening height", 24, "in", "bedroom"),
		{ID: "sill", Category: CategoryEgress, RequirementName: "Maximum sill height", CheckType: CheckMax, ValueMax: Float(44), Unit: "in"},
	}
	egress := Input{InputType: InputWindow, RoomName: "Bed window", UnitSystem: units.Imperial, WindowIsEgress: Bool(true),
		WindowOpeningArea: Float(6), WindowOpeningWidth: Float(22), WindowOpeningHeight: Float(23), WindowSillHeight: Float(40)}
	plain := Input{InputType: InputWindow, UnitSystem: units.Imperial, WindowOpeningWidth: Float(10)}

	got := Run([]Input{egress, plain}, codes, ProjectConfig{})

	require.Len(t, got, 6)
	statuses := map[string]Status{}
	for _, r := range got[:5] {
		statuses[r.CodeRequirementID] = r.Status
	}
	assert.Equal(t, map[string]Status{"req": StatusPass, "area": StatusPass, "w": StatusPass, "h": StatusFail, "sill": StatusPass}, statuses)
	assert.Equal(t, "req", got[5].CodeRequirementID, "non-egress window only gets the boolean check")
	assert.Equal(t, StatusFail, got[5].Status)
	assert.Equal(t, "fix req", got[5].FixSuggestion)
}

func TestStairBooleanShortCircuit(t *testing.T) {
	codes := []BuildingCode{boolCode("hr", CategoryHandrails, "Handrail required", "stair")}
	in := Input{InputType: InputStair, UnitSystem: units.Imperial, StairHasHandrail: Bool(true)}

	got := Run([]Input{in}, codes, ProjectConfig{})

	require.Len(t, got, 1)
	assert.Equal(t, StatusPass, got[0].Status)
	assert.Equal(t, "Required", got[0].RequiredValue)
}

func TestPresenceFieldsIgnoreNumericCheckType(t *testing.T) {
	codes := []BuildingCode{
		{ID: "hr", Category: CategoryHandrails, RequirementName: "Handrail required", CheckType: CheckMin, Unit: "in", FixSuggestion: String("Add a handrail")},
		{ID: "eg", Category: CategoryEgress, RequirementName: "Emergency escape", CheckType: CheckMax, Field: FieldWindowIsEgress, Unit: "sqft"},
	}
	bare := Input{InputType: InputStair, RoomName: "Main stair", UnitSystem: units.Imperial}
	railed := Input{InputType: InputStair, UnitSystem: units.Imperial, StairHasHandrail: Bool(true)}
	window := Input{InputType: InputWindow, UnitSystem: units.Metric, WindowIsEgress: Bool(true)}

	got := Run([]Input{bare, railed, window}, codes, ProjectConfig{})

	want := []Result{
		{CodeRequirementID: "eg", RequirementName: "Emergency escape", Category: CategoryEgress, Status: StatusPass,
			UserValue: Float(1), RequiredValue: "Required", Unit: "sqft", RoomName: "Window"},
		{CodeRequirementID: "hr", RequirementName: "Handrail required", Category: CategoryHandrails, Status: StatusFail,
			UserValue: Float(0), RequiredValue: "Required", Unit: "in", RoomName: "Main stair", FixSuggestion: "Add a handrail"},
		{CodeRequirementID: "hr", RequirementName: "Handrail required", Category: CategoryHandrails, Status: StatusPass,
			UserValue: Float(1), RequiredValue: "Required", Unit: "in", RoomName: "Stair"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestStairFieldPriority(t *testing.T) {
	codes := []BuildingCode{
		minCode("width", CategoryStairs, "Minimum stair width", 36, "in", "stair"),
		{ID: "riser", Category: CategoryStairs, RequirementName: "Maximum riser height", CheckType: CheckMax, ValueMax: Float(7.75), Unit: "in"},
		minCode("tread", CategoryStairs, "Minimum tread depth", 10, "in", "stair"),
		minCode("head", CategoryStairs, "Minimum headroom height", 80, "in", "stair"),
		{ID: "flight", Category: CategoryStairs, RequirementName: "Maximum flight height between landings", CheckType: CheckMax, ValueMax: Float(151), Unit: "in"},
		minCode("landing", CategoryStairs, "Minimum landing length", 36, "in", "stair"),
		{ID: "hrh", Category: CategoryHandrails, RequirementName: "Handrail height", CheckType: CheckRange, ValueMin: Float(34), ValueMax: Float(38), Unit: "in"},
	}
	in := Input{InputType: InputStair, UnitSystem: units.Metric,
		StairWidth: Float(900), StairRiserHeight: Float(200), StairTreadDepth: Float(260),
		StairHeadroom: Float(2050), StairFlightHeight: Float(3600), StairLandingLength: Float(900), StairHandrailHeight: Float(900)}

	got := Run([]Input{in}, codes, ProjectConfig{})

	require.Len(t, got, 7)
	want := map[string]Status{
		"width":   StatusFail, // 35.43 in
		"riser":   StatusFail, // 7.87 in
		"tread":   StatusPass, // 10.24 in
		"head":    StatusPass, // 80.71 in
		"flight":  StatusPass, // 141.73 in
		"landing": StatusFail, // 35.43 in
		"hrh":     StatusPass, // 35.43 in
	}
	for _, r := range got {
		assert.Equal(t, want[r.CodeRequirementID], r.Status, r.CodeRequirementID)
	}
	assert.Equal(t, 35.43, *got[0].UserValue)
	assert.Equal(t, "34–38 in", got[6].RequiredValue)
}

func TestDoorsAndHallways(t *testing.T) {
	codes := []BuildingCode{
		minCode("hall", CategoryHallwaysDoors, "Minimum hallway width", 36, "in", "hallway"),
		minCode("dw", CategoryHallwaysDoors, "Egress door width", 32, "in", "door"),
		minCode("dh", CategoryHallwaysDoors, "Egress door height", 78, "in", "door"),
	}
	door := Input{InputType: InputDoor, UnitSystem: units.Imperial, DoorWidth: Float(34), DoorHeight: Float(80)}
	hall := Input{InputType: InputHallway, UnitSystem: units.Imperial, HallwayWidth: Float(30)}

	got := Run([]Input{hall, door}, codes, ProjectConfig{})

	require.Len(t, got, 3)
	assert.Equal(t, "hall", got[0].CodeRequirementID)
	assert.Equal(t, StatusFail, got[0].Status)
	assert.Equal(t, "Hallway", got[0].RoomName)
	assert.Equal(t, "dw", got[1].CodeRequirementID)
	assert.Equal(t, "dh", got[2].CodeRequirementID)
	assert.Equal(t, StatusPass, got[1].Status)
	assert.Equal(t, StatusPass, got[2].Status)
}

func TestGarageFireSeparationWarnings(t *testing.T) {
	codes := []BuildingCode{
		{ID: "fs1", Category: CategoryFireSeparation, RequirementName: "Garage wall separation", CheckType: CheckBoolean, FixSuggestion: String("Install 1/2\" gypsum board")},
		{ID: "fs2", Category: CategoryFireSeparation, RequirementName: "Self-closing door", CheckType: CheckBoolean},
	}

	got := Run([]Input{{InputType: InputRoom, UnitSystem: units.Imperial}}, codes, ProjectConfig{HasGarage: true})

	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, StatusWarning, r.Status)
		assert.Equal(t, "Garage", r.RoomName)
		assert.Empty(t, r.FixSuggestion)
		assert.Nil(t, r.UserValue)
	}
	assert.Equal(t, "Install 1/2\" gypsum board", got[0].RequiredValue)
	assert.Equal(t, "Required", got[1].RequiredValue)

	assert.Empty(t, Run(nil, codes, ProjectConfig{}))
}

func TestAlarmPresence(t *testing.T) {
	codes := []BuildingCode{
		boolCode("smoke", CategoryAlarms, "Smoke alarm in each bedroom", "smoke_alarm"),
		boolCode("co", CategoryAlarms, "CO alarm outside sleeping areas", "co_alarm"),
	}

	got := Run(nil, codes, ProjectConfig{})
	require.Len(t, got, 1)
	assert.Equal(t, "smoke", got[0].CodeRequirementID)
	assert.Equal(t, StatusWarning, got[0].Status)

	withFuel := Run(nil, codes, ProjectConfig{HasFuelBurningAppliance: true})
	require.Len(t, withFuel, 2)

	present := Run([]Input{{InputType: InputAlarm, AlarmType: "smoke"}}, codes, ProjectConfig{HasGarage: true})
	require.Len(t, present, 2)
	for _, r := range present {
		assert.Equal(t, StatusPass, r.Status)
	}
}

func TestPhaseOrdering(t *testing.T) {
	codes := []BuildingCode{
		boolCode("alarm", CategoryAlarms, "Smoke alarm", "smoke_alarm"),
		{ID: "fs", Category: CategoryFireSeparation, RequirementName: "Separation", CheckType: CheckBoolean},
		minCode("door", CategoryHallwaysDoors, "Door width", 32, "in", "door"),
		minCode("stair", CategoryStairs, "Stair width", 36, "in", "stair"),
		boolCode("win", CategoryEgress, "Egress required", "bedroom"),
		minCode("room", CategoryRoomSize, "Room area", 70, "sqft", "habitable_room"),
	}
	inputs := []Input{
		{InputType: InputDoor, UnitSystem: units.Imperial, DoorWidth: Float(32)},
		{InputType: InputStair, UnitSystem: units.Imperial, StairWidth: Float(36)},
		{InputType: InputWindow, UnitSystem: units.Imperial},
		{InputType: InputRoom, UnitSystem: units.Imperial, RoomArea: Float(80)},
	}

	got := Run(inputs, codes, ProjectConfig{HasGarage: true})

	var order []string
	for _, r := range got {
		order = append(order, r.CodeRequirementID)
	}
	assert.Equal(t, []string{"room", "win", "stair", "door", "fs", "alarm"}, order)
}

func TestRunIsIdempotent(t *testing.T) {
	codes := []BuildingCode{
		minCode("room", CategoryRoomSize, "Room area", 70, "sqft", "habitable_room"),
		boolCode("alarm", CategoryAlarms, "Smoke alarm", "smoke_alarm"),
	}
	inputs := []Input{{InputType: InputRoom, UnitSystem: units.Metric, RoomArea: Float(6.2)}}
	cfg := ProjectConfig{NumStoreys: 2}

	first := Run(inputs, codes, cfg)
	second := Run(inputs, codes, cfg)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	codes := []BuildingCode{minCode("room", CategoryRoomSize, "Room area", 70, "sqft", "habitable_room")}
	eng := New(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(area float64) {
			defer wg.Done()
			got := eng.Run([]Input{{InputType: InputRoom, UnitSystem: units.Imperial, RoomArea: Float(area)}}, codes, ProjectConfig{})
			if len(got) != 1 || *got[0].UserValue != area {
				t.Errorf("unexpected result for %v: %+v", area, got)
			}
		}(float64(60 + i))
	}
	wg.Wait()
}

type unitRecorder struct {
	mu    sync.Mutex
	codes []string
}

func (u *unitRecorder) UnknownUnit(code BuildingCode) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.codes = append(u.codes, code.ID)
}

func TestUnknownUnitsAreReportedOncePerRun(t *testing.T) {
	code := minCode("odd", CategoryRoomSize, "Room area", 70, "acres", "habitable_room")
	rec := &unitRecorder{}
	eng := New(Options{Observer: rec})
	inputs := []Input{
		{InputType: InputRoom, UnitSystem: units.Metric, RoomArea: Float(80)},
		{InputType: InputRoom, UnitSystem: units.Metric, RoomArea: Float(60)},
	}

	got := eng.Run(inputs, []BuildingCode{code}, ProjectConfig{})

	require.Len(t, got, 2)
	assert.Equal(t, 80.0, *got[0].UserValue, "unknown tags pass through unconverted")
	assert.Equal(t, []string{"odd"}, rec.codes)
}

func TestEmptyRunReturnsEmptySlice(t *testing.T) {
	got := Run(nil, nil, ProjectConfig{})
	require.NotNil(t, got)
	assert.Len(t, got, 0)
}
