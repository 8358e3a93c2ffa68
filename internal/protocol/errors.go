package protocol

// Result is the outcome code carried by every garrison response.
type Result string

const (
	ResultSuccess             Result = "SUCCESS"
	ResultInvalidPlot         Result = "E_INVALID_PLOT"
	ResultInvalidBuildingID   Result = "E_INVALID_BUILDINGID"
	ResultInvalidPlotBuilding Result = "E_INVALID_PLOT_BUILDING"
	ResultNoBuilding          Result = "E_NO_BUILDING"
	ResultNotEnoughCurrency   Result = "E_NOT_ENOUGH_CURRENCY"
	ResultNotEnoughGold       Result = "E_NOT_ENOUGH_GOLD"
	ResultBlueprintKnown      Result = "E_BLUEPRINT_KNOWN"
	ResultBlueprintNotKnown   Result = "E_BLUEPRINT_NOT_KNOWN"
	ResultBuildingExists      Result = "E_BUILDING_EXISTS"
	ResultGenericUnknownError Result = "E_GENERIC_UNKNOWN"
)

func (r Result) OK() bool { return r == ResultSuccess }

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrRateLimit       = "E_RATE_LIMIT"

	// Session state.
	ErrNoGarrison     = "E_NO_GARRISON"
	ErrGarrisonExists = "E_GARRISON_EXISTS"
	ErrInternal       = "E_INTERNAL"
)

var knownResults = map[Result]struct{}{
	ResultSuccess:             {},
	ResultInvalidPlot:         {},
	ResultInvalidBuildingID:   {},
	ResultInvalidPlotBuilding: {},
	ResultNoBuilding:          {},
	ResultNotEnoughCurrency:   {},
	ResultNotEnoughGold:       {},
	ResultBlueprintKnown:      {},
	ResultBlueprintNotKnown:   {},
	ResultBuildingExists:      {},
	ResultGenericUnknownError: {},
}

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRateLimit:       {},
	ErrNoGarrison:      {},
	ErrGarrisonExists:  {},
	ErrInternal:        {},
}

func IsKnownResult(r Result) bool {
	_, ok := knownResults[r]
	return ok
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
