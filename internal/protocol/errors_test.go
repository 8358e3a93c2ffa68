package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrRateLimit,
		ErrNoGarrison,
		ErrGarrisonExists,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestIsKnownResult(t *testing.T) {
	cases := []Result{
		ResultSuccess,
		ResultInvalidPlot,
		ResultInvalidBuildingID,
		ResultInvalidPlotBuilding,
		ResultNoBuilding,
		ResultNotEnoughCurrency,
		ResultNotEnoughGold,
		ResultBlueprintKnown,
		ResultBlueprintNotKnown,
		ResultBuildingExists,
		ResultGenericUnknownError,
	}
	for _, c := range cases {
		if !IsKnownResult(c) {
			t.Fatalf("expected known result: %q", c)
		}
	}
	if IsKnownResult("") {
		t.Fatalf("empty result must not be known")
	}
	if !ResultSuccess.OK() || ResultNoBuilding.OK() {
		t.Fatalf("OK() mismatch")
	}
}
