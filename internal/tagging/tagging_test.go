package tagging

import "testing"

func TestSuggestSensorTypes_MatchesColumnLabels(t *testing.T) {
	got := SuggestSensorTypes([]string{"Timestamp", "Zone Temp (degF)", "RH %", "Supply Air Flow CFM"})
	if len(got) != 3 {
		t.Fatalf("expected 3 suggestions, got %d: %#v", len(got), got)
	}
	if got[0].Column != 1 || got[0].Type != SensorTemperature {
		t.Fatalf("expected temperature on column 1, got %#v", got[0])
	}
	if got[1].Column != 2 || got[1].Type != SensorHumidity {
		t.Fatalf("expected humidity on column 2, got %#v", got[1])
	}
	if got[2].Column != 3 || got[2].Type != SensorFlow {
		t.Fatalf("expected flow on column 3, got %#v", got[2])
	}
}

func TestSuggestSensorTypes_SetpointWinsOverQuantity(t *testing.T) {
	got := SuggestSensorTypes([]string{"Zone Temp SP"})
	if len(got) != 1 || got[0].Type != SensorSetpoint {
		t.Fatalf("expected a single setpoint suggestion, got %#v", got)
	}
	if got[0].Evidence["match"] != "sp" {
		t.Fatalf("expected evidence to record the matched token, got %#v", got[0].Evidence)
	}
}

func TestSuggestSensorTypes_IgnoresSyntheticLabels(t *testing.T) {
	if got := SuggestSensorTypes([]string{"Column 1", "Column 2", ""}); len(got) != 0 {
		t.Fatalf("expected no suggestions, got %#v", got)
	}
}

func TestLevelTaxonomy(t *testing.T) {
	if !IsValidLevel(" Building ") {
		t.Fatalf("expected building to be a valid level")
	}
	if IsValidLevel("galaxy") {
		t.Fatalf("expected galaxy to be rejected")
	}
	got := NormalizeList([]string{"Floor", "floor", "", "Building"})
	if len(got) != 2 || got[0] != "building" || got[1] != "floor" {
		t.Fatalf("unexpected normalized list %#v", got)
	}
}
