package types

import "testing"

func TestEfficiencyLevelOf(t *testing.T) {
	cases := []struct {
		efficiency float64
		want       EfficiencyLevel
	}{
		{0.99, EfficiencyExcellent},
		{0.97, EfficiencyExcellent},
		{0.95, EfficiencyGood},
		{0.90, EfficiencyAverage},
		{0.86, EfficiencyPoor},
		{0.80, EfficiencyCritical},
	}
	for _, c := range cases {
		if got := EfficiencyLevelOf(c.efficiency); got != c.want {
			t.Errorf("EfficiencyLevelOf(%f) = %s, want %s", c.efficiency, got, c.want)
		}
	}
}

func TestGetChargerStatus(t *testing.T) {
	if GetChargerStatus("Faulted") != ChargerStatusFaulted {
		t.Error("known status must map to itself")
	}
	if GetChargerStatus("garbage") != ChargerStatusAvailable {
		t.Error("unknown status must fall back to Available")
	}
}
