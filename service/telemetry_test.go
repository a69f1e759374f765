package service

import (
	"evpilot/models"
	"evpilot/types"
	"testing"
	"time"
)

func newTelemetryRig() (*Store, *SessionManager, *Aggregator) {
	logger := &testLogger{}
	store := NewStore(logger)
	store.AddCharger(testCharger("CH-1"))
	sessions := NewSessionManager(store, 0.45, logger)
	aggregator := NewAggregator(store, time.Second, time.Second, logger)
	aggregator.SetSessionManager(sessions)
	sessions.SetWatcher(aggregator)
	return store, sessions, aggregator
}

func TestTickIgnoresIdleGun(t *testing.T) {
	store, _, aggregator := newTelemetryRig()
	aggregator.Tick("CH-1:1")

	gun, _ := store.Gun("CH-1", 1)
	snapshot := gun.Snapshot()
	if snapshot.Power.ChargingWatts != 0 {
		t.Error("idle gun must not accumulate power readings")
	}
	if len(snapshot.History) != 0 {
		t.Error("idle gun must not gain history points")
	}
}

func TestTickUnknownGun(t *testing.T) {
	_, _, aggregator := newTelemetryRig()
	// must not panic
	aggregator.Tick("CH-9:1")
}

func TestTickAccumulatesEnergyAndCost(t *testing.T) {
	store, sessions, aggregator := newTelemetryRig()
	if _, err := sessions.Start("CH-1", 1, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	gun, _ := store.Gun("CH-1", 1)
	gun.mu.Lock()
	gun.lastUpdated = time.Now().Add(-30 * time.Second)
	gun.mu.Unlock()

	aggregator.Tick("CH-1:1")
	snapshot := gun.Snapshot()
	if snapshot.Session == nil {
		t.Fatal("session disappeared")
	}
	if snapshot.Session.Energy <= 0 {
		t.Errorf("energy must accumulate, got %f", snapshot.Session.Energy)
	}
	expectedCost := snapshot.Session.Energy * 0.45
	if diff := snapshot.Session.Cost - expectedCost; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost %f does not match energy * rate %f", snapshot.Session.Cost, expectedCost)
	}
	if len(snapshot.History) != 1 {
		t.Errorf("expected one history point, got %d", len(snapshot.History))
	}
}

func TestTickKeepsEfficiencyInBounds(t *testing.T) {
	store, sessions, aggregator := newTelemetryRig()
	if _, err := sessions.Start("CH-1", 1, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	gun, _ := store.Gun("CH-1", 1)
	for i := 0; i < 200; i++ {
		aggregator.Tick("CH-1:1")
		snapshot := gun.Snapshot()
		if snapshot.Status != types.GunStatusCharging {
			// a simulated cooling failure ends the run early
			return
		}
		eff := snapshot.Efficiency.ChargingEfficiency
		if eff < 0.85 || eff > 1.0 {
			t.Fatalf("efficiency out of bounds: %f", eff)
		}
		if snapshot.Power.ChargingWatts < 0 {
			t.Fatalf("negative power: %f", snapshot.Power.ChargingWatts)
		}
	}
}

func TestHistoryBoundedAtCapacity(t *testing.T) {
	store, sessions, aggregator := newTelemetryRig()
	if _, err := sessions.Start("CH-1", 1, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	gun, _ := store.Gun("CH-1", 1)
	for i := 0; i < 150; i++ {
		aggregator.Tick("CH-1:1")
		snapshot := gun.Snapshot()
		if snapshot.Status != types.GunStatusCharging {
			return
		}
	}
	if points := len(gun.Snapshot().History); points > historyCapacity {
		t.Errorf("history exceeded capacity: %d", points)
	}
}

func TestCoolingFailureFaultsGunOnTick(t *testing.T) {
	store, sessions, aggregator := newTelemetryRig()
	if _, err := sessions.Start("CH-1", 1, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	gun, _ := store.Gun("CH-1", 1)
	// well past the failure threshold, one tick cannot walk it back down
	gun.mu.Lock()
	gun.thermal.ModuleTemp = 95
	gun.mu.Unlock()

	aggregator.Tick("CH-1:1")

	snapshot := gun.Snapshot()
	if snapshot.Status != types.GunStatusFaulted {
		t.Fatalf("cooling failure must fault the gun, got %s", snapshot.Status)
	}
	if snapshot.Session != nil {
		t.Error("cooling failure must force-end the session")
	}
	found := false
	for _, alert := range snapshot.Alerts {
		if alert.Type == types.AlertTypeSafety && alert.Severity == types.AlertSeverityEmergency {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an emergency safety alert, got %+v", snapshot.Alerts)
	}
}

func TestCriticalTemperatureAlertDeduplicated(t *testing.T) {
	store, _, aggregator := newTelemetryRig()
	gun, _ := store.Gun("CH-1", 1)

	gun.mu.Lock()
	gun.thermal.ModuleTemp = 80
	first := aggregator.evaluateAlerts(gun, "CH-1:1", 0.95)
	second := aggregator.evaluateAlerts(gun, "CH-1:1", 0.95)
	gun.mu.Unlock()

	if len(first) != 1 {
		t.Fatalf("expected one alert on first evaluation, got %d", len(first))
	}
	if len(second) != 0 {
		t.Fatalf("unacknowledged alert must deduplicate, got %d more", len(second))
	}
	if first[0].Type != types.AlertTypeTemperature || first[0].Severity != types.AlertSeverityCritical {
		t.Errorf("unexpected alert: %+v", first[0])
	}
	if first[0].AutoResolve {
		t.Error("critical temperature alert must not auto-resolve")
	}
}

func TestEfficiencyAlertAutoResolves(t *testing.T) {
	store, _, aggregator := newTelemetryRig()
	gun, _ := store.Gun("CH-1", 1)

	gun.mu.Lock()
	raised := aggregator.evaluateAlerts(gun, "CH-1:1", 0.80)
	gun.mu.Unlock()
	if len(raised) != 1 || raised[0].Type != types.AlertTypeEfficiency {
		t.Fatalf("expected one efficiency alert, got %+v", raised)
	}

	gun.mu.Lock()
	aggregator.evaluateAlerts(gun, "CH-1:1", 0.95)
	gun.mu.Unlock()
	for _, alert := range gun.Snapshot().Alerts {
		if alert.Type == types.AlertTypeEfficiency && !alert.Acknowledged {
			t.Error("efficiency alert must auto-resolve once the condition clears")
		}
	}
}

func TestHeatLoadWarning(t *testing.T) {
	store, _, aggregator := newTelemetryRig()
	gun, _ := store.Gun("CH-1", 1)

	gun.mu.Lock()
	gun.thermal.HeatLoadPct = 90
	raised := aggregator.evaluateAlerts(gun, "CH-1:1", 0.95)
	gun.mu.Unlock()
	if len(raised) != 1 {
		t.Fatalf("expected one heat load alert, got %d", len(raised))
	}
	if raised[0].Severity != types.AlertSeverityWarning || !raised[0].AutoResolve {
		t.Errorf("heat load alert must be an auto-resolving warning: %+v", raised[0])
	}
}

func TestCoolingStatusLevels(t *testing.T) {
	cases := []struct {
		thermal models.ThermalMetrics
		want    types.CoolingStatus
	}{
		{models.ThermalMetrics{ModuleTemp: 40, HeatLoadPct: 30}, types.CoolingStatusNormal},
		{models.ThermalMetrics{ModuleTemp: 40, HeatLoadPct: 90}, types.CoolingStatusHigh},
		{models.ThermalMetrics{ModuleTemp: 75, HeatLoadPct: 50}, types.CoolingStatusCritical},
		{models.ThermalMetrics{ModuleTemp: 90, HeatLoadPct: 50}, types.CoolingStatusFault},
	}
	for _, c := range cases {
		if got := coolingStatus(c.thermal); got != c.want {
			t.Errorf("thermal %+v: expected %s, got %s", c.thermal, c.want, got)
		}
	}
}

func TestEstimatesFromCurrentRate(t *testing.T) {
	store, sessions, aggregator := newTelemetryRig()
	if _, err := sessions.Start("CH-1", 1, map[string]interface{}{"targetEnergy": 40.0}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	gun, _ := store.Gun("CH-1", 1)
	gun.mu.Lock()
	gun.session.TimeStart = time.Now().Add(-time.Minute)
	gun.lastUpdated = time.Now().Add(-30 * time.Second)
	gun.mu.Unlock()

	aggregator.Tick("CH-1:1")
	snapshot := gun.Snapshot()
	if snapshot.Estimates == nil {
		t.Fatal("estimates missing")
	}
	if snapshot.Estimates.RemainingEnergy <= 0 || snapshot.Estimates.RemainingEnergy > 40 {
		t.Errorf("remaining energy out of range: %f", snapshot.Estimates.RemainingEnergy)
	}
	if snapshot.Estimates.ChargingProgress < 0 || snapshot.Estimates.ChargingProgress > 100 {
		t.Errorf("progress out of range: %f", snapshot.Estimates.ChargingProgress)
	}
	if snapshot.Estimates.TimeToComplete <= 0 {
		t.Errorf("time to complete must be positive, got %f", snapshot.Estimates.TimeToComplete)
	}
	if snapshot.Estimates.AverageChargingKw <= 0 {
		t.Errorf("average rate must be positive, got %f", snapshot.Estimates.AverageChargingKw)
	}
}
