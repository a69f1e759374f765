package service

import (
	"evpilot/models"
	"evpilot/types"
	"sync"
	"testing"
	"time"
)

type testLogger struct{}

func (l *testLogger) FeatureEvent(feature, id, text string) {}
func (l *testLogger) Debug(text string)                     {}
func (l *testLogger) Warn(text string)                      {}
func (l *testLogger) Error(text string, err error)          {}
func (l *testLogger) RawDataEvent(direction, data string)   {}

func testCharger(id string) models.Charger {
	return models.Charger{
		Id:        id,
		IsEnabled: true,
		MaxPower:  50000,
		StationId: "station-test",
		Status:    string(types.ChargerStatusAvailable),
	}
}

func TestAddChargerCreatesDefaultConnector(t *testing.T) {
	store := NewStore(&testLogger{})
	store.AddCharger(testCharger("CH-1"))

	snapshot, err := store.GetChargerStatus("CH-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot.Connectors) != 1 {
		t.Fatalf("expected 1 connector, got %d", len(snapshot.Connectors))
	}
	if snapshot.Connectors[0].MaxPower <= 0 {
		t.Errorf("connector max power must be positive, got %f", snapshot.Connectors[0].MaxPower)
	}
	if snapshot.Status != types.ChargerStatusAvailable {
		t.Errorf("expected Available, got %s", snapshot.Status)
	}
}

func TestGetChargerStatusUnknown(t *testing.T) {
	store := NewStore(&testLogger{})
	if _, err := store.GetChargerStatus("nope"); err == nil {
		t.Fatal("expected error for unknown charger")
	}
}

func TestHeartbeat(t *testing.T) {
	store := NewStore(&testLogger{})
	store.AddCharger(testCharger("CH-1"))

	if !store.Heartbeat("CH-1") {
		t.Error("heartbeat for known charger must succeed")
	}
	if store.Heartbeat("CH-2") {
		t.Error("heartbeat for unknown charger must fail")
	}
	snapshot, _ := store.GetChargerStatus("CH-1")
	if time.Since(snapshot.LastHeartbeat) > time.Second {
		t.Error("heartbeat did not refresh last contact time")
	}
}

func TestConcurrentStatusReadsAndWrites(t *testing.T) {
	store := NewStore(&testLogger{})
	store.AddCharger(testCharger("CH-1"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				store.Heartbeat("CH-1")
				store.SetChargerStatus("CH-1", types.ChargerStatusAvailable)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if _, err := store.GetChargerStatus("CH-1"); err != nil {
					t.Errorf("status read failed: %v", err)
					return
				}
				if _, ok := store.ChargerModelStatus("CH-1"); !ok {
					t.Error("charger disappeared during reads")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestRecordSessionTotals(t *testing.T) {
	store := NewStore(&testLogger{})
	store.AddCharger(testCharger("CH-1"))

	if _, known := store.RecordSessionTotals("CH-9", 10); known {
		t.Error("totals for unknown charger must report not known")
	}
	store.RecordSessionTotals("CH-1", 12.5)
	charger, known := store.RecordSessionTotals("CH-1", 7.5)
	if !known {
		t.Fatal("totals for known charger must succeed")
	}
	if charger.TotalSessions != 2 {
		t.Errorf("expected 2 sessions counted, got %d", charger.TotalSessions)
	}
	if charger.TotalEnergy != 20 {
		t.Errorf("expected 20 kWh counted, got %f", charger.TotalEnergy)
	}
}

func TestStaleChargerReportedOffline(t *testing.T) {
	store := NewStore(&testLogger{})
	store.AddCharger(testCharger("CH-1"))
	store.SetStaleAfter(time.Nanosecond)
	time.Sleep(time.Millisecond)

	snapshot, err := store.GetChargerStatus("CH-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Status != types.ChargerStatusOffline {
		t.Errorf("stale charger must be Offline, got %s", snapshot.Status)
	}
}

func TestFaultedStickierThanStaleness(t *testing.T) {
	store := NewStore(&testLogger{})
	store.AddCharger(testCharger("CH-1"))
	store.SetChargerStatus("CH-1", types.ChargerStatusFaulted)
	store.SetStaleAfter(time.Nanosecond)
	time.Sleep(time.Millisecond)

	snapshot, _ := store.GetChargerStatus("CH-1")
	if snapshot.Status != types.ChargerStatusFaulted {
		t.Errorf("faulted charger must stay Faulted, got %s", snapshot.Status)
	}
}

func TestGunById(t *testing.T) {
	store := NewStore(&testLogger{})
	store.AddCharger(testCharger("CH-1"), *models.NewConnector(1, "CH-1"), *models.NewConnector(2, "CH-1"))

	gun, err := store.GunById("CH-1:2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gun.connector.Id != 2 {
		t.Errorf("expected connector 2, got %d", gun.connector.Id)
	}
	if _, err = store.GunById("CH-1:7"); err == nil {
		t.Error("expected error for unknown gun")
	}
}

func TestDeviceStatusNeverOverridesSession(t *testing.T) {
	store := NewStore(&testLogger{})
	store.AddCharger(testCharger("CH-1"))
	sessions := NewSessionManager(store, 0.45, &testLogger{})
	if _, err := sessions.Start("CH-1", 1, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	store.UpdateConnectorStatus("CH-1", 1, types.GunStatusAvailable)
	gun, _ := store.Gun("CH-1", 1)
	if gun.Snapshot().Status != types.GunStatusCharging {
		t.Error("device status must not override a live session")
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	store := NewStore(&testLogger{})
	store.AddCharger(testCharger("CH-1"))
	gun, _ := store.Gun("CH-1", 1)
	gun.mu.Lock()
	alert, ok := raiseAlert(gun, "CH-1:1", types.AlertTypeTemperature, types.AlertSeverityCritical, "hot", false)
	gun.mu.Unlock()
	if !ok {
		t.Fatal("alert was not raised")
	}

	if err := store.AcknowledgeAlert("CH-1:1", alert.Id); err != nil {
		t.Fatalf("ack failed: %v", err)
	}
	metrics, _ := store.GunMetrics("CH-1:1")
	if len(metrics.Alerts) != 1 || !metrics.Alerts[0].Acknowledged {
		t.Error("alert must be acknowledged")
	}
	if err := store.AcknowledgeAlert("CH-1:1", "missing"); err == nil {
		t.Error("expected error for unknown alert id")
	}
}

func TestActiveSessions(t *testing.T) {
	store := NewStore(&testLogger{})
	store.AddCharger(testCharger("CH-1"))
	store.AddCharger(testCharger("CH-2"))
	sessions := NewSessionManager(store, 0.45, &testLogger{})
	if _, err := sessions.Start("CH-1", 1, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	counts := store.ActiveSessions()
	if counts["station-test"] != 1 {
		t.Errorf("expected 1 active session, got %d", counts["station-test"])
	}
}
