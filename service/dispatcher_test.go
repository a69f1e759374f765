package service

import (
	"evpilot/models"
	"evpilot/transport"
	"evpilot/types"
	"strings"
	"sync"
	"testing"
	"time"
)

func newCommandRig(t *testing.T) (*Store, *SessionManager, *Controller, *transport.Simulator) {
	t.Helper()
	logger := &testLogger{}
	store := NewStore(logger)
	store.AddCharger(testCharger("CH-1"), *models.NewConnector(1, "CH-1"), *models.NewConnector(2, "CH-1"))

	sessions := NewSessionManager(store, 0.45, logger)
	aggregator := NewAggregator(store, time.Second, time.Second, logger)
	aggregator.SetSessionManager(sessions)
	sessions.SetWatcher(aggregator)

	simulator := transport.NewSimulator(logger)
	simulator.SetLatency(time.Millisecond)
	simulator.RegisterCharger("CH-1", 2)

	controller := NewController(simulator, store, sessions, logger)
	controller.SetCommandTimeout(200 * time.Millisecond)
	if err := controller.Start(); err != nil {
		t.Fatalf("controller start failed: %v", err)
	}
	t.Cleanup(controller.Stop)
	t.Cleanup(aggregator.Stop)
	// let the simulator's connect-time heartbeat burst settle
	time.Sleep(10 * time.Millisecond)
	return store, sessions, controller, simulator
}

func TestExecuteCommandValidation(t *testing.T) {
	_, _, controller, _ := newCommandRig(t)

	result := controller.ExecuteCommand(&models.CommandRequest{Command: models.CommandClearCache})
	if result.Success || result.Status != types.CommandStatusRejected {
		t.Errorf("empty charger id must be rejected: %+v", result)
	}

	result = controller.ExecuteCommand(&models.CommandRequest{ChargerId: "CH-1"})
	if result.Success || result.Status != types.CommandStatusRejected {
		t.Errorf("empty command must be rejected: %+v", result)
	}

	result = controller.ExecuteCommand(&models.CommandRequest{ChargerId: "CH-9", Command: models.CommandClearCache})
	if result.Success {
		t.Errorf("unknown charger must be rejected: %+v", result)
	}
}

func TestExecuteCommandOfflineCharger(t *testing.T) {
	store, _, controller, _ := newCommandRig(t)
	store.SetStaleAfter(time.Nanosecond)
	time.Sleep(time.Millisecond)

	result := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId: "CH-1",
		Command:   models.CommandStartCharging,
	})
	if result.Success {
		t.Fatal("command to an offline charger must fail")
	}
	if !strings.Contains(result.Message, "not available") {
		t.Errorf("unexpected message: %s", result.Message)
	}
}

func TestExecuteCommandTimeout(t *testing.T) {
	_, _, controller, simulator := newCommandRig(t)
	simulator.SetOnline("CH-1", false)

	result := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId: "CH-1",
		Command:   models.CommandClearCache,
	})
	if result.Success {
		t.Fatal("silent device must produce a failed result")
	}
	if !strings.Contains(result.Message, "timed out") {
		t.Errorf("expected timeout message, got: %s", result.Message)
	}
	if result.MessageId == "" {
		t.Error("timed out result still carries its message id")
	}
}

func TestStartAndStopCharging(t *testing.T) {
	store, _, controller, _ := newCommandRig(t)

	start := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId:   "CH-1",
		Command:     models.CommandStartCharging,
		ConnectorId: 1,
		Parameters:  map[string]interface{}{"vehicleId": "EV-7"},
	})
	if !start.Success || start.Status != types.CommandStatusAccepted {
		t.Fatalf("start failed: %+v", start)
	}
	sessionId, ok := start.Data["sessionId"].(string)
	if !ok || !strings.HasPrefix(sessionId, "sess_") {
		t.Fatalf("start result must carry a session id, got %+v", start.Data)
	}
	gun, _ := store.Gun("CH-1", 1)
	if gun.Snapshot().Status != types.GunStatusCharging {
		t.Error("gun must be Charging after an accepted start")
	}

	stop := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId:   "CH-1",
		Command:     models.CommandStopCharging,
		ConnectorId: 1,
	})
	if !stop.Success {
		t.Fatalf("stop failed: %+v", stop)
	}
	if _, ok = stop.Data["finalEnergy"]; !ok {
		t.Error("stop result must report final energy")
	}
	if gun.Snapshot().Status != types.GunStatusAvailable {
		t.Error("gun must be Available after stop")
	}
}

func TestStartChargingBusyConnector(t *testing.T) {
	_, sessions, controller, _ := newCommandRig(t)
	if _, err := sessions.Start("CH-1", 1, nil); err != nil {
		t.Fatalf("seed session failed: %v", err)
	}

	result := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId:   "CH-1",
		Command:     models.CommandStartCharging,
		ConnectorId: 1,
	})
	if result.Success {
		t.Fatal("start on a busy connector must be rejected")
	}
}

func TestStopWithoutActiveSession(t *testing.T) {
	_, _, controller, _ := newCommandRig(t)

	result := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId: "CH-1",
		Command:   models.CommandStopCharging,
	})
	if !result.Success {
		t.Fatalf("stop without session is still a defined success: %+v", result)
	}
	if energy, ok := result.Data["finalEnergy"].(float64); !ok || energy != 0 {
		t.Errorf("expected final energy 0, got %+v", result.Data)
	}
}

func TestResetClearsFaults(t *testing.T) {
	_, sessions, controller, _ := newCommandRig(t)
	sessions.Fault("CH-1:1", "cooling system failure")

	blocked := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId:   "CH-1",
		Command:     models.CommandStartCharging,
		ConnectorId: 1,
	})
	if blocked.Success {
		t.Fatal("faulted connector must refuse a start")
	}

	reset := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId: "CH-1",
		Command:   models.CommandResetCharger,
	})
	if !reset.Success {
		t.Fatalf("reset failed: %+v", reset)
	}

	start := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId:   "CH-1",
		Command:     models.CommandStartCharging,
		ConnectorId: 1,
	})
	if !start.Success {
		t.Errorf("start after reset must succeed: %+v", start)
	}
}

func TestRebootReportsDowntime(t *testing.T) {
	_, _, controller, _ := newCommandRig(t)

	result := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId: "CH-1",
		Command:   models.CommandRebootCharger,
	})
	if !result.Success {
		t.Fatalf("reboot failed: %+v", result)
	}
	if _, ok := result.Data["estimatedDowntime"]; !ok {
		t.Error("hard reset must report estimated downtime")
	}
}

func TestUnlockConnector(t *testing.T) {
	_, _, controller, _ := newCommandRig(t)

	result := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId:   "CH-1",
		Command:     models.CommandUnlockConnector,
		ConnectorId: 2,
	})
	if !result.Success {
		t.Fatalf("unlock failed: %+v", result)
	}
}

func TestClearCacheReportsEntries(t *testing.T) {
	_, _, controller, _ := newCommandRig(t)

	result := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId: "CH-1",
		Command:   models.CommandClearCache,
	})
	if !result.Success {
		t.Fatalf("clear cache failed: %+v", result)
	}
	if _, ok := result.Data["clearedEntries"]; !ok {
		t.Error("result must report cleared entries")
	}
}

func TestUpdateFirmware(t *testing.T) {
	_, _, controller, _ := newCommandRig(t)

	result := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId:  "CH-1",
		Command:    models.CommandUpdateFirmware,
		Parameters: map[string]interface{}{"firmwareUrl": "https://firmware.example/2.1.6"},
	})
	if !result.Success {
		t.Fatalf("firmware update failed: %+v", result)
	}
	if result.Data["version"] == "" {
		t.Error("result must report the target version")
	}
}

func TestUnknownCommandGoesGeneric(t *testing.T) {
	_, _, controller, _ := newCommandRig(t)

	result := controller.ExecuteCommand(&models.CommandRequest{
		ChargerId: "CH-1",
		Command:   "Recalibrate Sensors",
	})
	if !result.Success {
		t.Fatalf("generic command failed: %+v", result)
	}
	if generic, ok := result.Data["generic"].(bool); !ok || !generic {
		t.Errorf("generic flag missing: %+v", result.Data)
	}
}

func TestConcurrentCommandsGetDistinctMessageIds(t *testing.T) {
	_, _, controller, _ := newCommandRig(t)

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := controller.ExecuteCommand(&models.CommandRequest{
				ChargerId: "CH-1",
				Command:   models.CommandClearCache,
			})
			mu.Lock()
			defer mu.Unlock()
			if !result.Success {
				t.Errorf("command failed: %+v", result)
			}
			if seen[result.MessageId] {
				t.Errorf("duplicate message id: %s", result.MessageId)
			}
			seen[result.MessageId] = true
		}()
	}
	wg.Wait()
}
