package service

import (
	"evpilot/internal"
	"evpilot/models"
	"evpilot/types"
	"evpilot/utility"
	"fmt"
	"time"
)

// GunWatcher starts and stops the periodic telemetry tick of one gun.
type GunWatcher interface {
	Watch(gunId string)
	Unwatch(gunId string)
}

// SessionManager drives the gun lifecycle:
// available -> charging -> {completed, faulted}, charging -> available
// on manual stop. Completed sessions are cleared from the live store;
// the optional database only archives them.
type SessionManager struct {
	store      *Store
	logger     internal.LogHandler
	events     internal.EventHandler
	database   internal.Database
	watcher    GunWatcher
	costPerKwh float64
}

func NewSessionManager(store *Store, costPerKwh float64, logger internal.LogHandler) *SessionManager {
	return &SessionManager{
		store:      store,
		costPerKwh: costPerKwh,
		logger:     logger,
	}
}

func (m *SessionManager) SetEventHandler(events internal.EventHandler) {
	m.events = events
}

func (m *SessionManager) SetDatabase(database internal.Database) {
	m.database = database
}

func (m *SessionManager) SetWatcher(watcher GunWatcher) {
	m.watcher = watcher
}

// Start transitions a gun to charging and creates its session record.
func (m *SessionManager) Start(chargerId string, connectorId int, parameters map[string]interface{}) (*models.Session, error) {
	if connectorId < 1 {
		connectorId = 1
	}
	gun, err := m.store.Gun(chargerId, connectorId)
	if err != nil {
		return nil, err
	}
	gunId := models.GunId(chargerId, connectorId)

	gun.mu.Lock()
	if gun.status == types.GunStatusFaulted {
		gun.mu.Unlock()
		return nil, utility.Err(fmt.Sprintf("connector %d is faulted, reset the charger first", connectorId))
	}
	if gun.session != nil {
		gun.mu.Unlock()
		return nil, utility.Err(fmt.Sprintf("connector %d already has an active session", connectorId))
	}
	session := &models.Session{
		SessionId:   utility.NewSessionId(),
		ChargerId:   chargerId,
		ConnectorId: connectorId,
		VehicleId:   stringParameter(parameters, "vehicleId"),
		TimeStart:   time.Now(),
		CostPerKwh:  m.costPerKwh,
		Status:      types.SessionStatusActive,
	}
	if target := floatParameter(parameters, "targetEnergy"); target > 0 {
		session.TargetEnergy = target
	}
	gun.session = session
	gun.estimates = &models.Estimates{}
	gun.status = types.GunStatusCharging
	gun.connector.Status = string(types.GunStatusCharging)
	seedChargingMetrics(gun)
	connector := gun.connector
	gun.mu.Unlock()

	m.persistConnector(connector)
	if m.watcher != nil {
		m.watcher.Watch(gunId)
	}
	if m.events != nil {
		m.events.OnSessionStart(&internal.EventMessage{
			ChargerId:   chargerId,
			ConnectorId: connectorId,
			Time:        session.TimeStart,
			SessionId:   session.SessionId,
			Status:      string(types.GunStatusCharging),
		})
	}
	m.logger.FeatureEvent("SessionStart", chargerId, fmt.Sprintf("started session %s on connector %d", session.SessionId, connectorId))
	return session, nil
}

// seedChargingMetrics sets the starting point of the random walk; caller
// holds the gun lock.
func seedChargingMetrics(gun *Gun) {
	watts := gun.connector.MaxPower * 0.9
	gun.power.ChargingWatts = watts
	gun.power.OutputWatts = watts
	gun.power.Voltage = 400
	gun.power.Current = watts / 400
	gun.power.PowerFactor = 0.98
	gun.power.ChargingRatePct = watts / gun.connector.MaxPower * 100
	gun.efficiency.ChargingEfficiency = 0.97
	gun.efficiency.Level = types.EfficiencyLevelOf(0.97)
	gun.power.InputWatts = watts / gun.efficiency.ChargingEfficiency
	gun.thermal.ModuleTemp = 45
	gun.thermal.ConnectorTemp = 28
	gun.thermal.CableTemp = 32
	gun.thermal.CoolingStatus = types.CoolingStatusNormal
	gun.lastUpdated = time.Now()
}

// Stop ends the session on the given connector; connectorId 0 stops the
// first active session found on the charger. Returns the final energy
// and whether a session was actually running.
func (m *SessionManager) Stop(chargerId string, connectorId int) (float64, bool) {
	guns := m.candidateGuns(chargerId, connectorId)
	for _, gun := range guns {
		gun.mu.Lock()
		if gun.session == nil {
			gun.mu.Unlock()
			continue
		}
		session := gun.session
		now := time.Now()
		session.TimeStop = &now
		session.Status = types.SessionStatusCompleted
		finalEnergy := session.Energy
		archived := *session
		gunId := models.GunId(gun.chargerId, gun.connector.Id)
		gun.session = nil
		gun.estimates = nil
		gun.status = types.GunStatusAvailable
		gun.connector.Status = string(types.GunStatusAvailable)
		resetIdleMetrics(gun)
		connector := gun.connector
		gun.mu.Unlock()

		m.persistConnector(connector)
		m.finishSession(&archived, gunId)
		return finalEnergy, true
	}
	return 0, false
}

func (m *SessionManager) candidateGuns(chargerId string, connectorId int) []*Gun {
	if connectorId > 0 {
		gun, err := m.store.Gun(chargerId, connectorId)
		if err != nil {
			return nil
		}
		return []*Gun{gun}
	}
	state, ok := m.store.charger(chargerId)
	if !ok {
		return nil
	}
	guns := make([]*Gun, 0, len(state.guns))
	for _, gun := range state.guns {
		guns = append(guns, gun)
	}
	return guns
}

func resetIdleMetrics(gun *Gun) {
	gun.power.ChargingWatts = 0
	gun.power.OutputWatts = 0
	gun.power.InputWatts = 0
	gun.power.Voltage = 0
	gun.power.Current = 0
	gun.power.PowerFactor = 1.0
	gun.power.ChargingRatePct = 0
	gun.efficiency.ChargingEfficiency = 1.0
	gun.efficiency.EnergyLoss = 0
	gun.efficiency.Level = types.EfficiencyExcellent
	gun.lastUpdated = time.Now()
}

// persistConnector mirrors a gun status change into the registry.
func (m *SessionManager) persistConnector(connector models.Connector) {
	if m.database == nil {
		return
	}
	if err := m.database.UpdateConnector(&connector); err != nil {
		m.logger.Error("persist connector status", err)
	}
}

func (m *SessionManager) finishSession(session *models.Session, gunId string) {
	if m.watcher != nil {
		m.watcher.Unwatch(gunId)
	}
	charger, known := m.store.RecordSessionTotals(session.ChargerId, session.Energy)
	if m.database != nil {
		if err := m.database.ArchiveSession(session); err != nil {
			m.logger.Error("archive session", err)
		}
		if known {
			if err := m.database.UpdateCharger(&charger); err != nil {
				m.logger.Error("persist charger totals", err)
			}
		}
	}
	if m.events != nil {
		m.events.OnSessionStop(&internal.EventMessage{
			ChargerId:   session.ChargerId,
			ConnectorId: session.ConnectorId,
			Time:        time.Now(),
			SessionId:   session.SessionId,
			Status:      string(session.Status),
			Info:        fmt.Sprintf("delivered %.2f kWh, cost %.2f", session.Energy, session.Cost),
		})
	}
	m.logger.FeatureEvent("SessionStop", session.ChargerId, fmt.Sprintf("session %s finished with %.2f kWh", session.SessionId, session.Energy))
}

// Fault forcibly ends any active session on the gun and disables
// charging until the charger is reset.
func (m *SessionManager) Fault(gunId, reason string) {
	gun, err := m.store.GunById(gunId)
	if err != nil {
		m.logger.Warn(fmt.Sprintf("fault on unknown gun %s: %s", gunId, reason))
		return
	}
	gun.mu.Lock()
	var archived *models.Session
	if gun.session != nil {
		now := time.Now()
		gun.session.TimeStop = &now
		gun.session.Status = types.SessionStatusFaulted
		faulted := *gun.session
		archived = &faulted
		gun.session = nil
		gun.estimates = nil
	}
	gun.status = types.GunStatusFaulted
	gun.connector.Status = string(types.GunStatusFaulted)
	resetIdleMetrics(gun)
	chargerId := gun.chargerId
	connectorId := gun.connector.Id
	connector := gun.connector
	gun.mu.Unlock()

	m.persistConnector(connector)
	if m.watcher != nil {
		m.watcher.Unwatch(gunId)
	}
	if archived != nil && m.database != nil {
		if err := m.database.ArchiveSession(archived); err != nil {
			m.logger.Error("archive faulted session", err)
		}
	}
	if m.events != nil {
		m.events.OnStatusNotification(&internal.EventMessage{
			ChargerId:   chargerId,
			ConnectorId: connectorId,
			Time:        time.Now(),
			Status:      string(types.GunStatusFaulted),
			Info:        reason,
		})
	}
	m.logger.Warn(fmt.Sprintf("gun %s faulted: %s", gunId, reason))
}

// ClearFaults returns every faulted gun of a charger to service; invoked
// after a confirmed reset.
func (m *SessionManager) ClearFaults(chargerId string) {
	state, ok := m.store.charger(chargerId)
	if !ok {
		return
	}
	for _, gun := range state.guns {
		gun.mu.Lock()
		if gun.status == types.GunStatusFaulted {
			gun.status = types.GunStatusAvailable
			gun.connector.Status = string(types.GunStatusAvailable)
			gun.thermal.ModuleTemp = 25
			gun.thermal.HeatLoadPct = 10
			gun.thermal.CoolingStatus = types.CoolingStatusNormal
			gun.alerts = nil
		}
		gun.mu.Unlock()
	}
	if status, ok := m.store.ChargerModelStatus(chargerId); ok && status == types.ChargerStatusFaulted {
		m.store.SetChargerStatus(chargerId, types.ChargerStatusAvailable)
	}
}

func stringParameter(parameters map[string]interface{}, key string) string {
	if parameters == nil {
		return ""
	}
	if value, ok := parameters[key].(string); ok {
		return value
	}
	return ""
}

func floatParameter(parameters map[string]interface{}, key string) float64 {
	if parameters == nil {
		return 0
	}
	switch value := parameters[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	}
	return 0
}
