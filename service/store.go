package service

import (
	"evpilot/internal"
	"evpilot/models"
	"evpilot/types"
	"evpilot/utility"
	"fmt"
	"sync"
	"time"
)

const (
	defaultStaleAfter = 5 * time.Minute
	historyCapacity   = 100
)

// Store is the single owner of charger, gun and session state. All
// mutation funnels through telemetry ticks, inbound protocol events or
// confirmed command outcomes.
type Store struct {
	mu         sync.RWMutex
	chargers   map[string]*ChargerState
	logger     internal.LogHandler
	staleAfter time.Duration
}

type ChargerState struct {
	model         models.Charger
	guns          map[int]*Gun
	lastHeartbeat time.Time
}

// Gun is the live record of a single connector. Each gun carries its own
// lock so ticks for different guns may run in parallel while writes to
// one gun stay serialized.
type Gun struct {
	mu          sync.Mutex
	connector   models.Connector
	chargerId   string
	stationId   string
	status      types.GunStatus
	power       models.PowerMetrics
	thermal     models.ThermalMetrics
	efficiency  models.EfficiencyMetrics
	session     *models.Session
	estimates   *models.Estimates
	alerts      []models.Alert
	history     *History
	lastUpdated time.Time
}

func NewStore(logger internal.LogHandler) *Store {
	return &Store{
		chargers:   make(map[string]*ChargerState),
		logger:     logger,
		staleAfter: defaultStaleAfter,
	}
}

func (s *Store) SetStaleAfter(staleAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleAfter = staleAfter
}

// AddCharger registers a charger and its connectors. A charger always
// has at least one connector; one is created when none are given.
func (s *Store) AddCharger(model models.Charger, connectors ...models.Connector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(connectors) == 0 {
		connectors = append(connectors, *models.NewConnector(1, model.Id))
	}
	state := &ChargerState{
		model:         model,
		guns:          make(map[int]*Gun),
		lastHeartbeat: time.Now(),
	}
	for _, connector := range connectors {
		if connector.MaxPower <= 0 {
			connector.MaxPower = model.MaxPower
		}
		if connector.MaxPower <= 0 {
			connector.MaxPower = 50000
		}
		state.guns[connector.Id] = newGun(model, connector)
	}
	s.chargers[model.Id] = state
}

func newGun(model models.Charger, connector models.Connector) *Gun {
	return &Gun{
		connector: connector,
		chargerId: model.Id,
		stationId: model.StationId,
		status:    types.GunStatusAvailable,
		power: models.PowerMetrics{
			MaxOutputWatts: connector.MaxPower,
			PowerFactor:    1.0,
		},
		thermal: models.ThermalMetrics{
			ModuleTemp:    25,
			ConnectorTemp: 23,
			CableTemp:     23,
			AmbientTemp:   22,
			HeatLoadPct:   10,
			CoolingStatus: types.CoolingStatusNormal,
		},
		efficiency: models.EfficiencyMetrics{
			ChargingEfficiency: 1.0,
			Level:              types.EfficiencyExcellent,
		},
		history:     NewHistory(historyCapacity),
		lastUpdated: time.Now(),
	}
}

func (s *Store) charger(chargerId string) (*ChargerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.chargers[chargerId]
	return state, ok
}

// Heartbeat refreshes the last contact time of a charger.
func (s *Store) Heartbeat(chargerId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.chargers[chargerId]
	if !ok {
		s.logger.Warn(fmt.Sprintf("heartbeat from unknown charger: %s", chargerId))
		return false
	}
	state.lastHeartbeat = time.Now()
	return true
}

func (s *Store) SetChargerStatus(chargerId string, status types.ChargerStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.chargers[chargerId]; ok {
		state.model.Status = string(status)
	}
}

// ChargerModelStatus returns the stored (device-reported) status of a
// charger, before staleness or occupancy classification.
func (s *Store) ChargerModelStatus(chargerId string) (types.ChargerStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.chargers[chargerId]
	if !ok {
		return "", false
	}
	return types.GetChargerStatus(state.model.Status), true
}

// RecordSessionTotals folds a finished session into the charger's
// lifetime counters and returns the updated model for persistence.
func (s *Store) RecordSessionTotals(chargerId string, energy float64) (models.Charger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.chargers[chargerId]
	if !ok {
		return models.Charger{}, false
	}
	state.model.TotalEnergy += energy
	state.model.TotalSessions++
	return state.model, true
}

func (s *Store) UpdateConnectorStatus(chargerId string, connectorId int, status types.GunStatus) {
	state, ok := s.charger(chargerId)
	if !ok {
		s.logger.Warn(fmt.Sprintf("status update for unknown charger: %s", chargerId))
		return
	}
	gun, ok := state.guns[connectorId]
	if !ok {
		s.logger.Warn(fmt.Sprintf("status update for unknown connector: %s", models.GunId(chargerId, connectorId)))
		return
	}
	gun.mu.Lock()
	defer gun.mu.Unlock()
	// a device-reported status never overrides a locally managed session
	if gun.session != nil {
		return
	}
	gun.status = status
	gun.connector.Status = string(status)
}

// GetChargerStatus returns the authoritative snapshot of a charger. A
// charger whose heartbeat is older than the staleness threshold is
// reported Offline; Faulted is stickier than staleness.
func (s *Store) GetChargerStatus(chargerId string) (*models.ChargerSnapshot, error) {
	// charger-level fields are written under s.mu, so copy everything
	// needed before releasing the lock; only the per-gun locks are taken
	// afterwards
	s.mu.RLock()
	state, ok := s.chargers[chargerId]
	if !ok {
		s.mu.RUnlock()
		return nil, utility.Err(fmt.Sprintf("unknown charger: %s", chargerId))
	}
	staleAfter := s.staleAfter
	lastHeartbeat := state.lastHeartbeat
	reported := types.GetChargerStatus(state.model.Status)
	snapshot := &models.ChargerSnapshot{
		ChargerId:       chargerId,
		FirmwareVersion: state.model.FirmwareVersion,
		Model:           state.model.Model,
		LastHeartbeat:   lastHeartbeat,
	}
	guns := make([]*Gun, 0, len(state.guns))
	for _, gun := range state.guns {
		guns = append(guns, gun)
	}
	s.mu.RUnlock()

	occupied := false
	for _, gun := range guns {
		connector := gun.connectorSnapshot()
		if connector.Status == types.GunStatusCharging {
			occupied = true
		}
		snapshot.Connectors = append(snapshot.Connectors, connector)
	}

	status := reported
	switch {
	case status == types.ChargerStatusFaulted:
	case time.Since(lastHeartbeat) > staleAfter:
		status = types.ChargerStatusOffline
	case occupied:
		status = types.ChargerStatusOccupied
	}
	snapshot.Status = status
	return snapshot, nil
}

func (g *Gun) connectorSnapshot() models.ConnectorSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	snapshot := models.ConnectorSnapshot{
		ConnectorId: g.connector.Id,
		Status:      g.status,
		MaxPower:    g.connector.MaxPower,
	}
	if g.status == types.GunStatusCharging {
		snapshot.CurrentPower = g.power.ChargingWatts
	}
	return snapshot
}

func (s *Store) Gun(chargerId string, connectorId int) (*Gun, error) {
	state, ok := s.charger(chargerId)
	if !ok {
		return nil, utility.Err(fmt.Sprintf("unknown charger: %s", chargerId))
	}
	gun, ok := state.guns[connectorId]
	if !ok {
		return nil, utility.Err(fmt.Sprintf("unknown connector: %s", models.GunId(chargerId, connectorId)))
	}
	return gun, nil
}

func (s *Store) GunById(gunId string) (*Gun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for chargerId, state := range s.chargers {
		for connectorId, gun := range state.guns {
			if models.GunId(chargerId, connectorId) == gunId {
				return gun, nil
			}
		}
	}
	return nil, utility.Err(fmt.Sprintf("unknown gun: %s", gunId))
}

// Snapshot returns the full telemetry read model of the gun.
func (g *Gun) Snapshot() models.GunMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	metrics := models.GunMetrics{
		GunId:       models.GunId(g.chargerId, g.connector.Id),
		ChargerId:   g.chargerId,
		ConnectorId: g.connector.Id,
		StationId:   g.stationId,
		Status:      g.status,
		Power:       g.power,
		Thermal:     g.thermal,
		Efficiency:  g.efficiency,
		LastUpdated: g.lastUpdated,
		History:     g.history.Points(),
	}
	if g.session != nil {
		session := *g.session
		metrics.Session = &session
	}
	if g.estimates != nil {
		estimates := *g.estimates
		metrics.Estimates = &estimates
	}
	metrics.Alerts = append(metrics.Alerts, g.alerts...)
	return metrics
}

func (s *Store) GunMetrics(gunId string) (*models.GunMetrics, error) {
	gun, err := s.GunById(gunId)
	if err != nil {
		return nil, err
	}
	metrics := gun.Snapshot()
	return &metrics, nil
}

func (s *Store) AllGunMetrics() []models.GunMetrics {
	s.mu.RLock()
	guns := make([]*Gun, 0)
	for _, state := range s.chargers {
		for _, gun := range state.guns {
			guns = append(guns, gun)
		}
	}
	s.mu.RUnlock()

	result := make([]models.GunMetrics, 0, len(guns))
	for _, gun := range guns {
		result = append(result, gun.Snapshot())
	}
	return result
}

func (s *Store) ChargerGunMetrics(chargerId string) ([]models.GunMetrics, error) {
	state, ok := s.charger(chargerId)
	if !ok {
		return nil, utility.Err(fmt.Sprintf("unknown charger: %s", chargerId))
	}
	result := make([]models.GunMetrics, 0, len(state.guns))
	for _, gun := range state.guns {
		result = append(result, gun.Snapshot())
	}
	return result, nil
}

func (s *Store) AcknowledgeAlert(gunId, alertId string) error {
	gun, err := s.GunById(gunId)
	if err != nil {
		return err
	}
	gun.mu.Lock()
	defer gun.mu.Unlock()
	for i := range gun.alerts {
		if gun.alerts[i].Id == alertId {
			gun.alerts[i].Acknowledged = true
			return nil
		}
	}
	return utility.Err(fmt.Sprintf("unknown alert: %s", alertId))
}

func (s *Store) ChargerIds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.chargers))
	for id := range s.chargers {
		ids = append(ids, id)
	}
	return ids
}

// ActiveSessions counts guns with a live session, grouped by station.
func (s *Store) ActiveSessions() map[string]int {
	s.mu.RLock()
	guns := make([]*Gun, 0)
	for _, state := range s.chargers {
		for _, gun := range state.guns {
			guns = append(guns, gun)
		}
	}
	s.mu.RUnlock()

	counts := make(map[string]int)
	for _, gun := range guns {
		gun.mu.Lock()
		if gun.session != nil {
			counts[gun.stationId]++
		}
		gun.mu.Unlock()
	}
	return counts
}
