package service

import (
	"evpilot/internal"
	"evpilot/metrics/counters"
	"evpilot/models"
	"evpilot/types"
	"evpilot/utility"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	moduleTempCritical = 70.0
	moduleTempFailure  = 85.0
	heatLoadWarning    = 85.0
	efficiencyWarning  = 0.85
	efficiencyFloor    = 0.85
	efficiencyCeiling  = 1.0
)

// Aggregator produces the per-gun telemetry stream: while a gun is
// charging it ticks on a fixed interval, walks the electrical and
// thermal readings around their previous values, accumulates session
// energy and evaluates alert thresholds. A slower fleet-wide poll
// refreshes the exported gauges.
type Aggregator struct {
	store    *Store
	logger   internal.LogHandler
	events   internal.EventHandler
	database internal.Database
	sessions *SessionManager

	gunInterval  time.Duration
	pollInterval time.Duration

	mu      sync.Mutex
	watched map[string]chan struct{}
	stop    chan struct{}
	running bool
}

func NewAggregator(store *Store, gunInterval, pollInterval time.Duration, logger internal.LogHandler) *Aggregator {
	if gunInterval <= 0 {
		gunInterval = 5 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &Aggregator{
		store:        store,
		logger:       logger,
		gunInterval:  gunInterval,
		pollInterval: pollInterval,
		watched:      make(map[string]chan struct{}),
	}
}

func (a *Aggregator) SetEventHandler(events internal.EventHandler) {
	a.events = events
}

func (a *Aggregator) SetDatabase(database internal.Database) {
	a.database = database
}

func (a *Aggregator) SetSessionManager(sessions *SessionManager) {
	a.sessions = sessions
}

func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.stop = make(chan struct{})
	go a.pollLoop(a.stop)
}

func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.running = false
	close(a.stop)
	for gunId, cancel := range a.watched {
		close(cancel)
		delete(a.watched, gunId)
	}
}

// Watch starts the charging tick for one gun; no-op when already watched.
func (a *Aggregator) Watch(gunId string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.watched[gunId]; ok {
		return
	}
	cancel := make(chan struct{})
	a.watched[gunId] = cancel
	go a.watchLoop(gunId, cancel)
}

func (a *Aggregator) Unwatch(gunId string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cancel, ok := a.watched[gunId]; ok {
		close(cancel)
		delete(a.watched, gunId)
	}
}

func (a *Aggregator) watchLoop(gunId string, cancel chan struct{}) {
	ticker := time.NewTicker(a.gunInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.Tick(gunId)
		case <-cancel:
			return
		}
	}
}

// Tick recomputes the live readings of one gun. Idle guns are left
// untouched so a race between stop and a late tick is harmless.
func (a *Aggregator) Tick(gunId string) {
	gun, err := a.store.GunById(gunId)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("telemetry tick for unknown gun %s", gunId))
		return
	}

	gun.mu.Lock()
	if gun.status != types.GunStatusCharging || gun.session == nil {
		gun.mu.Unlock()
		return
	}
	now := time.Now()
	elapsed := now.Sub(gun.lastUpdated)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > time.Minute {
		elapsed = a.gunInterval
	}

	maxPower := gun.connector.MaxPower
	watts := walk(gun.power.ChargingWatts, 0.02*maxPower, 0.5*maxPower, maxPower)
	voltage := walk(gun.power.Voltage, 5, 380, 420)
	rawEfficiency := gun.efficiency.ChargingEfficiency + (rand.Float64()-0.5)*0.02
	if gun.thermal.HeatLoadPct > 70 {
		rawEfficiency -= 0.01
	}
	efficiency := clamp(rawEfficiency, efficiencyFloor, efficiencyCeiling)

	gun.power.ChargingWatts = watts
	gun.power.OutputWatts = watts
	gun.power.InputWatts = watts / efficiency
	gun.power.Voltage = voltage
	gun.power.Current = watts / voltage
	gun.power.PowerFactor = walk(gun.power.PowerFactor, 0.01, 0.92, 1.0)
	gun.power.ChargingRatePct = watts / maxPower * 100

	gun.efficiency.ChargingEfficiency = efficiency
	gun.efficiency.EnergyLoss = gun.power.InputWatts - watts
	gun.efficiency.Level = types.EfficiencyLevelOf(efficiency)

	targetTemp := 40 + 35*(watts/maxPower)
	gun.thermal.ModuleTemp += (targetTemp-gun.thermal.ModuleTemp)*0.2 + (rand.Float64()-0.5)*2
	gun.thermal.ConnectorTemp = walk(gun.thermal.ConnectorTemp, 1, 23, 55)
	gun.thermal.CableTemp = walk(gun.thermal.CableTemp, 1, 23, 60)
	gun.thermal.AmbientTemp = walk(gun.thermal.AmbientTemp, 0.3, 18, 30)
	gun.thermal.HeatLoadPct = clamp(watts/maxPower*90+(rand.Float64()-0.5)*10, 0, 100)
	gun.thermal.CoolingStatus = coolingStatus(gun.thermal)

	session := gun.session
	session.Energy += watts / 1000 * elapsed.Hours()
	session.Cost = session.Energy * session.CostPerKwh
	updateEstimates(gun, session, watts, now)

	gun.history.Push(models.HistoryPoint{
		Timestamp:     now,
		ChargingWatts: watts,
		Efficiency:    efficiency,
		Temperature:   gun.thermal.ModuleTemp,
		HeatLoad:      gun.thermal.HeatLoadPct,
	})
	gun.lastUpdated = now

	raised := a.evaluateAlerts(gun, gunId, rawEfficiency)
	coolingFailed := gun.thermal.CoolingStatus == types.CoolingStatusFault
	gun.mu.Unlock()

	a.publishAlerts(raised)
	if coolingFailed && a.sessions != nil {
		a.sessions.Fault(gunId, "cooling system failure")
	}
}

// updateEstimates recomputes the completion estimates; caller holds the
// gun lock.
func updateEstimates(gun *Gun, session *models.Session, watts float64, now time.Time) {
	if gun.estimates == nil {
		return
	}
	kw := watts / 1000
	hours := now.Sub(session.TimeStart).Hours()
	if hours > 0 {
		gun.estimates.AverageChargingKw = session.Energy / hours
	}
	if session.TargetEnergy <= 0 {
		return
	}
	remaining := session.TargetEnergy - session.Energy
	if remaining < 0 {
		remaining = 0
	}
	gun.estimates.ChargingProgress = clamp(session.Energy/session.TargetEnergy*100, 0, 100)
	gun.estimates.RemainingEnergy = remaining
	gun.estimates.CostToComplete = remaining * session.CostPerKwh
	if kw > 0 {
		gun.estimates.TimeToComplete = remaining / kw * 60
	}
}

func coolingStatus(thermal models.ThermalMetrics) types.CoolingStatus {
	switch {
	case thermal.ModuleTemp > moduleTempFailure:
		return types.CoolingStatusFault
	case thermal.ModuleTemp > moduleTempCritical:
		return types.CoolingStatusCritical
	case thermal.HeatLoadPct > heatLoadWarning:
		return types.CoolingStatusHigh
	default:
		return types.CoolingStatusNormal
	}
}

// evaluateAlerts applies the threshold policy and returns alerts raised
// on this tick; caller holds the gun lock. The raw efficiency, before
// clamping, drives the efficiency threshold so a degraded walk is
// observable.
func (a *Aggregator) evaluateAlerts(gun *Gun, gunId string, rawEfficiency float64) []models.Alert {
	var raised []models.Alert

	if gun.thermal.ModuleTemp > moduleTempCritical {
		if alert, ok := raiseAlert(gun, gunId, types.AlertTypeTemperature, types.AlertSeverityCritical,
			fmt.Sprintf("module temperature %.1f exceeds %.0f", gun.thermal.ModuleTemp, moduleTempCritical), false); ok {
			raised = append(raised, alert)
		}
	}

	if rawEfficiency < efficiencyWarning {
		if alert, ok := raiseAlert(gun, gunId, types.AlertTypeEfficiency, types.AlertSeverityWarning,
			fmt.Sprintf("charging efficiency dropped to %.3f", rawEfficiency), true); ok {
			raised = append(raised, alert)
		}
	} else {
		resolveAlerts(gun, types.AlertTypeEfficiency, types.AlertSeverityWarning)
	}

	if gun.thermal.HeatLoadPct > heatLoadWarning {
		if alert, ok := raiseAlert(gun, gunId, types.AlertTypeTemperature, types.AlertSeverityWarning,
			fmt.Sprintf("heat load at %.0f%%", gun.thermal.HeatLoadPct), true); ok {
			raised = append(raised, alert)
		}
	} else {
		resolveAlerts(gun, types.AlertTypeTemperature, types.AlertSeverityWarning)
	}

	if gun.thermal.CoolingStatus == types.CoolingStatusFault {
		if alert, ok := raiseAlert(gun, gunId, types.AlertTypeSafety, types.AlertSeverityEmergency,
			"cooling system failure", false); ok {
			raised = append(raised, alert)
		}
	}
	return raised
}

// raiseAlert appends a new alert unless an unacknowledged one of the
// same type and severity already exists; caller holds the gun lock.
func raiseAlert(gun *Gun, gunId string, alertType types.AlertType, severity types.AlertSeverity, message string, autoResolve bool) (models.Alert, bool) {
	for i := range gun.alerts {
		if gun.alerts[i].Type == alertType && gun.alerts[i].Severity == severity && !gun.alerts[i].Acknowledged {
			return models.Alert{}, false
		}
	}
	alert := models.Alert{
		Id:          utility.NewUUID(),
		GunId:       gunId,
		Type:        alertType,
		Severity:    severity,
		Message:     message,
		Timestamp:   time.Now(),
		AutoResolve: autoResolve,
	}
	gun.alerts = append(gun.alerts, alert)
	return alert, true
}

// resolveAlerts drops unacknowledged auto-resolving alerts of the given
// type and severity once the condition has cleared; caller holds the
// gun lock.
func resolveAlerts(gun *Gun, alertType types.AlertType, severity types.AlertSeverity) {
	kept := gun.alerts[:0]
	for _, alert := range gun.alerts {
		if alert.Type == alertType && alert.Severity == severity && alert.AutoResolve && !alert.Acknowledged {
			continue
		}
		kept = append(kept, alert)
	}
	gun.alerts = kept
}

func (a *Aggregator) publishAlerts(alerts []models.Alert) {
	for i := range alerts {
		alert := alerts[i]
		a.logger.Warn(fmt.Sprintf("alert on gun %s: [%s/%s] %s", alert.GunId, alert.Type, alert.Severity, alert.Message))
		if a.database != nil {
			if err := a.database.ArchiveAlert(&alert); err != nil {
				a.logger.Error("archive alert", err)
			}
		}
		if a.events != nil {
			a.events.OnAlert(&internal.EventMessage{
				ChargerId: alert.GunId,
				Time:      alert.Timestamp,
				Status:    string(alert.Severity),
				Info:      alert.Message,
			})
		}
	}
}

func (a *Aggregator) pollLoop(stop chan struct{}) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.poll()
		case <-stop:
			return
		}
	}
}

// poll refreshes the exported fleet gauges from store state.
func (a *Aggregator) poll() {
	for station, count := range a.store.ActiveSessions() {
		counters.ObserveSessions(station, count)
	}

	statusCounts := make(map[string]int)
	for _, chargerId := range a.store.ChargerIds() {
		snapshot, err := a.store.GetChargerStatus(chargerId)
		if err != nil {
			continue
		}
		statusCounts[string(snapshot.Status)]++
	}
	for status, count := range statusCounts {
		counters.ObserveChargers(status, count)
	}

	alertCounts := map[string]int{
		string(types.AlertSeverityWarning):   0,
		string(types.AlertSeverityCritical):  0,
		string(types.AlertSeverityEmergency): 0,
	}
	for _, gun := range a.store.AllGunMetrics() {
		for _, alert := range gun.Alerts {
			if !alert.Acknowledged {
				alertCounts[string(alert.Severity)]++
			}
		}
	}
	for severity, count := range alertCounts {
		counters.ObserveAlerts(severity, count)
	}
}

func walk(value, step, min, max float64) float64 {
	return clamp(value+(rand.Float64()-0.5)*2*step, min, max)
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
