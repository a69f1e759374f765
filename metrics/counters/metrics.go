package counters

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fleet",
	Name:      "sessions_active",
	Help:      "Number of active charging sessions",
}, []string{"station"})

var chargersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fleet",
	Name:      "chargers_total",
	Help:      "Number of registered chargers by status",
}, []string{"status"})

var alertsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fleet",
	Name:      "alerts_open",
	Help:      "Number of unacknowledged gun alerts",
}, []string{"severity"})

var commandCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "command_count",
	Help:      "Total number of dispatched commands by outcome.",
}, []string{"command", "status"})

var commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "ocpp",
	Name:      "command_duration_seconds",
	Help:      "Command round trip to the charger.",
	Buckets:   prometheus.DefBuckets,
}, []string{"command"})

var deliveredEnergyCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fleet",
	Name:      "delivered_energy_kwh",
	Help:      "Total delivered energy.",
}, []string{"station", "charger_id"})

func ObserveSessions(station string, count int) {
	if len(station) == 0 {
		return
	}
	sessionsGauge.With(prometheus.Labels{"station": station}).Set(float64(count))
}

func ObserveChargers(status string, count int) {
	if len(status) == 0 {
		return
	}
	chargersGauge.With(prometheus.Labels{"status": status}).Set(float64(count))
}

func ObserveAlerts(severity string, count int) {
	if len(severity) == 0 {
		return
	}
	alertsGauge.With(prometheus.Labels{"severity": severity}).Set(float64(count))
}

func CountCommand(command, status string) {
	if len(command) == 0 || len(status) == 0 {
		return
	}
	commandCounter.With(prometheus.Labels{"command": command, "status": status}).Inc()
}

func ObserveCommandDuration(command string, seconds float64) {
	if len(command) == 0 {
		return
	}
	commandDuration.With(prometheus.Labels{"command": command}).Observe(seconds)
}

func CountDeliveredEnergy(station, chargerId string, kwh float64) {
	if len(station) == 0 || len(chargerId) == 0 || kwh <= 0 {
		return
	}
	deliveredEnergyCounter.With(prometheus.Labels{"station": station, "charger_id": chargerId}).Add(kwh)
}
