package models

import (
	"evpilot/types"
	"time"
)

type PowerMetrics struct {
	ChargingWatts   float64 `json:"currentChargingWatts"`
	MaxOutputWatts  float64 `json:"maxOutputCapacity"`
	InputWatts      float64 `json:"inputPowerWatts"`
	OutputWatts     float64 `json:"outputPowerWatts"`
	Voltage         float64 `json:"voltage"`
	Current         float64 `json:"current"`
	PowerFactor     float64 `json:"powerFactor"`
	ChargingRatePct float64 `json:"chargingRatePercentage"`
}

type ThermalMetrics struct {
	ModuleTemp    float64             `json:"powerModuleTemp"`
	ConnectorTemp float64             `json:"connectorTemp"`
	CableTemp     float64             `json:"cableTemp"`
	AmbientTemp   float64             `json:"ambientTemp"`
	HeatLoadPct   float64             `json:"heatLoadPercentage"`
	CoolingStatus types.CoolingStatus `json:"coolingSystemStatus"`
}

type EfficiencyMetrics struct {
	ChargingEfficiency float64               `json:"chargingEfficiency"`
	EnergyLoss         float64               `json:"energyLoss"`
	Level              types.EfficiencyLevel `json:"efficiencyLevel"`
}

// HistoryPoint is one entry of a gun's bounded telemetry series.
type HistoryPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	ChargingWatts float64   `json:"chargingWatts"`
	Efficiency    float64   `json:"efficiency"`
	Temperature   float64   `json:"temperature"`
	HeatLoad      float64   `json:"heatLoad"`
}

// GunMetrics is the full telemetry read model of a single connector.
type GunMetrics struct {
	GunId       string            `json:"gunId"`
	ChargerId   string            `json:"chargerId"`
	ConnectorId int               `json:"connectorId"`
	StationId   string            `json:"stationId"`
	Status      types.GunStatus   `json:"status"`
	Power       PowerMetrics      `json:"powerMetrics"`
	Thermal     ThermalMetrics    `json:"thermalMetrics"`
	Efficiency  EfficiencyMetrics `json:"efficiencyMetrics"`
	Session     *Session          `json:"activeSession,omitempty"`
	Estimates   *Estimates        `json:"estimates,omitempty"`
	Alerts      []Alert           `json:"alerts"`
	LastUpdated time.Time         `json:"lastUpdated"`
	History     []HistoryPoint    `json:"historicalData"`
}
