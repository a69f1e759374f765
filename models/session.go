package models

import (
	"evpilot/types"
	"time"
)

type Session struct {
	SessionId    string              `json:"session_id" bson:"session_id"`
	ChargerId    string              `json:"charger_id" bson:"charger_id"`
	ConnectorId  int                 `json:"connector_id" bson:"connector_id"`
	VehicleId    string              `json:"vehicle_id" bson:"vehicle_id"`
	TimeStart    time.Time           `json:"time_start" bson:"time_start"`
	TimeStop     *time.Time          `json:"time_stop,omitempty" bson:"time_stop,omitempty"`
	Energy       float64             `json:"energy" bson:"energy"`
	TargetEnergy float64             `json:"target_energy" bson:"target_energy"`
	CostPerKwh   float64             `json:"cost_per_kwh" bson:"cost_per_kwh"`
	Cost         float64             `json:"cost" bson:"cost"`
	Status       types.SessionStatus `json:"status" bson:"status"`
}

// Estimates are recomputed from the current charging rate on every
// telemetry tick while a target energy is set.
type Estimates struct {
	ChargingProgress  float64 `json:"chargingProgress"`
	RemainingEnergy   float64 `json:"remainingEnergyNeeded"`
	TimeToComplete    float64 `json:"estimatedTimeToComplete"`
	CostToComplete    float64 `json:"estimatedCostToComplete"`
	AverageChargingKw float64 `json:"averageChargingRate"`
}
