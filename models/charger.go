package models

import (
	"evpilot/types"
	"time"
)

type Charger struct {
	Id              string  `json:"charger_id" bson:"charger_id"`
	IsEnabled       bool    `json:"is_enabled" bson:"is_enabled"`
	Title           string  `json:"title" bson:"title"`
	Description     string  `json:"description" bson:"description"`
	Manufacturer    string  `json:"manufacturer" bson:"manufacturer"`
	Model           string  `json:"model" bson:"model"`
	SerialNumber    string  `json:"serial_number" bson:"serial_number"`
	FirmwareVersion string  `json:"firmware_version" bson:"firmware_version"`
	MaxPower        float64 `json:"max_power" bson:"max_power"`
	StationId       string  `json:"station_id" bson:"station_id"`
	Status          string  `json:"status" bson:"status"`
	TotalEnergy     float64 `json:"total_energy" bson:"total_energy"`
	TotalSessions   int     `json:"total_sessions" bson:"total_sessions"`
}

// ChargerSnapshot is the read model returned to callers of GetChargerStatus.
type ChargerSnapshot struct {
	ChargerId       string              `json:"chargerId"`
	Status          types.ChargerStatus `json:"status"`
	Connectors      []ConnectorSnapshot `json:"connectors"`
	FirmwareVersion string              `json:"firmwareVersion"`
	Model           string              `json:"model"`
	LastHeartbeat   time.Time           `json:"lastHeartbeat"`
}

type ConnectorSnapshot struct {
	ConnectorId  int             `json:"connectorId"`
	Status       types.GunStatus `json:"status"`
	MaxPower     float64         `json:"maxPower"`
	CurrentPower float64         `json:"currentPower,omitempty"`
}
