package models

import "fmt"

type Connector struct {
	Id        int     `json:"connector_id" bson:"connector_id"`
	ChargerId string  `json:"charger_id" bson:"charger_id"`
	IsEnabled bool    `json:"is_enabled" bson:"is_enabled"`
	Type      string  `json:"type" bson:"type"`
	MaxPower  float64 `json:"max_power" bson:"max_power"`
	Status    string  `json:"status" bson:"status"`
}

func NewConnector(id int, chargerId string) *Connector {
	return &Connector{
		Id:        id,
		ChargerId: chargerId,
		IsEnabled: true,
		Type:      "CCS2",
		MaxPower:  50000,
	}
}

// GunId is the fleet-wide identifier of a single connector ("gun").
func GunId(chargerId string, connectorId int) string {
	return fmt.Sprintf("%s:%d", chargerId, connectorId)
}
