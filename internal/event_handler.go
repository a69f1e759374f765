package internal

import "time"

type EventHandler interface {
	OnStatusNotification(event *EventMessage)
	OnSessionStart(event *EventMessage)
	OnSessionStop(event *EventMessage)
	OnAlert(event *EventMessage)
}

type EventMessage struct {
	Type        string      `json:"type" bson:"type"`
	ChargerId   string      `json:"charger_id" bson:"charger_id"`
	ConnectorId int         `json:"connector_id" bson:"connector_id"`
	Time        time.Time   `json:"time" bson:"time"`
	SessionId   string      `json:"session_id" bson:"session_id"`
	Status      string      `json:"status" bson:"status"`
	Info        string      `json:"info" bson:"info"`
	Payload     interface{} `json:"payload" bson:"payload"`
}
