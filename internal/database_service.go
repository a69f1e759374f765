package internal

import "evpilot/models"

type Database interface {
	WriteLogMessage(data Data) error
	ReadLog() (interface{}, error)
	GetChargers() ([]models.Charger, error)
	GetConnectors() ([]models.Connector, error)
	AddCharger(charger *models.Charger) error
	UpdateCharger(charger *models.Charger) error
	AddConnector(connector *models.Connector) error
	UpdateConnector(connector *models.Connector) error
	ArchiveSession(session *models.Session) error
	ArchiveAlert(alert *models.Alert) error
}

type Data interface {
	DataType() string
}
