package models

import "evpilot/types"

// Command names accepted by the dispatcher. Any other string is routed
// to a generic data transfer, see service.ExecuteCommand.
const (
	CommandStartCharging   = "Start Charging"
	CommandStopCharging    = "Stop Charging"
	CommandResetCharger    = "Reset Charger"
	CommandRebootCharger   = "Reboot Charger"
	CommandUnlockConnector = "Unlock Connector"
	CommandClearCache      = "Clear Cache"
	CommandUpdateFirmware  = "Update Firmware"
)

type CommandRequest struct {
	ChargerId   string                 `json:"chargerId"`
	Command     string                 `json:"command"`
	ConnectorId int                    `json:"connectorId,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type CommandResult struct {
	Success   bool                   `json:"success"`
	Status    types.CommandStatus    `json:"status"`
	MessageId string                 `json:"messageId"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
