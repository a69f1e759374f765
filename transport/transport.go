package transport

import (
	"encoding/json"
	"evpilot/ocpp"
)

// Frame is the fleet controller envelope: one duplex channel carries
// traffic for the whole fleet, so every OCPP-J array is wrapped with the
// charger it belongs to.
type Frame struct {
	ChargerId string          `json:"charger_id"`
	Message   json.RawMessage `json:"message"`
}

// Handler receives inbound traffic and connection lifecycle events.
// OnCall must return the confirmation to be sent back to the device.
type Handler interface {
	OnResult(chargerId string, result *ocpp.ResultPayload)
	OnCallError(chargerId string, callError *ocpp.CallError)
	OnCall(chargerId string, call *ocpp.CallRequest) (ocpp.Response, error)
	OnDisconnect(err error)
}

type Transport interface {
	Connect() error
	Disconnect() error
	Send(chargerId string, data []byte) error
	IsConnected() bool
	SetHandler(handler Handler)
}
