package ocpp

import "evpilot/types"

const StatusNotificationFeatureName = "StatusNotification"

type ChargePointErrorCode string

const (
	NoError                ChargePointErrorCode = "NoError"
	ConnectorLockFailure   ChargePointErrorCode = "ConnectorLockFailure"
	HighTemperature        ChargePointErrorCode = "HighTemperature"
	PowerModuleFailure     ChargePointErrorCode = "PowerModuleFailure"
	InternalError          ChargePointErrorCode = "InternalError"
	OtherError             ChargePointErrorCode = "OtherError"
	CommunicationError     ChargePointErrorCode = "EVCommunicationError"
	PowerMeterFailure      ChargePointErrorCode = "PowerMeterFailure"
	PowerSwitchFailure     ChargePointErrorCode = "PowerSwitchFailure"
	ReaderFailure          ChargePointErrorCode = "ReaderFailure"
	UnderVoltage           ChargePointErrorCode = "UnderVoltage"
	OverVoltage            ChargePointErrorCode = "OverVoltage"
	WeakSignal             ChargePointErrorCode = "WeakSignal"
	GroundFailure          ChargePointErrorCode = "GroundFailure"
	LocalListConflictError ChargePointErrorCode = "LocalListConflict"
)

type StatusNotificationRequest struct {
	ConnectorId int                  `json:"connectorId" validate:"gte=0"`
	ErrorCode   ChargePointErrorCode `json:"errorCode" validate:"required"`
	Info        string               `json:"info,omitempty" validate:"omitempty,max=50"`
	Status      string               `json:"status" validate:"required"`
	Timestamp   *types.DateTime      `json:"timestamp,omitempty"`
	VendorId    string               `json:"vendorId,omitempty" validate:"omitempty,max=255"`
}

type StatusNotificationResponse struct {
}

func (req StatusNotificationRequest) GetFeatureName() string {
	return StatusNotificationFeatureName
}

func (res StatusNotificationResponse) GetFeatureName() string {
	return StatusNotificationFeatureName
}

func NewStatusNotificationResponse() *StatusNotificationResponse {
	return &StatusNotificationResponse{}
}
