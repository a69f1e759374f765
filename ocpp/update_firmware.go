package ocpp

import "evpilot/types"

const UpdateFirmwareFeatureName = "UpdateFirmware"

type UpdateFirmwareRequest struct {
	Location      string          `json:"location" validate:"required"`
	RetrieveDate  *types.DateTime `json:"retrieveDate,omitempty"`
	Retries       *int            `json:"retries,omitempty" validate:"omitempty,gte=0"`
	RetryInterval *int            `json:"retryInterval,omitempty" validate:"omitempty,gte=0"`
}

type UpdateFirmwareResponse struct {
	Status types.CommandStatus `json:"status" validate:"required"`
	// Version and EstimatedTime come back from the fleet controller so the
	// operator UI can show update progress expectations.
	Version       string `json:"version,omitempty"`
	EstimatedTime int    `json:"estimatedTime,omitempty"`
}

func (r UpdateFirmwareRequest) GetFeatureName() string {
	return UpdateFirmwareFeatureName
}

func (r UpdateFirmwareResponse) GetFeatureName() string {
	return UpdateFirmwareFeatureName
}

func NewUpdateFirmwareRequest(location string) *UpdateFirmwareRequest {
	return &UpdateFirmwareRequest{Location: location}
}
