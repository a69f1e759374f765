package ocpp

import "evpilot/types"

const ResetFeatureName = "Reset"

type ResetType string

const (
	ResetTypeSoft ResetType = "Soft"
	ResetTypeHard ResetType = "Hard"
)

type ResetRequest struct {
	Type ResetType `json:"type" validate:"required"`
}

type ResetResponse struct {
	Status types.CommandStatus `json:"status" validate:"required"`
	// EstimatedDowntime is reported by the device for hard resets, in seconds.
	EstimatedDowntime int `json:"estimatedDowntime,omitempty"`
}

func (r ResetRequest) GetFeatureName() string {
	return ResetFeatureName
}

func (r ResetResponse) GetFeatureName() string {
	return ResetFeatureName
}

func NewResetRequest(resetType ResetType) *ResetRequest {
	return &ResetRequest{Type: resetType}
}
