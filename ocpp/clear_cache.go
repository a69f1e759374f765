package ocpp

import "evpilot/types"

const ClearCacheFeatureName = "ClearCache"

type ClearCacheRequest struct {
}

type ClearCacheResponse struct {
	Status types.CommandStatus `json:"status" validate:"required"`
	// ClearedEntries is the number of authorization cache entries removed.
	ClearedEntries int `json:"clearedEntries,omitempty"`
}

func (r ClearCacheRequest) GetFeatureName() string {
	return ClearCacheFeatureName
}

func (r ClearCacheResponse) GetFeatureName() string {
	return ClearCacheFeatureName
}

func NewClearCacheRequest() *ClearCacheRequest {
	return &ClearCacheRequest{}
}
