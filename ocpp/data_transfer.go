package ocpp

import "evpilot/types"

const DataTransferFeatureName = "DataTransfer"

type DataTransferRequest struct {
	VendorId  string      `json:"vendorId" validate:"required,max=255"`
	MessageId string      `json:"messageId,omitempty" validate:"omitempty,max=50"`
	Data      interface{} `json:"data,omitempty"`
}

type DataTransferResponse struct {
	Status types.CommandStatus `json:"status" validate:"required"`
	Data   interface{}         `json:"data,omitempty"`
}

func (r DataTransferRequest) GetFeatureName() string {
	return DataTransferFeatureName
}

func (r DataTransferResponse) GetFeatureName() string {
	return DataTransferFeatureName
}

func NewDataTransferRequest(vendorId, messageId string, data interface{}) *DataTransferRequest {
	return &DataTransferRequest{VendorId: vendorId, MessageId: messageId, Data: data}
}
