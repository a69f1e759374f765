package ocpp

import (
	"encoding/json"
	"evpilot/utility"
	"fmt"
	"reflect"
)

type CallType int

const (
	CallTypeRequest CallType = 2
	CallTypeResult  CallType = 3
	CallTypeError   CallType = 4
)

// Call is an OCPP-J request frame: [2, uniqueId, action, payload]
type Call struct {
	TypeId   CallType
	UniqueId string
	Payload  Request
}

func NewCall(uniqueId string, request Request) *Call {
	return &Call{
		TypeId:   CallTypeRequest,
		UniqueId: uniqueId,
		Payload:  request,
	}
}

func (call *Call) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 4)
	fields[0] = int(call.TypeId)
	fields[1] = call.UniqueId
	fields[2] = call.Payload.GetFeatureName()
	fields[3] = call.Payload
	return json.Marshal(fields)
}

// CallResult An OCPP-J CallResult message, containing an OCPP Response: [3, uniqueId, payload]
type CallResult struct {
	TypeId   CallType
	UniqueId string
	Payload  Response
}

func CreateCallResult(confirmation Response, uniqueId string) (*CallResult, error) {
	callResult := CallResult{
		TypeId:   CallTypeResult,
		UniqueId: uniqueId,
		Payload:  confirmation,
	}
	return &callResult, nil
}

func (callResult *CallResult) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 3)
	fields[0] = int(callResult.TypeId)
	fields[1] = callResult.UniqueId
	fields[2] = callResult.Payload
	return json.Marshal(fields)
}

// CallError An OCPP-J error frame: [4, uniqueId, errorCode, errorDescription, details]
type CallError struct {
	TypeId           CallType
	UniqueId         string
	ErrorCode        string
	ErrorDescription string
}

func (callError *CallError) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 5)
	fields[0] = int(callError.TypeId)
	fields[1] = callError.UniqueId
	fields[2] = callError.ErrorCode
	fields[3] = callError.ErrorDescription
	fields[4] = struct{}{}
	return json.Marshal(fields)
}

func MessageType(data []interface{}) (CallType, error) {
	if len(data) < 3 {
		return 0, utility.Err("incompatible message structure")
	}
	rawTypeId, ok := data[0].(float64)
	if !ok {
		return 0, utility.Err("invalid message type id")
	}
	typeId := CallType(rawTypeId)
	switch typeId {
	case CallTypeRequest, CallTypeResult, CallTypeError:
		return typeId, nil
	}
	return 0, utility.Err(fmt.Sprintf("unsupported message type id: %v", typeId))
}

// ResultPayload is a received CALLRESULT with its payload still undecoded;
// the requester knows which response type to expect.
type ResultPayload struct {
	UniqueId string
	Payload  json.RawMessage
}

func ParseResult(data []interface{}) (*ResultPayload, error) {
	if len(data) != 3 {
		return nil, utility.Err("unsupported result format; expected length: 3 elements")
	}
	uniqueId, ok := data[1].(string)
	if !ok {
		return nil, utility.Err("invalid message unique id in result")
	}
	raw, err := json.Marshal(data[2])
	if err != nil {
		return nil, err
	}
	return &ResultPayload{UniqueId: uniqueId, Payload: raw}, nil
}

func ParseErrorFrame(data []interface{}) (*CallError, error) {
	if len(data) < 4 {
		return nil, utility.Err("unsupported error format; expected length: 4 or 5 elements")
	}
	uniqueId, ok := data[1].(string)
	if !ok {
		return nil, utility.Err("invalid message unique id in error")
	}
	return &CallError{
		TypeId:           CallTypeError,
		UniqueId:         uniqueId,
		ErrorCode:        fmt.Sprintf("%v", data[2]),
		ErrorDescription: fmt.Sprintf("%v", data[3]),
	}, nil
}

// CallRequest is a received CALL with a decoded payload.
type CallRequest struct {
	TypeId   CallType
	UniqueId string
	feature  string
	Payload  Request
}

func (callRequest *CallRequest) GetFeatureName() string {
	return callRequest.feature
}

func NewCallRequest(uniqueId string, request Request) *CallRequest {
	return &CallRequest{
		TypeId:   CallTypeRequest,
		UniqueId: uniqueId,
		feature:  request.GetFeatureName(),
		Payload:  request,
	}
}

func ParseRequest(data []interface{}) (*CallRequest, error) {
	if len(data) != 4 {
		return nil, utility.Err("unsupported request format; expected length: 4 elements")
	}
	rawTypeId, ok := data[0].(float64)
	if !ok {
		return nil, utility.Err("invalid message type in request")
	}
	typeId := CallType(rawTypeId)
	if typeId != CallTypeRequest {
		return nil, utility.Err(fmt.Sprintf("invalid request type id: %v", typeId))
	}
	uniqueId, ok := data[1].(string)
	if !ok {
		return nil, utility.Err("invalid message unique id in request")
	}
	action, ok := data[2].(string)
	if !ok {
		return nil, utility.Err("invalid action in request")
	}

	requestType, err := getRequestType(action)
	if err != nil {
		return nil, err
	}
	request, err := ParseRawJsonRequest(data[3], requestType)
	if err != nil {
		return nil, err
	}
	callRequest := CallRequest{
		TypeId:   typeId,
		UniqueId: uniqueId,
		feature:  action,
		Payload:  request,
	}
	return &callRequest, nil
}

func getRequestType(action string) (requestType reflect.Type, err error) {
	switch action {
	case HeartbeatFeatureName:
		requestType = reflect.TypeOf(HeartbeatRequest{})
	case StatusNotificationFeatureName:
		requestType = reflect.TypeOf(StatusNotificationRequest{})
	case RemoteStartTransactionFeatureName:
		requestType = reflect.TypeOf(RemoteStartTransactionRequest{})
	case RemoteStopTransactionFeatureName:
		requestType = reflect.TypeOf(RemoteStopTransactionRequest{})
	case ResetFeatureName:
		requestType = reflect.TypeOf(ResetRequest{})
	case UnlockConnectorFeatureName:
		requestType = reflect.TypeOf(UnlockConnectorRequest{})
	case ClearCacheFeatureName:
		requestType = reflect.TypeOf(ClearCacheRequest{})
	case UpdateFirmwareFeatureName:
		requestType = reflect.TypeOf(UpdateFirmwareRequest{})
	case DataTransferFeatureName:
		requestType = reflect.TypeOf(DataTransferRequest{})
	default:
		return nil, utility.Err(fmt.Sprintf("unsupported action requested: %s", action))
	}
	return requestType, nil
}
