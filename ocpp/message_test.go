package ocpp

import (
	"encoding/json"
	"evpilot/types"
	"evpilot/utility"
	"testing"
)

func TestCallMarshalFraming(t *testing.T) {
	call := NewCall("msg-1", NewRemoteStartTransactionRequest("EV-7", 2))
	data, err := json.Marshal(call)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var fields []interface{}
	if err = json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("frame is not a json array: %v", err)
	}
	if len(fields) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(fields))
	}
	if fields[0].(float64) != 2 {
		t.Errorf("call type must be 2, got %v", fields[0])
	}
	if fields[1].(string) != "msg-1" {
		t.Errorf("unique id mismatch: %v", fields[1])
	}
	if fields[2].(string) != RemoteStartTransactionFeatureName {
		t.Errorf("action mismatch: %v", fields[2])
	}
}

func TestCallResultMarshalFraming(t *testing.T) {
	result, err := CreateCallResult(&RemoteStartTransactionResponse{Status: types.CommandStatusAccepted}, "msg-2")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var fields []interface{}
	if err = json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("frame is not a json array: %v", err)
	}
	if len(fields) != 3 || fields[0].(float64) != 3 || fields[1].(string) != "msg-2" {
		t.Errorf("bad result framing: %v", fields)
	}
}

func TestCallErrorMarshalFraming(t *testing.T) {
	callError := CallError{
		TypeId:           CallTypeError,
		UniqueId:         "msg-3",
		ErrorCode:        "InternalError",
		ErrorDescription: "boom",
	}
	data, err := json.Marshal(&callError)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var fields []interface{}
	if err = json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("frame is not a json array: %v", err)
	}
	if len(fields) != 5 || fields[0].(float64) != 4 {
		t.Errorf("bad error framing: %v", fields)
	}
}

func TestParseRequestRoundTrip(t *testing.T) {
	call := NewCall("msg-4", NewResetRequest(ResetTypeHard))
	data, err := json.Marshal(call)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	fields, err := utility.ParseJson(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	callType, err := MessageType(fields)
	if err != nil || callType != CallTypeRequest {
		t.Fatalf("expected call type request, got %v (%v)", callType, err)
	}
	request, err := ParseRequest(fields)
	if err != nil {
		t.Fatalf("parse request failed: %v", err)
	}
	if request.UniqueId != "msg-4" {
		t.Errorf("unique id mismatch: %s", request.UniqueId)
	}
	reset, ok := request.Payload.(*ResetRequest)
	if !ok {
		t.Fatalf("payload has wrong type: %T", request.Payload)
	}
	if reset.Type != ResetTypeHard {
		t.Errorf("reset type mismatch: %s", reset.Type)
	}
}

func TestParseResult(t *testing.T) {
	raw := []byte(`[3,"msg-5",{"status":"Accepted"}]`)
	fields, err := utility.ParseJson(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	result, err := ParseResult(fields)
	if err != nil {
		t.Fatalf("parse result failed: %v", err)
	}
	if result.UniqueId != "msg-5" {
		t.Errorf("unique id mismatch: %s", result.UniqueId)
	}
	var response RemoteStartTransactionResponse
	if err = json.Unmarshal(result.Payload, &response); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if response.Status != types.CommandStatusAccepted {
		t.Errorf("status mismatch: %s", response.Status)
	}
}

func TestParseErrorFrame(t *testing.T) {
	raw := []byte(`[4,"msg-6","NotSupported","feature disabled",{}]`)
	fields, err := utility.ParseJson(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	callError, err := ParseErrorFrame(fields)
	if err != nil {
		t.Fatalf("parse error frame failed: %v", err)
	}
	if callError.UniqueId != "msg-6" || callError.ErrorCode != "NotSupported" {
		t.Errorf("bad error frame: %+v", callError)
	}
}

func TestMessageTypeRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`[]`, `[9,"id",{}]`, `["x","id",{}]`} {
		fields, err := utility.ParseJson([]byte(raw))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if _, err = MessageType(fields); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}

func TestParseRequestUnknownAction(t *testing.T) {
	raw := []byte(`[2,"msg-7","MakeCoffee",{}]`)
	fields, _ := utility.ParseJson(raw)
	if _, err := ParseRequest(fields); err == nil {
		t.Error("unknown action must fail parsing")
	}
}
