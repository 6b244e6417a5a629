package ocpp

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeCall(t *testing.T) {
	raw := []byte(`[2,"msg-1","BootNotification",{"chargePointVendor":"ABB"}]`)

	frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode call: %v", err)
	}
	if frame.Type != MessageTypeCall {
		t.Fatalf("expected type %d, got %d", MessageTypeCall, frame.Type)
	}
	if frame.UniqueID != "msg-1" {
		t.Fatalf("expected unique id msg-1, got %s", frame.UniqueID)
	}
	if frame.Action != "BootNotification" {
		t.Fatalf("expected action BootNotification, got %s", frame.Action)
	}

	var payload map[string]string
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["chargePointVendor"] != "ABB" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestDecodeCallResult(t *testing.T) {
	frame, err := Decode([]byte(`[3,"msg-2",{"status":"Accepted"}]`))
	if err != nil {
		t.Fatalf("decode call result: %v", err)
	}
	if frame.Type != MessageTypeCallResult {
		t.Fatalf("expected type %d, got %d", MessageTypeCallResult, frame.Type)
	}
	if frame.UniqueID != "msg-2" {
		t.Fatalf("expected unique id msg-2, got %s", frame.UniqueID)
	}
}

func TestDecodeCallError(t *testing.T) {
	frame, err := Decode([]byte(`[4,"msg-3","InternalError","boom",{"detail":"x"}]`))
	if err != nil {
		t.Fatalf("decode call error: %v", err)
	}
	if frame.Type != MessageTypeCallError {
		t.Fatalf("expected type %d, got %d", MessageTypeCallError, frame.Type)
	}
	if frame.ErrorCode != "InternalError" {
		t.Fatalf("expected error code InternalError, got %s", frame.ErrorCode)
	}
	if frame.ErrorDescription != "boom" {
		t.Fatalf("expected description boom, got %s", frame.ErrorDescription)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"not an array", `{"a":1}`},
		{"empty array", `[]`},
		{"non numeric type", `["2","id","Action",{}]`},
		{"unsupported type", `[9,"id",{}]`},
		{"call wrong arity", `[2,"id","Action"]`},
		{"call extra element", `[2,"id","Action",{},{}]`},
		{"result wrong arity", `[3,"id"]`},
		{"error wrong arity", `[4,"id","Code","desc"]`},
		{"non string id", `[2,42,"Action",{}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.raw)); !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}

func TestEncodeCallRoundTrip(t *testing.T) {
	raw, err := EncodeCall("msg-7", "Heartbeat", struct{}{})
	if err != nil {
		t.Fatalf("encode call: %v", err)
	}

	frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode encoded call: %v", err)
	}
	if frame.Type != MessageTypeCall || frame.UniqueID != "msg-7" || frame.Action != "Heartbeat" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestEncodeCallErrorNilDetails(t *testing.T) {
	raw, err := EncodeCallError("msg-8", "NotImplemented", "action not supported", nil)
	if err != nil {
		t.Fatalf("encode call error: %v", err)
	}

	frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode encoded call error: %v", err)
	}
	if string(frame.ErrorDetails) != "{}" {
		t.Fatalf("expected empty object details, got %s", frame.ErrorDetails)
	}
}

func TestDecodePayload(t *testing.T) {
	type sample struct {
		IdTag string `json:"idTag"`
	}

	decoded, err := DecodePayload[sample](json.RawMessage(`{"idTag":"RFID123"}`))
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.IdTag != "RFID123" {
		t.Fatalf("expected RFID123, got %s", decoded.IdTag)
	}

	if _, err := DecodePayload[sample](json.RawMessage(`[1,2]`)); err == nil {
		t.Fatalf("expected error for mismatched payload shape")
	}
}
