package ocpp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type identifiers as defined by OCPP-J.
const (
	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

// ErrMalformedFrame marks frames that cannot be decoded. Such frames are
// dropped by the session without a reply, since the unique id may be
// unrecoverable.
var ErrMalformedFrame = errors.New("ocpp: malformed frame")

// Frame is a decoded OCPP-J wire frame. Which fields are populated depends
// on Type: Call carries Action+Payload, CallResult carries Payload, CallError
// carries ErrorCode/ErrorDescription/ErrorDetails.
type Frame struct {
	Type             int
	UniqueID         string
	Action           string
	Payload          json.RawMessage
	ErrorCode        string
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

// Decode parses a raw JSON array into a Frame. Arity is checked strictly per
// frame kind: [2,id,action,payload], [3,id,payload], [4,id,code,desc,details].
func Decode(data []byte) (*Frame, error) {
	var array []json.RawMessage
	if err := json.Unmarshal(data, &array); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(array) < 1 {
		return nil, fmt.Errorf("%w: empty array", ErrMalformedFrame)
	}

	var msgType int
	if err := json.Unmarshal(array[0], &msgType); err != nil {
		return nil, fmt.Errorf("%w: read message type: %v", ErrMalformedFrame, err)
	}

	frame := &Frame{Type: msgType}

	switch msgType {
	case MessageTypeCall:
		if len(array) != 4 {
			return nil, fmt.Errorf("%w: CALL expects 4 elements, got %d", ErrMalformedFrame, len(array))
		}
		if err := json.Unmarshal(array[1], &frame.UniqueID); err != nil {
			return nil, fmt.Errorf("%w: read unique id: %v", ErrMalformedFrame, err)
		}
		if err := json.Unmarshal(array[2], &frame.Action); err != nil {
			return nil, fmt.Errorf("%w: read action: %v", ErrMalformedFrame, err)
		}
		frame.Payload = array[3]
	case MessageTypeCallResult:
		if len(array) != 3 {
			return nil, fmt.Errorf("%w: CALLRESULT expects 3 elements, got %d", ErrMalformedFrame, len(array))
		}
		if err := json.Unmarshal(array[1], &frame.UniqueID); err != nil {
			return nil, fmt.Errorf("%w: read unique id: %v", ErrMalformedFrame, err)
		}
		frame.Payload = array[2]
	case MessageTypeCallError:
		if len(array) != 5 {
			return nil, fmt.Errorf("%w: CALLERROR expects 5 elements, got %d", ErrMalformedFrame, len(array))
		}
		if err := json.Unmarshal(array[1], &frame.UniqueID); err != nil {
			return nil, fmt.Errorf("%w: read unique id: %v", ErrMalformedFrame, err)
		}
		if err := json.Unmarshal(array[2], &frame.ErrorCode); err != nil {
			return nil, fmt.Errorf("%w: read error code: %v", ErrMalformedFrame, err)
		}
		if err := json.Unmarshal(array[3], &frame.ErrorDescription); err != nil {
			return nil, fmt.Errorf("%w: read error description: %v", ErrMalformedFrame, err)
		}
		frame.ErrorDetails = array[4]
	default:
		return nil, fmt.Errorf("%w: unsupported message type %d", ErrMalformedFrame, msgType)
	}

	return frame, nil
}

// EncodeCall builds a [2, id, action, payload] frame.
func EncodeCall(uniqueID, action string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	frame := []interface{}{MessageTypeCall, uniqueID, action, json.RawMessage(body)}
	return json.Marshal(frame)
}

// EncodeCallResult builds a [3, id, payload] frame.
func EncodeCallResult(uniqueID string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	frame := []interface{}{MessageTypeCallResult, uniqueID, json.RawMessage(body)}
	return json.Marshal(frame)
}

// EncodeCallError builds a [4, id, errorCode, errorDescription, errorDetails]
// frame. A nil details value is encoded as an empty object.
func EncodeCallError(uniqueID, code, description string, details interface{}) ([]byte, error) {
	if details == nil {
		details = map[string]string{}
	}
	body, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	frame := []interface{}{MessageTypeCallError, uniqueID, code, description, json.RawMessage(body)}
	return json.Marshal(frame)
}

// Decode unmarshals a payload into T. Convenience helper for handlers.
func DecodePayload[T any](payload json.RawMessage) (T, error) {
	var target T
	if err := json.Unmarshal(payload, &target); err != nil {
		var zero T
		return zero, err
	}
	return target, nil
}
