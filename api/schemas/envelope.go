package schemas

import (
	"encoding/json"
	"errors"
)

// -- Response Envelope --

// Response is the only shape that crosses the external boundary. Exactly one
// of Data or Error is meaningful depending on Success.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps data in a successful envelope.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail wraps an error in a failed envelope. A nil error still yields a
// failure with a generic message so the caller always sees one.
func Fail(err error) Response {
	if err == nil {
		err = errors.New("unknown error occurred")
	}
	return Response{Success: false, Error: err.Error()}
}

// FailWithData is a failure that still carries a payload, used by execute-js
// so callers get the {result, type, error} triple on both arms.
func FailWithData(err error, data any) Response {
	r := Fail(err)
	r.Data = data
	return r
}

// RawResponse is the decode side of Response, keeping Data undecoded so
// relays can forward it without a round trip through any.
type RawResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// DecodeInto unmarshals the carried data into v.
func (r RawResponse) DecodeInto(v any) error {
	if len(r.Data) == 0 {
		return errors.New("response carries no data")
	}
	return json.Unmarshal(r.Data, v)
}
