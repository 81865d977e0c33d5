package core

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
)

// CodeInvalidInput marks JSON helper misuse (nil values, empty payloads)
const CodeInvalidInput = "INVALID_INPUT"

// jsonAPI sorts map keys, so a RateResponse encodes its future dates in order
var jsonAPI = sonic.ConfigStd

// ErrNoJSONObject is returned by JSONObject when body holds no {...} span
var ErrNoJSONObject = &Error{Code: CodeInvalidInput, Message: "no JSON object in payload"}

// JSONEncode encodes a value to JSON bytes (fail-fast on nil input)
func JSONEncode(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, &Error{Code: CodeInvalidInput, Message: "cannot encode nil value"}
	}

	data, err := jsonAPI.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode failed: %w", err)
	}
	return data, nil
}

// JSONDecode decodes JSON bytes into v
func JSONDecode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return &Error{Code: CodeInvalidInput, Message: "cannot decode empty data"}
	}
	if v == nil {
		return &Error{Code: CodeInvalidInput, Message: "cannot decode into nil value"}
	}

	if err := jsonAPI.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json decode failed: %w", err)
	}
	return nil
}

// JSONObject trims body to its outermost {...} span, dropping framing such
// as chunk-size lines that a raw HTTP read leaves around the object.
func JSONObject(body []byte) ([]byte, error) {
	open := bytes.IndexByte(body, '{')
	end := bytes.LastIndexByte(body, '}')
	if open < 0 || end < open {
		return nil, ErrNoJSONObject
	}
	return body[open : end+1], nil
}
