package http

import (
	"bytes"
	"encoding/json"

	"land-marketplace/internal/common/errors"
)

// Unwrap extracts key from a response body. The backend returns payloads either
// directly ({"lands": [...]}) or nested under data ({"data": {"lands": [...]}});
// a non-null top-level value wins when both exist. Any other shape is
// UNEXPECTED_RESPONSE_SHAPE.
func Unwrap(body json.RawMessage, key string) (json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, errors.NewUnexpectedShapeError(key, "body is not a JSON object")
	}

	if v, ok := top[key]; ok && !isNull(v) {
		return v, nil
	}

	if nested := nestedData(top); nested != nil {
		if v, ok := nested[key]; ok && !isNull(v) {
			return v, nil
		}
	}

	return nil, errors.NewUnexpectedShapeError(key, "neither top-level nor data-nested")
}

// HasKey reports whether key is present in either shape, null values included.
func HasKey(body json.RawMessage, key string) bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return false
	}
	if _, ok := top[key]; ok {
		return true
	}
	if nested := nestedData(top); nested != nil {
		_, ok := nested[key]
		return ok
	}
	return false
}

func nestedData(top map[string]json.RawMessage) map[string]json.RawMessage {
	data, ok := top["data"]
	if !ok || isNull(data) {
		return nil
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil
	}
	return nested
}

// Decode unwraps key and decodes it into out.
func Decode(body json.RawMessage, key string, out interface{}) error {
	v, err := Unwrap(body, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v, out); err != nil {
		return errors.NewUnexpectedShapeError(key, err.Error())
	}
	return nil
}

// Flag reads an optional boolean (either shape). Absent means false; a present
// non-boolean value is UNEXPECTED_RESPONSE_SHAPE.
func Flag(body json.RawMessage, key string) (bool, error) {
	v, err := Unwrap(body, key)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeUnexpectedResponseShape) && isObject(body) {
			return false, nil
		}
		return false, err
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		return false, errors.NewUnexpectedShapeError(key, "expected boolean")
	}
	return b, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func isObject(body json.RawMessage) bool {
	var top map[string]json.RawMessage
	return json.Unmarshal(body, &top) == nil
}
