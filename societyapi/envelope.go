package societyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the {success, data, message, error} body returned by the backend. The
// backend is not consistent about it, so Raw keeps the whole body for the extractors.
type Envelope struct {
	Success *bool
	Data    json.RawMessage
	Message string
	Raw     json.RawMessage
}

// Failed reports an explicit success=false.
func (e Envelope) Failed() bool {
	return e.Success != nil && !*e.Success
}

func decodeEnvelope(body []byte) (Envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Envelope{Raw: json.RawMessage("{}")}, nil
	}

	if !json.Valid(body) {
		return Envelope{}, ErrUnableToDecodeResponse
	}

	if body[0] == '[' {
		return Envelope{Data: body, Raw: body}, nil
	}
	if body[0] != '{' {
		return Envelope{}, ErrUnableToDecodeResponse
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return Envelope{}, ErrUnableToDecodeResponse
	}

	e := Envelope{Data: fields["data"], Raw: body}
	if raw, ok := fields["success"]; ok {
		var success bool
		if err := json.Unmarshal(raw, &success); err == nil {
			e.Success = &success
		}
	}
	e.Message = messageFrom(fields)

	return e, nil
}

// messageFrom picks the human readable message out of message, error (string) or
// error.message, in that order.
func messageFrom(fields map[string]json.RawMessage) string {
	var s string
	if raw, ok := fields["message"]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
		return s
	}

	raw, ok := fields["error"]
	if !ok {
		return ""
	}
	if json.Unmarshal(raw, &s) == nil && s != "" {
		return s
	}

	nested := map[string]json.RawMessage{}
	if json.Unmarshal(raw, &nested) == nil {
		if json.Unmarshal(nested["message"], &s) == nil {
			return s
		}
	}

	return ""
}

// ExtractList finds the array of interest in a response body. The backend has been seen
// returning it under data.data.<key>, data.<key>, data.data, data, <key> and as the root
// itself. A body with none of those yields an empty array.
func ExtractList(body []byte, keys ...string) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("[]"), nil
	}
	if !json.Valid(body) {
		return nil, ErrUnableToDecodeResponse
	}

	for _, path := range candidatePaths(keys, true) {
		if raw, ok := lookup(body, path...); ok && isArray(raw) {
			return raw, nil
		}
	}

	return json.RawMessage("[]"), nil
}

// ExtractObject is ExtractList for single records. found is false when no candidate
// location holds an object.
func ExtractObject(body []byte, keys ...string) (raw json.RawMessage, found bool, err error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false, nil
	}
	if !json.Valid(body) {
		return nil, false, ErrUnableToDecodeResponse
	}

	for _, path := range candidatePaths(keys, false) {
		if raw, ok := lookup(body, path...); ok && isObject(raw) {
			return raw, true, nil
		}
	}

	return nil, false, nil
}

// DecodeList extracts and decodes a list. A missing list decodes to an empty, non-nil
// slice.
func DecodeList[T any](body []byte, keys ...string) ([]T, error) {
	raw, err := ExtractList(body, keys...)
	if err != nil {
		return nil, err
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnableToDecodeResponse, err)
	}
	if out == nil {
		out = []T{}
	}

	return out, nil
}

// DecodeObject extracts and decodes a single record.
func DecodeObject[T any](body []byte, keys ...string) (T, bool, error) {
	var out T
	raw, found, err := ExtractObject(body, keys...)
	if err != nil || !found {
		return out, false, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("%w: %v", ErrUnableToDecodeResponse, err)
	}

	return out, true, nil
}

func candidatePaths(keys []string, list bool) [][]string {
	var paths [][]string
	for _, k := range keys {
		paths = append(paths, []string{"data", "data", k})
	}
	for _, k := range keys {
		paths = append(paths, []string{"data", k})
	}

	if list {
		paths = append(paths, []string{"data", "data"}, []string{"data"})
		for _, k := range keys {
			paths = append(paths, []string{k})
		}
	} else {
		for _, k := range keys {
			paths = append(paths, []string{k})
		}
		paths = append(paths, []string{"data", "data"}, []string{"data"})
	}

	return append(paths, []string{})
}

func lookup(raw json.RawMessage, path ...string) (json.RawMessage, bool) {
	cur := raw
	for _, p := range path {
		if !isObject(cur) {
			return nil, false
		}

		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(cur, &fields); err != nil {
			return nil, false
		}

		next, ok := fields[p]
		if !ok {
			return nil, false
		}
		cur = next
	}

	return cur, true
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
