package apiclient

import (
	"bytes"
	"encoding/json"
)

// DecodeList reads a collection the backend may send in several shapes: a bare
// array, an object holding the array under field, or a single object for which
// single reports true. An empty body is an empty list.
func DecodeList[T any](raw json.RawMessage, field string, single func(map[string]json.RawMessage) bool) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &MalformedResponseError{Reason: "invalid " + field + " array", Cause: err}
		}
		return items, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &MalformedResponseError{Reason: "invalid " + field + " payload", Cause: err}
	}
	if inner, ok := obj[field]; ok {
		inner = bytes.TrimSpace(inner)
		if len(inner) > 0 && inner[0] == '[' {
			var items []T
			if err := json.Unmarshal(inner, &items); err != nil {
				return nil, &MalformedResponseError{Reason: "invalid " + field + " array", Cause: err}
			}
			return items, nil
		}
	}
	if single != nil && single(obj) {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &MalformedResponseError{Reason: "invalid " + field + " item", Cause: err}
		}
		return []T{item}, nil
	}
	return nil, &MalformedResponseError{Reason: "no " + field + " list in response"}
}

// HasFields reports whether every named field is present and not null.
func HasFields(names ...string) func(map[string]json.RawMessage) bool {
	return func(obj map[string]json.RawMessage) bool {
		for _, n := range names {
			v, ok := obj[n]
			if !ok || string(bytes.TrimSpace(v)) == "null" || string(bytes.TrimSpace(v)) == `""` {
				return false
			}
		}
		return true
	}
}
