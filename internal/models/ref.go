package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RefKind tells how a related resource was serialized.
type RefKind int

const (
	RefNone   RefKind = iota // null, missing or unrecognized
	RefID                    // raw integer id (or numeric string)
	RefObject                // embedded object carrying an id
)

// Ref is a reference to a related resource that the backend serializes either
// as a bare id or as an embedded object.
type Ref struct {
	Kind   RefKind
	ID     int64
	Object map[string]interface{}
}

// IDRef builds a Ref holding a raw id.
func IDRef(id int64) Ref {
	return Ref{Kind: RefID, ID: id}
}

// Resolve returns the referenced id and whether one could be found.
func (r Ref) Resolve() (int64, bool) {
	switch r.Kind {
	case RefID, RefObject:
		if r.ID > 0 {
			return r.ID, true
		}
	}
	return 0, false
}

// Name returns the embedded object's display name, if any.
func (r Ref) Name() string {
	if r.Kind != RefObject {
		return ""
	}
	for _, key := range []string{"name", "title", "username"} {
		if s, ok := r.Object[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// UnmarshalJSON accepts an integer, a numeric string, an object with an
// id/pk field, or null. Anything else decodes to RefNone without error.
func (r *Ref) UnmarshalJSON(data []byte) error {
	*r = Ref{}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*r = RefFromValue(v)
	return nil
}

// MarshalJSON writes raw ids as numbers and objects back as objects.
func (r Ref) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RefID:
		return json.Marshal(r.ID)
	case RefObject:
		return json.Marshal(r.Object)
	default:
		return []byte("null"), nil
	}
}

// RefFromValue classifies an already-decoded JSON value.
func RefFromValue(v interface{}) Ref {
	switch val := v.(type) {
	case nil:
		return Ref{}
	case map[string]interface{}:
		ref := Ref{Kind: RefObject, Object: val}
		for _, key := range []string{"id", "pk"} {
			if id, ok := ParseID(val[key]); ok {
				ref.ID = id
				break
			}
		}
		return ref
	default:
		if id, ok := ParseID(val); ok {
			return Ref{Kind: RefID, ID: id}
		}
		return Ref{}
	}
}

// ParseID extracts a positive integer id from a decoded JSON scalar.
func ParseID(v interface{}) (int64, bool) {
	var id int64
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0, false
		}
		id = n
	case float64:
		if val != math.Trunc(val) {
			return 0, false
		}
		id = int64(val)
	case int:
		id = int64(val)
	case int64:
		id = val
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	default:
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return id, true
}
