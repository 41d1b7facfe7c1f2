package api

import (
	"bytes"
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is a JSON object whose keys keep their document order.
// Values stay as raw JSON so numbers and unknown structures round-trip exactly.
type Object = orderedmap.OrderedMap[string, json.RawMessage]

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return orderedmap.New[string, json.RawMessage]()
}

// Keys returns the keys of o in order.
func Keys(o *Object) []string {
	if o == nil {
		return nil
	}
	keys := make([]string, 0, o.Len())
	for p := o.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// SetValue marshals v and stores it under key. An existing key keeps its position.
func SetValue(o *Object, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	o.Set(key, raw)
	return nil
}

// GetString returns the string stored under key; false when the key is
// absent, null or not a string.
func GetString(o *Object, key string) (string, bool) {
	if o == nil {
		return "", false
	}
	raw, ok := o.Get(key)
	if !ok || isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// CloneObject copies o. Raw values are copied too, so the clone never aliases o.
func CloneObject(o *Object) *Object {
	c := NewObject()
	if o == nil {
		return c
	}
	for p := o.Oldest(); p != nil; p = p.Next() {
		c.Set(p.Key, append(json.RawMessage(nil), p.Value...))
	}
	return c
}

func stringRaw(s string) json.RawMessage {
	raw, _ := json.Marshal(s) // strings always marshal
	return raw
}

func marshalObject(o *Object) ([]byte, error) {
	if o == nil {
		return []byte("{}"), nil
	}
	return o.MarshalJSON()
}

func unmarshalObject(data []byte) (*Object, error) {
	o := NewObject()
	if isNull(data) {
		return o, nil
	}
	if err := json.Unmarshal(data, o); err != nil {
		return nil, err
	}
	return o, nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// firstByte returns the first non-space byte of data, or 0.
func firstByte(data []byte) byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
