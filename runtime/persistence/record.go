package persistence

import (
	"encoding/json"
	"fmt"
)

// Record is the serialized form of collected values.
type Record struct {
	ReadWrite map[string]json.RawMessage `json:"readWrite,omitempty"`
	WriteOnly map[string]json.RawMessage `json:"writeOnly,omitempty"`
}

// Len returns the number of values in the record.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ReadWrite) + len(r.WriteOnly)
}

// ValuesOf returns the read-write values in namespace.
func (r *Record) ValuesOf(namespace string) (Values, error) {
	ret := Values{}
	if r == nil {
		return ret, nil
	}
	for key, raw := range r.ReadWrite {
		name, err := ParseName(key)
		if err != nil {
			return nil, err
		}
		if name.Namespace == namespace {
			ret[name] = raw
		}
	}
	return ret, nil
}

func encode(values Values) (map[string]json.RawMessage, error) {
	if len(values) == 0 {
		return nil, nil
	}
	ret := make(map[string]json.RawMessage, len(values))
	for name, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %v: %w", name, err)
		}
		ret[name.String()] = data
	}
	return ret, nil
}

// Decode copies a published value into target. Values published from a
// record arrive as json.RawMessage, values published in process keep their type.
func Decode(value interface{}, target interface{}) error {
	switch actual := value.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return json.Unmarshal(actual, target)
	case []byte:
		return json.Unmarshal(actual, target)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
