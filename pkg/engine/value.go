package engine

import "encoding/json"

// deepCopy clones a JSON-shaped value through a marshal round-trip so loop
// iterations can mutate their input without sharing state. Unmarshalable
// values are returned as-is.
func deepCopy(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
