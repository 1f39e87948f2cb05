package jsonmap

import (
	"fmt"

	"gorm.io/datatypes"
)

// FromStringMap converts a string map into a GORM JSON map value.
func FromStringMap(values map[string]string) datatypes.JSONMap {
	if len(values) == 0 {
		return datatypes.JSONMap{}
	}

	out := datatypes.JSONMap{}
	for key, value := range values {
		out[key] = value
	}
	return out
}

// Merge returns a copy of base with every entry of overlay
// applied on top. Neither input is mutated.
func Merge(base, overlay datatypes.JSONMap) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(base)+len(overlay))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range overlay {
		out[key] = value
	}
	return out
}

// String extracts a string value from a JSON map, with ok
// reporting whether the key was present and a string.
func String(values datatypes.JSONMap, key string) (string, bool) {
	value, ok := values[key]
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// Int extracts an integer value from a JSON map. JSON numbers
// decode as float64, so both representations are accepted.
func Int(values datatypes.JSONMap, key string) (int, bool) {
	switch v := values[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// ToStringMap converts a JSON map into a string map.
func ToStringMap(values datatypes.JSONMap) map[string]string {
	if len(values) == 0 {
		return map[string]string{}
	}

	out := make(map[string]string, len(values))
	for key, value := range values {
		if str, ok := value.(string); ok {
			out[key] = str
			continue
		}
		out[key] = fmt.Sprint(value)
	}
	return out
}
