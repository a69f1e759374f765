package utility

import (
	"encoding/json"
)

// ParseJson decodes a raw frame into the untyped array form used by
// the protocol framing.
func ParseJson(b []byte) ([]interface{}, error) {
	var array []interface{}
	if err := json.Unmarshal(b, &array); err != nil {
		return nil, err
	}
	return array, nil
}
