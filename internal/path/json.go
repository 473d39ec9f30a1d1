package path

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the path as an array of segments.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.parts)
}

// UnmarshalJSON decodes a segment array, rejecting empty paths and segments.
func (p *Path) UnmarshalJSON(b []byte) error {
	var parts []string
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) == 0 {
		return fmt.Errorf("path: must have at least one segment")
	}
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("path: segment can't be empty")
		}
	}
	p.parts = parts
	return nil
}
