package sqlite

import "encoding/json"

// Dimensions are a small free-form map; JSON text keeps the column
// readable without a join table.

func encodeDimensions(d map[string]string) string {
	if len(d) == 0 {
		return ""
	}
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeDimensions(s string) map[string]string {
	if s == "" {
		return nil
	}
	var d map[string]string
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil
	}
	return d
}
