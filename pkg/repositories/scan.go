package repositories

import (
	"encoding/json"
	"fmt"
	"strings"
)

// nullString maps "" to SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// jsonbMap encodes a property map for a JSONB column. Empty maps become NULL.
func jsonbMap(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode jsonb: %w", err)
	}
	return data, nil
}

// scanJSONBMap decodes a JSONB column read as bytes. NULL yields nil.
func scanJSONBMap(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode jsonb: %w", err)
	}
	return m, nil
}

// likePattern builds a case-insensitive substring pattern with LIKE
// metacharacters escaped.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
