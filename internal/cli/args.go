package cli

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseArguments builds tool arguments from an optional JSON object and a
// list of key=value pairs. Pairs override keys of the JSON object.
func ParseArguments(rawJSON string, pairs []string) (map[string]any, error) {
	args := map[string]any{}

	if strings.TrimSpace(rawJSON) != "" {
		if err := json.Unmarshal([]byte(rawJSON), &args); err != nil {
			return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
		}
		if args == nil {
			args = map[string]any{}
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", pair)
		}
		args[key] = parseValue(stripQuotes(value))
	}
	return args, nil
}

// parseValue keeps the JSON type of value when it is valid JSON.
func parseValue(value string) any {
	var v any
	if err := json.Unmarshal([]byte(value), &v); err == nil {
		return v
	}
	return value
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
