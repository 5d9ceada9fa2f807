package common

import (
	"math"
	"strconv"
	"strings"
)

// StringArg returns args[key] as a trimmed string, or def when it is absent,
// empty or not a string.
func StringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return def
}

// IntArg returns args[key] as an int. JSON numbers arrive as float64; numeric
// strings are accepted too. Anything else yields def.
func IntArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}
