package tools

import (
	"fmt"
	"strconv"
	"strings"
)

func stringParam(params map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := params[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

func requireString(params map[string]any, keys ...string) (string, error) {
	s := strings.TrimSpace(stringParam(params, keys...))
	if s == "" {
		return "", fmt.Errorf("missing required parameter %q", keys[0])
	}
	return s, nil
}

func floatParam(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func intParam(params map[string]any, key string, def int) int {
	return int(floatParam(params, key, float64(def)))
}

func optionalInt(params map[string]any, key string) *int {
	if _, ok := params[key]; !ok || params[key] == nil {
		return nil
	}
	v := intParam(params, key, 0)
	return &v
}

// stringsParam accepts a JSON array, a Go slice or a "+"/","-separated string.
func stringsParam(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		fields := strings.FieldsFunc(v, func(r rune) bool { return r == '+' || r == ',' })
		out := make([]string, 0, len(fields))
		for _, f := range fields {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}
