package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload helpers operate on the normalised seller-submitted product data.
// Values are restricted to string, []string, and float64; unknown shapes are
// coerced on ingress so the review pipeline never sees raw JSON types.

// PayloadString returns the first non-empty string among the given keys.
func PayloadString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := data[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return trimFloat(v)
		}
	}
	return ""
}

// PayloadStrings coerces the value under key into a string slice. A plain
// string becomes a one-element slice; a JSON-encoded array is unpacked.
func PayloadStrings(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return cleanStrings(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "[") {
			var parsed []any
			if err := json.Unmarshal([]byte(s), &parsed); err == nil {
				out := make([]string, 0, len(parsed))
				for _, item := range parsed {
					if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
						out = append(out, strings.TrimSpace(str))
					}
				}
				return out
			}
		}
		return []string{s}
	default:
		return nil
	}
}

// MergePayload overlays patch onto base: patch fields override, fields absent
// from patch are retained. Neither input is mutated.
func MergePayload(base, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// NormalizePayload coerces a decoded JSON payload into the canonical
// string / []string / float64 value set the pipeline stores. The sanitize
// function, when provided, is applied to every string value on the way in.
func NormalizePayload(raw map[string]any, sanitize func(string) string) map[string]any {
	if sanitize == nil {
		sanitize = func(s string) string { return s }
	}
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			out[key] = sanitize(strings.TrimSpace(v))
		case bool:
			out[key] = strconv.FormatBool(v)
		case float64:
			out[key] = sanitize(trimFloat(v))
		case []any, []string:
			items := PayloadStrings(map[string]any{key: v}, key)
			cleaned := make([]string, 0, len(items))
			for _, item := range items {
				cleaned = append(cleaned, sanitize(item))
			}
			out[key] = cleaned
		default:
			out[key] = sanitize(fmt.Sprintf("%v", v))
		}
	}
	return out
}

func cleanStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
