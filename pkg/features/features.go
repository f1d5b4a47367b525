// Package features strips feature gated fields from outbound payloads.
//
// A key containing Separator is gated by the feature named before the first
// separator: "spacex__api_id" is only visible when "spacex" is enabled.
package features

import (
	"strings"
)

const Separator = "__"

// QueryParam is the request parameter listing enabled features.
const QueryParam = "features"

// Set is a set of enabled, lowercased feature names.
type Set map[string]struct{}

// Parse reads a comma separated, case insensitive feature list. Blank
// entries are ignored.
func Parse(raw string) Set {
	s := Set{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name != "" {
			s[name] = struct{}{}
		}
	}
	return s
}

func (s Set) Has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// FeatureOf returns the feature gating key, if any.
func FeatureOf(key string) (string, bool) {
	name, _, found := strings.Cut(key, Separator)
	if !found {
		return "", false
	}
	return strings.ToLower(name), true
}

// Allows reports whether key survives filtering under s.
func (s Set) Allows(key string) bool {
	name, gated := FeatureOf(key)
	if !gated {
		return true
	}
	_, ok := s[name]
	return ok
}

// Predicate decides whether an object key is kept.
type Predicate func(key string) bool

// Walk returns a copy of v with every object key rejected by keep removed,
// at any depth. v is a decoded JSON tree (map[string]any, []any, scalars).
func Walk(v any, keep Predicate) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if !keep(k) {
				continue
			}
			out[k] = Walk(child, keep)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Walk(child, keep)
		}
		return out
	default:
		return v
	}
}

// Filter applies s to a decoded JSON tree.
func Filter(v any, s Set) any {
	return Walk(v, s.Allows)
}
