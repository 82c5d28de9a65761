package foundation

import (
	"fmt"
	"strings"
)

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalizer maps loosely formatted strings (case, surrounding space, aliases)
// onto a closed set of enum values.
type Normalizer[T comparable] struct {
	validValues  map[string]T
	canonical    []string
	defaultValue T
}

// NewNormalizer creates a normalizer. canonical lists the spellings shown to
// users in error messages, in display order; values may contain extra aliases.
func NewNormalizer[T comparable](values map[string]T, defaultValue T, canonical ...string) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	for k, v := range values {
		normalized[normalizeKey(k)] = v
	}
	return &Normalizer[T]{
		validValues:  normalized,
		canonical:    canonical,
		defaultValue: defaultValue,
	}
}

// Normalize converts raw to the enum type, returning the default when unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, ok := n.validValues[normalizeKey(raw)]; ok {
		return value
	}
	return n.defaultValue
}

// NormalizeWithError converts raw to the enum type or reports the valid options.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if value, ok := n.validValues[normalizeKey(raw)]; ok {
		return value, nil
	}
	var zero T
	if len(n.canonical) > 0 {
		return zero, fmt.Errorf("invalid value %q (valid options: %s)", raw, strings.Join(n.canonical, ", "))
	}
	return zero, fmt.Errorf("invalid value: %s", raw)
}

// Options returns the canonical spellings.
func (n *Normalizer[T]) Options() []string {
	return append([]string(nil), n.canonical...)
}
