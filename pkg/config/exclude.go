package config

import (
	"path"
	"strings"
)

// Normalize trims config patterns and removes empty values.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.ExcludeServices = normalizePatterns(c.ExcludeServices)
	c.CriticalServices = normalizeList(c.CriticalServices)
	c.CanaryServices = normalizeList(c.CanaryServices)
	c.Namespaces = normalizeList(c.Namespaces)
}

// IsServiceExcluded reports whether a service name matches exclude patterns.
func (c *Config) IsServiceExcluded(name string) bool {
	if c == nil || len(c.ExcludeServices) == 0 {
		return false
	}

	value := normalizePattern(name)
	if value == "" {
		return false
	}

	for _, pattern := range c.ExcludeServices {
		if patternMatches(pattern, value) {
			return true
		}
	}

	return false
}

// FilterServices drops excluded names, keeping order and duplicates.
func (c *Config) FilterServices(names []string) (kept []string, excluded []string) {
	kept = make([]string, 0, len(names))
	excluded = make([]string, 0)
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if c.IsServiceExcluded(trimmed) {
			excluded = append(excluded, trimmed)
			continue
		}
		kept = append(kept, trimmed)
	}
	return kept, excluded
}

func normalizePatterns(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, pattern := range values {
		p := normalizePattern(pattern)
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	return normalized
}

func normalizePattern(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func patternMatches(pattern, value string) bool {
	normalizedPattern := normalizePattern(pattern)
	normalizedValue := normalizePattern(value)
	if normalizedPattern == "" || normalizedValue == "" {
		return false
	}

	// Invalid glob patterns are treated as exact matches.
	matched, err := path.Match(normalizedPattern, normalizedValue)
	if err == nil {
		return matched
	}
	return normalizedPattern == normalizedValue
}
