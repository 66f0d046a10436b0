package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var longUnitPrefix = regexp.MustCompile(`^(\d+)([dw])(.*)$`)

// ParseDuration extends time.ParseDuration with day (d) and week (w) units.
// A day or week count may be followed by a Go duration: "1d12h", "2w3d".
func ParseDuration(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	matches := longUnitPrefix.FindStringSubmatch(raw)
	if matches == nil {
		return time.ParseDuration(raw)
	}

	count, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	unit := 24 * time.Hour
	if matches[2] == "w" {
		unit *= 7
	}
	total := time.Duration(count) * unit

	if rest := matches[3]; rest != "" {
		extra, err := ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if extra < 0 {
			return 0, fmt.Errorf("invalid duration %q: negative remainder", s)
		}
		total += extra
	}
	return total, nil
}
