package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses a duration string with support for additional time units.
//
// Extends time.ParseDuration with days ("d"), weeks ("w") and bare integers,
// which are read as seconds.
//
//	ParseDuration("1d")    // 24 hours
//	ParseDuration("2w")    // 336 hours
//	ParseDuration("45")    // 45 seconds
//	ParseDuration("1h30m") // standard Go format
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	for suffix, unit := range map[string]time.Duration{"d": 24 * time.Hour, "w": 7 * 24 * time.Hour} {
		if n, ok := strings.CutSuffix(s, suffix); ok {
			if count, err := strconv.Atoi(n); err == nil {
				return time.Duration(count) * unit, nil
			}
		}
	}

	return 0, fmt.Errorf("invalid duration: %q", s)
}
