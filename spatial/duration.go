// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a duration text that ParseDurationTextStrict rejects.
type ParseError struct {
	Text   string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("parsing duration %q: %s", e.Text, e.Reason)
	}

	return fmt.Sprintf("parsing duration %q: %s %q", e.Text, e.Reason, e.Token)
}

// leadingInt reads an optionally signed run of leading digits, the way the
// provider's duration texts were always consumed. "12abc" is 12; a token with
// no leading digits yields false.
func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}

	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	if end == start {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}

	return n, true
}

// ParseDurationText converts a provider duration such as "2 hours 30 mins"
// into fractional hours. Tokens alternate value and unit. Only the units
// "hours" and "mins" count: "5 days" or "1 hour" contribute nothing. Use
// ParseDurationTextStrict to reject such input instead.
func ParseDurationText(text string) float64 {
	parts := strings.Fields(text)
	hours := 0.0

	for i := 0; i+1 < len(parts); i += 2 {
		value, ok := leadingInt(parts[i])
		if !ok {
			continue
		}

		switch parts[i+1] {
		case "hours":
			hours += float64(value)
		case "mins":
			hours += float64(value) / 60
		}
	}

	return hours
}

var unitHours = map[string]float64{
	"day":     24,
	"days":    24,
	"hour":    1,
	"hours":   1,
	"hr":      1,
	"hrs":     1,
	"min":     1.0 / 60,
	"mins":    1.0 / 60,
	"minute":  1.0 / 60,
	"minutes": 1.0 / 60,
}

// ParseDurationTextStrict is like ParseDurationText but understands days,
// singular and abbreviated units, and returns a *ParseError for unknown
// units, non-numeric values or a value without a unit.
func ParseDurationTextStrict(text string) (float64, error) {
	parts := strings.Fields(strings.ToLower(text))
	if len(parts) == 0 {
		return 0, &ParseError{Text: text, Reason: "empty duration"}
	}

	if len(parts)%2 != 0 {
		return 0, &ParseError{Text: text, Token: parts[len(parts)-1], Reason: "missing unit after"}
	}

	hours := 0.0

	for i := 0; i < len(parts); i += 2 {
		value, err := strconv.ParseFloat(parts[i], 64)
		if err != nil || value < 0 {
			return 0, &ParseError{Text: text, Token: parts[i], Reason: "invalid value"}
		}

		factor, ok := unitHours[parts[i+1]]
		if !ok {
			return 0, &ParseError{Text: text, Token: parts[i+1], Reason: "unknown unit"}
		}

		hours += value * factor
	}

	return hours, nil
}
