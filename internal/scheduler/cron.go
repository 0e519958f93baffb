package scheduler

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronFieldPattern is the per-field shape gate applied before handing the
// pattern to the real parser: "*", "*/n", or digit/comma/dash/slash runs.
var cronFieldPattern = regexp.MustCompile(`^(\*(?:/\d+)?|[0-9,\-/]+)$`)

// cronParser parses the 6-field (second minute hour dom month dow) format
// schedule triggers use.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron checks a 6-field cron pattern: field count, the per-field
// shape gate, and a full parse.
func ValidateCron(pattern string) error {
	fields := strings.Fields(pattern)
	if len(fields) != 6 {
		return fmt.Errorf("cron pattern must have 6 fields (second minute hour day month weekday), got %d", len(fields))
	}
	for i, field := range fields {
		if !cronFieldPattern.MatchString(field) {
			return fmt.Errorf("cron field %d (%q) is invalid", i+1, field)
		}
	}
	if _, err := cronParser.Parse(pattern); err != nil {
		return fmt.Errorf("cron pattern does not parse: %w", err)
	}
	return nil
}

// NextFireTime computes the next fire after now for (pattern, timezone),
// deterministically, for UI display. timezone defaults to
// UTC when empty.
func NextFireTime(pattern, timezone string, now time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(pattern)
	if err != nil {
		return time.Time{}, err
	}
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
		loc = l
	}
	return schedule.Next(now.In(loc)), nil
}
