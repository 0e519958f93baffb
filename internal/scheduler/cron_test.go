package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCron_AcceptsSixFieldPatterns(t *testing.T) {
	valid := []string{
		"*/1 * * * * *",
		"0 0 9 * * 1",
		"0 30 8 1,15 * *",
		"0 0 0 * * 0-4",
		"*/5 * * * * *",
	}
	for _, pattern := range valid {
		assert.NoError(t, ValidateCron(pattern), pattern)
	}
}

func TestValidateCron_RejectsBadPatterns(t *testing.T) {
	invalid := []string{
		"",
		"* * * * *",          // 5 fields
		"* * * * * * *",      // 7 fields
		"a * * * * *",        // non-numeric field
		"0 0 ? * * *",        // unsupported character
		"0 0 25 * * *",       // parses the shape gate but not the parser
		"@every 1s",          // descriptor, not a 6-field pattern
	}
	for _, pattern := range invalid {
		assert.Error(t, ValidateCron(pattern), pattern)
	}
}

func TestNextFireTime_Deterministic(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	next, err := NextFireTime("0 0 12 * * *", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), next)

	again, err := NextFireTime("0 0 12 * * *", "", now)
	require.NoError(t, err)
	assert.Equal(t, next, again)
}

func TestNextFireTime_HonorsTimezone(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	next, err := NextFireTime("0 0 12 * * *", "America/New_York", now)
	require.NoError(t, err)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, 12, next.In(loc).Hour())
}

func TestNextFireTime_InvalidTimezone(t *testing.T) {
	_, err := NextFireTime("0 0 12 * * *", "Not/AZone", time.Now())
	assert.Error(t, err)
}
