package sql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeFromString(t *testing.T) {
	testCases := []struct {
		input    string
		expected time.Time
	}{
		{"2024-07-25T14:37:52.42853218Z", time.Date(2024, 7, 25, 14, 37, 52, 428532180, time.UTC)},
		{"2024-07-25T16:37:52+02:00", time.Date(2024, 7, 25, 14, 37, 52, 0, time.UTC)},
		{"2006-01-02 15:04:05.999999999-07:00", time.Date(2006, 1, 2, 22, 4, 5, 999999999, time.UTC)},
		{"2006-01-02 15:04:05.5", time.Date(2006, 1, 2, 15, 4, 5, 500000000, time.UTC)},
		{"2006-01-02T15:04:05.999999999", time.Date(2006, 1, 2, 15, 4, 5, 999999999, time.UTC)},
		{"2006-01-02 15:04:05", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"2006-01-02", time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"", time.Time{}},
		{"invalid", time.Time{}},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.True(t, timeFromString(tc.input).Equal(tc.expected), "got %v", timeFromString(tc.input))
		})
	}
}

func TestNullTime(t *testing.T) {
	assert.Nil(t, nullTime(time.Time{}))
	local := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	assert.Equal(t, time.UTC, nullTime(local).(time.Time).Location())
}
