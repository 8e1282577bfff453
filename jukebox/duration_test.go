package jukebox

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0:00"},
		{9, "0:09"},
		{75, "1:15"},
		{599, "9:59"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3661, "1:01:01"},
		{-5, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestParseDurationRoundTrip(t *testing.T) {
	for _, seconds := range []int64{0, 1, 59, 60, 75, 3599, 3600, 3661, 86399} {
		got, err := ParseDuration(FormatDuration(seconds))
		require.NoError(t, err)
		assert.Equal(t, seconds, got)
	}
}

func TestParseDurationRejectsOtherShapes(t *testing.T) {
	for _, in := range []string{
		"", "abc", "200", "1:2:3:4", "1:60", "1:-1", "1.5", "1:xx", ":", "1:", ":05",
		"PT3M20S", "+1:+05", "-1:05", "1: 05", "9223372036854775807:00", "99999999999999999:00:00",
	} {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDuration(in)
			assert.ErrorIs(t, err, ErrInvalidDuration)
			assert.Zero(t, got)
		})
	}
}

func TestParseDurationLargestValue(t *testing.T) {
	got, err := ParseDuration(" 153722867280912930:07 ")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got)
}
