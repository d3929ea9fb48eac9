package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"10s", 10 * time.Second},
		{"2m", 2 * time.Minute},
		{"1h", time.Hour},
		{"1d", 24 * time.Hour},
		{"5", 5 * time.Second},
		{"0s", 0},
		{"90s", 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDuration(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestParseDurationInvalid(t *testing.T) {
	for _, input := range []string{"", "xy", "10x", "s", "-5s", "1.5h", "10 s"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDuration(input)
			assert.Error(t, err)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{10 * time.Second, "10s"},
		{2 * time.Minute, "2m"},
		{time.Hour, "1h"},
		{24 * time.Hour, "1d"},
		{90 * time.Second, "90s"},
		{0, "0s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatDuration(tt.input))
	}
}

func TestFormatDurationRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{time.Second, 75 * time.Second, 30 * time.Minute, 6 * time.Hour, 48 * time.Hour} {
		parsed, err := ParseDuration(FormatDuration(d))
		assert.NoError(t, err)
		assert.Equal(t, d, parsed)
	}
}
