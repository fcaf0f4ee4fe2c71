package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"10s", 10 * time.Second, true},
		{"5m", 5 * time.Minute, true},
		{"2h", 2 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{" 3 H ", 3 * time.Hour, true},
		{"", 0, false},
		{"10", 0, false},
		{"10x", 0, false},
		{"0s", 0, false},
		{"1h30m", 0, false},
		{"99999999999999999999d", 0, false},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseCompound(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1h30m", 5400 * time.Second, true},
		{"45m", 2700 * time.Second, true},
		{"2H", 2 * time.Hour, true},
		{"", 0, false},
		{"0h0m", 0, false},
		{"30s", 0, false},
		{"1m1h", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseCompound(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1h30m", Format(90*time.Minute))
	assert.Equal(t, "1d2h", Format(26*time.Hour))
	assert.Equal(t, "0s", Format(0))
}
