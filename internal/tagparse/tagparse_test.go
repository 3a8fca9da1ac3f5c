package tagparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAccepted(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
		value  uint64
	}{
		{"v1", "v", 1},
		{"v01", "v", 1},
		{"v0", "v", 0},
		{"v18446744073709551615", "v", 18446744073709551615},
		{"release42", "release", 42},
	}
	for _, tc := range cases {
		value, ok := Parse(tc.name, tc.prefix)
		assert.True(t, ok, "expected %q to parse under prefix %q", tc.name, tc.prefix)
		assert.Equal(t, tc.value, value)
	}
}

func TestParseRejected(t *testing.T) {
	cases := []struct{ name, prefix string }{
		{"v", "v"},                  // no digits
		{"v1.2", "v"},                // not purely digits
		{"release1", "v"},           // wrong prefix
		{"va", "v"},                 // non-digit
		{"v18446744073709551616", "v"}, // overflow uint64
		{"", "v"},
	}
	for _, tc := range cases {
		_, ok := Parse(tc.name, tc.prefix)
		assert.False(t, ok, "expected %q to be rejected under prefix %q", tc.name, tc.prefix)
	}
}

func TestAcceptedRoundTrip(t *testing.T) {
	// Invariant 4: prefix ++ decimal_repr_without_leading_zeros(anchor_value)
	// maps back to the same anchor value.
	names := []string{"v1", "v01", "v007", "v999999999999999999"}
	for _, name := range names {
		value, ok := Parse(name, "v")
		assert.True(t, ok)
		roundTripped := Format("v", value)
		value2, ok2 := Parse(roundTripped, "v")
		assert.True(t, ok2)
		assert.Equal(t, value, value2)
	}
}
