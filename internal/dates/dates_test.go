package dates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseISO(t *testing.T) {
	got, ok := ParseISO("2026-01-30")
	assert.True(t, ok)
	assert.Equal(t, "2026-01-30", got)

	// Must name a real calendar date.
	_, ok = ParseISO("2026-02-30")
	assert.False(t, ok)
	_, ok = ParseISO("30/01/2026")
	assert.False(t, ok)
	_, ok = ParseISO("")
	assert.False(t, ok)
}

func TestFromISODateTime(t *testing.T) {
	got, ok := FromISODateTime("2025-12-20T12:00:00")
	assert.True(t, ok)
	assert.Equal(t, "2025-12-20", got)

	got, ok = FromISODateTime("2025-12-20")
	assert.True(t, ok)
	assert.Equal(t, "2025-12-20", got)

	_, ok = FromISODateTime("garbage")
	assert.False(t, ok)
}

func TestParseSpanish(t *testing.T) {
	got, ok := ParseSpanish("30/ene/26")
	assert.True(t, ok)
	assert.Equal(t, "2026-01-30", got)

	got, ok = ParseSpanish("15/enero/2024")
	assert.True(t, ok)
	assert.Equal(t, "2024-01-15", got)

	// ISO passthrough.
	got, ok = ParseSpanish("2024-05-02")
	assert.True(t, ok)
	assert.Equal(t, "2024-05-02", got)

	_, ok = ParseSpanish("30/xyz/26")
	assert.False(t, ok)
	_, ok = ParseSpanish("45/ene/26")
	assert.False(t, ok)
}

func TestParseStatement(t *testing.T) {
	cases := []struct {
		in   string
		year int
		want string
	}{
		{"12 ENE", 2024, "2024-01-12"},
		{"12ENE", 2024, "2024-01-12"},
		{"3 DIC", 2025, "2025-12-03"},
		{"12/01/24", 0, "2024-01-12"},
		{"31-12-2023", 0, "2023-12-31"},
		{"2024-01-12", 0, "2024-01-12"},
	}
	for _, tc := range cases {
		got, ok := ParseStatement(tc.in, tc.year)
		assert.True(t, ok, "failed to parse %q", tc.in)
		assert.Equal(t, tc.want, got, "for %q", tc.in)
	}

	_, ok := ParseStatement("45 ENE", 2024)
	assert.False(t, ok)
	_, ok = ParseStatement("12/13/24", 0)
	assert.False(t, ok)
	_, ok = ParseStatement("", 2024)
	assert.False(t, ok)
}
