package timepolicy

import (
	"testing"

	tmerrors "tidemark/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariants(t *testing.T) {
	p, err := Parse("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", p.CanonicalName())

	p, err = Parse("+08:00")
	require.NoError(t, err)
	assert.Equal(t, "+08:00", p.CanonicalName())

	_, err = Parse("+8")
	require.Error(t, err)
	assert.Equal(t, tmerrors.KindConfigParse, tmerrors.KindOf(err))

	_, err = Parse("+15:00")
	require.Error(t, err)
}

func TestDayDeltaUTC(t *testing.T) {
	p, err := Parse("UTC")
	require.NoError(t, err)

	anchor := int64(1704067200) // 2024-01-01T00:00:00Z
	target := int64(1704153600) // 2024-01-02T00:00:00Z
	assert.Equal(t, int64(1), p.DayDelta(anchor, target))
	assert.Equal(t, int64(0), p.DayDelta(anchor, anchor))
	assert.Equal(t, int64(-1), p.DayDelta(target, anchor))
}

func TestDayDeltaOffsetShiftsBoundary(t *testing.T) {
	p, err := Parse("+08:00")
	require.NoError(t, err)

	// 2024-01-01T23:00:00Z is 2024-01-02T07:00:00 in +08:00.
	anchor := int64(1704067200)            // 2024-01-01T00:00:00Z -> 2024-01-01 08:00 +08
	target := anchor + 23*3600             // 2024-01-01T23:00:00Z -> 2024-01-02 07:00 +08
	assert.Equal(t, int64(1), p.DayDelta(anchor, target))
}

func TestSameDate(t *testing.T) {
	p, err := Parse("UTC")
	require.NoError(t, err)
	assert.True(t, p.SameDate(1704067200, 1704067200+3600))
	assert.False(t, p.SameDate(1704067200, 1704067200+86400))
}
