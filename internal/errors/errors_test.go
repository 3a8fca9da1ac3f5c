package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		code int
	}{
		{KindConfigParse, 3},
		{KindNoReleaseAnchor, 4},
		{KindTimestampAnomaly, 5},
		{KindRemoteUnavailable, 6},
		{KindRepositoryAccess, 7},
		{KindUnknownRevision, 8},
		{KindInternalInvariant, 9},
	}
	for _, tc := range cases {
		err := New(tc.kind, "boom")
		assert.Equal(t, tc.code, err.ExitCode())
	}
}

func TestWrapKeepsCauseAndMessage(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(KindRemoteUnavailable, cause, "ls-remote failed for %s", "origin")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindRemoteUnavailable, KindOf(err))
	assert.Contains(t, err.Error(), "ls-remote failed for origin")
}

func TestIsMatchesKind(t *testing.T) {
	err := New(KindNoReleaseAnchor, "no candidates")
	assert.True(t, Is(err, KindNoReleaseAnchor))
	assert.False(t, Is(err, KindConfigParse))
	assert.False(t, Is(fmt.Errorf("plain"), KindConfigParse))
}
