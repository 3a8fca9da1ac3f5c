package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tmerrors "tidemark/internal/errors"
)

func TestDefaultUnitNameIsStableForSamePath(t *testing.T) {
	a := defaultUnitName("/tmp/example-repo")
	b := defaultUnitName("/tmp/example-repo")
	assert.Equal(t, a, b)
	assert.True(t, len(a) > len("tidemark-example-repo-"))
	assert.Contains(t, a, "tidemark-example-repo-")
}

func TestPlanServiceContainsIntervalAndFlags(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	plan, err := PlanService(InstallRequest{
		RepoRoot:        "/tmp/repo",
		IntervalMinutes: 15,
		UnitName:        "custom_name",
		LocalOnly:       true,
		Explain:         true,
		MetadataSuffix:  "dev",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom_name", plan.UnitName)
	assert.Contains(t, plan.TimerContent, "OnUnitActiveSec=15min")
	assert.Contains(t, plan.ServiceContent, "--local-only")
	assert.Contains(t, plan.ServiceContent, "--explain")
	assert.Contains(t, plan.ServiceContent, "--tag")
}

func TestPlanServiceRejectsZeroInterval(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	_, err := PlanService(InstallRequest{RepoRoot: "/tmp/repo", IntervalMinutes: 0})
	require.Error(t, err)
	assert.Equal(t, tmerrors.KindConfigParse, tmerrors.KindOf(err))
}

func TestSanitizeUnitNameKeepsSafeCharset(t *testing.T) {
	assert.Equal(t, "tide-mark-repo", sanitizeUnitName("Tide Mark@Repo"))
}

func TestPlanServiceUnitFilesUnderHomeSystemdDir(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	plan, err := PlanService(InstallRequest{RepoRoot: "/tmp/repo", IntervalMinutes: 5, UnitName: "x"})
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/.config/systemd/user/x.service", plan.ServiceFile)
	assert.Equal(t, "/home/tester/.config/systemd/user/x.timer", plan.TimerFile)
}
