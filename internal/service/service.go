// Package service plans, installs, and uninstalls a systemd user unit that
// invokes `tide mark` on a fixed interval. This is the "systemd user-service
// planner/installer" spec.md §1 names as an external collaborator; it is
// included here as a supplemental operational feature (SPEC_FULL.md,
// grounded on original_source/src/ops/service.rs) since nothing in
// spec.md's Non-goals excludes it. It writes only under
// $HOME/.config/systemd/user/ and invokes systemctl — never repository
// state.
package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	tmerrors "tidemark/internal/errors"
)

// InstallRequest parameterizes plan generation and installation.
type InstallRequest struct {
	RepoRoot        string
	IntervalMinutes uint32
	UnitName        string // optional; derived from RepoRoot if empty
	LocalOnly       bool
	Explain         bool
	MetadataSuffix  string
}

// UninstallRequest parameterizes teardown of a previously installed unit.
type UninstallRequest struct {
	RepoRoot string
	UnitName string
}

// Plan is the deterministic unit content PlanService computes; Install
// writes it to disk, but Plan alone never touches the filesystem.
type Plan struct {
	UnitName       string
	ServiceFile    string
	TimerFile      string
	ServiceContent string
	TimerContent   string
}

// PlanService renders the service/timer unit content for req without
// writing anything to disk.
func PlanService(req InstallRequest) (Plan, error) {
	if req.IntervalMinutes == 0 {
		return Plan{}, tmerrors.New(tmerrors.KindConfigParse, "service interval must be at least 1 minute, got 0")
	}

	unitName := sanitizeUnitName(req.UnitName)
	if unitName == "" {
		unitName = defaultUnitName(req.RepoRoot)
	}

	systemdDir, err := userSystemdDir()
	if err != nil {
		return Plan{}, err
	}
	serviceFile := filepath.Join(systemdDir, unitName+".service")
	timerFile := filepath.Join(systemdDir, unitName+".timer")

	exe, err := os.Executable()
	if err != nil {
		return Plan{}, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "resolving current executable")
	}

	execArgs := scheduledMarkArgs(req.LocalOnly, req.Explain, req.MetadataSuffix)
	serviceContent := renderServiceUnit(unitName, req.RepoRoot, exe, execArgs)
	timerContent := renderTimerUnit(unitName, req.IntervalMinutes)

	return Plan{
		UnitName:       unitName,
		ServiceFile:    serviceFile,
		TimerFile:      timerFile,
		ServiceContent: serviceContent,
		TimerContent:   timerContent,
	}, nil
}

// Install writes the planned unit files and enables the timer via
// `systemctl --user`. Linux-only; spec.md's cross-platform launcher shims
// are out of scope (spec.md §1).
func Install(req InstallRequest) (Plan, error) {
	if err := ensureLinux("service install"); err != nil {
		return Plan{}, err
	}

	plan, err := PlanService(req)
	if err != nil {
		return Plan{}, err
	}

	if err := os.MkdirAll(filepath.Dir(plan.ServiceFile), 0o755); err != nil {
		return Plan{}, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "creating systemd user unit directory")
	}
	if err := os.WriteFile(plan.ServiceFile, []byte(plan.ServiceContent), 0o644); err != nil {
		return Plan{}, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "writing %s", plan.ServiceFile)
	}
	if err := os.WriteFile(plan.TimerFile, []byte(plan.TimerContent), 0o644); err != nil {
		return Plan{}, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "writing %s", plan.TimerFile)
	}

	if err := runSystemctlChecked("--user", "daemon-reload"); err != nil {
		return Plan{}, err
	}
	if err := runSystemctlChecked("--user", "enable", "--now", plan.UnitName+".timer"); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Uninstall disables and removes a previously installed unit. Missing units
// are tolerated (systemctl's "not loaded" is not an error here).
func Uninstall(req UninstallRequest) (Plan, error) {
	if err := ensureLinux("service uninstall"); err != nil {
		return Plan{}, err
	}

	plan, err := PlanService(InstallRequest{
		RepoRoot:        req.RepoRoot,
		IntervalMinutes: 60,
		UnitName:        req.UnitName,
		LocalOnly:       true,
		Explain:         true,
	})
	if err != nil {
		return Plan{}, err
	}

	_ = runSystemctlBestEffort("--user", "disable", "--now", plan.UnitName+".timer")

	if _, err := os.Stat(plan.ServiceFile); err == nil {
		if err := os.Remove(plan.ServiceFile); err != nil {
			return Plan{}, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "removing %s", plan.ServiceFile)
		}
	}
	if _, err := os.Stat(plan.TimerFile); err == nil {
		if err := os.Remove(plan.TimerFile); err != nil {
			return Plan{}, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "removing %s", plan.TimerFile)
		}
	}

	return plan, runSystemctlChecked("--user", "daemon-reload")
}

func scheduledMarkArgs(localOnly, explain bool, metadataSuffix string) []string {
	args := []string{"mark"}
	if explain {
		args = append(args, "--explain")
	}
	if localOnly {
		args = append(args, "--local-only")
	}
	if tag := strings.TrimSpace(metadataSuffix); tag != "" {
		args = append(args, "--tag", tag)
	}
	return args
}

func renderServiceUnit(unitName, repoRoot, binary string, execArgs []string) string {
	parts := make([]string, 0, len(execArgs)+1)
	parts = append(parts, systemdQuote(binary))
	for _, a := range execArgs {
		parts = append(parts, systemdQuote(a))
	}
	execStart := strings.Join(parts, " ")

	return fmt.Sprintf(
		"[Unit]\nDescription=TideMark scheduled resolver (%s)\nAfter=network-online.target\n\n"+
			"[Service]\nType=oneshot\nWorkingDirectory=%s\nExecStart=%s\nStandardOutput=journal\nStandardError=journal\n\n",
		unitName, systemdQuote(repoRoot), execStart,
	)
}

func renderTimerUnit(unitName string, intervalMinutes uint32) string {
	return fmt.Sprintf(
		"[Unit]\nDescription=TideMark schedule (%s)\n\n[Timer]\nOnBootSec=2min\nOnUnitActiveSec=%dmin\n"+
			"AccuracySec=1s\nPersistent=true\nUnit=%s.service\n\n[Install]\nWantedBy=timers.target\n",
		unitName, intervalMinutes, unitName,
	)
}

// defaultUnitName derives a stable unit name from repoRoot: a sanitized
// basename plus a short content hash, so two repos sharing a basename never
// collide.
func defaultUnitName(repoRoot string) string {
	base := sanitizeUnitName(filepath.Base(repoRoot))
	if base == "" {
		base = "repo"
	}
	sum := sha256.Sum256([]byte(repoRoot))
	short := hex.EncodeToString(sum[:])[:12]
	return fmt.Sprintf("tidemark-%s-%s", base, short)
}

func sanitizeUnitName(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func systemdQuote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

func userSystemdDir() (string, error) {
	home, ok := os.LookupEnv("HOME")
	if !ok || home == "" {
		return "", tmerrors.New(tmerrors.KindRepositoryAccess, "HOME is not set; cannot locate systemd user unit directory")
	}
	return filepath.Join(home, ".config", "systemd", "user"), nil
}

func ensureLinux(feature string) error {
	if runtime.GOOS == "linux" {
		return nil
	}
	return tmerrors.New(tmerrors.KindRepositoryAccess, "%s requires Linux (systemd --user), running on %s", feature, runtime.GOOS)
}

func runSystemctlChecked(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "systemctl %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return nil
}

func runSystemctlBestEffort(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	lower := strings.ToLower(string(out))
	if strings.Contains(lower, "not loaded") || strings.Contains(lower, "not found") {
		return nil
	}
	return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "systemctl %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
}
