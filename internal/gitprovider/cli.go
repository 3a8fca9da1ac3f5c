package gitprovider

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	tmerrors "tidemark/internal/errors"
	"tidemark/internal/model"
)

// CLI implements Provider by shelling out to the `git` binary. It never
// passes user input to a shell; every invocation is exec.CommandContext
// with an explicit argument list.
type CLI struct {
	repoRoot string
}

// Discover runs `git rev-parse --show-toplevel` from startDir and returns a
// CLI rooted at the discovered repository, or KindRepositoryAccess if
// startDir is not inside a Git repository or git is unavailable.
func Discover(ctx context.Context, startDir string) (*CLI, error) {
	out, err := runGitAt(ctx, startDir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err,
			"not a git repository (or git unavailable): %s", startDir)
	}
	return &CLI{repoRoot: strings.TrimSpace(out)}, nil
}

func (c *CLI) RepoRoot() string { return c.repoRoot }

func (c *CLI) GitDir(ctx context.Context) (string, error) {
	out, err := c.runChecked(ctx, "rev-parse", "--git-dir")
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(out) {
		return out, nil
	}
	return filepath.Join(c.repoRoot, out), nil
}

func (c *CLI) HeadCommit(ctx context.Context) (model.CommitInfo, error) {
	return c.ResolveCommit(ctx, "HEAD")
}

func (c *CLI) ResolveCommit(ctx context.Context, rev string) (model.CommitInfo, error) {
	out, err := c.runChecked(ctx, "show", "-s", "--format=%H%x09%ct", rev)
	if err != nil {
		return model.CommitInfo{}, tmerrors.Wrap(tmerrors.KindUnknownRevision, err,
			"unknown revision %q", rev)
	}
	return parseCommitLine(out)
}

func (c *CLI) CommitExists(ctx context.Context, rev string) (bool, error) {
	cmd := c.command(ctx, "cat-file", "-e", rev+"^{commit}")
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 128 {
			return false, nil
		}
		// Any other failure (e.g. git not found) is a real access problem,
		// not a "commit absent" probe result.
		return false, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "cat-file -e failed")
	}
	return true, nil
}

func (c *CLI) ListLocalTags(ctx context.Context, prefix string) ([]model.TagRef, error) {
	out, err := c.runChecked(ctx, "for-each-ref",
		"--format=%(refname:short)%09%(objecttype)%09%(*objectname)%09%(objectname)",
		"refs/tags")
	if err != nil {
		return nil, err
	}
	return parseTagLines(out, prefix, model.SourceLocal, func(name string) string { return name })
}

func (c *CLI) ListRemoteTags(ctx context.Context, remote, prefix string) ([]model.TagRef, error) {
	scratchNamespace := "refs/tidemark-scratch/remote-tags"
	refspec := fmt.Sprintf("+refs/tags/%s*:%s/%s*", prefix, scratchNamespace, prefix)
	if _, err := c.runChecked(ctx, "fetch", "--quiet", "--prune", "--no-tags", remote, refspec); err != nil {
		return nil, tmerrors.Wrap(tmerrors.KindRemoteUnavailable, err,
			"ls-remote refresh failed for remote %q", remote)
	}

	out, err := c.runChecked(ctx, "for-each-ref",
		"--format=%(refname)%09%(objecttype)%09%(*objectname)%09%(objectname)",
		scratchNamespace)
	if err != nil {
		return nil, tmerrors.Wrap(tmerrors.KindRemoteUnavailable, err,
			"failed to read refreshed remote tags")
	}

	stripPrefix := scratchNamespace + "/"
	return parseTagLines(out, prefix, model.SourceRemote, func(refName string) string {
		return strings.TrimPrefix(refName, stripPrefix)
	})
}

func (c *CLI) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	cmd := c.command(ctx, "merge-base", "--is-ancestor", ancestor, descendant)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "merge-base --is-ancestor failed")
}

func (c *CLI) CommitDistance(ctx context.Context, ancestor, descendant string) (uint32, error) {
	out, err := c.runChecked(ctx, "rev-list", "--count", ancestor+".."+descendant)
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseUint(out, 10, 32)
	if perr != nil {
		return 0, tmerrors.Wrap(tmerrors.KindInternalInvariant, perr,
			"unexpected rev-list --count output %q", out)
	}
	return uint32(n), nil
}

func (c *CLI) AncestryPathCommits(ctx context.Context, ancestor, descendant string) ([]model.CommitInfo, error) {
	if ancestor == descendant {
		return nil, nil
	}
	out, err := c.runChecked(ctx, "log", "--ancestry-path", "--reverse",
		"--format=%H%x09%ct", ancestor+".."+descendant)
	if err != nil {
		return nil, err
	}
	var commits []model.CommitInfo
	for _, line := range nonEmptyLines(out) {
		commit, perr := parseCommitLine(line)
		if perr != nil {
			return nil, perr
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

func (c *CLI) LastModifyingCommit(ctx context.Context, path string, followRenames bool) (model.CommitInfo, error) {
	relPath := path
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(c.repoRoot, path); err == nil {
			relPath = rel
		}
	}

	args := []string{"log", "-n", "1", "--format=%H%x09%ct"}
	if followRenames {
		args = append(args, "--follow")
	}
	args = append(args, "--", relPath)

	out, err := c.runChecked(ctx, args...)
	if err != nil {
		return model.CommitInfo{}, err
	}
	if strings.TrimSpace(out) == "" {
		return model.CommitInfo{}, tmerrors.New(tmerrors.KindUnknownRevision,
			"path %q has no tracked git history", relPath)
	}
	return parseCommitLine(out)
}

func (c *CLI) CurrentBranch(ctx context.Context) (string, bool, error) {
	cmd := c.command(ctx, "symbolic-ref", "--quiet", "--short", "HEAD")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	if err == nil {
		return strings.TrimSpace(stdout.String()), true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return "", false, nil // detached HEAD
	}
	return "", false, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "symbolic-ref failed")
}

// --- helpers ---

func (c *CLI) command(ctx context.Context, args ...string) *exec.Cmd {
	full := append([]string{"-C", c.repoRoot}, args...)
	return exec.CommandContext(ctx, "git", full...)
}

func (c *CLI) runChecked(ctx context.Context, args ...string) (string, error) {
	return runGitAt(ctx, c.repoRoot, args...)
}

func runGitAt(ctx context.Context, dir string, args ...string) (string, error) {
	full := append([]string{"-C", dir}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", tmerrors.Wrap(tmerrors.KindRepositoryAccess, err,
			"git %s failed: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func parseCommitLine(line string) (model.CommitInfo, error) {
	parts := strings.SplitN(strings.TrimSpace(line), "\t", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return model.CommitInfo{}, tmerrors.New(tmerrors.KindInternalInvariant,
			"unexpected commit line format: %q", line)
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return model.CommitInfo{}, tmerrors.Wrap(tmerrors.KindInternalInvariant, err,
			"invalid commit timestamp %q", parts[1])
	}
	return model.CommitInfo{ID: parts[0], Timestamp: ts}, nil
}

func parseTagLines(out, prefix string, source model.TagSource, nameOf func(string) string) ([]model.TagRef, error) {
	var tags []model.TagRef
	for _, line := range nonEmptyLines(out) {
		fields := strings.SplitN(line, "\t", 4)
		if len(fields) != 4 {
			continue
		}
		name := nameOf(fields[0])
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		objectType, peeled, object := fields[1], fields[2], fields[3]
		var commitID string
		var isAnnotated bool
		switch objectType {
		case "tag":
			commitID, isAnnotated = peeled, true
		case "commit":
			commitID, isAnnotated = object, false
		default:
			continue
		}
		if commitID == "" {
			continue
		}

		tags = append(tags, model.TagRef{
			Name:        name,
			CommitID:    commitID,
			IsAnnotated: isAnnotated,
			Source:      source,
		})
	}
	return tags, nil
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
