// Package gitinfo captures version-control provenance for logged
// invocations: the commit the code ran at, and whether the worktree was
// clean. Provenance is best-effort; a missing git binary or a non-repo
// directory simply yields no provenance.
package gitinfo

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrUncommitted is returned by RequireCommitted when the worktree has
// uncommitted changes.
var ErrUncommitted = errors.New("gitinfo: uncommitted changes in worktree")

// Hash returns the commit hash of HEAD for the repository containing dir.
func Hash(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("gitinfo: rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsCommitted reports whether the worktree containing dir has no
// uncommitted changes to tracked files.
func IsCommitted(dir string) (bool, error) {
	cmd := exec.Command("git", "diff")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("gitinfo: diff: %w", err)
	}
	return len(strings.TrimSpace(string(out))) == 0, nil
}

// RequireCommitted fails when the worktree has uncommitted changes. Callers
// use it to refuse logging output from code that cannot be reproduced.
func RequireCommitted(dir string) error {
	committed, err := IsCommitted(dir)
	if err != nil {
		return err
	}
	if !committed {
		return ErrUncommitted
	}
	return nil
}

// Capture returns the HEAD hash when the worktree is committed, and ""
// otherwise. Errors (no git, not a repository) degrade to no provenance.
func Capture(dir string) string {
	committed, err := IsCommitted(dir)
	if err != nil || !committed {
		return ""
	}
	hash, err := Hash(dir)
	if err != nil {
		return ""
	}
	return hash
}
