// Package gitdiff lists and diffs changed files of a repository by running
// the git binary.
package gitdiff

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Staged selects the index instead of a revision.
const Staged = "staged"

// Git is the version control collaborator used by change analysis.
type Git interface {
	// ChangedFiles lists paths, relative to dir, that differ from base. Files
	// outside dir are not reported.
	ChangedFiles(ctx context.Context, dir, base string) ([]string, error)
	// Diff returns the unified diff of one dir-relative path against base.
	Diff(ctx context.Context, dir, base, path string) (string, error)
}

// CLI implements Git with the git executable.
type CLI struct {
	// Binary defaults to "git".
	Binary  string
	Timeout time.Duration
}

// NewCLI returns a CLI using git from PATH.
func NewCLI() *CLI {
	return &CLI{Binary: "git", Timeout: time.Minute}
}

func (g *CLI) ChangedFiles(ctx context.Context, dir, base string) ([]string, error) {
	args := append([]string{"diff", "--name-only", "--relative"}, revArgs(base)...)
	out, err := g.run(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	return parseNames(out), nil
}

func (g *CLI) Diff(ctx context.Context, dir, base, path string) (string, error) {
	args := append([]string{"diff", "--relative"}, revArgs(base)...)
	args = append(args, "--", path)
	out, err := g.run(ctx, dir, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// revArgs maps a base to git diff arguments. An empty base compares the
// working tree with the index.
func revArgs(base string) []string {
	switch base {
	case "":
		return nil
	case Staged:
		return []string{"--cached"}
	default:
		return []string{base}
	}
}

func parseNames(out []byte) []string {
	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names
}

func (g *CLI) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

var _ Git = (*CLI)(nil)
