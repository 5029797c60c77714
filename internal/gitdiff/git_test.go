package gitdiff

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevArgs(t *testing.T) {
	assert.Nil(t, revArgs(""))
	assert.Equal(t, []string{"--cached"}, revArgs(Staged))
	assert.Equal(t, []string{"main...HEAD"}, revArgs("main...HEAD"))
}

func TestParseNames(t *testing.T) {
	got := parseNames([]byte("a.go\n\n  src/b.go \n"))
	assert.Equal(t, []string{"a.go", "src/b.go"}, got)
	assert.Empty(t, parseNames(nil))
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "dev@example.com"},
		{"config", "user.name", "dev"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	return dir
}

func gitDo(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestCLI_StagedAndRevision(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	gitDo(t, dir, "add", "main.go")
	gitDo(t, dir, "commit", "-q", "-m", "init")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.go"), []byte("package main\n"), 0o644))
	gitDo(t, dir, "add", "util.go")

	g := NewCLI()
	ctx := context.Background()

	staged, err := g.ChangedFiles(ctx, dir, Staged)
	require.NoError(t, err)
	assert.Equal(t, []string{"util.go"}, staged)

	vsHead, err := g.ChangedFiles(ctx, dir, "HEAD")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "util.go"}, vsHead)

	diff, err := g.Diff(ctx, dir, "HEAD", "main.go")
	require.NoError(t, err)
	assert.Contains(t, diff, "+func main() {}")
}

func TestCLI_BadRevision(t *testing.T) {
	dir := initRepo(t)
	_, err := NewCLI().ChangedFiles(context.Background(), dir, "no-such-branch")
	assert.Error(t, err)
}

func TestCLI_FolderBelowRepoRoot(t *testing.T) {
	repo := initRepo(t)
	app := filepath.Join(repo, "app")
	require.NoError(t, os.MkdirAll(app, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("readme\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(app, "main.go"), []byte("package main\n"), 0o644))
	gitDo(t, repo, "add", ".")
	gitDo(t, repo, "commit", "-q", "-m", "init")

	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("changed\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(app, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(app, "util.go"), []byte("package main\n"), 0o644))
	gitDo(t, repo, "add", "app/util.go", "README.md")

	g := NewCLI()
	ctx := context.Background()

	staged, err := g.ChangedFiles(ctx, app, Staged)
	require.NoError(t, err)
	assert.Equal(t, []string{"util.go"}, staged)

	vsHead, err := g.ChangedFiles(ctx, app, "HEAD")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "util.go"}, vsHead)

	diff, err := g.Diff(ctx, app, "HEAD", "main.go")
	require.NoError(t, err)
	assert.Contains(t, diff, "+func main() {}")

	diff, err = g.Diff(ctx, app, Staged, "util.go")
	require.NoError(t, err)
	assert.Contains(t, diff, "+package main")
}
