package main_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the apitree binary into t.TempDir().
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "apitree"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "apitree")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot walks up from this file to the directory holding go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

// createPyFixture writes a small package into a temporary repo.
func createPyFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	files := map[string]string{
		"shop/__init__.py": `"""Shop."""
from shop.models import Order
from shop import models
VERSION = "1.0"
`,
		"shop/models.py": `import os

class Order:
    pass

class Item:
    pass

def _private():
    pass
`,
	}
	for rel, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

type envelope struct {
	Command    string          `json:"command"`
	Results    json.RawMessage `json:"results"`
	TotalCount int             `json:"total_count"`
	Error      string          `json:"error"`
}

func run(t *testing.T, bin, dir string, args ...string) envelope {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err, "apitree %v: %s", args, string(out))
	var env envelope
	require.NoError(t, json.Unmarshal(out, &env), string(out))
	return env
}

func TestBuild_TreeAndLookup(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPyFixture(t)

	env := run(t, bin, fixture, "build", "--module", "shop", fixture)
	assert.Equal(t, "build", env.Command)
	assert.Equal(t, 1, env.TotalCount)
	_, err := os.Stat(filepath.Join(fixture, ".apitree", "index.db"))
	require.NoError(t, err, ".apitree/index.db should exist")

	env = run(t, bin, fixture, "tree")
	var trees []struct {
		Module    string `json:"module"`
		NodeCount int    `json:"node_count"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &trees))
	require.Len(t, trees, 1)
	assert.Equal(t, "shop", trees[0].Module)
	assert.Positive(t, trees[0].NodeCount)

	env = run(t, bin, fixture, "tree", "shop")
	var nodes []struct {
		QualName string `json:"qualname"`
		Rule     string `json:"rule"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &nodes))
	var names []string
	for _, n := range nodes {
		names = append(names, n.QualName)
	}
	assert.Contains(t, names, "shop")
	assert.Contains(t, names, "shop.models")
	assert.Contains(t, names, "shop.models.Item")
	assert.NotContains(t, names, "shop.models._private")

	env = run(t, bin, fixture, "lookup", "shop.Order", "@shop.models.Item", "nope")
	var refs []struct {
		Name     string `json:"name"`
		Filename string `json:"filename"`
		Resolved bool   `json:"resolved"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &refs))
	require.Len(t, refs, 3)
	assert.True(t, refs[0].Resolved)
	assert.True(t, refs[1].Resolved)
	assert.Equal(t, "shop/models/Item", refs[1].Filename)
	assert.False(t, refs[2].Resolved)
	assert.Equal(t, 2, env.TotalCount)
}

func TestBuild_ExcludeFlag(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPyFixture(t)

	run(t, bin, fixture, "build", "--module", "shop", "--exclude", `name == "Item"`, fixture)
	env := run(t, bin, fixture, "lookup", "shop.models.Item")
	assert.Equal(t, 1, env.TotalCount, "excluded nodes are still registered for references")

	env = run(t, bin, fixture, "tree", "shop")
	assert.NotContains(t, string(env.Results), `"shop.models.Item"`)
}

func TestBuild_FromConfig(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPyFixture(t)
	cfg := `db: out/api.db
modules:
  - name: shop
    path: .
    alias: s
exclude:
  - |
    import naming
    name == "Item" && !naming.is_dunder(name)
`
	require.NoError(t, os.WriteFile(filepath.Join(fixture, "apitree.yaml"), []byte(cfg), 0o644))

	run(t, bin, fixture, "build")
	_, err := os.Stat(filepath.Join(fixture, "out", "api.db"))
	require.NoError(t, err)

	env := run(t, bin, fixture, "lookup", "s.Order")
	assert.Equal(t, 1, env.TotalCount)

	env = run(t, bin, fixture, "tree", "s")
	assert.Contains(t, string(env.Results), `"s.models.Order"`)
	assert.NotContains(t, string(env.Results), `"s.models.Item"`)
}

func TestBuild_UnknownModule(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPyFixture(t)

	cmd := exec.Command(bin, "build", "--module", "missing", fixture)
	cmd.Dir = fixture
	out, err := cmd.Output()
	require.Error(t, err)
	assert.Contains(t, string(out), `"error"`)
}
