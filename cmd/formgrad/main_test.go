package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const problemYAML = `
mesh:
  cells: 4
fields:
  u: {expr: "x"}
constants:
  c: 2
operators:
  - {name: n, expr: "u^2", operands: [u]}
functional: "n*c"
seeds:
  u: [1]
taylor:
  control: u
  epsilon: 0.1
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWith(t, problemYAML, args...)
}

func runWith(t *testing.T, problem string, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "problem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(problem), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", path}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "formgrad "+version+"\n", out)
}

func TestEval(t *testing.T) {
	out, err := run(t, "eval")
	require.NoError(t, err)
	assert.Equal(t, "J = 0.65625\n", out)
}

func TestGradient(t *testing.T) {
	out, err := run(t, "gradient", "u", "c")
	require.NoError(t, err)
	assert.Contains(t, out, "dJ/du = [0.125 0.375 0.625 0.875]")
	assert.Regexp(t, `dJ/dc = \[?0\.328125\]?\n`, out)

	out, err = run(t, "gradient")
	require.NoError(t, err)
	assert.Contains(t, out, "dJ/dmesh = ")
	assert.Contains(t, out, "dJ/du = ")

	_, err = run(t, "gradient", "w")
	assert.Error(t, err)
}

func TestTLMAndHessian(t *testing.T) {
	out, err := run(t, "tlm")
	require.NoError(t, err)
	assert.Regexp(t, `^dJ = \[?2\]?\n$`, out)

	out, err = run(t, "hessian", "u")
	require.NoError(t, err)
	assert.Equal(t, "H·dm/du = [1 1 1 1]\n", out)
}

func TestTaylor(t *testing.T) {
	out, err := run(t, "taylor")
	require.NoError(t, err)
	assert.Contains(t, out, "control u, central difference dJ = 2\n")
	assert.Contains(t, out, "rates with gradient:")
}

func TestMinimize(t *testing.T) {
	const misfit = `
mesh:
  cells: 4
fields:
  u: {expr: "0"}
functional: "(u - x)^2"
optimize:
  method: sgd
  lr: 1
  max_iter: 200
  gtol: 1e-10
`
	out, err := runWith(t, misfit, "minimize")
	require.NoError(t, err)
	assert.Contains(t, out, "sgd: ")
	assert.Contains(t, out, "converged true")
	assert.Contains(t, out, "u = [0.125 0.375 0.625 0.875]")
}

func TestMinimize_SaveAndReload(t *testing.T) {
	const misfit = `
mesh:
  cells: 4
fields:
  u: {expr: "0"}
functional: "(u - x)^2"
optimize:
  method: sgd
  lr: 1
  max_iter: 200
  gtol: 1e-10
`
	dir := t.TempDir()
	path := filepath.Join(dir, "problem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(misfit), 0o600))
	snap := filepath.Join(dir, "u.fgrd")

	exec := func(args ...string) string {
		var out bytes.Buffer
		root := newRootCmd()
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(append([]string{"--config", path}, args...))
		require.NoError(t, root.Execute())
		return out.String()
	}

	out := exec("minimize", "--save", snap)
	assert.Contains(t, out, "saved "+snap)

	before := exec("eval")
	assert.Equal(t, "J = 0.328125\n", before)
	after := exec("--controls", snap, "eval")
	assert.Regexp(t, `^J = \S+e-\d+\n$`, after)
}

func TestMissingConfig(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "eval"})
	assert.Error(t, root.Execute())
}
