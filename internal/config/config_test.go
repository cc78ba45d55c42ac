package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const problem = `
mesh:
  cells: 8
  right: 2
fields:
  u: {expr: "1 + x^2"}
  p: {space: P1}
constants:
  c: 2.5
expressions:
  g: "sin(pi*x)"
operators:
  - {name: n, expr: "u^2 + c", operands: [u, c]}
functional: "n*u*c + g*u"
seeds:
  u: [1]
  mesh: [0, 1]
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(problem))
	require.NoError(t, err)

	want := &Config{
		Mesh: MeshConfig{Cells: 8, Left: 0, Right: 2},
		Fields: map[string]FieldConfig{
			"u": {Space: SpaceDG0, Expr: "1 + x^2"},
			"p": {Space: SpaceP1, Expr: "0"},
		},
		Constants:   map[string]float64{"c": 2.5},
		Expressions: map[string]string{"g": "sin(pi*x)"},
		Operators:   []OperatorConfig{{Name: "n", Expr: "u^2 + c", Operands: []string{"u", "c"}}},
		Functional:  "n*u*c + g*u",
		Seeds:       map[string][]float64{"u": {1}, "mesh": {0, 1}},
		Taylor: TaylorConfig{
			Control:   "p",
			Direction: []float64{1},
			Epsilon:   1e-2,
			Steps:     4,
		},
		Optimize: OptimizeConfig{
			Method:   MethodAdam,
			Controls: []string{"p", "u", "c"},
			LR:       1e-2,
			MaxIter:  100,
			GTol:     1e-8,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"p", "u", "c", "g"}, cfg.ControlNames())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(problem), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Mesh.Cells)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("mesh: [1, 2"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no cells", func(c *Config) { c.Mesh.Cells = 0 }, "mesh cells must be positive"},
		{"empty interval", func(c *Config) { c.Mesh.Right = c.Mesh.Left }, "is empty"},
		{"short coordinates", func(c *Config) { c.Mesh.Coordinates = []float64{0} }, "at least 2 coordinates"},
		{"unsorted coordinates", func(c *Config) { c.Mesh.Coordinates = []float64{0, 1, 0.5} }, "strictly increasing"},
		{"reserved name", func(c *Config) { c.Constants = map[string]float64{"pi": 3} }, `"pi" is reserved`},
		{"duplicate name", func(c *Config) { c.Expressions = map[string]string{"u": "x"} }, "declared as field and expression"},
		{"unknown space", func(c *Config) { c.Fields["u"] = FieldConfig{Space: "P2", Expr: "0"} }, `unknown space "P2"`},
		{"late operand", func(c *Config) {
			c.Operators = []OperatorConfig{{Name: "n", Expr: "m", Operands: []string{"m"}}}
		}, `operand "m" is not declared`},
		{"p1 operand", func(c *Config) {
			c.Fields["p"] = FieldConfig{Space: SpaceP1, Expr: "0"}
			c.Operators = []OperatorConfig{{Name: "n", Expr: "p", Operands: []string{"p"}}}
		}, "is a P1 field"},
		{"empty functional", func(c *Config) { c.Functional = "" }, "functional is empty"},
		{"unknown seed", func(c *Config) { c.Seeds = map[string][]float64{"w": {1}} }, `unknown control "w"`},
		{"empty seed", func(c *Config) { c.Seeds = map[string][]float64{"u": {}} }, "is empty"},
		{"taylor control", func(c *Config) { c.Taylor.Control = "mesh" }, "not a field or constant"},
		{"taylor steps", func(c *Config) { c.Taylor.Steps = 1 }, "at least 2"},
		{"optimizer", func(c *Config) { c.Optimize.Method = "lbfgs" }, `unknown optimizer "lbfgs"`},
		{"optimize control", func(c *Config) { c.Optimize.Controls = []string{"g"} }, `optimize control "g"`},
		{"optimize lr", func(c *Config) { c.Optimize.LR = 0 }, "lr must be positive"},
		{"momentum", func(c *Config) { c.Optimize.Momentum = 1 }, "momentum must be in [0, 1)"},
		{"max iter", func(c *Config) { c.Optimize.MaxIter = 0 }, "max_iter must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Fields = map[string]FieldConfig{"u": {Space: SpaceDG0, Expr: "x"}}
			cfg.Functional = "u"
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Mesh.Cells = -1
	cfg.Taylor.Epsilon = 0

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "mesh cells")
	assert.Contains(t, err.Error(), "functional is empty")
	assert.Contains(t, err.Error(), "taylor epsilon")
}
