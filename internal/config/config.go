// Package config loads problem files: a mesh, the coefficients living on it and
// the functional to differentiate.
//
// Example:
//
//	mesh:
//	  cells: 16
//	fields:
//	  u: {space: DG0, expr: "1 + x^2"}
//	constants:
//	  c: 2.5
//	expressions:
//	  g: "sin(pi*x)"
//	operators:
//	  - {name: n, expr: "u^2 + c", operands: [u, c]}
//	functional: "n*u*c + g*u"
//	seeds:
//	  u: [1]
//	taylor:
//	  control: u
//	optimize:
//	  method: adam
//	  controls: [u, c]
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid problem")

// Space names accepted for fields.
const (
	SpaceDG0  = "DG0"
	SpaceP1   = "P1"
	SpaceReal = "R"
)

// MeshName is the control name of the domain.
const MeshName = "mesh"

// Config is a problem description.
type Config struct {
	Mesh        MeshConfig             `yaml:"mesh"`
	Fields      map[string]FieldConfig `yaml:"fields"`
	Constants   map[string]float64     `yaml:"constants"`
	Expressions map[string]string      `yaml:"expressions"` // functions of x
	Operators   []OperatorConfig       `yaml:"operators"`   // in dependency order
	Functional  string                 `yaml:"functional"`  // integrand over the mesh
	Seeds       map[string][]float64   `yaml:"seeds"`       // forward directions
	Taylor      TaylorConfig           `yaml:"taylor"`
	Optimize    OptimizeConfig         `yaml:"optimize"`
}

// MeshConfig describes an interval mesh: either explicit vertex coordinates or
// a uniform subdivision of [Left, Right].
type MeshConfig struct {
	Cells       int       `yaml:"cells"`
	Left        float64   `yaml:"left"`
	Right       float64   `yaml:"right"`
	Coordinates []float64 `yaml:"coordinates"`
}

// FieldConfig describes a discrete field and its initial value.
type FieldConfig struct {
	Space string `yaml:"space"` // DG0, P1, R
	Expr  string `yaml:"expr"`  // function of x
}

// OperatorConfig describes a nested operator. Expr is written in terms of the
// operand names.
type OperatorConfig struct {
	Name     string   `yaml:"name"`
	Expr     string   `yaml:"expr"`
	Operands []string `yaml:"operands"`
}

// TaylorConfig configures the Taylor test.
type TaylorConfig struct {
	Control   string    `yaml:"control"`
	Direction []float64 `yaml:"direction"` // one entry is broadcast
	Epsilon   float64   `yaml:"epsilon"`
	Steps     int       `yaml:"steps"`
}

// Optimizer names accepted by OptimizeConfig.
const (
	MethodSGD  = "sgd"
	MethodAdam = "adam"
)

// OptimizeConfig configures the minimize command.
type OptimizeConfig struct {
	Method   string   `yaml:"method"`   // sgd, adam
	Controls []string `yaml:"controls"` // fields and constants; all of them by default
	LR       float64  `yaml:"lr"`
	Momentum float64  `yaml:"momentum"` // sgd only
	MaxIter  int      `yaml:"max_iter"`
	GTol     float64  `yaml:"gtol"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			Cells: 10,
			Left:  0,
			Right: 1,
		},
		Taylor: TaylorConfig{
			Direction: []float64{1},
			Epsilon:   1e-2,
			Steps:     4,
		},
		Optimize: OptimizeConfig{
			Method:  MethodAdam,
			LR:      1e-2,
			MaxIter: 100,
			GTol:    1e-8,
		},
	}
}

// Load reads and validates a problem file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a problem.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse problem: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for name, f := range c.Fields {
		if f.Space == "" {
			f.Space = SpaceDG0
		}
		if f.Expr == "" {
			f.Expr = "0"
		}
		c.Fields[name] = f
	}
	names := append(sortedKeys(c.Fields), sortedKeys(c.Constants)...)
	if c.Taylor.Control == "" && len(names) > 0 {
		c.Taylor.Control = names[0]
	}
	if len(c.Optimize.Controls) == 0 {
		c.Optimize.Controls = names
	}
}

var reserved = []string{"x", "pi", "sin", "cos", "exp", "ln", "log", "sqrt", "tanh", MeshName}

// Validate checks the problem for structural errors.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if len(c.Mesh.Coordinates) > 0 {
		if len(c.Mesh.Coordinates) < 2 {
			fail("mesh needs at least 2 coordinates")
		}
		for i := 1; i < len(c.Mesh.Coordinates); i++ {
			if c.Mesh.Coordinates[i] <= c.Mesh.Coordinates[i-1] {
				fail("mesh coordinates must be strictly increasing")
				break
			}
		}
	} else {
		if c.Mesh.Cells <= 0 {
			fail("mesh cells must be positive, got %d", c.Mesh.Cells)
		}
		if c.Mesh.Right <= c.Mesh.Left {
			fail("mesh interval [%g, %g] is empty", c.Mesh.Left, c.Mesh.Right)
		}
	}

	seen := make(map[string]string)
	declare := func(name, kind string) {
		switch {
		case name == "":
			fail("%s with empty name", kind)
		case slices.Contains(reserved, name):
			fail("%s name %q is reserved", kind, name)
		case seen[name] != "":
			fail("%q declared as %s and %s", name, seen[name], kind)
		default:
			seen[name] = kind
		}
	}
	for _, name := range sortedKeys(c.Fields) {
		declare(name, "field")
		switch c.Fields[name].Space {
		case SpaceDG0, SpaceP1, SpaceReal:
		default:
			fail("field %q: unknown space %q", name, c.Fields[name].Space)
		}
	}
	for _, name := range sortedKeys(c.Constants) {
		declare(name, "constant")
	}
	for _, name := range sortedKeys(c.Expressions) {
		declare(name, "expression")
	}
	for _, op := range c.Operators {
		if op.Expr == "" {
			fail("operator %q has no expression", op.Name)
		}
		if len(op.Operands) == 0 {
			fail("operator %q has no operands", op.Name)
		}
		for _, o := range op.Operands {
			if seen[o] == "" {
				fail("operator %q: operand %q is not declared before it", op.Name, o)
			}
			if f, ok := c.Fields[o]; ok && f.Space == SpaceP1 {
				fail("operator %q: operand %q is a P1 field", op.Name, o)
			}
		}
		declare(op.Name, "operator")
	}

	if c.Functional == "" {
		fail("functional is empty")
	}
	for _, name := range sortedKeys(c.Seeds) {
		if name != MeshName && !c.isControl(name) {
			fail("seed for unknown control %q", name)
		}
		if len(c.Seeds[name]) == 0 {
			fail("seed for %q is empty", name)
		}
	}
	if c.Taylor.Control != "" && !c.isPerturbable(c.Taylor.Control) {
		fail("taylor control %q is not a field or constant", c.Taylor.Control)
	}
	if c.Taylor.Epsilon <= 0 {
		fail("taylor epsilon must be positive")
	}
	if c.Taylor.Steps < 2 {
		fail("taylor steps must be at least 2")
	}

	switch c.Optimize.Method {
	case MethodSGD, MethodAdam:
	default:
		fail("unknown optimizer %q", c.Optimize.Method)
	}
	for _, name := range c.Optimize.Controls {
		if !c.isPerturbable(name) {
			fail("optimize control %q is not a field or constant", name)
		}
	}
	if c.Optimize.LR <= 0 {
		fail("optimize lr must be positive")
	}
	if c.Optimize.Momentum < 0 || c.Optimize.Momentum >= 1 {
		fail("optimize momentum must be in [0, 1), got %g", c.Optimize.Momentum)
	}
	if c.Optimize.MaxIter <= 0 {
		fail("optimize max_iter must be positive")
	}
	if c.Optimize.GTol < 0 {
		fail("optimize gtol must not be negative")
	}
	return errors.Join(errs...)
}

func (c *Config) isPerturbable(name string) bool {
	if _, ok := c.Fields[name]; ok {
		return true
	}
	_, ok := c.Constants[name]
	return ok
}

func (c *Config) isControl(name string) bool {
	if _, ok := c.Fields[name]; ok {
		return true
	}
	if _, ok := c.Constants[name]; ok {
		return true
	}
	_, ok := c.Expressions[name]
	return ok
}

// ControlNames returns the names of fields, constants and expressions,
// sorted, in that order.
func (c *Config) ControlNames() []string {
	var out []string
	out = append(out, sortedKeys(c.Fields)...)
	out = append(out, sortedKeys(c.Constants)...)
	out = append(out, sortedKeys(c.Expressions)...)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
