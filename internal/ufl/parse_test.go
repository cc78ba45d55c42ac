package ufl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c := NewConstant(2, "c")
	scope := map[string]Expr{"c": c}

	tests := []struct {
		src  string
		want float64
	}{
		{"c^2 + 3*c - 1", 9},
		{"-c^2", -4},
		{"2^-1", 0.5},
		{"c/4", 0.5},
		{"(c+1)*(c-1)", 3},
		{"sqrt(c*8)", 4},
		{"log(exp(c))", 2},
		{"1e-1*10", 1},
		{"2.5E+1", 25},
		{"pi", math.Pi},
		{"sin(pi/2)*c", 2},
		{"tanh(0)", 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src, scope)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, e.Eval(&Point{}), 1e-12)
		})
	}
}

func TestParse_ScopeShadowsPi(t *testing.T) {
	e, err := Parse("pi", map[string]Expr{"pi": Lit(3)})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, e.Eval(&Point{}), 0)
}

func TestParse_Errors(t *testing.T) {
	scope := map[string]Expr{"c": NewConstant(2, "c")}
	for _, src := range []string{"", "c +", "foo", "bar(c)", "(c", "c)", "2 3", "sin(c", "*c"} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src, scope)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParse_CoefficientsKeepIdentity(t *testing.T) {
	m := UnitInterval(2)
	u := NewField(m.DG0(), "u")
	e, err := Parse("u*x", map[string]Expr{"u": u, "x": X(m)})
	require.NoError(t, err)
	assert.True(t, Contains(e, u.Key()))
	assert.Equal(t, u.Key(), Diff(e, X(m), Lit(1)).Key())
}
