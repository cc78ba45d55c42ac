package tape

import (
	"github.com/google/uuid"

	"github.com/born-ml/formgrad/internal/fem"
)

// Number is an assembled value tracked by the tape, the output of a block.
type Number struct {
	key   string
	value fem.Value
}

// NewNumber wraps v with a fresh identity.
func NewNumber(v fem.Value) *Number {
	return &Number{key: "n" + uuid.NewString(), value: v}
}

// Recomputed returns a number with the same identity holding v.
func (n *Number) Recomputed(v fem.Value) *Number {
	return &Number{key: n.key, value: v}
}

// Key returns the tape identity.
func (n *Number) Key() string { return n.key }

// Value returns the assembled value.
func (n *Number) Value() fem.Value { return n.value }

func (n *Number) String() string { return n.value.String() }
