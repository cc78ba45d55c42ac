package fem

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Value is an assembled quantity: a scalar (rank 0 form) or a vector of
// degrees of freedom (rank 1 form).
//
// The zero Value is the scalar 0 and acts as the additive identity for vectors
// too, so accumulators can start from Value{}.
type Value struct {
	scalar float64
	vec    *mat.VecDense
}

// Scalar returns a scalar value.
func Scalar(v float64) Value { return Value{scalar: v} }

// Vector returns a vector value holding a copy of data.
func Vector(data []float64) Value {
	d := make([]float64, len(data))
	copy(d, data)
	return Value{vec: mat.NewVecDense(len(d), d)}
}

// IsScalar reports whether v is a scalar.
func (v Value) IsScalar() bool { return v.vec == nil }

// IsZero reports whether v is the scalar 0.
func (v Value) IsZero() bool { return v.vec == nil && v.scalar == 0 }

// Float returns the scalar. Vectors of length 1 are accepted.
func (v Value) Float() float64 {
	if v.vec == nil {
		return v.scalar
	}
	if v.vec.Len() == 1 {
		return v.vec.AtVec(0)
	}
	panic(fmt.Sprintf("fem: Float of vector of length %d", v.vec.Len()))
}

// Vec returns the underlying vector, nil for scalars.
func (v Value) Vec() *mat.VecDense { return v.vec }

// Len returns 1 for scalars and the vector length otherwise.
func (v Value) Len() int {
	if v.vec == nil {
		return 1
	}
	return v.vec.Len()
}

// Data returns a copy of the entries. Scalars yield one entry.
func (v Value) Data() []float64 {
	if v.vec == nil {
		return []float64{v.scalar}
	}
	out := make([]float64, v.vec.Len())
	copy(out, v.vec.RawVector().Data)
	return out
}

// Add returns v + o. Panics when adding a vector to a non-zero scalar or vectors
// of different lengths.
func (v Value) Add(o Value) Value {
	switch {
	case v.vec == nil && o.vec == nil:
		return Scalar(v.scalar + o.scalar)
	case v.IsZero():
		return o.clone()
	case o.IsZero():
		return v.clone()
	case v.vec != nil && o.vec != nil:
		if v.vec.Len() != o.vec.Len() {
			panic(fmt.Sprintf("fem: adding vectors of length %d and %d", v.vec.Len(), o.vec.Len()))
		}
		out := mat.NewVecDense(v.vec.Len(), nil)
		out.AddVec(v.vec, o.vec)
		return Value{vec: out}
	}
	panic("fem: adding scalar and vector")
}

// Scale returns a*v.
func (v Value) Scale(a float64) Value {
	if v.vec == nil {
		return Scalar(a * v.scalar)
	}
	out := mat.NewVecDense(v.vec.Len(), nil)
	out.ScaleVec(a, v.vec)
	return Value{vec: out}
}

// Mul multiplies by a seed: scalar*scalar, or a scalar scaling a vector.
// Panics for two vectors.
func (v Value) Mul(o Value) Value {
	switch {
	case v.vec == nil:
		return o.Scale(v.scalar)
	case o.vec == nil:
		return v.Scale(o.scalar)
	}
	panic("fem: multiplying two vectors")
}

// Dot returns the pairing of v and o. A scalar pairs with a scalar or with a
// vector of length 1.
func (v Value) Dot(o Value) float64 {
	if v.vec != nil && o.vec != nil {
		if v.vec.Len() != o.vec.Len() {
			panic(fmt.Sprintf("fem: dot of vectors of length %d and %d", v.vec.Len(), o.vec.Len()))
		}
		return floats.Dot(v.vec.RawVector().Data, o.vec.RawVector().Data)
	}
	return v.Float() * o.Float()
}

// Norm returns the Euclidean norm.
func (v Value) Norm() float64 {
	if v.vec == nil {
		if v.scalar < 0 {
			return -v.scalar
		}
		return v.scalar
	}
	return floats.Norm(v.vec.RawVector().Data, 2)
}

func (v Value) clone() Value {
	if v.vec == nil {
		return v
	}
	return Vector(v.vec.RawVector().Data)
}

func (v Value) String() string {
	if v.vec == nil {
		return fmt.Sprintf("%g", v.scalar)
	}
	return fmt.Sprintf("%v", v.vec.RawVector().Data)
}
