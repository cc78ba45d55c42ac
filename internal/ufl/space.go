package ufl

import "fmt"

// Family identifies the finite element family of a Space.
type Family int

// Supported families.
const (
	// DG0 is one constant value per cell.
	DG0 Family = iota
	// Real is a single global value.
	Real
	// P1 is continuous piecewise linear, one value per vertex.
	P1
)

func (f Family) String() string {
	switch f {
	case DG0:
		return "DG0"
	case Real:
		return "R"
	case P1:
		return "P1"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Space is a discrete function space on an interval mesh.
//
// Basis functions are evaluated at cell midpoints, the only quadrature point used
// by the assembler:
//   - DG0: phi_i = 1 on cell i, 0 elsewhere.
//   - Real: phi_0 = 1 everywhere.
//   - P1: hat function of vertex i; 1/2 at the midpoints of its two cells,
//     slope -1/h on the cell to its right and +1/h on the cell to its left.
type Space struct {
	family Family
	mesh   *Mesh
}

// Family returns the element family.
func (s *Space) Family() Family { return s.family }

// Mesh returns the mesh the space is defined on.
func (s *Space) Mesh() *Mesh { return s.mesh }

// Dim returns the number of degrees of freedom.
func (s *Space) Dim() int {
	switch s.family {
	case DG0:
		return s.mesh.NumCells()
	case Real:
		return 1
	default:
		return s.mesh.NumVertices()
	}
}

// Key returns a structural identity for the space.
func (s *Space) Key() string { return s.family.String() + "@" + s.mesh.Key() }

func (s *Space) String() string { return fmt.Sprintf("FunctionSpace(%s, %s)", s.mesh, s.family) }

// Support returns the cells on which basis function i is non-zero.
func (s *Space) Support(i int) []int {
	switch s.family {
	case DG0:
		return []int{i}
	case Real:
		cells := make([]int, s.mesh.NumCells())
		for c := range cells {
			cells[c] = c
		}
		return cells
	default:
		cells := make([]int, 0, 2)
		if i > 0 {
			cells = append(cells, i-1)
		}
		if i < s.mesh.NumCells() {
			cells = append(cells, i)
		}
		return cells
	}
}

// Basis returns the value and slope of basis function i at the midpoint of cell c.
func (s *Space) Basis(i, c int) (value, slope float64) {
	switch s.family {
	case DG0:
		if i == c {
			return 1, 0
		}
		return 0, 0
	case Real:
		return 1, 0
	default:
		h := s.mesh.CellSize(c)
		switch i {
		case c:
			return 0.5, -1 / h
		case c + 1:
			return 0.5, 1 / h
		}
		return 0, 0
	}
}

// Eval returns the value and slope at the midpoint of cell c of the function with
// the given degrees of freedom.
func (s *Space) Eval(dofs []float64, c int) (value, slope float64) {
	switch s.family {
	case DG0:
		return dofs[c], 0
	case Real:
		return dofs[0], 0
	default:
		return 0.5 * (dofs[c] + dofs[c+1]), (dofs[c+1] - dofs[c]) / s.mesh.CellSize(c)
	}
}
