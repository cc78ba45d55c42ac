package ufl

import (
	"fmt"
	"strconv"
)

// Mesh is an interval mesh: a strictly increasing sequence of vertex coordinates.
// Cell c spans [x_c, x_{c+1}].
//
// A Mesh is also the domain dependency of an integral: differentiating with respect
// to it means differentiating with respect to its SpatialCoordinate.
type Mesh struct {
	id     int64
	coords []float64

	// Spaces are created lazily and cached so that pointer equality holds.
	dg0    *Space
	real   *Space
	coordV *Space
}

// IntervalMesh creates a mesh from vertex coordinates.
// Coordinates must be strictly increasing and describe at least one cell.
func IntervalMesh(coords []float64) (*Mesh, error) {
	if len(coords) < 2 {
		return nil, fmt.Errorf("interval mesh needs at least 2 vertices, got %d", len(coords))
	}
	for i := 1; i < len(coords); i++ {
		if coords[i] <= coords[i-1] {
			return nil, fmt.Errorf("interval mesh vertices must increase: x[%d]=%g <= x[%d]=%g",
				i, coords[i], i-1, coords[i-1])
		}
	}
	c := make([]float64, len(coords))
	copy(c, coords)
	return &Mesh{id: nextID(), coords: c}, nil
}

// UnitInterval creates a uniform mesh of [0, 1] with n cells.
func UnitInterval(n int) *Mesh {
	return Interval(n, 0, 1)
}

// Interval creates a uniform mesh of [a, b] with n cells.
// Panics if n < 1 or b <= a.
func Interval(n int, a, b float64) *Mesh {
	if n < 1 || b <= a {
		panic(fmt.Sprintf("ufl: invalid interval mesh n=%d [%g, %g]", n, a, b))
	}
	coords := make([]float64, n+1)
	h := (b - a) / float64(n)
	for i := range coords {
		coords[i] = a + float64(i)*h
	}
	coords[n] = b
	return &Mesh{id: nextID(), coords: coords}
}

// Key returns the mesh identity.
func (m *Mesh) Key() string { return "mesh" + strconv.FormatInt(m.id, 10) }

func (m *Mesh) String() string {
	return fmt.Sprintf("IntervalMesh(%d cells, [%g, %g])", m.NumCells(), m.coords[0], m.coords[len(m.coords)-1])
}

// NumCells returns the number of cells.
func (m *Mesh) NumCells() int { return len(m.coords) - 1 }

// NumVertices returns the number of vertices.
func (m *Mesh) NumVertices() int { return len(m.coords) }

// Vertex returns the coordinate of vertex i.
func (m *Mesh) Vertex(i int) float64 { return m.coords[i] }

// Coordinates returns a copy of the vertex coordinates.
func (m *Mesh) Coordinates() []float64 {
	c := make([]float64, len(m.coords))
	copy(c, m.coords)
	return c
}

// CellSize returns the length of cell c.
func (m *Mesh) CellSize(c int) float64 { return m.coords[c+1] - m.coords[c] }

// Midpoint returns the midpoint of cell c, the quadrature point of the mesh.
func (m *Mesh) Midpoint(c int) float64 { return 0.5 * (m.coords[c] + m.coords[c+1]) }

// DG0 returns the space of cellwise constants on m.
func (m *Mesh) DG0() *Space {
	if m.dg0 == nil {
		m.dg0 = &Space{family: DG0, mesh: m}
	}
	return m.dg0
}

// Real returns the one-dimensional space of global constants on m.
func (m *Mesh) Real() *Space {
	if m.real == nil {
		m.real = &Space{family: Real, mesh: m}
	}
	return m.real
}

// CoordinateSpace returns the vertex-based piecewise linear space holding the
// mesh coordinates and their perturbations.
func (m *Mesh) CoordinateSpace() *Space {
	if m.coordV == nil {
		m.coordV = &Space{family: P1, mesh: m}
	}
	return m.coordV
}

// InducedSpace returns the coordinate space: shape derivatives live there.
func (m *Mesh) InducedSpace(*Mesh) *Space { return m.CoordinateSpace() }

// IsShape reports true: the mesh is the geometric dependency.
func (m *Mesh) IsShape() bool { return true }

// Paired reports false.
func (m *Mesh) Paired() bool { return false }
