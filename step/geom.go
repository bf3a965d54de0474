package step

import (
	"math"
)

// Point is a position on the grid in fractional (row, col) coordinates.
// Centroids land between cells, so both components are real-valued.
type Point struct {
	Row float64
	Col float64
}

// NewPoint builds a point from row and column coordinates.
func NewPoint(row, col float64) Point {
	return Point{
		Row: row,
		Col: col,
	}
}

// Vector is a displacement between two grid positions.
type Vector struct {
	DRow float64
	DCol float64
}

// Sub returns the displacement from p2 to p1.
func (p1 Point) Sub(p2 Point) Vector {
	return Vector{
		DRow: p1.Row - p2.Row,
		DCol: p1.Col - p2.Col,
	}
}

// Magnitude returns the Euclidean length of the displacement in cells.
func (v Vector) Magnitude() float64 {
	return math.Sqrt(v.DRow*v.DRow + v.DCol*v.DCol)
}

// angleBetween returns the angle between two displacements in radians, in
// [0, pi]. The second return is false when either displacement has zero
// magnitude, which leaves the angle undefined.
func angleBetween(v1, v2 Vector) (float64, bool) {
	m1 := v1.Magnitude()
	m2 := v2.Magnitude()
	if m1 == 0 || m2 == 0 {
		return 0, false
	}
	cos := (v1.DRow*v2.DRow + v1.DCol*v2.DCol) / (m1 * m2)
	// Clamp against accumulated floating point error before Acos.
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos), true
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.Row-p2.Row, 2) + math.Pow(p1.Col-p2.Col, 2))
}
