package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// RotationMatrix is a 3x3 matrix in row major order.
// m[3*r + c] is the element in the r'th row and c'th column.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates the rotation matrix from a slice of nine row-major values.
func NewRotationMatrix(m []float64) (RotationMatrix, error) {
	if len(m) != 9 {
		return RotationMatrix{}, errors.New("input slice for rotation matrix must have 9 values")
	}
	var rm RotationMatrix
	copy(rm.mat[:], m)
	return rm, nil
}

// IdentityRotationMatrix returns the rotation matrix that does not rotate.
func IdentityRotationMatrix() RotationMatrix {
	return RotationMatrix{mat: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// At returns the float corresponding to the element at the specified location.
func (rm RotationMatrix) At(row, col int) float64 {
	return rm.mat[row*3+col]
}

// Row returns the a 3 element vector corresponding to the specified row.
func (rm RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[row*3], Y: rm.mat[row*3+1], Z: rm.mat[row*3+2]}
}

// Col returns the a 3 element vector corresponding to the specified col.
func (rm RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[col+3], Z: rm.mat[col+6]}
}

// Entries returns the nine elements in row-major order, r1 through r9.
func (rm RotationMatrix) Entries() [9]float64 {
	return rm.mat
}

// Mul returns R·v.
func (rm RotationMatrix) Mul(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.Row(0).Dot(v),
		Y: rm.Row(1).Dot(v),
		Z: rm.Row(2).Dot(v),
	}
}

// TransposeMul returns Rᵀ·v, the inverse rotation of v.
func (rm RotationMatrix) TransposeMul(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.Col(0).Dot(v),
		Y: rm.Col(1).Dot(v),
		Z: rm.Col(2).Dot(v),
	}
}

// IsOrthonormal reports whether RᵀR is the identity and det(R) is +1 within tol.
func (rm RotationMatrix) IsOrthonormal(tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := 0.
			if i == j {
				expected = 1
			}
			if math.Abs(rm.Col(i).Dot(rm.Col(j))-expected) > tol {
				return false
			}
		}
	}
	det := rm.Col(0).Cross(rm.Col(1)).Dot(rm.Col(2))
	return math.Abs(det-1) <= tol
}

// RotationMatrixAlmostEqual checks that every element of two rotation matrices agree within tol.
func RotationMatrixAlmostEqual(a, b RotationMatrix, tol float64) bool {
	for i := range a.mat {
		if math.Abs(a.mat[i]-b.mat[i]) > tol {
			return false
		}
	}
	return true
}
