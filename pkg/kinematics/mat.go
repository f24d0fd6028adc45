// Package kinematics implements the DH-chain forward kinematics and
// closed-form analytical inverse kinematics for a 6-DOF arm with a
// spherical wrist (spec.md §4.3). DH link parameters and the transform
// math use radians; joint angles, Pose orientations, joint limits and the
// IK solver's intermediate angles are in degrees.
package kinematics

import "math"

// Mat4 is a row-major 4x4 homogeneous transform. A hand-rolled fixed-size
// matrix type mirrors the teacher repo's own pkg/robot/kinematics/dh,
// which builds its DH chain on a small mat.Matrix4x4 rather than a general
// linear-algebra library — the right call here too, since a 4x4 chain
// product has no need for gonum's machinery. See DESIGN.md.
type Mat4 [16]float64

// Identity returns the 4x4 identity transform.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// at returns element (row, col), 0-indexed.
func (m Mat4) at(row, col int) float64 { return m[row*4+col] }

func (m *Mat4) set(row, col int, v float64) { m[row*4+col] = v }

// Mul returns m*n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m.at(r, k) * n.at(k, c)
			}
			out.set(r, c, sum)
		}
	}
	return out
}

// Translation returns the transform's (x,y,z) translation column.
func (m Mat4) Translation() (x, y, z float64) {
	return m.at(0, 3), m.at(1, 3), m.at(2, 3)
}

// Transpose3x3 returns the transpose of m's rotational 3x3 submatrix,
// embedded back into a 4x4 with a zeroed translation column — sufficient
// for the R_0_3^T * T_0_6 product in the wrist-decoupling step (spec.md
// §4.3 step 8), whose translation columns are explicitly discarded there.
func (m Mat4) Transpose3x3() Mat4 {
	out := Identity()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out.set(r, c, m.at(c, r))
		}
	}
	return out
}

// Translate returns a pure translation transform.
func Translate(x, y, z float64) Mat4 {
	m := Identity()
	m.set(0, 3, x)
	m.set(1, 3, y)
	m.set(2, 3, z)
	return m
}

// Normalize zeroes elements whose magnitude is below 1e-10, per spec.md
// §4.3's fixture-cleanliness rule.
func (m Mat4) Normalize() Mat4 {
	out := m
	for i := range out {
		if math.Abs(out[i]) < 1e-10 {
			out[i] = 0
		}
	}
	return out
}

// IsValidTransform checks spec.md §8 invariant 1: last row [0,0,0,1] and
// an orthonormal rotational 3x3 (to tol).
func (m Mat4) IsValidTransform(tol float64) bool {
	if math.Abs(m.at(3, 0)) > tol || math.Abs(m.at(3, 1)) > tol ||
		math.Abs(m.at(3, 2)) > tol || math.Abs(m.at(3, 3)-1) > tol {
		return false
	}
	// R^T * R should be the identity.
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m.at(i, j)
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += r[k][i] * r[k][j]
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(dot-want) > tol {
				return false
			}
		}
	}
	return true
}
