package kinematics

import "math"

// Pose is a Cartesian tool pose: translation in millimeters, rotation as
// ZYX-extrinsic Euler angles in degrees (spec.md §4.3).
type Pose struct {
	X, Y, Z    float64
	Rx, Ry, Rz float64
}

// Extract decomposes a base-to-tool transform into a Pose, using the
// standard ZYX-extrinsic Euler extraction (spec.md §4.3 step 4). At the
// ry=±90° gimbal lock only one of rx/rz is determined; there rz is set to 0
// and rx carries the whole rotation, so Transform reproduces t.
func Extract(t Mat4) Pose {
	x, y, z := t.Translation()

	r31 := t.at(2, 0)
	r32 := t.at(2, 1)
	r33 := t.at(2, 2)
	r21 := t.at(1, 0)
	r11 := t.at(0, 0)

	cy := math.Sqrt(r32*r32 + r33*r33)
	ry := math.Atan2(-r31, cy)
	var rx, rz float64
	if cy < 1e-9 {
		rx = math.Atan2(-r31*t.at(0, 1), t.at(1, 1))
	} else {
		rx = math.Atan2(r32, r33)
		rz = math.Atan2(r21, r11)
	}

	const deg = 180.0 / math.Pi
	return Pose{
		X: x, Y: y, Z: z,
		Rx: rx * deg, Ry: ry * deg, Rz: rz * deg,
	}
}

// RotationMatrix rebuilds the 3x3 (embedded in a 4x4) rotation for a pose's
// ZYX-extrinsic Euler angles: R = Rz(rz) * Ry(ry) * Rx(rx).
func (p Pose) RotationMatrix() Mat4 {
	const rad = math.Pi / 180.0
	rz, ry, rx := p.Rz*rad, p.Ry*rad, p.Rx*rad

	czz, szz := math.Cos(rz), math.Sin(rz)
	cyy, syy := math.Cos(ry), math.Sin(ry)
	cxx, sxx := math.Cos(rx), math.Sin(rx)

	rZ := Mat4{czz, -szz, 0, 0, szz, czz, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	rY := Mat4{cyy, 0, syy, 0, 0, 1, 0, 0, -syy, 0, cyy, 0, 0, 0, 0, 1}
	rX := Mat4{1, 0, 0, 0, 0, cxx, -sxx, 0, 0, sxx, cxx, 0, 0, 0, 0, 1}

	return rZ.Mul(rY).Mul(rX)
}

// Transform rebuilds the full base-to-tool transform for this pose.
func (p Pose) Transform() Mat4 {
	t := p.RotationMatrix()
	t.set(0, 3, p.X)
	t.set(1, 3, p.Y)
	t.set(2, 3, p.Z)
	return t
}
