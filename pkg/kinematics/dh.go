package kinematics

import "math"

// DHLink is one link's classic Denavit-Hartenberg parameters. ThetaOffset,
// Alpha are radians; D, A are millimeters. The joint variable itself (q) is
// supplied at Transform time.
type DHLink struct {
	ThetaOffset float64
	Alpha       float64
	D           float64
	A           float64
}

// Transform returns this link's transform for joint angle q (radians),
// using the same RotZ(theta)*TransZ(d)*TransX(a)*RotX(alpha) layout the
// teacher's pkg/robot/kinematics/dh package builds its link matrices with.
func (l DHLink) Transform(q float64) Mat4 {
	theta := q + l.ThetaOffset
	ct, st := math.Cos(theta), math.Sin(theta)
	ca, sa := math.Cos(l.Alpha), math.Sin(l.Alpha)

	return Mat4{
		ct, -st * ca, st * sa, l.A * ct,
		st, ct * ca, -ct * sa, l.A * st,
		0, sa, ca, l.D,
		0, 0, 0, 1,
	}
}

// Chain is a 6-link DH chain with an optional fixed tool transform appended
// after link 6 (spec.md §4.3).
type Chain struct {
	Links [6]DHLink
	Tool  Mat4
}

// Forward computes the base-to-tool transform for joint angles qDeg
// (degrees). The result is normalized per spec.md §4.3's fixture rule.
func (c Chain) Forward(qDeg [6]float64) Mat4 {
	t := Identity()
	for i, link := range c.Links {
		t = t.Mul(link.Transform(qDeg[i] * math.Pi / 180.0))
	}
	t = t.Mul(c.Tool)
	return t.Normalize()
}

// ForwardTo computes the base-to-link-n transform (1-indexed, n in 1..6),
// without the tool transform. Used by IK to decouple the wrist.
func (c Chain) ForwardTo(qDeg [6]float64, n int) Mat4 {
	t := Identity()
	for i := 0; i < n; i++ {
		t = t.Mul(c.Links[i].Transform(qDeg[i] * math.Pi / 180.0))
	}
	return t
}
