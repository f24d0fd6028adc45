package kinematics

import (
	"math"

	"github.com/pkg/errors"

	"github.com/itohio/armctl/pkg/armerr"
)

// Geometry holds the named link lengths the closed-form solver needs beyond
// what the generic DH chain exposes (spec.md §4.3's analytical IK). A1 is
// the shoulder's radial offset from the J1 axis, A2 the upper-arm length, A3
// the forearm's own offset along its link, D1 the base height along the J1
// axis, D4 the forearm length along the J4 axis, at right angles to A3 in
// the arm's plane of motion (so the true elbow-to-wrist length is
// √(A3²+D4²), not A3 alone), and D6 the wrist's tool-flange offset.
type Geometry struct {
	A1, A2, A3 float64
	D1, D4, D6 float64
}

// Limits is the per-joint [min,max] range in degrees, indexed 0..5,
// supplied by the caller (the coordinator sources these from joint
// configuration) so the solver can apply spec.md §4.3's range-validated
// retry without owning joint configuration itself.
type Limits [6][2]float64

func inLimit(l Limits, i int, deg float64) bool {
	return deg >= l[i][0] && deg <= l[i][1]
}

// J1Angle is the quadrant-complete base-joint angle for a wrist center at
// (x,y), matching spec.md §4.3's piecewise arctangent (not a bare atan2):
// x=0 always yields -90°, regardless of the sign of y, and the x<0
// quadrants add or subtract 180 degrees from the reference angle rather
// than wrapping through atan2's own branch cut.
func J1Angle(x, y float64) float64 {
	const deg = 180.0 / math.Pi
	switch {
	case x == 0:
		return -90
	case x > 0:
		return math.Atan(y/x) * deg
	case y <= 0:
		return -180 + math.Atan(y/x)*deg
	default:
		return 180 + math.Atan(y/x)*deg
	}
}

// IK solves for the 6 joint angles (degrees) that place the tool at target,
// following spec.md §4.3's 11-step closed-form algorithm: wrist-center
// decoupling, a law-of-cosines shoulder/elbow solution that accounts for the
// forearm's d4 offset, then spherical-wrist Euler extraction. On an
// out-of-range wrist solution it retries exactly once with the flipped (F/NF)
// alternative before returning ErrIKFailed.
func (c Chain) IK(target Pose, geo Geometry, limits Limits) (q [6]float64, err error) {
	const deg = 180.0 / math.Pi
	const rad = math.Pi / 180.0

	// Step 1-2: T_0_6 = T_goal * T_tool^-1, then the wrist center is T_0_6
	// translated by -d6 along its own Z axis.
	t06 := target.Transform().Mul(rigidInverse(c.Tool))
	wm := t06.Mul(Translate(0, 0, -geo.D6))
	wx, wy, wz := wm.Translation()

	// Step 3.
	q1 := J1Angle(wx, wy)

	// Step 4: rotate W by -q1 about Z into the J1-zero frame. Only W'.x is
	// needed (W'.z is unchanged by a rotation about Z).
	q1r := q1 * rad
	wxp := wx*math.Cos(-q1r) - wy*math.Sin(-q1r)

	l1 := wxp - geo.A1
	l4 := wz - geo.D1
	l2 := math.Hypot(l1, l4)
	l3 := math.Hypot(geo.A3, geo.D4)

	// Step 5.
	thetaB := math.Atan2(l1, l4) * deg
	cosC := (geo.A2*geo.A2 + l2*l2 - l3*l3) / (2 * geo.A2 * l2)
	cosD := (l3*l3 + geo.A2*geo.A2 - l2*l2) / (2 * l3 * geo.A2)
	if cosC < -1 || cosC > 1 || cosD < -1 || cosD > 1 {
		return q, errors.Wrap(armerr.ErrIKFailed, "target unreachable: wrist center outside arm's radial envelope")
	}
	thetaC := math.Acos(cosC) * deg
	thetaD := math.Acos(cosD) * deg
	thetaE := math.Atan2(geo.A3, geo.D4) * deg

	// Step 6.
	var q2 float64
	switch {
	case wxp > geo.A1 && l4 > 0:
		q2 = thetaB - thetaC
	case wxp > geo.A1 && l4 <= 0:
		q2 = thetaB - thetaC + 180
	default:
		q2 = -(thetaB + thetaC)
	}

	// Step 7: thetaE corrects for the kink the forearm's own a3 offset puts
	// into the elbow-to-wrist segment relative to the d4 axis; this chain's
	// winding (see DefaultSixDOFChain) subtracts it rather than adding it.
	q3 := -(thetaD - thetaE) + 90

	// Step 8.
	arm := [6]float64{q1, q2, q3, 0, 0, 0}
	r03 := c.ForwardTo(arm, 3)
	r36 := r03.Transpose3x3().Mul(t06)

	// Step 9-10.
	q4, q5, q6 := wristAngles(r36, false)
	sol := [6]float64{q1, q2, q3, q4, q5, q6}
	if allInLimit(sol, limits) {
		return sol, nil
	}

	q4f, q5f, q6f := wristAngles(r36, true)
	solFlip := [6]float64{q1, q2, q3, q4f, q5f, q6f}
	if allInLimit(solFlip, limits) {
		return solFlip, nil
	}

	// Step 11.
	return q, errors.Wrap(armerr.ErrIKFailed, "no wrist solution (F or NF) within joint limits")
}

func allInLimit(q [6]float64, limits Limits) bool {
	for i := 0; i < 6; i++ {
		if !inLimit(limits, i, q[i]) {
			return false
		}
	}
	return true
}

// wristAngles extracts the spherical wrist's three joint angles from R_3_6
// (spec.md §4.3 step 9's F/NF formulas, signed to match this chain's joint-4
// rotation axis convention: alpha4=+90 rather than the textbook -90, which
// puts the wrist-decoupled rotation a half-turn from the naive atan2(r23,r13)
// form). flip selects the NF branch, the alternate wrist configuration
// reaching the same tool orientation.
func wristAngles(r36 Mat4, flip bool) (q4, q5, q6 float64) {
	const deg = 180.0 / math.Pi
	r13, r23, r33 := r36.at(0, 2), r36.at(1, 2), r36.at(2, 2)
	r31, r32 := r36.at(2, 0), r36.at(2, 1)

	sq := math.Sqrt(math.Max(0, 1-r33*r33))

	var q4r, q5r, q6r float64
	if !flip {
		q4r = math.Atan2(-r23, -r13)
		q5r = math.Atan2(sq, r33)
		q6r = math.Atan2(-r32, r31)
	} else {
		q4r = math.Atan2(r23, r13)
		q5r = math.Atan2(-sq, r33)
		q6r = math.Atan2(r32, -r31)
	}

	return q4r * deg, q5r * deg, q6r * deg
}

// rigidInverse returns the inverse of a rigid (orthonormal rotation +
// translation) transform: R^T, -R^T*t.
func rigidInverse(m Mat4) Mat4 {
	out := m.Transpose3x3()
	x, y, z := m.Translation()
	ox := -(out.at(0, 0)*x + out.at(0, 1)*y + out.at(0, 2)*z)
	oy := -(out.at(1, 0)*x + out.at(1, 1)*y + out.at(1, 2)*z)
	oz := -(out.at(2, 0)*x + out.at(2, 1)*y + out.at(2, 2)*z)
	out.set(0, 3, ox)
	out.set(1, 3, oy)
	out.set(2, 3, oz)
	return out
}
