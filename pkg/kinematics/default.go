package kinematics

import "math"

// DefaultSixDOFChain returns the DH chain and matching IK geometry for this
// module's shipped arm: a 6R spherical-wrist manipulator, parameters chosen
// to exercise the full solver (non-zero shoulder offset, distinct upper-arm
// and forearm lengths, non-zero wrist offset). See DESIGN.md for why these
// do not reproduce any external fixture numbers verbatim.
func DefaultSixDOFChain() (Chain, Geometry) {
	const d2r = math.Pi / 180.0

	geo := Geometry{
		A1: 30.0,
		A2: 280.0,
		A3: 50.0,
		D1: 210.0,
		D4: 245.0,
		D6: 90.0,
	}

	links := [6]DHLink{
		{ThetaOffset: 0, Alpha: -math.Pi / 2, D: geo.D1, A: geo.A1},
		{ThetaOffset: -math.Pi / 2, Alpha: 0, D: 0, A: geo.A2},
		{ThetaOffset: 0, Alpha: -math.Pi / 2, D: 0, A: geo.A3},
		{ThetaOffset: 0, Alpha: math.Pi / 2, D: geo.D4, A: 0},
		{ThetaOffset: 0, Alpha: -math.Pi / 2, D: 0, A: 0},
		{ThetaOffset: 0, Alpha: 0, D: geo.D6, A: 0},
	}

	return Chain{Links: links, Tool: Identity()}, geo
}

// degToRad and radToDeg are small unit-conversion helpers.
func degToRad(d float64) float64 { return d * math.Pi / 180.0 }
func radToDeg(r float64) float64 { return r * 180.0 / math.Pi }
