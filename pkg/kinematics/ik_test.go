package kinematics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// J1Angle's quadrant formula is independent of arm geometry, so these two
// seed cases can be checked against literal expected degrees directly.
func TestJ1AngleQuadrants(t *testing.T) {
	assert.InDelta(t, 120.0, J1Angle(-113.262, 196.176), 1e-2)
	assert.InDelta(t, -100.0, J1Angle(-39.335, -223.083), 1e-2)
	assert.InDelta(t, 0.0, J1Angle(100, 0), 1e-9)
	// x=0 always yields -90 regardless of y's sign (spec.md §4.3 step 3).
	assert.InDelta(t, -90.0, J1Angle(0, 50), 1e-9)
	assert.InDelta(t, -90.0, J1Angle(0, -50), 1e-9)
}

func fullRangeLimits() Limits {
	var l Limits
	for i := range l {
		l[i] = [2]float64{-360, 360}
	}
	return l
}

func TestForwardIsValidTransform(t *testing.T) {
	chain, _ := DefaultSixDOFChain()
	cases := [][6]float64{
		{0, 0, 0, 0, 0, 0},
		{10, -20, 30, 15, -45, 60},
		{-90, 45, -30, 0, 90, -15},
	}
	for _, q := range cases {
		T := chain.Forward(q)
		assert.True(t, T.IsValidTransform(1e-6), "q=%v produced a non-rigid transform", q)
	}
}

func TestIKRoundTrip(t *testing.T) {
	chain, geo := DefaultSixDOFChain()
	limits := fullRangeLimits()

	cases := [][6]float64{
		{0, -30, 20, 0, 45, 0},
		{20, -10, 40, 10, 60, -20},
		{-35, 15, -25, -15, 30, 45},
	}

	for _, q := range cases {
		T := chain.Forward(q)
		pose := Extract(T)

		got, err := chain.IK(pose, geo, limits)
		require.NoError(t, err)

		// Re-run FK on the solution and compare resulting pose, not raw
		// joint angles, since F/NF wrist solutions can differ in q4/q6 by
		// 180 degrees while producing the same tool orientation.
		T2 := chain.Forward(got)
		pose2 := Extract(T2)

		assert.InDelta(t, pose.X, pose2.X, 1e-3)
		assert.InDelta(t, pose.Y, pose2.Y, 1e-3)
		assert.InDelta(t, pose.Z, pose2.Z, 1e-3)
		assert.InDelta(t, pose.Rx, pose2.Rx, 1e-2)
		assert.InDelta(t, pose.Ry, pose2.Ry, 1e-2)
		assert.InDelta(t, pose.Rz, pose2.Rz, 1e-2)
	}
}

func TestIKUnreachableTarget(t *testing.T) {
	chain, geo := DefaultSixDOFChain()
	limits := fullRangeLimits()

	farPose := Pose{X: 10000, Y: 0, Z: 0, Rx: 0, Ry: 0, Rz: 0}
	_, err := chain.IK(farPose, geo, limits)
	require.Error(t, err)
}

func TestIKOutOfJointLimits(t *testing.T) {
	chain, geo := DefaultSixDOFChain()
	// Degenerate limits: every joint pinned to [0,0] except the reachable
	// home pose itself won't satisfy this, so any nonzero solution fails.
	var tight Limits
	for i := range tight {
		tight[i] = [2]float64{0, 0}
	}

	pose := Extract(chain.Forward([6]float64{10, -30, 20, 10, 45, 0}))
	_, err := chain.IK(pose, geo, tight)
	require.Error(t, err)
}
