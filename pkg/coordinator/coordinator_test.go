package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/armctl/pkg/gateway"
	"github.com/itohio/armctl/pkg/joint"
	"github.com/itohio/armctl/pkg/kinematics"
)

func jointConfig(name string, idx int, min, max float64) joint.Config {
	return joint.Config{
		Name:               name,
		DeviceIndex:        idx,
		StepsPerRev:        3600,
		MaxSpeedDegPerS:    120,
		MaxAccelDegPerS2:   240,
		HomingSpeedDegPerS: 10,
		HomingDirection:    joint.Negative,
		MinDeg:             min,
		MaxDeg:             max,
		ReadyPositionDeg:   0,
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, [6]*joint.Controller, *gateway.FakeGateway) {
	t.Helper()
	gw := gateway.NewFakeGateway()

	ranges := [6][2]float64{{-170, 170}, {-90, 90}, {-90, 130}, {-180, 180}, {-120, 120}, {-360, 360}}
	var joints [6]*joint.Controller
	for i := 0; i < 6; i++ {
		cfg := jointConfig(string(rune('1'+i)), i, ranges[i][0], ranges[i][1])
		jc, err := joint.NewController(cfg, gw, nil)
		require.NoError(t, err)
		joints[i] = jc
	}

	chain, geo := kinematics.DefaultSixDOFChain()
	var limits kinematics.Limits
	for i, r := range ranges {
		limits[i] = r
	}
	return New(joints, chain, geo, limits), joints, gw
}

func markAllHomed(joints [6]*joint.Controller) {
	for _, jc := range joints {
		jc.RestoreCalibration(0)
	}
}

func TestMoveJConcurrentResolution(t *testing.T) {
	c, joints, _ := newTestCoordinator(t)
	markAllHomed(joints)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	target := [6]float64{10, -20, 30, 5, 15, -5}
	require.NoError(t, c.MoveJ(ctx, target))

	for i, jc := range joints {
		assert.InDelta(t, target[i], jc.LastKnownAngle(), 0.2)
	}
}

func TestHaltStopsAllJoints(t *testing.T) {
	c, joints, gw := newTestCoordinator(t)
	markAllHomed(joints)

	ctx := context.Background()
	require.NoError(t, c.Halt(ctx))
	for i := 0; i < 6; i++ {
		assert.True(t, gw.Stopped(i))
	}
}

func TestMoveLReachesTarget(t *testing.T) {
	c, joints, _ := newTestCoordinator(t)
	markAllHomed(joints)

	start := c.Pose()
	target := start
	target.X += 20

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.MoveL(ctx, target))

	got := c.Pose()
	assert.InDelta(t, target.X, got.X, 2.0)
	assert.InDelta(t, target.Y, got.Y, 2.0)
	assert.InDelta(t, target.Z, got.Z, 2.0)
}
