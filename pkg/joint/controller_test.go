package joint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/armctl/pkg/armerr"
	"github.com/itohio/armctl/pkg/gateway"
)

func testConfig() Config {
	return Config{
		Name:               "j1",
		DeviceIndex:        0,
		StepsPerRev:        3600,
		MaxSpeedDegPerS:    60,
		MaxAccelDegPerS2:   120,
		HomingSpeedDegPerS: 10,
		HomingDirection:    Negative,
		MinDeg:             -90,
		MaxDeg:             90,
		ReadyPositionDeg:   0,
	}
}

func newTestController(t *testing.T) (*Controller, *gateway.FakeGateway) {
	t.Helper()
	gw := gateway.NewFakeGateway()
	jc, err := NewController(testConfig(), gw, nil)
	require.NoError(t, err)
	jc.sleep = func(time.Duration) {}
	return jc, gw
}

func markHomed(jc *Controller) {
	jc.mu.Lock()
	jc.state.Homed = true
	jc.mu.Unlock()
}

func TestRotateByZeroIsPureFence(t *testing.T) {
	jc, gw := newTestController(t)
	markHomed(jc)

	ctx := context.Background()
	_, err := jc.RotateTo(ctx, 30)
	require.NoError(t, err)
	before := jc.LastKnownAngle()

	gw.Complete(0, gw.Position(0)) // no-op completion, just exercising the path
	ok, err := jc.RotateBy(ctx, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, before, jc.LastKnownAngle(), "zero-delta rotate_by must not change last_known_angle_deg")
}

func TestRotateRequiresHoming(t *testing.T) {
	jc, _ := newTestController(t)
	_, err := jc.RotateTo(context.Background(), 10)
	require.ErrorIs(t, err, armerr.ErrNotHomed)
}

func TestRotateOutOfRange(t *testing.T) {
	jc, _ := newTestController(t)
	markHomed(jc)
	_, err := jc.RotateTo(context.Background(), 200)
	require.ErrorIs(t, err, armerr.ErrOutOfRange)
}

func TestStopRestoresAcceleration(t *testing.T) {
	jc, gw := newTestController(t)
	markHomed(jc)
	ctx := context.Background()

	require.NoError(t, jc.SetAcceleration(ctx, 75))
	require.NoError(t, jc.Stop(ctx))

	assert.Equal(t, 75.0, jc.Snapshot().CurrentAccelDegPerS2)
	assert.InDelta(t, 75*jc.cfg.StepsPerDegree(), gw.Accel(0), 1e-9)
}

func TestStopDuringInFlightMotionDoesNotDeadlock(t *testing.T) {
	gw := gateway.NewFakeGateway()
	gw.AutoComplete = false

	jc, err := NewController(testConfig(), gw, nil)
	require.NoError(t, err)
	jc.sleep = func(time.Duration) {}
	markHomed(jc)

	ctx := context.Background()
	require.NoError(t, jc.SetAcceleration(ctx, 75))
	moveDone := make(chan error, 1)
	go func() {
		// rawRotateBy mirrors seekLimit's direct gateway use: it does not
		// take motionGate, so a concurrent Stop (which does) can actually
		// interrupt it, matching the real limit-switch-interrupt path.
		_, err := jc.rawRotateBy(ctx, 30)
		moveDone <- err
	}()

	// Wait for the motion to be dispatched and registered as in flight
	// before stopping it, mirroring a limit-switch interrupt mid-seek.
	require.Eventually(t, func() bool {
		jc.mu.Lock()
		defer jc.mu.Unlock()
		return jc.inFlightDone != nil
	}, time.Second, time.Millisecond)

	stopDone := make(chan error, 1)
	go func() { stopDone <- jc.Stop(ctx) }()

	// Stop zeroes the acceleration only after it has looked for an
	// in-flight motion, so once the gateway sees 0 the motion is known to
	// Stop and completing it now cannot send Stop down the fence path.
	require.Eventually(t, func() bool { return gw.Accel(0) == 0 }, time.Second, time.Millisecond)

	// The only completion the microcontroller would deliver here resolves
	// the in-flight rotate's future; Stop must not be waiting on a second,
	// never-arriving one.
	gw.Complete(0, gw.Position(0)+int64(30*jc.cfg.StepsPerDegree()))

	select {
	case err := <-moveDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("rotate_by did not complete")
	}

	select {
	case err := <-stopDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop() deadlocked waiting on a fence with no completion to drain")
	}
}

func TestHomingHappyPath(t *testing.T) {
	gw := gateway.NewFakeGateway()
	gw.AutoComplete = false
	sw := gateway.NewFakeSwitchSource()

	jc, err := NewController(testConfig(), gw, sw)
	require.NoError(t, err)
	jc.sleep = func(time.Duration) {}

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- jc.Home(ctx) }()

	// seekLimit issues a single StepRelative; simulate the limit switch
	// firing partway through the travel. The press triggers a
	// fire-and-forget Stop(), which detects the seek's future is already
	// in flight and waits on its drain rather than dispatching a
	// competing fence (spec.md §4.2).
	time.Sleep(20 * time.Millisecond)
	sw.Push(gateway.SwitchEvent{Device: 0, Edge: gateway.EdgePress})
	time.Sleep(10 * time.Millisecond) // let watchSwitch mark HomeSwitchActive before we resolve the seek
	gw.Complete(0, -72)               // partial travel toward the negative limit

	// Everything past the seek (the calibration move, the zero) can
	// auto-resolve; only the seek itself needed manual control to
	// simulate the mid-travel limit-switch press.
	gw.SetAutoComplete(true)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("home() did not complete")
	}

	snap := jc.Snapshot()
	assert.True(t, snap.Homed)
	assert.Equal(t, int64(0), gw.Position(0))
}
