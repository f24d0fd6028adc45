// Package joint implements the per-axis state machine that manages
// homing, position tracking, bounded motion and safety interlocks against
// the Firmware Gateway (spec.md §4.2).
package joint

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/itohio/armctl/pkg/armerr"
	"github.com/itohio/armctl/pkg/gateway"
	"github.com/itohio/armctl/pkg/logging"
)

const settleDuration = 500 * time.Millisecond
const preCheckBackoffDeg = 15.0
const seekOvertravelDeg = 5.0

// Controller is a joint's state machine bundling a stepper device (via the
// Firmware Gateway), a limit switch, a range, calibration and homing.
type Controller struct {
	cfg Config
	gw  gateway.Gateway

	mu    sync.Mutex
	state State

	// motionGate serializes the public RotateBy/RotateTo/Stop entry points;
	// it is NOT held by the homing state machine's internal moves, which
	// run under Home()'s own exclusive section instead (spec.md §4.2's
	// invariant only restricts callers outside the homing state machine).
	motionGate sync.Mutex

	switchEvents <-chan gateway.SwitchEvent
	stopSwitch   chan struct{}

	// inFlightDone is non-nil while a StepRelative/StepTo future is being
	// awaited for this device, and is closed once it resolves. At most one
	// motion is outstanding per device (spec.md §4.1), so Stop can use this
	// to detect that the single completion the microcontroller will
	// deliver is already spoken for by the in-flight motion's own future,
	// rather than dispatching a second fence that would never see one
	// (guarded by jc.mu, same as the rest of state).
	inFlightDone chan struct{}

	sleep func(time.Duration)
}

// NewController constructs a Controller for cfg, validating it per
// spec.md §7 (MisconfiguredJoint). events is the shared, unfiltered
// limit-switch stream; Controller filters for its own DeviceIndex.
func NewController(cfg Config, gw gateway.Gateway, events gateway.LimitSwitchSource) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	jc := &Controller{
		cfg:        cfg,
		gw:         gw,
		stopSwitch: make(chan struct{}),
		sleep:      time.Sleep,
	}
	if events != nil {
		jc.switchEvents = events.Events()
		go jc.watchSwitch()
	}
	return jc, nil
}

var logs = logging.Named("joint")

func (jc *Controller) watchSwitch() {
	for {
		select {
		case ev, ok := <-jc.switchEvents:
			if !ok {
				return
			}
			if ev.Device != jc.cfg.DeviceIndex {
				continue
			}
			jc.onSwitchEvent(ev.Edge)
		case <-jc.stopSwitch:
			return
		}
	}
}

// onSwitchEvent is the limit-switch handler (spec.md §4.2). It never
// suspends: state is updated synchronously and a press fires a
// fire-and-forget Stop() on its own goroutine.
func (jc *Controller) onSwitchEvent(edge gateway.SwitchEdge) {
	jc.mu.Lock()
	jc.state.HomeSwitchActive = edge == gateway.EdgePress
	jc.mu.Unlock()

	if edge == gateway.EdgePress {
		go func() {
			if err := jc.Stop(context.Background()); err != nil {
				logs.Warn().Str("joint", jc.cfg.Name).Err(err).Msg("stop on limit press failed")
			}
		}()
	}
}

// Close stops the switch-event watcher goroutine.
func (jc *Controller) Close() {
	close(jc.stopSwitch)
}

func (jc *Controller) onePulseDeg() float64 {
	return 360.0 / float64(jc.cfg.StepsPerRev)
}

func (jc *Controller) degToSteps(deg float64) int64 {
	return int64(math.Round(deg * jc.cfg.StepsPerDegree()))
}

func (jc *Controller) stepsToDeg(steps int64) float64 {
	return float64(steps) / jc.cfg.StepsPerDegree()
}

// SetSpeed converts v (deg/s) to steps/s and forwards it to the gateway.
func (jc *Controller) SetSpeed(ctx context.Context, v float64) error {
	if err := jc.gw.SetSpeed(ctx, jc.cfg.DeviceIndex, v*jc.cfg.StepsPerDegree()); err != nil {
		return err
	}
	jc.mu.Lock()
	jc.state.CurrentSpeedDegPerS = v
	jc.mu.Unlock()
	return nil
}

// SetAcceleration converts a (deg/s^2) to steps/s^2 and forwards it.
func (jc *Controller) SetAcceleration(ctx context.Context, a float64) error {
	if err := jc.gw.SetAcceleration(ctx, jc.cfg.DeviceIndex, a*jc.cfg.StepsPerDegree()); err != nil {
		return err
	}
	jc.mu.Lock()
	jc.state.CurrentAccelDegPerS2 = a
	jc.mu.Unlock()
	return nil
}

// RotateBy commands a relative move of deltaDeg degrees. deltaDeg=0 is a
// pure completion fence: no range or homed check, no angle update.
func (jc *Controller) RotateBy(ctx context.Context, deltaDeg float64) (bool, error) {
	if deltaDeg == 0 {
		jc.motionGate.Lock()
		defer jc.motionGate.Unlock()
		_, err := jc.fence(ctx)
		return err == nil, err
	}

	jc.mu.Lock()
	homed := jc.state.Homed
	isHoming := jc.state.IsHoming
	current := jc.state.LastKnownAngleDeg
	jc.mu.Unlock()

	if !isHoming {
		if !homed {
			return false, errors.Wrapf(armerr.ErrNotHomed, "joint %s: rotate_by", jc.cfg.Name)
		}
		if !jc.cfg.InRange(current + deltaDeg) {
			return false, errors.Wrapf(armerr.ErrOutOfRange, "joint %s: rotate_by target %.3f", jc.cfg.Name, current+deltaDeg)
		}
	}

	jc.motionGate.Lock()
	defer jc.motionGate.Unlock()
	return jc.rawRotateBy(ctx, deltaDeg)
}

// rawRotateBy issues the relative move without any precondition check; used
// by RotateBy after checks pass, and by the homing state machine.
func (jc *Controller) rawRotateBy(ctx context.Context, deltaDeg float64) (bool, error) {
	jc.mu.Lock()
	target := jc.state.LastKnownAngleDeg + deltaDeg
	jc.mu.Unlock()

	steps := jc.degToSteps(deltaDeg)
	f, err := jc.gw.StepRelative(ctx, jc.cfg.DeviceIndex, steps)
	if err != nil {
		return false, err
	}
	abs, err := jc.awaitMotion(ctx, f)
	if err != nil {
		return false, err
	}

	angle := jc.stepsToDeg(abs)
	jc.mu.Lock()
	jc.state.LastKnownAngleDeg = angle
	jc.mu.Unlock()

	achieved := math.Abs(angle-target) <= jc.onePulseDeg()+1e-9
	return achieved, nil
}

// awaitMotion waits for a dispatched StepRelative/StepTo future to resolve,
// publishing a drain signal on jc.inFlightDone for the duration so a
// concurrent Stop can detect the outstanding motion (see inFlightDone's
// doc comment) instead of issuing a fence that would starve forever.
func (jc *Controller) awaitMotion(ctx context.Context, f *gateway.Future) (int64, error) {
	done := make(chan struct{})
	jc.mu.Lock()
	jc.inFlightDone = done
	jc.mu.Unlock()
	defer func() {
		jc.mu.Lock()
		if jc.inFlightDone == done {
			jc.inFlightDone = nil
		}
		jc.mu.Unlock()
		close(done)
	}()
	return f.Wait(ctx)
}

// RotateTo commands an absolute move to targetDeg degrees.
func (jc *Controller) RotateTo(ctx context.Context, targetDeg float64) (bool, error) {
	jc.mu.Lock()
	homed := jc.state.Homed
	isHoming := jc.state.IsHoming
	jc.mu.Unlock()

	if !isHoming {
		if !homed {
			return false, errors.Wrapf(armerr.ErrNotHomed, "joint %s: rotate_to", jc.cfg.Name)
		}
		if !jc.cfg.InRange(targetDeg) {
			return false, errors.Wrapf(armerr.ErrOutOfRange, "joint %s: rotate_to target %.3f", jc.cfg.Name, targetDeg)
		}
	}

	jc.motionGate.Lock()
	defer jc.motionGate.Unlock()
	return jc.rawRotateTo(ctx, targetDeg)
}

func (jc *Controller) rawRotateTo(ctx context.Context, targetDeg float64) (bool, error) {
	absSteps := jc.degToSteps(targetDeg)
	f, err := jc.gw.StepTo(ctx, jc.cfg.DeviceIndex, absSteps)
	if err != nil {
		return false, err
	}
	abs, err := jc.awaitMotion(ctx, f)
	if err != nil {
		return false, err
	}

	angle := jc.stepsToDeg(abs)
	jc.mu.Lock()
	jc.state.LastKnownAngleDeg = angle
	jc.mu.Unlock()

	achieved := math.Abs(angle-targetDeg) <= jc.onePulseDeg()+1e-9
	return achieved, nil
}

// fence issues a zero-step relative move purely to drain queued completion
// state; per spec.md §8 invariant 5 it never updates last_known_angle_deg.
func (jc *Controller) fence(ctx context.Context) (int64, error) {
	f, err := jc.gw.StepRelative(ctx, jc.cfg.DeviceIndex, 0)
	if err != nil {
		return 0, err
	}
	return f.Wait(ctx)
}

// Stop executes the stop-procedure (spec.md §4.2): stop the stepper, save
// acceleration, zero it, drain, restore acceleration.
//
// Draining is conditional: at most one motion is outstanding per device
// (spec.md §4.1), so if one is already in flight when Stop is called (the
// limit-switch-interrupt path), the single completion the microcontroller
// delivers for the halted move is routed by the gateway's per-device FIFO
// to that motion's own future — not to a freshly dispatched fence, which
// would then have no completion left to wait for and block forever. In
// that case Stop waits for the in-flight motion's own drain instead of
// issuing a second one. Only when no motion is outstanding does Stop fall
// back to the zero-step fence to elicit the drain completion itself.
func (jc *Controller) Stop(ctx context.Context) error {
	jc.motionGate.Lock()
	defer jc.motionGate.Unlock()

	if err := jc.gw.Stop(ctx, jc.cfg.DeviceIndex); err != nil {
		return err
	}

	jc.mu.Lock()
	savedAccel := jc.state.CurrentAccelDegPerS2
	inFlight := jc.inFlightDone
	jc.mu.Unlock()

	if err := jc.SetAcceleration(ctx, 0); err != nil {
		return err
	}

	if inFlight != nil {
		select {
		case <-inFlight:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else if _, err := jc.fence(ctx); err != nil {
		return err
	}

	return jc.SetAcceleration(ctx, savedAccel)
}

// ReportAngle round-trips a position query and updates last_known_angle_deg.
func (jc *Controller) ReportAngle(ctx context.Context) (float64, error) {
	f, err := jc.gw.ReportPosition(ctx, jc.cfg.DeviceIndex)
	if err != nil {
		return 0, err
	}
	abs, err := f.Wait(ctx)
	if err != nil {
		return 0, err
	}
	angle := jc.stepsToDeg(abs)
	jc.mu.Lock()
	jc.state.LastKnownAngleDeg = angle
	jc.mu.Unlock()
	return angle, nil
}

// GoToReady moves the joint to its configured ready position.
func (jc *Controller) GoToReady(ctx context.Context) (bool, error) {
	return jc.RotateTo(ctx, jc.cfg.ReadyPositionDeg)
}

// RestoreCalibration marks the joint homed at angleDeg without running the
// physical homing sequence, for recovering a persisted calibration across a
// process restart rather than re-seeking the limit switch every boot.
func (jc *Controller) RestoreCalibration(angleDeg float64) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.state.Homed = true
	jc.state.LastKnownAngleDeg = angleDeg
	jc.state.Homing = Calibrated
}

// Config returns the joint's immutable configuration.
func (jc *Controller) Config() Config { return jc.cfg }

// LastKnownAngle returns the most recently observed angle without issuing
// any wire command.
func (jc *Controller) LastKnownAngle() float64 {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.state.LastKnownAngleDeg
}

func (jc *Controller) switchActive() bool {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.state.HomeSwitchActive
}

func (jc *Controller) setHomingState(s HomingState) {
	jc.mu.Lock()
	jc.state.Homing = s
	jc.mu.Unlock()
	logs.Debug().Str("joint", jc.cfg.Name).Str("homing", s.String()).Msg("homing transition")
}
