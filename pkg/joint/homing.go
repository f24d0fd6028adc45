package joint

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/itohio/armctl/pkg/armerr"
)

// Home executes the homing state machine: Idle -> PreCheck -> SeekLimit ->
// Settle -> Calibrated (success) or Failed (spec.md §4.2). It is not
// reentrant from the outside; concurrent calls on the same joint return an
// error without disturbing an in-progress attempt.
func (jc *Controller) Home(ctx context.Context) error {
	jc.mu.Lock()
	if jc.state.IsHoming {
		jc.mu.Unlock()
		return errors.Errorf("joint %s: home already in progress", jc.cfg.Name)
	}
	jc.state.IsHoming = true
	jc.state.Homed = false
	jc.mu.Unlock()

	jc.setHomingState(PreCheck)
	err := jc.homeAttempt(ctx)

	jc.mu.Lock()
	jc.state.IsHoming = false
	jc.mu.Unlock()

	if err != nil {
		jc.setHomingState(Failed)
		return err
	}
	jc.setHomingState(Calibrated)
	return nil
}

// homeAttempt runs one PreCheck/SeekLimit/Settle pass, recursing once per
// PreCheck back-off (spec.md §4.2 step 1).
func (jc *Controller) homeAttempt(ctx context.Context) error {
	if jc.switchActive() {
		backoff := preCheckBackoffDeg
		if jc.cfg.HomingDirection == Positive {
			backoff = -backoff
		}
		if _, err := jc.rawRotateBy(ctx, backoff); err != nil {
			return errors.Wrapf(err, "joint %s: precheck back-off", jc.cfg.Name)
		}
		return jc.homeAttempt(ctx)
	}

	jc.setHomingState(SeekLimit)
	return jc.seekLimit(ctx)
}

func (jc *Controller) seekLimit(ctx context.Context) error {
	if err := jc.SetSpeed(ctx, jc.cfg.HomingSpeedDegPerS); err != nil {
		return err
	}
	if err := jc.SetAcceleration(ctx, 0); err != nil {
		return err
	}

	travel := math.Abs(jc.cfg.MinDeg) + math.Abs(jc.cfg.MaxDeg) + seekOvertravelDeg
	if jc.cfg.HomingDirection == Negative {
		travel = -travel
	}

	steps := jc.degToSteps(travel)
	f, err := jc.gw.StepRelative(ctx, jc.cfg.DeviceIndex, steps)
	if err != nil {
		return err
	}
	abs, err := jc.awaitMotion(ctx, f)
	if err != nil {
		return err
	}

	jc.mu.Lock()
	jc.state.LastKnownAngleDeg = jc.stepsToDeg(abs)
	jc.mu.Unlock()

	if err := jc.SetSpeed(ctx, jc.cfg.MaxSpeedDegPerS); err != nil {
		return err
	}
	if err := jc.SetAcceleration(ctx, jc.cfg.MaxAccelDegPerS2); err != nil {
		return err
	}

	if !jc.switchActive() {
		return errors.Wrapf(armerr.ErrHomingFailed, "joint %s", jc.cfg.Name)
	}

	jc.setHomingState(Settle)
	return jc.settleAndCalibrate(ctx)
}

func (jc *Controller) settleAndCalibrate(ctx context.Context) error {
	jc.sleep(settleDuration)

	var correction float64
	if jc.cfg.HomingDirection == Negative {
		correction = -jc.cfg.MinDeg + jc.cfg.CalibrationOffsetDeg
	} else {
		correction = -jc.cfg.MaxDeg + jc.cfg.CalibrationOffsetDeg
	}

	if _, err := jc.rawRotateBy(ctx, correction); err != nil {
		return errors.Wrapf(err, "joint %s: calibration move", jc.cfg.Name)
	}

	if err := jc.gw.Zero(ctx, jc.cfg.DeviceIndex); err != nil {
		return err
	}

	jc.mu.Lock()
	jc.state.LastKnownAngleDeg = 0
	jc.state.Homed = true
	jc.mu.Unlock()

	return nil
}
