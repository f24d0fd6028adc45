// Package coordinator implements the Robot Coordinator: it owns the six
// joint controllers and the kinematics chain, and exposes the arm-level
// operations (spec.md §4.4) — home, moveJ, moveL, halt, and the current
// Cartesian pose.
package coordinator

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/itohio/armctl/pkg/armerr"
	"github.com/itohio/armctl/pkg/joint"
	"github.com/itohio/armctl/pkg/kinematics"
	"github.com/itohio/armctl/pkg/logging"
)

const controlHz = 50.0
const tickPeriod = time.Second / controlHz
const minMoveLDuration = 500 * time.Millisecond

var log = logging.Named("coordinator")

// Coordinator owns the six joints and the kinematic chain. It is the single
// entry point through which the arm is homed and moved.
type Coordinator struct {
	joints [6]*joint.Controller
	chain  kinematics.Chain
	geo    kinematics.Geometry
	limits kinematics.Limits

	mu          sync.Mutex
	cancelMoveL context.CancelFunc
}

// New constructs a Coordinator over six already-configured joint
// controllers sharing the given kinematic chain.
func New(joints [6]*joint.Controller, chain kinematics.Chain, geo kinematics.Geometry, limits kinematics.Limits) *Coordinator {
	return &Coordinator{joints: joints, chain: chain, geo: geo, limits: limits}
}

// currentAngles reads every joint's last known angle without issuing any
// wire command.
func (c *Coordinator) currentAngles() [6]float64 {
	var q [6]float64
	for i, j := range c.joints {
		q[i] = j.LastKnownAngle()
	}
	return q
}

// Pose returns the current tool pose, computed fresh from each joint's
// last_known_angle_deg; it is never cached (spec.md §4.4).
func (c *Coordinator) Pose() kinematics.Pose {
	return kinematics.Extract(c.chain.Forward(c.currentAngles()))
}

// Home executes the two-phase homing sequence: joints 1-3 concurrently,
// then joints 4-6 concurrently (spec.md §4.4).
func (c *Coordinator) Home(ctx context.Context) error {
	if err := homeGroup(ctx, c.joints[0], c.joints[1], c.joints[2]); err != nil {
		return err
	}
	return homeGroup(ctx, c.joints[3], c.joints[4], c.joints[5])
}

func homeGroup(ctx context.Context, joints ...*joint.Controller) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range joints {
		j := j
		g.Go(func() error { return j.Home(gctx) })
	}
	return g.Wait()
}

// MoveJ commands every joint to angles[j] concurrently and resolves when
// all joints resolve (spec.md §4.4).
func (c *Coordinator) MoveJ(ctx context.Context, angles [6]float64) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range c.joints {
		i, j := i, j
		g.Go(func() error {
			_, err := j.RotateTo(gctx, angles[i])
			return err
		})
	}
	return g.Wait()
}

// Halt cancels any active moveL scheduler, then stops every joint
// concurrently. It is idempotent and suppresses no per-joint error (every
// failed stop is returned, joined into one error), but always runs every
// joint's stop() regardless of another's failure (spec.md §4.4, §7).
func (c *Coordinator) Halt(ctx context.Context) error {
	c.mu.Lock()
	if c.cancelMoveL != nil {
		c.cancelMoveL()
		c.cancelMoveL = nil
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, len(c.joints))
	for i, j := range c.joints {
		i, j := i, j
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = j.Stop(ctx)
		}()
	}
	wg.Wait()

	var failed []error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, errors.Wrapf(err, "halt: joint %d stop failed", i))
		}
	}
	return stderrors.Join(failed...)
}

// MoveL drives the tool in a straight Cartesian line to target, by
// streaming interpolated per-tick setpoints at 50 Hz (spec.md §4.4).
func (c *Coordinator) MoveL(ctx context.Context, target kinematics.Pose) error {
	start := c.Pose()

	qStart, err := c.chain.IK(start, c.geo, c.limits)
	if err != nil {
		return errors.Wrap(err, "moveL: current pose unreachable")
	}
	qEnd, err := c.chain.IK(target, c.geo, c.limits)
	if err != nil {
		return errors.Wrap(err, "moveL: target pose unreachable")
	}

	var maxT float64
	for j := 0; j < 6; j++ {
		delta := math.Abs(qEnd[j] - qStart[j])
		maxSpeed := c.joints[j].Config().MaxSpeedDegPerS
		if maxSpeed == 0 {
			if delta > 0 {
				return errors.Wrapf(armerr.ErrTrajectoryInvalid, "joint %d has zero max speed but must move %.3f deg", j, delta)
			}
			continue
		}
		t := delta / maxSpeed
		if t > maxT {
			maxT = t
		}
	}

	T := math.Max(maxT, minMoveLDuration.Seconds())
	n := int(math.Ceil(T * controlHz))
	if n < 1 {
		n = 1
	}

	waypoints := make([][6]float64, n+1)
	for i := 0; i <= n; i++ {
		s := float64(i) / float64(n)
		p := lerpPose(start, target, s)
		q, err := c.chain.IK(p, c.geo, c.limits)
		if err != nil {
			return errors.Wrapf(armerr.ErrTrajectoryInvalid, "moveL: tick %d/%d unreachable", i, n)
		}
		waypoints[i] = q
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelMoveL = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.cancelMoveL != nil {
			c.cancelMoveL()
			c.cancelMoveL = nil
		}
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	i := 0
tickLoop:
	for i <= n {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case <-ticker.C:
			q := waypoints[i]
			for j, jc := range c.joints {
				jc, tgt := jc, q[j]
				// Fire-and-forget: the tick never awaits per-joint
				// completion futures (spec.md §4.4 step 6).
				go func() {
					if _, err := jc.RotateTo(runCtx, tgt); err != nil {
						log.Warn().Int("joint", j).Err(err).Msg("moveL tick retarget failed")
					}
				}()
			}
			i++
			if i > n {
				break tickLoop
			}
		}
	}

	settle := time.Duration(T*1000)*time.Millisecond + 500*time.Millisecond
	select {
	case <-time.After(settle):
	case <-runCtx.Done():
		return runCtx.Err()
	}
	return nil
}

// lerpPose interpolates every pose component linearly, the Euler angles
// included. No angle wrapping is done, so a move whose rx, ry or rz crosses
// the ±180° seam sweeps the long way round instead of taking the short arc.
func lerpPose(a, b kinematics.Pose, s float64) kinematics.Pose {
	return kinematics.Pose{
		X:  a.X + s*(b.X-a.X),
		Y:  a.Y + s*(b.Y-a.Y),
		Z:  a.Z + s*(b.Z-a.Z),
		Rx: a.Rx + s*(b.Rx-a.Rx),
		Ry: a.Ry + s*(b.Ry-a.Ry),
		Rz: a.Rz + s*(b.Rz-a.Rz),
	}
}
