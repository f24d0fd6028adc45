// Package armerr defines the error taxonomy shared by the gateway, joint,
// kinematics and coordinator packages.
package armerr

import "github.com/pkg/errors"

// Sentinel errors. Use errors.Is against these; wrap with errors.Wrap to
// attach context (joint name, requested angle, device index, ...).
var (
	// ErrNotHomed is raised when a motion is requested on a joint that has
	// not completed a homing cycle, except the zero-step fence (Δ°=0).
	ErrNotHomed = errors.New("joint not homed")

	// ErrOutOfRange is raised when a target angle falls outside a joint's
	// configured [min,max] range.
	ErrOutOfRange = errors.New("target angle out of range")

	// ErrHomingFailed is raised when a homing seek travels its full
	// distance without the limit switch closing.
	ErrHomingFailed = errors.New("homing failed: travel exceeded, switch not hit")

	// ErrIKFailed is raised when inverse kinematics cannot produce an
	// in-range joint configuration, even after the single wrist-flip retry.
	ErrIKFailed = errors.New("inverse kinematics failed")

	// ErrTrajectoryInvalid is raised when a moveL interpolation produces an
	// IK failure at an intermediate pose, before any command is dispatched.
	ErrTrajectoryInvalid = errors.New("trajectory invalid")

	// ErrGatewayDown is raised when the transport to the microcontroller
	// has failed; terminal for the process.
	ErrGatewayDown = errors.New("firmware gateway down")

	// ErrMisconfiguredJoint is raised at construction time when a
	// JointConfig is internally inconsistent.
	ErrMisconfiguredJoint = errors.New("misconfigured joint")
)
