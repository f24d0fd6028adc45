package gateway

import (
	"context"
	"sync"
)

// FakeGateway is an in-memory Gateway double used by pkg/joint's and
// pkg/coordinator's tests, mirroring how the teacher
// repo keeps transport-dependent code testable without real hardware
// (pkg/robot/transport's tests drive ReadPacketFromReliableStream against
// an in-memory io.Reader rather than a serial port).
type FakeGateway struct {
	mu       sync.Mutex
	pos      [numDevices]int64
	speed    [numDevices]float64
	accel    [numDevices]float64
	stepPin  [numDevices]int
	dirPin   [numDevices]int
	stopped  [numDevices]bool
	down     chan error
	downOnce sync.Once

	// AutoComplete, when true (the default), resolves StepRelative/StepTo
	// futures immediately as if the microcontroller replied instantly.
	// Tests that need to control timing (e.g. simulating a limit-switch
	// press mid-seek) set it to false and call Complete explicitly.
	AutoComplete bool

	// pending holds futures awaiting an explicit Complete call when
	// AutoComplete is false.
	pending [numDevices][]*Future
}

// NewFakeGateway returns a FakeGateway with AutoComplete enabled.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{down: make(chan error, 1), AutoComplete: true}
}

func (g *FakeGateway) Down() <-chan error { return g.down }

func (g *FakeGateway) ConfigureStepper(ctx context.Context, device, stepPin, dirPin int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stepPin[device] = stepPin
	g.dirPin[device] = dirPin
	return nil
}

func (g *FakeGateway) SetSpeed(ctx context.Context, device int, stepsPerSec float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.speed[device] = stepsPerSec
	return nil
}

func (g *FakeGateway) SetAcceleration(ctx context.Context, device int, stepsPerSec2 float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accel[device] = stepsPerSec2
	return nil
}

func (g *FakeGateway) StepRelative(ctx context.Context, device int, signedSteps int64) (*Future, error) {
	f := newFuture()
	g.mu.Lock()
	target := g.pos[device] + signedSteps
	g.mu.Unlock()
	return g.dispatch(device, f, target)
}

func (g *FakeGateway) StepTo(ctx context.Context, device int, absSteps int64) (*Future, error) {
	f := newFuture()
	return g.dispatch(device, f, absSteps)
}

func (g *FakeGateway) dispatch(device int, f *Future, target int64) (*Future, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AutoComplete {
		g.pos[device] = target
		f.resolve(target, nil)
	} else {
		g.pending[device] = append(g.pending[device], f)
	}
	return f, nil
}

func (g *FakeGateway) Stop(ctx context.Context, device int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped[device] = true
	return nil
}

func (g *FakeGateway) ReportPosition(ctx context.Context, device int) (*Future, error) {
	f := newFuture()
	g.mu.Lock()
	pos := g.pos[device]
	g.mu.Unlock()
	f.resolve(pos, nil)
	return f, nil
}

func (g *FakeGateway) Zero(ctx context.Context, device int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pos[device] = 0
	return nil
}

// Complete resolves the oldest pending future for device at the given
// absolute step count, as if the microcontroller reported completion
// there (used to simulate a limit-switch interrupt mid-seek).
func (g *FakeGateway) Complete(device int, abs int64) {
	g.mu.Lock()
	g.pos[device] = abs
	var f *Future
	if len(g.pending[device]) > 0 {
		f = g.pending[device][0]
		g.pending[device] = g.pending[device][1:]
	}
	g.mu.Unlock()
	if f != nil {
		f.resolve(abs, nil)
	}
}

// SetAutoComplete toggles AutoComplete under lock, so a test can switch a
// gateway from manual to automatic completion mid-sequence without racing
// dispatch.
func (g *FakeGateway) SetAutoComplete(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.AutoComplete = v
}

// Position reports the fake's current absolute step count for device,
// for test assertions.
func (g *FakeGateway) Position(device int) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pos[device]
}

// Speed reports the last commanded speed, for test assertions.
func (g *FakeGateway) Speed(device int) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.speed[device]
}

// Accel reports the last commanded acceleration, for test assertions.
func (g *FakeGateway) Accel(device int) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accel[device]
}

// Stopped reports whether Stop has been called for device, for test
// assertions.
func (g *FakeGateway) Stopped(device int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped[device]
}

// Fail broadcasts a terminal transport error, as SerialGateway.fail does.
func (g *FakeGateway) Fail(err error) {
	g.downOnce.Do(func() {
		g.down <- err
		close(g.down)
	})
}
