// Package gateway implements the host-side half of the AccelStepper
// extension of the Firmata protocol: command framing, write serialization
// and completion demultiplexing by device index. The actual byte-level
// Firmata/AccelStepper encoding lives on the microcontroller (out of
// scope, per spec.md §1); SerialGateway here only needs an opaque
// FrameTransport to exercise the contract, in the spirit of the teacher
// repo's pkg/robot/transport package (ReadPackets/WritePacket split
// between a writer and a demultiplexing reader goroutine).
package gateway

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/itohio/armctl/pkg/armerr"
	"github.com/itohio/armctl/pkg/logging"
)

const numDevices = 6

// SwitchEdge identifies a limit-switch transition.
type SwitchEdge int

const (
	EdgeRelease SwitchEdge = iota
	EdgePress
)

// SwitchEvent is a single debounced limit-switch transition for one device.
type SwitchEvent struct {
	Device int
	Edge   SwitchEdge
}

// LimitSwitchSource is the out-of-scope edge-detection collaborator: a
// digital input per joint with internal pull-up, delivering debounced
// press/release events. Joint controllers subscribe to this channel.
type LimitSwitchSource interface {
	Events() <-chan SwitchEvent
}

// FrameTransport is the out-of-scope serial transport to the
// microcontroller. Any io.Reader/io.Writer pair works; production code
// wires in github.com/tarm/serial (see cmd/armctl).
type FrameTransport interface {
	io.Reader
	io.Writer
}

// Future resolves to an absolute step count once the microcontroller's
// completion reply arrives. It is the idiomatic Go rendition of the
// spec's future/promise language: a channel already is one.
type Future struct {
	ch chan stepResult
}

type stepResult struct {
	abs int64
	err error
}

func newFuture() *Future {
	return &Future{ch: make(chan stepResult, 1)}
}

func (f *Future) resolve(abs int64, err error) {
	f.ch <- stepResult{abs: abs, err: err}
}

// Wait blocks until the completion arrives or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (int64, error) {
	select {
	case r := <-f.ch:
		return r.abs, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Gateway is the contract §4.1 exposes to the rest of the system.
type Gateway interface {
	ConfigureStepper(ctx context.Context, device int, stepPin, dirPin int) error
	SetSpeed(ctx context.Context, device int, stepsPerSec float64) error
	SetAcceleration(ctx context.Context, device int, stepsPerSec2 float64) error
	StepRelative(ctx context.Context, device int, signedSteps int64) (*Future, error)
	StepTo(ctx context.Context, device int, absSteps int64) (*Future, error)
	Stop(ctx context.Context, device int) error
	ReportPosition(ctx context.Context, device int) (*Future, error)
	Zero(ctx context.Context, device int) error
	// Down delivers one error on a terminal transport failure and is then
	// closed; it stays open while the transport is healthy.
	Down() <-chan error
}

// pending is one device's FIFO queue of outstanding completion futures.
// A StepRelative/StepTo/ReportPosition call pushes; the reader pops in
// order as completion frames arrive. Per spec.md §5, callers only ever
// have one outstanding motion per device, but ReportPosition may be
// interleaved, so a plain queue (not a single slot) is kept.
type pending struct {
	mu    sync.Mutex
	queue []*Future
}

func (p *pending) push(f *Future) {
	p.mu.Lock()
	p.queue = append(p.queue, f)
	p.mu.Unlock()
}

func (p *pending) pop() *Future {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil
	}
	f := p.queue[0]
	p.queue = p.queue[1:]
	return f
}

func (p *pending) drain(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.queue {
		f.resolve(0, err)
	}
	p.queue = nil
}

var log = logging.Named("gateway")

// wireCmd is what the writer goroutine serializes; encode is left to the
// concrete transport's frameCodec.
type wireCmd struct {
	kind   frameKind
	device int
	arg    float64
	steps  int64
}

type frameKind int

const (
	cmdConfigure frameKind = iota
	cmdSpeed
	cmdAccel
	cmdStepRel
	cmdStepTo
	cmdStop
	cmdReportPos
	cmdZero
)

// frameCodec turns a wireCmd into bytes and parses completion frames back
// out of a transport. It is intentionally minimal: the real Firmata
// AccelStepper byte layout is an external firmware concern (spec.md §1);
// this codec only needs to be self-consistent across SerialGateway's own
// write and read sides.
type frameCodec interface {
	encode(wireCmd) []byte
	// decode reads one completion frame, returning the device index and
	// absolute step count it carries.
	decode(r io.Reader) (device int, abs int64, err error)
}

// SerialGateway is the production Gateway: one writer goroutine serializes
// wireCmds onto the transport, one reader goroutine demultiplexes
// completion frames by device index onto the matching pending queue.
type SerialGateway struct {
	transport FrameTransport
	codec     frameCodec

	cmds chan wireCmd
	down chan error

	pend [numDevices]pending

	closeOnce sync.Once
	done      chan struct{}
}

// NewSerialGateway starts the writer/reader goroutines over transport.
func NewSerialGateway(transport FrameTransport, codec frameCodec) *SerialGateway {
	g := &SerialGateway{
		transport: transport,
		codec:     codec,
		cmds:      make(chan wireCmd, 64),
		down:      make(chan error, 1),
		done:      make(chan struct{}),
	}
	go g.writeLoop()
	go g.readLoop()
	return g
}

func (g *SerialGateway) Down() <-chan error { return g.down }

func (g *SerialGateway) writeLoop() {
	for {
		select {
		case c, ok := <-g.cmds:
			if !ok {
				return
			}
			if _, err := g.transport.Write(g.codec.encode(c)); err != nil {
				g.fail(errors.Wrap(err, "gateway: write"))
				return
			}
		case <-g.done:
			return
		}
	}
}

func (g *SerialGateway) readLoop() {
	for {
		device, abs, err := g.codec.decode(g.transport)
		if err != nil {
			g.fail(errors.Wrap(err, "gateway: read"))
			return
		}
		if device < 0 || device >= numDevices {
			log.Warn().Int("device", device).Msg("completion for unknown device")
			continue
		}
		if f := g.pend[device].pop(); f != nil {
			f.resolve(abs, nil)
		}
	}
}

func (g *SerialGateway) fail(err error) {
	g.closeOnce.Do(func() {
		close(g.done)
		for i := range g.pend {
			g.pend[i].drain(errors.Wrap(armerr.ErrGatewayDown, err.Error()))
		}
		g.down <- errors.Wrap(armerr.ErrGatewayDown, err.Error())
		close(g.down)
	})
}

func (g *SerialGateway) send(ctx context.Context, c wireCmd) error {
	select {
	case g.cmds <- c:
		return nil
	case <-g.done:
		return armerr.ErrGatewayDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *SerialGateway) ConfigureStepper(ctx context.Context, device, stepPin, dirPin int) error {
	return g.send(ctx, wireCmd{kind: cmdConfigure, device: device, arg: float64(stepPin), steps: int64(dirPin)})
}

func (g *SerialGateway) SetSpeed(ctx context.Context, device int, stepsPerSec float64) error {
	return g.send(ctx, wireCmd{kind: cmdSpeed, device: device, arg: stepsPerSec})
}

func (g *SerialGateway) SetAcceleration(ctx context.Context, device int, stepsPerSec2 float64) error {
	return g.send(ctx, wireCmd{kind: cmdAccel, device: device, arg: stepsPerSec2})
}

func (g *SerialGateway) StepRelative(ctx context.Context, device int, signedSteps int64) (*Future, error) {
	f := newFuture()
	g.pend[device].push(f)
	if err := g.send(ctx, wireCmd{kind: cmdStepRel, device: device, steps: signedSteps}); err != nil {
		return nil, err
	}
	return f, nil
}

func (g *SerialGateway) StepTo(ctx context.Context, device int, absSteps int64) (*Future, error) {
	f := newFuture()
	g.pend[device].push(f)
	if err := g.send(ctx, wireCmd{kind: cmdStepTo, device: device, steps: absSteps}); err != nil {
		return nil, err
	}
	return f, nil
}

func (g *SerialGateway) Stop(ctx context.Context, device int) error {
	return g.send(ctx, wireCmd{kind: cmdStop, device: device})
}

func (g *SerialGateway) ReportPosition(ctx context.Context, device int) (*Future, error) {
	f := newFuture()
	g.pend[device].push(f)
	if err := g.send(ctx, wireCmd{kind: cmdReportPos, device: device}); err != nil {
		return nil, err
	}
	return f, nil
}

func (g *SerialGateway) Zero(ctx context.Context, device int) error {
	return g.send(ctx, wireCmd{kind: cmdZero, device: device})
}
