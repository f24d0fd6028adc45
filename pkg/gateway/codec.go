package gateway

import (
	"encoding/binary"
	"io"
)

// simpleCodec is a minimal fixed-size binary framing used by
// SerialGateway's default wiring. Each outbound frame is:
//
//	[1]byte kind | [1]byte device | [8]byte arg (int64, arg*1e6) | [8]byte steps (int64)
//
// and each inbound completion frame is:
//
//	[1]byte device | [8]byte abs (int64)
//
// This is not the real Firmata/AccelStepper wire format — that belongs to
// the microcontroller firmware, an out-of-scope external collaborator
// (spec.md §1). It exists so SerialGateway has a working default when
// wired to a real github.com/tarm/serial port in cmd/armctl.
type simpleCodec struct{}

// NewSimpleCodec returns the default frameCodec for SerialGateway.
func NewSimpleCodec() *simpleCodec { return &simpleCodec{} }

func (simpleCodec) encode(c wireCmd) []byte {
	buf := make([]byte, 1+1+8+8)
	buf[0] = byte(c.kind)
	buf[1] = byte(c.device)
	binary.BigEndian.PutUint64(buf[2:10], uint64(int64FromFloat(c.arg)))
	binary.BigEndian.PutUint64(buf[10:18], uint64(c.steps))
	return buf
}

func (simpleCodec) decode(r io.Reader) (device int, abs int64, err error) {
	var hdr [9]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, err
	}
	device = int(hdr[0])
	abs = int64(binary.BigEndian.Uint64(hdr[1:9]))
	return device, abs, nil
}

// int64FromFloat converts a float64 to fixed-point millionths for the
// generic arg slot (the fraction below 1e-6 is truncated); the receiver
// divides by 1e6 to recover the value. Kept as a free function since both Configure
// (plain ints) and Speed/Accel (floats) share the wireCmd.arg field.
func int64FromFloat(f float64) int64 {
	return int64(f * 1e6) // fixed-point microunits; ample precision for deg/s, deg/s^2
}
