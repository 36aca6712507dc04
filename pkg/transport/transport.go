// Package transport defines the narrow serial-port collaborator contract
// the transaction engine drives, plus the one concrete adapter and the
// in-memory loopback this repository ships so the module builds and
// tests end to end.
package transport

import "time"

// Port is the minimal surface a transaction engine needs from a serial
// line: byte-oriented read/write, a way to know how much is waiting
// without blocking, a way to flush stale bytes after a resynchronization,
// and a way to block until more data is readable or a deadline passes.
type Port interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	BytesAvailable() (int, error)
	FlushInput() error
	WaitReadable(timeout time.Duration) (bool, error)
	Close() error
	IsOpen() bool
}

// Level is the logic level driven onto an RS-485 direction-control line.
type Level bool

const (
	// LevelReceive puts the transceiver in listen mode.
	LevelReceive Level = false
	// LevelTransmit puts the transceiver in drive mode.
	LevelTransmit Level = true
)

// DirectionLine is implemented by transports that gate transmission
// through an external direction-control line, toggled high immediately
// before a write and low immediately after.
type DirectionLine interface {
	Set(level Level) error
}

// Timeout bundles the three timeout knobs a transaction needs: how long
// to wait for the line to become writable, for the first byte of a
// response, and between subsequent bytes of the same response.
type Timeout struct {
	Write        time.Duration
	FirstByte    time.Duration
	InterByte    time.Duration
}

// Simple returns a Timeout using the same duration, expressed in
// milliseconds, for all three knobs — the common case for a point-to-
// point RS-485 link with no per-phase tuning.
func Simple(ms int) Timeout {
	d := time.Duration(ms) * time.Millisecond
	return Timeout{Write: d, FirstByte: d, InterByte: d}
}
