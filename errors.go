// Package servobus is a host-side driver for the CDS55xx family of
// Dynamixel-style serial bus servos. It provides the wire protocol codec
// (pkg/protocol), a half-duplex transaction engine (pkg/bus), a baud/id
// discovery scanner (pkg/discovery) and a bootloader firmware updater
// (pkg/firmware).
package servobus

import "errors"

// Sentinel errors shared across packages: validation, transport,
// protocol-framing, timeout and session-fatal conditions each get their
// own sentinel so callers can
// use errors.Is instead of string matching.
var (
	// ErrOutOfRange is returned by packet-builder setters when a caller
	// supplies a value outside its documented domain (angle, RPM,
	// voltage, etc).
	ErrOutOfRange = errors.New("servobus: value out of range")

	// ErrProtocol is returned when a caller-supplied argument violates a
	// wire-level invariant, such as a sync-write block of the wrong size.
	ErrProtocol = errors.New("servobus: protocol violation")

	// ErrTooShort is returned by the response parser when fewer bytes
	// than the declared length are available.
	ErrTooShort = errors.New("servobus: response too short")

	// ErrBadChecksum is returned by the response parser when the trailing
	// checksum byte does not match the computed checksum.
	ErrBadChecksum = errors.New("servobus: bad checksum")

	// ErrHeaderNotFound is returned when a candidate buffer does not
	// start with the 0xFF 0xFF marker.
	ErrHeaderNotFound = errors.New("servobus: header not found")

	// ErrClosed is returned by the transaction engine once Close has
	// been called; any waiter still pending observes this error.
	ErrClosed = errors.New("servobus: engine closed")

	// ErrTimeout is returned when a send-and-wait call or a firmware
	// frame exchange does not receive a reply within its configured
	// window.
	ErrTimeout = errors.New("servobus: timeout")

	// ErrSessionFailed is returned by the firmware updater once its
	// whole-session retry budget is exhausted.
	ErrSessionFailed = errors.New("servobus: firmware session failed")

	// ErrBroadcastNoReply is returned by SendAndWait when called with the
	// broadcast identifier, which never elicits a reply.
	ErrBroadcastNoReply = errors.New("servobus: broadcast identifier never replies")
)
