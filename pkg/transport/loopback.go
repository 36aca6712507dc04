package transport

import (
	"errors"
	"sync"
	"time"
)

// Loopback is an in-memory Port backed by a byte queue instead of a real
// serial device. Tests wire a Loopback to a fake servo responder, either
// inline via Respond or from a separate goroutine via Inject.
type Loopback struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool

	// Written records every byte the engine/firmware code under test has
	// sent, for assertions in tests.
	Written []byte

	// Respond, if set, is invoked synchronously from Write with the bytes
	// just written, letting a test simulate a servo that replies inline
	// rather than from a separate goroutine.
	Respond func(sent []byte) []byte
}

// NewLoopback returns an empty, open Loopback.
func NewLoopback() *Loopback {
	l := &Loopback{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Write appends p to the outgoing record and, if Respond is set, queues
// its return value for the next Read.
func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosedPort
	}
	l.Written = append(l.Written, p...)
	if l.Respond != nil {
		l.buf = append(l.buf, l.Respond(p)...)
		l.cond.Broadcast()
	}
	return len(p), nil
}

// Inject queues bytes to be returned by future Reads, for tests driving
// the loopback from a separate responder goroutine instead of Respond.
func (l *Loopback) Inject(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, p...)
	l.cond.Broadcast()
}

func (l *Loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.buf) == 0 && !l.closed {
		l.cond.Wait()
	}
	if l.closed && len(l.buf) == 0 {
		return 0, ErrClosedPort
	}
	n := copy(p, l.buf)
	l.buf = l.buf[n:]
	return n, nil
}

func (l *Loopback) BytesAvailable() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf), nil
}

func (l *Loopback) FlushInput() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = l.buf[:0]
	return nil
}

// WaitReadable blocks until at least one byte is queued, the port is
// closed, or timeout elapses.
func (l *Loopback) WaitReadable(timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.buf) == 0 && !l.closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		timer := time.AfterFunc(remaining, l.cond.Broadcast)
		l.cond.Wait()
		timer.Stop()
	}
	if l.closed {
		return false, ErrClosedPort
	}
	return len(l.buf) > 0, nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.cond.Broadcast()
	return nil
}

func (l *Loopback) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// ErrClosedPort is returned by Loopback operations on a closed port.
var ErrClosedPort = errors.New("transport: port closed")
