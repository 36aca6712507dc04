// Package bus implements the half-duplex request/response transaction
// engine: one serializing send lock, a single outstanding waiter keyed
// by the responding servo's id, and a reader goroutine that frames raw
// bytes off the wire and either resolves a waiter or forwards an
// unsolicited broadcast reply to a callback.
package bus

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cds55xx/servobus"
	"github.com/cds55xx/servobus/internal/framebuf"
	"github.com/cds55xx/servobus/pkg/protocol"
	"github.com/cds55xx/servobus/pkg/transport"
)

// BroadcastHandler is invoked for every validly framed status packet
// received with no matching waiter — the normal case for a response to
// a broadcast command, which no single caller is blocked waiting on.
type BroadcastHandler func(id byte, errFlags protocol.ErrorFlags, payload []byte)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithDirectionLine arms an RS-485 direction-control line to be driven
// high for the duration of each write and low immediately after.
func WithDirectionLine(line transport.DirectionLine) Option {
	return func(e *Engine) { e.direction = line }
}

// WithReadBufferHint sizes the reader's initial frame buffer capacity.
func WithReadBufferHint(n int) Option {
	return func(e *Engine) { e.readBufHint = n }
}

// response is the dispatch payload handed from the reader goroutine to
// either a blocked waiter or the broadcast handler.
type response struct {
	id      byte
	errors  protocol.ErrorFlags
	payload []byte
}

type waiter struct {
	id byte
	ch chan response
}

// Engine is the half-duplex transaction engine: one send lock, one
// outstanding waiter per servo id, and a reader goroutine that frames
// incoming bytes and dispatches them.
type Engine struct {
	port      transport.Port
	direction transport.DirectionLine

	sendMu sync.Mutex // serializes Write + waiter registration

	waitersMu sync.Mutex
	waiters   map[byte]*waiter

	onBroadcast BroadcastHandler

	readBufHint int
	stopCh      chan struct{}
	wg          sync.WaitGroup
	running     bool
}

// NewEngine returns an Engine driving the given port. Call Init to start
// its reader goroutine before sending anything.
func NewEngine(port transport.Port, opts ...Option) *Engine {
	e := &Engine{
		port:        port,
		waiters:     make(map[byte]*waiter),
		readBufHint: 256,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init starts the reader goroutine.
func (e *Engine) Init() error {
	if e.running {
		return nil
	}
	e.stopCh = make(chan struct{})
	e.running = true
	e.wg.Add(1)
	go e.readLoop()
	return nil
}

// Close stops the reader goroutine, joins it, and releases the port.
func (e *Engine) Close() error {
	if !e.running {
		return nil
	}
	close(e.stopCh)
	e.wg.Wait()
	e.running = false
	return e.port.Close()
}

// OnBroadcast registers the callback invoked for status packets with no
// matching waiter.
func (e *Engine) OnBroadcast(cb BroadcastHandler) {
	e.onBroadcast = cb
}

// SendNoWait transmits frame and returns immediately without
// registering a waiter, for broadcast commands that elicit no reply
// (ACTION, SYNC_WRITE) or fire-and-forget writes to BroadcastID.
func (e *Engine) SendNoWait(frame []byte) (bool, error) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	return e.writeLocked(frame)
}

// SendAndWait transmits frame, registers a waiter for the id the frame
// is addressed to, and blocks until a matching response arrives or
// timeout elapses. It holds the send lock for the entire round trip, not
// just the write, so at most one request is ever in flight on the wire.
// Returns the response payload and its decoded error-flag byte, so
// callers can observe a servo fault instead of only seeing it logged.
// frame addressed to protocol.BroadcastID never elicits a reply and
// fails immediately with servobus.ErrBroadcastNoReply.
func (e *Engine) SendAndWait(frame []byte, timeout time.Duration) ([]byte, protocol.ErrorFlags, error) {
	if len(frame) < 3 {
		return nil, 0, fmt.Errorf("%w: frame too short to address", servobus.ErrProtocol)
	}
	id := frame[2]
	if id == protocol.BroadcastID {
		return nil, 0, servobus.ErrBroadcastNoReply
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	w := &waiter{id: id, ch: make(chan response, 1)}
	e.waitersMu.Lock()
	e.waiters[id] = w
	e.waitersMu.Unlock()

	_, err := e.writeLocked(frame)
	if err != nil {
		e.waitersMu.Lock()
		delete(e.waiters, id)
		e.waitersMu.Unlock()
		return nil, 0, err
	}

	select {
	case resp := <-w.ch:
		if !resp.errors.None() {
			log.Debugf("[BUS][RX] id=%d error flags: %s", resp.id, resp.errors.Describe())
		}
		return resp.payload, resp.errors, nil
	case <-e.stopCh:
		e.waitersMu.Lock()
		delete(e.waiters, id)
		e.waitersMu.Unlock()
		return nil, 0, fmt.Errorf("%w: engine closed while waiting for id %d", servobus.ErrClosed, id)
	case <-time.After(timeout):
		e.waitersMu.Lock()
		delete(e.waiters, id)
		e.waitersMu.Unlock()
		return nil, 0, fmt.Errorf("%w: no response from id %d within %s", servobus.ErrTimeout, id, timeout)
	}
}

func (e *Engine) writeLocked(frame []byte) (bool, error) {
	if e.direction != nil {
		if err := e.direction.Set(transport.LevelTransmit); err != nil {
			return false, err
		}
		defer e.direction.Set(transport.LevelReceive)
	}
	log.Debugf("[BUS][TX] % x", frame)
	_, err := e.port.Write(frame)
	if err != nil {
		return false, fmt.Errorf("%w: %v", servobus.ErrClosed, err)
	}
	return true, nil
}

// readLoop accumulates bytes, resynchronizes on the 0xFF 0xFF marker,
// validates each frame's checksum and dispatches it to a waiter or the
// broadcast handler.
func (e *Engine) readLoop() {
	defer e.wg.Done()
	buf := framebuf.New(e.readBufHint)
	scratch := make([]byte, 128)

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		ready, err := e.port.WaitReadable(50 * time.Millisecond)
		if err != nil {
			return
		}
		if !ready {
			continue
		}
		n, err := e.port.Read(scratch)
		if err != nil {
			log.Warnf("[BUS][RX] read error: %v", err)
			return
		}
		if n == 0 {
			continue
		}
		buf.Append(scratch[:n])

		for {
			idx := buf.FindMarker([2]byte{0xFF, 0xFF})
			if idx < 0 {
				if buf.Len() > 1 {
					buf.Discard(buf.Len() - 1)
				}
				break
			}
			if idx > 0 {
				buf.Discard(idx)
			}
			if buf.Len() < 4 {
				break
			}
			declared := int(buf.Bytes()[3])
			total := 4 + declared
			if buf.Len() < total {
				break
			}
			frame := append([]byte(nil), buf.Bytes()[:total]...)
			buf.Discard(total)

			id, errFlags, payload, err := protocol.ValidateAndExtract(frame)
			if err != nil {
				log.Warnf("[BUS][RX] dropping malformed frame: %v", err)
				continue
			}
			e.dispatch(id, errFlags, payload)
		}
	}
}

func (e *Engine) dispatch(id byte, errFlags protocol.ErrorFlags, payload []byte) {
	e.waitersMu.Lock()
	w, ok := e.waiters[id]
	if ok {
		delete(e.waiters, id)
	}
	e.waitersMu.Unlock()

	if ok {
		w.ch <- response{id: id, errors: errFlags, payload: payload}
		return
	}
	if e.onBroadcast != nil {
		e.onBroadcast(id, errFlags, payload)
	}
}
