// Package discovery implements the cancellable background sweep over a
// set of baud rates and the full identifier space, emitting discovered
// servos through a callback. Each baud rate gets its own PING-every-id
// loop over a freshly opened transport.
package discovery

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cds55xx/servobus/pkg/bus"
	"github.com/cds55xx/servobus/pkg/protocol"
	"github.com/cds55xx/servobus/pkg/transport"
)

// State is the Scanner's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Config controls a discovery sweep.
type Config struct {
	// BaudRates lists every baud rate to try, in order.
	BaudRates []int
	// Verify re-pings a discovered id once before reporting it, guarding
	// against a spurious reply from line noise. It is not defaulted: the
	// zero value false reports an id on its first reply.
	Verify bool
	// SearchTimeout bounds how long the scanner waits for a PING reply
	// from each id. Defaults to 500ms.
	SearchTimeout time.Duration
	// Callback is invoked for every servo found, from the scanner's
	// worker goroutine.
	Callback func(baud int, id byte, errFlags protocol.ErrorFlags)
}

func (c *Config) applyDefaults() {
	if c.SearchTimeout == 0 {
		c.SearchTimeout = 500 * time.Millisecond
	}
}

// openFunc opens a transport.Port at the given baud rate. Reopening per
// baud rate is necessary because the scanner must reconfigure the wire
// speed between sweeps.
type openFunc func(baud int) (transport.Port, error)

// Scanner runs a cancellable background sweep over Config.BaudRates x
// the full non-broadcast identifier space. The caller owns the value;
// there is no process-wide singleton.
type Scanner struct {
	open openFunc
	cfg  Config

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

// NewScanner returns a Scanner that sweeps the named serial port,
// reopening it at each of cfg.BaudRates in turn.
func NewScanner(portName string, cfg Config) *Scanner {
	cfg.applyDefaults()
	open := func(baud int) (transport.Port, error) {
		return transport.Open(transport.Config{Name: portName, Baud: baud})
	}
	return &Scanner{open: open, cfg: cfg, state: StateIdle}
}

// State reports the scanner's current lifecycle state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins the sweep in a background goroutine. Calling Start while
// already running returns an error.
func (s *Scanner) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("discovery: scanner already %s", s.state)
	}
	s.state = StateRunning
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	return nil
}

// Stop cancels an in-progress sweep and blocks until the worker has
// fully exited. Calling Stop when idle is a no-op.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

func (s *Scanner) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer s.finish()
	for _, baud := range s.cfg.BaudRates {
		if s.sweepBaud(baud, stop) {
			return
		}
	}
}

// finish returns the scanner to idle once the worker goroutine exits on
// its own, exhausting every baud rate without a Stop call. Stop performs
// its own transition to idle after joining done, so this is a no-op when
// the sweep was cancelled rather than left to finish naturally.
func (s *Scanner) finish() {
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

// sweepBaud scans every id at one baud rate. It returns true if the
// sweep was cancelled mid-flight.
func (s *Scanner) sweepBaud(baud int, stop <-chan struct{}) bool {
	port, err := s.open(baud)
	if err != nil {
		log.Warnf("[DISCOVERY] failed to open port at %d baud: %v", baud, err)
		return false
	}
	engine := bus.NewEngine(port)
	if err := engine.Init(); err != nil {
		log.Warnf("[DISCOVERY] failed to init engine at %d baud: %v", baud, err)
		port.Close()
		return false
	}
	defer engine.Close()

	for id := byte(0); id < protocol.BroadcastID; id++ {
		select {
		case <-stop:
			return true
		default:
		}
		if s.probe(engine, baud, id) {
			continue
		}
	}
	return false
}

// probe pings one id and, on reply, reports it through Callback after an
// optional re-verification ping.
func (s *Scanner) probe(engine *bus.Engine, baud int, id byte) bool {
	frame := protocol.New(id).Ping()
	_, errFlags, err := engine.SendAndWait(frame, s.cfg.SearchTimeout)
	if err != nil {
		return false
	}

	if s.cfg.Verify {
		_, verifyFlags, err := engine.SendAndWait(frame, s.cfg.SearchTimeout)
		if err != nil {
			log.Debugf("[DISCOVERY] id %d at %d baud failed re-verification", id, baud)
			return false
		}
		errFlags = verifyFlags
	}
	if s.cfg.Callback != nil {
		s.cfg.Callback(baud, id, errFlags)
	}
	return true
}
