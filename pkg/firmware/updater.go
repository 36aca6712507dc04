package firmware

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cds55xx/servobus"
	"github.com/cds55xx/servobus/pkg/protocol"
	"github.com/cds55xx/servobus/pkg/transport"
)

// handshakeBaud is the fixed wire speed the bootloader handshake and
// transfer phases run at, independent of the servo's normal operating
// baud rate.
const handshakeBaud = 9600

// State names one of the four session phases, plus the terminal Done
// state reached once a Wave phase completes successfully.
type State int

const (
	StateBoot State = iota
	StateHandshake
	StateTransfer
	StateWave
	StateDone
)

func (s State) String() string {
	switch s {
	case StateBoot:
		return "boot"
	case StateHandshake:
		return "handshake"
	case StateTransfer:
		return "transfer"
	case StateWave:
		return "wave"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Config parameterizes one firmware session: which servo, which port,
// and the bounded-retry budget at each level of the protocol.
type Config struct {
	PortName      string
	OperatingBaud int
	ServoID       byte
	Image         []byte

	TotalRetry         int
	HandshakeThreshold int
	FrameRetryCount    int
	SignRetryCount     int

	// WriteIterations bounds the handshake writer's 0x64 emissions.
	// Defaults to 10.
	WriteIterations int

	// Open opens a transport at the given baud rate. Defaults to
	// transport.Open against PortName; overridable for tests.
	Open func(baud int) (transport.Port, error)
}

func (c *Config) applyDefaults() {
	if c.TotalRetry == 0 {
		c.TotalRetry = 10
	}
	if c.HandshakeThreshold == 0 {
		c.HandshakeThreshold = 5
	}
	if c.FrameRetryCount == 0 {
		c.FrameRetryCount = 5
	}
	if c.SignRetryCount == 0 {
		c.SignRetryCount = 5
	}
	if c.WriteIterations == 0 {
		c.WriteIterations = 10
	}
	if c.Open == nil {
		name := c.PortName
		c.Open = func(baud int) (transport.Port, error) {
			return transport.Open(transport.Config{Name: name, Baud: baud})
		}
	}
}

// Updater drives one servo through the bootloader update session:
// Boot, Handshake, Transfer, Wave. Boot makes a single attempt;
// Handshake, Transfer and Wave each retry within their own bound, and
// the whole session is retried within a further outer bound.
type Updater struct {
	cfg Config

	mu    sync.Mutex
	state State
}

// NewUpdater returns an Updater for the given session configuration.
func NewUpdater(cfg Config) *Updater {
	cfg.applyDefaults()
	return &Updater{cfg: cfg, state: StateBoot}
}

// State reports the phase the most recent (or in-progress) session run
// last entered.
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

func (u *Updater) setState(s State) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}

// Run drives the whole-session retry loop: up to cfg.TotalRetry
// attempts of Boot->Handshake->Transfer->Wave, 2000ms apart, succeeding
// on the first attempt whose Wave phase completes.
func (u *Updater) Run() error {
	var lastErr error
	for attempt := 1; attempt <= u.cfg.TotalRetry; attempt++ {
		log.Infof("[FIRMWARE] session attempt %d/%d", attempt, u.cfg.TotalRetry)
		if err := u.runSession(); err != nil {
			lastErr = err
			log.Warnf("[FIRMWARE] attempt %d failed in phase %s: %v", attempt, u.State(), err)
			if attempt < u.cfg.TotalRetry {
				time.Sleep(2000 * time.Millisecond)
			}
			continue
		}
		u.setState(StateDone)
		return nil
	}
	return fmt.Errorf("%w: %d attempts exhausted, last error: %v", servobus.ErrSessionFailed, u.cfg.TotalRetry, lastErr)
}

func (u *Updater) runSession() error {
	u.setState(StateBoot)
	if err := u.phaseBoot(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	port, err := u.cfg.Open(handshakeBaud)
	if err != nil {
		return fmt.Errorf("handshake: open at %d baud: %w", handshakeBaud, err)
	}
	defer port.Close()

	u.setState(StateHandshake)
	if err := u.phaseHandshake(port); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	u.setState(StateTransfer)
	if err := u.phaseTransfer(port); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	u.setState(StateWave)
	if err := u.phaseWave(port); err != nil {
		return fmt.Errorf("wave: %w", err)
	}

	return nil
}

// phaseBoot opens the servo's normal operating transport, asks it to
// reset into its bootloader, waits 100ms for the reset to take, and
// closes the transport. No reply from the servo is read or awaited;
// failure here means the port could not be opened or the reset frame
// could not be written.
func (u *Updater) phaseBoot() error {
	port, err := u.cfg.Open(u.cfg.OperatingBaud)
	if err != nil {
		return fmt.Errorf("open at %d baud: %w", u.cfg.OperatingBaud, err)
	}
	defer port.Close()

	frame := protocol.New(u.cfg.ServoID).ResetToBootloader()
	if _, err := port.Write(frame); err != nil {
		return fmt.Errorf("write reset-to-bootloader: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

// phaseHandshake spawns a writer emitting 0x64 up to WriteIterations
// times, 100ms apart, and a reader counting 0x43 bytes seen on the
// wire. It returns once the reader has counted at least
// HandshakeThreshold occurrences, or an error once the writer exhausts
// its attempts without reaching that count.
func (u *Updater) phaseHandshake(port transport.Port) error {
	var count int32
	stop := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		buf := make([]byte, 64)
		for {
			select {
			case <-stop:
				return
			default:
			}
			ready, err := port.WaitReadable(50 * time.Millisecond)
			if err != nil {
				return
			}
			if !ready {
				continue
			}
			n, err := port.Read(buf)
			if err != nil {
				return
			}
			for i := 0; i < n; i++ {
				if buf[i] == 0x43 {
					atomic.AddInt32(&count, 1)
				}
			}
		}
	}()

	success := false
	for i := 0; i < u.cfg.WriteIterations; i++ {
		if _, err := port.Write([]byte{0x64}); err != nil {
			close(stop)
			<-readerDone
			return fmt.Errorf("write handshake byte: %w", err)
		}
		if atomic.LoadInt32(&count) >= int32(u.cfg.HandshakeThreshold) {
			success = true
			break
		}
		time.Sleep(100 * time.Millisecond)
		if atomic.LoadInt32(&count) >= int32(u.cfg.HandshakeThreshold) {
			success = true
			break
		}
	}

	close(stop)
	<-readerDone

	if !success {
		return fmt.Errorf("%w: only %d/%d acknowledgements after %d writes",
			servobus.ErrTimeout, atomic.LoadInt32(&count), u.cfg.HandshakeThreshold, u.cfg.WriteIterations)
	}
	log.Debugf("[FIRMWARE] handshake succeeded with %d acknowledgements", atomic.LoadInt32(&count))
	return nil
}

// phaseTransfer slices the image into 128-byte frames and sends each in
// turn, retrying a frame up to FrameRetryCount times, 100ms apart,
// before aborting the phase. The bootloader's acknowledgement content is not
// interpreted — only its arrival within the 1000ms window matters.
func (u *Updater) phaseTransfer(port transport.Port) error {
	acks := make(chan struct{}, 1)
	stop := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		buf := make([]byte, 64)
		for {
			select {
			case <-stop:
				return
			default:
			}
			ready, err := port.WaitReadable(50 * time.Millisecond)
			if err != nil {
				return
			}
			if !ready {
				continue
			}
			n, err := port.Read(buf)
			if err != nil {
				return
			}
			if n > 0 {
				select {
				case acks <- struct{}{}:
				default:
				}
			}
		}
	}()
	defer func() {
		close(stop)
		<-readerDone
	}()

	seq := byte(1)
	for _, chunk := range chunks(u.cfg.Image) {
		frame := buildFrame(seq, chunk)
		acked := false
		for attempt := 1; attempt <= u.cfg.FrameRetryCount; attempt++ {
			select {
			case <-acks:
			default:
			}
			log.Debugf("[FIRMWARE][TX] frame seq=%d attempt=%d/%d", seq, attempt, u.cfg.FrameRetryCount)
			if _, err := port.Write(frame); err != nil {
				return fmt.Errorf("write frame %d: %w", seq, err)
			}
			select {
			case <-acks:
				acked = true
			case <-time.After(1000 * time.Millisecond):
			}
			if acked {
				break
			}
			if attempt < u.cfg.FrameRetryCount {
				time.Sleep(100 * time.Millisecond)
			}
		}
		if !acked {
			return fmt.Errorf("%w: frame %d unacknowledged after %d attempts", servobus.ErrTimeout, seq, u.cfg.FrameRetryCount)
		}
		seq++ // 8-bit wrap is implicit in the byte field
	}
	return nil
}

// phaseWave sends the single end-of-transmission byte up to
// SignRetryCount times, 20ms apart, until one write succeeds.
func (u *Updater) phaseWave(port transport.Port) error {
	for i := 1; i <= u.cfg.SignRetryCount; i++ {
		if _, err := port.Write([]byte{0x04}); err == nil {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("%w: failed to send end-of-transmission byte after %d attempts", servobus.ErrSessionFailed, u.cfg.SignRetryCount)
}
