package transport

import (
	"time"

	"github.com/tarm/serial"
)

// Config configures the concrete serial adapter.
type Config struct {
	Name        string
	Baud        int
	Size        byte
	Parity      serial.Parity
	StopBits    serial.StopBits
	ReadTimeout time.Duration
}

// Serial wraps github.com/tarm/serial behind the Port interface.
type Serial struct {
	port   *serial.Port
	closed bool
}

// Open opens the named serial device with the given configuration.
func Open(cfg Config) (*Serial, error) {
	scfg := &serial.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		Size:        cfg.Size,
		Parity:      cfg.Parity,
		StopBits:    cfg.StopBits,
		ReadTimeout: cfg.ReadTimeout,
	}
	if scfg.Size == 0 {
		scfg.Size = 8
	}
	if scfg.ReadTimeout == 0 {
		scfg.ReadTimeout = 50 * time.Millisecond
	}
	p, err := serial.OpenPort(scfg)
	if err != nil {
		return nil, err
	}
	return &Serial{port: p}, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *Serial) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

// BytesAvailable is not exposed by github.com/tarm/serial; callers rely
// on WaitReadable and a Read deadline instead, as the transaction
// engine's reader does. This adapter always reports 0.
func (s *Serial) BytesAvailable() (int, error) {
	return 0, nil
}

func (s *Serial) FlushInput() error {
	return s.port.Flush()
}

// WaitReadable reports readiness without consuming any bytes. tarm's
// driver has no select/poll primitive to ask "would Read block", so this
// adapter always reports ready and relies on the port's own ReadTimeout
// to bound the subsequent Read call; Open sets that timeout from
// Config.ReadTimeout (50ms when unset).
func (s *Serial) WaitReadable(timeout time.Duration) (bool, error) {
	return true, nil
}

func (s *Serial) Close() error {
	s.closed = true
	return s.port.Close()
}

func (s *Serial) IsOpen() bool {
	return !s.closed
}
