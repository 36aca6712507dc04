package discovery

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cds55xx/servobus/pkg/protocol"
	"github.com/cds55xx/servobus/pkg/transport"
)

// fakeServoLoopback replies to PING from a fixed set of ids on a loopback port.
func fakeServoLoopback(presentIDs map[byte]bool) *transport.Loopback {
	lb := transport.NewLoopback()
	lb.Respond = func(sent []byte) []byte {
		id := sent[2]
		if !presentIDs[id] {
			return nil
		}
		body := []byte{id, 0x02, 0x00}
		frame := append([]byte{0xFF, 0xFF}, body...)
		return append(frame, protocol.Checksum(body))
	}
	return lb
}

func newTestScanner(t *testing.T, presentIDs map[byte]bool, baudRates []int) (*Scanner, *sync.Map) {
	t.Helper()
	found := &sync.Map{}
	s := &Scanner{
		state: StateIdle,
		open: func(baud int) (transport.Port, error) {
			return fakeServoLoopback(presentIDs), nil
		},
		cfg: Config{
			BaudRates:     baudRates,
			SearchTimeout: 2 * time.Millisecond,
			Verify:        false,
			Callback: func(baud int, id byte, errFlags protocol.ErrorFlags) {
				found.Store(id, baud)
			},
		},
	}
	return s, found
}

func TestScannerFindsConfiguredIDs(t *testing.T) {
	s, found := newTestScanner(t, map[byte]bool{3: true, 9: true}, []int{115200})
	require.NoError(t, s.Start())
	require.Eventually(t, func() bool {
		return s.State() == StateIdle
	}, 5*time.Second, time.Millisecond, "scanner never finished its sweep")
	s.Stop()

	_, ok3 := found.Load(byte(3))
	_, ok9 := found.Load(byte(9))
	assert.True(t, ok3)
	assert.True(t, ok9)
}

func TestScannerStartWhileRunningErrors(t *testing.T) {
	s, _ := newTestScanner(t, map[byte]bool{}, []int{115200, 57600})
	require.NoError(t, s.Start())
	err := s.Start()
	assert.Error(t, err)
	s.Stop()
}

func TestScannerStopIsIdempotent(t *testing.T) {
	s, _ := newTestScanner(t, map[byte]bool{}, []int{115200})
	require.NoError(t, s.Start())
	s.Stop()
	assert.NotPanics(t, func() { s.Stop() })
	assert.Equal(t, StateIdle, s.State())
}

func TestScannerCancelMidSweep(t *testing.T) {
	s, _ := newTestScanner(t, map[byte]bool{}, []int{115200, 57600, 19200})
	require.NoError(t, s.Start())
	time.Sleep(5 * time.Millisecond)
	s.Stop()
	assert.Equal(t, StateIdle, s.State())
}

func TestScannerReturnsToIdleOnNaturalCompletion(t *testing.T) {
	s, _ := newTestScanner(t, map[byte]bool{}, []int{115200})
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool {
		return s.State() == StateIdle
	}, time.Second, time.Millisecond, "scanner never returned to idle after exhausting its baud rates")
}

func TestScannerReportsFaultFlagsFromProbe(t *testing.T) {
	lb := transport.NewLoopback()
	lb.Respond = func(sent []byte) []byte {
		body := []byte{sent[2], 0x02, byte(protocol.ErrorOverheating)}
		frame := append([]byte{0xFF, 0xFF}, body...)
		return append(frame, protocol.Checksum(body))
	}
	found := make(chan protocol.ErrorFlags, 1)
	s := &Scanner{
		state: StateIdle,
		open: func(baud int) (transport.Port, error) {
			return lb, nil
		},
		cfg: Config{
			BaudRates:     []int{115200},
			SearchTimeout: 2 * time.Millisecond,
			Verify:        false,
			Callback: func(baud int, id byte, errFlags protocol.ErrorFlags) {
				select {
				case found <- errFlags:
				default:
				}
			},
		},
	}
	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case errFlags := <-found:
		assert.Equal(t, protocol.ErrorOverheating, errFlags)
	case <-time.After(time.Second):
		t.Fatal("scanner never reported a found servo")
	}
}
