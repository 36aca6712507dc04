package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cds55xx/servobus"
	"github.com/cds55xx/servobus/pkg/protocol"
	"github.com/cds55xx/servobus/pkg/transport"
)

func statusFrame(id byte, errFlags byte, params ...byte) []byte {
	body := append([]byte{id, byte(2 + len(params)), errFlags}, params...)
	frame := append([]byte{0xFF, 0xFF}, body...)
	return append(frame, protocol.Checksum(body))
}

func TestSendAndWaitCorrelatesResponse(t *testing.T) {
	lb := transport.NewLoopback()
	lb.Respond = func(sent []byte) []byte {
		id := sent[2]
		return statusFrame(id, 0, 0x20)
	}
	e := NewEngine(lb)
	require.NoError(t, e.Init())
	defer e.Close()

	frame := protocol.New(1).Ping()
	payload, errFlags, err := e.SendAndWait(frame, time.Second)
	require.NoError(t, err)
	assert.True(t, errFlags.None())
	assert.Equal(t, []byte{0x20}, payload)
}

func TestSendAndWaitReportsErrorFlags(t *testing.T) {
	lb := transport.NewLoopback()
	lb.Respond = func(sent []byte) []byte {
		return statusFrame(sent[2], byte(protocol.ErrorOverheating), 0x00)
	}
	e := NewEngine(lb)
	require.NoError(t, e.Init())
	defer e.Close()

	_, errFlags, err := e.SendAndWait(protocol.New(1).Ping(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrorOverheating, errFlags)
}

func TestSendAndWaitRejectsBroadcast(t *testing.T) {
	lb := transport.NewLoopback()
	e := NewEngine(lb)
	require.NoError(t, e.Init())
	defer e.Close()

	_, _, err := e.SendAndWait(protocol.Broadcast().Ping(), time.Second)
	assert.ErrorIs(t, err, servobus.ErrBroadcastNoReply)
}

func TestSendAndWaitTimesOut(t *testing.T) {
	lb := transport.NewLoopback()
	e := NewEngine(lb)
	require.NoError(t, e.Init())
	defer e.Close()

	frame := protocol.New(1).Ping()
	_, _, err := e.SendAndWait(frame, 30*time.Millisecond)
	assert.Error(t, err)
}

func TestSendAndWaitConcurrentCallersGetOwnResponse(t *testing.T) {
	lb := transport.NewLoopback()
	lb.Respond = func(sent []byte) []byte {
		id := sent[2]
		return statusFrame(id, 0, id*10)
	}
	e := NewEngine(lb)
	require.NoError(t, e.Init())
	defer e.Close()

	var wg sync.WaitGroup
	for id := byte(1); id <= 5; id++ {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame := protocol.New(id).Ping()
			payload, _, err := e.SendAndWait(frame, time.Second)
			assert.NoError(t, err)
			assert.Equal(t, []byte{id * 10}, payload)
		}()
	}
	wg.Wait()
}

func TestOnBroadcastCalledForUnmatchedReply(t *testing.T) {
	lb := transport.NewLoopback()
	e := NewEngine(lb)

	received := make(chan byte, 1)
	e.OnBroadcast(func(id byte, errFlags protocol.ErrorFlags, payload []byte) {
		received <- id
	})
	require.NoError(t, e.Init())
	defer e.Close()

	lb.Inject(statusFrame(7, 0))
	select {
	case id := <-received:
		assert.Equal(t, byte(7), id)
	case <-time.After(time.Second):
		t.Fatal("broadcast handler not invoked")
	}
}

func TestSendNoWait(t *testing.T) {
	lb := transport.NewLoopback()
	e := NewEngine(lb)
	require.NoError(t, e.Init())
	defer e.Close()

	ok, err := e.SendNoWait(protocol.Broadcast().Action())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, protocol.Broadcast().Action(), lb.Written)
}
