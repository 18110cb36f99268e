package snapio

import (
	"context"
	"errors"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-snapio/logger"
	"github.com/arloliu/go-snapio/memmap"
	"github.com/arloliu/go-snapio/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []ConnState
}

func (r *stateRecorder) handler(_ *Connection, _ ConnState, newState ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, newState)
}

func (r *stateRecorder) get() []ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]ConnState(nil), r.states...)
}

func newPollTestConn(t *testing.T, opts ...ConnOption) (*Connection, *fakeDialer, *fakeClock) {
	t.Helper()

	dialer := &fakeDialer{}
	clock := &fakeClock{}
	cfg := newTestConfig(t, append([]ConnOption{WithDialer(dialer), WithClock(clock)}, opts...)...)

	conn, err := NewConnection(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn, dialer, clock
}

func TestPollOpen_PendingThenReady(t *testing.T) {
	require := require.New(t)

	rec := &stateRecorder{}
	conn, dialer, clock := newPollTestConn(t, WithStateChangeHandler(rec.handler))
	require.Equal(DisconnectedState, conn.State())

	require.NoError(conn.BeginOpen())
	require.Equal(ConnectingState, conn.State())

	clock.advance(500 * time.Millisecond)
	status, err := conn.PollOpen()
	require.NoError(err)
	require.Equal(OpenPending, status)

	_, err = conn.ReadQuad(memmap.StatusReadPUCFlag)
	require.ErrorIs(err, ErrNotConnectedYet)

	local, remote := net.Pipe()
	defer remote.Close()
	dialer.last().complete(local)

	status, err = conn.PollOpen()
	require.NoError(err)
	require.Equal(OpenReady, status)
	require.Equal(ConnectedState, conn.State())

	// polling again after completion is harmless
	status, err = conn.PollOpen()
	require.NoError(err)
	require.Equal(OpenReady, status)

	require.Equal([]ConnState{ConnectingState, ConnectedState}, rec.get())
	require.Equal(int64(1), conn.GetMetrics().OpenCount.Value())
}

func TestPollOpen_Timeout(t *testing.T) {
	require := require.New(t)

	rec := &stateRecorder{}
	conn, dialer, clock := newPollTestConn(t, WithStateChangeHandler(rec.handler))
	clock.set(1000)

	require.NoError(conn.BeginOpen())

	// elapsed == timeout is not yet a timeout
	clock.advance(time.Second)
	status, err := conn.PollOpen()
	require.NoError(err)
	require.Equal(OpenPending, status)

	clock.advance(time.Millisecond)
	status, err = conn.PollOpen()
	require.ErrorIs(err, ErrOpenTimeout)
	require.True(IsTimeout(err))
	require.Equal(OpenTimedOut, status)
	require.Equal(DisconnectedState, conn.State())
	require.True(dialer.last().isCanceled())

	require.Equal([]ConnState{ConnectingState, TimedOutState, DisconnectedState}, rec.get())

	_, err = conn.ReadQuad(memmap.StatusReadPUCFlag)
	require.ErrorIs(err, ErrNotConnected)
}

func TestPollOpen_TickWrap(t *testing.T) {
	require := require.New(t)

	conn, _, clock := newPollTestConn(t)
	clock.set(math.MaxUint32 - 100)
	require.NoError(conn.BeginOpen())

	// the counter wrapped: measurement restarts from zero
	clock.set(200)
	status, err := conn.PollOpen()
	require.NoError(err)
	require.Equal(OpenPending, status)

	clock.set(1001)
	status, err = conn.PollOpen()
	require.ErrorIs(err, ErrOpenTimeout)
	require.Equal(OpenTimedOut, status)
}

func TestPollOpen_ConnectFailed(t *testing.T) {
	conn, dialer, _ := newPollTestConn(t)
	require.NoError(t, conn.BeginOpen())

	dialer.last().fail(errors.New("connection refused"))

	status, err := conn.PollOpen()
	require.ErrorIs(t, err, ErrConnectFailed)
	assert.Equal(t, OpenFailed, status)
	assert.Equal(t, DisconnectedState, conn.State())
	assert.Equal(t, int64(1), conn.GetMetrics().OpenFailCount.Value())
}

func TestBeginOpen_NoTransport(t *testing.T) {
	conn, dialer, _ := newPollTestConn(t)
	dialer.err = errors.New("out of sockets")

	err := conn.BeginOpen()
	require.ErrorIs(t, err, ErrNoTransport)
	assert.Equal(t, DisconnectedState, conn.State())
}

func TestBeginOpen_ReleasesPreviousAttempt(t *testing.T) {
	conn, dialer, _ := newPollTestConn(t)

	require.NoError(t, conn.BeginOpen())
	first := dialer.last()

	require.NoError(t, conn.BeginOpen())
	assert.True(t, first.isCanceled())
	assert.NotSame(t, first, dialer.last())
	assert.Equal(t, ConnectingState, conn.State())
}

func TestPollOpen_NotOpening(t *testing.T) {
	conn, _, _ := newPollTestConn(t)

	status, err := conn.PollOpen()
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, OpenFailed, status)
}

func TestWaitOpen_ContextCanceled(t *testing.T) {
	conn, dialer, _ := newPollTestConn(t, WithPollInterval(time.Millisecond))
	require.NoError(t, conn.BeginOpen())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := conn.WaitOpen(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, dialer.last().isCanceled())
	assert.Equal(t, DisconnectedState, conn.State())
}

func TestWaitOpen_Ready(t *testing.T) {
	conn, dialer, _ := newPollTestConn(t, WithPollInterval(time.Millisecond))
	require.NoError(t, conn.BeginOpen())

	local, remote := net.Pipe()
	defer remote.Close()

	go func() {
		time.Sleep(5 * time.Millisecond)
		dialer.last().complete(local)
	}()

	require.NoError(t, conn.WaitOpen(context.Background()))
	assert.Equal(t, ConnectedState, conn.State())
}

func TestPollOpen_AutoHandshake(t *testing.T) {
	require := require.New(t)

	conn, dialer, _ := newPollTestConn(t, WithAutoHandshake(true))
	require.NoError(conn.BeginOpen())

	local, remote := net.Pipe()
	defer remote.Close()

	seen := runRemote(t, remote,
		quadResponse(packet.CodeAck, 1),
		writeResponse(packet.CodeAck),
	)
	dialer.last().complete(local)

	status, err := conn.PollOpen()
	require.NoError(err)
	require.Equal(OpenReady, status)

	reqs := collect(seen)
	require.Len(reqs, 2)
	require.Equal(packet.ReadQuadlet{Offset: memmap.StatusReadPUCFlag}, reqs[0])
	require.Equal(packet.WriteQuadlet{Offset: memmap.StatusWriteOperation, Value: 1}, reqs[1])
}

func TestPollOpen_AutoHandshakeNoPUC(t *testing.T) {
	conn, dialer, _ := newPollTestConn(t, WithAutoHandshake(true))
	require.NoError(t, conn.BeginOpen())

	local, remote := net.Pipe()
	defer remote.Close()

	seen := runRemote(t, remote, quadResponse(packet.CodeAck, 0))
	dialer.last().complete(local)

	status, err := conn.PollOpen()
	require.NoError(t, err)
	assert.Equal(t, OpenReady, status)
	assert.Len(t, collect(seen), 1)
}

func TestPollOpen_AutoHandshakeFails(t *testing.T) {
	conn, dialer, _ := newPollTestConn(t, WithAutoHandshake(true))
	require.NoError(t, conn.BeginOpen())

	local, remote := net.Pipe()
	defer remote.Close()

	runRemote(t, remote, noResponse())
	dialer.last().complete(local)

	status, err := conn.PollOpen()
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, OpenFailed, status)
	// the transport stays up so the caller can inspect or close
	assert.Equal(t, ConnectedState, conn.State())
}

func TestClose_Idempotent(t *testing.T) {
	rec := &stateRecorder{}
	conn, _ := newConnectedPair(t, WithStateChangeHandler(rec.handler))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, DisconnectedState, conn.State())
	assert.Equal(t, []ConnState{ConnectingState, ConnectedState, DisconnectedState}, rec.get())

	err := conn.WriteQuad(memmap.StatusWriteOperation, 1)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestStateHandler_MayCallBack(t *testing.T) {
	var closeErr error

	dialer := &fakeDialer{}
	cfg := newTestConfig(t, WithDialer(dialer), WithClock(&fakeClock{}),
		WithStateChangeHandler(func(c *Connection, _ ConnState, newState ConnState) {
			if newState == ConnectedState {
				closeErr = c.Close()
			}
		}),
	)
	conn, err := NewConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, conn.BeginOpen())

	local, remote := net.Pipe()
	defer remote.Close()
	dialer.last().complete(local)

	_, err = conn.PollOpen()
	require.NoError(t, err)
	require.NoError(t, closeErr)
	assert.Equal(t, DisconnectedState, conn.State())
}

func TestNotConnected_NoNetwork(t *testing.T) {
	conn, _, _ := newPollTestConn(t)

	_, err := conn.ReadQuad(0)
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = conn.ReadBlock(0, 8)
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, conn.WriteBlock(0, []byte{1}), ErrNotConnected)
	_, err = conn.ReadFloat(0)
	require.ErrorIs(t, err, ErrNotConnected)

	assert.Zero(t, conn.GetMetrics().RequestCount.Value())
}

func TestSetTimeout(t *testing.T) {
	conn, _, _ := newPollTestConn(t)

	require.NoError(t, conn.SetTimeout(2*time.Second))
	assert.Equal(t, 2*time.Second, conn.Timeout())
	require.Error(t, conn.SetTimeout(0))
	assert.Equal(t, 2*time.Second, conn.Timeout())
}

func TestOpen_Helper(t *testing.T) {
	dialer := &fakeDialer{}
	conn, err := Open("10.0.0.5", DefaultPort, 5*time.Second, true, WithDialer(dialer))
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, ConnectingState, conn.State())
	assert.True(t, conn.Config().AutoHandshake())
	assert.Equal(t, 5*time.Second, conn.Config().OpenTimeout())
	assert.NotNil(t, dialer.last())
}

func TestReadQuad_Labels(t *testing.T) {
	conn, remote := newConnectedPair(t)

	var labels []uint8
	step := func(_ packet.Request, label uint8) []byte {
		labels = append(labels, label)
		b, _ := packet.EncodeReadQuadResponse(label, packet.CodeAck, uint32(label))
		return b
	}
	seen := runRemote(t, remote, step, step, step)

	for want := uint32(1); want <= 3; want++ {
		v, err := conn.ReadQuad(memmap.StatusReadLastError)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	reqs := collect(seen)
	require.Len(t, reqs, 3)
	assert.Equal(t, []uint8{1, 2, 3}, labels)
	assert.Equal(t, packet.ReadQuadlet{Offset: 0xF030000C}, reqs[0])
	assert.Equal(t, int64(3), conn.GetMetrics().ResponseCount.Value())
}

func TestBeginOpen_RestartsLabels(t *testing.T) {
	conn, dialer, _ := newPollTestConn(t)

	echoLabel := func(_ packet.Request, label uint8) []byte {
		b, _ := packet.EncodeReadQuadResponse(label, packet.CodeAck, uint32(label))
		return b
	}

	open := func() net.Conn {
		require.NoError(t, conn.BeginOpen())
		local, remote := net.Pipe()
		t.Cleanup(func() { _ = remote.Close() })
		dialer.last().complete(local)

		status, err := conn.PollOpen()
		require.NoError(t, err)
		require.Equal(t, OpenReady, status)

		return remote
	}

	runRemote(t, open(), echoLabel, echoLabel)
	for want := uint32(1); want <= 2; want++ {
		v, err := conn.ReadQuad(0)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	// a reopened connection starts a fresh label sequence
	runRemote(t, open(), echoLabel)
	v, err := conn.ReadQuad(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
}

func TestFloat_BitPattern(t *testing.T) {
	conn, remote := newConnectedPair(t)

	seen := runRemote(t, remote,
		quadResponse(packet.CodeAck, 0x40490FDB),
		writeResponse(packet.CodeAck),
	)

	f, err := conn.ReadFloat(memmap.AnalogPointReadValue.Addr(2))
	require.NoError(t, err)
	assert.Equal(t, math.Float32frombits(0x40490FDB), f)
	assert.InDelta(t, 3.14159274, f, 1e-7)

	require.NoError(t, conn.WriteFloat(memmap.AnalogPointWriteValue.Addr(2), f))

	reqs := collect(seen)
	require.Len(t, reqs, 2)
	assert.Equal(t, packet.ReadQuadlet{Offset: 0xF0A00080}, reqs[0])
	assert.Equal(t, packet.WriteQuadlet{Offset: 0xF0B00080, Value: 0x40490FDB}, reqs[1])
}

func TestReadBlock_Padding(t *testing.T) {
	for _, n := range []int{5, 20, 44} {
		conn, remote := newConnectedPair(t)

		data := make([]byte, n)
		for i := range data {
			data[i] = byte(0xA0 + i)
		}
		seen := runRemote(t, remote, blockResponse(packet.CodeAck, data))

		got, err := conn.ReadBlock(memmap.StatusReadBase, n)
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, data, got, "n=%d", n)
		assert.Equal(t, packet.ReadBlock{Offset: memmap.StatusReadBase, Length: uint16(n)}, collect(seen)[0])
	}
}

func TestReadBlock_WrongLength(t *testing.T) {
	conn, remote := newConnectedPair(t)
	runRemote(t, remote, blockResponse(packet.CodeAck, make([]byte, 4)))

	_, err := conn.ReadBlock(memmap.StatusReadBase, 8)
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestNak_ResolvesLastError(t *testing.T) {
	require := require.New(t)

	conn, remote := newConnectedPair(t)
	seen := runRemote(t, remote,
		writeResponse(packet.CodeNak),
		quadResponse(packet.CodeAck, uint32(InvalidAddress)),
	)

	err := conn.WriteQuad(0x12345678, 1)
	require.ErrorIs(err, ErrDeviceNak)

	var devErr *DeviceError
	require.ErrorAs(err, &devErr)
	require.Equal(InvalidAddress, devErr.Code)
	require.Equal(uint32(0x12345678), devErr.Addr)

	code, ok := IsDeviceError(err)
	require.True(ok)
	require.Equal(DeviceErrorCode(57349), code)

	reqs := collect(seen)
	require.Len(reqs, 2)
	require.Equal(packet.ReadQuadlet{Offset: memmap.StatusReadLastError}, reqs[1])
	require.Equal(int64(1), conn.GetMetrics().NakCount.Value())
}

func TestNak_UnknownCodePassesThrough(t *testing.T) {
	conn, remote := newConnectedPair(t)
	runRemote(t, remote,
		quadResponse(packet.CodeNak, 0),
		quadResponse(packet.CodeAck, 0xBEEF),
	)

	_, err := conn.ReadQuad(0)
	code, ok := IsDeviceError(err)
	require.True(t, ok)
	assert.Equal(t, DeviceErrorCode(0xBEEF), code)
	assert.False(t, code.IsKnown())
	assert.Contains(t, err.Error(), "48879")
}

func TestNak_SecondaryNak(t *testing.T) {
	conn, remote := newConnectedPair(t)
	seen := runRemote(t, remote,
		writeResponse(packet.CodeNak),
		quadResponse(packet.CodeNak, 0),
	)

	err := conn.WriteQuad(0, 1)
	require.ErrorIs(t, err, ErrDeviceNak)
	_, ok := IsDeviceError(err)
	assert.False(t, ok)

	// never chained into a third lookup
	assert.Len(t, collect(seen), 2)
}

func TestNak_SecondaryTimeout(t *testing.T) {
	conn, remote := newConnectedPair(t)
	runRemote(t, remote,
		writeResponse(packet.CodeNak),
		noResponse(),
	)

	err := conn.WriteQuad(0, 1)
	require.ErrorIs(t, err, ErrTimeout)
	assert.False(t, errors.Is(err, ErrDeviceNak))
}

func TestLabelMismatch(t *testing.T) {
	conn, remote := newConnectedPair(t)

	mislabeled := func(code packet.ResponseCode) remoteStep {
		return func(_ packet.Request, label uint8) []byte {
			b, _ := packet.EncodeWriteResponse(label+1, code)
			return b
		}
	}
	seen := runRemote(t, remote, mislabeled(packet.CodeAck), mislabeled(packet.CodeNak))

	err := conn.WriteQuad(0, 1)
	require.ErrorIs(t, err, ErrLabelMismatch)
	require.ErrorIs(t, err, ErrMalformedResponse)

	// a mismatched NAK is a protocol error, not a device error
	err = conn.WriteQuad(0, 1)
	require.ErrorIs(t, err, ErrLabelMismatch)
	assert.False(t, errors.Is(err, ErrDeviceNak))

	assert.Len(t, collect(seen), 2)
	assert.Equal(t, int64(2), conn.GetMetrics().MalformedCount.Value())
}

func TestTimeout_ConnectionStaysOpen(t *testing.T) {
	conn, remote := newConnectedPair(t, WithTimeout(50*time.Millisecond))
	runRemote(t, remote, noResponse(), quadResponse(packet.CodeAck, 7))

	_, err := conn.ReadQuad(0)
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, ConnectedState, conn.State())

	v, err := conn.ReadQuad(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)
	assert.Equal(t, int64(1), conn.GetMetrics().TimeoutCount.Value())
}

func TestMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		step remoteStep
	}{
		{"unknown response code", quadResponse(packet.ResponseCode(3), 0)},
		{"wrong response kind", writeResponse(packet.CodeAck)},
		{"unknown tcode", func(_ packet.Request, label uint8) []byte {
			b, _ := packet.EncodeWriteResponse(label, packet.CodeAck)
			b[3] = 0xF0
			return b
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, remote := newConnectedPair(t)
			runRemote(t, remote, tt.step)

			_, err := conn.ReadQuad(0)
			require.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestMalformedResponses_WrongKindBeforeBody(t *testing.T) {
	// a read-block header declaring a 64-byte body that never arrives
	blockHeader := func(_ packet.Request, label uint8) []byte {
		b, _ := packet.EncodeReadBlockResponse(label, packet.CodeAck, make([]byte, 64))
		return b[:packet.ReadBlockResponseSize]
	}

	tests := []struct {
		name string
		call func(*Connection) error
	}{
		{"read quadlet", func(c *Connection) error {
			_, err := c.ReadQuad(0)
			return err
		}},
		{"write quadlet", func(c *Connection) error {
			return c.WriteQuad(0, 1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, remote := newConnectedPair(t, WithTimeout(2*time.Second))
			runRemote(t, remote, blockHeader)

			start := time.Now()
			err := tt.call(conn)
			require.ErrorIs(t, err, ErrMalformedResponse)
			assert.False(t, IsTimeout(err))
			assert.Less(t, time.Since(start), time.Second)

			m := conn.GetMetrics()
			assert.Zero(t, m.TimeoutCount.Value())
			assert.Equal(t, int64(1), m.MalformedCount.Value())
		})
	}
}

func TestRecvFailed(t *testing.T) {
	conn, remote := newConnectedPair(t)
	go func() {
		_, _, _ = readRemoteRequest(remote)
		_ = remote.Close()
	}()

	_, err := conn.ReadQuad(0)
	require.ErrorIs(t, err, ErrRecvFailed)
}

func TestSendFailed(t *testing.T) {
	conn, remote := newConnectedPair(t)
	require.NoError(t, remote.Close())

	err := conn.WriteQuad(0, 1)
	require.ErrorIs(t, err, ErrSendFailed)
	assert.Equal(t, int64(1), conn.GetMetrics().SendErrCount.Value())
}

func TestNak_LogsWarning(t *testing.T) {
	l := logger.NewMockLogger()
	l.On("Warn", "snapio: request rejected", mock.Anything).Once()
	l.AllowLevels("Debug", "Info")

	conn, remote := newConnectedPair(t, WithLogger(l))
	runRemote(t, remote,
		writeResponse(packet.CodeNak),
		quadResponse(packet.CodeAck, uint32(Busy)),
	)

	err := conn.WriteQuad(memmap.StatusWriteOperation, 1)
	code, ok := IsDeviceError(err)
	require.True(t, ok)
	assert.Equal(t, "busy", code.String())

	l.AssertExpectations(t)
}
