package snapio

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-snapio/packet"
	"github.com/stretchr/testify/require"
)

// fakeClock is a Clock tests advance by hand.
type fakeClock struct {
	now atomic.Uint32
}

func (c *fakeClock) Ticks() uint32 { return c.now.Load() }

func (c *fakeClock) set(v uint32) { c.now.Store(v) }

func (c *fakeClock) advance(d time.Duration) { c.now.Add(uint32(d.Milliseconds())) }

// fakeDialer hands out scripted dials.
type fakeDialer struct {
	mu    sync.Mutex
	dials []*fakeDial
	err   error
}

func (d *fakeDialer) Dial(string) (PendingDial, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}

	p := &fakeDial{}
	d.dials = append(d.dials, p)

	return p, nil
}

func (d *fakeDialer) last() *fakeDial {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.dials) == 0 {
		return nil
	}

	return d.dials[len(d.dials)-1]
}

// fakeDial completes when the test calls complete or fail.
type fakeDial struct {
	mu       sync.Mutex
	conn     net.Conn
	err      error
	done     bool
	canceled bool
}

func (p *fakeDial) Poll() (net.Conn, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.conn, p.done, p.err
}

func (p *fakeDial) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceled = true
}

func (p *fakeDial) complete(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn, p.done = conn, true
}

func (p *fakeDial) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err, p.done = err, true
}

func (p *fakeDial) isCanceled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.canceled
}

// newTestConfig creates a ConnectionConfig with short timeouts suitable for tests.
func newTestConfig(t *testing.T, opts ...ConnOption) *ConnectionConfig {
	t.Helper()

	defaults := []ConnOption{
		WithTimeout(200 * time.Millisecond),
		WithOpenTimeout(time.Second),
	}

	cfg, err := NewConnectionConfig("127.0.0.1", DefaultPort, append(defaults, opts...)...)
	require.NoError(t, err)

	return cfg
}

// newConnectedPair opens a Connection over net.Pipe and returns it with the
// remote (unit) end of the pipe.
func newConnectedPair(t *testing.T, opts ...ConnOption) (*Connection, net.Conn) {
	t.Helper()

	dialer := &fakeDialer{}
	cfg := newTestConfig(t, append([]ConnOption{WithDialer(dialer), WithClock(&fakeClock{})}, opts...)...)

	conn, err := NewConnection(cfg)
	require.NoError(t, err)
	require.NoError(t, conn.BeginOpen())

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = conn.Close()
		_ = remote.Close()
	})

	dialer.last().complete(local)
	status, err := conn.PollOpen()
	require.NoError(t, err)
	require.Equal(t, OpenReady, status)

	return conn, remote
}

// readRemoteRequest reads one request from the unit end.
func readRemoteRequest(remote net.Conn) (packet.Request, uint8, error) {
	hdr := make([]byte, 16)
	if _, err := io.ReadFull(remote, hdr[:packet.HeaderSize]); err != nil {
		return nil, 0, err
	}

	have := packet.HeaderSize
	if tc, _ := packet.TCodeOf(hdr); tc != packet.TCodeReadQuadRequest {
		if _, err := io.ReadFull(remote, hdr[have:]); err != nil {
			return nil, 0, err
		}
		have = 16
	}

	size, err := packet.RequestSize(hdr[:have])
	if err != nil {
		return nil, 0, err
	}

	b := make([]byte, size)
	copy(b, hdr[:have])
	if _, err := io.ReadFull(remote, b[have:]); err != nil {
		return nil, 0, err
	}

	return packet.DecodeRequest(b)
}

// remoteStep answers one request; returning nil sends nothing.
type remoteStep func(req packet.Request, label uint8) []byte

// runRemote serves steps in order on a goroutine. The returned channel
// yields the requests seen and is closed when all steps ran.
func runRemote(t *testing.T, remote net.Conn, steps ...remoteStep) <-chan packet.Request {
	t.Helper()

	seen := make(chan packet.Request, len(steps))
	go func() {
		defer close(seen)
		for _, step := range steps {
			req, label, err := readRemoteRequest(remote)
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
					t.Errorf("remote: read request: %v", err)
				}
				return
			}
			seen <- req
			if rsp := step(req, label); rsp != nil {
				if _, err := remote.Write(rsp); err != nil {
					return
				}
			}
		}
	}()

	return seen
}

func collect(ch <-chan packet.Request) []packet.Request {
	var out []packet.Request
	for r := range ch {
		out = append(out, r)
	}

	return out
}

func quadResponse(code packet.ResponseCode, v uint32) remoteStep {
	return func(_ packet.Request, label uint8) []byte {
		b, _ := packet.EncodeReadQuadResponse(label, code, v)
		return b
	}
}

func writeResponse(code packet.ResponseCode) remoteStep {
	return func(_ packet.Request, label uint8) []byte {
		b, _ := packet.EncodeWriteResponse(label, code)
		return b
	}
}

func blockResponse(code packet.ResponseCode, data []byte) remoteStep {
	return func(_ packet.Request, label uint8) []byte {
		b, _ := packet.EncodeReadBlockResponse(label, code, data)
		return b
	}
}

func noResponse() remoteStep {
	return func(packet.Request, uint8) []byte { return nil }
}
