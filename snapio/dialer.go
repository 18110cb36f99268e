package snapio

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Dialer starts transport connections for a Connection.
//
// Dial must not block: it starts the connect and returns a PendingDial the
// connection polls from PollOpen. An error from Dial means no transport could
// be allocated at all and is reported as ErrNoTransport.
type Dialer interface {
	Dial(addr string) (PendingDial, error)
}

// PendingDial is an in-flight connect attempt.
type PendingDial interface {
	// Poll reports the attempt's outcome without waiting. done is false while
	// the connect is still in progress. Once done is true with a nil error the
	// caller owns conn.
	Poll() (conn net.Conn, done bool, err error)
	// Cancel abandons the attempt. A transport that completes after Cancel is
	// closed. Cancel after Poll has handed over a conn does nothing.
	Cancel()
}

// NetDialer dials TCP with net.Dialer on a helper goroutine.
type NetDialer struct {
	// Timeout bounds the underlying connect; zero leaves it to the OS. The
	// connection's open timeout applies independently.
	Timeout time.Duration
	// KeepAlive is passed to net.Dialer.
	KeepAlive time.Duration
}

var _ Dialer = (*NetDialer)(nil)

// Dial starts connecting to addr ("host:port").
func (d *NetDialer) Dial(addr string) (PendingDial, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &netPendingDial{
		cancel: cancel,
		result: make(chan dialResult, 1),
	}

	nd := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	go func() {
		conn, err := nd.DialContext(ctx, "tcp", addr)
		p.result <- dialResult{conn: conn, err: err}
	}()

	return p, nil
}

type dialResult struct {
	conn net.Conn
	err  error
}

type netPendingDial struct {
	cancel context.CancelFunc
	result chan dialResult

	mu   sync.Mutex
	done bool
	res  dialResult
}

func (p *netPendingDial) Poll() (net.Conn, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return p.res.conn, true, p.res.err
	}

	select {
	case r := <-p.result:
		p.done = true
		p.res = r
		p.cancel()

		return r.conn, true, r.err
	default:
		return nil, false, nil
	}
}

func (p *netPendingDial) Cancel() {
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return
	}

	p.done = true
	p.res = dialResult{err: context.Canceled}

	go func() {
		if r := <-p.result; r.conn != nil {
			_ = r.conn.Close()
		}
	}()
}
