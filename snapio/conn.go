package snapio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/arloliu/go-snapio/logger"
	"github.com/arloliu/go-snapio/memmap"
)

// OpenStatus is the outcome of one PollOpen call.
type OpenStatus int

// Open statuses.
const (
	// OpenPending indicates that the connect is still in progress.
	OpenPending OpenStatus = iota
	// OpenReady indicates that the connection is usable.
	OpenReady
	// OpenTimedOut indicates that the open timeout elapsed; the attempt was abandoned.
	OpenTimedOut
	// OpenFailed indicates that the connect or the handshake failed.
	OpenFailed
)

// String returns string representation of the open status.
func (s OpenStatus) String() string {
	switch s {
	case OpenPending:
		return "pending"
	case OpenReady:
		return "ready"
	case OpenTimedOut:
		return "timed-out"
	case OpenFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Connection is a client connection to one unit.
//
// All methods are safe for concurrent use. Transactions are serialized: a
// Connection never has more than one request outstanding.
type Connection struct {
	cfg      *ConnectionConfig
	logger   logger.Logger
	stateMgr *connStateMgr
	metrics  *ConnectionMetrics

	// mu guards everything below and is held for the whole of a transaction.
	mu        sync.Mutex
	conn      net.Conn
	pending   PendingDial
	openStart uint32
	opening   bool
	timeout   time.Duration
	labels    labelSeq
}

// NewConnection creates a new, disconnected Connection.
func NewConnection(cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	c := &Connection{
		cfg:     cfg,
		logger:  cfg.logger,
		metrics: newConnectionMetrics(),
		timeout: cfg.timeout,
	}
	c.stateMgr = newConnStateMgr(c, cfg.logger, cfg.stateHandlers...)

	return c, nil
}

// Open creates a connection to host:port and starts opening it.
//
// openTimeout bounds the attempt and autoHandshake enables the
// power-up-clear handshake; opts may refine the configuration further. The
// returned connection is in ConnectingState: drive it with PollOpen or
// WaitOpen.
func Open(host string, port int, openTimeout time.Duration, autoHandshake bool, opts ...ConnOption) (*Connection, error) {
	all := make([]ConnOption, 0, len(opts)+2)
	all = append(all, WithOpenTimeout(openTimeout), WithAutoHandshake(autoHandshake))
	all = append(all, opts...)

	cfg, err := NewConnectionConfig(host, port, all...)
	if err != nil {
		return nil, err
	}

	c, err := NewConnection(cfg)
	if err != nil {
		return nil, err
	}

	if err := c.BeginOpen(); err != nil {
		return nil, err
	}

	return c, nil
}

// State returns the current connection state.
func (c *Connection) State() ConnState {
	return c.stateMgr.State()
}

// AddStateChangeHandler registers handlers invoked on state changes.
func (c *Connection) AddStateChangeHandler(handlers ...ConnStateChangeHandler) {
	c.stateMgr.AddHandler(handlers...)
}

// Config returns the connection's configuration.
func (c *Connection) Config() *ConnectionConfig {
	return c.cfg
}

// GetLogger returns the logger associated with the connection.
func (c *Connection) GetLogger() logger.Logger {
	return c.logger
}

// GetMetrics returns the metrics associated with the connection.
func (c *Connection) GetMetrics() *ConnectionMetrics {
	return c.metrics
}

// SetTimeout sets the per-transaction response timeout. It takes effect from
// the next transaction.
func (c *Connection) SetTimeout(d time.Duration) error {
	if d < MinTimeout || d > MaxTimeout {
		return fmt.Errorf("snapio: timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d

	return nil
}

// Timeout returns the per-transaction response timeout.
func (c *Connection) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.timeout
}

// BeginOpen starts a new open attempt. It never blocks.
//
// Any transport held from a previous attempt is released first. The outcome
// is collected with PollOpen.
func (c *Connection) BeginOpen() error {
	defer c.stateMgr.dispatch()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked()

	pending, err := c.cfg.dialer.Dial(c.cfg.Addr())
	if err != nil {
		c.logger.Error("snapio: failed to start connect", "addr", c.cfg.Addr(), "error", err)
		c.stateMgr.to(DisconnectedState)

		return fmt.Errorf("%w: %v", ErrNoTransport, err)
	}
	if pending == nil {
		c.stateMgr.to(DisconnectedState)
		return ErrNoTransport
	}

	c.pending = pending
	c.openStart = c.cfg.clock.Ticks()
	c.opening = true
	c.labels.reset()
	c.stateMgr.to(ConnectingState)

	c.logger.Info("snapio: opening connection", "addr", c.cfg.Addr(), "open_timeout", c.cfg.openTimeout)

	return nil
}

// PollOpen checks the progress of the open attempt started by BeginOpen.
//
// It returns OpenPending while the connect is in flight and OpenReady once
// the connection is usable. OpenTimedOut comes with ErrOpenTimeout and
// OpenFailed with the cause; in both cases the attempt is over. A failed
// handshake leaves the transport connected so the caller can inspect the
// unit or Close.
//
// Calling PollOpen when no attempt is in progress reports OpenReady on a
// connected connection and OpenFailed with ErrNotConnected otherwise.
func (c *Connection) PollOpen() (OpenStatus, error) {
	defer c.stateMgr.dispatch()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opening {
		if c.State().IsConnected() {
			return OpenReady, nil
		}

		return OpenFailed, ErrNotConnected
	}

	now := c.cfg.clock.Ticks()
	if now < c.openStart {
		// tick counter wrapped
		c.openStart = 0
	}

	if uint32(c.cfg.openTimeout.Milliseconds()) < now-c.openStart {
		c.logger.Warn("snapio: open timeout", "addr", c.cfg.Addr(), "open_timeout", c.cfg.openTimeout)
		c.metrics.incOpenFailCount()
		c.stateMgr.to(TimedOutState)
		c.releaseLocked()

		return OpenTimedOut, ErrOpenTimeout
	}

	conn, done, err := c.pending.Poll()
	if !done {
		return OpenPending, nil
	}

	c.pending = nil
	c.opening = false

	if err != nil {
		c.logger.Error("snapio: connect failed", "addr", c.cfg.Addr(), "error", err)
		c.metrics.incOpenFailCount()
		c.releaseLocked()

		return OpenFailed, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	c.conn = conn
	c.stateMgr.to(ConnectedState)

	if c.cfg.autoHandshake {
		if err := c.clearPUCLocked(); err != nil {
			c.logger.Warn("snapio: power-up clear handshake failed", "addr", c.cfg.Addr(), "error", err)
			c.metrics.incOpenFailCount()

			return OpenFailed, err
		}
	}

	c.metrics.incOpenCount()
	c.logger.Info("snapio: connection opened", "addr", c.cfg.Addr())

	return OpenReady, nil
}

// WaitOpen polls the open attempt until it completes or ctx is done.
//
// On ctx cancellation the attempt is abandoned and ctx's error returned.
func (c *Connection) WaitOpen(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.PollOpen()
		if status != OpenPending {
			return err
		}

		select {
		case <-ctx.Done():
			c.abandonOpen()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the transport and any open attempt. It is idempotent.
func (c *Connection) Close() error {
	defer c.stateMgr.dispatch()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil || c.pending != nil {
		c.logger.Info("snapio: closing connection", "addr", c.cfg.Addr())
	}

	return c.releaseLocked()
}

func (c *Connection) abandonOpen() {
	defer c.stateMgr.dispatch()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opening {
		c.releaseLocked()
	}
}

// releaseLocked drops the transport and pending dial and moves to
// DisconnectedState.
func (c *Connection) releaseLocked() error {
	var err error

	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}

	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}

	c.opening = false
	c.stateMgr.to(DisconnectedState)

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}

// clearPUCLocked acknowledges a pending power-up-clear condition.
func (c *Connection) clearPUCLocked() error {
	puc, err := c.readQuadLocked(memmap.StatusReadPUCFlag)
	if err != nil {
		return err
	}

	if puc == 0 {
		return nil
	}

	c.logger.Info("snapio: clearing power-up condition", "addr", c.cfg.Addr())

	return c.writeQuadLocked(memmap.StatusWriteOperation, memmap.OpClearPUC)
}
