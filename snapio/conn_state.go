package snapio

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-snapio/logger"
)

// ConnState represents the stages of a unit connection.
type ConnState uint32

// Connection states.
const (
	// DisconnectedState indicates that no transport is held.
	DisconnectedState ConnState = iota
	// ConnectingState indicates that an open attempt is in progress.
	ConnectingState
	// ConnectedState indicates that the transport is up and transactions may be issued.
	ConnectedState
	// TimedOutState is entered when an open attempt exceeds its timeout. It is
	// transient: the connection moves on to DisconnectedState right after.
	TimedOutState
)

// IsDisconnected returns if the current state is disconnected.
func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }

// IsConnecting returns if the current state is connecting.
func (cs ConnState) IsConnecting() bool { return cs == ConnectingState }

// IsConnected returns if the current state is connected.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// String returns string representation of the current state.
func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	case TimedOutState:
		return "timed-out"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is invoked when the state of a connection changes.
//
// Handlers run on the goroutine that caused the transition, after the
// connection's internal lock has been released, so they may call back into
// the connection (Close, BeginOpen). Keep them short: the caller that
// triggered the transition waits for them.
type ConnStateChangeHandler func(conn *Connection, prevState ConnState, newState ConnState)

type stateChange struct {
	prev ConnState
	next ConnState
}

// connStateMgr tracks the connection state and queues change notifications.
//
// Transitions are recorded while the connection holds its lock; dispatch
// delivers them once the lock is released.
type connStateMgr struct {
	mu       sync.Mutex
	state    atomic.Uint32
	conn     *Connection
	logger   logger.Logger
	handlers []ConnStateChangeHandler
	pending  []stateChange
}

func newConnStateMgr(conn *Connection, l logger.Logger, handlers ...ConnStateChangeHandler) *connStateMgr {
	m := &connStateMgr{
		conn:     conn,
		logger:   l,
		handlers: make([]ConnStateChangeHandler, 0, len(handlers)),
	}
	m.handlers = append(m.handlers, handlers...)
	m.state.Store(uint32(DisconnectedState))

	return m
}

// State returns the current connection state.
func (m *connStateMgr) State() ConnState {
	return ConnState(m.state.Load())
}

// AddHandler adds handlers to be invoked on state changes.
func (m *connStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handlers...)
}

// to records a transition to state. It is a no-op when already there.
func (m *connStateMgr) to(state ConnState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := ConnState(m.state.Swap(uint32(state)))
	if prev == state {
		return
	}

	m.logger.Debug("snapio: connection state changed", "prev", prev.String(), "new", state.String())
	m.pending = append(m.pending, stateChange{prev: prev, next: state})
}

// dispatch invokes the handlers for every queued transition, in order.
func (m *connStateMgr) dispatch() {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		ev := m.pending[0]
		m.pending = m.pending[1:]
		handlers := m.handlers
		m.mu.Unlock()

		for _, h := range handlers {
			h(m.conn, ev.prev, ev.next)
		}
	}
}
