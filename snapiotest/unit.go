// Package snapiotest provides an in-process simulated SNAP I/O unit.
//
// A Unit answers the memory-map protocol from a sparse quadlet memory. It
// models the parts of a real unit a driver needs to be tested against: the
// power-up-clear flag, the last-error register, NAKs for rejected requests,
// write areas that show up in the matching read areas, read-and-clear
// registers, and injectable transport faults (dropped, delayed, garbled and
// mislabeled responses).
//
// Units are served over any net.Conn, so tests can use Dialer for a
// net.Pipe transport or Serve a TCP listener.
package snapiotest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-snapio/logger"
	"github.com/arloliu/go-snapio/memmap"
	"github.com/arloliu/go-snapio/packet"
	"github.com/arloliu/go-snapio/snapio"
	"github.com/puzpuzpuz/xsync/v3"
)

// Unit is a simulated I/O unit. It is safe for concurrent use and may serve
// several connections at once; they share one memory map.
type Unit struct {
	logger logger.Logger

	mem       *xsync.MapOf[uint32, uint32]
	forcedNak *xsync.MapOf[uint32, snapio.DeviceErrorCode]
	puc       atomic.Bool
	lastError atomic.Uint32

	faultMu   sync.Mutex
	drop      int
	garble    int
	mislabel  int
	delay     time.Duration
	delayNext int

	requests *xsync.Counter

	logMu  sync.Mutex
	reqLog []Request
}

// Request is one request as the unit received it.
type Request struct {
	TCode packet.TCode
	Addr  uint32
	Label uint8
}

// Option configures a Unit.
type Option func(*Unit)

// WithPowerUpClear sets whether the unit starts waiting for a power-up clear.
// A new Unit does by default, like real hardware after power-on.
func WithPowerUpClear(pending bool) Option {
	return func(u *Unit) { u.puc.Store(pending) }
}

// WithLogger sets the unit's logger.
func WithLogger(l logger.Logger) Option {
	return func(u *Unit) { u.logger = l }
}

// NewUnit creates a simulated unit with an all-zero memory map.
func NewUnit(opts ...Option) *Unit {
	u := &Unit{
		logger:    logger.GetLogger(),
		mem:       xsync.NewMapOf[uint32, uint32](),
		forcedNak: xsync.NewMapOf[uint32, snapio.DeviceErrorCode](),
		requests:  xsync.NewCounter(),
	}
	u.puc.Store(true)

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// PowerUp puts the unit back into the power-up-clear condition.
func (u *Unit) PowerUp() {
	u.puc.Store(true)
}

// PUCPending reports whether the unit is waiting for a power-up clear.
func (u *Unit) PUCPending() bool {
	return u.puc.Load()
}

// LastError returns the unit's last-error register.
func (u *Unit) LastError() snapio.DeviceErrorCode {
	return snapio.DeviceErrorCode(u.lastError.Load())
}

// Peek returns the quadlet stored at addr, bypassing side effects.
func (u *Unit) Peek(addr uint32) uint32 {
	return u.quad(addr)
}

// Poke stores v at addr, bypassing side effects. It is how tests set up
// input points and module types.
func (u *Unit) Poke(addr uint32, v uint32) {
	u.mem.Store(addr&^3, v)
}

// FailAddress makes every request touching addr fail with a NAK and code.
func (u *Unit) FailAddress(addr uint32, code snapio.DeviceErrorCode) {
	u.forcedNak.Store(addr, code)
}

// ClearFailures removes all FailAddress entries.
func (u *Unit) ClearFailures() {
	u.forcedNak.Clear()
}

// DropResponses makes the unit swallow the next n responses.
func (u *Unit) DropResponses(n int) {
	u.faultMu.Lock()
	defer u.faultMu.Unlock()
	u.drop = n
}

// GarbleResponses makes the next n responses carry an unknown transaction code.
func (u *Unit) GarbleResponses(n int) {
	u.faultMu.Lock()
	defer u.faultMu.Unlock()
	u.garble = n
}

// MislabelResponses makes the next n responses carry the wrong label.
func (u *Unit) MislabelResponses(n int) {
	u.faultMu.Lock()
	defer u.faultMu.Unlock()
	u.mislabel = n
}

// DelayResponses holds back the next n responses for d. Later requests are
// still read meanwhile, so a delayed response can arrive after its
// transaction timed out.
func (u *Unit) DelayResponses(n int, d time.Duration) {
	u.faultMu.Lock()
	defer u.faultMu.Unlock()
	u.delayNext = n
	u.delay = d
}

// RequestCount returns the number of requests received.
func (u *Unit) RequestCount() int64 {
	return u.requests.Value()
}

// Requests returns a copy of the requests received so far.
func (u *Unit) Requests() []Request {
	u.logMu.Lock()
	defer u.logMu.Unlock()

	out := make([]Request, len(u.reqLog))
	copy(out, u.reqLog)

	return out
}

// ResetRequests clears the request log and counter.
func (u *Unit) ResetRequests() {
	u.logMu.Lock()
	defer u.logMu.Unlock()

	u.reqLog = u.reqLog[:0]
	u.requests.Reset()
}

func (u *Unit) record(req packet.Request, label uint8) {
	u.requests.Inc()

	u.logMu.Lock()
	defer u.logMu.Unlock()
	u.reqLog = append(u.reqLog, Request{TCode: req.TCode(), Addr: req.Addr(), Label: label})
}

type fault struct {
	drop     bool
	garble   bool
	mislabel bool
	delay    time.Duration
}

func (u *Unit) nextFault() fault {
	u.faultMu.Lock()
	defer u.faultMu.Unlock()

	var f fault
	if u.drop > 0 {
		u.drop--
		f.drop = true
	}
	if u.garble > 0 {
		u.garble--
		f.garble = true
	}
	if u.mislabel > 0 {
		u.mislabel--
		f.mislabel = true
	}
	if u.delayNext > 0 {
		u.delayNext--
		f.delay = u.delay
	}

	return f
}

// pucExempt lists what a unit accepts while a power-up clear is pending.
func pucExempt(req packet.Request) bool {
	switch r := req.(type) {
	case packet.ReadQuadlet:
		return r.Offset == memmap.StatusReadPUCFlag || r.Offset == memmap.StatusReadLastError
	case packet.WriteQuadlet:
		return r.Offset == memmap.StatusWriteOperation
	default:
		return false
	}
}
