package snapio

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// ConnectionMetrics contains counters for a connection.
// Counters are safe to read from any goroutine and can be used as the value
// of a prometheus CounterFunc.
type ConnectionMetrics struct {
	// RequestCount indicates the number of requests written to the transport.
	RequestCount *xsync.Counter
	// ResponseCount indicates the number of well-formed responses received.
	ResponseCount *xsync.Counter
	// TimeoutCount indicates the number of transactions that timed out.
	TimeoutCount *xsync.Counter
	// NakCount indicates the number of NAK responses received.
	NakCount *xsync.Counter
	// MalformedCount indicates the number of malformed or mismatched responses.
	MalformedCount *xsync.Counter
	// SendErrCount indicates the number of transport write failures.
	SendErrCount *xsync.Counter
	// RecvErrCount indicates the number of transport read failures.
	RecvErrCount *xsync.Counter
	// OpenCount indicates the number of successful open attempts.
	OpenCount *xsync.Counter
	// OpenFailCount indicates the number of failed or timed out open attempts.
	OpenFailCount *xsync.Counter
}

func newConnectionMetrics() *ConnectionMetrics {
	return &ConnectionMetrics{
		RequestCount:   xsync.NewCounter(),
		ResponseCount:  xsync.NewCounter(),
		TimeoutCount:   xsync.NewCounter(),
		NakCount:       xsync.NewCounter(),
		MalformedCount: xsync.NewCounter(),
		SendErrCount:   xsync.NewCounter(),
		RecvErrCount:   xsync.NewCounter(),
		OpenCount:      xsync.NewCounter(),
		OpenFailCount:  xsync.NewCounter(),
	}
}

func (m *ConnectionMetrics) incRequestCount()   { m.RequestCount.Inc() }
func (m *ConnectionMetrics) incResponseCount()  { m.ResponseCount.Inc() }
func (m *ConnectionMetrics) incTimeoutCount()   { m.TimeoutCount.Inc() }
func (m *ConnectionMetrics) incNakCount()       { m.NakCount.Inc() }
func (m *ConnectionMetrics) incMalformedCount() { m.MalformedCount.Inc() }
func (m *ConnectionMetrics) incSendErrCount()   { m.SendErrCount.Inc() }
func (m *ConnectionMetrics) incRecvErrCount()   { m.RecvErrCount.Inc() }
func (m *ConnectionMetrics) incOpenCount()      { m.OpenCount.Inc() }
func (m *ConnectionMetrics) incOpenFailCount()  { m.OpenFailCount.Inc() }
