// Package snapio is a client driver for SNAP Ethernet I/O units.
//
// A unit exposes its status, digital and analog points, point configuration
// and bank-wide masks as a flat 32-bit address space (see package memmap).
// The driver reads and writes that space with four request kinds (write
// quadlet, write block, read quadlet, read block) carried in the fixed binary
// packets of package packet over a TCP byte stream.
//
// # Connection lifecycle
//
// A Connection is opened without blocking the caller. BeginOpen starts the
// TCP connect and records the start tick; PollOpen is then called
// periodically from the caller's own loop until it reports OpenReady,
// OpenTimedOut or OpenFailed:
//
//	cfg, _ := snapio.NewConnectionConfig("10.0.0.5", snapio.DefaultPort,
//		snapio.WithOpenTimeout(10*time.Second),
//		snapio.WithAutoHandshake(true),
//	)
//	conn, _ := snapio.NewConnection(cfg)
//	_ = conn.BeginOpen()
//	for {
//		status, err := conn.PollOpen()
//		if status != snapio.OpenPending {
//			...
//		}
//		// do other work
//	}
//
// WaitOpen wraps the same loop for callers that are happy to block on a
// context instead.
//
// When auto-handshake is enabled the driver reads the unit's power-up-clear
// flag once the transport is up and, if the flag is set, acknowledges it by
// writing the clear-PUC operation code. Until that happens a freshly powered
// unit rejects most requests.
//
// # Transactions
//
// Every register access is a strict request/response exchange; a Connection
// never has more than one request outstanding. Each request carries a 6-bit
// transaction label (1, 2, ... 63, 0, 1, ...) which the unit echoes. A
// response whose label differs from the request's is reported as
// ErrLabelMismatch regardless of its response code.
//
// When the unit answers with a NAK the driver issues one further read of the
// unit's last-error register and returns the code as a *DeviceError. A NAK
// or failure of that secondary read is returned as-is; it is never chained
// into another lookup.
//
// A response that does not arrive within the transaction timeout yields
// ErrTimeout. The connection is left open; a late response to the abandoned
// request will then show up as a label mismatch on the next transaction, and
// callers that care should Close and reopen.
//
// # Typed helpers
//
// On top of ReadQuad, WriteQuad, ReadBlock, WriteBlock, ReadFloat and
// WriteFloat the Connection offers one method per documented register group:
// status, point configuration, digital and analog points, read-and-clear,
// calculate-and-set, and whole-bank snapshots. Floats travel as their IEEE-754
// bit pattern; they are never numerically converted.
//
// Point indices are not validated. An index outside the unit's range
// addresses whatever the 32-bit arithmetic lands on and the unit decides.
package snapio
