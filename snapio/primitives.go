package snapio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"time"

	"github.com/arloliu/go-snapio/memmap"
	"github.com/arloliu/go-snapio/packet"
)

// ReadQuad reads the 32-bit value at addr.
func (c *Connection) ReadQuad(addr uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkConnectedLocked(); err != nil {
		return 0, err
	}

	return c.readQuadLocked(addr)
}

// WriteQuad writes the 32-bit value v at addr.
func (c *Connection) WriteQuad(addr uint32, v uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkConnectedLocked(); err != nil {
		return err
	}

	return c.writeQuadLocked(addr, v)
}

// ReadBlock reads n bytes starting at addr.
func (c *Connection) ReadBlock(addr uint32, n int) ([]byte, error) {
	if n < 0 || n > packet.MaxBlockLength {
		return nil, fmt.Errorf("%w: %d", packet.ErrBlockTooLarge, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkConnectedLocked(); err != nil {
		return nil, err
	}

	return c.readBlockLocked(addr, n)
}

// WriteBlock writes data starting at addr.
func (c *Connection) WriteBlock(addr uint32, data []byte) error {
	if len(data) > packet.MaxBlockLength {
		return fmt.Errorf("%w: %d", packet.ErrBlockTooLarge, len(data))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkConnectedLocked(); err != nil {
		return err
	}

	return c.writeBlockLocked(addr, data)
}

// ReadFloat reads the quadlet at addr and reinterprets its bits as an
// IEEE-754 single.
func (c *Connection) ReadFloat(addr uint32) (float32, error) {
	v, err := c.ReadQuad(addr)
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(v), nil
}

// WriteFloat writes the IEEE-754 bit pattern of f at addr.
func (c *Connection) WriteFloat(addr uint32, f float32) error {
	return c.WriteQuad(addr, math.Float32bits(f))
}

func (c *Connection) checkConnectedLocked() error {
	switch c.State() {
	case ConnectedState:
		if c.conn == nil {
			return ErrNotConnected
		}
		return nil
	case ConnectingState:
		return ErrNotConnectedYet
	default:
		return ErrNotConnected
	}
}

func (c *Connection) readQuadLocked(addr uint32) (uint32, error) {
	rsp, err := c.transactLocked(packet.ReadQuadlet{Offset: addr}, true)
	if err != nil {
		return 0, err
	}

	ack, ok := rsp.(packet.ReadQuadletAck)
	if !ok {
		return 0, c.malformed(addr, fmt.Errorf("%w: got %s", packet.ErrUnexpectedTCode, rsp.TCode()))
	}

	return ack.Value, nil
}

func (c *Connection) writeQuadLocked(addr uint32, v uint32) error {
	_, err := c.transactLocked(packet.WriteQuadlet{Offset: addr, Value: v}, true)
	return err
}

func (c *Connection) readBlockLocked(addr uint32, n int) ([]byte, error) {
	rsp, err := c.transactLocked(packet.ReadBlock{Offset: addr, Length: uint16(n)}, true) //nolint:gosec
	if err != nil {
		return nil, err
	}

	ack, ok := rsp.(packet.ReadBlockAck)
	if !ok {
		return nil, c.malformed(addr, fmt.Errorf("%w: got %s", packet.ErrUnexpectedTCode, rsp.TCode()))
	}
	if int(ack.Length) != n {
		return nil, c.malformed(addr, fmt.Errorf("block length %d, requested %d", ack.Length, n))
	}

	return ack.Data, nil
}

func (c *Connection) writeBlockLocked(addr uint32, data []byte) error {
	_, err := c.transactLocked(packet.WriteBlock{Offset: addr, Data: data}, true)
	return err
}

// transactLocked performs one request/response exchange.
//
// A NAK is resolved into a device error when resolveNak is set; otherwise it
// is reported as ErrDeviceNak. The last-error lookup itself runs with
// resolveNak unset so it never recurses.
func (c *Connection) transactLocked(req packet.Request, resolveNak bool) (packet.Response, error) {
	label := c.labels.next()

	b, err := packet.Encode(req, label)
	if err != nil {
		return nil, err
	}

	if err := c.sendLocked(b); err != nil {
		return nil, err
	}
	c.metrics.incRequestCount()

	c.logger.Debug("snapio: request sent", "tcode", req.TCode().String(), "addr", req.Addr(), "label", label)

	frame, err := c.recvLocked(req)
	if err != nil {
		return nil, err
	}

	rsp, err := packet.DecodeAs(frame, req.ResponseTCode())
	if err != nil {
		return nil, c.malformed(req.Addr(), err)
	}

	hdr := rsp.Header()
	if !labelsMatch(label, hdr.Label) {
		c.metrics.incMalformedCount()
		c.logger.Warn("snapio: response label mismatch", "addr", req.Addr(), "sent", label, "received", hdr.Label)

		return nil, fmt.Errorf("%w: sent %d, received %d", ErrLabelMismatch, label, hdr.Label)
	}

	c.metrics.incResponseCount()

	switch hdr.Code {
	case packet.CodeAck:
		return rsp, nil

	case packet.CodeNak:
		c.metrics.incNakCount()
		if !resolveNak {
			return nil, ErrDeviceNak
		}

		return nil, c.resolveNakLocked(req.Addr())

	default:
		return nil, c.malformed(req.Addr(), fmt.Errorf("response code %s", hdr.Code))
	}
}

// resolveNakLocked fetches the unit's last-error register after a NAK. The
// lookup's own failure is returned unchanged.
func (c *Connection) resolveNakLocked(addr uint32) error {
	rsp, err := c.transactLocked(packet.ReadQuadlet{Offset: memmap.StatusReadLastError}, false)
	if err != nil {
		c.logger.Warn("snapio: request rejected, last error unavailable", "addr", addr, "error", err)
		return err
	}

	ack, ok := rsp.(packet.ReadQuadletAck)
	if !ok {
		return c.malformed(memmap.StatusReadLastError, fmt.Errorf("%w: got %s", packet.ErrUnexpectedTCode, rsp.TCode()))
	}

	devErr := &DeviceError{Code: DeviceErrorCode(ack.Value), Addr: addr}
	c.logger.Warn("snapio: request rejected", "addr", addr, "code", uint32(devErr.Code), "reason", devErr.Code.String())

	return devErr
}

func (c *Connection) sendLocked(b []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		c.metrics.incSendErrCount()
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	if _, err := c.conn.Write(b); err != nil {
		c.metrics.incSendErrCount()
		c.logger.Error("snapio: failed to send request", "addr", c.cfg.Addr(), "error", err)

		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	return nil
}

// recvLocked reads the response frame to req: the fixed header first, then as
// many further bytes as the header's kind and declared length require. A
// header of the wrong kind is rejected before any body is read. The whole
// frame shares one deadline.
func (c *Connection) recvLocked(req packet.Request) ([]byte, error) {
	addr := req.Addr()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		c.metrics.incRecvErrCount()
		return nil, fmt.Errorf("%w: %v", ErrRecvFailed, err)
	}

	var hdr [packet.ReadBlockResponseSize]byte
	have := packet.HeaderSize
	if err := c.readFull(hdr[:have]); err != nil {
		return nil, err
	}

	tc, _ := packet.TCodeOf(hdr[:have])
	if want := req.ResponseTCode(); tc != want {
		return nil, c.malformed(addr, fmt.Errorf("%w: got %s, want %s", packet.ErrUnexpectedTCode, tc, want))
	}

	if tc == packet.TCodeReadBlockResponse {
		if err := c.readFull(hdr[have:]); err != nil {
			return nil, err
		}
		have = packet.ReadBlockResponseSize
	}

	size, err := packet.ResponseSize(hdr[:have])
	if err != nil {
		return nil, c.malformed(addr, err)
	}

	frame := make([]byte, size)
	copy(frame, hdr[:have])
	if err := c.readFull(frame[have:]); err != nil {
		return nil, err
	}

	return frame, nil
}

func (c *Connection) readFull(b []byte) error {
	if len(b) == 0 {
		return nil
	}

	_, err := io.ReadFull(c.conn, b)
	if err == nil {
		return nil
	}

	if isTimeoutErr(err) {
		c.metrics.incTimeoutCount()
		c.logger.Debug("snapio: response timeout", "addr", c.cfg.Addr(), "timeout", c.timeout)

		return ErrTimeout
	}

	c.metrics.incRecvErrCount()
	c.logger.Error("snapio: failed to receive response", "addr", c.cfg.Addr(), "error", err)

	return fmt.Errorf("%w: %v", ErrRecvFailed, err)
}

func (c *Connection) malformed(addr uint32, cause error) error {
	c.metrics.incMalformedCount()
	c.logger.Warn("snapio: malformed response", "addr", addr, "error", cause)

	return fmt.Errorf("%w: %v", ErrMalformedResponse, cause)
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
