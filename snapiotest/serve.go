package snapiotest

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/arloliu/go-snapio/packet"
	"github.com/arloliu/go-snapio/snapio"
)

type outFrame struct {
	b         []byte
	notBefore time.Time
}

// Serve answers requests on conn until it is closed or a malformed request
// arrives. It closes conn on return.
func (u *Unit) Serve(conn net.Conn) error {
	defer conn.Close()

	out := make(chan outFrame, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		u.writeLoop(conn, out)
	}()
	defer wg.Wait()
	defer close(out)

	buf := make([]byte, packet.HeaderSize+4)
	for {
		req, label, err := readRequest(conn, buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			u.logger.Warn("snapiotest: bad request", "error", err)

			return err
		}

		u.record(req, label)

		rsp, err := u.handle(req, label)
		if err != nil {
			return err
		}

		f := u.nextFault()
		if f.drop {
			u.logger.Debug("snapiotest: dropping response", "label", label)
			continue
		}
		if f.garble {
			rsp[3] = 0xF0
		}
		if f.mislabel {
			rsp[2] = ((label + 1) & packet.MaxLabel) << 2
		}

		frame := outFrame{b: rsp}
		if f.delay > 0 {
			frame.notBefore = time.Now().Add(f.delay)
		}
		out <- frame
	}
}

func (u *Unit) writeLoop(conn net.Conn, out <-chan outFrame) {
	for f := range out {
		if d := time.Until(f.notBefore); d > 0 {
			time.Sleep(d)
		}
		if _, err := conn.Write(f.b); err != nil {
			u.logger.Debug("snapiotest: write failed", "error", err)
			// keep draining so the reader never blocks on out
			continue
		}
	}
}

func readRequest(conn net.Conn, buf []byte) (packet.Request, uint8, error) {
	if _, err := io.ReadFull(conn, buf[:packet.HeaderSize]); err != nil {
		return nil, 0, err
	}

	have := packet.HeaderSize
	if tc, _ := packet.TCodeOf(buf); tc == packet.TCodeWriteQuadRequest || tc == packet.TCodeWriteBlockRequest || tc == packet.TCodeReadBlockRequest {
		if _, err := io.ReadFull(conn, buf[have:have+4]); err != nil {
			return nil, 0, err
		}
		have += 4
	}

	size, err := packet.RequestSize(buf[:have])
	if err != nil {
		return nil, 0, err
	}

	b := make([]byte, size)
	copy(b, buf[:have])
	if _, err := io.ReadFull(conn, b[have:]); err != nil {
		return nil, 0, err
	}

	return packet.DecodeRequest(b)
}

// handle executes req and encodes the response.
func (u *Unit) handle(req packet.Request, label uint8) ([]byte, error) {
	code, nak := u.check(req)
	if nak {
		u.lastError.Store(uint32(code))
		u.logger.Debug("snapiotest: rejecting request", "addr", req.Addr(), "code", uint32(code))
	}

	switch r := req.(type) {
	case packet.WriteQuadlet:
		if !nak {
			u.writeQuad(r.Offset, r.Value)
		}
		return packet.EncodeWriteResponse(label, ackOrNak(nak))

	case packet.WriteBlock:
		if !nak {
			u.writeBlock(r.Offset, r.Data)
		}
		return packet.EncodeWriteResponse(label, ackOrNak(nak))

	case packet.ReadQuadlet:
		var v uint32
		if !nak {
			v = u.readQuad(r.Offset)
		}
		return packet.EncodeReadQuadResponse(label, ackOrNak(nak), v)

	case packet.ReadBlock:
		if nak {
			return packet.EncodeReadBlockResponse(label, packet.CodeNak, nil)
		}
		return packet.EncodeReadBlockResponse(label, packet.CodeAck, u.readBlock(r.Offset, int(r.Length)))

	default:
		return nil, errors.New("snapiotest: unsupported request")
	}
}

func (u *Unit) check(req packet.Request) (snapio.DeviceErrorCode, bool) {
	n := 4
	switch r := req.(type) {
	case packet.WriteBlock:
		n = len(r.Data)
	case packet.ReadBlock:
		n = int(r.Length)
	}

	if code, ok := u.forcedCode(req.Addr(), n); ok {
		return code, true
	}

	if u.puc.Load() && !pucExempt(req) {
		return snapio.PUCExpected, true
	}

	return 0, false
}

func ackOrNak(nak bool) packet.ResponseCode {
	if nak {
		return packet.CodeNak
	}

	return packet.CodeAck
}

// ListenAndServe serves the unit on ln until ctx is done.
func (u *Unit) ListenAndServe(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		u.logger.Info("snapiotest: connection accepted", "remote", conn.RemoteAddr().String())

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = u.Serve(conn)
		}()
	}
}

// Dialer returns a snapio.Dialer connecting to u over net.Pipe. The address
// is ignored.
func (u *Unit) Dialer() snapio.Dialer {
	return &pipeDialer{unit: u}
}

type pipeDialer struct {
	unit *Unit
}

func (d *pipeDialer) Dial(string) (snapio.PendingDial, error) {
	client, server := net.Pipe()
	go func() { _ = d.unit.Serve(server) }()

	return &readyDial{conn: client}, nil
}

// readyDial is a dial that completed immediately.
type readyDial struct {
	mu     sync.Mutex
	conn   net.Conn
	handed bool
}

func (p *readyDial) Poll() (net.Conn, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil, true, context.Canceled
	}
	p.handed = true

	return p.conn, true, nil
}

func (p *readyDial) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.handed && p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
