package packet

import (
	"encoding/binary"
	"fmt"
)

// Request is one of WriteQuadlet, WriteBlock, ReadQuadlet or ReadBlock.
type Request interface {
	// TCode returns the request's transaction code.
	TCode() TCode
	// Addr returns the destination offset in the unit's memory map.
	Addr() uint32
	// ResponseTCode returns the transaction code of the matching response.
	ResponseTCode() TCode
	// ResponseSize returns the exact wire size of an acknowledged response.
	ResponseSize() int

	encodedSize() int
	encodeTo(b []byte, label uint8)
}

// WriteQuadlet writes one 32-bit value.
type WriteQuadlet struct {
	Offset uint32
	Value  uint32
}

// WriteBlock writes len(Data) bytes starting at Offset.
type WriteBlock struct {
	Offset uint32
	Data   []byte
}

// ReadQuadlet reads one 32-bit value.
type ReadQuadlet struct {
	Offset uint32
}

// ReadBlock reads Length bytes starting at Offset.
type ReadBlock struct {
	Offset uint32
	Length uint16
}

var (
	_ Request = WriteQuadlet{}
	_ Request = WriteBlock{}
	_ Request = ReadQuadlet{}
	_ Request = ReadBlock{}
)

func (WriteQuadlet) TCode() TCode         { return TCodeWriteQuadRequest }
func (r WriteQuadlet) Addr() uint32       { return r.Offset }
func (WriteQuadlet) ResponseTCode() TCode { return TCodeWriteResponse }
func (WriteQuadlet) ResponseSize() int    { return WriteResponseSize }
func (WriteQuadlet) encodedSize() int     { return WriteQuadRequestSize }

func (r WriteQuadlet) encodeTo(b []byte, label uint8) {
	putHeader(b, label, TCodeWriteQuadRequest, writeQuadSourceID)
	binary.BigEndian.PutUint16(b[6:8], BroadcastID)
	binary.BigEndian.PutUint32(b[8:12], r.Offset)
	binary.BigEndian.PutUint32(b[12:16], r.Value)
}

func (WriteBlock) TCode() TCode         { return TCodeWriteBlockRequest }
func (r WriteBlock) Addr() uint32       { return r.Offset }
func (WriteBlock) ResponseTCode() TCode { return TCodeWriteResponse }
func (WriteBlock) ResponseSize() int    { return WriteResponseSize }
func (r WriteBlock) encodedSize() int   { return WriteBlockRequestSize + len(r.Data) }

func (r WriteBlock) encodeTo(b []byte, label uint8) {
	putHeader(b, label, TCodeWriteBlockRequest, 0)
	binary.BigEndian.PutUint16(b[6:8], BroadcastID)
	binary.BigEndian.PutUint32(b[8:12], r.Offset)
	binary.BigEndian.PutUint16(b[12:14], uint16(len(r.Data)))
	// extended transaction code
	b[14] = 0x00
	b[15] = 0x00
	copy(b[16:], r.Data)
}

func (ReadQuadlet) TCode() TCode         { return TCodeReadQuadRequest }
func (r ReadQuadlet) Addr() uint32       { return r.Offset }
func (ReadQuadlet) ResponseTCode() TCode { return TCodeReadQuadResponse }
func (ReadQuadlet) ResponseSize() int    { return ReadQuadResponseSize }
func (ReadQuadlet) encodedSize() int     { return ReadQuadRequestSize }

func (r ReadQuadlet) encodeTo(b []byte, label uint8) {
	putHeader(b, label, TCodeReadQuadRequest, 0)
	binary.BigEndian.PutUint16(b[6:8], BroadcastID)
	binary.BigEndian.PutUint32(b[8:12], r.Offset)
}

func (ReadBlock) TCode() TCode         { return TCodeReadBlockRequest }
func (r ReadBlock) Addr() uint32       { return r.Offset }
func (ReadBlock) ResponseTCode() TCode { return TCodeReadBlockResponse }
func (ReadBlock) encodedSize() int     { return ReadBlockRequestSize }

// ResponseSize includes the quadlet padding the unit appends to the data.
func (r ReadBlock) ResponseSize() int {
	return ReadBlockResponseSize + PaddedLen(int(r.Length))
}

func (r ReadBlock) encodeTo(b []byte, label uint8) {
	putHeader(b, label, TCodeReadBlockRequest, 0)
	binary.BigEndian.PutUint16(b[6:8], BroadcastID)
	binary.BigEndian.PutUint32(b[8:12], r.Offset)
	binary.BigEndian.PutUint16(b[12:14], r.Length)
	b[14] = 0x00
	b[15] = 0x00
}

// Encode serializes req stamped with label.
func Encode(req Request, label uint8) ([]byte, error) {
	if err := checkLabel(label); err != nil {
		return nil, err
	}

	if wb, ok := req.(WriteBlock); ok && len(wb.Data) > MaxBlockLength {
		return nil, fmt.Errorf("%w: %d", ErrBlockTooLarge, len(wb.Data))
	}

	b := make([]byte, req.encodedSize())
	req.encodeTo(b, label)

	return b, nil
}

// DecodeRequest parses a request packet as the unit would see it.
// It returns the request and the label stamped on it.
func DecodeRequest(b []byte) (Request, uint8, error) {
	if len(b) < HeaderSize {
		return nil, 0, ErrShortPacket
	}

	label := b[2] >> 2
	offset := binary.BigEndian.Uint32(b[8:12])

	switch tc := TCode(b[3] >> 4); tc {
	case TCodeWriteQuadRequest:
		if len(b) != WriteQuadRequestSize {
			return nil, label, fmt.Errorf("%w: %s is %d bytes, want %d", ErrPacketSize, tc, len(b), WriteQuadRequestSize)
		}

		return WriteQuadlet{Offset: offset, Value: binary.BigEndian.Uint32(b[12:16])}, label, nil

	case TCodeWriteBlockRequest:
		if len(b) < WriteBlockRequestSize {
			return nil, label, fmt.Errorf("%w: %s is %d bytes, want at least %d", ErrPacketSize, tc, len(b), WriteBlockRequestSize)
		}
		n := int(binary.BigEndian.Uint16(b[12:14]))
		if len(b) != WriteBlockRequestSize+n {
			return nil, label, fmt.Errorf("%w: %s is %d bytes, want %d", ErrPacketSize, tc, len(b), WriteBlockRequestSize+n)
		}
		data := make([]byte, n)
		copy(data, b[16:])

		return WriteBlock{Offset: offset, Data: data}, label, nil

	case TCodeReadQuadRequest:
		if len(b) != ReadQuadRequestSize {
			return nil, label, fmt.Errorf("%w: %s is %d bytes, want %d", ErrPacketSize, tc, len(b), ReadQuadRequestSize)
		}

		return ReadQuadlet{Offset: offset}, label, nil

	case TCodeReadBlockRequest:
		if len(b) != ReadBlockRequestSize {
			return nil, label, fmt.Errorf("%w: %s is %d bytes, want %d", ErrPacketSize, tc, len(b), ReadBlockRequestSize)
		}

		return ReadBlock{Offset: offset, Length: binary.BigEndian.Uint16(b[12:14])}, label, nil

	default:
		return nil, label, fmt.Errorf("%w: %s is not a request", ErrUnknownTCode, tc)
	}
}

// RequestSize returns the total wire size of the request whose first
// HeaderSize+4 bytes are in b. It is used by stream readers on the unit side
// to know how many bytes to wait for.
func RequestSize(b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, ErrShortPacket
	}

	switch tc := TCode(b[3] >> 4); tc {
	case TCodeWriteQuadRequest:
		return WriteQuadRequestSize, nil
	case TCodeReadQuadRequest:
		return ReadQuadRequestSize, nil
	case TCodeReadBlockRequest:
		return ReadBlockRequestSize, nil
	case TCodeWriteBlockRequest:
		if len(b) < 14 {
			return 0, ErrShortPacket
		}
		return WriteBlockRequestSize + int(binary.BigEndian.Uint16(b[12:14])), nil
	default:
		return 0, fmt.Errorf("%w: %s is not a request", ErrUnknownTCode, tc)
	}
}
