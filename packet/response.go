package packet

import (
	"encoding/binary"
	"fmt"
)

// Response is one of WriteAck, ReadQuadletAck or ReadBlockAck.
//
// The names follow the packet layouts; a response of any kind may still carry
// CodeNak.
type Response interface {
	// TCode returns the response's transaction code.
	TCode() TCode
	// Header returns the label and response code echoed by the unit.
	Header() ResponseHeader
}

// ResponseHeader holds the fields common to all responses.
type ResponseHeader struct {
	Label uint8
	Code  ResponseCode
}

// Header returns h. It lets every response type satisfy Response by embedding.
func (h ResponseHeader) Header() ResponseHeader { return h }

// WriteAck answers WriteQuadlet and WriteBlock requests.
type WriteAck struct {
	ResponseHeader
}

// ReadQuadletAck answers a ReadQuadlet request.
type ReadQuadletAck struct {
	ResponseHeader
	Value uint32
}

// ReadBlockAck answers a ReadBlock request. Data holds exactly Length bytes;
// the quadlet padding on the wire is dropped.
type ReadBlockAck struct {
	ResponseHeader
	Length uint16
	Data   []byte
}

var (
	_ Response = WriteAck{}
	_ Response = ReadQuadletAck{}
	_ Response = ReadBlockAck{}
)

func (WriteAck) TCode() TCode       { return TCodeWriteResponse }
func (ReadQuadletAck) TCode() TCode { return TCodeReadQuadResponse }
func (ReadBlockAck) TCode() TCode   { return TCodeReadBlockResponse }

// BlockDataLen returns the declared data length of a read-block response from
// its first ReadBlockResponseSize bytes.
func BlockDataLen(header []byte) (int, error) {
	if len(header) < ReadBlockResponseSize {
		return 0, ErrShortPacket
	}

	return int(binary.BigEndian.Uint16(header[12:14])), nil
}

// ResponseSize returns the total wire size, padding included, of the
// response whose leading bytes are in b. Write and read-quadlet responses are
// sized from the first HeaderSize bytes; read-block responses need the
// length field and so ReadBlockResponseSize bytes.
func ResponseSize(b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, ErrShortPacket
	}

	switch tc := TCode(b[3] >> 4); tc {
	case TCodeWriteResponse:
		return WriteResponseSize, nil
	case TCodeReadQuadResponse:
		return ReadQuadResponseSize, nil
	case TCodeReadBlockResponse:
		n, err := BlockDataLen(b)
		if err != nil {
			return 0, err
		}
		return ReadBlockResponseSize + PaddedLen(n), nil
	case TCodeWriteQuadRequest, TCodeWriteBlockRequest, TCodeReadQuadRequest, TCodeReadBlockRequest:
		return 0, fmt.Errorf("%w: got %s, want a response", ErrUnexpectedTCode, tc)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownTCode, tc)
	}
}

// Decode parses a response packet of any kind. The packet length must match
// the layout exactly, including block padding.
func Decode(b []byte) (Response, error) {
	if len(b) < HeaderSize {
		return nil, ErrShortPacket
	}

	hdr := ResponseHeader{Label: b[2] >> 2, Code: ResponseCode(b[6] >> 4)}

	switch tc := TCode(b[3] >> 4); tc {
	case TCodeWriteResponse:
		if len(b) != WriteResponseSize {
			return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrPacketSize, tc, len(b), WriteResponseSize)
		}

		return WriteAck{ResponseHeader: hdr}, nil

	case TCodeReadQuadResponse:
		if len(b) != ReadQuadResponseSize {
			return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrPacketSize, tc, len(b), ReadQuadResponseSize)
		}

		return ReadQuadletAck{ResponseHeader: hdr, Value: binary.BigEndian.Uint32(b[12:16])}, nil

	case TCodeReadBlockResponse:
		n, err := BlockDataLen(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is %d bytes, want at least %d", ErrPacketSize, tc, len(b), ReadBlockResponseSize)
		}
		want := ReadBlockResponseSize + PaddedLen(n)
		if len(b) != want {
			return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrPacketSize, tc, len(b), want)
		}
		data := make([]byte, n)
		copy(data, b[ReadBlockResponseSize:ReadBlockResponseSize+n])

		return ReadBlockAck{ResponseHeader: hdr, Length: uint16(n), Data: data}, nil

	case TCodeWriteQuadRequest, TCodeWriteBlockRequest, TCodeReadQuadRequest, TCodeReadBlockRequest:
		return nil, fmt.Errorf("%w: got %s, want a response", ErrUnexpectedTCode, tc)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTCode, tc)
	}
}

// DecodeAs parses b and fails with ErrUnexpectedTCode unless it is a response
// of kind want.
func DecodeAs(b []byte, want TCode) (Response, error) {
	tc, err := TCodeOf(b)
	if err != nil {
		return nil, err
	}
	if tc != want {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedTCode, tc, want)
	}

	return Decode(b)
}

func putResponseHeader(b []byte, label uint8, tc TCode, code ResponseCode) {
	putHeader(b, label, tc, 0)
	b[6] = byte(code) << 4
}

// EncodeWriteResponse builds the unit's answer to a write request.
func EncodeWriteResponse(label uint8, code ResponseCode) ([]byte, error) {
	if err := checkLabel(label); err != nil {
		return nil, err
	}

	b := make([]byte, WriteResponseSize)
	putResponseHeader(b, label, TCodeWriteResponse, code)

	return b, nil
}

// EncodeReadQuadResponse builds the unit's answer to a read-quadlet request.
func EncodeReadQuadResponse(label uint8, code ResponseCode, value uint32) ([]byte, error) {
	if err := checkLabel(label); err != nil {
		return nil, err
	}

	b := make([]byte, ReadQuadResponseSize)
	putResponseHeader(b, label, TCodeReadQuadResponse, code)
	binary.BigEndian.PutUint32(b[12:16], value)

	return b, nil
}

// EncodeReadBlockResponse builds the unit's answer to a read-block request,
// zero-padding data to a quadlet boundary.
func EncodeReadBlockResponse(label uint8, code ResponseCode, data []byte) ([]byte, error) {
	if err := checkLabel(label); err != nil {
		return nil, err
	}
	if len(data) > MaxBlockLength {
		return nil, fmt.Errorf("%w: %d", ErrBlockTooLarge, len(data))
	}

	b := make([]byte, ReadBlockResponseSize+PaddedLen(len(data)))
	putResponseHeader(b, label, TCodeReadBlockResponse, code)
	binary.BigEndian.PutUint16(b[12:14], uint16(len(data)))
	copy(b[ReadBlockResponseSize:], data)

	return b, nil
}
