package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TCode is the 4-bit transaction code carried in byte 3 bits 7..4.
type TCode uint8

// Transaction codes used by the I/O unit.
const (
	TCodeWriteQuadRequest  TCode = 0
	TCodeWriteBlockRequest TCode = 1
	TCodeWriteResponse     TCode = 2
	TCodeReadQuadRequest   TCode = 4
	TCodeReadBlockRequest  TCode = 5
	TCodeReadQuadResponse  TCode = 6
	TCodeReadBlockResponse TCode = 7
)

// String returns the name of the transaction code.
func (tc TCode) String() string {
	switch tc {
	case TCodeWriteQuadRequest:
		return "write-quadlet-request"
	case TCodeWriteBlockRequest:
		return "write-block-request"
	case TCodeWriteResponse:
		return "write-response"
	case TCodeReadQuadRequest:
		return "read-quadlet-request"
	case TCodeReadBlockRequest:
		return "read-block-request"
	case TCodeReadQuadResponse:
		return "read-quadlet-response"
	case TCodeReadBlockResponse:
		return "read-block-response"
	default:
		return fmt.Sprintf("tcode(%d)", uint8(tc))
	}
}

// IsResponse reports whether tc is one of the three response codes.
func (tc TCode) IsResponse() bool {
	return tc == TCodeWriteResponse || tc == TCodeReadQuadResponse || tc == TCodeReadBlockResponse
}

// Packet sizes in bytes. Block packets carry their data after the fixed part.
const (
	WriteQuadRequestSize  = 16
	WriteBlockRequestSize = 16
	WriteResponseSize     = 12
	ReadQuadRequestSize   = 12
	ReadQuadResponseSize  = 16
	ReadBlockRequestSize  = 16
	ReadBlockResponseSize = 16

	// HeaderSize is the common prefix needed to identify any packet.
	HeaderSize = 12
)

// MaxLabel is the largest transaction label that fits the 6-bit label field.
const MaxLabel = 63

// MaxBlockLength is the largest block the 16-bit length field can describe.
const MaxBlockLength = 0xFFFF

// BroadcastID fills bytes 6..7 of every request.
const BroadcastID = 0xFFFF

// writeQuadSourceID is the source id stamped on write-quadlet requests; all
// other requests carry 0.
const writeQuadSourceID = 1

// ResponseCode is the 4-bit response code carried in byte 6 bits 7..4.
type ResponseCode uint8

const (
	// CodeAck indicates the unit accepted the request.
	CodeAck ResponseCode = 0
	// CodeNak indicates the unit rejected the request; the reason is kept in
	// the unit's last-error status register.
	CodeNak ResponseCode = 7
)

// String returns "ack", "nak" or the numeric code.
func (rc ResponseCode) String() string {
	switch rc {
	case CodeAck:
		return "ack"
	case CodeNak:
		return "nak"
	default:
		return fmt.Sprintf("code(%d)", uint8(rc))
	}
}

var (
	// ErrShortPacket indicates that fewer bytes than the fixed header were supplied.
	ErrShortPacket = errors.New("packet: short packet")

	// ErrPacketSize indicates that a packet's length does not match its layout.
	ErrPacketSize = errors.New("packet: unexpected packet size")

	// ErrUnexpectedTCode indicates that the tcode nibble is not the expected kind.
	ErrUnexpectedTCode = errors.New("packet: unexpected transaction code")

	// ErrUnknownTCode indicates a tcode nibble outside the seven known layouts.
	ErrUnknownTCode = errors.New("packet: unknown transaction code")

	// ErrInvalidLabel indicates a transaction label above MaxLabel.
	ErrInvalidLabel = errors.New("packet: transaction label out of range [0, 63]")

	// ErrBlockTooLarge indicates block data longer than MaxBlockLength.
	ErrBlockTooLarge = errors.New("packet: block length exceeds 65535 bytes")
)

// PaddedLen returns n rounded up to the next multiple of four.
func PaddedLen(n int) int {
	return (n + 3) &^ 3
}

// TCodeOf returns the transaction code of a raw packet.
func TCodeOf(b []byte) (TCode, error) {
	if len(b) < 4 {
		return 0, ErrShortPacket
	}

	return TCode(b[3] >> 4), nil
}

// LabelOf returns the transaction label of a raw packet.
func LabelOf(b []byte) (uint8, error) {
	if len(b) < 4 {
		return 0, ErrShortPacket
	}

	return b[2] >> 2, nil
}

// putHeader fills the bytes shared by every packet layout.
func putHeader(b []byte, label uint8, tc TCode, sourceID uint16) {
	b[0] = 0x00
	b[1] = 0x00
	b[2] = label << 2
	b[3] = byte(tc) << 4
	binary.BigEndian.PutUint16(b[4:6], sourceID)
}

func checkLabel(label uint8) error {
	if label > MaxLabel {
		return fmt.Errorf("%w: %d", ErrInvalidLabel, label)
	}

	return nil
}
