// Package packet encodes and decodes the fixed-format binary packets exchanged
// with a SNAP Ethernet I/O unit.
//
// The protocol is a strictly request/response memory-map protocol carried over
// a TCP byte stream. Every packet starts with a 12-byte header:
//
//	byte 0..1   destination id (always 0)
//	byte 2      transaction label in bits 7..2
//	byte 3      transaction code (tcode) in bits 7..4
//	byte 4..5   source id
//	byte 6..7   0xFFFF broadcast prefix (requests) / response code in byte 6 bits 7..4 (responses)
//	byte 8..11  destination offset, big-endian (requests)
//
// Seven layouts exist:
//
//	Write-Quadlet Request   16 bytes     tcode 0
//	Write-Block Request     16+N bytes   tcode 1
//	Write Response          12 bytes     tcode 2
//	Read-Quadlet Request    12 bytes     tcode 4
//	Read-Block Request      16 bytes     tcode 5
//	Read-Quadlet Response   16 bytes     tcode 6
//	Read-Block Response     16+N bytes   tcode 7
//
// All multi-byte fields are big-endian. Read-block responses are padded by the
// unit to a quadlet boundary; [PaddedLen] gives the number of data bytes that
// follow the 16-byte response header on the wire.
//
// The package is stateless. Client code uses [Encode] and [DecodeAs]; the
// device-side helpers ([DecodeRequest] and the Encode*Response functions) are
// used by the simulated unit in package snapiotest.
package packet
