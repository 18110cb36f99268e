package snapio

import (
	"errors"
	"fmt"
	"strconv"
)

// Connection errors.
var (
	// ErrNoTransport indicates that no transport could be allocated for an open attempt.
	ErrNoTransport = errors.New("snapio: no transport available")
	// ErrConnectFailed indicates that the TCP connect attempt failed.
	ErrConnectFailed = errors.New("snapio: connect failed")
	// ErrNotConnectedYet indicates that an open attempt is still in progress.
	ErrNotConnectedYet = errors.New("snapio: connection not established yet")
	// ErrNotConnected indicates that the connection is closed.
	ErrNotConnected = errors.New("snapio: not connected")
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("snapio: connection config is nil")
)

// Timing errors.
var (
	// ErrOpenTimeout indicates that the connection was not established within the open timeout.
	ErrOpenTimeout = errors.New("snapio: open timeout")
	// ErrTimeout indicates that a response did not arrive within the transaction timeout.
	ErrTimeout = errors.New("snapio: transaction timeout")
)

// Protocol errors.
var (
	// ErrMalformedResponse indicates a response of the wrong size, kind or response code.
	ErrMalformedResponse = errors.New("snapio: malformed response")
	// ErrLabelMismatch indicates that the response label differs from the request's.
	// It wraps ErrMalformedResponse.
	ErrLabelMismatch = fmt.Errorf("%w: transaction label mismatch", ErrMalformedResponse)
)

// Device and transport errors.
var (
	// ErrDeviceNak indicates that the unit rejected a request. Every *DeviceError
	// matches it with errors.Is; it is returned on its own when the unit also
	// rejects the read of its last-error register.
	ErrDeviceNak = errors.New("snapio: device rejected request")
	// ErrSendFailed indicates that writing the request to the transport failed.
	ErrSendFailed = errors.New("snapio: send failed")
	// ErrRecvFailed indicates that reading the response from the transport failed.
	ErrRecvFailed = errors.New("snapio: receive failed")
)

// DeviceErrorCode is a value of the unit's last-error register.
type DeviceErrorCode uint32

// Device error codes reported in the last-error register.
const (
	UndefinedCommand DeviceErrorCode = 0xE001
	InvalidPointType DeviceErrorCode = 0xE002
	InvalidFloat     DeviceErrorCode = 0xE003
	PUCExpected      DeviceErrorCode = 0xE004
	InvalidAddress   DeviceErrorCode = 0xE005
	InvalidCmdLength DeviceErrorCode = 0xE006
	Reserved         DeviceErrorCode = 0xE007
	Busy             DeviceErrorCode = 0xE008
	CantEraseFlash   DeviceErrorCode = 0xE009
	CantProgramFlash DeviceErrorCode = 0xE00A
	ImageTooSmall    DeviceErrorCode = 0xE00B
	ImageCRCMismatch DeviceErrorCode = 0xE00C
	ImageLenMismatch DeviceErrorCode = 0xE00D
)

var deviceErrorNames = map[DeviceErrorCode]string{
	UndefinedCommand: "undefined command",
	InvalidPointType: "invalid point type",
	InvalidFloat:     "invalid float",
	PUCExpected:      "power-up clear expected",
	InvalidAddress:   "invalid address",
	InvalidCmdLength: "invalid command length",
	Reserved:         "reserved",
	Busy:             "busy",
	CantEraseFlash:   "cannot erase flash",
	CantProgramFlash: "cannot program flash",
	ImageTooSmall:    "downloaded image too small",
	ImageCRCMismatch: "image CRC mismatch",
	ImageLenMismatch: "image length mismatch",
}

// String returns a short description, or the decimal code for codes the
// driver does not know.
func (c DeviceErrorCode) String() string {
	if name, ok := deviceErrorNames[c]; ok {
		return name
	}

	return "device error " + strconv.FormatUint(uint64(c), 10)
}

// IsKnown reports whether c is one of the documented codes.
func (c DeviceErrorCode) IsKnown() bool {
	_, ok := deviceErrorNames[c]
	return ok
}

// DeviceError is returned when the unit NAKs a request and its last-error
// register could be read. Code is passed through verbatim.
type DeviceError struct {
	Code DeviceErrorCode
	// Addr is the address of the rejected request.
	Addr uint32
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("snapio: device error %d (%s) at 0x%08X", uint32(e.Code), e.Code, e.Addr)
}

// Is makes errors.Is(err, ErrDeviceNak) hold for every DeviceError.
func (e *DeviceError) Is(target error) bool {
	return target == ErrDeviceNak
}

// IsTimeout reports whether err is a transaction or open timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrOpenTimeout)
}

// IsDeviceError reports whether err carries a device error code and returns it.
func IsDeviceError(err error) (DeviceErrorCode, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Code, true
	}

	return 0, false
}
