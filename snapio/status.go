package snapio

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/arloliu/go-snapio/memmap"
)

// FirmwareVersion is a version quadlet in a.b.c.d form, one byte per part.
type FirmwareVersion uint32

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// StatusVersion is the version block of the status area.
type StatusVersion struct {
	MapVersion    uint32
	LoaderVersion FirmwareVersion
	KernelVersion FirmwareVersion
}

// StatusHardware is the hardware block of the status area.
type StatusHardware struct {
	UnitType uint32
	// Hardware revision date.
	Month uint8
	Day   uint8
	Year  uint16
	// RAMSize is the installed RAM in bytes.
	RAMSize uint32
}

// StatusNetwork is the network block of the status area.
type StatusNetwork struct {
	MAC        net.HardwareAddr
	IP         netip.Addr
	SubnetMask netip.Addr
	Gateway    netip.Addr
}

// GetStatusPUC reports whether the unit is waiting for a power-up clear.
func (c *Connection) GetStatusPUC() (bool, error) {
	return c.readBool(memmap.StatusReadPUCFlag)
}

// GetStatusLastError returns the unit's last-error register.
func (c *Connection) GetStatusLastError() (DeviceErrorCode, error) {
	v, err := c.ReadQuad(memmap.StatusReadLastError)
	return DeviceErrorCode(v), err
}

// GetStatusBootpAlways reports whether the unit always requests BOOTP on start-up.
func (c *Connection) GetStatusBootpAlways() (bool, error) {
	return c.readBool(memmap.StatusReadBootpFlag)
}

// GetStatusDegrees returns the unit's temperature scale flag.
func (c *Connection) GetStatusDegrees() (uint32, error) {
	return c.ReadQuad(memmap.StatusReadDegreesFlag)
}

// GetStatusVersion reads the version block.
func (c *Connection) GetStatusVersion() (StatusVersion, error) {
	b, err := c.ReadBlock(memmap.StatusReadBase, memmap.StatusVersionBlockSize)
	if err != nil {
		return StatusVersion{}, err
	}

	return StatusVersion{
		MapVersion:    binary.BigEndian.Uint32(b[0:4]),
		LoaderVersion: FirmwareVersion(binary.BigEndian.Uint32(b[24:28])),
		KernelVersion: FirmwareVersion(binary.BigEndian.Uint32(b[28:32])),
	}, nil
}

// GetStatusHardware reads the hardware block.
func (c *Connection) GetStatusHardware() (StatusHardware, error) {
	b, err := c.ReadBlock(memmap.StatusReadBase, memmap.StatusHardwareBlockSize)
	if err != nil {
		return StatusHardware{}, err
	}

	return StatusHardware{
		UnitType: binary.BigEndian.Uint32(b[32:36]),
		Month:    b[36],
		Day:      b[37],
		Year:     binary.BigEndian.Uint16(b[38:40]),
		RAMSize:  binary.BigEndian.Uint32(b[40:44]),
	}, nil
}

// GetStatusNetwork reads the network block.
func (c *Connection) GetStatusNetwork() (StatusNetwork, error) {
	b, err := c.ReadBlock(memmap.StatusReadBase, memmap.StatusNetworkBlockSize)
	if err != nil {
		return StatusNetwork{}, err
	}

	mac := make(net.HardwareAddr, 6)
	copy(mac, b[46:52])

	return StatusNetwork{
		MAC:        mac,
		IP:         netip.AddrFrom4([4]byte(b[52:56])),
		SubnetMask: netip.AddrFrom4([4]byte(b[56:60])),
		Gateway:    netip.AddrFrom4([4]byte(b[60:64])),
	}, nil
}

// SetStatusOperation writes an operation code, e.g. memmap.OpClearPUC.
func (c *Connection) SetStatusOperation(op uint32) error {
	return c.WriteQuad(memmap.StatusWriteOperation, op)
}

// SetStatusBootpRequest sets whether the unit always requests BOOTP on start-up.
func (c *Connection) SetStatusBootpRequest(always bool) error {
	return c.WriteQuad(memmap.StatusWriteBootp, boolQuad(always))
}

// SetStatusDegrees sets the unit's temperature scale flag.
func (c *Connection) SetStatusDegrees(flag uint32) error {
	return c.WriteQuad(memmap.StatusWriteTempDegrees, flag)
}

// SetStatusWatchdogTime sets the unit's communication watchdog; zero disables it.
func (c *Connection) SetStatusWatchdogTime(d time.Duration) error {
	return c.WriteQuad(memmap.StatusWriteWatchdogTime, uint32(d.Milliseconds())) //nolint:gosec
}

func (c *Connection) readBool(addr uint32) (bool, error) {
	v, err := c.ReadQuad(addr)
	return v != 0, err
}

func boolQuad(b bool) uint32 {
	if b {
		return 1
	}

	return 0
}
