package snapio

import (
	"encoding/binary"

	"github.com/arloliu/go-snapio/memmap"
)

// DigitalPointArea is the read area of one digital point.
type DigitalPointArea struct {
	State         bool
	OnLatch       bool
	OffLatch      bool
	CounterActive bool
	Counts        uint32
}

// GetDigitalState returns the state of a digital point.
func (c *Connection) GetDigitalState(point int) (bool, error) {
	return c.readBool(memmap.DigitalPointReadState.Addr(point))
}

// GetDigitalOnLatch returns the on-latch of a digital point.
func (c *Connection) GetDigitalOnLatch(point int) (bool, error) {
	return c.readBool(memmap.DigitalPointReadOnLatch.Addr(point))
}

// GetDigitalOffLatch returns the off-latch of a digital point.
func (c *Connection) GetDigitalOffLatch(point int) (bool, error) {
	return c.readBool(memmap.DigitalPointReadOffLatch.Addr(point))
}

// GetDigitalCounterState reports whether the point's counter is active.
func (c *Connection) GetDigitalCounterState(point int) (bool, error) {
	return c.readBool(memmap.DigitalPointReadActiveCounter.Addr(point))
}

// GetDigitalCounts returns the counter value of a digital point.
func (c *Connection) GetDigitalCounts(point int) (uint32, error) {
	return c.ReadQuad(memmap.DigitalPointReadCounterData.Addr(point))
}

// GetDigitalPointArea reads the whole read area of a digital point in one transaction.
func (c *Connection) GetDigitalPointArea(point int) (DigitalPointArea, error) {
	b, err := c.ReadBlock(memmap.DigitalPointReadArea.Addr(point), memmap.DigitalPointReadAreaSize)
	if err != nil {
		return DigitalPointArea{}, err
	}

	return DigitalPointArea{
		State:         binary.BigEndian.Uint32(b[0:4]) != 0,
		OnLatch:       binary.BigEndian.Uint32(b[4:8]) != 0,
		OffLatch:      binary.BigEndian.Uint32(b[8:12]) != 0,
		CounterActive: binary.BigEndian.Uint32(b[12:16]) != 0,
		Counts:        binary.BigEndian.Uint32(b[16:20]),
	}, nil
}

// SetDigitalState turns a digital output on or off.
func (c *Connection) SetDigitalState(point int, on bool) error {
	if on {
		return c.WriteQuad(memmap.DigitalPointWriteTurnOn.Addr(point), 1)
	}

	return c.WriteQuad(memmap.DigitalPointWriteTurnOff.Addr(point), 1)
}

// SetDigitalCounterState activates or deactivates a digital point's counter.
func (c *Connection) SetDigitalCounterState(point int, active bool) error {
	if active {
		return c.WriteQuad(memmap.DigitalPointWriteActivateCounter.Addr(point), 1)
	}

	return c.WriteQuad(memmap.DigitalPointWriteDeactivateCounter.Addr(point), 1)
}

// ReadClearDigitalCounts returns a point's counter and resets it.
func (c *Connection) ReadClearDigitalCounts(point int) (uint32, error) {
	return c.ReadQuad(memmap.DigitalReadClearCounts.Addr(point))
}

// ReadClearDigitalOnLatch returns a point's on-latch and resets it.
func (c *Connection) ReadClearDigitalOnLatch(point int) (bool, error) {
	return c.readBool(memmap.DigitalReadClearOnLatch.Addr(point))
}

// ReadClearDigitalOffLatch returns a point's off-latch and resets it.
func (c *Connection) ReadClearDigitalOffLatch(point int) (bool, error) {
	return c.readBool(memmap.DigitalReadClearOffLatch.Addr(point))
}
