package snapio

import (
	"encoding/binary"

	"github.com/arloliu/go-snapio/memmap"
)

// DigitalBankArea is the digital bank read area. Bit n of each mask is point n.
type DigitalBankArea struct {
	States         uint64
	OnLatches      uint64
	OffLatches     uint64
	ActiveCounters uint64
}

// AnalogBank holds one float per analog point of the bank.
type AnalogBank [memmap.AnalogBankPoints]float32

// GetDigitalBankStates returns the states of all 64 digital points.
func (c *Connection) GetDigitalBankStates() (uint64, error) {
	return c.readMask64(memmap.DigitalBankReadPointStates)
}

// GetDigitalBankOnLatches returns the on-latches of all 64 digital points.
func (c *Connection) GetDigitalBankOnLatches() (uint64, error) {
	return c.readMask64(memmap.DigitalBankReadOnLatchStates)
}

// GetDigitalBankOffLatches returns the off-latches of all 64 digital points.
func (c *Connection) GetDigitalBankOffLatches() (uint64, error) {
	return c.readMask64(memmap.DigitalBankReadOffLatchStates)
}

// GetDigitalBankActiveCounters returns which of the 64 digital counters are active.
func (c *Connection) GetDigitalBankActiveCounters() (uint64, error) {
	return c.readMask64(memmap.DigitalBankReadActiveCounters)
}

// GetDigitalBankArea reads the whole digital bank read area in one transaction.
func (c *Connection) GetDigitalBankArea() (DigitalBankArea, error) {
	b, err := c.ReadBlock(memmap.DigitalBankReadBase, memmap.DigitalBankReadAreaSize)
	if err != nil {
		return DigitalBankArea{}, err
	}

	return DigitalBankArea{
		States:         binary.BigEndian.Uint64(b[0:8]),
		OnLatches:      binary.BigEndian.Uint64(b[8:16]),
		OffLatches:     binary.BigEndian.Uint64(b[16:24]),
		ActiveCounters: binary.BigEndian.Uint64(b[24:32]),
	}, nil
}

// SetDigitalBankStates drives the points selected by mask to the matching
// bit of states, leaving the others untouched. It writes the turn-on and
// turn-off masks in one block.
func (c *Connection) SetDigitalBankStates(states, mask uint64) error {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], states&mask)
	binary.BigEndian.PutUint64(b[8:16], ^states&mask)

	return c.WriteBlock(memmap.DigitalBankWriteTurnOnMask, b)
}

// SetDigitalBankOnMask turns on every point whose bit is set.
func (c *Connection) SetDigitalBankOnMask(mask uint64) error {
	return c.writeMask64(memmap.DigitalBankWriteTurnOnMask, mask)
}

// SetDigitalBankOffMask turns off every point whose bit is set.
func (c *Connection) SetDigitalBankOffMask(mask uint64) error {
	return c.writeMask64(memmap.DigitalBankWriteTurnOffMask, mask)
}

// SetDigitalBankActivateCounters activates the counter of every point whose bit is set.
func (c *Connection) SetDigitalBankActivateCounters(mask uint64) error {
	return c.writeMask64(memmap.DigitalBankWriteActCountersMask, mask)
}

// SetDigitalBankDeactivateCounters deactivates the counter of every point whose bit is set.
func (c *Connection) SetDigitalBankDeactivateCounters(mask uint64) error {
	return c.writeMask64(memmap.DigitalBankWriteDeactCountersMask, mask)
}

// GetAnalogBankValues reads the values of all analog points.
func (c *Connection) GetAnalogBankValues() (AnalogBank, error) {
	return c.readAnalogBank(memmap.AnalogBankReadValues)
}

// GetAnalogBankCounts reads the raw counts of all analog points.
func (c *Connection) GetAnalogBankCounts() (AnalogBank, error) {
	return c.readAnalogBank(memmap.AnalogBankReadCounts)
}

// GetAnalogBankMinValues reads the minimum values of all analog points.
func (c *Connection) GetAnalogBankMinValues() (AnalogBank, error) {
	return c.readAnalogBank(memmap.AnalogBankReadMinValues)
}

// GetAnalogBankMaxValues reads the maximum values of all analog points.
func (c *Connection) GetAnalogBankMaxValues() (AnalogBank, error) {
	return c.readAnalogBank(memmap.AnalogBankReadMaxValues)
}

// SetAnalogBankValues writes the values of all analog points.
func (c *Connection) SetAnalogBankValues(bank AnalogBank) error {
	return c.writeAnalogBank(memmap.AnalogBankWriteValues, bank)
}

// SetAnalogBankCounts writes the raw counts of all analog points.
func (c *Connection) SetAnalogBankCounts(bank AnalogBank) error {
	return c.writeAnalogBank(memmap.AnalogBankWriteCounts, bank)
}

// The high word (points 63..32) comes first on the wire.
func (c *Connection) readMask64(addr uint32) (uint64, error) {
	b, err := c.ReadBlock(addr, 8)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(b), nil
}

func (c *Connection) writeMask64(addr uint32, mask uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, mask)

	return c.WriteBlock(addr, b)
}

func (c *Connection) readAnalogBank(addr uint32) (AnalogBank, error) {
	var bank AnalogBank

	b, err := c.ReadBlock(addr, memmap.AnalogBankSize)
	if err != nil {
		return bank, err
	}

	for i := range bank {
		bank[i] = getFloat(b[i*4 : i*4+4])
	}

	return bank, nil
}

func (c *Connection) writeAnalogBank(addr uint32, bank AnalogBank) error {
	b := make([]byte, memmap.AnalogBankSize)
	for i, v := range bank {
		putFloat(b[i*4:i*4+4], v)
	}

	return c.WriteBlock(addr, b)
}
