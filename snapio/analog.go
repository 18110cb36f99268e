package snapio

import (
	"github.com/arloliu/go-snapio/memmap"
)

// AnalogPointArea is the read area of one analog point.
type AnalogPointArea struct {
	Value    float32
	Counts   float32
	MinValue float32
	MaxValue float32
}

// GetAnalogValue returns the engineering-unit value of an analog point.
func (c *Connection) GetAnalogValue(point int) (float32, error) {
	return c.ReadFloat(memmap.AnalogPointReadValue.Addr(point))
}

// GetAnalogCounts returns the raw counts of an analog point.
func (c *Connection) GetAnalogCounts(point int) (float32, error) {
	return c.ReadFloat(memmap.AnalogPointReadCounts.Addr(point))
}

// GetAnalogMinValue returns the lowest value seen on an analog point.
func (c *Connection) GetAnalogMinValue(point int) (float32, error) {
	return c.ReadFloat(memmap.AnalogPointReadMinValue.Addr(point))
}

// GetAnalogMaxValue returns the highest value seen on an analog point.
func (c *Connection) GetAnalogMaxValue(point int) (float32, error) {
	return c.ReadFloat(memmap.AnalogPointReadMaxValue.Addr(point))
}

// GetAnalogPointArea reads the whole read area of an analog point in one transaction.
func (c *Connection) GetAnalogPointArea(point int) (AnalogPointArea, error) {
	b, err := c.ReadBlock(memmap.AnalogPointReadArea.Addr(point), memmap.AnalogPointReadAreaSize)
	if err != nil {
		return AnalogPointArea{}, err
	}

	return AnalogPointArea{
		Value:    getFloat(b[0:4]),
		Counts:   getFloat(b[4:8]),
		MinValue: getFloat(b[8:12]),
		MaxValue: getFloat(b[12:16]),
	}, nil
}

// SetAnalogValue writes an analog output in engineering units.
func (c *Connection) SetAnalogValue(point int, value float32) error {
	return c.WriteFloat(memmap.AnalogPointWriteValue.Addr(point), value)
}

// SetAnalogCounts writes an analog output in raw counts.
func (c *Connection) SetAnalogCounts(point int, counts float32) error {
	return c.WriteFloat(memmap.AnalogPointWriteCounts.Addr(point), counts)
}

// ReadClearAnalogMinValue returns a point's minimum and resets it.
func (c *Connection) ReadClearAnalogMinValue(point int) (float32, error) {
	return c.ReadFloat(memmap.AnalogReadClearMinValue.Addr(point))
}

// ReadClearAnalogMaxValue returns a point's maximum and resets it.
func (c *Connection) ReadClearAnalogMaxValue(point int) (float32, error) {
	return c.ReadFloat(memmap.AnalogReadClearMaxValue.Addr(point))
}

// CalcSetAnalogOffset makes the unit calculate and apply an offset for the
// point from its current reading, and returns the result.
func (c *Connection) CalcSetAnalogOffset(point int) (float32, error) {
	return c.ReadFloat(memmap.AnalogCalcSetOffset.Addr(point))
}

// CalcSetAnalogGain makes the unit calculate and apply a gain for the point
// from its current reading, and returns the result.
func (c *Connection) CalcSetAnalogGain(point int) (float32, error) {
	return c.ReadFloat(memmap.AnalogCalcSetGain.Addr(point))
}
