package snapio

import (
	"encoding/binary"
	"math"

	"github.com/arloliu/go-snapio/memmap"
)

// Common point types.
const (
	PointTypeDigitalInput  uint32 = 0x0100
	PointTypeDigitalOutput uint32 = 0x0180
)

// PointConfig is a point's configuration area.
//
// ModuleType is read-only and ignored by SetPointConfig. Feature applies to
// digital points; Offset, Gain, HiScale and LoScale to analog points.
type PointConfig struct {
	ModuleType      uint32
	PointType       uint32
	Feature         uint32
	Offset          float32
	Gain            float32
	HiScale         float32
	LoScale         float32
	WatchdogValue   float32
	WatchdogEnabled bool
}

// ConfigurePoint sets the type of point.
func (c *Connection) ConfigurePoint(point int, pointType uint32) error {
	return c.WriteQuad(memmap.PointConfigPointType.Addr(point), pointType)
}

// GetModuleType returns the type of the module installed at point.
func (c *Connection) GetModuleType(point int) (uint32, error) {
	return c.ReadQuad(memmap.PointConfigModuleType.Addr(point))
}

// GetPointConfig reads the configuration area of point.
func (c *Connection) GetPointConfig(point int) (PointConfig, error) {
	b, err := c.ReadBlock(memmap.PointConfigModuleType.Addr(point), memmap.PointConfigReadAreaSize)
	if err != nil {
		return PointConfig{}, err
	}

	// bytes 28..35 are reserved
	return PointConfig{
		ModuleType:      binary.BigEndian.Uint32(b[0:4]),
		PointType:       binary.BigEndian.Uint32(b[4:8]),
		Feature:         binary.BigEndian.Uint32(b[8:12]),
		Offset:          getFloat(b[12:16]),
		Gain:            getFloat(b[16:20]),
		HiScale:         getFloat(b[20:24]),
		LoScale:         getFloat(b[24:28]),
		WatchdogValue:   getFloat(b[36:40]),
		WatchdogEnabled: binary.BigEndian.Uint32(b[40:44]) != 0,
	}, nil
}

// SetPointConfig writes every writable field of cfg for point.
func (c *Connection) SetPointConfig(point int, cfg PointConfig) error {
	b := make([]byte, memmap.PointConfigWriteAreaSize)
	binary.BigEndian.PutUint32(b[0:4], cfg.PointType)
	binary.BigEndian.PutUint32(b[4:8], cfg.Feature)
	putFloat(b[8:12], cfg.Offset)
	putFloat(b[12:16], cfg.Gain)
	putFloat(b[16:20], cfg.HiScale)
	putFloat(b[20:24], cfg.LoScale)
	putFloat(b[32:36], cfg.WatchdogValue)
	binary.BigEndian.PutUint32(b[36:40], boolQuad(cfg.WatchdogEnabled))

	return c.WriteBlock(memmap.PointConfigPointType.Addr(point), b)
}

// SetDigitalPointConfig sets the type and feature of a digital point.
func (c *Connection) SetDigitalPointConfig(point int, pointType, feature uint32) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], pointType)
	binary.BigEndian.PutUint32(b[4:8], feature)

	return c.WriteBlock(memmap.PointConfigPointType.Addr(point), b)
}

// SetAnalogPointConfig sets the type, offset, gain and scaling of an analog
// point. The feature word is written as zero.
func (c *Connection) SetAnalogPointConfig(point int, pointType uint32, offset, gain, hiScale, loScale float32) error {
	b := make([]byte, 24)
	binary.BigEndian.PutUint32(b[0:4], pointType)
	putFloat(b[8:12], offset)
	putFloat(b[12:16], gain)
	putFloat(b[16:20], hiScale)
	putFloat(b[20:24], loScale)

	return c.WriteBlock(memmap.PointConfigPointType.Addr(point), b)
}

// SetPointWatchdog sets the value point assumes when the unit's watchdog
// expires, and whether it does so.
func (c *Connection) SetPointWatchdog(point int, value float32, enabled bool) error {
	b := make([]byte, 8)
	putFloat(b[0:4], value)
	binary.BigEndian.PutUint32(b[4:8], boolQuad(enabled))

	return c.WriteBlock(memmap.PointConfigWatchdogValue.Addr(point), b)
}

func getFloat(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

func putFloat(b []byte, f float32) {
	binary.BigEndian.PutUint32(b, math.Float32bits(f))
}
