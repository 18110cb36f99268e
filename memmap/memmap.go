// Package memmap holds the logical memory map of a SNAP Ethernet I/O unit and
// resolves per-point register addresses.
//
// The unit exposes everything (status, banks, points, configuration) as
// 32-bit offsets. Per-point areas repeat with a fixed stride ("boundary"), so
// the address of field f for point i is base(f) + stride*i.
//
// No bounds checking is performed on point indices: an out-of-range index
// addresses whatever unit memory the arithmetic lands on, and the unit decides
// whether to reject it. Callers are responsible for valid indices.
package memmap

// Region is a named per-item field of the memory map.
type Region struct {
	Name   string
	Base   uint32
	Stride uint32
}

// Addr returns the address of item index within the region.
func (r Region) Addr(index int) uint32 {
	return Resolve(r.Base, r.Stride, index)
}

// Resolve returns base + stride*index in 32-bit unsigned arithmetic.
// Negative or large indices wrap around instead of failing.
func Resolve(base, stride uint32, index int) uint32 {
	return base + stride*uint32(index) //nolint:gosec
}

// Per-item strides.
const (
	DigitalPointReadStride   uint32 = 0x40
	DigitalPointWriteStride  uint32 = 0x40
	AnalogPointReadStride    uint32 = 0x40
	AnalogPointWriteStride   uint32 = 0x40
	PointConfigStride        uint32 = 0x40
	DigitalReadClearStride   uint32 = 0x04
	AnalogReadClearStride    uint32 = 0x04
	AnalogCalcSetStride      uint32 = 0x04
	DigitalBankCounterStride uint32 = 0x04
)

// Status read area.
const (
	StatusReadBase        uint32 = 0xF0300000
	StatusReadPUCFlag     uint32 = 0xF0300004
	StatusReadLastError   uint32 = 0xF030000C
	StatusReadBootpFlag   uint32 = 0xF0300048
	StatusReadDegreesFlag uint32 = 0xF030004C
)

// Status write area.
const (
	StatusWriteOperation    uint32 = 0xF0380000
	StatusWriteBootp        uint32 = 0xF0380004
	StatusWriteTempDegrees  uint32 = 0xF0380008
	StatusWriteWatchdogTime uint32 = 0xF0380010
)

// Operation codes written to StatusWriteOperation.
const (
	// OpClearPUC acknowledges the unit's power-up-clear condition.
	OpClearPUC uint32 = 1
)

// Digital bank read area.
const (
	DigitalBankReadBase           uint32 = 0xF0400000
	DigitalBankReadPointStates    uint32 = 0xF0400000
	DigitalBankReadOnLatchStates  uint32 = 0xF0400008
	DigitalBankReadOffLatchStates uint32 = 0xF0400010
	DigitalBankReadActiveCounters uint32 = 0xF0400018
	DigitalBankReadCounterData    uint32 = 0xF0400100
)

// Digital bank write area.
const (
	DigitalBankWriteBase              uint32 = 0xF0500000
	DigitalBankWriteTurnOnMask        uint32 = 0xF0500000
	DigitalBankWriteTurnOffMask       uint32 = 0xF0500008
	DigitalBankWriteActCountersMask   uint32 = 0xF0500010
	DigitalBankWriteDeactCountersMask uint32 = 0xF0500018
)

// Analog bank read area.
const (
	AnalogBankReadBase      uint32 = 0xF0600000
	AnalogBankReadValues    uint32 = 0xF0600000
	AnalogBankReadCounts    uint32 = 0xF0600100
	AnalogBankReadMinValues uint32 = 0xF0600200
	AnalogBankReadMaxValues uint32 = 0xF0600300
)

// Analog bank write area.
const (
	AnalogBankWriteBase   uint32 = 0xF0700000
	AnalogBankWriteValues uint32 = 0xF0700000
	AnalogBankWriteCounts uint32 = 0xF0700100
)

// Point area bases.
const (
	DigitalPointReadBase uint32 = 0xF0800000
	AnalogPointReadBase  uint32 = 0xF0A00000
	PointConfigBase      uint32 = 0xF0C00000
)

// Block sizes in bytes.
const (
	AnalogBankPoints         = 64
	AnalogBankSize           = AnalogBankPoints * 4
	DigitalBankPoints        = 64
	DigitalBankReadAreaSize  = 32
	DigitalPointReadAreaSize = 20
	AnalogPointReadAreaSize  = 16
	PointConfigReadAreaSize  = 44
	PointConfigWriteAreaSize = 40
	StatusVersionBlockSize   = 32
	StatusHardwareBlockSize  = 44
	StatusNetworkBlockSize   = 64
)

// Digital point read area.
var (
	DigitalPointReadState         = Region{"digital-point-state", 0xF0800000, DigitalPointReadStride}
	DigitalPointReadOnLatch       = Region{"digital-point-on-latch", 0xF0800004, DigitalPointReadStride}
	DigitalPointReadOffLatch      = Region{"digital-point-off-latch", 0xF0800008, DigitalPointReadStride}
	DigitalPointReadActiveCounter = Region{"digital-point-active-counter", 0xF080000C, DigitalPointReadStride}
	DigitalPointReadCounterData   = Region{"digital-point-counter-data", 0xF0800010, DigitalPointReadStride}
	DigitalPointReadArea          = Region{"digital-point-read-area", DigitalPointReadBase, DigitalPointReadStride}
)

// Digital point write area.
var (
	DigitalPointWriteTurnOn            = Region{"digital-point-turn-on", 0xF0900000, DigitalPointWriteStride}
	DigitalPointWriteTurnOff           = Region{"digital-point-turn-off", 0xF0900004, DigitalPointWriteStride}
	DigitalPointWriteActivateCounter   = Region{"digital-point-activate-counter", 0xF0900008, DigitalPointWriteStride}
	DigitalPointWriteDeactivateCounter = Region{"digital-point-deactivate-counter", 0xF090000C, DigitalPointWriteStride}
)

// Analog point read area.
var (
	AnalogPointReadValue    = Region{"analog-point-value", 0xF0A00000, AnalogPointReadStride}
	AnalogPointReadCounts   = Region{"analog-point-counts", 0xF0A00004, AnalogPointReadStride}
	AnalogPointReadMinValue = Region{"analog-point-min-value", 0xF0A00008, AnalogPointReadStride}
	AnalogPointReadMaxValue = Region{"analog-point-max-value", 0xF0A0000C, AnalogPointReadStride}
	AnalogPointReadArea     = Region{"analog-point-read-area", AnalogPointReadBase, AnalogPointReadStride}
)

// Analog point write area.
var (
	AnalogPointWriteValue  = Region{"analog-point-write-value", 0xF0B00000, AnalogPointWriteStride}
	AnalogPointWriteCounts = Region{"analog-point-write-counts", 0xF0B00004, AnalogPointWriteStride}
)

// Point configuration area.
var (
	PointConfigModuleType     = Region{"point-config-module-type", 0xF0C00000, PointConfigStride}
	PointConfigPointType      = Region{"point-config-point-type", 0xF0C00004, PointConfigStride}
	PointConfigFeature        = Region{"point-config-feature", 0xF0C00008, PointConfigStride}
	PointConfigOffset         = Region{"point-config-offset", 0xF0C0000C, PointConfigStride}
	PointConfigGain           = Region{"point-config-gain", 0xF0C00010, PointConfigStride}
	PointConfigHiScale        = Region{"point-config-hi-scale", 0xF0C00014, PointConfigStride}
	PointConfigLoScale        = Region{"point-config-lo-scale", 0xF0C00018, PointConfigStride}
	PointConfigWatchdogValue  = Region{"point-config-watchdog-value", 0xF0C00024, PointConfigStride}
	PointConfigWatchdogEnable = Region{"point-config-watchdog-enable", 0xF0C00028, PointConfigStride}
)

// Read-and-clear areas.
var (
	DigitalReadClearCounts   = Region{"digital-read-clear-counts", 0xF0F00000, DigitalReadClearStride}
	DigitalReadClearOnLatch  = Region{"digital-read-clear-on-latch", 0xF0F00100, DigitalReadClearStride}
	DigitalReadClearOffLatch = Region{"digital-read-clear-off-latch", 0xF0F00200, DigitalReadClearStride}
	AnalogReadClearMinValue  = Region{"analog-read-clear-min-value", 0xF0F80000, AnalogReadClearStride}
	AnalogReadClearMaxValue  = Region{"analog-read-clear-max-value", 0xF0F80100, AnalogReadClearStride}
)

// Calculate-and-set areas.
var (
	AnalogCalcSetOffset = Region{"analog-calc-set-offset", 0xF0E00000, AnalogCalcSetStride}
	AnalogCalcSetGain   = Region{"analog-calc-set-gain", 0xF0E00100, AnalogCalcSetStride}
)

// DigitalBankCounter is the per-point counter slot inside the digital bank
// read area.
var DigitalBankCounter = Region{"digital-bank-counter", DigitalBankReadCounterData, DigitalBankCounterStride}
