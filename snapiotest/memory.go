package snapiotest

import (
	"encoding/binary"

	"github.com/arloliu/go-snapio/memmap"
	"github.com/arloliu/go-snapio/snapio"
)

const (
	digitalPoints = memmap.DigitalBankPoints
	analogPoints  = memmap.AnalogBankPoints
)

// pointOf returns the point index of addr inside a per-point area of the
// given base and stride, and the field offset within the point.
func pointOf(addr, base, stride uint32, points int) (point int, field uint32, ok bool) {
	if addr < base || addr >= base+stride*uint32(points) {
		return 0, 0, false
	}

	rel := addr - base

	return int(rel / stride), rel % stride, true
}

// quad returns the quadlet visible at addr, including derived registers.
func (u *Unit) quad(addr uint32) uint32 {
	addr &^= 3

	switch {
	case addr == memmap.StatusReadPUCFlag:
		return boolQuad(u.puc.Load())
	case addr == memmap.StatusReadLastError:
		return u.lastError.Load()
	}

	// digital bank masks are views over the per-point registers
	if addr >= memmap.DigitalBankReadBase && addr < memmap.DigitalBankReadCounterData {
		rel := addr - memmap.DigitalBankReadBase
		var field uint32
		switch rel &^ 7 {
		case 0x00:
			field = 0x0
		case 0x08:
			field = 0x4
		case 0x10:
			field = 0x8
		case 0x18:
			field = 0xC
		default:
			return 0
		}
		mask := u.digitalMask(field)
		if rel&4 == 0 {
			return uint32(mask >> 32)
		}

		return uint32(mask)
	}

	if point, _, ok := pointOf(addr, memmap.DigitalBankReadCounterData, memmap.DigitalBankCounterStride, digitalPoints); ok {
		return u.load(memmap.DigitalPointReadCounterData.Addr(point))
	}

	// analog bank reads are views over the per-point read areas
	if point, _, ok := pointOf(addr, memmap.AnalogBankReadBase, 4, analogPoints*4); ok {
		field := uint32(point/analogPoints) * 4
		return u.load(memmap.AnalogPointReadArea.Addr(point%analogPoints) + field)
	}

	return u.load(addr)
}

func (u *Unit) load(addr uint32) uint32 {
	v, _ := u.mem.Load(addr)
	return v
}

func (u *Unit) digitalMask(field uint32) uint64 {
	var mask uint64
	for i := range digitalPoints {
		if u.load(memmap.DigitalPointReadArea.Addr(i)+field) != 0 {
			mask |= 1 << uint(i)
		}
	}

	return mask
}

// readQuad performs a quadlet read with read-and-clear side effects.
func (u *Unit) readQuad(addr uint32) uint32 {
	addr &^= 3

	if point, _, ok := pointOf(addr, memmap.DigitalReadClearCounts.Base, memmap.DigitalReadClearStride, digitalPoints); ok {
		return u.swap(memmap.DigitalPointReadCounterData.Addr(point), 0)
	}
	if point, _, ok := pointOf(addr, memmap.DigitalReadClearOnLatch.Base, memmap.DigitalReadClearStride, digitalPoints); ok {
		return u.swap(memmap.DigitalPointReadOnLatch.Addr(point), 0)
	}
	if point, _, ok := pointOf(addr, memmap.DigitalReadClearOffLatch.Base, memmap.DigitalReadClearStride, digitalPoints); ok {
		return u.swap(memmap.DigitalPointReadOffLatch.Addr(point), 0)
	}
	if point, _, ok := pointOf(addr, memmap.AnalogReadClearMinValue.Base, memmap.AnalogReadClearStride, analogPoints); ok {
		a := memmap.AnalogPointReadMinValue.Addr(point)
		return u.swap(a, u.load(memmap.AnalogPointReadValue.Addr(point)))
	}
	if point, _, ok := pointOf(addr, memmap.AnalogReadClearMaxValue.Base, memmap.AnalogReadClearStride, analogPoints); ok {
		a := memmap.AnalogPointReadMaxValue.Addr(point)
		return u.swap(a, u.load(memmap.AnalogPointReadValue.Addr(point)))
	}

	return u.quad(addr)
}

func (u *Unit) swap(addr uint32, v uint32) uint32 {
	// an absent register reads as zero
	old, loaded := u.mem.LoadAndStore(addr, v)
	if !loaded {
		return 0
	}

	return old
}

// writeQuad stores v at addr and mirrors write areas into read areas.
func (u *Unit) writeQuad(addr uint32, v uint32) {
	addr &^= 3

	switch addr {
	case memmap.StatusWriteOperation:
		if v == memmap.OpClearPUC {
			u.puc.Store(false)
		}
		return
	case memmap.DigitalBankWriteTurnOnMask, memmap.DigitalBankWriteTurnOnMask + 4:
		u.applyMask(addr-memmap.DigitalBankWriteTurnOnMask, v, memmap.DigitalPointReadState, true)
		return
	case memmap.DigitalBankWriteTurnOffMask, memmap.DigitalBankWriteTurnOffMask + 4:
		u.applyMask(addr-memmap.DigitalBankWriteTurnOffMask, v, memmap.DigitalPointReadState, false)
		return
	case memmap.DigitalBankWriteActCountersMask, memmap.DigitalBankWriteActCountersMask + 4:
		u.applyMask(addr-memmap.DigitalBankWriteActCountersMask, v, memmap.DigitalPointReadActiveCounter, true)
		return
	case memmap.DigitalBankWriteDeactCountersMask, memmap.DigitalBankWriteDeactCountersMask + 4:
		u.applyMask(addr-memmap.DigitalBankWriteDeactCountersMask, v, memmap.DigitalPointReadActiveCounter, false)
		return
	}

	if point, field, ok := pointOf(addr, memmap.DigitalPointWriteTurnOn.Base, memmap.DigitalPointWriteStride, digitalPoints); ok {
		if v == 0 {
			return
		}
		switch field {
		case 0x0:
			u.setDigital(point, true)
		case 0x4:
			u.setDigital(point, false)
		case 0x8:
			u.mem.Store(memmap.DigitalPointReadActiveCounter.Addr(point), 1)
		case 0xC:
			u.mem.Store(memmap.DigitalPointReadActiveCounter.Addr(point), 0)
		}
		return
	}

	if point, field, ok := pointOf(addr, memmap.AnalogPointWriteValue.Base, memmap.AnalogPointWriteStride, analogPoints); ok {
		switch field {
		case 0x0:
			u.setAnalog(point, v)
		case 0x4:
			u.mem.Store(memmap.AnalogPointReadCounts.Addr(point), v)
		}
		return
	}

	if point, _, ok := pointOf(addr, memmap.AnalogBankWriteValues, 4, analogPoints); ok {
		u.setAnalog(point, v)
		return
	}
	if point, _, ok := pointOf(addr, memmap.AnalogBankWriteCounts, 4, analogPoints); ok {
		u.mem.Store(memmap.AnalogPointReadCounts.Addr(point), v)
		return
	}

	u.mem.Store(addr, v)
}

// applyMask applies one 32-bit half of a bank mask; offset 0 is points 63..32.
func (u *Unit) applyMask(offset uint32, bits uint32, target memmap.Region, set bool) {
	first := 32
	if offset == 4 {
		first = 0
	}

	for i := range 32 {
		if bits&(1<<uint(i)) == 0 {
			continue
		}
		point := first + i
		if target == memmap.DigitalPointReadState {
			u.setDigital(point, set)
		} else {
			u.mem.Store(target.Addr(point), boolQuad(set))
		}
	}
}

// setDigital drives a digital point and latches the edge.
func (u *Unit) setDigital(point int, on bool) {
	prev := u.swap(memmap.DigitalPointReadState.Addr(point), boolQuad(on))

	switch {
	case on && prev == 0:
		u.mem.Store(memmap.DigitalPointReadOnLatch.Addr(point), 1)
		if u.load(memmap.DigitalPointReadActiveCounter.Addr(point)) != 0 {
			u.mem.Compute(memmap.DigitalPointReadCounterData.Addr(point), func(old uint32, loaded bool) (uint32, bool) {
				if !loaded {
					old = 0
				}
				return old + 1, false
			})
		}
	case !on && prev != 0:
		u.mem.Store(memmap.DigitalPointReadOffLatch.Addr(point), 1)
	}
}

// setAnalog drives an analog point's value and tracks its extremes. Values
// are compared as floats, not as raw bits.
func (u *Unit) setAnalog(point int, bits uint32) {
	u.mem.Store(memmap.AnalogPointReadValue.Addr(point), bits)

	v := quadFloat(bits)
	minAddr := memmap.AnalogPointReadMinValue.Addr(point)
	maxAddr := memmap.AnalogPointReadMaxValue.Addr(point)
	if cur, ok := u.mem.Load(minAddr); !ok || v < quadFloat(cur) {
		u.mem.Store(minAddr, bits)
	}
	if cur, ok := u.mem.Load(maxAddr); !ok || v > quadFloat(cur) {
		u.mem.Store(maxAddr, bits)
	}
}

// readBlock assembles n bytes from consecutive quadlets.
func (u *Unit) readBlock(addr uint32, n int) []byte {
	out := make([]byte, n)
	var q [4]byte

	for i := 0; i < n; {
		a := addr + uint32(i)
		binary.BigEndian.PutUint32(q[:], u.readQuad(a))
		i += copy(out[i:], q[a&3:])
	}

	return out
}

// writeBlock splits data into quadlets, merging partial quadlets with the
// current contents.
func (u *Unit) writeBlock(addr uint32, data []byte) {
	var q [4]byte

	for i := 0; i < len(data); {
		a := addr + uint32(i)
		binary.BigEndian.PutUint32(q[:], u.quad(a))
		i += copy(q[a&3:], data[i:])
		u.writeQuad(a, binary.BigEndian.Uint32(q[:]))
	}
}

// forcedCode returns the NAK code for a request spanning [addr, addr+n).
func (u *Unit) forcedCode(addr uint32, n int) (snapio.DeviceErrorCode, bool) {
	var (
		code  snapio.DeviceErrorCode
		found bool
	)

	u.forcedNak.Range(func(a uint32, c snapio.DeviceErrorCode) bool {
		if a >= addr && a < addr+uint32(max(n, 4)) {
			code, found = c, true
			return false
		}

		return true
	})

	return code, found
}
