package snapiotest

import (
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"github.com/arloliu/go-snapio/memmap"
	"github.com/arloliu/go-snapio/packet"
	"github.com/arloliu/go-snapio/snapio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit_PowerUpClear(t *testing.T) {
	u := NewUnit()
	assert.True(t, u.PUCPending())
	assert.Equal(t, uint32(1), u.Peek(memmap.StatusReadPUCFlag))

	u.writeQuad(memmap.StatusWriteOperation, 2)
	assert.True(t, u.PUCPending())

	u.writeQuad(memmap.StatusWriteOperation, memmap.OpClearPUC)
	assert.False(t, u.PUCPending())
	assert.Zero(t, u.Peek(memmap.StatusReadPUCFlag))

	u.PowerUp()
	assert.True(t, u.PUCPending())

	assert.False(t, NewUnit(WithPowerUpClear(false)).PUCPending())
}

func TestUnit_Check(t *testing.T) {
	u := NewUnit()

	code, nak := u.check(packet.ReadQuadlet{Offset: memmap.DigitalPointReadState.Addr(0)})
	assert.True(t, nak)
	assert.Equal(t, snapio.PUCExpected, code)

	_, nak = u.check(packet.ReadQuadlet{Offset: memmap.StatusReadLastError})
	assert.False(t, nak)
	_, nak = u.check(packet.WriteQuadlet{Offset: memmap.StatusWriteOperation, Value: 1})
	assert.False(t, nak)

	u.puc.Store(false)
	u.FailAddress(memmap.PointConfigGain.Addr(3), snapio.InvalidFloat)

	code, nak = u.check(packet.WriteBlock{Offset: memmap.PointConfigPointType.Addr(3), Data: make([]byte, 40)})
	assert.True(t, nak)
	assert.Equal(t, snapio.InvalidFloat, code)

	_, nak = u.check(packet.WriteBlock{Offset: memmap.PointConfigPointType.Addr(3), Data: make([]byte, 8)})
	assert.False(t, nak)

	u.ClearFailures()
	_, nak = u.check(packet.WriteBlock{Offset: memmap.PointConfigPointType.Addr(3), Data: make([]byte, 40)})
	assert.False(t, nak)
}

func TestUnit_DigitalMirror(t *testing.T) {
	u := NewUnit(WithPowerUpClear(false))

	u.writeQuad(memmap.DigitalPointWriteActivateCounter.Addr(5), 1)
	u.writeQuad(memmap.DigitalPointWriteTurnOn.Addr(5), 1)
	u.writeQuad(memmap.DigitalPointWriteTurnOn.Addr(5), 1)
	u.writeQuad(memmap.DigitalPointWriteTurnOff.Addr(5), 1)
	u.writeQuad(memmap.DigitalPointWriteTurnOn.Addr(5), 1)

	assert.Equal(t, uint32(1), u.Peek(memmap.DigitalPointReadState.Addr(5)))
	assert.Equal(t, uint32(1), u.Peek(memmap.DigitalPointReadOnLatch.Addr(5)))
	assert.Equal(t, uint32(1), u.Peek(memmap.DigitalPointReadOffLatch.Addr(5)))
	assert.Equal(t, uint32(2), u.Peek(memmap.DigitalPointReadCounterData.Addr(5)))
	assert.Equal(t, uint32(2), u.Peek(memmap.DigitalBankCounter.Addr(5)))

	// writing zero to a command register does nothing
	u.writeQuad(memmap.DigitalPointWriteTurnOff.Addr(5), 0)
	assert.Equal(t, uint32(1), u.Peek(memmap.DigitalPointReadState.Addr(5)))

	assert.Equal(t, uint32(2), u.readQuad(memmap.DigitalReadClearCounts.Addr(5)))
	assert.Zero(t, u.Peek(memmap.DigitalPointReadCounterData.Addr(5)))
	assert.Equal(t, uint32(1), u.readQuad(memmap.DigitalReadClearOnLatch.Addr(5)))
	assert.Zero(t, u.readQuad(memmap.DigitalReadClearOnLatch.Addr(5)))
	assert.Equal(t, uint32(1), u.readQuad(memmap.DigitalReadClearOffLatch.Addr(5)))
}

func TestUnit_FreshRegisters(t *testing.T) {
	u := NewUnit(WithPowerUpClear(false))

	assert.Zero(t, u.swap(0x1234, 7), "absent register reads as zero")
	assert.Equal(t, uint32(7), u.swap(0x1234, 9))

	// first edge on a point nothing has written yet
	u.writeQuad(memmap.DigitalPointWriteActivateCounter.Addr(3), 1)
	u.writeQuad(memmap.DigitalPointWriteTurnOn.Addr(3), 1)
	assert.Equal(t, uint32(1), u.Peek(memmap.DigitalPointReadState.Addr(3)))
	assert.Equal(t, uint32(1), u.Peek(memmap.DigitalPointReadOnLatch.Addr(3)))
	assert.Equal(t, uint32(1), u.Peek(memmap.DigitalPointReadCounterData.Addr(3)))

	// turning off a never-driven point is not an edge
	u.writeQuad(memmap.DigitalPointWriteTurnOff.Addr(4), 1)
	assert.Zero(t, u.Peek(memmap.DigitalPointReadOffLatch.Addr(4)))

	// read-and-clear of untouched registers returns zero
	assert.Zero(t, u.readQuad(memmap.DigitalReadClearCounts.Addr(9)))
	assert.Zero(t, u.readQuad(memmap.DigitalReadClearOnLatch.Addr(9)))
	assert.Zero(t, u.readQuad(memmap.AnalogReadClearMinValue.Addr(9)))
	assert.Zero(t, u.readQuad(memmap.AnalogReadClearMaxValue.Addr(9)))
}

func TestUnit_DigitalBankMasks(t *testing.T) {
	u := NewUnit(WithPowerUpClear(false))

	// high word first: bit 0 of the first quadlet is point 32
	u.writeQuad(memmap.DigitalBankWriteTurnOnMask, 0x1)
	u.writeQuad(memmap.DigitalBankWriteTurnOnMask+4, 0x80000001)

	assert.Equal(t, uint32(1), u.Peek(memmap.DigitalPointReadState.Addr(32)))
	assert.Equal(t, uint32(1), u.Peek(memmap.DigitalPointReadState.Addr(31)))
	assert.Equal(t, uint32(1), u.Peek(memmap.DigitalPointReadState.Addr(0)))

	assert.Equal(t, uint32(0x1), u.Peek(memmap.DigitalBankReadPointStates))
	assert.Equal(t, uint32(0x80000001), u.Peek(memmap.DigitalBankReadPointStates+4))
	assert.Equal(t, uint32(0x80000001), u.Peek(memmap.DigitalBankReadOnLatchStates+4))

	u.writeQuad(memmap.DigitalBankWriteTurnOffMask+4, 0x1)
	assert.Equal(t, uint32(0x80000000), u.Peek(memmap.DigitalBankReadPointStates+4))
	assert.Equal(t, uint32(0x1), u.Peek(memmap.DigitalBankReadOffLatchStates+4))

	u.writeQuad(memmap.DigitalBankWriteActCountersMask, 0xFFFFFFFF)
	u.writeQuad(memmap.DigitalBankWriteDeactCountersMask, 0xFFFFFFFE)
	assert.Equal(t, uint32(0x1), u.Peek(memmap.DigitalBankReadActiveCounters))
	assert.Zero(t, u.Peek(memmap.DigitalBankReadActiveCounters+4))
}

func TestUnit_AnalogMirror(t *testing.T) {
	u := NewUnit(WithPowerUpClear(false))
	bits := func(f float32) uint32 { return math.Float32bits(f) }

	u.writeQuad(memmap.AnalogPointWriteValue.Addr(1), bits(3))
	u.writeQuad(memmap.AnalogPointWriteValue.Addr(1), bits(-2))
	u.writeQuad(memmap.AnalogBankWriteValues+4, bits(1))
	u.writeQuad(memmap.AnalogPointWriteCounts.Addr(1), bits(512))

	assert.Equal(t, bits(1), u.Peek(memmap.AnalogPointReadValue.Addr(1)))
	assert.Equal(t, bits(-2), u.Peek(memmap.AnalogPointReadMinValue.Addr(1)))
	assert.Equal(t, bits(3), u.Peek(memmap.AnalogPointReadMaxValue.Addr(1)))
	assert.Equal(t, bits(512), u.Peek(memmap.AnalogPointReadCounts.Addr(1)))

	// bank reads are views over the point areas
	assert.Equal(t, bits(1), u.Peek(memmap.AnalogBankReadValues+4))
	assert.Equal(t, bits(512), u.Peek(memmap.AnalogBankReadCounts+4))
	assert.Equal(t, bits(-2), u.Peek(memmap.AnalogBankReadMinValues+4))
	assert.Equal(t, bits(3), u.Peek(memmap.AnalogBankReadMaxValues+4))

	assert.Equal(t, bits(-2), u.readQuad(memmap.AnalogReadClearMinValue.Addr(1)))
	assert.Equal(t, bits(1), u.Peek(memmap.AnalogPointReadMinValue.Addr(1)))
	assert.Equal(t, bits(3), u.readQuad(memmap.AnalogReadClearMaxValue.Addr(1)))
	assert.Equal(t, bits(1), u.Peek(memmap.AnalogPointReadMaxValue.Addr(1)))
}

func TestUnit_BlockMerge(t *testing.T) {
	u := NewUnit(WithPowerUpClear(false))
	base := memmap.PointConfigModuleType.Addr(0)
	u.Poke(base, 0x11223344)
	u.Poke(base+4, 0x55667788)

	u.writeBlock(base+2, []byte{0xAA, 0xBB, 0xCC})
	assert.Equal(t, uint32(0x1122AABB), u.Peek(base))
	assert.Equal(t, uint32(0xCC667788), u.Peek(base+4))

	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0x66, 0x77}, u.readBlock(base+2, 5))
}

func TestUnit_Requests(t *testing.T) {
	u := NewUnit()
	u.record(packet.ReadQuadlet{Offset: memmap.StatusReadPUCFlag}, 1)
	u.record(packet.WriteQuadlet{Offset: memmap.StatusWriteOperation, Value: 1}, 2)

	assert.Equal(t, int64(2), u.RequestCount())
	assert.Equal(t, []Request{
		{TCode: packet.TCodeReadQuadRequest, Addr: memmap.StatusReadPUCFlag, Label: 1},
		{TCode: packet.TCodeWriteQuadRequest, Addr: memmap.StatusWriteOperation, Label: 2},
	}, u.Requests())

	u.ResetRequests()
	assert.Zero(t, u.RequestCount())
	assert.Empty(t, u.Requests())
}

func TestUnit_Faults(t *testing.T) {
	u := NewUnit()
	u.DropResponses(1)
	u.GarbleResponses(2)
	u.DelayResponses(1, time.Second)

	f := u.nextFault()
	assert.True(t, f.drop)
	assert.True(t, f.garble)
	assert.Equal(t, time.Second, f.delay)

	f = u.nextFault()
	assert.False(t, f.drop)
	assert.True(t, f.garble)
	assert.Zero(t, f.delay)

	assert.Equal(t, fault{}, u.nextFault())
}

func TestServe_Pipe(t *testing.T) {
	u := NewUnit(WithPowerUpClear(false))
	u.Poke(memmap.PointConfigModuleType.Addr(2), 0x0A)

	dial, err := u.Dialer().Dial("ignored")
	require.NoError(t, err)
	conn, done, err := dial.Poll()
	require.True(t, done)
	require.NoError(t, err)
	defer conn.Close()

	req, err := packet.Encode(packet.ReadQuadlet{Offset: memmap.PointConfigModuleType.Addr(2)}, 7)
	require.NoError(t, err)
	_, err = conn.Write(req)
	require.NoError(t, err)

	rsp := make([]byte, packet.ReadQuadResponseSize)
	_, err = io.ReadFull(conn, rsp)
	require.NoError(t, err)

	label, err := packet.LabelOf(rsp)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), label)
	assert.Equal(t, uint32(0x0A), binary.BigEndian.Uint32(rsp[12:16]))

	// a block read is padded to a quadlet boundary
	req, err = packet.Encode(packet.ReadBlock{Offset: memmap.PointConfigModuleType.Addr(2), Length: 5}, 8)
	require.NoError(t, err)
	_, err = conn.Write(req)
	require.NoError(t, err)

	rsp = make([]byte, packet.ReadBlockResponseSize+8)
	_, err = io.ReadFull(conn, rsp)
	require.NoError(t, err)
	n, err := packet.ResponseSize(rsp)
	require.NoError(t, err)
	assert.Equal(t, len(rsp), n)
}
