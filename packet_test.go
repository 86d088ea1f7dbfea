package tsinspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildPacketHeaderBytes returns the 3 bytes that follow the sync byte.
func buildPacketHeaderBytes(h PacketHeader) []byte {
	b := make([]byte, 3)
	if h.TransportErrorIndicator {
		b[0] |= 0x80
	}
	if h.PayloadUnitStartIndicator {
		b[0] |= 0x40
	}
	if h.TransportPriority {
		b[0] |= 0x20
	}
	b[0] |= byte(h.PID >> 8 & 0x1f)
	b[1] = byte(h.PID & 0xff)
	b[2] = h.TransportScramblingControl << 6
	if h.HasAdaptationField {
		b[2] |= 0x20
	}
	if h.HasPayload {
		b[2] |= 0x10
	}
	b[2] |= h.ContinuityCounter & 0xf
	return b
}

var testPacketHeader = &PacketHeader{
	ContinuityCounter:          10,
	HasAdaptationField:         true,
	HasPayload:                 true,
	PayloadUnitStartIndicator:  true,
	PID:                        5461,
	TransportErrorIndicator:    true,
	TransportPriority:          true,
	TransportScramblingControl: ScramblingControlScrambledWithEvenKey,
}

func TestParsePacketHeader(t *testing.T) {
	b := buildPacketHeaderBytes(*testPacketHeader)
	got := parsePacketHeader(b)
	assert.Equal(t, testPacketHeader, got)
}

func TestParsePacket_InvalidSync(t *testing.T) {
	b := make([]byte, PacketLength)
	b[0] = 0x00
	_, err := parsePacket(b)
	assert.EqualError(t, err, ErrPacketMustStartWithASyncByte.Error())
}

func TestParsePacket_NoAdaptationField(t *testing.T) {
	b := make([]byte, PacketLength)
	b[0] = syncByte
	b[3] = 0x10 // payload only, no adaptation field
	copy(b[4:], []byte("hello"))
	p, err := parsePacket(b)
	assert.NoError(t, err)
	assert.False(t, p.Header.HasAdaptationField)
	assert.True(t, p.Header.HasPayload)
	assert.Equal(t, byte('h'), p.Payload[0])
}

var testPCR = &ClockReference{
	Base:      5726623061,
	Extension: 341,
}

func buildPCRBytes() []byte {
	v := uint64(testPCR.Base)<<15 | 0x3f<<9 | uint64(testPCR.Extension)
	return []byte{
		byte(v >> 40), byte(v >> 32), byte(v >> 24),
		byte(v >> 16), byte(v >> 8), byte(v),
	}
}

func TestParsePCR(t *testing.T) {
	got := parsePCR(buildPCRBytes())
	assert.Equal(t, testPCR, got)
}

func TestParsePacketAdaptationField_PCROnly(t *testing.T) {
	pcrBytes := buildPCRBytes()
	body := append([]byte{0x10}, pcrBytes...) // flags: PCR flag only
	b := append([]byte{byte(len(body))}, body...)
	a := parsePacketAdaptationField(b)
	assert.True(t, a.HasPCR)
	assert.Equal(t, testPCR, a.PCR)
	assert.Equal(t, len(body), a.Length)
}

func TestParsePacketAdaptationField_SpliceCountdownNegative(t *testing.T) {
	body := []byte{0x04, 0xfe} // splicing countdown flag, value -2
	b := append([]byte{byte(len(body))}, body...)
	a := parsePacketAdaptationField(b)
	assert.True(t, a.HasSplicingCountdown)
	assert.Equal(t, -2, a.SpliceCountdown)
}

func TestParsePacketAdaptationField_ZeroLength(t *testing.T) {
	a := parsePacketAdaptationField([]byte{0x00})
	assert.Equal(t, 0, a.Length)
}

func TestPayloadOffset(t *testing.T) {
	assert.Equal(t, 3, payloadOffset(&PacketHeader{}, nil))
	assert.Equal(t, 7, payloadOffset(&PacketHeader{HasAdaptationField: true}, &PacketAdaptationField{Length: 3}))
}

func TestPacket_PCRValue(t *testing.T) {
	p := &Packet{AdaptationField: &PacketAdaptationField{HasPCR: true, PCR: testPCR}}
	v, ok := p.PCRValue()
	assert.True(t, ok)
	assert.Equal(t, testPCR.Ticks(), v)

	p2 := &Packet{}
	_, ok = p2.PCRValue()
	assert.False(t, ok)
}
