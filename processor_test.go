package tsinspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildTSPacket assembles one 188-byte TS packet carrying payload, padded
// with 0xff stuffing bytes.
func buildTSPacket(pid uint16, pusi bool, cc uint8, payload []byte) []byte {
	b := make([]byte, PacketLength)
	b[0] = syncByte
	b[1] = byte(pid >> 8 & 0x1f)
	if pusi {
		b[1] |= 0x40
	}
	b[2] = byte(pid)
	b[3] = 0x10 | cc // payload present, no adaptation field

	n := copy(b[4:], payload)
	for i := 4 + n; i < PacketLength; i++ {
		b[i] = 0xff
	}
	return b
}

type pmtStreamSpec struct {
	streamType uint8
	pid        uint16
}

// buildPMTSectionBytes builds a minimal, CRC-correct PMT section.
func buildPMTSectionBytes(programNumber, pcrPID uint16, streams []pmtStreamSpec) []byte {
	var syntax []byte
	syntax = append(syntax, byte(programNumber>>8), byte(programNumber))
	syntax = append(syntax, 0xc1, 0x00, 0x00) // version 0, current, section 0, last 0
	syntax = append(syntax, byte(pcrPID>>8&0x1f)|0xe0, byte(pcrPID))
	syntax = append(syntax, 0xf0, 0x00) // program_info_length = 0
	for _, s := range streams {
		syntax = append(syntax, s.streamType)
		syntax = append(syntax, byte(s.pid>>8&0x1f)|0xe0, byte(s.pid))
		syntax = append(syntax, 0xf0, 0x00) // ES_info_length = 0
	}

	sectionLength := len(syntax) + 4
	header := []byte{
		byte(PSITableIDPMT),
		0x80 | byte(sectionLength>>8&0xf),
		byte(sectionLength),
	}

	body := append(header, syntax...)
	crc := computeCRC32(body)
	body = append(body, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	return append([]byte{0x00}, body...)
}

func TestProcessor_PATPopulatesSICache(t *testing.T) {
	p := NewProcessor()

	patPayload := buildPATSectionBytes(1, [][2]uint16{{1, 256}})
	assert.NoError(t, p.ProcessPacket(buildTSPacket(PIDPAT, true, 0, patPayload)))

	assert.NotNil(t, p.Cache().PAT())
	assert.Equal(t, uint64(0), p.TR101().Counters().PATCRCErrors)
}

func TestProcessor_RejectsBadSync(t *testing.T) {
	p := NewProcessor()
	b := buildTSPacket(PIDPAT, true, 0, []byte{0x00})
	b[0] = 0x00
	err := p.ProcessPacket(b)
	assert.ErrorIs(t, err, ErrPacketMustStartWithASyncByte)
	assert.Equal(t, uint64(1), p.TR101().Counters().SyncByteErrors)
}

func TestProcessor_RejectsWrongLength(t *testing.T) {
	p := NewProcessor()
	err := p.ProcessPacket(make([]byte, 100))
	assert.Error(t, err)
}

func TestProcessor_ContinuityCounterAcrossPackets(t *testing.T) {
	p := NewProcessor()
	patPayload := buildPATSectionBytes(1, [][2]uint16{{1, 256}})
	assert.NoError(t, p.ProcessPacket(buildTSPacket(PIDPAT, true, 0, patPayload)))
	assert.NoError(t, p.ProcessPacket(buildTSPacket(PIDPAT, false, 2, nil))) // skipped CC 1
	assert.Equal(t, uint64(1), p.TR101().Counters().ContinuityCounterErrors)
}

func TestProcessor_PMTDeclaresKnownPIDs(t *testing.T) {
	p := NewProcessor()
	patPayload := buildPATSectionBytes(1, [][2]uint16{{1, 256}})
	assert.NoError(t, p.ProcessPacket(buildTSPacket(PIDPAT, true, 0, patPayload)))

	pmtPayload := buildPMTSectionBytes(1, 5, []pmtStreamSpec{{streamType: StreamTypeLowerBitrateVideo, pid: 6}})
	assert.NoError(t, p.ProcessPacket(buildTSPacket(256, true, 0, pmtPayload)))

	assert.NotNil(t, p.Cache().PMT(256))
	assert.NotNil(t, p.Stats().Stream(6))

	// PID 5 (PCR PID) is in the reserved 0x0002-0x000F range, but the PMT
	// just declared it, so it's no longer a pid_error.
	before := p.TR101().Counters().PIDErrors
	assert.NoError(t, p.ProcessPacket(buildTSPacket(5, true, 0, []byte{0x00, 0x00, 0x00})))
	assert.Equal(t, before, p.TR101().Counters().PIDErrors)
}

func TestProcessor_AnalysisDisabledSkipsTR101ButKeepsSICache(t *testing.T) {
	p := NewProcessor()
	p.SetAnalysisEnabled(false)

	b := buildTSPacket(PIDPAT, true, 0, buildPATSectionBytes(1, [][2]uint16{{1, 256}}))
	b[0] = 0x00 // would normally be a sync_byte_errors hit
	assert.ErrorIs(t, p.ProcessPacket(b), ErrPacketMustStartWithASyncByte)
	assert.Equal(t, uint64(0), p.TR101().Counters().SyncByteErrors)

	patPayload := buildPATSectionBytes(1, [][2]uint16{{1, 256}})
	assert.NoError(t, p.ProcessPacket(buildTSPacket(PIDPAT, true, 0, patPayload)))
	assert.NotNil(t, p.Cache().PAT())
	assert.Equal(t, uint64(0), p.TR101().Counters().PATCRCErrors)
}
