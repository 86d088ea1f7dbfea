package tsinspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildPATSectionBytes builds a minimal, CRC-correct PAT section.
func buildPATSectionBytes(tsID uint16, programs [][2]uint16) []byte {
	var syntax []byte
	syntax = append(syntax, byte(tsID>>8), byte(tsID))
	syntax = append(syntax, 0xc1, 0x00, 0x00) // version 0, current, section 0, last 0
	for _, p := range programs {
		syntax = append(syntax, byte(p[0]>>8), byte(p[0]))
		syntax = append(syntax, byte(p[1]>>8&0x1f)|0xe0, byte(p[1]))
	}

	sectionLength := len(syntax) + 4 // + CRC
	header := []byte{
		byte(PSITableIDPAT),
		0x80 | byte(sectionLength>>8&0xf),
		byte(sectionLength),
	}

	body := append(header, syntax...)
	crc := computeCRC32(body)
	body = append(body, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	return append([]byte{0x00}, body...) // pointer field
}

func TestParsePSIData_PAT(t *testing.T) {
	b := buildPATSectionBytes(1, [][2]uint16{{1, 256}, {2, 257}})
	d, err := parsePSIData(b)
	assert.NoError(t, err)
	assert.Len(t, d.Sections, 1)

	s := d.Sections[0]
	assert.True(t, s.CRC32Valid)
	assert.Equal(t, PSITableIDPAT, s.Header.TableID)
	assert.NotNil(t, s.Syntax.Data.PAT)
	assert.Equal(t, uint16(1), s.Syntax.Data.PAT.TransportStreamID)
	assert.Len(t, s.Syntax.Data.PAT.Programs, 2)
	assert.Equal(t, uint16(256), s.Syntax.Data.PAT.Programs[0].ProgramMapID)
}

func TestParsePSIData_CorruptedCRC(t *testing.T) {
	b := buildPATSectionBytes(1, [][2]uint16{{1, 256}})
	b[len(b)-1] ^= 0xff // flip a CRC bit
	_, err := parsePSIData(b)
	assert.ErrorIs(t, err, ErrPSIInvalidCRC32)
}

func TestParsePSIData_NullStuffing(t *testing.T) {
	b := []byte{0x00, 0xff, 0xff, 0xff, 0xff}
	d, err := parsePSIData(b)
	assert.NoError(t, err)
	assert.Len(t, d.Sections, 0)
}

func TestPSITableID_Type(t *testing.T) {
	assert.Equal(t, PSITableTypePAT, PSITableIDPAT.Type())
	assert.Equal(t, PSITableTypePMT, PSITableIDPMT.Type())
	assert.Equal(t, PSITableTypeEIT, PSITableID(0x50).Type())
	assert.Equal(t, PSITableTypeUnknown, PSITableID(0x90).Type())
}

func TestPSITableID_hasCRC32(t *testing.T) {
	assert.True(t, PSITableIDPAT.hasCRC32())
	assert.True(t, PSITableIDPMT.hasCRC32())
	assert.False(t, PSITableIDTDT.hasCRC32())
}
