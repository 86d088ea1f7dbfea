package tsinspect

import "errors"

// syncByte is the fixed marker every TS packet starts with.
const syncByte = '\x47'

// ErrPacketMustStartWithASyncByte is returned by parsePacket when the first
// byte of the packet isn't the sync byte.
var ErrPacketMustStartWithASyncByte = errors.New("tsinspect: packet must start with a sync byte")

// PacketLength is the fixed size of an MPEG-TS packet.
const PacketLength = 188

// Scrambling controls, as carried in the packet header.
const (
	ScramblingControlNotScrambled         = 0
	ScramblingControlReservedForFutureUse = 1
	ScramblingControlScrambledWithEvenKey = 2
	ScramblingControlScrambledWithOddKey  = 3
)

// Well-known system PIDs. SDT/BAT and TDT/TOT legitimately share a PID.
const (
	PIDPAT  uint16 = 0x0000
	PIDCAT  uint16 = 0x0001
	PIDNIT  uint16 = 0x0010
	PIDSDT  uint16 = 0x0011
	PIDBAT  uint16 = 0x0011
	PIDEIT  uint16 = 0x0012
	PIDRST  uint16 = 0x0013
	PIDTDT  uint16 = 0x0014
	PIDTOT  uint16 = 0x0014
	PIDNull uint16 = 0x1fff
)

// PIDClass distinguishes the structural role of a PID, per §3 of the
// processing model.
type PIDClass int

const (
	PIDClassUnknown PIDClass = iota
	PIDClassSystem
	PIDClassNull
	PIDClassPMT
	PIDClassPCR
	PIDClassES
)

func isSystemPID(pid uint16) bool {
	switch pid {
	case PIDPAT, PIDCAT, PIDNIT, PIDSDT, PIDEIT, PIDRST, PIDTDT:
		return true
	}
	return false
}

// Packet represents a single 188-byte transport stream packet. It's a view
// over caller-owned bytes and must not be retained past the call that
// produced it.
// https://en.wikipedia.org/wiki/MPEG_transport_stream
type Packet struct {
	AdaptationField *PacketAdaptationField
	Bytes           []byte // The whole packet content.
	Header          *PacketHeader
	Payload         []byte // Only the payload content, when present.
}

// PacketHeader represents a packet header.
type PacketHeader struct {
	ContinuityCounter          uint8 // 0x00 to 0x0F, except on PID 0x1FFF.
	HasAdaptationField         bool
	HasPayload                 bool
	PayloadUnitStartIndicator  bool   // Set when a PES, PSI, or DVB-MIP packet begins immediately following the header.
	PID                        uint16 // Packet Identifier, describing the payload data.
	TransportErrorIndicator    bool   // Set when a demodulator can't correct errors from FEC data, indicating the packet is corrupt.
	TransportPriority          bool   // Set when the current packet has a higher priority than other packets with the same PID.
	TransportScramblingControl uint8
}

// PacketAdaptationField represents a packet adaptation field.
type PacketAdaptationField struct {
	AdaptationExtensionField          *PacketAdaptationExtensionField
	DiscontinuityIndicator            bool // Set if the current TS packet is in a discontinuity state w.r.t. either the continuity counter or the PCR.
	ElementaryStreamPriorityIndicator bool // Set when this stream should be considered "high priority".
	HasAdaptationExtensionField       bool
	HasOPCR                           bool
	HasPCR                            bool
	HasTransportPrivateData           bool
	HasSplicingCountdown              bool
	Length                            int
	OPCR                              *ClockReference // Original program clock reference, set when one TS is copied into another.
	PCR                               *ClockReference
	RandomAccessIndicator             bool // Set when the stream may be decoded without errors from this point.
	SpliceCountdown                   int  // Two's complement signed; TS packets remaining until the splicing point.
	TransportPrivateDataLength        int
	TransportPrivateData              []byte
}

// PacketAdaptationExtensionField represents a packet adaptation extension
// field. None of it feeds a TR 101 290 counter; it's carried for
// completeness only.
type PacketAdaptationExtensionField struct {
	DTSNextAccessUnit      *ClockReference // The PES DTS of the splice point.
	HasLegalTimeWindow     bool
	HasPiecewiseRate       bool
	HasSeamlessSplice      bool
	LegalTimeWindowIsValid bool
	LegalTimeWindowOffset  uint16
	Length                 int
	PiecewiseRate          uint32 // Measured in 188-byte packets, defines the end-time of the LTW.
	SpliceType             uint8  // Parameters of the H.262 splice.
}

// PCRValue returns the 42-bit PCR value in 27 MHz ticks, or 0, false if the
// packet carries none.
func (p *Packet) PCRValue() (int64, bool) {
	if p.AdaptationField == nil || !p.AdaptationField.HasPCR || p.AdaptationField.PCR == nil {
		return 0, false
	}
	return p.AdaptationField.PCR.Ticks(), true
}

// parsePacket parses a single 188-byte TS packet.
func parsePacket(i []byte) (p *Packet, err error) {
	if i[0] != syncByte {
		err = ErrPacketMustStartWithASyncByte
		return
	}

	p = &Packet{Bytes: i}

	// In case packet size is bigger than 188 bytes (some captures pad with a
	// leading timestamp), keep only the trailing 188-byte packet minus its
	// sync byte (187 bytes); header parsing starts right after the sync byte.
	i = i[len(i)-188+1:]

	p.Header = parsePacketHeader(i)

	if p.Header.HasAdaptationField {
		p.AdaptationField = parsePacketAdaptationField(i[3:])
	}

	if p.Header.HasPayload {
		p.Payload = i[payloadOffset(p.Header, p.AdaptationField):]
	}
	return
}

// payloadOffset returns the payload offset relative to i[1:] (i.e. right
// after the sync byte).
func payloadOffset(h *PacketHeader, a *PacketAdaptationField) (offset int) {
	offset = 3
	if h.HasAdaptationField {
		offset += 1 + a.Length
	}
	return
}

// parsePacketHeader parses the 3 bytes that follow the sync byte.
func parsePacketHeader(i []byte) *PacketHeader {
	return &PacketHeader{
		ContinuityCounter:          uint8(i[2] & 0xf),
		HasAdaptationField:         i[2]&0x20 > 0,
		HasPayload:                 i[2]&0x10 > 0,
		PayloadUnitStartIndicator:  i[0]&0x40 > 0,
		PID:                        uint16(i[0]&0x1f)<<8 | uint16(i[1]),
		TransportErrorIndicator:    i[0]&0x80 > 0,
		TransportPriority:          i[0]&0x20 > 0,
		TransportScramblingControl: uint8(i[2]) >> 6 & 0x3,
	}
}

// parsePacketAdaptationField parses the packet adaptation field.
func parsePacketAdaptationField(i []byte) (a *PacketAdaptationField) {
	a = &PacketAdaptationField{}
	var offset int

	a.Length = int(i[offset])
	offset++

	if a.Length > 0 {
		a.DiscontinuityIndicator = i[offset]&0x80 > 0
		a.RandomAccessIndicator = i[offset]&0x40 > 0
		a.ElementaryStreamPriorityIndicator = i[offset]&0x20 > 0
		a.HasPCR = i[offset]&0x10 > 0
		a.HasOPCR = i[offset]&0x08 > 0
		a.HasSplicingCountdown = i[offset]&0x04 > 0
		a.HasTransportPrivateData = i[offset]&0x02 > 0
		a.HasAdaptationExtensionField = i[offset]&0x01 > 0
		offset++

		if a.HasPCR {
			a.PCR = parsePCR(i[offset:])
			offset += 6
		}

		if a.HasOPCR {
			a.OPCR = parsePCR(i[offset:])
			offset += 6
		}

		if a.HasSplicingCountdown {
			a.SpliceCountdown = int(int8(i[offset]))
			offset++
		}

		if a.HasTransportPrivateData {
			a.TransportPrivateDataLength = int(i[offset])
			offset++
			if a.TransportPrivateDataLength > 0 {
				a.TransportPrivateData = i[offset : offset+a.TransportPrivateDataLength]
				offset += a.TransportPrivateDataLength
			}
		}

		if a.HasAdaptationExtensionField {
			a.AdaptationExtensionField = &PacketAdaptationExtensionField{Length: int(i[offset])}
			offset++
			if a.AdaptationExtensionField.Length > 0 {
				a.AdaptationExtensionField.HasLegalTimeWindow = i[offset]&0x80 > 0
				a.AdaptationExtensionField.HasPiecewiseRate = i[offset]&0x40 > 0
				a.AdaptationExtensionField.HasSeamlessSplice = i[offset]&0x20 > 0
				offset++

				if a.AdaptationExtensionField.HasLegalTimeWindow {
					a.AdaptationExtensionField.LegalTimeWindowIsValid = i[offset]&0x80 > 0
					a.AdaptationExtensionField.LegalTimeWindowOffset = uint16(i[offset]&0x7f)<<8 | uint16(i[offset+1])
					offset += 2
				}

				if a.AdaptationExtensionField.HasPiecewiseRate {
					a.AdaptationExtensionField.PiecewiseRate = uint32(i[offset]&0x3f)<<16 | uint32(i[offset+1])<<8 | uint32(i[offset+2])
					offset += 3
				}

				if a.AdaptationExtensionField.HasSeamlessSplice {
					a.AdaptationExtensionField.SpliceType = uint8(i[offset]&0xf0) >> 4
					a.AdaptationExtensionField.DTSNextAccessUnit = parsePTSOrDTS(i[offset:])
				}
			}
		}
	}
	return
}

// parsePCR parses a Program Clock Reference: 33 bits base, 6 bits reserved,
// 9 bits extension.
func parsePCR(i []byte) *ClockReference {
	var pcr = uint64(i[0])<<40 | uint64(i[1])<<32 | uint64(i[2])<<24 | uint64(i[3])<<16 | uint64(i[4])<<8 | uint64(i[5])
	return newClockReference(int(pcr>>15), int(pcr&0x1ff))
}

// parsePTSOrDTS parses the standard 5-byte, 33-bit marker-bit-interleaved
// PTS/DTS/DTS-next-access-unit pattern: 4-bit prefix + 3 bits + marker, 15
// bits + marker, 15 bits + marker.
func parsePTSOrDTS(i []byte) *ClockReference {
	var v = uint64(i[0]&0xe) << 29
	v |= uint64(i[1]) << 22
	v |= uint64(i[2]&0xfe) << 14
	v |= uint64(i[3]) << 7
	v |= uint64(i[4]) >> 1
	return newClockReference(int(v), 0)
}
