package tsinspect

// PTS/DTS indicator values in the PES optional header.
const (
	PTSDTSIndicatorNoPTSOrDTS  = 0
	PTSDTSIndicatorIsForbidden = 1
	PTSDTSIndicatorOnlyPTS     = 2
	PTSDTSIndicatorBothPresent = 3
)

// Stream IDs that never carry a PES optional header.
const (
	StreamIDPaddingStream  = 190
	StreamIDPrivateStream2 = 191
)

// PESData represents a parsed PES packet. Only the header is decoded in
// full; Data is left as a view into the caller's buffer.
// https://en.wikipedia.org/wiki/Packetized_elementary_stream
type PESData struct {
	Header *PESHeader
	Data   []byte
}

// PESHeader represents a PES packet header.
type PESHeader struct {
	StreamID       uint8
	PacketLength   uint16
	OptionalHeader *PESOptionalHeader
}

// PESOptionalHeader represents the PES optional header (present for all
// stream IDs except padding and private_stream_2).
type PESOptionalHeader struct {
	PTSDTSIndicator uint8 // 2 bits.
	HasESCR         bool
	HeaderLength    uint8

	PTS *ClockReference
	DTS *ClockReference
}

// IsVideoStream reports whether the stream ID belongs to a video stream.
func (h *PESHeader) IsVideoStream() bool {
	return h.StreamID == 0xe0 || h.StreamID == 0xfd
}

func hasPESOptionalHeader(streamID uint8) bool {
	return streamID != StreamIDPaddingStream && streamID != StreamIDPrivateStream2
}

// parsePESData parses a PES packet starting right after the payload-unit
// boundary (i.e. i[0:3] is the start code prefix 0x000001).
func parsePESData(i []byte) *PESData {
	d := &PESData{}
	if len(i) < 6 {
		return d
	}

	offset := 3 // skip start code prefix

	h := &PESHeader{}
	h.StreamID = i[offset]
	offset++
	h.PacketLength = uint16(i[offset])<<8 | uint16(i[offset+1])
	offset += 2
	d.Header = h

	if hasPESOptionalHeader(h.StreamID) && offset+3 <= len(i) {
		oh, dataStart := parsePESOptionalHeader(i, offset)
		h.OptionalHeader = oh
		if dataStart <= len(i) {
			d.Data = i[dataStart:]
		}
	} else if offset <= len(i) {
		d.Data = i[offset:]
	}

	return d
}

// parsePESOptionalHeader parses the PES optional header starting at offset
// (the marker-bits byte). Returns the header and the absolute offset of the
// elementary stream payload, computed from the declared header length so
// unrecognized extension fields never desynchronize the caller.
func parsePESOptionalHeader(i []byte, offset int) (*PESOptionalHeader, int) {
	h := &PESOptionalHeader{}

	h.PTSDTSIndicator = i[offset+1] >> 6 & 0x3
	h.HasESCR = i[offset+1]&0x20 > 0
	h.HeaderLength = i[offset+2]

	dataStart := offset + 3 + int(h.HeaderLength)

	o := offset + 3
	switch h.PTSDTSIndicator {
	case PTSDTSIndicatorOnlyPTS:
		if o+5 <= len(i) {
			h.PTS = parsePTSOrDTS(i[o:])
		}
	case PTSDTSIndicatorBothPresent:
		if o+10 <= len(i) {
			h.PTS = parsePTSOrDTS(i[o:])
			h.DTS = parsePTSOrDTS(i[o+5:])
		}
	}

	return h, dataStart
}
