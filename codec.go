package tsinspect

// Codec name constants, used both as StreamStats.Codec values and in
// snapshot JSON.
const (
	CodecH264 = "h264"
	CodecHEVC = "hevc"
	CodecMPEG2Video = "mpeg2video"
	CodecAACADTS = "aac-adts"
	CodecAACLATM = "aac-latm"
	CodecMP2 = "mp2"
	CodecAC3 = "ac3"
)

// CodecInfo is what a codec header parser manages to extract from an
// elementary stream's first few access units. Zero values mean "not
// determined yet".
type CodecInfo struct {
	Codec   string
	Width   int
	Height  int
	FPS     float64
	Chroma  string
	Channels int
	SampleRate int
}

// chromaFormatName maps an H.264/HEVC chroma_format_idc to its conventional
// subsampling name, matching what ffprobe reports for the same streams.
func chromaFormatName(idc uint32) string {
	switch idc {
	case 0:
		return "monochrome"
	case 1:
		return "4:2:0"
	case 2:
		return "4:2:2"
	case 3:
		return "4:4:4"
	}
	return ""
}

// startCodes returns the byte offsets, within i, where a 3-byte start code
//00 00 01 begins.
func startCodes(i []byte) []int {
	var offsets []int
	for o := 0; o+2 < len(i); o++ {
		if i[o] == 0 && i[o+1] == 0 && i[o+2] == 1 {
			offsets = append(offsets, o)
		}
	}
	return offsets
}

// removeEmulationPrevention collapses every 00 00 03 run to 00 00, as
// required before Exp-Golomb-decoding an H.264/HEVC RBSP.
func removeEmulationPrevention(i []byte) []byte {
	out := make([]byte, 0, len(i))
	zeroRun := 0
	for _, b := range i {
		if zeroRun >= 2 && b == 0x03 {
			zeroRun = 0
			continue
		}
		out = append(out, b)
		if b == 0 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}
	return out
}

// detectVideoCodec inspects an elementary stream's payload for a recognized
// start code and returns whatever the corresponding SPS/sequence-header
// parser can determine. The streamType is used to disambiguate H.264 vs
// HEVC vs MPEG-2 when the NAL/start-code shape alone is ambiguous.
func detectVideoCodec(streamType uint8, payload []byte) (CodecInfo, bool) {
	switch streamType {
	case StreamTypeLowerBitrateVideo: // H.264
		return parseH264SPSFromStream(payload)
	case streamTypeHEVC:
		return parseHEVCSPSFromStream(payload)
	case streamTypeMPEG2Video, streamTypeMPEG1Video:
		return parseMPEG2SequenceHeader(payload)
	}
	return CodecInfo{}, false
}

// isVideoStreamType reports whether streamType identifies a video
// elementary stream, used to scope PTS-history collection (for fps
// fallback) to video PIDs only.
func isVideoStreamType(streamType uint8) bool {
	switch streamType {
	case StreamTypeLowerBitrateVideo, streamTypeHEVC, streamTypeMPEG1Video, streamTypeMPEG2Video:
		return true
	}
	return false
}

// Stream types not declared in data_pmt.go's trimmed constant set.
const (
	streamTypeMPEG1Video uint8 = 1
	streamTypeMPEG2Video uint8 = 2
	streamTypeHEVC       uint8 = 0x24
	streamTypeADTSAAC    uint8 = 0x0f
	streamTypeLATMAAC    uint8 = 0x11
	streamTypeAC3        uint8 = 0x81
)

func parseH264SPSFromStream(payload []byte) (CodecInfo, bool) {
	for _, o := range startCodes(payload) {
		nalStart := o + 3
		if nalStart >= len(payload) {
			continue
		}
		nalType := payload[nalStart] & 0x1f
		if nalType != 7 {
			continue
		}
		end := len(payload)
		if next := nextStartCode(payload, nalStart+1); next >= 0 {
			end = next
		}
		if info, ok := parseH264SPS(removeEmulationPrevention(payload[nalStart+1 : end])); ok {
			info.Codec = CodecH264
			return info, true
		}
	}
	return CodecInfo{}, false
}

func parseHEVCSPSFromStream(payload []byte) (CodecInfo, bool) {
	for _, o := range startCodes(payload) {
		nalStart := o + 3
		if nalStart >= len(payload) {
			continue
		}
		nalType := (payload[nalStart] >> 1) & 0x3f
		if nalType != 33 { // SPS_NUT
			continue
		}
		end := len(payload)
		if next := nextStartCode(payload, nalStart+1); next >= 0 {
			end = next
		}
		if info, ok := parseHEVCSPS(removeEmulationPrevention(payload[nalStart+2 : end])); ok {
			info.Codec = CodecHEVC
			return info, true
		}
	}
	return CodecInfo{}, false
}

func nextStartCode(i []byte, from int) int {
	for _, o := range startCodes(i[from:]) {
		return from + o
	}
	return -1
}
