package tsinspect

// adtsSampleRates is the ADTS sampling_frequency_index table (MPEG-4 Part 3
// Table 1.16).
var adtsSampleRates = []int{96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350}

// ac3SampleRates maps fscod to sample rate.
var ac3SampleRates = []int{48000, 44100, 32000}

// ac3ChannelsByAcmod maps acmod to channel count (excluding LFE).
var ac3ChannelsByAcmod = []int{2, 1, 2, 3, 3, 4, 4, 5}

// detectAudioCodec scans an elementary stream payload for the audio sync
// pattern matching streamType and returns whatever its header reveals.
func detectAudioCodec(streamType uint8, payload []byte) (CodecInfo, bool) {
	switch streamType {
	case streamTypeADTSAAC:
		return parseADTSHeader(payload)
	case streamTypeLATMAAC:
		return parseLATMHeader(payload)
	case StreamTypeMPEG1Audio, StreamTypeMPEG2HalvedSampleRateAudio:
		return parseMP2Header(payload)
	case streamTypeAC3:
		return parseAC3Header(payload)
	}
	return CodecInfo{}, false
}

// parseADTSHeader finds an ADTS-AAC frame sync (0xFFFx, (b1&0xF6)==0xF0) and
// decodes sampling frequency index / channel configuration.
func parseADTSHeader(payload []byte) (CodecInfo, bool) {
	for o := 0; o+6 < len(payload); o++ {
		if payload[o] != 0xff || payload[o+1]&0xf6 != 0xf0 {
			continue
		}
		sfi := (payload[o+2] >> 2) & 0xf
		channelConfig := ((payload[o+2] & 0x1) << 2) | (payload[o+3] >> 6)
		if int(sfi) >= len(adtsSampleRates) {
			continue
		}
		return CodecInfo{
			Codec:      CodecAACADTS,
			SampleRate: adtsSampleRates[sfi],
			Channels:   int(channelConfig),
		}, true
	}
	return CodecInfo{}, false
}

// parseLATMHeader finds a LATM-AAC sync word (0x2B7, 11 bits) and decodes
// the AudioSpecificConfig sampling frequency index / channel configuration
// carried in StreamMuxConfig, assuming useSameStreamMux == 0 (the only case
// where AudioSpecificConfig is actually present to read). Only
// audioMuxVersion 0 is decoded; frames with audioMuxVersion 1 are skipped.
func parseLATMHeader(payload []byte) (CodecInfo, bool) {
	for o := 0; o+3 < len(payload); o++ {
		sync := uint16(payload[o])<<3 | uint16(payload[o+1])>>5
		if sync != 0x2b7 {
			continue
		}
		r := newExpGolombReader(payload[o+1:])
		r.bits(3 + 13) // low 3 sync bits + audioMuxLengthBytes
		useSameStreamMux := r.bit()
		if useSameStreamMux != 0 {
			continue
		}
		if r.bit() != 0 { // audioMuxVersion
			continue
		}
		r.bits(1 + 6 + 4 + 3) // allStreamsSameTimeFraming, numSubFrames, numProgram, numLayer
		audioObjectType := r.bits(5)
		if audioObjectType == 31 {
			r.bits(6)
		}
		sfi := r.bits(4)
		var sampleRate int
		if sfi == 0xf {
			sampleRate = int(r.bits(24))
		} else if int(sfi) < len(adtsSampleRates) {
			sampleRate = adtsSampleRates[sfi]
		}
		channelConfig := int(r.bits(4))
		return CodecInfo{Codec: CodecAACLATM, SampleRate: sampleRate, Channels: channelConfig}, true
	}
	return CodecInfo{}, false
}

// parseMP2Header finds an MPEG-1/2 Layer II sync (0xFFE, layer bits == 10).
func parseMP2Header(payload []byte) (CodecInfo, bool) {
	mp2SampleRates := []int{44100, 48000, 32000}
	for o := 0; o+3 < len(payload); o++ {
		if payload[o] != 0xff || payload[o+1]&0xe0 != 0xe0 {
			continue
		}
		layer := (payload[o+1] >> 1) & 0x3
		if layer != 0x2 { // '10' == Layer II
			continue
		}
		sri := (payload[o+2] >> 2) & 0x3
		if sri == 0x3 || int(sri) >= len(mp2SampleRates) {
			continue
		}
		mode := (payload[o+3] >> 6) & 0x3
		channels := 2
		if mode == 0x3 {
			channels = 1
		}
		return CodecInfo{Codec: CodecMP2, SampleRate: mp2SampleRates[sri], Channels: channels}, true
	}
	return CodecInfo{}, false
}

// parseAC3Header finds an AC-3 sync word (0x0B77) and decodes fscod/acmod.
func parseAC3Header(payload []byte) (CodecInfo, bool) {
	for o := 0; o+6 < len(payload); o++ {
		if payload[o] != 0x0b || payload[o+1] != 0x77 {
			continue
		}
		fscod := (payload[o+4] >> 6) & 0x3
		if fscod == 0x3 || int(fscod) >= len(ac3SampleRates) {
			continue
		}
		bsid := payload[o+5] >> 3
		_ = bsid
		acmod := (payload[o+6] >> 5) & 0x7
		channels := ac3ChannelsByAcmod[acmod]
		// lfeon follows acmod and the 2-bit cmixlev / surmixlev / dsurmod
		// fields that acmod makes present.
		lfeShift := 4
		if acmod&0x1 != 0 && acmod != 0x1 {
			lfeShift -= 2 // cmixlev
		}
		if acmod&0x4 != 0 {
			lfeShift -= 2 // surmixlev
		}
		if acmod == 0x2 {
			lfeShift -= 2 // dsurmod
		}
		if o+6 < len(payload) {
			lfeBit := (payload[o+6] >> lfeShift) & 0x1
			if lfeBit == 1 {
				channels++
			}
		}
		return CodecInfo{Codec: CodecAC3, SampleRate: ac3SampleRates[fscod], Channels: channels}, true
	}
	return CodecInfo{}, false
}
