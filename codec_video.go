package tsinspect

// expGolombReader reads unsigned/signed Exp-Golomb codes and raw bit fields
// from an RBSP with emulation prevention already removed.
type expGolombReader struct {
	b      []byte
	bitPos int
}

func newExpGolombReader(b []byte) *expGolombReader {
	return &expGolombReader{b: b}
}

func (r *expGolombReader) bit() int {
	byteIdx := r.bitPos / 8
	if byteIdx >= len(r.b) {
		r.bitPos++
		return 0
	}
	shift := 7 - uint(r.bitPos%8)
	bit := int(r.b[byteIdx]>>shift) & 1
	r.bitPos++
	return bit
}

func (r *expGolombReader) bits(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<1 | uint32(r.bit())
	}
	return v
}

func (r *expGolombReader) exhausted() bool {
	return r.bitPos/8 >= len(r.b)
}

// ue reads an unsigned Exp-Golomb code.
func (r *expGolombReader) ue() uint32 {
	zeros := 0
	for !r.exhausted() && r.bit() == 0 {
		zeros++
		if zeros > 32 {
			return 0
		}
	}
	if zeros == 0 {
		return 0
	}
	return (1 << uint(zeros)) - 1 + r.bits(zeros)
}

// se reads a signed Exp-Golomb code.
func (r *expGolombReader) se() int32 {
	k := r.ue()
	if k%2 == 0 {
		return -int32(k / 2)
	}
	return int32(k+1) / 2
}

// knownFPS is the snap table for PTS-derived fps estimates; VUI-derived fps
// is used as computed.
var knownFPS = []float64{23.976, 24, 25, 29.97, 30, 48, 50, 60, 120}

func snapFPS(fps float64) float64 {
	best := 0.0
	bestDiff := -1.0
	for _, f := range knownFPS {
		d := fps - f
		if d < 0 {
			d = -d
		}
		if bestDiff < 0 || d < bestDiff {
			bestDiff = d
			best = f
		}
	}
	return best
}

// parseH264SPS decodes a sequence_parameter_set_rbsp (emulation prevention
// already removed, NAL header byte already stripped).
func parseH264SPS(rbsp []byte) (CodecInfo, bool) {
	if len(rbsp) < 4 {
		return CodecInfo{}, false
	}
	r := newExpGolombReader(rbsp)

	profileIdc := r.bits(8)
	r.bits(8) // constraint flags + reserved
	r.bits(8) // level_idc
	r.ue()     // seq_parameter_set_id

	chromaFormatIdc := uint32(1)
	var separateColourPlane bool
	if isHigh264Profile(profileIdc) {
		chromaFormatIdc = r.ue()
		if chromaFormatIdc == 3 {
			separateColourPlane = r.bit() == 1
		}
		r.ue() // bit_depth_luma_minus8
		r.ue() // bit_depth_chroma_minus8
		r.bit() // qpprime_y_zero_transform_bypass_flag
		if r.bit() == 1 { // seq_scaling_matrix_present_flag
			n := 8
			if chromaFormatIdc == 3 {
				n = 12
			}
			for i := 0; i < n; i++ {
				if r.bit() == 1 { // seq_scaling_list_present_flag
					skipScalingList(r, scalingListSize(i))
				}
			}
		}
	}

	r.ue() // log2_max_frame_num_minus4
	picOrderCntType := r.ue()
	switch picOrderCntType {
	case 0:
		r.ue() // log2_max_pic_order_cnt_lsb_minus4
	case 1:
		r.bit() // delta_pic_order_always_zero_flag
		r.se()  // offset_for_non_ref_pic
		r.se()  // offset_for_top_to_bottom_field
		n := r.ue()
		for i := uint32(0); i < n; i++ {
			r.se()
		}
	}

	r.ue() // max_num_ref_frames
	r.bit() // gaps_in_frame_num_value_allowed_flag

	picWidthInMbsMinus1 := r.ue()
	picHeightInMapUnitsMinus1 := r.ue()
	frameMbsOnlyFlag := r.bit() == 1
	if !frameMbsOnlyFlag {
		r.bit() // mb_adaptive_frame_field_flag
	}
	r.bit() // direct_8x8_inference_flag

	var cropLeft, cropRight, cropTop, cropBottom uint32
	if r.bit() == 1 { // frame_cropping_flag
		cropLeft = r.ue()
		cropRight = r.ue()
		cropTop = r.ue()
		cropBottom = r.ue()
	}

	_ = separateColourPlane

	cropUnitX, cropUnitY := chromaCropUnits(chromaFormatIdc, frameMbsOnlyFlag)

	frameHeightMult := uint32(2)
	if frameMbsOnlyFlag {
		frameHeightMult = 1
	}

	width := int((picWidthInMbsMinus1+1)*16) - int((cropLeft+cropRight)*cropUnitX)
	height := int((picHeightInMapUnitsMinus1+1)*16*frameHeightMult) - int((cropTop+cropBottom)*cropUnitY)

	info := CodecInfo{Width: width, Height: height, Chroma: chromaFormatName(chromaFormatIdc)}

	if r.bit() == 1 { // vui_parameters_present_flag
		if fps, ok := parseH264VUITiming(r); ok {
			info.FPS = fps
		}
	}
	return info, true
}

func isHigh264Profile(profileIdc uint32) bool {
	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		return true
	}
	return false
}

func scalingListSize(i int) int {
	if i < 6 {
		return 16
	}
	return 64
}

func skipScalingList(r *expGolombReader, size int) {
	lastScale, nextScale := 32, 32
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			delta := r.se()
			nextScale = (lastScale + int(delta) + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
}

func chromaCropUnits(chromaFormatIdc uint32, frameMbsOnlyFlag bool) (uint32, uint32) {
	subWidthC, subHeightC := uint32(2), uint32(2)
	switch chromaFormatIdc {
	case 0: // monochrome, no cropping scale
		return 1, boolToUint32(!frameMbsOnlyFlag) + 1
	case 3: // 4:4:4
		subWidthC, subHeightC = 1, 1
	case 2: // 4:2:2
		subHeightC = 1
	}
	cropUnitX := subWidthC
	cropUnitY := subHeightC * (boolToUint32(!frameMbsOnlyFlag) + 1)
	return cropUnitX, cropUnitY
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// parseH264VUITiming parses just enough of vui_parameters() to reach
// timing_info, skipping the preceding aspect-ratio / overscan / video-signal
// / chroma-loc sections.
func parseH264VUITiming(r *expGolombReader) (float64, bool) {
	if r.bit() == 1 { // aspect_ratio_info_present_flag
		aspectRatioIdc := r.bits(8)
		if aspectRatioIdc == 255 { // Extended_SAR
			r.bits(16)
			r.bits(16)
		}
	}
	if r.bit() == 1 { // overscan_info_present_flag
		r.bit()
	}
	if r.bit() == 1 { // video_signal_type_present_flag
		r.bits(3)
		r.bit()
		if r.bit() == 1 { // colour_description_present_flag
			r.bits(8)
			r.bits(8)
			r.bits(8)
		}
	}
	if r.bit() == 1 { // chroma_loc_info_present_flag
		r.ue()
		r.ue()
	}
	if r.bit() != 1 { // timing_info_present_flag
		return 0, false
	}
	numUnitsInTick := r.bits(32)
	timeScale := r.bits(32)
	fixedFrameRate := r.bit() == 1
	if numUnitsInTick == 0 {
		return 0, false
	}
	div := numUnitsInTick
	if fixedFrameRate {
		div *= 2
	}
	fps := float64(timeScale) / float64(div)
	if fps < 1 || fps > 120 {
		return 0, false
	}
	return fps, true
}

// parseHEVCSPS extracts only width/height from an HEVC sparameter_set_rbsp
// (NAL header already stripped).
func parseHEVCSPS(rbsp []byte) (CodecInfo, bool) {
	if len(rbsp) < 4 {
		return CodecInfo{}, false
	}
	r := newExpGolombReader(rbsp)
	r.bits(4) // sps_video_parameter_set_id
	maxSubLayersMinus1 := r.bits(3)
	r.bit() // sps_temporal_id_nesting_flag

	// profile_tier_level(1, maxSubLayersMinus1)
	r.bits(2 + 1 + 5) // general_profile_space/tier/idc
	r.bits(32)        // general_profile_compatibility_flags
	r.bits(32)        // general_constraint flags (44 bits total below)
	r.bits(12)
	r.bits(8) // general_level_idc
	for i := uint32(0); i < maxSubLayersMinus1; i++ {
		r.bit()
		r.bit()
	}
	if maxSubLayersMinus1 > 0 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			r.bits(2)
		}
	}

	r.ue() // sps_seq_parameter_set_id
	chromaFormatIdc := r.ue()
	if chromaFormatIdc == 3 {
		r.bit() // separate_colour_plane_flag
	}
	width := int(r.ue())
	height := int(r.ue())

	if r.bit() == 1 { // conformance_window_flag
		subWidthC, subHeightC := uint32(2), uint32(2)
		if chromaFormatIdc == 3 {
			subWidthC, subHeightC = 1, 1
		} else if chromaFormatIdc == 2 {
			subHeightC = 1
		}
		left := r.ue()
		right := r.ue()
		top := r.ue()
		bottom := r.ue()
		width -= int((left + right) * subWidthC)
		height -= int((top + bottom) * subHeightC)
	}

	return CodecInfo{Width: width, Height: height, Chroma: chromaFormatName(chromaFormatIdc)}, true
}

// mpeg2FrameRates maps the 4-bit frame_rate_code to fps.
var mpeg2FrameRates = []float64{0, 23.976, 24, 25, 29.97, 30, 50, 59.94, 60}

// parseMPEG2SequenceHeader locates an MPEG-2 sequence_header (start code
// 0x000001B3) and decodes width/height/fps.
func parseMPEG2SequenceHeader(payload []byte) (CodecInfo, bool) {
	for _, o := range startCodes(payload) {
		start := o + 3
		if start >= len(payload) || payload[start] != 0xb3 {
			continue
		}
		body := payload[start+1:]
		if len(body) < 4 {
			continue
		}
		width := int(body[0])<<4 | int(body[1])>>4
		height := (int(body[1]&0xf) << 8) | int(body[2])
		frameRateCode := body[3] & 0xf
		info := CodecInfo{Codec: CodecMPEG2Video, Width: width, Height: height}
		if int(frameRateCode) < len(mpeg2FrameRates) && frameRateCode != 0 {
			info.FPS = mpeg2FrameRates[frameRateCode]
		}
		return info, true
	}
	return CodecInfo{}, false
}

// fpsFromPTSHistory implements the PTS-median fallback: given up to the
// last 10 PTS values for a video PID (oldest first), estimate fps.
func fpsFromPTSHistory(pts []int64) (float64, bool) {
	if len(pts) < 2 {
		return 0, false
	}
	var deltas []int64
	for i := 1; i < len(pts); i++ {
		d := pts[i] - pts[i-1]
		if d > 0 && d <= 90000 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return 0, false
	}
	median := medianInt64(deltas)
	if median <= 0 {
		return 0, false
	}
	fps := 90000.0 / float64(median)
	snapped := snapFPS(fps)
	for _, f := range knownFPS {
		if abs64(fps/2-f) <= 0.5 {
			snapped = snapFPS(fps / 2)
			break
		}
	}
	return snapped, true
}

func medianInt64(v []int64) int64 {
	sorted := append([]int64(nil), v...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)/2]
}

func abs64(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
