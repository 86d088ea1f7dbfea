package tsinspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoveEmulationPrevention(t *testing.T) {
	in := []byte{0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x02}
	out := removeEmulationPrevention(in)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x02}, out)
}

func TestStartCodes(t *testing.T) {
	in := []byte{0xaa, 0x00, 0x00, 0x01, 0xbb, 0x00, 0x00, 0x01, 0xcc}
	assert.Equal(t, []int{1, 5}, startCodes(in))
}

func TestFPSFromPTSHistory(t *testing.T) {
	var pts []int64
	cur := int64(1000)
	for i := 0; i < 6; i++ {
		pts = append(pts, cur)
		cur += 3000 // 30fps spacing at 90kHz
	}
	fps, ok := fpsFromPTSHistory(pts)
	assert.True(t, ok)
	assert.Equal(t, 30.0, fps)
}

func TestFPSFromPTSHistory_NotEnough(t *testing.T) {
	_, ok := fpsFromPTSHistory([]int64{1000})
	assert.False(t, ok)
}

func TestParseMP2Header(t *testing.T) {
	b := []byte{0xff, 0xfc, 0x10, 0x00, 0x00, 0x00}
	info, ok := parseMP2Header(b)
	assert.True(t, ok)
	assert.Equal(t, CodecMP2, info.Codec)
	assert.Equal(t, 44100, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
}

func TestParseADTSHeader(t *testing.T) {
	b := []byte{0xff, 0xf1, 0x50, 0x80, 0x00, 0x1f, 0xfc}
	info, ok := parseADTSHeader(b)
	assert.True(t, ok)
	assert.Equal(t, CodecAACADTS, info.Codec)
	assert.Equal(t, 44100, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
}

func TestParseAC3Header(t *testing.T) {
	b := []byte{0x0b, 0x77, 0x00, 0x00, 0x00, 0x00, 0x10}
	info, ok := parseAC3Header(b)
	assert.True(t, ok)
	assert.Equal(t, CodecAC3, info.Codec)
	assert.Equal(t, 48000, info.SampleRate)
}
