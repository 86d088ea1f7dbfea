package tsinspect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsManager_AddStreamIdempotent(t *testing.T) {
	m := NewStatsManager()
	s1 := m.AddStream(256, StreamTypeLowerBitrateVideo)
	s2 := m.AddStream(256, StreamTypeLowerBitrateVideo)
	assert.Same(t, s1, s2)
}

func TestStatsManager_SetCodecKeepsFirst(t *testing.T) {
	m := NewStatsManager()
	m.AddStream(256, StreamTypeLowerBitrateVideo)
	m.SetCodec(256, "h264")
	m.SetCodec(256, "hevc")
	assert.Equal(t, "h264", m.Stream(256).Codec)
}

func TestStatsManager_PushPTSTrims(t *testing.T) {
	m := NewStatsManager()
	m.AddStream(256, StreamTypeLowerBitrateVideo)
	for i := 0; i < 15; i++ {
		m.PushPTS(256, int64(i))
	}
	h := m.Stream(256).PTSHistory()
	assert.Len(t, h, maxPTSHistory)
	assert.Equal(t, int64(5), h[0])
	assert.Equal(t, int64(14), h[len(h)-1])
}

func TestStatsManager_CalculateBitrate(t *testing.T) {
	base := time.Unix(0, 0)
	clock := base
	m := newStatsManagerWithClock(func() time.Time { return clock })
	m.AddStream(256, StreamTypeLowerBitrateVideo)
	clock = base.Add(1 * time.Second)
	m.UpdateBytes(256, 125000) // 1,000,000 bits over ~1s.
	assert.InDelta(t, 1000.0, m.CalculateBitrate(256), 1.0)
}

func TestStatsManager_CalculateBitrateFloorsElapsed(t *testing.T) {
	base := time.Unix(0, 0)
	m := newStatsManagerWithClock(func() time.Time { return base })
	m.AddStream(256, StreamTypeLowerBitrateVideo)
	m.UpdateBytes(256, 1250)
	assert.InDelta(t, 100.0, m.CalculateBitrate(256), 1.0)
}

func TestStatsManager_CleanupOldStreams(t *testing.T) {
	base := time.Unix(0, 0)
	clock := base
	m := newStatsManagerWithClock(func() time.Time { return clock })
	m.AddStream(256, StreamTypeLowerBitrateVideo)
	clock = base.Add(31 * time.Second)
	m.CleanupOldStreams(0)
	assert.Nil(t, m.Stream(256))
}

func TestStatsManager_CleanupOldStreamsKeepsRecent(t *testing.T) {
	base := time.Unix(0, 0)
	clock := base
	m := newStatsManagerWithClock(func() time.Time { return clock })
	m.AddStream(256, StreamTypeLowerBitrateVideo)
	clock = base.Add(10 * time.Second)
	m.CleanupOldStreams(30 * time.Second)
	assert.NotNil(t, m.Stream(256))
}

// An actively-fed stream still gets evicted once its age from first-seen
// crosses timeout: eviction is keyed on StartedAt, not on idle time, so a
// continuously-running PID self-heals its accumulated stats periodically
// instead of accruing them forever.
func TestStatsManager_CleanupOldStreamsEvictsActiveStream(t *testing.T) {
	base := time.Unix(0, 0)
	clock := base
	m := newStatsManagerWithClock(func() time.Time { return clock })
	m.AddStream(256, StreamTypeLowerBitrateVideo)

	clock = base.Add(29 * time.Second)
	m.UpdateBytes(256, 1000) // keeps LastSeenAt fresh right up to the deadline.

	clock = base.Add(31 * time.Second)
	m.CleanupOldStreams(30 * time.Second)
	assert.Nil(t, m.Stream(256))
}
