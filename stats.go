package tsinspect

import "time"

// maxPTSHistory bounds the per-PID PTS history used for fps fallback
// estimation to the last N values.
const maxPTSHistory = 10

// defaultStreamTimeout is how long after it was first seen a stream is kept
// before CleanupOldStreams drops it.
const defaultStreamTimeout = 30 * time.Second

// StreamStats accumulates the bookkeeping the reporter needs for a single
// PID: byte count, discovered codec, and recent PTS history.
type StreamStats struct {
	PID        uint16
	StreamType uint8
	Codec      string
	Width      int
	Height     int
	FPS        float64
	Chroma     string
	Channels   int
	SampleRate int
	Bytes      uint64
	StartedAt  time.Time
	LastSeenAt time.Time
	pts        []int64
}

// PTSHistory returns a copy of the most recent PTS values, oldest first.
func (s *StreamStats) PTSHistory() []int64 {
	out := make([]int64, len(s.pts))
	copy(out, s.pts)
	return out
}

// StatsManager tracks per-PID byte counts, codecs and timing used to derive
// bitrate and frame-rate estimates. It has no concurrency guard: like the
// rest of the inspector it's driven from a single goroutine.
type StatsManager struct {
	now     func() time.Time
	streams map[uint16]*StreamStats
}

// NewStatsManager returns a StatsManager using time.Now for timestamps.
func NewStatsManager() *StatsManager {
	return newStatsManagerWithClock(time.Now)
}

func newStatsManagerWithClock(now func() time.Time) *StatsManager {
	return &StatsManager{now: now, streams: make(map[uint16]*StreamStats)}
}

// AddStream registers pid if it isn't already known. Idempotent.
func (m *StatsManager) AddStream(pid uint16, streamType uint8) *StreamStats {
	if s, ok := m.streams[pid]; ok {
		return s
	}
	now := m.now()
	s := &StreamStats{PID: pid, StreamType: streamType, StartedAt: now, LastSeenAt: now}
	m.streams[pid] = s
	return s
}

// Stream returns the tracked stats for pid, or nil.
func (m *StatsManager) Stream(pid uint16) *StreamStats {
	return m.streams[pid]
}

// Streams returns every tracked stream keyed by PID.
func (m *StatsManager) Streams() map[uint16]*StreamStats {
	return m.streams
}

// UpdateBytes adds n bytes to pid's running total and refreshes its
// last-seen time. pid must already be known via AddStream.
func (m *StatsManager) UpdateBytes(pid uint16, n uint64) {
	s, ok := m.streams[pid]
	if !ok {
		return
	}
	s.Bytes += n
	s.LastSeenAt = m.now()
}

// SetCodec records pid's codec the first time it's identified; later calls
// are no-ops so a confident early detection can't be overwritten by a
// partial one.
func (m *StatsManager) SetCodec(pid uint16, codec string) {
	s, ok := m.streams[pid]
	if !ok || s.Codec != "" {
		return
	}
	s.Codec = codec
}

// SetCodecInfo records a fully-decoded CodecInfo the first time pid's
// codec is identified, same idempotency rule as SetCodec.
func (m *StatsManager) SetCodecInfo(pid uint16, info CodecInfo) {
	s, ok := m.streams[pid]
	if !ok || s.Codec != "" {
		return
	}
	s.Codec = info.Codec
	s.Width = info.Width
	s.Height = info.Height
	s.FPS = info.FPS
	s.Chroma = info.Chroma
	s.Channels = info.Channels
	s.SampleRate = info.SampleRate
}

// PushPTS appends a PTS value to pid's history, trimming to the last
// maxPTSHistory entries.
func (m *StatsManager) PushPTS(pid uint16, pts int64) {
	s, ok := m.streams[pid]
	if !ok {
		return
	}
	s.pts = append(s.pts, pts)
	if len(s.pts) > maxPTSHistory {
		s.pts = s.pts[len(s.pts)-maxPTSHistory:]
	}
}

// CalculateBitrate returns pid's bitrate in kbps, a long-window average of
// bytes seen since the stream started (not since it was last seen) — a
// stalled stream's rate keeps decaying toward zero rather than freezing.
// elapsed is floored at 0.1s to avoid a spike immediately after a stream is
// discovered.
func (m *StatsManager) CalculateBitrate(pid uint16) float64 {
	s, ok := m.streams[pid]
	if !ok {
		return 0
	}
	elapsed := m.now().Sub(s.StartedAt).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	return float64(s.Bytes) * 8 / 1000 / elapsed
}

// CleanupOldStreams drops every stream first seen more than timeout ago,
// regardless of how recently it was last seen: a PID's accumulated stats
// self-heal by eviction and re-registration every timeout, rather than
// persisting indefinitely as long as packets keep arriving. A timeout <= 0
// uses defaultStreamTimeout.
func (m *StatsManager) CleanupOldStreams(timeout time.Duration) {
	if timeout <= 0 {
		timeout = defaultStreamTimeout
	}
	cutoff := m.now().Add(-timeout)
	for pid, s := range m.streams {
		if s.StartedAt.Before(cutoff) {
			delete(m.streams, pid)
		}
	}
}
