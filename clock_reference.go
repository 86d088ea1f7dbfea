package tsinspect

import "time"

// ClockReference represents a 42-bit MPEG-2 system clock sample: a 33-bit
// base ticking at 90 kHz plus a 9-bit extension ticking at 27 MHz
// (PCR/OPCR/PTS/DTS/ESCR all share this representation; PTS/DTS only ever
// carry a zero extension).
type ClockReference struct {
	Base      int64 // 33 bits, 90 kHz.
	Extension int64 // 9 bits, 27 MHz.
}

func newClockReference(base, extension int) *ClockReference {
	return &ClockReference{Base: int64(base), Extension: int64(extension)}
}

// Ticks returns the full 42-bit value expressed in 27 MHz ticks.
func (c *ClockReference) Ticks() int64 {
	return c.Base*300 + c.Extension
}

// Duration returns the clock reference expressed as a duration since the
// MPEG-2 system clock epoch.
func (c *ClockReference) Duration() time.Duration {
	return time.Duration(c.Ticks() * 1000 / 27)
}

// Time returns the clock reference as an absolute time, anchored at the
// Unix epoch. This is only meaningful for comparing two clock references
// from the same stream, never as wall-clock time.
func (c *ClockReference) Time() time.Time {
	return time.Unix(0, 0).Add(c.Duration())
}
