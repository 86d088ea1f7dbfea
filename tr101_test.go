package tsinspect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTR101_SyncLossEveryFive(t *testing.T) {
	e := NewTR101Engine()
	for i := 0; i < 4; i++ {
		e.ObserveSyncByte(false)
	}
	assert.Equal(t, uint64(0), e.Counters().TSSyncLoss)
	e.ObserveSyncByte(false)
	assert.Equal(t, uint64(1), e.Counters().TSSyncLoss)
	assert.Equal(t, uint64(5), e.Counters().SyncByteErrors)

	e.ObserveSyncByte(true)
	for i := 0; i < 5; i++ {
		e.ObserveSyncByte(false)
	}
	assert.Equal(t, uint64(2), e.Counters().TSSyncLoss)
}

func TestTR101_ContinuityCounterErrors(t *testing.T) {
	e := NewTR101Engine()
	h := &PacketHeader{PID: 256, HasPayload: true, ContinuityCounter: 0}
	e.ObserveHeader(h)
	h.ContinuityCounter = 1
	e.ObserveHeader(h)
	assert.Equal(t, uint64(0), e.Counters().ContinuityCounterErrors)
	h.ContinuityCounter = 3 // skipped 2
	e.ObserveHeader(h)
	assert.Equal(t, uint64(1), e.Counters().ContinuityCounterErrors)
}

func TestTR101_ContinuityCounterWrap(t *testing.T) {
	e := NewTR101Engine()
	h := &PacketHeader{PID: 256, HasPayload: true, ContinuityCounter: 15}
	e.ObserveHeader(h)
	h.ContinuityCounter = 0
	e.ObserveHeader(h)
	assert.Equal(t, uint64(0), e.Counters().ContinuityCounterErrors)
}

func TestTR101_ContinuityCounterSkipsAdaptationOnly(t *testing.T) {
	e := NewTR101Engine()
	h := &PacketHeader{PID: 256, HasPayload: true, ContinuityCounter: 0}
	e.ObserveHeader(h)
	adaptOnly := &PacketHeader{PID: 256, HasAdaptationField: true, HasPayload: false, ContinuityCounter: 9}
	e.ObserveHeader(adaptOnly)
	h2 := &PacketHeader{PID: 256, HasPayload: true, ContinuityCounter: 1}
	e.ObserveHeader(h2)
	assert.Equal(t, uint64(0), e.Counters().ContinuityCounterErrors)
}

func TestTR101_PIDErrors(t *testing.T) {
	e := NewTR101Engine()
	e.ObserveHeader(&PacketHeader{PID: 0x0005, HasPayload: true})
	assert.Equal(t, uint64(1), e.Counters().PIDErrors)

	e.ObserveHeader(&PacketHeader{PID: 0x1fff, HasPayload: true}) // null, exempt
	assert.Equal(t, uint64(1), e.Counters().PIDErrors)

	e.RegisterKnownPIDs(&PMTData{PCRPID: 0x0005})
	e.ObserveHeader(&PacketHeader{PID: 0x0005, HasPayload: true})
	assert.Equal(t, uint64(1), e.Counters().PIDErrors) // now known, no longer an error
}

func TestTR101_PTSErrorsBackwardJump(t *testing.T) {
	e := NewTR101Engine()
	e.ObservePTS(256, 90000)
	e.ObservePTS(256, 80000) // backward by 10000, well under wrap
	assert.Equal(t, uint64(1), e.Counters().PTSErrors)
}

func TestTR101_PTSErrorsForwardJump(t *testing.T) {
	e := NewTR101Engine()
	e.ObservePTS(256, 0)
	e.ObservePTS(256, 61*90000)
	assert.Equal(t, uint64(1), e.Counters().PTSErrors)
}

func TestTR101_PTSWrapNotAnError(t *testing.T) {
	e := NewTR101Engine()
	e.ObservePTS(256, 5000000000)
	e.ObservePTS(256, 100) // backward jump of ~5e9, well over the 2^32 wrap threshold
	assert.Equal(t, uint64(0), e.Counters().PTSErrors)
}

func TestTR101_SpliceCountdownLegalTransitions(t *testing.T) {
	e := NewTR101Engine()
	e.ObserveSpliceCountdown(256, 3)
	e.ObserveSpliceCountdown(256, 3) // same value, legal
	e.ObserveSpliceCountdown(256, 2) // decrement, legal
	e.ObserveSpliceCountdown(256, 1)
	e.ObserveSpliceCountdown(256, 0)
	e.ObserveSpliceCountdown(256, -1)
	e.ObserveSpliceCountdown(256, 0) // -1 -> 0, legal
	assert.Equal(t, uint64(0), e.Counters().SpliceCountErrors)

	e.ObserveSpliceCountdown(256, 5) // illegal jump
	assert.Equal(t, uint64(1), e.Counters().SpliceCountErrors)
}

func TestTR101_PATVersionChange(t *testing.T) {
	e := NewTR101Engine()
	e.ObservePATCRC(true, 1, 0)
	e.ObservePATCRC(true, 1, 0)
	assert.Equal(t, uint64(0), e.Counters().PATVersionChanges)
	e.ObservePATCRC(true, 1, 1)
	assert.Equal(t, uint64(1), e.Counters().PATVersionChanges)
	e.ObservePATCRC(false, 1, 1)
	assert.Equal(t, uint64(1), e.Counters().PATCRCErrors)
}

func TestTR101_PATTimeout(t *testing.T) {
	base := time.Unix(0, 0)
	clock := base
	e := newTR101EngineWithClock(func() time.Time { return clock })
	e.CheckTimeouts() // establishes grace period start
	assert.Equal(t, uint64(0), e.Counters().PATTimeout)

	clock = base.Add(600 * time.Millisecond)
	e.CheckTimeouts()
	assert.Equal(t, uint64(1), e.Counters().PATTimeout)

	e.CheckTimeouts() // already latched, no re-fire
	assert.Equal(t, uint64(1), e.Counters().PATTimeout)

	e.ObservePATCRC(true, 1, 0)
	e.CheckTimeouts()
	assert.Equal(t, uint64(1), e.Counters().PATTimeout)

	clock = clock.Add(600 * time.Millisecond)
	e.CheckTimeouts()
	assert.Equal(t, uint64(2), e.Counters().PATTimeout)
}

func TestTR101_PCRRepetitionError(t *testing.T) {
	base := time.Unix(0, 0)
	clock := base
	e := newTR101EngineWithClock(func() time.Time { return clock })
	e.ObservePCR(256, 0)
	clock = base.Add(50 * time.Millisecond)
	e.ObservePCR(256, int64(50*27000)) // 50ms worth of ticks, wall delta 50ms > 40ms threshold
	assert.Equal(t, uint64(1), e.Counters().PCRRepetitionErrors)
}

func TestTR101_PCRAccuracyError(t *testing.T) {
	base := time.Unix(0, 0)
	clock := base
	e := newTR101EngineWithClock(func() time.Time { return clock })
	e.ObservePCR(256, 0)
	clock = base.Add(200 * time.Millisecond)
	// Expected ticks for 200ms = 5,400,000. Push it far off.
	e.ObservePCR(256, 5400000+50000)
	assert.Equal(t, uint64(1), e.Counters().PCRAccuracyErrors)
}

func TestTR101_NullPacketRateWindow(t *testing.T) {
	base := time.Unix(0, 0)
	clock := base
	e := newTR101EngineWithClock(func() time.Time { return clock })
	for i := 0; i < 100; i++ {
		e.ObservePacketBytes(PIDNull)
	}
	for i := 0; i < 100; i++ {
		e.ObservePacketBytes(256)
	}
	clock = base.Add(1100 * time.Millisecond)
	e.ObservePacketBytes(256)
	assert.Equal(t, uint64(1), e.Counters().NullPacketRateErrors)
}

func TestTR101_ServiceIDMismatch(t *testing.T) {
	e := NewTR101Engine()
	e.ObserveServiceIDMismatch(false)
	e.ObserveServiceIDMismatch(true)
	assert.Equal(t, uint64(1), e.Counters().ServiceIDMismatch)
}
