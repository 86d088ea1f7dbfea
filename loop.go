package tsinspect

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/tsinspect/tsinspect/driver"
)

// streamEvictionTimeout is the Stats Manager eviction age (time since a
// stream was first seen), passed to
// Processor.Cleanup on every snapshot emission (§5 "Memory" in the
// processing model).
const streamEvictionTimeout = 30 * time.Second

// Loop is the cooperative driver of the processing model: await a buffer
// from a driver.Source, feed every whole 188-byte packet in it to a
// Processor synchronously, and, once Refresh has elapsed since the last
// emission, run Cleanup and hand a Snapshot to OnSnapshot. There is no
// background goroutine; Run occupies the calling goroutine until the source
// ends or ctx is canceled.
type Loop struct {
	Source     driver.Source
	Processor  *Processor
	Refresh    time.Duration
	Priority   TR101Priority
	OnSnapshot func(*Snapshot)

	now func() time.Time

	// passThrough disables packet processing entirely when true, used by
	// the embedding API's Stop command. Buffers are still drained from the
	// source so an embedder's channel doesn't back up.
	passThrough bool
}

// NewLoop wires a Loop with the CLI surface's defaults: a 2-second refresh
// and Priority-12 TR101 filtering.
func NewLoop(source driver.Source, processor *Processor) *Loop {
	return &Loop{
		Source:    source,
		Processor: processor,
		Refresh:   2 * time.Second,
		Priority:  TR101Priority12,
		now:       time.Now,
	}
}

// SetPassThrough toggles whether incoming packets reach the Processor. Call
// it only between Run iterations; Run is not goroutine-safe by design (the
// processing model is a single logical task with no shared state).
func (l *Loop) SetPassThrough(v bool) { l.passThrough = v }

// Run drives the loop until ctx is canceled or the source signals a clean
// end of stream (io.EOF or driver.ErrSourceClosed), returning nil in either
// case. Any other error from the source is a socket I/O failure and is
// fatal, per the error handling design.
func (l *Loop) Run(ctx context.Context) error {
	now := l.now
	if now == nil {
		now = time.Now
	}
	lastEmit := now()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		buf, err := l.Source.NextBuffer(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, driver.ErrSourceClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if !l.passThrough {
			l.processBuffer(buf)
		}

		if now().Sub(lastEmit) >= l.Refresh {
			l.Processor.Cleanup(streamEvictionTimeout)
			if l.OnSnapshot != nil {
				l.OnSnapshot(BuildSnapshot(l.Processor, l.Priority, now()))
			}
			lastEmit = now()
		}
	}
}

// processBuffer walks buf in 188-byte stride and forwards every whole
// packet to the Processor. A chunk whose first byte isn't the sync byte is
// still handed to ProcessPacket: sync-loss accounting belongs to the
// Processor, not the driver, so the loop never special-cases it. Trailing
// bytes shorter than one packet are discarded.
func (l *Loop) processBuffer(buf []byte) {
	for off := 0; off+PacketLength <= len(buf); off += PacketLength {
		_ = l.Processor.ProcessPacket(buf[off : off+PacketLength])
	}
}
