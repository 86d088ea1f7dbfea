package tsinspect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tsinspect/tsinspect/driver"
)

type loopFakeClock struct{ t time.Time }

func (c *loopFakeClock) now() time.Time { return c.t }

func (c *loopFakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestLoop_ProcessesWholePacketsAndDropsPartial(t *testing.T) {
	ch := make(chan []byte, 1)
	src := driver.NewChannelSource(ch)
	p := NewProcessor()
	l := NewLoop(src, p)
	clock := &loopFakeClock{t: time.Unix(0, 0)}
	l.now = clock.now

	buf := append(buildTSPacket(0x100, false, 0, nil), buildTSPacket(0x101, false, 0, nil)...)
	buf = append(buf, 0x47, 0x00) // trailing partial packet, must be dropped

	ch <- buf
	close(ch)

	err := l.Run(context.Background())
	assert.NoError(t, err)
}

func TestLoop_EmitsSnapshotAfterRefresh(t *testing.T) {
	ch := make(chan []byte)
	src := driver.NewChannelSource(ch)
	p := NewProcessor()
	l := NewLoop(src, p)
	l.Refresh = time.Second
	clock := &loopFakeClock{t: time.Unix(0, 0)}
	l.now = clock.now

	emitted := make(chan *Snapshot, 1)
	l.OnSnapshot = func(s *Snapshot) {
		select {
		case emitted <- s:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	ch <- buildTSPacket(0x100, false, 0, nil)
	clock.advance(2 * time.Second)
	ch <- buildTSPacket(0x101, false, 0, nil)

	select {
	case s := <-emitted:
		assert.NotNil(t, s)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot after refresh elapsed")
	}
}

func TestLoop_PassThroughSkipsProcessing(t *testing.T) {
	ch := make(chan []byte, 1)
	src := driver.NewChannelSource(ch)
	p := NewProcessor()
	l := NewLoop(src, p)
	l.SetPassThrough(true)
	clock := &loopFakeClock{t: time.Unix(0, 0)}
	l.now = clock.now

	ch <- buildTSPacket(5, false, 0, nil) // reserved PID, would be a pid_error if processed
	close(ch)

	assert.NoError(t, l.Run(context.Background()))
	assert.Equal(t, uint64(0), p.TR101().Counters().PIDErrors)
}
