package tsinspect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunOnBytes_EmitsSnapshots(t *testing.T) {
	ch := make(chan []byte, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Snapshot, 1)
	go func() {
		_ = RunOnBytes(ctx, ch, 10*time.Millisecond, true, func(s *Snapshot) {
			select {
			case got <- s:
			default:
			}
		})
	}()

	ch <- buildTSPacket(PIDPAT, true, 0, buildPATSectionBytes(1, [][2]uint16{{1, 256}}))
	// The refresh is checked when a buffer arrives, so a second buffer after
	// the interval is what triggers the emission.
	time.Sleep(20 * time.Millisecond)
	ch <- buildTSPacket(PIDPAT, true, 1, buildPATSectionBytes(1, [][2]uint16{{1, 256}}))

	select {
	case s := <-got:
		assert.NotNil(t, s)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot from RunOnBytes")
	}
}

func TestRunOnBytesWithControl_StopSuppressesProcessing(t *testing.T) {
	dataCh := make(chan []byte, 1)
	cmdCh := make(chan Command, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- RunOnBytesWithControl(ctx, dataCh, cmdCh, time.Hour, TR101Priority12, nil)
	}()

	cmdCh <- StopCommand()
	time.Sleep(10 * time.Millisecond) // let the select loop apply the command

	reply := make(chan *Snapshot, 1)
	dataCh <- buildTSPacket(5, true, 0, []byte{0x00, 0x00, 0x00}) // reserved PID, would be pid_error
	cmdCh <- GetStatusCommand(reply)

	select {
	case snap := <-reply:
		assert.Equal(t, uint64(0), snap.TR101.PIDErrors)
	case <-time.After(time.Second):
		t.Fatal("expected a status snapshot")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestRunOnBytesWithControl_StartResumesProcessing(t *testing.T) {
	dataCh := make(chan []byte, 1)
	cmdCh := make(chan Command, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- RunOnBytesWithControl(ctx, dataCh, cmdCh, time.Hour, TR101Priority12, nil)
	}()

	cmdCh <- StopCommand()
	cmdCh <- StartCommand(TR101PriorityAll)
	time.Sleep(10 * time.Millisecond)

	patPayload := buildPATSectionBytes(1, [][2]uint16{{1, 256}})
	dataCh <- buildTSPacket(PIDPAT, true, 0, patPayload)

	reply := make(chan *Snapshot, 1)
	time.Sleep(10 * time.Millisecond)
	cmdCh <- GetStatusCommand(reply)

	select {
	case snap := <-reply:
		assert.NotEmpty(t, snap.Programs)
	case <-time.After(time.Second):
		t.Fatal("expected a status snapshot with the processed program")
	}

	cancel()
	assert.NoError(t, <-done)
}
