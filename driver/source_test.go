package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelSource_DeliversBuffers(t *testing.T) {
	ch := make(chan []byte, 1)
	src := NewChannelSource(ch)

	ch <- []byte{1, 2, 3}
	buf, err := src.NextBuffer(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf)
}

func TestChannelSource_ClosedChannelReturnsErrSourceClosed(t *testing.T) {
	ch := make(chan []byte)
	src := NewChannelSource(ch)
	close(ch)

	_, err := src.NextBuffer(context.Background())
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestChannelSource_CanceledContext(t *testing.T) {
	ch := make(chan []byte)
	src := NewChannelSource(ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.NextBuffer(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewUDPSource_BindsLoopback(t *testing.T) {
	src, err := NewUDPSource("127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: socket binding unavailable in this environment: %v", err)
	}
	defer src.Close()
	assert.NotNil(t, src.conn)
}

func TestNewUDPSource_RejectsUnresolvableIPv4(t *testing.T) {
	_, err := NewUDPSource("not-an-address:not-a-port")
	assert.Error(t, err)
}
