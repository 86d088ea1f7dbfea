// Package driver supplies the byte sources a tsinspect.Loop reads from: a
// UDP socket (multicast-aware) or an embedder-owned channel of buffers.
package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// ErrNonIPv4Address is returned by NewUDPSource when addr does not resolve
// to an IPv4 address, per the byte source's "IPv4 only" contract.
var ErrNonIPv4Address = errors.New("tsinspect/driver: only IPv4 addresses are supported")

// readBufferSize bounds a single UDP read. Real muxes send at most a handful
// of 188-byte packets per datagram; this comfortably covers jumbo-ish bursts.
const readBufferSize = 64 * 1024

// Source delivers buffers that MUST be a concatenation of whole 188-byte TS
// packets; partial trailing packets are the caller's to discard. NextBuffer
// blocks until a buffer is ready, the source is exhausted (io.EOF, or
// ErrSourceClosed for a ChannelSource), or ctx is done.
type Source interface {
	NextBuffer(ctx context.Context) ([]byte, error)
}

// UDPSource reads datagrams off a socket bound to the address's port on all
// local interfaces, joining the
// multicast group on the default interface when the address is multicast.
// SO_REUSEADDR is set so a second inspector process can bind the same
// group, matching how multiple monitoring tools commonly share a mux.
type UDPSource struct {
	conn *net.UDPConn
	pc   *ipv4.PacketConn
	buf  []byte

	// errBackoff limits failing reads to one per 100ms: NextBuffer waits on
	// it before returning a read error, and the first error passes without
	// delay. NextBuffer does not retry the read itself.
	errBackoff *rate.Limiter
}

// NewUDPSource binds addr's port on all local interfaces and, if addr's IP
// is a multicast address, joins that group. addr must resolve to an IPv4
// address.
func NewUDPSource(addr string) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("tsinspect/driver: resolving %s failed: %w", addr, err)
	}
	if udpAddr.IP != nil && udpAddr.IP.To4() == nil {
		return nil, ErrNonIPv4Address
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var setErr error
			if err := c.Control(func(fd uintptr) {
				setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return setErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", udpAddr.Port))
	if err != nil {
		return nil, fmt.Errorf("tsinspect/driver: listening on %s failed: %w", addr, err)
	}
	conn := pc.(*net.UDPConn)
	conn.SetReadBuffer(readBufferSize)

	ipc := ipv4.NewPacketConn(conn)
	if udpAddr.IP != nil && udpAddr.IP.IsMulticast() {
		if err := ipc.JoinGroup(nil, &net.UDPAddr{IP: udpAddr.IP}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tsinspect/driver: joining multicast group %s failed: %w", udpAddr.IP, err)
		}
	}

	return &UDPSource{
		conn:       conn,
		pc:         ipc,
		buf:        make([]byte, readBufferSize),
		errBackoff: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}, nil
}

// NextBuffer reads one datagram. Like the teacher's Demuxer, ctx is only
// consulted between reads, not used to interrupt one already in flight.
func (s *UDPSource) NextBuffer(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, _, err := s.conn.ReadFromUDP(s.buf)
	if err != nil {
		_ = s.errBackoff.Wait(ctx)
		return nil, fmt.Errorf("tsinspect/driver: reading udp socket failed: %w", err)
	}
	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out, nil
}

// Close releases the underlying socket.
func (s *UDPSource) Close() error {
	return s.conn.Close()
}

// ChannelSource adapts an embedder-owned byte channel (§6.1b) to Source.
type ChannelSource struct {
	ch <-chan []byte
}

// NewChannelSource wraps ch. The embedder closes ch to signal end of stream.
func NewChannelSource(ch <-chan []byte) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// ErrSourceClosed is returned by ChannelSource.NextBuffer once its channel
// has been closed and drained, the channel-source analogue of io.EOF.
var ErrSourceClosed = errors.New("tsinspect/driver: channel source closed")

// NextBuffer returns the next buffer from the channel, ErrSourceClosed once
// ch is closed and drained, or ctx.Err() if ctx is done first.
func (s *ChannelSource) NextBuffer(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-s.ch:
		if !ok {
			return nil, ErrSourceClosed
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
