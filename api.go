package tsinspect

import (
	"context"
	"time"

	"github.com/tsinspect/tsinspect/driver"
)

// SocketOptions configures RunOnSocket.
type SocketOptions struct {
	Addr       string // "ip:port", IPv4 only; see driver.NewUDPSource.
	Refresh    time.Duration
	Priority   TR101Priority
	Analysis   bool // false disables the TR 101 290 engine, as --no-analysis does.
	OnSnapshot func(*Snapshot)
}

// RunOnSocket binds opts.Addr, joining its multicast group if applicable,
// and drives the loop until ctx is canceled or the socket fails. It is the
// CLI surface's entry point.
func RunOnSocket(ctx context.Context, opts SocketOptions) error {
	src, err := driver.NewUDPSource(opts.Addr)
	if err != nil {
		return err
	}
	defer src.Close()

	p := NewProcessor()
	p.SetAnalysisEnabled(opts.Analysis)

	l := NewLoop(src, p)
	if opts.Refresh > 0 {
		l.Refresh = opts.Refresh
	}
	l.Priority = opts.Priority
	l.OnSnapshot = opts.OnSnapshot

	return l.Run(ctx)
}

// RunOnBytes drives the loop over an embedder-owned byte channel, invoking
// callback with a Snapshot when a buffer arrives at least one refresh
// interval after the previous emission. Each buffer read from ch
// MUST be a concatenation of whole 188-byte packets.
func RunOnBytes(ctx context.Context, ch <-chan []byte, refresh time.Duration, analysis bool, callback func(*Snapshot)) error {
	p := NewProcessor()
	p.SetAnalysisEnabled(analysis)

	l := NewLoop(driver.NewChannelSource(ch), p)
	if refresh > 0 {
		l.Refresh = refresh
	}
	l.OnSnapshot = callback

	return l.Run(ctx)
}

// CommandKind tags the variant carried by a Command.
type CommandKind int

const (
	CommandStart CommandKind = iota
	CommandStop
	CommandGetStatus
)

// Command is the tagged union accepted by RunOnBytesWithControl's command
// channel: Start(mode), Stop, or GetStatus.
type Command struct {
	Kind CommandKind

	// Mode is read for CommandStart; it selects the TR101Priority the
	// Processor resumes at.
	Mode TR101Priority

	// Reply is read for CommandGetStatus: the current Snapshot is sent to
	// it once, non-blocking if the caller isn't ready to receive it.
	Reply chan<- *Snapshot
}

// StartCommand builds a Command that (re)starts processing at mode.
func StartCommand(mode TR101Priority) Command {
	return Command{Kind: CommandStart, Mode: mode}
}

// StopCommand builds a Command that switches the Processor to pass-through:
// packets still flow through but no SI/ES/TR101 state is updated.
func StopCommand() Command {
	return Command{Kind: CommandStop}
}

// GetStatusCommand builds a Command that requests an out-of-band snapshot,
// delivered to reply.
func GetStatusCommand(reply chan<- *Snapshot) Command {
	return Command{Kind: CommandGetStatus, Reply: reply}
}

// RunOnBytesWithControl is RunOnBytes plus a command channel: Start(mode)
// resumes processing at mode, Stop switches to pass-through, and GetStatus
// requests an immediate snapshot without waiting for the next refresh tick.
// Both channels are read from a single select loop, preserving the
// processing model's single-logical-task, no-locks discipline: there is
// never more than one goroutine touching the Processor.
func RunOnBytesWithControl(ctx context.Context, dataCh <-chan []byte, commandCh <-chan Command, refresh time.Duration, initialMode TR101Priority, callback func(*Snapshot)) error {
	if refresh <= 0 {
		refresh = 2 * time.Second
	}

	p := NewProcessor()
	priority := initialMode
	passThrough := false
	lastEmit := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-commandCh:
			if !ok {
				commandCh = nil // stop selecting a closed channel
				continue
			}
			switch cmd.Kind {
			case CommandStart:
				priority = cmd.Mode
				passThrough = false
			case CommandStop:
				passThrough = true
			case CommandGetStatus:
				if cmd.Reply != nil {
					snap := BuildSnapshot(p, priority, time.Now())
					select {
					case cmd.Reply <- snap:
					default:
					}
				}
			}
		case buf, ok := <-dataCh:
			if !ok {
				return nil
			}
			if !passThrough {
				for off := 0; off+PacketLength <= len(buf); off += PacketLength {
					_ = p.ProcessPacket(buf[off : off+PacketLength])
				}
			}
			if time.Since(lastEmit) >= refresh {
				p.Cleanup(streamEvictionTimeout)
				if callback != nil {
					callback(BuildSnapshot(p, priority, time.Now()))
				}
				lastEmit = time.Now()
			}
		}
	}
}
