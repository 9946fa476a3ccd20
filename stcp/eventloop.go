package stcp

import (
	"context"
	"log/slog"
	"time"
)

// NetworkIO is the unreliable datagram boundary a Context is driven over.
// Implementations need not be reliable, ordered or loss-free; that is
// exactly what the state machine above compensates for. See udpnet for a
// real UDP-backed implementation.
type NetworkIO interface {
	RecvFrom(buf []byte) (n int, err error)
	SendTo(header, payload []byte) error
}

// AppIO is the application boundary: the byte-stream producer/consumer a
// Context shuttles data to and from.
type AppIO interface {
	// PullSend copies up to len(buf) bytes the application has queued for
	// sending into buf, returning how many it wrote. Returning (0, nil)
	// means "nothing to send right now", not end-of-stream.
	PullSend(buf []byte) (n int, err error)
	// PushRecv delivers in-order application data. buf is only valid for
	// the duration of the call.
	PushRecv(buf []byte) error
	// Unblock wakes any goroutine parked waiting for send/receive progress,
	// called whenever the loop exits for any reason.
	Unblock()
	// FinReceived reports that the peer has no more data to send. Called
	// at most once per connection.
	FinReceived()
}

// Event is one item the event loop reacts to, per the four wake reasons of
// spec section 4.7. Data is only meaningful for EventNetworkData and is a
// datagram owned by the sender of the event (copied out, never c.scratch,
// since it crosses from a reader goroutine into Run).
type Event struct {
	Kind EventKind
	Data []byte
}

// Run drives the connection to completion: it blocks until the state
// machine reaches CLOSED (normal or aborted) or ctx is cancelled, feeding
// on caller-supplied events and an internally managed retransmission timer
// (the Go translation of wait_for_event(mask, deadline) from spec section
// 9 — a select over one fan-in channel and one time.Timer.C, instead of a
// bitmask and a monotonic deadline).
//
// The caller is expected to run goroutines that forward NetworkIO reads,
// application writability and an application close request into events,
// matching one Context each.
func (c *Context) Run(ctx context.Context, net NetworkIO, app AppIO, events <-chan Event) error {
	defer app.Unblock()

	c.drainSend(net)
	for !c.state.IsClosed() {
		timer := time.NewTimer(c.rto.current())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case <-timer.C:
			c.traceEvent(EventTimerExpired, nil)
			c.onTimer(net)

		case ev, ok := <-events:
			if !timer.Stop() {
				<-timer.C
			}
			if !ok {
				c.setFatal(ErrBrokenPipe)
				break
			}
			c.handleEvent(net, app, ev)
		}

		c.pumpAppData(app)
		c.tryQueueFin()
		c.drainSend(net)
	}

	return c.Err()
}

func (c *Context) handleEvent(net NetworkIO, app AppIO, ev Event) {
	switch ev.Kind {
	case EventAppData:
		c.traceEvent(EventAppData, nil)

	case EventNetworkData:
		seg, _, err := DecodeHeader(ev.Data)
		if err != nil {
			c.log.Debug("stcp:decode-failed", slog.String("err", err.Error()))
			return
		}
		seg.Payload = append([]byte(nil), seg.Payload...)
		c.traceEvent(EventNetworkData, &seg)
		c.onSegment(net, app, seg)

	case EventAppCloseRequested:
		c.traceEvent(EventAppCloseRequested, nil)
		c.closeRequested = true
	}
}
