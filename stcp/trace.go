package stcp

import "log/slog"

// EventKind identifies which of the event loop's four wake reasons fired,
// per spec section 4.7.
type EventKind uint8

const (
	EventTimerExpired EventKind = iota
	EventAppData
	EventNetworkData
	EventAppCloseRequested
)

func (k EventKind) String() string {
	switch k {
	case EventTimerExpired:
		return "timer"
	case EventAppData:
		return "app-data"
	case EventNetworkData:
		return "network-data"
	case EventAppCloseRequested:
		return "app-close"
	default:
		return "unknown"
	}
}

// TraceEvent is passed to a TraceHook for every handled event, transmitted
// segment and rejected segment or ACK. It
// replaces the C original's debug-printf tracing (spec section 9) with a
// structured hook tests can assert against instead of scraping stdout.
type TraceEvent struct {
	Kind    EventKind
	State   State
	Segment *Segment     // nil unless Kind == EventNetworkData or a segment was sent in response
	Reject  *RejectError // non-nil when an inbound segment was silently dropped
}

// TraceHook, if set in Config, is invoked synchronously from within Run
// for every TraceEvent. It must not block or call back into the Context.
type TraceHook func(TraceEvent)

func (c *Context) traceEvent(kind EventKind, seg *Segment) {
	if c.trace == nil {
		return
	}
	c.trace(TraceEvent{Kind: kind, State: c.state, Segment: seg})
}

// traceReject reports why an inbound segment was silently dropped, for
// TraceHook consumers; the wire protocol itself never replies to a
// rejected segment (spec section 7).
func (c *Context) traceReject(seg *Segment, reason string) {
	segStr := "<none>"
	if seg != nil {
		segStr = seg.String()
	}
	c.log.Debug("stcp:reject", slog.String("reason", reason), slog.String("seg", segStr))
	if c.trace == nil {
		return
	}
	c.trace(TraceEvent{Kind: EventNetworkData, State: c.state, Segment: seg, Reject: newReject(reason)})
}
