package stcp

import (
	"log/slog"
	"time"

	"github.com/nevivurn/stcp/internal"
)

const (
	// WindowSize is the fixed flow-control window in both directions, per
	// spec section 6.
	WindowSize Size = 3072
	// DefaultMSS is used when Config.MSS is left at zero; real deployments
	// are expected to set it from the host network API's MTU, per spec
	// section 6 ("MSS from the host API").
	DefaultMSS = 1460
	// InitialSeq is the fixed initial sequence number spec section 4.6
	// requires ("do not randomise; tests depend on it").
	InitialSeq Value = 1
)

// Config configures a Context. There is no CLI, environment variable or
// persisted state surface (spec section 6): this struct is the entire
// configuration surface, passed directly by the embedding host.
type Config struct {
	// MSS is the largest payload a transmitted segment may carry. Zero
	// means DefaultMSS.
	MSS Size
	// Logger receives structured trace/debug/error output. Nil disables
	// logging.
	Logger *internal.Logger
	// Trace, if non-nil, is invoked for every handled event, transmitted
	// segment and rejected segment or ACK (see TraceEvent).
	Trace TraceHook
}

func (c Config) mss() Size {
	if c.MSS == 0 {
		return DefaultMSS
	}
	return c.MSS
}

// Context is one STCP connection: the "Transport Context" of spec section
// 3. It is bound to a socket descriptor (in this translation, to whichever
// NetworkIO/AppIO pair Run is called with) and is not safe for concurrent
// use — spec section 5 is explicit that the only mutation points are
// between one wake and the next block of the single cooperative loop.
type Context struct {
	cfg Config
	log internal.Logger

	state State
	iss   Value

	sndUna Value
	sndNxt Value
	rcvNxt Value

	sendQ segQueue
	recvQ segQueue

	rto rtoEstimator

	// closeRequested is the latch described in spec section 4.6: app-close
	// sets it rather than acting immediately, because the send window may
	// be full.
	closeRequested bool
	// finQueued prevents double-enqueueing our own FIN if app-close fires
	// more than once before the window opens.
	finQueued bool
	// finDelivered guards invariant 5: fin_received fires exactly once.
	finDelivered bool

	// scratch is the single reusable buffer, sized MSS+HeaderSize, that
	// encodes outbound headers and stages application bytes pulled for
	// sending. Inbound datagrams are decoded from Event.Data, not from
	// scratch. Never retained past one iteration of Run's loop (spec
	// section 5).
	scratch []byte

	fatal *ConnError

	trace TraceHook
}

// NewActive creates a Context that performs an active open (sends the
// initial SYN) once Run starts its event loop.
func NewActive(cfg Config) *Context {
	c := newContext(cfg)
	c.state = StateSynSent
	c.enqueueControl(Segment{Seq: c.sndNxt, Flags: FlagSYN})
	return c
}

// NewListen creates a Context performing a passive open: it waits in
// LISTEN for a peer's SYN.
func NewListen(cfg Config) *Context {
	c := newContext(cfg)
	c.state = StateListen
	return c
}

func newContext(cfg Config) *Context {
	c := &Context{
		cfg:    cfg,
		iss:    InitialSeq,
		sndUna: InitialSeq,
		sndNxt: InitialSeq,
		rcvNxt: 0,
		scratch: make([]byte, int(cfg.mss())+HeaderSize),
		trace:  cfg.Trace,
	}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	}
	c.sendQ.reset(c.sndUna)
	c.recvQ.reset(c.rcvNxt)
	return c
}

// State returns the current connection state.
func (c *Context) State() State { return c.state }

// Err returns the fatal error that terminated the connection, or nil if it
// is still open or closed normally.
func (c *Context) Err() error {
	if c.fatal == nil {
		return nil
	}
	return c.fatal
}

// SndUna, SndNxt, RcvNxt expose the three sequence counters of spec section
// 3 for tests asserting the invariants of spec section 8.
func (c *Context) SndUna() Value { return c.sndUna }
func (c *Context) SndNxt() Value { return c.sndNxt }
func (c *Context) RcvNxt() Value { return c.rcvNxt }

// RTO returns the estimator's current retransmission timeout, for
// observability (stcpmetrics).
func (c *Context) RTO() time.Duration { return c.rto.current() }

// BytesInFlight returns how many octets (including SYN/FIN) are sent but
// not yet acknowledged.
func (c *Context) BytesInFlight() Size { return Sub(c.sndNxt, c.sndUna) }

// RetransmitCount returns how many times the oldest unacknowledged segment
// has been transmitted, 0 if the send queue is empty.
func (c *Context) RetransmitCount() int {
	if c.sendQ.Empty() {
		return 0
	}
	return c.sendQ.Head().txCount
}

func (c *Context) setFatal(err error) {
	if c.fatal != nil {
		return
	}
	c.fatal = &ConnError{Err: err, State: c.state}
	c.log.Error("stcp:fatal", slog.String("err", err.Error()), slog.String("state", c.state.String()))
	c.state = StateClosed
}

func (c *Context) advanceSndUna(ack Value) {
	c.sndUna = ack
	c.sendQ.setRef(ack)
}

func (c *Context) advanceRcvNxt(v Value) {
	c.rcvNxt = v
	c.recvQ.setRef(v)
}

// enqueueControl queues a one-shot control segment (our own SYN or FIN) queued
// directly into sendQ ahead of the normal admission path.
func (c *Context) enqueueControl(seg Segment) {
	seg.sentAt = time.Time{}
	c.sendQ.Insert(seg)
	c.sndNxt = Add(c.sndNxt, seg.LogicalLen())
}
