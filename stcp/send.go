package stcp

import (
	"log/slog"
	"time"
)

// admissionWindow returns how many more payload bytes may be admitted into
// the send queue right now: min(MSS, WindowSize - (snd_nxt - snd_una)), per
// spec section 4.4. It is zero once the window is full.
func (c *Context) admissionWindow() Size {
	used := Sub(c.sndNxt, c.sndUna)
	if used >= WindowSize {
		return 0
	}
	room := WindowSize - used
	if mss := c.cfg.mss(); room > mss {
		return mss
	}
	return room
}

// pumpAppData pulls as much application data as the window admits and
// enqueues it as data-bearing segments. It stops the moment PullSend has
// nothing more to offer or the window fills, matching the "admit, don't
// block" framing of spec section 4.4.
func (c *Context) pumpAppData(app AppIO) {
	if c.fatal != nil || !c.state.AllowsAppData() {
		return
	}
	for {
		room := c.admissionWindow()
		if room == 0 {
			return
		}
		buf := c.scratch[:room]
		n, err := app.PullSend(buf)
		if err != nil {
			c.setFatal(err)
			return
		}
		if n == 0 {
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		seg := Segment{Seq: c.sndNxt, Ack: c.rcvNxt, Flags: FlagACK, Payload: payload}
		c.sendQ.Insert(seg)
		c.sndNxt = Add(c.sndNxt, seg.LogicalLen())
	}
}

// tryQueueFin enqueues our own FIN once the application has requested close
// and the window has room for the one sequence number FIN consumes. It is
// re-checked on every event because the window may have been full at the
// moment of the close request (spec section 4.6).
func (c *Context) tryQueueFin() {
	if c.fatal != nil || !c.closeRequested || c.finQueued || c.admissionWindow() == 0 {
		return
	}
	var next State
	switch c.state {
	case StateEstablished:
		next = StateFinWait1
	case StateCloseWait:
		next = StateLastAck
	default:
		return
	}
	c.enqueueControl(Segment{Seq: c.sndNxt, Ack: c.rcvNxt, Flags: FlagFIN | FlagACK})
	c.finQueued = true
	c.state = next
}

// handleAck folds one incoming ACK into the send side: retiring fully
// acknowledged segments, feeding the RTO estimator (Karn-filtered) and
// driving the handshake/teardown ACK-triggered state transitions of spec
// section 4.6.
func (c *Context) handleAck(ack Value) {
	if LessThan(c.sndNxt, ack) {
		c.traceReject(nil, "ack beyond snd_nxt")
		return
	}
	if !LessThan(c.sndUna, ack) {
		// ack <= snd_una: a duplicate of data already retired, or a piggy-back
		// ack on a segment carrying no new acknowledgement. Routine, not a
		// rejection worth tracing.
		return
	}

	now := time.Now()
	for !c.sendQ.Empty() {
		head := c.sendQ.Head()
		if LessThan(ack, head.End()) {
			break
		}
		seg := c.sendQ.PopHead()
		if seg.txCount == 1 && !seg.sentAt.IsZero() {
			c.rto.sample(now.Sub(seg.sentAt))
		}
	}
	c.advanceSndUna(ack)

	switch c.state {
	case StateSynReceived:
		if c.sndUna == c.sndNxt {
			c.state = StateEstablished
		}
	case StateFinWait1:
		if c.finQueued && c.sndUna == c.sndNxt {
			c.state = StateFinWait2
		}
	case StateClosing, StateLastAck:
		if c.finQueued && c.sndUna == c.sndNxt {
			c.state = StateClosed
		}
	}
}

// transmit encodes and sends one segment. It refreshes the piggy-backed
// ack to the current rcv_nxt on every call (spec section 4.4: the
// piggy-backed ack is authoritative even for pure-data segments), so a
// retransmission never replays a stale ack the first attempt captured.
// It never mutates send-queue bookkeeping (sentAt/txCount); callers decide
// whether a send counts as an initial transmission or a retransmission.
func (c *Context) transmit(net NetworkIO, seg *Segment) {
	seg.Ack = c.rcvNxt
	header := c.scratch[:HeaderSize]
	if err := EncodeHeader(header, seg, uint16(WindowSize)); err != nil {
		c.log.Error("stcp:encode-failed", slog.String("err", err.Error()))
		return
	}
	if err := net.SendTo(header, seg.Payload); err != nil {
		c.log.Warn("stcp:send-failed", slog.String("err", err.Error()), slog.String("seg", seg.String()))
		return
	}
	c.traceEvent(EventNetworkData, seg)
}

// sendPureAck transmits a window update / acknowledgement carrying no
// sequence-consuming payload. Pure acks are never queued for retransmission
// (spec section 4.4: only data and control segments occupy send_queue).
func (c *Context) sendPureAck(net NetworkIO) {
	// A graceful close can move state to CLOSED mid-dispatch (FIN_WAIT_2
	// receiving the peer's FIN, with no TIME_WAIT to linger in); the final
	// ack for that FIN must still go out. Only skip once the connection
	// never started a handshake or has aborted.
	if c.state == StateListen || c.fatal != nil {
		return
	}
	seg := Segment{Seq: c.sndNxt, Ack: c.rcvNxt, Flags: FlagACK}
	c.transmit(net, &seg)
}

// drainSend transmits every send-queue entry that has never been sent,
// marking it as the first of up to MaxRetransmits attempts.
func (c *Context) drainSend(net NetworkIO) {
	now := time.Now()
	for i := range c.sendQ.items {
		seg := &c.sendQ.items[i]
		if seg.txCount != 0 {
			continue
		}
		c.transmit(net, seg)
		seg.sentAt = now
		seg.txCount = 1
	}
}

// onTimer fires on RTO expiry: it retransmits the entire send queue (spec
// section 9's supplemented behavior — counters are per-segment, not
// per-connection) and backs the RTO off exponentially, or declares the
// connection failed once any segment has been sent MaxRetransmits times.
func (c *Context) onTimer(net NetworkIO) {
	if c.sendQ.Empty() {
		return
	}
	if c.sendQ.Head().txCount >= MaxRetransmits {
		c.setFatal(c.giveUpError())
		return
	}
	c.rto.backoff()
	now := time.Now()
	for i := range c.sendQ.items {
		seg := &c.sendQ.items[i]
		c.transmit(net, seg)
		seg.sentAt = now
		seg.txCount++
	}
}

func (c *Context) giveUpError() error {
	switch {
	case c.state == StateSynSent:
		return ErrConnRefused
	case c.state.IsHandshaking():
		return ErrConnAborted
	default:
		return ErrBrokenPipe
	}
}
