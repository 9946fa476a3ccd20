package stcp

// trimToWindow clips seg to [rcv_nxt, rcv_nxt+WindowSize), per spec section
// 4.5's trim_segment: bytes already delivered are dropped from the front,
// bytes beyond the advertised window are dropped from the back (along with
// a FIN that would otherwise land outside it; it is re-delivered once the
// window advances). Reports whether anything of seg still falls in-window.
func (c *Context) trimToWindow(seg *Segment) bool {
	if LessThan(seg.Seq, c.rcvNxt) {
		skip := Sub(c.rcvNxt, seg.Seq)
		if skip >= seg.LogicalLen() {
			// Every sequence number, including a trailing FIN, is already
			// behind rcv_nxt.
			return false
		}
		if skip > seg.DataLen() {
			skip = seg.DataLen()
		}
		seg.Payload = seg.Payload[skip:]
		if seg.Flags.Has(FlagSYN) {
			seg.Flags &^= FlagSYN
		}
		seg.Seq = c.rcvNxt
	}

	winEnd := Add(c.rcvNxt, WindowSize)
	if LessThan(winEnd, seg.Seq) {
		return false
	}
	maxLen := Sub(winEnd, seg.Seq)
	if seg.LogicalLen() > maxLen {
		if seg.DataLen() > maxLen {
			seg.Payload = seg.Payload[:maxLen]
		}
		seg.Flags &^= FlagFIN
	}
	return seg.LogicalLen() > 0
}

// processPayload trims, queues and drains an incoming data/FIN-bearing
// segment. It always goes through recv_queue even when seg.Seq == rcv_nxt,
// so out-of-order delivery and duplicate collapsing stay on one code path
// (spec section 4.2).
func (c *Context) processPayload(app AppIO, seg Segment) {
	if !c.trimToWindow(&seg) {
		c.traceReject(&seg, "outside receive window")
		return
	}
	c.recvQ.Insert(seg)
	c.drainRecv(app)
}

// drainRecv delivers every contiguous, already-queued segment starting at
// rcv_nxt to the application, in order, stopping at the first gap.
func (c *Context) drainRecv(app AppIO) {
	for {
		head := c.recvQ.Head()
		if head == nil || head.Seq != c.rcvNxt {
			return
		}
		seg := c.recvQ.PopHead()
		c.advanceRcvNxt(seg.End())

		if len(seg.Payload) > 0 {
			if err := app.PushRecv(seg.Payload); err != nil {
				c.setFatal(err)
				return
			}
		}

		if seg.Flags.Has(FlagFIN) {
			c.deliverFin(app)
		}
	}
}

// deliverFin reports end-of-stream to the application exactly once
// (invariant 5 of spec section 3) and drives the FIN-triggered state
// transitions of spec section 4.6. No TIME_WAIT state exists here (spec
// section 9's design note), so FIN_WAIT_2 goes straight to CLOSED.
func (c *Context) deliverFin(app AppIO) {
	if c.finDelivered {
		return
	}
	c.finDelivered = true
	app.FinReceived()

	switch c.state {
	case StateEstablished:
		c.state = StateCloseWait
	case StateFinWait1:
		c.state = StateClosing
	case StateFinWait2:
		c.state = StateClosed
	}
}

// onSegment is the single entry point for an inbound, decoded datagram. It
// dispatches on connection state per spec section 4.6's transition table:
// SYN handling while establishing, generic ACK processing, then payload
// processing for the states that still accept application data.
//
// Only a segment with LogicalLen() > 0 reaches payload processing and gets
// an acknowledgement back (Open Question 2: ack unconditionally even
// duplicates, so a lost ack cannot wedge the peer — but never reply to a
// pure ACK, matching spec section 4.7's "only run section 4.5 if logical
// length > 0" and the C source's `if (segment_len(seg)) process_data(...)`
// in control_loop). Replying to every pure ACK with another pure ACK would
// livelock two idle, fully-established peers acking each other forever.
func (c *Context) onSegment(net NetworkIO, app AppIO, seg Segment) {
	switch c.state {
	case StateClosed:
		return

	case StateListen:
		if !seg.Flags.Has(FlagSYN) {
			return
		}
		c.rcvNxt = Add(seg.Seq, 1)
		c.recvQ.reset(c.rcvNxt)
		c.state = StateSynReceived
		c.enqueueControl(Segment{Seq: c.sndNxt, Ack: c.rcvNxt, Flags: FlagSYN | FlagACK})
		return
	}

	if seg.Flags.Has(FlagACK) {
		c.handleAck(seg.Ack)
	}

	if c.state == StateSynSent {
		if seg.Flags.Has(FlagSYN) && seg.Flags.Has(FlagACK) && c.sndUna == c.sndNxt {
			c.rcvNxt = Add(seg.Seq, 1)
			c.recvQ.reset(c.rcvNxt)
			c.state = StateEstablished
			c.sendPureAck(net)
		}
		return
	}

	if seg.LogicalLen() == 0 {
		return
	}

	switch c.state {
	case StateEstablished, StateFinWait1, StateFinWait2:
		c.processPayload(app, seg)
	}

	c.sendPureAck(net)
}
