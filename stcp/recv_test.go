package stcp

import "testing"

// newTestRecvCtx builds an established Context with rcvNxt pinned to a
// caller-chosen starting point, bypassing the handshake so trimToWindow and
// processPayload can be driven directly.
func newTestRecvCtx(rcvNxt Value) *Context {
	c := newContext(Config{})
	c.state = StateEstablished
	c.rcvNxt = rcvNxt
	c.recvQ.reset(rcvNxt)
	return c
}

func TestTrimToWindowDropsAlreadyDelivered(t *testing.T) {
	c := newTestRecvCtx(100)
	seg := Segment{Seq: 95, Payload: []byte("abcdefghij")} // 95..104
	if !c.trimToWindow(&seg) {
		t.Fatal("segment overlapping the front of the window should survive trimmed")
	}
	if seg.Seq != 100 {
		t.Fatalf("Seq = %d, want 100", seg.Seq)
	}
	if string(seg.Payload) != "fghij" {
		t.Fatalf("Payload = %q, want %q", seg.Payload, "fghij")
	}
}

func TestTrimToWindowDropsEntirelyBehindWindow(t *testing.T) {
	c := newTestRecvCtx(100)
	seg := Segment{Seq: 50, Payload: []byte("already acked")}
	if c.trimToWindow(&seg) {
		t.Fatal("segment entirely before rcv_nxt should not survive")
	}
}

func TestTrimToWindowDropsEntirelyBeyondWindow(t *testing.T) {
	c := newTestRecvCtx(100)
	seg := Segment{Seq: Add(100, WindowSize) + 1, Payload: []byte("x")}
	if c.trimToWindow(&seg) {
		t.Fatal("segment starting past the window end should not survive")
	}
}

func TestTrimToWindowTrimsTrailingEdgeAndDropsFin(t *testing.T) {
	c := newTestRecvCtx(100)
	winEnd := Add(100, WindowSize)
	// Straddles winEnd exactly: 3 bytes in-window, 2 out, plus a trailing FIN.
	seg := Segment{Seq: winEnd - 3, Flags: FlagFIN, Payload: []byte("abcde")}
	if !c.trimToWindow(&seg) {
		t.Fatal("segment straddling the trailing window edge should survive trimmed")
	}
	if seg.DataLen() != 3 {
		t.Fatalf("DataLen() = %d, want 3 (trimmed to window end)", seg.DataLen())
	}
	if seg.Flags.Has(FlagFIN) {
		t.Fatal("a FIN landing outside the window must be dropped, not delivered early")
	}
}

func TestTrimToWindowExactEdgeKeepsFin(t *testing.T) {
	c := newTestRecvCtx(100)
	winEnd := Add(100, WindowSize)
	seg := Segment{Seq: winEnd - 1, Flags: FlagFIN} // FIN's one sequence number lands exactly at winEnd-1
	if !c.trimToWindow(&seg) {
		t.Fatal("a FIN whose sequence number exactly fits the window must survive")
	}
	if !seg.Flags.Has(FlagFIN) {
		t.Fatal("FIN landing exactly at the window edge should be preserved")
	}
}

func TestProcessPayloadOutsideWindowTracesReject(t *testing.T) {
	c := newTestRecvCtx(100)
	var got *TraceEvent
	c.trace = func(ev TraceEvent) { got = &ev }

	app := NewMemApp(64)
	c.processPayload(app, Segment{Seq: 10, Payload: []byte("stale")})

	if got == nil || got.Reject == nil {
		t.Fatal("expected a reject trace for a segment entirely behind the window")
	}
}

func TestProcessPayloadOutOfOrderReassembles(t *testing.T) {
	c := newTestRecvCtx(100)
	app := NewMemApp(64)

	// Second half arrives first: queued but not delivered (gap at rcv_nxt).
	c.processPayload(app, Segment{Seq: 105, Payload: []byte("world")})
	if c.rcvNxt != 100 {
		t.Fatalf("rcv_nxt advanced on an out-of-order segment: got %d, want 100", c.rcvNxt)
	}

	// First half arrives, completing the run: both segments drain in order.
	c.processPayload(app, Segment{Seq: 100, Payload: []byte("hello")})
	if c.rcvNxt != 110 {
		t.Fatalf("rcv_nxt = %d, want 110 after draining both segments", c.rcvNxt)
	}

	buf := make([]byte, 10)
	n, err := app.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "helloworld" {
		t.Fatalf("delivered %q, want %q in order", buf[:n], "helloworld")
	}
}

func TestHandleAckRejectsBeyondSndNxt(t *testing.T) {
	c := newContext(Config{})
	c.state = StateEstablished
	c.sndUna, c.sndNxt = 100, 110

	var got *TraceEvent
	c.trace = func(ev TraceEvent) { got = &ev }
	c.handleAck(999)

	if c.sndUna != 100 {
		t.Fatalf("sndUna mutated by an ack beyond sndNxt: got %d, want 100", c.sndUna)
	}
	if got == nil || got.Reject == nil {
		t.Fatal("expected a reject trace for an ack beyond snd_nxt")
	}
}

func TestHandleAckIgnoresStaleDuplicateSilently(t *testing.T) {
	c := newContext(Config{})
	c.state = StateEstablished
	c.sndUna, c.sndNxt = 100, 110

	var traced bool
	c.trace = func(ev TraceEvent) { traced = true }
	c.handleAck(100) // ack == snd_una: no new data acknowledged

	if c.sndUna != 100 {
		t.Fatalf("sndUna = %d, want unchanged 100", c.sndUna)
	}
	if traced {
		t.Fatal("a routine duplicate ack should not fire a reject trace")
	}
}

func TestHandleAckRetiresSendQueueAndAdvances(t *testing.T) {
	c := newContext(Config{})
	c.state = StateEstablished
	c.sndUna, c.sndNxt = 100, 115
	c.sendQ.reset(100)
	c.sendQ.Insert(Segment{Seq: 100, Payload: make([]byte, 10)}) // 100..110
	c.sendQ.Insert(Segment{Seq: 110, Payload: make([]byte, 5)})  // 110..115

	c.handleAck(110)
	if c.sndUna != 110 {
		t.Fatalf("sndUna = %d, want 110", c.sndUna)
	}
	if c.sendQ.Len() != 1 {
		t.Fatalf("sendQ.Len() = %d, want 1 (one segment fully acked)", c.sendQ.Len())
	}
}

func TestAdmissionWindowShrinksAsInFlightGrows(t *testing.T) {
	c := newContext(Config{})
	c.sndUna, c.sndNxt = 0, 0
	if got := c.admissionWindow(); got != c.cfg.mss() {
		t.Fatalf("admissionWindow() with nothing in flight = %d, want MSS %d", got, c.cfg.mss())
	}

	c.sndNxt = Add(c.sndUna, WindowSize-10)
	if got := c.admissionWindow(); got != 10 {
		t.Fatalf("admissionWindow() near full window = %d, want 10", got)
	}

	c.sndNxt = Add(c.sndUna, WindowSize)
	if got := c.admissionWindow(); got != 0 {
		t.Fatalf("admissionWindow() with a full window = %d, want 0", got)
	}
}

func TestSequenceWraparoundAcrossZero(t *testing.T) {
	c := newContext(Config{})
	c.state = StateEstablished
	start := Value(0xFFFFFFFE)
	c.sndUna, c.sndNxt = start, start
	c.rcvNxt = start
	c.recvQ.reset(start)
	c.sendQ.reset(start)

	app := NewMemApp(64)
	// A 4-byte segment straddling the uint32 wraparound point.
	c.processPayload(app, Segment{Seq: start, Payload: []byte("wrap")})
	want := Add(start, 4)
	if c.rcvNxt != want {
		t.Fatalf("rcv_nxt = %d, want %d (wrapped past 0)", c.rcvNxt, want)
	}
	if !LessThan(0xFFFFFFFD, c.rcvNxt) {
		t.Fatal("rcv_nxt should have wrapped ahead of the pre-wrap sequence space")
	}

	c.sendQ.Insert(Segment{Seq: start, Payload: []byte("wrap")})
	c.sndNxt = want
	c.handleAck(want)
	if c.sndUna != want {
		t.Fatalf("sndUna = %d, want %d after ack of a wrapped segment", c.sndUna, want)
	}
}
