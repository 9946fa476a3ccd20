package stcp

import "errors"

// Connection-fatal error taxonomy, per spec section 7. Besides these
// sentinels, a ConnError can wrap an error returned by AppIO, and Run
// returns ctx.Err() when its context is cancelled; everything else
// (malformed or unacceptable segments, stale ACKs, oversize segments) is
// dropped silently inside the event loop.
var (
	// ErrConnRefused is surfaced when the active side exhausts
	// MaxRetransmits during the handshake.
	ErrConnRefused = errors.New("stcp: connection refused")
	// ErrConnAborted is surfaced when the passive side exhausts
	// MaxRetransmits during the handshake.
	ErrConnAborted = errors.New("stcp: connection aborted")
	// ErrBrokenPipe is surfaced when either side exhausts MaxRetransmits
	// after the handshake has completed.
	ErrBrokenPipe = errors.New("stcp: broken pipe")
	// ErrResourceExhausted names the resource-exhaustion case of the error
	// taxonomy. No code path in this package returns it: allocation failure
	// in Go is a runtime panic, not an error value.
	ErrResourceExhausted = errors.New("stcp: resource exhausted")
)

// ConnError wraps the error that ended the connection (one of the sentinel
// errors above, or an AppIO error) together with the state the connection
// was in, for diagnostics.
type ConnError struct {
	Err   error
	State State
}

func (e *ConnError) Error() string { return e.Err.Error() + " (in " + e.State.String() + ")" }

func (e *ConnError) Unwrap() error { return e.Err }

// RejectError marks a segment or ACK that admission logic silently drops.
// It is never surfaced through Context.Err; it exists so trace hooks can
// report *why* a segment was dropped without the event loop branching on
// string messages.
type RejectError struct{ reason string }

func (e *RejectError) Error() string { return "stcp: reject: " + e.reason }

func newReject(reason string) *RejectError { return &RejectError{reason: reason} }
