package stcp

import (
	"io"
	"sync"

	"github.com/nevivurn/stcp/internal"
)

// MemApp is a reference AppIO backed by two in-memory ring buffers, for
// tests and for embedding a Context directly in a process without a real
// byte-stream socket wrapper. It exposes the classic blocking Read/Write
// pair on top of the PullSend/PushRecv contract Context drives it through.
// PullSend never blocks; PushRecv blocks while the receive buffer is full.
type MemApp struct {
	mu   sync.Mutex
	cond *sync.Cond

	send internal.Ring
	recv internal.Ring

	writeClosed bool
	finSeen     bool
}

// NewMemApp allocates a MemApp with independent send/receive ring capacity.
func NewMemApp(bufSize int) *MemApp {
	a := &MemApp{
		send: internal.Ring{Buf: make([]byte, bufSize)},
		recv: internal.Ring{Buf: make([]byte, bufSize)},
	}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Write queues p for the connection to send, blocking while the send
// buffer is full. It returns io.ErrClosedPipe once CloseWrite has been called.
func (a *MemApp) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var total int
	for len(p) > 0 {
		if a.writeClosed {
			return total, io.ErrClosedPipe
		}
		free := a.send.Free()
		if free == 0 {
			a.cond.Wait()
			continue
		}
		n, err := a.send.Write(p[:min(len(p), free)])
		if err != nil {
			return total, err
		}
		p = p[n:]
		total += n
		a.cond.Broadcast()
	}
	return total, nil
}

// Read blocks until data arrives or the peer's FIN has been delivered
// (io.EOF). It does not return when the connection is torn down without a
// FIN: Unblock wakes a blocked Read, which then waits again.
func (a *MemApp) Read(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		n, err := a.recv.Read(p)
		if err == nil {
			a.cond.Broadcast()
			return n, nil
		}
		if a.finSeen {
			return 0, io.EOF
		}
		a.cond.Wait()
	}
}

// CloseWrite latches end-of-output: pending and future Write calls fail
// with io.ErrClosedPipe. It does not by itself queue a FIN — closing is
// host-driven, not buffer-drain-detected: the caller must also send an
// EventAppCloseRequested event so the event loop sets closeRequested and
// tryQueueFin can act on it once the send window allows.
func (a *MemApp) CloseWrite() {
	a.mu.Lock()
	a.writeClosed = true
	a.cond.Broadcast()
	a.mu.Unlock()
}

// PullSend implements AppIO.
func (a *MemApp) PullSend(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := a.send.Read(buf)
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	a.cond.Broadcast()
	return n, nil
}

// PushRecv implements AppIO. It blocks while the receive buffer is full.
func (a *MemApp) PushRecv(buf []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for len(buf) > 0 {
		free := a.recv.Free()
		if free == 0 {
			a.cond.Wait()
			continue
		}
		n, err := a.recv.Write(buf[:min(len(buf), free)])
		if err != nil {
			return err
		}
		buf = buf[n:]
		a.cond.Broadcast()
	}
	return nil
}

// Unblock implements AppIO.
func (a *MemApp) Unblock() {
	a.mu.Lock()
	a.cond.Broadcast()
	a.mu.Unlock()
}

// FinReceived implements AppIO.
func (a *MemApp) FinReceived() {
	a.mu.Lock()
	a.finSeen = true
	a.cond.Broadcast()
	a.mu.Unlock()
}
