package stcp

import "sync"

// fakeLink is a single-direction, loss- and duplicate-capable datagram
// channel used to script the end-to-end scenarios of spec section 8. It
// delivers datagrams in the order they were sent. Both
// ends of a connection share a pair of fakeLinks (one per direction).
type fakeLink struct {
	mu      sync.Mutex
	dropN   int // next N sends are silently dropped
	dupN    int // next N sends are additionally duplicated
	datagrams chan []byte
}

func newFakeLink() *fakeLink {
	return &fakeLink{datagrams: make(chan []byte, 64)}
}

func (l *fakeLink) send(header, payload []byte) error {
	buf := make([]byte, len(header)+len(payload))
	copy(buf, header)
	copy(buf[len(header):], payload)

	l.mu.Lock()
	drop := l.dropN > 0
	if drop {
		l.dropN--
	}
	dup := l.dupN > 0
	if dup {
		l.dupN--
	}
	l.mu.Unlock()

	if drop {
		return nil
	}
	l.datagrams <- buf
	if dup {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		l.datagrams <- cp
	}
	return nil
}

func (l *fakeLink) dropNext(n int) {
	l.mu.Lock()
	l.dropN = n
	l.mu.Unlock()
}

func (l *fakeLink) duplicateNext(n int) {
	l.mu.Lock()
	l.dupN = n
	l.mu.Unlock()
}

// fakeNet implements NetworkIO by sending on out and receiving on in.
type fakeNet struct {
	out *fakeLink
	in  *fakeLink
}

func (n *fakeNet) SendTo(header, payload []byte) error { return n.out.send(header, payload) }

func (n *fakeNet) RecvFrom(buf []byte) (int, error) {
	dg := <-n.in.datagrams
	return copy(buf, dg), nil
}

// pumpNetwork forwards datagrams arriving on a fakeNet into the Run event
// channel, simulating the reader goroutine a real driver would run.
func pumpNetwork(net *fakeNet, events chan<- Event, done <-chan struct{}) {
	for {
		buf := make([]byte, 2048)
		select {
		case dg := <-net.in.datagrams:
			n := copy(buf, dg)
			select {
			case events <- Event{Kind: EventNetworkData, Data: buf[:n]}:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}
