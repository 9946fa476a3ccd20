package stcp

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

// testConn wires one Context to its Run goroutine, events channel and
// MemApp, for use on either side of a scripted connection.
type testConn struct {
	ctx    *Context
	app    *MemApp
	events chan Event
	done   chan struct{}
	result chan error
}

func startConn(t *testing.T, c *Context, net *fakeNet) *testConn {
	t.Helper()
	tc := &testConn{
		ctx:    c,
		app:    NewMemApp(4096),
		events: make(chan Event, 16),
		done:   make(chan struct{}),
		result: make(chan error, 1),
	}
	go pumpNetwork(net, tc.events, tc.done)
	go func() {
		tc.result <- c.Run(context.Background(), net, tc.app, tc.events)
	}()
	t.Cleanup(func() { close(tc.done) })
	return tc
}

func newFakePair() (clientNet, serverNet *fakeNet) {
	clientToServer := newFakeLink()
	serverToClient := newFakeLink()
	clientNet = &fakeNet{out: clientToServer, in: serverToClient}
	serverNet = &fakeNet{out: serverToClient, in: clientToServer}
	return clientNet, serverNet
}

func waitForState(t *testing.T, c *Context, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, still in %v", want, c.State())
}

func TestHandshakeEstablishesBothSides(t *testing.T) {
	clientNet, serverNet := newFakePair()
	client := startConn(t, NewActive(Config{}), clientNet)
	server := startConn(t, NewListen(Config{}), serverNet)

	waitForState(t, client.ctx, StateEstablished, time.Second)
	waitForState(t, server.ctx, StateEstablished, time.Second)
}

func TestDataTransferInOrder(t *testing.T) {
	clientNet, serverNet := newFakePair()
	client := startConn(t, NewActive(Config{}), clientNet)
	server := startConn(t, NewListen(Config{}), serverNet)

	waitForState(t, client.ctx, StateEstablished, time.Second)
	waitForState(t, server.ctx, StateEstablished, time.Second)

	msg := []byte("hello, stcp")
	go func() {
		client.app.Write(msg)
		client.events <- Event{Kind: EventAppData}
	}()

	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(server.app, buf); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if string(buf) != string(msg) {
		t.Fatalf("got %q, want %q", buf, msg)
	}
}

func TestRetransmissionRecoversFromDrop(t *testing.T) {
	clientNet, serverNet := newFakePair()
	client := startConn(t, NewActive(Config{}), clientNet)
	server := startConn(t, NewListen(Config{}), serverNet)

	waitForState(t, client.ctx, StateEstablished, time.Second)
	waitForState(t, server.ctx, StateEstablished, time.Second)

	// Drop the next outbound datagram from the client: the following data
	// segment is lost in flight and must be recovered by RTO retransmit.
	clientNet.out.dropNext(1)

	msg := []byte("resent after loss")
	go func() {
		client.app.Write(msg)
		client.events <- Event{Kind: EventAppData}
	}()

	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(server.app, buf); err != nil {
		t.Fatalf("server read after retransmit: %v", err)
	}
	if string(buf) != string(msg) {
		t.Fatalf("got %q, want %q", buf, msg)
	}
}

func TestGracefulCloseBothDirections(t *testing.T) {
	clientNet, serverNet := newFakePair()
	client := startConn(t, NewActive(Config{}), clientNet)
	server := startConn(t, NewListen(Config{}), serverNet)

	waitForState(t, client.ctx, StateEstablished, time.Second)
	waitForState(t, server.ctx, StateEstablished, time.Second)

	client.app.CloseWrite()
	client.events <- Event{Kind: EventAppCloseRequested}

	if _, err := server.app.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("server read after peer fin: err = %v, want io.EOF", err)
	}

	server.app.CloseWrite()
	server.events <- Event{Kind: EventAppCloseRequested}

	select {
	case err := <-client.result:
		if err != nil {
			t.Fatalf("client Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client to reach CLOSED")
	}
	select {
	case err := <-server.result:
		if err != nil {
			t.Fatalf("server Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to reach CLOSED")
	}
}

func TestConnectionRefusedWhenPeerNeverResponds(t *testing.T) {
	link := newFakeLink()
	blackhole := newFakeLink() // never forwarded to anything
	net := &fakeNet{out: link, in: blackhole}

	client := NewActive(Config{})
	events := make(chan Event)
	done := make(chan struct{})
	defer close(done)

	errc := make(chan error, 1)
	go func() { errc <- client.Run(context.Background(), net, NewMemApp(64), events) }()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrConnRefused) {
			t.Fatalf("got %v, want ErrConnRefused", err)
		}
	case <-time.After(45 * time.Second):
		t.Fatal("timed out waiting for handshake to give up")
	}
}
