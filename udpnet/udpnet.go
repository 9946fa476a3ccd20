// Package udpnet implements stcp.NetworkIO over a real UDP socket, the
// concrete realization of the network-layer API the core stcp package
// deliberately leaves abstract.
package udpnet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sys/unix"

	"github.com/nevivurn/stcp/internal"
)

// bufSize bounds socket buffer tuning; it only needs to comfortably hold a
// handful of in-flight MSS-sized datagrams.
const bufSize = 1 << 18

// Conn is a UDP-backed stcp.NetworkIO bound to a single peer address: STCP
// has no concept of a listening multiplexed socket, so each connection owns
// its own UDP socket "connected" to its peer via net.DialUDP.
type Conn struct {
	udp *net.UDPConn
	log internal.Logger

	// fingerprint is a short, stable identifier for this 4-tuple, used for
	// log correlation instead of printing raw addresses everywhere.
	fingerprint string
}

// Dial opens a UDP socket toward raddr, retrying transient bind/connect
// failures with exponential backoff (the one place a reconnect loop makes
// sense at this layer; STCP's own FSM handles peer unresponsiveness).
func Dial(laddr, raddr *net.UDPAddr, log *internal.Logger) (*Conn, error) {
	backoff := internal.NewBackoff(internal.BackoffTCPConn)
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		udp, err := net.DialUDP("udp", laddr, raddr)
		if err == nil {
			c, err := newConn(udp, log)
			if err != nil {
				udp.Close()
				return nil, err
			}
			return c, nil
		}
		lastErr = err
		backoff.Miss()
	}
	return nil, fmt.Errorf("udpnet: dial %s: %w", raddr, lastErr)
}

// Listen opens a UDP socket bound to laddr without connecting it to a
// specific peer; the first datagram received fixes the peer, matching
// STCP's passive-open path (one Conn == one connection, so Listen is only
// useful for accepting a single pending connection at a time).
func Listen(laddr *net.UDPAddr, log *internal.Logger) (*Conn, error) {
	udp, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("udpnet: listen %s: %w", laddr, err)
	}
	return newConn(udp, log)
}

func newConn(udp *net.UDPConn, log *internal.Logger) (*Conn, error) {
	if err := tuneBuffers(udp); err != nil {
		return nil, err
	}
	c := &Conn{udp: udp}
	if log != nil {
		c.log = *log
	}
	c.fingerprint = fingerprint(udp.LocalAddr(), udp.RemoteAddr())
	return c, nil
}

// tuneBuffers sets SO_RCVBUF/SO_SNDBUF directly via the socket syscall
// layer: net.UDPConn only exposes SetReadBuffer/SetWriteBuffer, which
// silently halve the requested size on Linux, so tests asserting a floor
// need the raw setsockopt path instead.
func tuneBuffers(udp *net.UDPConn) error {
	raw, err := udp.SyscallConn()
	if err != nil {
		return fmt.Errorf("udpnet: syscall conn: %w", err)
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, bufSize); e != nil {
			sockErr = e
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, bufSize)
	})
	if err != nil {
		return fmt.Errorf("udpnet: control: %w", err)
	}
	return sockErr
}

// fingerprint derives a short, non-reversible label for a 4-tuple, for log
// and metric correlation. It is unrelated to sequence-number generation:
// spec fixes the initial sequence number at a constant for every
// connection, so no component may derive it from a hash.
func fingerprint(local, remote net.Addr) string {
	sum := blake2b.Sum256([]byte(local.String() + "|" + remote.String()))
	return hex.EncodeToString(sum[:6])
}

// Fingerprint returns this connection's log-correlation id.
func (c *Conn) Fingerprint() string { return c.fingerprint }

// RecvFrom implements stcp.NetworkIO.
func (c *Conn) RecvFrom(buf []byte) (int, error) {
	n, err := c.udp.Read(buf)
	if err != nil {
		c.log.Warn("udpnet:recv-failed", slog.String("fingerprint", c.fingerprint), slog.String("err", err.Error()))
		return 0, err
	}
	return n, nil
}

// SendTo implements stcp.NetworkIO. It writes header and payload as a
// single datagram: a header-only segment is written directly, and a
// non-empty payload is copied together with the header into one freshly
// allocated buffer.
func (c *Conn) SendTo(header, payload []byte) error {
	if len(payload) == 0 {
		_, err := c.udp.Write(header)
		return err
	}
	buf := make([]byte, len(header)+len(payload))
	n := copy(buf, header)
	copy(buf[n:], payload)
	_, err := c.udp.Write(buf)
	if err != nil {
		c.log.Warn("udpnet:send-failed", slog.String("fingerprint", c.fingerprint), slog.String("err", err.Error()))
	}
	return err
}

// Close releases the underlying socket.
func (c *Conn) Close() error { return c.udp.Close() }

var errNotUDPAddr = errors.New("udpnet: address is not a *net.UDPAddr")

// ResolveUDPAddr is a small convenience wrapper used by cmd/stcp-echo to
// turn a host:port flag into the *net.UDPAddr Dial/Listen expect.
func ResolveUDPAddr(hostport string) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return nil, err
	}
	if addr == nil {
		return nil, errNotUDPAddr
	}
	return addr, nil
}
