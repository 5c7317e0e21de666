// Package wiretrace wraps a raw transport connection and, once enabled,
// writes a human-readable trace of the TLS handshake flowing over it in the
// layout OpenSSL's SSL_trace uses. In production the trace goes to fd 2,
// where it is picked up by a stderrcap capture cycle.
package wiretrace

import (
	"io"
	"net"
	"sync"
)

// Capability is the answer to "can this transport handle trace its
// handshake".
type Capability int

const (
	// Unsupported: the handle cannot produce a trace at all.
	Unsupported Capability = iota
	// Available: tracing is possible but not switched on (or could not be
	// switched on because nothing is capturing the output).
	Available
	// Enabled: the trace is being written.
	Enabled
)

func (c Capability) String() string {
	switch c {
	case Available:
		return "available"
	case Enabled:
		return "enabled"
	default:
		return "unsupported"
	}
}

// Traceable is implemented by transport handles that can emit a handshake
// trace on demand.
type Traceable interface {
	TraceCapability() Capability
	EnableTrace(w io.Writer) Capability
}

// QueryCapability inspects an arbitrary connection.
func QueryCapability(c net.Conn) Capability {
	if t, ok := c.(Traceable); ok {
		return t.TraceCapability()
	}
	return Unsupported
}

// maxRecordLen is the largest TLSCiphertext length allowed (2^14 + 2048).
const maxRecordLen = 16384 + 2048

// maxHandshakeBuf bounds reassembly of handshake messages split over records.
const maxHandshakeBuf = 256 * 1024

// Conn is a net.Conn that observes the bytes passing through it. Bytes on
// the wire are never modified and tracing never fails a Read or Write.
type Conn struct {
	net.Conn

	mu   sync.Mutex
	w    io.Writer
	sent direction
	recv direction
}

var _ net.Conn = (*Conn)(nil)
var _ Traceable = (*Conn)(nil)

// Wrap returns c wrapped for tracing. Tracing starts disabled.
func Wrap(c net.Conn) *Conn {
	s := &session{}
	return &Conn{
		Conn: c,
		sent: direction{label: "Sent", sess: s},
		recv: direction{label: "Received", sess: s},
	}
}

func (c *Conn) TraceCapability() Capability {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w != nil {
		return Enabled
	}
	return Available
}

// EnableTrace starts writing the trace to w. It must be called before the
// handshake starts for the hellos to be included.
func (c *Conn) EnableTrace(w io.Writer) Capability {
	if w == nil {
		return c.TraceCapability()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w = w
	return Enabled
}

// DisableTrace stops tracing; buffered partial records are dropped.
func (c *Conn) DisableTrace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w = nil
	c.sent.reset()
	c.recv.reset()
	c.sent.sess.tls13 = false
}

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.observe(&c.recv, p[:n])
	}
	return n, err
}

func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.observe(&c.sent, p[:n])
	}
	return n, err
}

func (c *Conn) observe(d *direction, p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil || d.done {
		return
	}
	for _, rec := range d.feed(p) {
		// one Write per record keeps concurrent directions from interleaving
		_, _ = c.w.Write(rec)
	}
}
