package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/daniellavrushin/pqc-tracer/config"
	"github.com/daniellavrushin/pqc-tracer/log"
	"github.com/daniellavrushin/pqc-tracer/stderrcap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	begins, ends int
	beginErr     error
	text         stderrcap.TraceText
}

func (f *fakeCapture) Begin() error {
	if f.beginErr != nil {
		return f.beginErr
	}
	f.begins++
	return nil
}

func (f *fakeCapture) End() stderrcap.TraceText {
	f.ends++
	return f.text
}

type staticResolver map[string][]net.IP

func (r staticResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := r[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	out := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: ip})
	}
	return out, nil
}

func newTestProber(t *testing.T, c Capturer, mutate func(*config.Config), opts ...Option) *Prober {
	t.Helper()
	cfg := config.NewConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(&cfg, append([]Option{WithCapture(c, nil)}, opts...)...)
	require.NoError(t, err)
	return p
}

func TestStateNames(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "idle"},
		{StateArmed, "armed"},
		{StateHandshakeInFlight, "handshake_in_flight"},
		{StateCaptured, "captured"},
		{StateResolved, "resolved"},
		{StateErrored, "errored"},
		{State(42), "State(42)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.s.String())
	}

	assert.True(t, StateResolved.Terminal())
	assert.True(t, StateErrored.Terminal())
	assert.False(t, StateCaptured.Terminal())

	var s State
	require.NoError(t, s.UnmarshalText([]byte("captured")))
	assert.Equal(t, StateCaptured, s)
	assert.Error(t, s.UnmarshalText([]byte("exploded")))
}

func TestPreview(t *testing.T) {
	tests := []struct {
		body string
		n    int
		want string
	}{
		{"<!doctype html><html>", 10, "<!doctype "},
		{"short", 10, "short"},
		{"", 10, ""},
		{"abc", 0, ""},
		{"привет мир, hello", 6, "привет"},
	}
	for _, tt := range tests {
		r := &Result{Response: Response{Body: tt.body}}
		assert.Equal(t, tt.want, r.Preview(tt.n), "body %q", tt.body)
	}
}

func TestCipherInfo(t *testing.T) {
	info := cipherInfo(tls.TLS_AES_256_GCM_SHA384)
	assert.Equal(t, "TLS_AES_256_GCM_SHA384", info.StandardName)
	assert.Equal(t, "0x1302", info.Name)

	unknown := cipherInfo(0xABCD)
	assert.Empty(t, unknown.StandardName)
	assert.Equal(t, "0xABCD", unknown.Name)
}

func TestTargetIDNA(t *testing.T) {
	p := newTestProber(t, &fakeCapture{}, nil)

	ex := newExchange(p, Request{URL: "https://bücher.example:8443/path?q=1"})
	u, err := ex.target()
	require.NoError(t, err)
	assert.Equal(t, "xn--bcher-kva.example:8443", u.Host)
	assert.Equal(t, "/path", u.Path)

	ex = newExchange(p, Request{URL: "https://[::1]:443/"})
	u, err = ex.target()
	require.NoError(t, err)
	assert.Equal(t, "[::1]:443", u.Host)

	p = newTestProber(t, &fakeCapture{}, func(c *config.Config) { c.Probe.IDNA = false })
	ex = newExchange(p, Request{URL: "https://bücher.example/"})
	u, err = ex.target()
	require.NoError(t, err)
	assert.Equal(t, "bücher.example", u.Hostname())
}

func TestDialDenyList(t *testing.T) {
	resolver := staticResolver{
		"internal.example": {net.ParseIP("10.1.2.3")},
		"mixed.example":    {net.ParseIP("10.9.9.9"), net.ParseIP("192.0.2.1")},
	}
	capture := &fakeCapture{}
	p := newTestProber(t, capture, func(c *config.Config) {
		c.Probe.DenyCIDRs = []string{"10.0.0.0/8", "2001:db8::/32"}
	}, WithResolver(resolver))

	t.Run("all addresses denied", func(t *testing.T) {
		ex := newExchange(p, Request{URL: "https://internal.example/"})
		_, err := ex.dial(context.Background(), "tcp", "internal.example:443")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDeniedDestination))
		assert.Zero(t, capture.begins, "a denied dial must not arm the capture")
		assert.Equal(t, StateIdle, ex.state)
	})

	t.Run("literal ip denied", func(t *testing.T) {
		ex := newExchange(p, Request{URL: "https://[2001:db8::1]/"})
		_, err := ex.dial(context.Background(), "tcp", "[2001:db8::1]:443")
		assert.ErrorIs(t, err, ErrDeniedDestination)
	})

	t.Run("resolver failure", func(t *testing.T) {
		ex := newExchange(p, Request{URL: "https://nowhere.example/"})
		_, err := ex.dial(context.Background(), "tcp", "nowhere.example:443")
		var dnsErr *net.DNSError
		assert.ErrorAs(t, err, &dnsErr)
	})

	assert.True(t, p.denied(net.ParseIP("10.9.9.9")))
	assert.False(t, p.denied(net.ParseIP("192.0.2.1")))
}

func TestArmOnlyFirstConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	capture := &fakeCapture{text: "ServerHello\n  NamedGroup: X25519 (29)\n"}
	p := newTestProber(t, capture, nil)
	ex := newExchange(p, Request{URL: "https://" + ln.Addr().String() + "/"})

	c1, err := ex.dial(context.Background(), "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c1.Close()
	assert.Equal(t, StateHandshakeInFlight, ex.state)
	assert.Equal(t, 1, capture.begins)

	c2, err := ex.dial(context.Background(), "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c2.Close()
	assert.Equal(t, 1, capture.begins, "second connection must not be armed")

	ex.endCapture()
	ex.endCapture()
	assert.Equal(t, 1, capture.ends, "capture ends exactly once")
	assert.Equal(t, StateCaptured, ex.state)
	assert.Equal(t, capture.text, ex.trace)

	c3, err := ex.dial(context.Background(), "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c3.Close()
	assert.Equal(t, 1, capture.begins, "late connection after the exchange must not be armed")
}

func TestArmBeginFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	t.Run("unsupported platform", func(t *testing.T) {
		capture := &fakeCapture{beginErr: stderrcap.ErrUnsupported}
		p := newTestProber(t, capture, nil)
		ex := newExchange(p, Request{URL: "https://" + ln.Addr().String() + "/"})

		c, err := ex.dial(context.Background(), "tcp", ln.Addr().String())
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, "unsupported", ex.capability.String())
		assert.Equal(t, StateHandshakeInFlight, ex.state)

		ex.endCapture()
		assert.Zero(t, capture.ends)
	})

	t.Run("capture already active", func(t *testing.T) {
		var out bytes.Buffer
		log.Init(&out, log.LevelError, true)
		t.Cleanup(func() { log.Init(nil, log.LevelInfo, true) })

		capture := &fakeCapture{beginErr: stderrcap.ErrCaptureActive}
		p := newTestProber(t, capture, nil)
		ex := newExchange(p, Request{URL: "https://" + ln.Addr().String() + "/"})

		c, err := ex.dial(context.Background(), "tcp", ln.Addr().String())
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, "available", ex.capability.String())
		assert.Equal(t, StateHandshakeInFlight, ex.state)
		assert.Contains(t, out.String(), "[ERROR] Handshake trace for")
		assert.Contains(t, out.String(), "another capture owns fd 2")

		ex.endCapture()
		assert.Zero(t, capture.ends)
	})
}

func TestReasonPhrase(t *testing.T) {
	tests := []struct {
		status string
		code   int
		want   string
	}{
		{"200 OK", 200, "OK"},
		{"200 Everything Fine", 200, "Everything Fine"},
		{"404 ", 404, ""},
		{"weird", 500, "weird"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, reasonPhrase(&http.Response{Status: tc.status, StatusCode: tc.code}), tc.status)
	}
}
