package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/daniellavrushin/pqc-tracer/groups"
	"github.com/daniellavrushin/pqc-tracer/log"
	"github.com/daniellavrushin/pqc-tracer/stderrcap"
	"github.com/daniellavrushin/pqc-tracer/tlstrace"
	"github.com/daniellavrushin/pqc-tracer/wiretrace"
	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/idna"
)

// exchange is the state of one Execute call.
type exchange struct {
	p   *Prober
	req Request
	id  string

	// mu guards what the dial hook touches; the transport may dial from
	// its own goroutine, even after the request was abandoned
	mu         sync.Mutex
	finished   bool
	state      State
	dials      int
	conn       *wiretrace.Conn
	capturing  bool
	capability wiretrace.Capability
	trace      stderrcap.TraceText
}

func newExchange(p *Prober, req Request) *exchange {
	return &exchange{
		p:          p,
		req:        req,
		id:         uuid.NewString(),
		state:      StateIdle,
		capability: wiretrace.Unsupported,
	}
}

func (e *exchange) transition(s State) {
	log.Tracef("Exchange %s: %s -> %s", e.id[:8], e.state, s)
	e.state = s
}

func (e *exchange) run(ctx context.Context) *Result {
	res := &Result{ID: e.id, URL: e.req.URL}

	// the capture ends exactly once, whatever happens below
	defer e.endCapture()

	resp, err := e.roundTrip(ctx, res)
	e.endCapture()
	if err != nil {
		return e.fail(res, err)
	}

	e.resolve(res, resp)
	return res
}

func (e *exchange) fail(res *Result, err error) *Result {
	e.transition(StateErrored)
	log.Errorf("Exchange with %s failed: %v", e.req.URL, err)
	res.State = StateErrored
	res.TLS = tlstrace.Errored
	res.TraceSource = tlstrace.SourceNone
	res.Capability = e.capability.String()
	res.Response = Response{Body: err.Error()}
	return res
}

// roundTrip sends the request and reads the bounded body. It returns the
// connection state of the traced handshake.
func (e *exchange) roundTrip(ctx context.Context, res *Result) (*tls.ConnectionState, error) {
	u, err := e.target()
	if err != nil {
		return nil, err
	}
	res.URL = u.String()

	if e.p.cfg.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.p.cfg.TimeoutSec)*time.Second)
		defer cancel()
	}

	method := e.req.Method
	if method == "" {
		method = e.p.cfg.Method
	}
	var body io.Reader
	if e.req.Body != "" {
		body = strings.NewReader(e.req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), u.String(), body)
	if err != nil {
		return nil, err
	}
	if e.p.cfg.UserAgent != "" {
		hreq.Header.Set("User-Agent", e.p.cfg.UserAgent)
	}
	for k, v := range e.req.Headers {
		hreq.Header.Set(k, v)
	}

	rt, closeIdle := e.transport(u.Hostname())
	defer closeIdle()

	client := &http.Client{
		Transport: rt,
		// one request, one handshake
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := e.p.cfg.MaxBodyBytes
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	truncated := int64(len(data)) > limit
	if truncated {
		data = data[:limit]
	}

	res.Response = Response{
		Status:     resp.StatusCode,
		StatusText: reasonPhrase(resp),
		Proto:      resp.Proto,
		Headers:    flattenHeaders(resp.Header),
		Body:       string(data),
		Truncated:  truncated,
	}
	return resp.TLS, nil
}

// reasonPhrase returns the server's own reason phrase. HTTP/2 has none, so
// net/http fills in the standard text there.
func reasonPhrase(resp *http.Response) string {
	if rest, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)); ok {
		return strings.TrimSpace(rest)
	}
	return resp.Status
}

// target parses the request URL and converts an internationalized host to
// its ASCII form, which is what goes into SNI.
func (e *exchange) target() (*url.URL, error) {
	u, err := url.Parse(e.req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", e.req.URL, err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("url %q must use https", e.req.URL)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("url %q has no host", e.req.URL)
	}
	if e.p.cfg.IDNA && net.ParseIP(host) == nil {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return nil, fmt.Errorf("invalid host %q: %w", host, err)
		}
		if ascii != host {
			log.Debugf("Host %s converted to %s", host, ascii)
			if port := u.Port(); port != "" {
				u.Host = net.JoinHostPort(ascii, port)
			} else {
				u.Host = ascii
			}
		}
	}
	return u, nil
}

func (e *exchange) transport(serverName string) (http.RoundTripper, func()) {
	tlsConf := e.p.tlsConfig(serverName)

	if e.p.cfg.HTTP2 {
		t := &http2.Transport{
			TLSClientConfig: tlsConf,
			DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
				raw, err := e.dial(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				conn := tls.Client(raw, cfg)
				if err := conn.HandshakeContext(ctx); err != nil {
					raw.Close()
					return nil, err
				}
				return conn, nil
			},
		}
		return t, t.CloseIdleConnections
	}

	t := &http.Transport{
		DialContext:         e.dial,
		TLSClientConfig:     tlsConf,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableKeepAlives:   true,
	}
	return t, t.CloseIdleConnections
}

// dial resolves addr, drops denied addresses and wraps the connection for
// tracing. Only the first connection of the exchange is armed.
func (e *exchange) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		addrs, err := e.p.resolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}

	var allowed []net.IP
	for _, ip := range ips {
		if e.p.denied(ip) {
			log.Warnf("Refusing to connect to %s (%s): address is in the deny list", host, ip)
			continue
		}
		allowed = append(allowed, ip)
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDeniedDestination, host)
	}

	var raw net.Conn
	var lastErr error
	for _, ip := range allowed {
		raw, lastErr = e.p.dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		if lastErr == nil {
			break
		}
		log.Debugf("Dial %s via %s failed: %v", host, ip, lastErr)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	wc := wiretrace.Wrap(raw)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.dials++
	switch {
	case e.finished:
		log.Debugf("Exchange %s already finished, late connection not traced", e.id[:8])
	case e.dials == 1:
		e.arm(wc)
	default:
		log.Debugf("Exchange %s opened connection #%d, not traced", e.id[:8], e.dials)
	}
	return wc, nil
}

// arm begins the capture and switches the connection's trace on. A failed
// Begin leaves tracing off and the exchange proceeds without a trace.
func (e *exchange) arm(wc *wiretrace.Conn) {
	e.capability = wc.TraceCapability()

	if e.capability == wiretrace.Unsupported || !e.p.trace {
		e.transition(StateHandshakeInFlight)
		return
	}

	if err := e.p.capture.Begin(); err != nil {
		switch {
		case errors.Is(err, stderrcap.ErrUnsupported):
			e.capability = wiretrace.Unsupported
		case errors.Is(err, stderrcap.ErrCaptureActive):
			log.Errorf("Handshake trace for %s not started, another capture owns fd 2: %v", e.req.URL, err)
		default:
			log.Warnf("Handshake trace unavailable for %s: %v", e.req.URL, err)
		}
		e.transition(StateHandshakeInFlight)
		return
	}
	e.capturing = true
	e.conn = wc
	e.transition(StateArmed)

	e.capability = wc.EnableTrace(e.p.traceOut)
	e.transition(StateHandshakeInFlight)
}

func (e *exchange) endCapture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = true

	if !e.capturing {
		if e.state == StateHandshakeInFlight {
			e.transition(StateCaptured)
		}
		return
	}
	e.capturing = false
	// nothing may reach the descriptor once it is restored
	e.conn.DisableTrace()
	e.trace = e.p.capture.End()
	e.transition(StateCaptured)
	log.Debugf("Exchange %s captured %d bytes of trace", e.id[:8], len(e.trace))
}

// resolve derives the final group and cipher from the connection state and
// the captured trace.
func (e *exchange) resolve(res *Result, state *tls.ConnectionState) {
	var (
		keyInfo *tlstrace.EphemeralKeyInfo
		cipher  *tlstrace.CipherInfo
	)
	if state != nil {
		if state.CurveID != 0 && !e.p.cfg.IgnoreAPIGroup {
			keyInfo = &tlstrace.EphemeralKeyInfo{Name: groups.Name(uint16(state.CurveID))}
		}
		cipher = cipherInfo(state.CipherSuite)
		res.TLSVersion = tls.VersionName(state.Version)
	}

	tt, src := tlstrace.Resolve(keyInfo, cipher, e.trace)
	e.transition(StateResolved)

	res.TLS = tt
	res.TraceSource = src
	res.State = StateResolved
	res.Capability = e.capability.String()
	res.PostQuantum = groups.IsPostQuantum(tt.Group)

	log.Infof("%s: group=%s cipher=%s source=%s", res.URL, tt.Group, tt.CipherSuite, src)

	if e.p.archive != nil && e.trace != "" {
		host := res.URL
		if u, err := url.Parse(res.URL); err == nil {
			host = u.Hostname()
		}
		if err := e.p.archive.Store(host, e.id, tt.Group, string(src), e.trace); err != nil {
			log.Warnf("Trace for %s not archived: %v", host, err)
		}
	}
}

func cipherInfo(id uint16) *tlstrace.CipherInfo {
	info := &tlstrace.CipherInfo{Name: fmt.Sprintf("0x%04X", id)}
	if name := tls.CipherSuiteName(id); name != info.Name {
		info.StandardName = name
	}
	return info
}

func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
