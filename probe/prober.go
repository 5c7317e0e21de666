// Package probe performs HTTPS exchanges and reports the key-exchange group
// and cipher suite each one negotiated, capturing the transport's handshake
// trace around exactly one handshake per exchange.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/daniellavrushin/pqc-tracer/archive"
	"github.com/daniellavrushin/pqc-tracer/config"
	"github.com/daniellavrushin/pqc-tracer/groups"
	"github.com/daniellavrushin/pqc-tracer/log"
	"github.com/daniellavrushin/pqc-tracer/metrics"
	"github.com/daniellavrushin/pqc-tracer/stderrcap"
	"github.com/yl2chen/cidranger"
)

// ErrDeniedDestination is returned by the dialer when every address of the
// destination is in the deny list.
var ErrDeniedDestination = errors.New("probe: destination denied")

// Capturer is the descriptor capture the prober arms around a handshake.
type Capturer interface {
	Begin() error
	End() stderrcap.TraceText
}

// Archiver keeps captured traces after the exchange; *archive.Archive
// satisfies it.
type Archiver interface {
	Store(host, probeID, group, source string, text stderrcap.TraceText) error
}

// Resolver looks up destination addresses; net.DefaultResolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Prober runs exchanges one at a time.
type Prober struct {
	mu sync.Mutex

	cfg      config.ProbeConfig
	trace    bool
	capture  Capturer
	traceOut io.Writer
	rootCAs  *x509.CertPool
	resolver Resolver
	archive  Archiver
	owned    *archive.Archive
	dialer   *net.Dialer
	deny     cidranger.Ranger
	curves   []tls.CurveID
}

type Option func(*Prober)

// WithCapture replaces the fd 2 controller. w receives the handshake trace
// and must write to the descriptor c captures.
func WithCapture(c Capturer, w io.Writer) Option {
	return func(p *Prober) {
		p.capture = c
		p.traceOut = w
	}
}

// WithRootCAs sets the trust roots used to verify servers.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(p *Prober) { p.rootCAs = pool }
}

// WithResolver replaces the DNS resolver used by the dialer.
func WithResolver(r Resolver) Option {
	return func(p *Prober) { p.resolver = r }
}

// WithArchive keeps every non-empty captured trace in a.
func WithArchive(a Archiver) Option {
	return func(p *Prober) { p.archive = a }
}

// New builds a prober from cfg. By default the trace goes to os.Stderr and
// is captured by the process-wide fd 2 controller.
func New(cfg *config.Config, opts ...Option) (*Prober, error) {
	curves, err := groups.CurvePreferences(cfg.Probe.Curves)
	if err != nil {
		return nil, err
	}

	deny := cidranger.NewPCTrieRanger()
	for _, entry := range cfg.Probe.DenyCIDRs {
		n, err := config.ParseCIDR(entry)
		if err != nil {
			return nil, err
		}
		if err := deny.Insert(cidranger.NewBasicRangerEntry(*n)); err != nil {
			return nil, fmt.Errorf("failed to add %s to deny list: %w", entry, err)
		}
	}

	p := &Prober{
		cfg:      cfg.Probe,
		trace:    cfg.Capture.Enabled,
		resolver: net.DefaultResolver,
		dialer:   &net.Dialer{Timeout: 10 * time.Second, KeepAlive: -1},
		deny:     deny,
		curves:   curves,
	}
	for _, o := range opts {
		o(p)
	}

	if p.capture == nil {
		ctl := stderrcap.Stderr()
		if cfg.Capture.SinkDir != "" {
			ctl.SetDir(cfg.Capture.SinkDir)
		}
		p.capture = ctl
		p.traceOut = os.Stderr
	}

	if p.archive == nil && cfg.Capture.ArchiveDir != "" {
		a, err := archive.Open(cfg.Capture.ArchiveDir)
		if err != nil {
			return nil, err
		}
		p.archive = a
		p.owned = a
		log.Infof("Handshake traces archived in %s until exit", a.Dir())
	}

	if deny.Len() > 0 {
		log.Infof("Probe deny list loaded with %d networks", deny.Len())
	}
	return p, nil
}

// Close discards the archive the prober opened from its config. An archive
// given through WithArchive belongs to the caller.
func (p *Prober) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.owned == nil {
		return nil
	}
	err := p.owned.Close()
	p.owned, p.archive = nil, nil
	return err
}

// Execute performs exactly one exchange and always returns a result;
// transport failures are reported through it rather than as an error.
// Calls are serialized, so at most one capture is ever active per prober.
func (p *Prober) Execute(ctx context.Context, req Request) *Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	ex := newExchange(p, req)
	res := ex.run(ctx)
	res.Duration = time.Since(start)

	metrics.GetMetricsCollector().RecordProbe(res.URL, res.TLS.Group, string(res.TraceSource), res.Failed(), res.Duration)
	return res
}

// ExecuteAll runs requests strictly one after another.
func (p *Prober) ExecuteAll(ctx context.Context, reqs []Request) []*Result {
	results := make([]*Result, 0, len(reqs))
	for _, r := range reqs {
		results = append(results, p.Execute(ctx, r))
	}
	return results
}

// denied reports whether ip falls into the deny list.
func (p *Prober) denied(ip net.IP) bool {
	if p.deny.Len() == 0 {
		return false
	}
	ok, err := p.deny.Contains(ip)
	if err != nil {
		log.Debugf("Deny list lookup for %s failed: %v", ip, err)
		return false
	}
	return ok
}

func (p *Prober) tlsConfig(serverName string) *tls.Config {
	c := &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: p.cfg.Insecure,
		RootCAs:            p.rootCAs,
		CurvePreferences:   p.curves,
		MinVersion:         tls.VersionTLS12,
	}
	switch p.cfg.TLSVersion {
	case config.TLSVersionTLS12:
		c.MaxVersion = tls.VersionTLS12
	case config.TLSVersionTLS13:
		c.MinVersion = tls.VersionTLS13
	}
	return c
}
