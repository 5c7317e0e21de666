package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/daniellavrushin/pqc-tracer/groups"
	"github.com/daniellavrushin/pqc-tracer/log"
)

func (c *Config) SaveToFile(path string) error {
	if path == "" {
		log.Tracef("config path is not defined")
		return nil
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return log.Errorf("failed to marshal config: %v", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return log.Errorf("failed to create config file: %v", err)
	}
	defer file.Close()

	_, err = file.Write(data)
	if err != nil {
		return log.Errorf("failed to write config file: %v", err)
	}
	return nil
}

func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		log.Tracef("config path is not defined")
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return log.Errorf("failed to stat config file: %v", err)
	}
	if info.IsDir() {
		return log.Errorf("config path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return log.Errorf("failed to read config file: %v", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return log.Errorf("failed to parse config file: %v", err)
	}
	return nil
}

func (cfg *Config) ApplyLogLevel(level string) {
	cfg.System.Logging.Level = log.ParseLevel(level)
}

func (c *Config) Validate() error {
	c.System.WebServer.IsEnabled = c.System.WebServer.Port > 0 && c.System.WebServer.Port <= 65535

	if c.System.WebServer.Port < 0 || c.System.WebServer.Port > 65535 {
		return fmt.Errorf("web-port must be between 0 and 65535")
	}

	c.Probe.Method = strings.ToUpper(strings.TrimSpace(c.Probe.Method))
	if c.Probe.Method == "" {
		return fmt.Errorf("method must not be empty")
	}

	for _, u := range c.Probe.URLs {
		if err := ValidateURL(u); err != nil {
			return err
		}
	}

	if c.Probe.TimeoutSec < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Probe.MaxBodyBytes < 1 {
		return fmt.Errorf("max-body must be at least 1")
	}
	if c.Probe.PreviewChars < 0 {
		return fmt.Errorf("preview must not be negative")
	}

	switch c.Probe.TLSVersion {
	case "", TLSVersionAuto, TLSVersionTLS12, TLSVersionTLS13:
	default:
		return fmt.Errorf("unknown tls-version %q (auto|tls12|tls13)", c.Probe.TLSVersion)
	}

	if _, err := groups.CurvePreferences(c.Probe.Curves); err != nil {
		return err
	}

	for _, entry := range c.Probe.DenyCIDRs {
		if _, err := ParseCIDR(entry); err != nil {
			return err
		}
	}

	for _, origin := range c.System.WebServer.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || (u.Path != "" && u.Path != "/") {
			return fmt.Errorf("invalid web origin %q (want scheme://host[:port])", origin)
		}
	}

	return nil
}

// ValidateURL accepts absolute https URLs only; every probe is one TLS
// handshake.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("url %q must use https", raw)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// ParseCIDR accepts a CIDR or a bare IP, which becomes a single-host network.
func ParseCIDR(entry string) (*net.IPNet, error) {
	entry = strings.TrimSpace(entry)
	if _, n, err := net.ParseCIDR(entry); err == nil {
		return n, nil
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, fmt.Errorf("invalid IP or CIDR %q", entry)
	}
	bits := 128
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		bits = 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

func (c *Config) LogString() string {
	return fmt.Sprintf("urls=%v method=%s tls=%s curves=%v http2=%v trace=%v no-api-group=%v deny=%d timeout=%ds",
		c.Probe.URLs, c.Probe.Method, c.Probe.TLSVersion, c.Probe.Curves, c.Probe.HTTP2,
		c.Capture.Enabled, c.Probe.IgnoreAPIGroup, len(c.Probe.DenyCIDRs), c.Probe.TimeoutSec)
}
