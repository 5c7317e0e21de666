package config

import "github.com/spf13/cobra"

func (c *Config) BindFlags(cmd *cobra.Command) {
	// Config path
	cmd.PersistentFlags().StringVar(&c.ConfigPath, "config", c.ConfigPath, "Path to config file")

	// Probe configuration
	cmd.PersistentFlags().StringVarP(&c.Probe.Method, "method", "X", c.Probe.Method, "HTTP method for the probe request")
	cmd.PersistentFlags().IntVar(&c.Probe.TimeoutSec, "timeout", c.Probe.TimeoutSec, "Per-exchange timeout in seconds (0 disables)")
	cmd.PersistentFlags().Int64Var(&c.Probe.MaxBodyBytes, "max-body", c.Probe.MaxBodyBytes, "Maximum response body bytes to read")
	cmd.PersistentFlags().IntVar(&c.Probe.PreviewChars, "preview", c.Probe.PreviewChars, "Response preview length in characters")
	cmd.PersistentFlags().StringVar(&c.Probe.UserAgent, "user-agent", c.Probe.UserAgent, "User-Agent header")
	cmd.PersistentFlags().StringVar(&c.Probe.TLSVersion, "tls-version", c.Probe.TLSVersion, "TLS version (auto|tls12|tls13)")
	cmd.PersistentFlags().StringSliceVar(&c.Probe.Curves, "curves", c.Probe.Curves, "Key-exchange groups to offer, in order (e.g. X25519MLKEM768,X25519)")
	cmd.PersistentFlags().BoolVarP(&c.Probe.Insecure, "insecure", "k", c.Probe.Insecure, "Skip certificate verification")
	cmd.PersistentFlags().BoolVar(&c.Probe.HTTP2, "http2", c.Probe.HTTP2, "Negotiate HTTP/2 via ALPN")
	cmd.PersistentFlags().BoolVar(&c.Probe.IDNA, "idna", c.Probe.IDNA, "Convert internationalized host names to ASCII")
	cmd.PersistentFlags().BoolVar(&c.Probe.IgnoreAPIGroup, "no-api-group", c.Probe.IgnoreAPIGroup, "Ignore the group reported by the TLS stack and rely on the trace")
	cmd.PersistentFlags().StringSliceVar(&c.Probe.DenyCIDRs, "deny", c.Probe.DenyCIDRs, "Destination IPs/CIDRs that must not be probed")

	// Capture configuration
	cmd.PersistentFlags().BoolVar(&c.Capture.Enabled, "trace", c.Capture.Enabled, "Capture the handshake trace")
	cmd.PersistentFlags().StringVar(&c.Capture.SinkDir, "sink-dir", c.Capture.SinkDir, "Directory for temporary trace sinks (default system temp)")
	cmd.PersistentFlags().StringVar(&c.Capture.ArchiveDir, "archive-dir", c.Capture.ArchiveDir, "Keep the latest handshake trace per host in this directory")

	// System configuration
	cmd.PersistentFlags().BoolVarP(&c.System.Logging.Instaflush, "instaflush", "i", c.System.Logging.Instaflush, "Flush logs immediately")
	cmd.PersistentFlags().BoolVar(&c.System.Logging.Syslog, "syslog", c.System.Logging.Syslog, "Enable syslog output")
	cmd.PersistentFlags().StringVar(&c.System.Logging.ErrorFile, "error-file", c.System.Logging.ErrorFile, "Mirror errors into a rotated file")

	cmd.PersistentFlags().IntVar(&c.System.WebServer.Port, "web-port", c.System.WebServer.Port, "Port for the web server in serve mode (0 disables)")
	cmd.PersistentFlags().StringVar(&c.System.WebServer.BindAddress, "web-bind", c.System.WebServer.BindAddress, "Bind address for the web server")
	cmd.PersistentFlags().StringSliceVar(&c.System.WebServer.AllowedOrigins, "web-origins", c.System.WebServer.AllowedOrigins, "Extra browser origins allowed to call the API (same-origin is always allowed)")
}
