package config

import "github.com/daniellavrushin/pqc-tracer/log"

const (
	TLSVersionAuto  = "auto"
	TLSVersionTLS12 = "tls12"
	TLSVersionTLS13 = "tls13"
)

type ProbeConfig struct {
	URLs           []string `json:"urls" bson:"urls"`
	Method         string   `json:"method" bson:"method"`
	TimeoutSec     int      `json:"timeout_sec" bson:"timeout_sec"`
	MaxBodyBytes   int64    `json:"max_body_bytes" bson:"max_body_bytes"`
	PreviewChars   int      `json:"preview_chars" bson:"preview_chars"`
	UserAgent      string   `json:"user_agent" bson:"user_agent"`
	TLSVersion     string   `json:"tls_version" bson:"tls_version"` // "auto", "tls12", "tls13"
	Curves         []string `json:"curves" bson:"curves"`           // group names or codepoints, empty = stack defaults
	Insecure       bool     `json:"insecure" bson:"insecure"`
	HTTP2          bool     `json:"http2" bson:"http2"`
	IDNA           bool     `json:"idna" bson:"idna"`
	IgnoreAPIGroup bool     `json:"ignore_api_group" bson:"ignore_api_group"`
	DenyCIDRs      []string `json:"deny_cidrs" bson:"deny_cidrs"`
}

type CaptureConfig struct {
	Enabled    bool   `json:"enabled" bson:"enabled"`
	SinkDir    string `json:"sink_dir" bson:"sink_dir"`       // empty = os.TempDir()
	ArchiveDir string `json:"archive_dir" bson:"archive_dir"` // empty = traces are discarded
}

type SystemConfig struct {
	Logging   Logging         `json:"logging" bson:"logging"`
	WebServer WebServerConfig `json:"web_server" bson:"web_server"`
}

type WebServerConfig struct {
	Port        int    `json:"port" bson:"port"`
	BindAddress string `json:"bind_address" bson:"bind_address"`
	// AllowedOrigins lists browser origins besides the server's own that may
	// call the API, e.g. "http://localhost:5173".
	AllowedOrigins []string `json:"allowed_origins,omitempty" bson:"allowed_origins"`
	IsEnabled      bool     `json:"-" bson:"-"`
}

type Logging struct {
	Level            log.Level `json:"level" bson:"level"`
	Instaflush       bool      `json:"instaflush" bson:"instaflush"`
	Syslog           bool      `json:"syslog" bson:"syslog"`
	ErrorFile        string    `json:"error_file" bson:"error_file"`
	ErrorFileMaxMB   int       `json:"error_file_max_mb" bson:"error_file_max_mb"`
	ErrorFileBackups int       `json:"error_file_backups" bson:"error_file_backups"`
}
