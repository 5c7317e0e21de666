package config

import "github.com/daniellavrushin/pqc-tracer/log"

const DefaultURL = "https://www.google.com/"

type Config struct {
	ConfigPath string `json:"-" bson:"-"`
	Version    int    `json:"version" bson:"version"`

	Probe   ProbeConfig   `json:"probe" bson:"probe"`
	Capture CaptureConfig `json:"capture" bson:"capture"`
	System  SystemConfig  `json:"system" bson:"system"`
}

var DefaultConfig = Config{
	ConfigPath: "",
	Version:    CurrentConfigVersion,

	Probe: ProbeConfig{
		URLs:           []string{DefaultURL},
		Method:         "GET",
		TimeoutSec:     15,
		MaxBodyBytes:   1 << 20,
		PreviewChars:   10,
		UserAgent:      "pqc-tracer",
		TLSVersion:     TLSVersionAuto,
		Curves:         []string{},
		Insecure:       false,
		HTTP2:          false,
		IDNA:           true,
		IgnoreAPIGroup: false,
		DenyCIDRs:      []string{},
	},

	Capture: CaptureConfig{
		Enabled: true,
		SinkDir: "",
	},

	System: SystemConfig{
		WebServer: WebServerConfig{
			Port:        7000,
			BindAddress: "127.0.0.1",
		},

		Logging: Logging{
			Level:            log.LevelInfo,
			Instaflush:       true,
			Syslog:           false,
			ErrorFileMaxMB:   10,
			ErrorFileBackups: 3,
		},
	},
}

// NewConfig returns the defaults with slices that are safe to mutate.
func NewConfig() Config {
	cfg := DefaultConfig
	cfg.Probe.URLs = append([]string(nil), DefaultConfig.Probe.URLs...)
	cfg.Probe.Curves = append([]string{}, DefaultConfig.Probe.Curves...)
	cfg.Probe.DenyCIDRs = append([]string{}, DefaultConfig.Probe.DenyCIDRs...)
	return cfg
}
