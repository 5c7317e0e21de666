package handler

import (
	"context"
	"net/http"

	"github.com/daniellavrushin/pqc-tracer/archive"
	"github.com/daniellavrushin/pqc-tracer/config"
	"github.com/daniellavrushin/pqc-tracer/probe"
)

// Executor runs one exchange; *probe.Prober satisfies it.
type Executor interface {
	Execute(ctx context.Context, req probe.Request) *probe.Result
}

// TraceStore is the archive of captured traces; *archive.Archive satisfies it.
type TraceStore interface {
	List() []*archive.Trace
	Get(host string) (*archive.Trace, error)
	Delete(host string) error
	ClearAll() error
}

type API struct {
	cfg    *config.Config
	mux    *http.ServeMux
	prober Executor
	traces TraceStore
}

// ProbeRequest is the body of POST /api/probe.
type ProbeRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// BatchProbeRequest is the body of POST /api/probe/batch.
type BatchProbeRequest struct {
	URLs   []string `json:"urls"`
	Method string   `json:"method,omitempty"`
}

type BatchProbeResponse struct {
	Results     []*probe.Result `json:"results"`
	PostQuantum int             `json:"post_quantum"`
	Failed      int             `json:"failed"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Capture string `json:"capture"`
}

type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}
