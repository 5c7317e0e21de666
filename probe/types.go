package probe

import (
	"time"
	"unicode/utf8"

	"github.com/daniellavrushin/pqc-tracer/tlstrace"
)

// Request describes one HTTPS exchange.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Response is the application-level outcome. On transport failure Body
// carries the error message and Status is 0.
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"status_text,omitempty"`
	Proto      string            `json:"proto,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
	Truncated  bool              `json:"truncated,omitempty"`
}

// Result is produced exactly once per Execute.
type Result struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	TLS         tlstrace.TlsTrace `json:"tls"`
	Response    Response          `json:"response"`
	State       State             `json:"state"`
	TraceSource tlstrace.Source   `json:"trace_source"`
	Capability  string            `json:"capability"`
	TLSVersion  string            `json:"tls_version,omitempty"`
	PostQuantum bool              `json:"post_quantum"`
	Duration    time.Duration     `json:"duration_ns"`
}

// Failed reports whether the exchange ended in a transport error.
func (r *Result) Failed() bool {
	return r.State == StateErrored
}

// Preview returns the first n characters of the response body.
func (r *Result) Preview(n int) string {
	body := r.Response.Body
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(body) <= n {
		return body
	}
	i := 0
	for pos := range body {
		if i == n {
			return body[:pos]
		}
		i++
	}
	return body
}
