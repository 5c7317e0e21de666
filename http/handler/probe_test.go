package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/daniellavrushin/pqc-tracer/config"
	"github.com/daniellavrushin/pqc-tracer/groups"
	"github.com/daniellavrushin/pqc-tracer/probe"
	"github.com/daniellavrushin/pqc-tracer/tlstrace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu   sync.Mutex
	seen []probe.Request
}

func (f *fakeProber) Execute(_ context.Context, req probe.Request) *probe.Result {
	f.mu.Lock()
	f.seen = append(f.seen, req)
	f.mu.Unlock()

	if strings.Contains(req.URL, "down") {
		return &probe.Result{
			URL:      req.URL,
			TLS:      tlstrace.Errored,
			State:    probe.StateErrored,
			Response: probe.Response{Body: "dial tcp: connection refused"},
		}
	}
	return &probe.Result{
		URL:         req.URL,
		TLS:         tlstrace.TlsTrace{Group: "X25519MLKEM768", CipherSuite: "TLS_AES_128_GCM_SHA256"},
		State:       probe.StateResolved,
		TraceSource: tlstrace.SourceAPI,
		PostQuantum: true,
		Response:    probe.Response{Status: 200, Body: "ok"},
	}
}

func newTestMux(t *testing.T) (*http.ServeMux, *fakeProber) {
	t.Helper()
	cfg := config.NewConfig()
	fp := &fakeProber{}
	mux := http.NewServeMux()
	NewAPIHandler(&cfg, fp, nil).RegisterEndpoints(mux)
	return mux, fp
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleProbe(t *testing.T) {
	mux, fp := newTestMux(t)

	rec := do(mux, http.MethodPost, "/api/probe",
		`{"url":"https://pq.example/","method":"HEAD","headers":{"X-Test":"1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res probe.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "X25519MLKEM768", res.TLS.Group)
	assert.Equal(t, probe.StateResolved, res.State)

	require.Len(t, fp.seen, 1)
	assert.Equal(t, "HEAD", fp.seen[0].Method)
	assert.Equal(t, "1", fp.seen[0].Headers["X-Test"])
}

func TestHandleProbeTransportFailureIsAResult(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(mux, http.MethodPost, "/api/probe", `{"url":"https://down.example/"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res probe.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, tlstrace.ErrorValue, res.TLS.Group)
	assert.Equal(t, tlstrace.ErrorValue, res.TLS.CipherSuite)
	assert.Equal(t, probe.StateErrored, res.State)
}

func TestHandleProbeRejects(t *testing.T) {
	mux, fp := newTestMux(t)

	tests := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"malformed json", http.MethodPost, `{"url":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, `{"url":"https://a.example/","bogus":1}`, http.StatusBadRequest},
		{"plain http", http.MethodPost, `{"url":"http://a.example/"}`, http.StatusBadRequest},
		{"missing url", http.MethodPost, `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, tt.method, "/api/probe", tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
	assert.Empty(t, fp.seen, "rejected requests must not reach the prober")
}

func TestHandleBatchProbe(t *testing.T) {
	mux, fp := newTestMux(t)

	rec := do(mux, http.MethodPost, "/api/probe/batch",
		`{"urls":["https://a.example/","https://down.example/","https://b.example/"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BatchProbeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, 2, resp.PostQuantum)
	assert.Equal(t, 1, resp.Failed)

	require.Len(t, fp.seen, 3)
	assert.Equal(t, "https://a.example/", fp.seen[0].URL)
	assert.Equal(t, "https://down.example/", fp.seen[1].URL)
	assert.Equal(t, "https://b.example/", fp.seen[2].URL)
}

func TestHandleBatchProbeDefaultsToConfiguredURLs(t *testing.T) {
	mux, fp := newTestMux(t)

	rec := do(mux, http.MethodPost, "/api/probe/batch", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fp.seen, 1)
	assert.Equal(t, config.DefaultURL, fp.seen[0].URL)
}

func TestHandleBatchProbeLimits(t *testing.T) {
	mux, fp := newTestMux(t)

	urls := make([]string, maxBatchURLs+1)
	for i := range urls {
		urls[i] = "https://a.example/"
	}
	body, _ := json.Marshal(BatchProbeRequest{URLs: urls})
	rec := do(mux, http.MethodPost, "/api/probe/batch", string(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, http.MethodPost, "/api/probe/batch", `{"urls":["https://a.example/","ftp://b.example/"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fp.seen)
}

func TestSystemEndpoints(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(mux, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "idle", health.Capture)

	rec = do(mux, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var v VersionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, Version, v.Version)

	rec = do(mux, http.MethodGet, "/api/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []groups.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, groups.All(), all)

	rec = do(mux, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_probes"`)

	rec = do(mux, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg config.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, config.CurrentConfigVersion, cfg.Version)

	rec = do(mux, http.MethodPost, "/api/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
