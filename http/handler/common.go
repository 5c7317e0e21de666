package handler

import (
	"encoding/json"
	"net/http"

	"github.com/daniellavrushin/pqc-tracer/config"
	"github.com/daniellavrushin/pqc-tracer/log"
)

// Build information, set from main.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const maxRequestBody = 1 << 20

// NewAPIHandler wires the endpoints to prober. traces may be nil when no
// archive is configured.
func NewAPIHandler(cfg *config.Config, prober Executor, traces TraceStore) *API {
	return &API{
		cfg:    cfg,
		prober: prober,
		traces: traces,
	}
}

func (api *API) RegisterEndpoints(mux *http.ServeMux) {
	api.mux = mux

	api.RegisterProbeApi()
	api.RegisterMetricsApi()
	api.RegisterConfigApi()
	api.RegisterTracesApi()
	api.RegisterSystemApi()
}

func setJsonHeader(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
}

func writeJson(w http.ResponseWriter, status int, v any) {
	setJsonHeader(w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Failed to encode response: %v", err)
	}
}

func writeJsonError(w http.ResponseWriter, status int, message string) {
	writeJson(w, status, ErrorResponse{Success: false, Message: message})
}

// decodeBody reads a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
