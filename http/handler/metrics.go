package handler

import (
	"net/http"

	"github.com/daniellavrushin/pqc-tracer/metrics"
)

func (api *API) RegisterMetricsApi() {
	api.mux.HandleFunc("/api/metrics", api.handleMetrics)
}

func (api *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJson(w, http.StatusOK, metrics.GetMetricsCollector().GetSnapshot())
}
