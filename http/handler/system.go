package handler

import (
	"net/http"

	"github.com/daniellavrushin/pqc-tracer/groups"
	"github.com/daniellavrushin/pqc-tracer/metrics"
	"github.com/daniellavrushin/pqc-tracer/stderrcap"
)

func (api *API) RegisterSystemApi() {
	api.mux.HandleFunc("/api/health", api.handleHealth)
	api.mux.HandleFunc("/api/version", api.handleVersion)
	api.mux.HandleFunc("/api/groups", api.handleGroups)
}

func (api *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	capture := "disabled"
	if api.cfg.Capture.Enabled {
		capture = "idle"
		if stderrcap.Stderr().Active() {
			capture = "active"
		}
	}

	writeJson(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  metrics.GetMetricsCollector().GetSnapshot().Uptime,
		Capture: capture,
	})
}

func (api *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJson(w, http.StatusOK, VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: Date,
	})
}

func (api *API) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJson(w, http.StatusOK, groups.All())
}
