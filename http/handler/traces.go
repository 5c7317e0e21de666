package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/daniellavrushin/pqc-tracer/archive"
	"github.com/daniellavrushin/pqc-tracer/log"
)

func (api *API) RegisterTracesApi() {
	api.mux.HandleFunc("/api/traces", api.handleTraces)
	api.mux.HandleFunc("/api/traces/", api.handleTrace)
}

func (api *API) handleTraces(w http.ResponseWriter, r *http.Request) {
	if api.traces == nil {
		writeJsonError(w, http.StatusNotFound, "Trace archive is disabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJson(w, http.StatusOK, api.traces.List())
	case http.MethodDelete:
		if err := api.traces.ClearAll(); err != nil {
			writeJsonError(w, http.StatusInternalServerError, "Failed to clear traces")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (api *API) handleTrace(w http.ResponseWriter, r *http.Request) {
	if api.traces == nil {
		writeJsonError(w, http.StatusNotFound, "Trace archive is disabled")
		return
	}

	host := strings.TrimPrefix(r.URL.Path, "/api/traces/")
	if host == "" || strings.Contains(host, "/") {
		writeJsonError(w, http.StatusBadRequest, "Invalid host")
		return
	}

	switch r.Method {
	case http.MethodGet:
		tr, err := api.traces.Get(host)
		if err != nil {
			api.traceError(w, err)
			return
		}
		writeJson(w, http.StatusOK, tr)
	case http.MethodDelete:
		if err := api.traces.Delete(host); err != nil {
			api.traceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (api *API) traceError(w http.ResponseWriter, err error) {
	if errors.Is(err, archive.ErrNotFound) {
		writeJsonError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Errorf("Trace archive error: %v", err)
	writeJsonError(w, http.StatusInternalServerError, "Trace archive error")
}
