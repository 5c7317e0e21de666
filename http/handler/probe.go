package handler

import (
	"fmt"
	"net/http"

	"github.com/daniellavrushin/pqc-tracer/config"
	"github.com/daniellavrushin/pqc-tracer/log"
	"github.com/daniellavrushin/pqc-tracer/metrics"
	"github.com/daniellavrushin/pqc-tracer/probe"
)

const maxBatchURLs = 50

func (api *API) RegisterProbeApi() {
	api.mux.HandleFunc("/api/probe", api.handleProbe)
	api.mux.HandleFunc("/api/probe/batch", api.handleBatchProbe)
}

// handleProbe runs one exchange. Transport failures still answer 200 with an
// errored result; only a malformed request is rejected.
func (api *API) handleProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req ProbeRequest
	if err := decodeBody(w, r, &req); err != nil {
		log.Errorf("Failed to decode probe request: %v", err)
		writeJsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := config.ValidateURL(req.URL); err != nil {
		writeJsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := api.prober.Execute(r.Context(), probe.Request{
		URL:     req.URL,
		Method:  req.Method,
		Headers: req.Headers,
		Body:    req.Body,
	})
	writeJson(w, http.StatusOK, res)
}

func (api *API) handleBatchProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req BatchProbeRequest
	if err := decodeBody(w, r, &req); err != nil {
		log.Errorf("Failed to decode batch probe request: %v", err)
		writeJsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	urls := req.URLs
	if len(urls) == 0 {
		urls = api.cfg.Probe.URLs
	}
	if len(urls) == 0 {
		writeJsonError(w, http.StatusBadRequest, "No URLs provided")
		return
	}
	if len(urls) > maxBatchURLs {
		writeJsonError(w, http.StatusBadRequest, fmt.Sprintf("At most %d URLs per batch", maxBatchURLs))
		return
	}
	for _, u := range urls {
		if err := config.ValidateURL(u); err != nil {
			writeJsonError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp := BatchProbeResponse{Results: make([]*probe.Result, 0, len(urls))}
	for _, u := range urls {
		if r.Context().Err() != nil {
			break
		}
		res := api.prober.Execute(r.Context(), probe.Request{URL: u, Method: req.Method})
		if res.Failed() {
			resp.Failed++
		} else if res.PostQuantum {
			resp.PostQuantum++
		}
		resp.Results = append(resp.Results, res)
	}

	metrics.GetMetricsCollector().RecordEvent("info",
		fmt.Sprintf("Batch of %d probes finished, %d post-quantum", len(resp.Results), resp.PostQuantum))
	writeJson(w, http.StatusOK, resp)
}
