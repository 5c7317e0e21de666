package http

import (
	"fmt"
	"io"
	stdlog "log"
	"net"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daniellavrushin/pqc-tracer/config"
	"github.com/daniellavrushin/pqc-tracer/http/handler"
	"github.com/daniellavrushin/pqc-tracer/http/ws"
	"github.com/daniellavrushin/pqc-tracer/log"
	"github.com/daniellavrushin/pqc-tracer/metrics"
)

// NewHandler builds the API mux with its middleware.
func NewHandler(cfg *config.Config, prober handler.Executor, traces handler.TraceStore) stdhttp.Handler {
	mux := stdhttp.NewServeMux()

	registerWebSocketEndpoints(mux)

	api := handler.NewAPIHandler(cfg, prober, traces)
	api.RegisterEndpoints(mux)

	ws.SetAllowedOrigins(cfg.System.WebServer.AllowedOrigins)
	return cors(mux)
}

// StartServer listens on the configured address and serves in the
// background. It returns nil when the web server is disabled.
func StartServer(cfg *config.Config, prober handler.Executor, traces handler.TraceStore) (*stdhttp.Server, error) {
	if !cfg.System.WebServer.IsEnabled {
		log.Infof("Web server disabled (port 0)")
		return nil, nil
	}

	addr := net.JoinHostPort(cfg.System.WebServer.BindAddress, strconv.Itoa(cfg.System.WebServer.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, log.Errorf("failed to listen on %s: %v", addr, err)
	}
	log.Infof("Starting web server on %s", ln.Addr())

	m := metrics.GetMetricsCollector()
	m.RecordEvent("info", fmt.Sprintf("Web server started on %s", ln.Addr()))

	srv := &stdhttp.Server{
		Addr:              ln.Addr().String(),
		Handler:           NewHandler(cfg, prober, traces),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          serverErrorLog(),
	}

	go func() {
		if err := srv.Serve(ln); err != nil && err != stdhttp.ErrServerClosed {
			log.Errorf("Web server error: %v", err)
			m.RecordEvent("error", fmt.Sprintf("Web server error: %v", err))
		}
	}()

	return srv, nil
}

// serverErrorLog sends net/http's own error lines through the module logger,
// which writes to the saved stderr rather than fd 2.
func serverErrorLog() *stdlog.Logger {
	return stdlog.New(logWriter{}, "", 0)
}

type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Warnf("Web server: %s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func registerWebSocketEndpoints(mux *stdhttp.ServeMux) {
	mux.HandleFunc("/api/ws/logs", ws.HandleLogsWebSocket)
	mux.HandleFunc("/api/ws/metrics", ws.HandleMetricsWebSocket)

	log.Tracef("WebSocket endpoints registered: /api/ws/logs, /api/ws/metrics")
}

// cors rejects browser requests from foreign origins and echoes the origin
// back for allowed ones. Requests without an Origin header pass untouched.
func cors(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		if !ws.OriginAllowed(r) {
			log.Tracef("Rejected cross-origin %s %s from %s", r.Method, r.URL.Path, origin)
			stdhttp.Error(w, "origin not allowed", stdhttp.StatusForbidden)
			return
		}

		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == stdhttp.MethodOptions {
			w.WriteHeader(stdhttp.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func LogWriter() io.Writer {
	return ws.LogWriter()
}

func Shutdown() {
	ws.Shutdown()
}
