package ws

import (
	"net/http"
	"time"

	"github.com/daniellavrushin/pqc-tracer/log"
	"github.com/daniellavrushin/pqc-tracer/metrics"
	"github.com/gorilla/websocket"
)

var metricsInterval = time.Second

// HandleMetricsWebSocket pushes a metrics snapshot every interval until the
// client goes away or the hub shuts down.
func HandleMetricsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade metrics WebSocket: %v", err)
		return
	}
	defer conn.Close()
	log.Tracef("Metrics WebSocket client connected: %s", r.RemoteAddr)

	stop := GetLogHub().stop
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	collector := metrics.GetMetricsCollector()
	for {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(collector.GetSnapshot()); err != nil {
			log.Tracef("Metrics WebSocket write failed: %v", err)
			return
		}

		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-stop:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}
