package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *LogHub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestLogStreamBroadcastsLines(t *testing.T) {
	h := newLogHub()
	go h.run()
	defer h.Stop()

	srv := httptest.NewServer(http.HandlerFunc(h.serve))
	defer srv.Close()

	a := dialWS(t, srv)
	b := dialWS(t, srv)
	waitClients(t, h, 2)

	w := &broadcastWriter{h: h}
	_, err := w.Write([]byte("first line\nsecond "))
	require.NoError(t, err)
	_, err = w.Write([]byte("line\n"))
	require.NoError(t, err)

	for _, c := range []*websocket.Conn{a, b} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "first line", string(msg))

		_, msg, err = c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "second line", string(msg))
	}
}

func TestLogStreamUnregistersOnClose(t *testing.T) {
	h := newLogHub()
	go h.run()
	defer h.Stop()

	srv := httptest.NewServer(http.HandlerFunc(h.serve))
	defer srv.Close()

	c := dialWS(t, srv)
	waitClients(t, h, 1)

	c.Close()
	waitClients(t, h, 0)
}

func TestPublishNeverBlocks(t *testing.T) {
	// no run loop: the inbound queue fills and further lines are dropped
	h := newLogHub()
	w := &broadcastWriter{h: h}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(h.in)+10; i++ {
			w.Write([]byte("x\n"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("log writer blocked on a stalled hub")
	}
	assert.Equal(t, uint64(10), h.Dropped())
}

func TestStopClosesStreams(t *testing.T) {
	h := newLogHub()
	go h.run()

	srv := httptest.NewServer(http.HandlerFunc(h.serve))
	defer srv.Close()

	c := dialWS(t, srv)
	waitClients(t, h, 1)

	h.Stop()
	h.Stop()

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	assert.Error(t, err, "stream must end when the hub stops")
}

func TestMetricsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(HandleMetricsWebSocket))
	defer srv.Close()

	c := dialWS(t, srv)
	c.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snap map[string]any
	require.NoError(t, c.ReadJSON(&snap))
	assert.Contains(t, snap, "total_probes")
	assert.Contains(t, snap, "group_dist")
	assert.NotContains(t, snap, "mu")
}
