package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Upgrader is shared by every streaming endpoint. Browsers may only connect
// from the server's own origin or one passed to SetAllowedOrigins.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     OriginAllowed,
}

type LogHub struct {
	mu      sync.RWMutex
	clients map[*logClient]struct{}
	in      chan []byte
	reg     chan *logClient
	unreg   chan *logClient
	stop    chan struct{}
	dropped uint64
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)
