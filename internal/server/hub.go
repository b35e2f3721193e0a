package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"winequality-api/internal/serving"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// LiveHub streams prediction events to connected WebSocket clients. Publish
// never blocks the prediction path: events go through a buffered channel and
// are dropped when the broadcaster is behind.
type LiveHub struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex
	events    chan serving.PredictionResult
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewLiveHub creates the hub and starts its broadcaster.
func NewLiveHub() *LiveHub {
	h := &LiveHub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]bool),
		events:   make(chan serving.PredictionResult, 100),
		stop:     make(chan struct{}),
	}
	go h.broadcaster()
	return h
}

// Publish enqueues a prediction event for streaming. Drops the event when the
// buffer is full.
func (h *LiveHub) Publish(result serving.PredictionResult) {
	select {
	case h.events <- result:
	default:
	}
}

func (h *LiveHub) broadcaster() {
	for {
		select {
		case result := <-h.events:
			h.broadcast(result)
		case <-h.stop:
			return
		}
	}
}

func (h *LiveHub) broadcast(result serving.PredictionResult) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	data, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal prediction event")
		return
	}

	for client := range h.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			client.Close()
			delete(h.clients, client)
		}
	}
}

// HandleWS upgrades the connection and registers the client.
func (h *LiveHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.clientsMu.Unlock()

	log.Info().Int("clients", count).Msg("live stream client connected")

	// Reader loop only detects disconnects; clients never send payloads.
	go func() {
		defer func() {
			h.clientsMu.Lock()
			delete(h.clients, conn)
			h.clientsMu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects all clients and stops the broadcaster.
func (h *LiveHub) Close() {
	h.stopOnce.Do(func() { close(h.stop) })

	h.clientsMu.Lock()
	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.clientsMu.Unlock()
}
