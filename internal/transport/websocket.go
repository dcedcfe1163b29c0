// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"spectra/internal/dsp"
	applog "spectra/internal/log"
)

// WebSocketTransport broadcasts analysis frames as JSON to connected
// clients, with rate limiting to avoid flooding slow consumers.
type WebSocketTransport struct {
	clients         map[*websocket.Conn]bool
	clientsMutex    sync.Mutex
	upgrader        websocket.Upgrader
	server          *http.Server
	lastSend        time.Time
	minSendInterval time.Duration
}

// NewWebSocketTransport starts an HTTP server on the given port serving
// frame broadcasts at /frames. The server runs in its own goroutine.
func NewWebSocketTransport(port string) *WebSocketTransport {
	t := &WebSocketTransport{
		clients:         make(map[*websocket.Conn]bool),
		minSendInterval: 16 * time.Millisecond, // ~60Hz ceiling
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualizer clients only.
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/frames", t.handleWebSocket)
	t.server = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		applog.Infof("transport: websocket frame server listening on port %s", port)
		if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
			applog.Errorf("transport: websocket server error: %v", err)
		}
	}()

	return t
}

func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Errorf("transport: websocket upgrade error: %v", err)
		return
	}

	t.clientsMutex.Lock()
	t.clients[conn] = true
	t.clientsMutex.Unlock()

	// Read loop exists only to observe the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				t.clientsMutex.Lock()
				delete(t.clients, conn)
				t.clientsMutex.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Send broadcasts the frame to all connected clients. Frames arriving faster
// than the rate limit are silently skipped; disconnected clients are pruned.
func (t *WebSocketTransport) Send(frame *dsp.Frame) error {
	now := time.Now()
	if now.Sub(t.lastSend) < t.minSendInterval {
		return nil
	}
	t.lastSend = now

	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	t.clientsMutex.Lock()
	for client := range t.clients {
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			client.Close()
			delete(t.clients, client)
		}
	}
	t.clientsMutex.Unlock()

	return nil
}

// Close disconnects all clients and shuts down the server. Idempotent.
func (t *WebSocketTransport) Close() error {
	t.clientsMutex.Lock()
	for client := range t.clients {
		client.Close()
		delete(t.clients, client)
	}
	t.clientsMutex.Unlock()

	return t.server.Close()
}
