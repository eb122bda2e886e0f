package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/events"
)

const defaultWriteTimeout = 5 * time.Second

// Broadcaster streams events to websocket clients. It is both an
// events.Sink and the http.Handler that upgrades client connections.
type Broadcaster struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	closed  bool
}

// NewBroadcaster returns a Broadcaster accepting any origin.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: defaultWriteTimeout,
		logger:       logger.Named("broadcaster"),
		clients:      map[*websocket.Conn]struct{}{},
	}
}

// ServeHTTP upgrades the request and registers the connection. A read pump
// unregisters it once the client goes away.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if !b.register(conn) {
		_ = conn.Close()
		return
	}
	go func() {
		defer b.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					b.logger.Debug("websocket closed unexpectedly", zap.Error(err))
				}
				return
			}
		}
	}()
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Consume writes each event as a JSON text frame to every client. Clients
// that fail a write are dropped.
func (b *Broadcaster) Consume(_ context.Context, batch []events.Event) error {
	frames := make([][]byte, 0, len(batch))
	for _, evt := range batch {
		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		frames = append(frames, data)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.clients {
		if err := b.write(conn, frames); err != nil {
			b.logger.Debug("dropping websocket client", zap.Error(err))
			delete(b.clients, conn)
			_ = conn.Close()
		}
	}
	return nil
}

func (b *Broadcaster) write(conn *websocket.Conn, frames [][]byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(b.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	for _, frame := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
	}
	return nil
}

// Close sends a close frame to every client and refuses new ones.
func (b *Broadcaster) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
	for conn := range b.clients {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		delete(b.clients, conn)
	}
	return nil
}

func (b *Broadcaster) register(conn *websocket.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.clients[conn] = struct{}{}
	return true
}

func (b *Broadcaster) unregister(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
		_ = conn.Close()
	}
}
