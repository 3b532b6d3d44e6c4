package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// DefaultStatsInterval is the period of the statistics broadcast.
const DefaultStatsInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts clients without an Origin header or served from this host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host != r.Host {
		slog.Warn("websocket origin rejected", "origin", origin)
		return false
	}
	return true
}

type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StatsSource provides the statistics pushed to clients.
type StatsSource interface {
	GetSystemStats() domain.SystemStats
}

type WSManager struct {
	Service  StatsSource
	Clients  map[*websocket.Conn]bool
	interval time.Duration
	mu       sync.Mutex
}

func NewWSManager(service StatsSource, interval time.Duration) *WSManager {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	return &WSManager{
		Service:  service,
		Clients:  make(map[*websocket.Conn]bool),
		interval: interval,
	}
}

func (m *WSManager) Start(ctx context.Context) {
	go m.processAndBroadcast(ctx)
}

// HandleWebSocket registers the client and sends it the current statistics.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	data, err := json.Marshal(WSMessage{Type: "stats", Payload: m.Service.GetSystemStats()})
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err = conn.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil {
		conn.Close()
		return
	}

	m.mu.Lock()
	m.Clients[conn] = true
	m.mu.Unlock()
	slog.Debug("websocket connected", "remote", r.RemoteAddr)

	// Clients never send; reading only detects the close.
	go func() {
		defer m.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *WSManager) remove(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Clients[conn] {
		delete(m.Clients, conn)
		conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (m *WSManager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Clients)
}

func (m *WSManager) processAndBroadcast(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			m.BroadcastStats()
		}
	}
}

// BroadcastStats pushes the current system statistics.
func (m *WSManager) BroadcastStats() {
	m.broadcastMessage(WSMessage{Type: "stats", Payload: m.Service.GetSystemStats()})
}

// BroadcastAlert sends an alert object to all connected clients
func (m *WSManager) BroadcastAlert(alert domain.SuspiciousEvent) {
	m.broadcastMessage(WSMessage{Type: "alert", Payload: alert})
}

// BroadcastReport sends a report to all connected clients
func (m *WSManager) BroadcastReport(report domain.Report) {
	m.broadcastMessage(WSMessage{Type: "report", Payload: report})
}

func (m *WSManager) broadcastMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal error", "type", msg.Type, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.Clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(m.Clients, conn)
		}
	}
}

func (m *WSManager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.Clients {
		conn.Close()
		delete(m.Clients, conn)
	}
}
