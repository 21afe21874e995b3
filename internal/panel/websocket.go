package panel

import (
	"encoding/json"
	"net/http"
	"time"

	"commentflow/internal/bus"
	"commentflow/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	clientQueue  = 32
	writeTimeout = 5 * time.Second
)

// feedMessage is one entry of the live event feed.
type feedMessage struct {
	Type      string         `json:"type"`
	Source    string         `json:"source,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The panel listens on loopback; only its own page may connect.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host
	},
}

// wsClient is one connected feed. Writes happen only on its writer
// goroutine, fed through send.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func (p *Panel) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, clientQueue)}
	p.mu.Lock()
	p.clients[client] = struct{}{}
	p.mu.Unlock()
	p.logger.Debug("feed client connected", "remote", r.RemoteAddr)

	go p.writeLoop(client)

	// Initial status so the page can render the toggle immediately.
	status := map[string]any{"enabled": false}
	if resp, err := p.caller.Call(r.Context(), "panel", domain.GetIsEnabledStreaming{}); err == nil {
		status["enabled"] = resp.Flag
	}
	p.sendTo(client, feedMessage{Type: "status", Source: "panel", Payload: status, Timestamp: time.Now()})

	// Read until the client goes away; the feed is one-way.
	defer p.removeClient(client)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Debug("websocket read error", "err", err)
			}
			return
		}
	}
}

func (p *Panel) writeLoop(c *wsClient) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			p.logger.Debug("websocket write failed", "err", err)
			c.conn.Close()
			return
		}
	}
}

// broadcastEvent runs on the emitting goroutine and never blocks: a client
// whose queue is full misses the event.
func (p *Panel) broadcastEvent(e bus.Event) {
	msg := feedMessage{Type: e.Type, Source: e.Source, Payload: e.Payload, Timestamp: e.Timestamp}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for c := range p.clients {
		p.enqueue(c, msg)
	}
}

func (p *Panel) sendTo(c *wsClient, msg feedMessage) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.clients[c]; ok {
		p.enqueue(c, msg)
	}
}

// enqueue requires p.mu held.
func (p *Panel) enqueue(c *wsClient, msg feedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		p.logger.Debug("feed client slow, event dropped", "type", msg.Type)
	}
}

func (p *Panel) removeClient(c *wsClient) {
	p.mu.Lock()
	if _, ok := p.clients[c]; ok {
		delete(p.clients, c)
		close(c.send)
	}
	p.mu.Unlock()
	c.conn.Close()
}

func (p *Panel) closeAllClients() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := range p.clients {
		delete(p.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

// ClientCount reports connected feed clients.
func (p *Panel) ClientCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}
