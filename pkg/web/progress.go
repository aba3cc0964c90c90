package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/tinies/internal/metrics"
	"github.com/harun/tinies/pkg/generation"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StageMessage is pushed to progress clients on every stage transition
type StageMessage struct {
	Type      string `json:"type"`
	Stage     string `json:"stage"`
	Label     string `json:"label,omitempty"`
	Error     string `json:"error,omitempty"`
	Seq       int64  `json:"seq"`
	Timestamp int64  `json:"timestamp"`
}

// progressClient is one websocket connection following a session
type progressClient struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	mu        sync.Mutex
}

func (c *progressClient) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// ProgressHub fans generation stage events out to the websocket clients of
// the session that triggered them
type ProgressHub struct {
	mu       sync.RWMutex
	clients  map[string]map[string]*progressClient
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	seq      uint64
}

// NewProgressHub creates an empty hub
func NewProgressHub(m *metrics.Metrics, logger zerolog.Logger) *ProgressHub {
	return &ProgressHub{
		clients: make(map[string]map[string]*progressClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		metrics: m,
		logger:  logger.With().Str("module", "progress").Logger(),
	}
}

// StageChanged implements generation.Observer
func (h *ProgressHub) StageChanged(ctx context.Context, ev generation.Event) {
	msg := StageMessage{
		Type:      "stage",
		Stage:     string(ev.Stage),
		Label:     stageLabels[ev.Stage],
		Seq:       int64(atomic.AddUint64(&h.seq, 1)),
		Timestamp: ev.At.UnixMilli(),
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	h.Publish(ev.SessionID, msg)
}

// Publish sends msg to every client following sessionID
func (h *ProgressHub) Publish(sessionID string, msg StageMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("stage", msg.Stage).Msg("Failed to marshal stage event")
		return
	}

	h.mu.RLock()
	targets := make([]*progressClient, 0, len(h.clients[sessionID]))
	for _, c := range h.clients[sessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	failed := 0
	for _, c := range targets {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.logger.Debug().Err(err).Str("client_id", c.id).Msg("Failed to push stage event")
			failed++
		}
	}

	h.logger.Trace().
		Str("stage", msg.Stage).
		Int("clients", len(targets)).
		Int("failed", failed).
		Msg("Stage event published")
}

// ClientCount returns the number of connected clients for sessionID
func (h *ProgressHub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Serve upgrades the request and follows sessionID until the client leaves
func (h *ProgressHub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade connection")
		return
	}

	id, _ := gonanoid.New()
	c := &progressClient{id: id, sessionID: sessionID, conn: conn}
	h.add(c)

	h.logger.Debug().Str("client_id", id).Msg("Progress client connected")

	done := make(chan struct{})
	go h.keepAlive(c, done)
	h.readLoop(c)
	close(done)

	h.remove(c)
	conn.Close()

	h.logger.Debug().Str("client_id", id).Msg("Progress client disconnected")
}

// Close disconnects every client
func (h *ProgressHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for _, c := range set {
			c.mu.Lock()
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			c.mu.Unlock()
			c.conn.Close()
		}
	}
}

// readLoop discards client messages and returns when the connection drops
func (h *ProgressHub) readLoop(c *progressClient) {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ProgressHub) keepAlive(c *progressClient, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *ProgressHub) add(c *progressClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.sessionID]
	if !ok {
		set = make(map[string]*progressClient)
		h.clients[c.sessionID] = set
	}
	set[c.id] = c
	if h.metrics != nil {
		h.metrics.ProgressClients.Inc()
	}
}

func (h *ProgressHub) remove(c *progressClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.sessionID]
	if _, ok := set[c.id]; !ok {
		return
	}
	delete(set, c.id)
	if len(set) == 0 {
		delete(h.clients, c.sessionID)
	}
	if h.metrics != nil {
		h.metrics.ProgressClients.Dec()
	}
}

var stageLabels = map[generation.Stage]string{
	generation.StageTranslating:   "מתרגם את ההנחיה...",
	generation.StageInvoking:      "מייצר תמונה נא להמתין בסבלנות...",
	generation.StageMaterializing: "שומר את התמונה...",
	generation.StagePresenting:    "מכין את התצוגה...",
	generation.StageNotifying:     "שולח את התמונה...",
	generation.StageCleaningUp:    "מנקה קבצים זמניים...",
	generation.StageDone:          "הסתיים",
}
