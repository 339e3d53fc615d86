package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/audit"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/config"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/logging"
	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

// Event channels published by the hub.
const (
	ChannelReadingRecorded   = "reading.recorded"
	ChannelAlertRaised       = "alert.raised"
	ChannelCommandDispatched = "command.dispatched"

	// channelAll matches every channel.
	channelAll = "*"
)

// Hub fans store and dispatcher events out to websocket clients. It
// satisfies telemetry.Listener and command.Listener.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its send queue. Safe to call
// more than once.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.closeSend()
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes payload once and queues it for every client
// subscribed to channel. Slow clients drop messages.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		if c.isSubscribed(channel) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range targets {
		if !c.enqueue(data) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("websocket event dropped for slow clients", "channel", channel, "dropped", dropped)
	}
}

func (h *Hub) ReadingRecorded(r telemetry.Reading) {
	h.Broadcast(ChannelReadingRecorded, r)
}

func (h *Hub) AlertRaised(a telemetry.Alert) {
	h.Broadcast(ChannelAlertRaised, a)
}

func (h *Hub) CommandDispatched(entry audit.CommandLog) {
	h.Broadcast(ChannelCommandDispatched, entry)
}
