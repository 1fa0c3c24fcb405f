// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"collectsync-service/internal/events"
	"collectsync-service/internal/store"

	"go.uber.org/zap"
)

// Hub bridges the in-process event bus to connected UI clients: every
// collection change, fresh notification and connectivity transition is pushed
// to the clients subscribed to the matching channel. A forced logout closes
// the affected staff member's connections.
type Hub struct {
	logger *zap.Logger
	bus    *events.Bus

	clients map[string]map[*Client]bool // keyed by staff id
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	unsubs []func()
}

type broadcastMessage struct {
	staffID string // empty = everyone
	channel Channel
	message *Message
	evict   bool // close the targeted clients after sending
}

func NewHub(bus *events.Bus, logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		bus:        bus,
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run pumps registrations and broadcasts until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	h.bindBus()
	defer h.unbindBus()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// bindBus mirrors bus topics into client channels.
func (h *Hub) bindBus() {
	for _, collection := range store.Tracked() {
		collection := collection
		h.unsubs = append(h.unsubs, h.bus.Subscribe(events.CollectionTopic(collection), func(ev events.Event) {
			h.enqueue(&broadcastMessage{
				channel: CollectionChannel(collection),
				message: NewMessage(EventTypeCollectionChanged, ev.Payload),
			})
		}))
	}

	h.unsubs = append(h.unsubs, h.bus.Subscribe(events.TopicNotifications, func(ev events.Event) {
		fresh, ok := ev.Payload.(events.NotificationFresh)
		if !ok {
			return
		}
		target := ""
		if fresh.Audience != "all" {
			target = fresh.Audience
		}
		h.enqueue(&broadcastMessage{
			staffID: target,
			channel: ChannelNotifications,
			message: NewMessage(EventTypeNotification, fresh),
		})
	}))

	h.unsubs = append(h.unsubs, h.bus.Subscribe(events.TopicConnectivity, func(ev events.Event) {
		h.enqueue(&broadcastMessage{
			channel: ChannelConnectivity,
			message: NewMessage(EventTypeConnectivity, ev.Payload),
		})
	}))

	h.unsubs = append(h.unsubs, h.bus.Subscribe(events.TopicSession, func(ev events.Event) {
		ended, ok := ev.Payload.(events.SessionEnded)
		if !ok || ended.Reason == "logout" {
			return
		}
		h.enqueue(&broadcastMessage{
			staffID: ended.StaffID,
			channel: ChannelSession,
			message: NewMessage(EventTypeForceLogout, map[string]interface{}{
				"reason":  ended.Reason,
				"message": "You have been logged out",
			}),
			evict: true,
		})
	}))
}

func (h *Hub) unbindBus() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
}

func (h *Hub) enqueue(msg *broadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("dropping broadcast, hub queue full",
			zap.String("channel", string(msg.channel)))
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.staffID] == nil {
		h.clients[client.staffID] = make(map[*Client]bool)
	}
	h.clients[client.staffID][client] = true

	h.logger.Info("ws client connected",
		zap.String("staff_id", client.staffID),
		zap.Int("total", h.totalClients()))

	client.SendMessage(NewMessage(EventTypeConnected, map[string]interface{}{
		"staff_id": client.staffID,
		"role":     client.role,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.staffID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()
			if len(clients) == 0 {
				delete(h.clients, client.staffID)
			}
			h.logger.Info("ws client disconnected",
				zap.String("staff_id", client.staffID),
				zap.Int("total", h.totalClients()))
		}
	}
}

func (h *Hub) deliver(msg *broadcastMessage) {
	h.mu.RLock()
	var targets []*Client
	if msg.staffID == "" {
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.channel) || msg.evict {
					targets = append(targets, client)
				}
			}
		}
	} else if clients, ok := h.clients[msg.staffID]; ok {
		for client := range clients {
			if client.IsSubscribed(msg.channel) || msg.evict {
				targets = append(targets, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.SendMessage(msg.message)
		if msg.evict {
			h.unregisterClient(client)
		}
	}
}

// ConnectedClients reports how many connections a staff account holds.
func (h *Hub) ConnectedClients(staffID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[staffID])
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
