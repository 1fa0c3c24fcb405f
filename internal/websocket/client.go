// internal/websocket/client.go
package websocket

import (
	"context"
	"sync"
	"time"

	"collectsync-service/internal/domain/staff"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one UI connection following a set of channels.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	logger  *zap.Logger
	send    chan []byte
	staffID string
	role    staff.Role

	subscriptions map[Channel]bool
	subMu         sync.RWMutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, staffID string, role staff.Role, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:           hub,
		conn:          conn,
		logger:        logger,
		send:          make(chan []byte, 256),
		staffID:       staffID,
		role:          role,
		subscriptions: make(map[Channel]bool),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (c *Client) Subscribe(channel Channel) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscriptions[channel] = true
}

func (c *Client) Unsubscribe(channel Channel) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.subscriptions, channel)
}

func (c *Client) IsSubscribed(channel Channel) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[channel]
}

// ReadPump handles incoming messages until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Debug("websocket error", zap.Error(err))
				}
				return
			}
			c.handleMessage(message)
		}
	}
}

// WritePump flushes outgoing messages and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		c.SendError("invalid_message", "failed to parse message")
		return
	}

	switch msg.Type {
	case EventTypePing:
		c.SendMessage(NewMessage(EventTypePong, nil))

	case EventTypeSubscribe:
		var req SubscribeRequest
		if err := remarshal(msg.Data, &req); err != nil {
			c.SendError("invalid_subscribe", "invalid subscribe request")
			return
		}
		for _, channel := range req.Channels {
			c.Subscribe(channel)
		}
		c.SendMessage(NewMessage(EventTypeSubscribe, map[string]interface{}{
			"channels": req.Channels,
			"status":   "subscribed",
		}))

	case EventTypeUnsubscribe:
		var req SubscribeRequest
		if err := remarshal(msg.Data, &req); err != nil {
			c.SendError("invalid_unsubscribe", "invalid unsubscribe request")
			return
		}
		for _, channel := range req.Channels {
			c.Unsubscribe(channel)
		}
		c.SendMessage(NewMessage(EventTypeUnsubscribe, map[string]interface{}{
			"channels": req.Channels,
			"status":   "unsubscribed",
		}))
	}
}

// SendMessage queues a message; a full queue drops the connection rather than
// blocking the hub. Sends after Close are discarded.
func (c *Client) SendMessage(msg *Message) {
	data, err := msg.ToJSON()
	if err != nil {
		c.logger.Warn("failed to marshal ws message", zap.Error(err))
		return
	}
	if c.ctx.Err() != nil {
		return
	}

	select {
	case c.send <- data:
	default:
		c.Close()
	}
}

func (c *Client) SendError(code, message string) {
	c.SendMessage(NewMessage(EventTypeError, ErrorData{Code: code, Message: message}))
}

// Close shuts the client down by canceling its context; the send channel is
// never closed, so concurrent SendMessage calls cannot panic during shutdown.
// Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(c.cancel)
}
