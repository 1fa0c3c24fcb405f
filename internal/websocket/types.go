// internal/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"
)

// EventType represents the real-time event types pushed to UI clients.
type EventType string

const (
	EventTypePing        EventType = "ping"
	EventTypePong        EventType = "pong"
	EventTypeConnected   EventType = "connected"
	EventTypeError       EventType = "error"
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"

	EventTypeCollectionChanged EventType = "collection:changed"
	EventTypeNotification      EventType = "notification"
	EventTypeConnectivity      EventType = "connectivity"
	EventTypeForceLogout       EventType = "session:force_logout"
)

// Message is the universal wire format.
type Message struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewMessage(eventType EventType, data interface{}) *Message {
	return &Message{Type: eventType, Data: data, Timestamp: time.Now()}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Channel names clients can subscribe to: one per entity collection plus the
// notification, connectivity and session streams.
type Channel string

const (
	ChannelNotifications Channel = "notifications"
	ChannelConnectivity  Channel = "connectivity"
	ChannelSession       Channel = "session"
)

// CollectionChannel maps a collection name onto its channel.
func CollectionChannel(collection string) Channel {
	return Channel("collection:" + collection)
}

// SubscribeRequest is sent by a client to follow specific channels.
type SubscribeRequest struct {
	Channels []Channel `json:"channels"`
}

// ErrorData for error events.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
