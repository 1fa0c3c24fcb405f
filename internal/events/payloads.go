package events

import "time"

// CollectionChanged is published on a CollectionTopic whenever the local
// mirror of that collection mutates (local write or remote snapshot install).
type CollectionChanged struct {
	Collection string
	Size       int
	Remote     bool // true when the change came from a remote snapshot
}

// SessionStarted is published on TopicSession after a successful login.
type SessionStarted struct {
	StaffID string
	Role    string
}

// SessionEnded is published on TopicSession when credentials are cleared.
type SessionEnded struct {
	StaffID string
	Reason  string // "logout", "deactivated", "removed", "idle_timeout"
}

// ConnectivityChanged is published on TopicConnectivity on online/offline transitions.
type ConnectivityChanged struct {
	Online bool
}

// NotificationFresh is published on TopicNotifications for notifications that
// arrived inside the freshness window (i.e. the ones worth a toast).
type NotificationFresh struct {
	ID       string
	Title    string
	Body     string
	Audience string
	At       time.Time
}
