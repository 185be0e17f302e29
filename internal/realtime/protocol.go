// Package realtime pushes newly created notifications to connected clients
// over websockets and receives their read acknowledgements.
//
// Acknowledgements are advisory. The store stays the authority for read
// state; the hub only uses them to avoid pushing ids the user already read.
package realtime

import (
	"encoding/json"

	"learnhub.io/notifier/internal/domain"
)

// Wire event names.
const (
	// EventNew is sent server → client with one unread notification.
	EventNew = "notification:new"
	// EventRead is sent client → server with the id that was read.
	EventRead = "notification:read"
	// EventReadAll is sent client → server without payload.
	EventReadAll = "notification:read-all"
)

// Envelope is the single frame shape in both directions.
type Envelope struct {
	Event        string               `json:"event"`
	Notification *domain.Notification `json:"notification,omitempty"`
	ID           string               `json:"id,omitempty"`
}

func encodeNew(n domain.Notification) ([]byte, error) {
	return json.Marshal(Envelope{Event: EventNew, Notification: &n})
}
