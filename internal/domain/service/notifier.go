package service

import (
	"context"
)

// AdminChannel addresses a notice to every admin user.
const AdminChannel = "role:admin"

type Notice struct {
	RecipientID string
	Event       string
	Title       string
	Message     string
	Priority    string
	Category    string
	EntityID    string
	Data        map[string]interface{}
}

// Notifier delivers notices at most once. Notify must not block on delivery
// and has no error to report; a lost notice never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// RealtimePublisher pushes an event to every live connection of a user.
type RealtimePublisher interface {
	SendToUser(userID string, event string, payload interface{}) error
}
