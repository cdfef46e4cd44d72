package services

import "cloudvps-backend/internal/models"

// Broadcaster receives engine events after each committed mutation.
// Implementations must not block.
type Broadcaster interface {
	BroadcastStateUpdate(userID string, reason string)
	BroadcastNotification(userID string, n models.Notification)
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastStateUpdate(string, string) {}
func (noopBroadcaster) BroadcastNotification(string, models.Notification) {}
