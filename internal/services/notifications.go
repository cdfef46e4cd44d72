package services

import "cloudvps-backend/internal/models"

func (e *Engine) Notifications(userID string) ([]models.Notification, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.Notification, len(s.Notifications))
	copy(out, s.Notifications)
	return out, s.UnreadCount(), nil
}

func (e *Engine) MarkAllRead(userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return err
	}
	for i := range s.Notifications {
		s.Notifications[i].Read = true
	}
	e.commit(userID, "notifications")
	return nil
}

func (e *Engine) ClearNotifications(userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return err
	}
	s.Notifications = []models.Notification{}
	e.commit(userID, "notifications")
	return nil
}
