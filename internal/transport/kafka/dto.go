package kafka

import (
	"strings"
	"time"

	"palmshell-dispatch/internal/service/notify"
)

// NotificationDTO is the wire form of notify.Event.
type NotificationDTO struct {
	UserID    int64             `json:"user_id"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ToDomain converts NotificationDTO to notify.Event
func ToDomain(dto NotificationDTO) notify.Event {
	return notify.Event{
		UserID:    dto.UserID,
		Kind:      strings.TrimSpace(dto.Kind),
		Title:     strings.TrimSpace(dto.Title),
		Body:      strings.TrimSpace(dto.Body),
		Data:      dto.Data,
		CreatedAt: dto.CreatedAt,
	}
}
