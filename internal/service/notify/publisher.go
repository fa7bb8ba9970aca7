package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"palmshell-dispatch/internal/logx"
)

// Publisher turns notifications into events on the message bus.
type Publisher struct {
	producer EventProducer
	logger   logx.Logger
	now      func() time.Time
}

// NewPublisher returns a Publisher writing through producer.
func NewPublisher(producer EventProducer, logger logx.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Notify publishes the notification keyed by user id, so one user's events stay ordered.
func (p *Publisher) Notify(ctx context.Context, userID int64, n Notification) error {
	if userID <= 0 {
		return fmt.Errorf("notify: invalid user id %d", userID)
	}
	ev := Event{
		UserID:    userID,
		Kind:      n.Kind,
		Title:     n.Title,
		Body:      n.Body,
		Data:      n.Data,
		CreatedAt: p.now(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.producer.Publish(ctx, strconv.FormatInt(userID, 10), b); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	p.logger.Debug("notification published",
		logx.Int64("user_id", userID),
		logx.String("kind", n.Kind),
	)
	return nil
}

// LogNotifier only writes notifications to the log. Used when no bus is configured.
type LogNotifier struct {
	logger logx.Logger
}

// NewLogNotifier returns a LogNotifier.
func NewLogNotifier(logger logx.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (l *LogNotifier) Notify(_ context.Context, userID int64, n Notification) error {
	l.logger.Info("notification",
		logx.String("event", "notification_logged"),
		logx.Int64("user_id", userID),
		logx.String("kind", n.Kind),
		logx.String("title", n.Title),
	)
	return nil
}

var (
	_ Notifier = (*Publisher)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
