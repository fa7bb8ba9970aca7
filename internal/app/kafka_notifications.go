package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"palmshell-dispatch/internal/service/notify"
	"palmshell-dispatch/internal/transport/kafka"
)

const notificationHandleTimeout = 10 * time.Second

type eventHandler interface {
	Handle(ctx context.Context, e notify.Event) error
}

// makeNotificationsKafka adapts the processor to the consumer. Events without
// a recipient and failures marked permanent are not redelivered.
func makeNotificationsKafka(h eventHandler) kafka.HandleFunc {
	return func(ctx context.Context, event notify.Event) error {
		if event.UserID <= 0 {
			return kafka.Permanent(fmt.Errorf("notification %q has no recipient", event.Kind))
		}

		hCtx, cancel := context.WithTimeout(ctx, notificationHandleTimeout)
		defer cancel()

		err := h.Handle(hCtx, event)
		if errors.Is(err, notify.ErrPermanent) {
			return kafka.Permanent(err)
		}
		return err
	}
}
