package notify

import (
	"context"
	"strings"
)

type actionFunc func(context.Context, Event) error

type actionFactory struct {
	byKind map[string]actionFunc
}

func newActionFactory(onPush, onAudit actionFunc) *actionFactory {
	return &actionFactory{
		byKind: map[string]actionFunc{
			KindOrderCreated:      onPush,
			KindOrderApproved:     onPush,
			KindOrderCancelled:    onPush,
			KindPaymentPaid:       onPush,
			KindDriverAssigned:    onPush,
			KindDeliveryAssigned:  onPush,
			KindDeliveryUpdated:   onPush,
			KindDeliveryCompleted: onPush,
			KindRefundFailed:      onAudit,
			KindPaymentUnmatched:  onAudit,
		},
	}
}

func (f *actionFactory) get(kind string) (actionFunc, bool) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	fn, ok := f.byKind[kind]
	return fn, ok
}
