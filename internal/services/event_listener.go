package services

import (
	"context"
	"fmt"

	"paynotify-system/internal/domain"
	"paynotify-system/pkg/logger"
)

// EventListener bridges the event bus to the local broadcast gateway. Every
// push-service instance runs one, so each instance fans out to the sellers
// connected to it.
type EventListener struct {
	broadcaster domain.PaymentBroadcaster
	log         logger.Logger
}

func NewEventListener(broadcaster domain.PaymentBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster: broadcaster,
		log:         log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting payment event listener")
	return subscriber.SubscribeToPaymentEvents(ctx, el.handlePaymentEvent)
}

func (el *EventListener) handlePaymentEvent(event *domain.PaymentEvent) error {
	el.log.Info("Handling payment event",
		"type", event.Type, "payment_id", event.PaymentID, "administrator_id", event.AdministratorID)

	switch event.Type {
	case domain.PaymentPendingEvent:
		return el.broadcaster.BroadcastNewPayment(context.Background(), event.AdministratorID,
			&domain.NewPaymentView{
				Type:       "new_payment",
				PaymentID:  event.PaymentID,
				Amount:     event.Amount,
				SenderName: event.SenderName,
				CreatedAt:  event.Timestamp,
			})
	case domain.PaymentResolvedEvent:
		return el.broadcaster.BroadcastResolution(context.Background(), event.AdministratorID,
			&domain.ResolutionView{
				Type:       "payment_resolved",
				PaymentID:  event.PaymentID,
				Status:     event.Status,
				ResolvedBy: event.ResolvedBy,
				ResolvedAt: event.Timestamp,
			})
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}
