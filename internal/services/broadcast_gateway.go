package services

import (
	"context"
	"encoding/json"

	"paynotify-system/internal/domain"
	"paynotify-system/pkg/logger"
	"paynotify-system/pkg/metrics"
)

// BroadcastGateway fans a domain event out to every seller of an
// administrator with a live connection. Delivery is best-effort and
// at-most-once: a send failure is logged and counted, never retried, and
// never aborts delivery to the remaining connections.
type BroadcastGateway struct {
	directory domain.SellerDirectory
	registry  domain.ConnectionRegistry
	log       logger.Logger
}

func NewBroadcastGateway(directory domain.SellerDirectory, registry domain.ConnectionRegistry,
	log logger.Logger) *BroadcastGateway {
	return &BroadcastGateway{
		directory: directory,
		registry:  registry,
		log:       log,
	}
}

func (g *BroadcastGateway) BroadcastNewPayment(ctx context.Context, administratorID string, view *domain.NewPaymentView) error {
	return g.broadcast(ctx, administratorID, view)
}

func (g *BroadcastGateway) BroadcastResolution(ctx context.Context, administratorID string, view *domain.ResolutionView) error {
	return g.broadcast(ctx, administratorID, view)
}

func (g *BroadcastGateway) broadcast(ctx context.Context, administratorID string, message interface{}) error {
	sellerIDs, err := g.directory.SellersFor(ctx, administratorID)
	if err != nil {
		return err
	}

	connections := g.registry.ConnectionsFor(sellerIDs)
	if len(connections) == 0 {
		g.log.Debug("No open connections for broadcast", "administrator_id", administratorID)
		return nil
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(payload); err != nil {
			metrics.BroadcastFailures.Inc()
			g.log.Error("Failed to send message",
				"seller_id", conn.SellerID(), "error", err)
			continue
		}
		metrics.BroadcastsSent.Inc()
	}

	return nil
}
