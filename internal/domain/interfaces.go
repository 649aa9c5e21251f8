package domain

import (
	"context"
	"time"
)

// Repository interfaces
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *PaymentNotification) error
	GetPayment(ctx context.Context, paymentID string) (*PaymentNotification, error)
	// ResolvePayment performs the conditional transition pending -> status.
	// It must be a single atomic statement at the storage boundary; the
	// returned bool reports whether this caller won the transition.
	ResolvePayment(ctx context.Context, paymentID, sellerID string, status PaymentStatus, resolvedAt time.Time) (bool, error)
}

type AuditRepository interface {
	CreateRecord(ctx context.Context, record *AuditRecord) error
	MarkDecoded(ctx context.Context, recordID string, facts *TransactionFacts) error
	MarkFailed(ctx context.Context, recordID string, reason string) error
	LinkPayment(ctx context.Context, recordID, paymentID string) error
	// FindLinkedPaymentByHash returns the payment id an earlier record with
	// the same dedup hash was linked to, or "" when there is none.
	FindLinkedPaymentByHash(ctx context.Context, dedupHash string) (string, error)
}

// SellerDirectory resolves the sellers attached to an administrator. The
// directory itself is maintained elsewhere; this side only reads it.
type SellerDirectory interface {
	SellersFor(ctx context.Context, administratorID string) ([]string, error)
	IsSellerOf(ctx context.Context, administratorID, sellerID string) (bool, error)
}

// Event interfaces
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event *PaymentEvent) error
}

type EventSubscriber interface {
	SubscribeToPaymentEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *PaymentEvent) error

// Broadcast interface: best-effort fan-out, no delivery guarantee.
type PaymentBroadcaster interface {
	BroadcastNewPayment(ctx context.Context, administratorID string, view *NewPaymentView) error
	BroadcastResolution(ctx context.Context, administratorID string, view *ResolutionView) error
}

// TokenVerifier resolves a bearer credential to a subject identity.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

type Identity struct {
	SubjectID       string
	AdministratorID string
	Role            string
}

// WebSocket interfaces
type SellerConnection interface {
	Send(message []byte) error
	Close() error
	IsOpen() bool
	SellerID() string
	AdministratorID() string
}

type ConnectionRegistry interface {
	Register(sellerID string, conn SellerConnection)
	Unregister(sellerID string)
	// UnregisterIfSame removes the entry only while it still holds conn,
	// so a finished lifecycle cannot evict the connection that replaced it.
	UnregisterIfSame(sellerID string, conn SellerConnection)
	ConnectionsFor(sellerIDs []string) []SellerConnection
	IsConnected(sellerID string) bool
	PruneClosed() int
}
