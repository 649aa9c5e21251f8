package services

import (
	"context"
	"time"

	"paynotify-system/internal/domain"
	"paynotify-system/pkg/logger"
	"paynotify-system/pkg/metrics"
	"paynotify-system/pkg/utils"
)

// ClaimCoordinator owns the payment-notification lifecycle. The storage
// layer's conditional update is the only ordering authority for racing
// claims; the coordinator holds no locks of its own, so the at-most-one
// winner guarantee survives multiple process instances.
type ClaimCoordinator struct {
	paymentRepo domain.PaymentRepository
	auditRepo   domain.AuditRepository
	directory   domain.SellerDirectory
	eventPub    domain.EventPublisher
	log         logger.Logger
}

func NewClaimCoordinator(
	paymentRepo domain.PaymentRepository,
	auditRepo domain.AuditRepository,
	directory domain.SellerDirectory,
	eventPub domain.EventPublisher,
	log logger.Logger,
) *ClaimCoordinator {
	return &ClaimCoordinator{
		paymentRepo: paymentRepo,
		auditRepo:   auditRepo,
		directory:   directory,
		eventPub:    eventPub,
		log:         log,
	}
}

// Submit creates a pending payment notification for the decoded facts. It is
// idempotent with respect to the dedup hash: repeated submissions of an
// already linked notification surface the existing record instead of
// creating a duplicate. The bool reports whether a new record was created.
func (c *ClaimCoordinator) Submit(ctx context.Context, administratorID string, facts *domain.TransactionFacts, dedupHash string) (*domain.PaymentNotification, bool, error) {
	existingID, err := c.auditRepo.FindLinkedPaymentByHash(ctx, dedupHash)
	if err != nil {
		return nil, false, err
	}
	if existingID != "" {
		c.log.Info("Duplicate submission, surfacing existing payment",
			"dedup_hash", dedupHash, "payment_id", existingID)
		existing, err := c.paymentRepo.GetPayment(ctx, existingID)
		return existing, false, err
	}

	payment := &domain.PaymentNotification{
		ID:              utils.GenerateID("payment"),
		AdministratorID: administratorID,
		Amount:          facts.Amount,
		SenderName:      facts.SenderName,
		ExternalCode:    facts.ExternalCode,
		Status:          domain.PaymentPending,
		CreatedAt:       time.Now(),
	}

	if err := c.paymentRepo.CreatePayment(ctx, payment); err != nil {
		return nil, false, err
	}

	c.log.Info("Payment notification created",
		"payment_id", payment.ID, "administrator_id", administratorID, "amount", payment.Amount)
	return payment, true, nil
}

// Claim atomically transitions the payment to confirmed for this seller.
// Losing the race is a routine outcome reported as a ConflictError.
func (c *ClaimCoordinator) Claim(ctx context.Context, paymentID, sellerID string) (*domain.PaymentNotification, error) {
	payment, err := c.resolve(ctx, paymentID, sellerID, domain.PaymentConfirmed)
	c.countAttempt("claim", err)
	return payment, err
}

// Reject is the symmetric transition to rejected_by_seller. The reason is
// recorded in the logs only; it does not change the transition.
func (c *ClaimCoordinator) Reject(ctx context.Context, paymentID, sellerID, reason string) (*domain.PaymentNotification, error) {
	payment, err := c.resolve(ctx, paymentID, sellerID, domain.PaymentRejectedBySeller)
	if err == nil {
		c.log.Info("Payment rejected by seller",
			"payment_id", paymentID, "seller_id", sellerID, "reason", reason)
	}
	c.countAttempt("reject", err)
	return payment, err
}

func (c *ClaimCoordinator) resolve(ctx context.Context, paymentID, sellerID string, status domain.PaymentStatus) (*domain.PaymentNotification, error) {
	payment, err := c.paymentRepo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	member, err := c.directory.IsSellerOf(ctx, payment.AdministratorID, sellerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, &domain.NotFoundError{Kind: domain.UnknownSeller, ID: sellerID}
	}

	resolvedAt := time.Now()
	won, err := c.paymentRepo.ResolvePayment(ctx, paymentID, sellerID, status, resolvedAt)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, &domain.ConflictError{PaymentID: paymentID}
	}

	payment.Status = status
	payment.ResolvedBy = sellerID
	payment.ResolvedAt = &resolvedAt

	c.publishResolved(ctx, payment)
	return payment, nil
}

// publishResolved is fire-and-forget: fan-out failures must never fail the
// claim that already committed.
func (c *ClaimCoordinator) publishResolved(ctx context.Context, payment *domain.PaymentNotification) {
	event := &domain.PaymentEvent{
		Type:            domain.PaymentResolvedEvent,
		PaymentID:       payment.ID,
		AdministratorID: payment.AdministratorID,
		Amount:          payment.Amount,
		SenderName:      payment.SenderName,
		Status:          payment.Status,
		ResolvedBy:      payment.ResolvedBy,
		Timestamp:       *payment.ResolvedAt,
	}

	if err := c.eventPub.PublishPaymentEvent(ctx, event); err != nil {
		c.log.Error("Failed to publish resolution event",
			"payment_id", payment.ID, "error", err)
	}
}

func (c *ClaimCoordinator) countAttempt(action string, err error) {
	outcome := "won"
	switch {
	case domain.IsConflict(err):
		outcome = "conflict"
	case err != nil:
		outcome = "error"
	}
	metrics.ClaimAttempts.WithLabelValues(action, outcome).Inc()
}
