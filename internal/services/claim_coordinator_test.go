package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paynotify-system/internal/domain"
	"paynotify-system/pkg/logger"
)

func newTestCoordinator() (*ClaimCoordinator, *memPaymentRepo, *memAuditRepo, *fakeEventPub) {
	paymentRepo := newMemPaymentRepo()
	auditRepo := newMemAuditRepo()
	directory := &fakeDirectory{sellers: map[string][]string{
		"admin-1": {"seller-1", "seller-2", "seller-3"},
	}}
	eventPub := &fakeEventPub{}
	coordinator := NewClaimCoordinator(paymentRepo, auditRepo, directory, eventPub, logger.Nop())
	return coordinator, paymentRepo, auditRepo, eventPub
}

func testFacts() *domain.TransactionFacts {
	return &domain.TransactionFacts{
		Amount:       150.0,
		SenderName:   "Maria Clara Souza",
		SecurityCode: "483921",
		ExternalCode: "EXT-483921",
	}
}

func TestSubmitCreatesPendingPayment(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator()

	payment, created, err := coordinator.Submit(context.Background(), "admin-1", testFacts(), "hash-1")
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, domain.PaymentPending, payment.Status)
	assert.Equal(t, "admin-1", payment.AdministratorID)
	assert.Equal(t, 150.0, payment.Amount)
	assert.Equal(t, "EXT-483921", payment.ExternalCode)
	assert.Empty(t, payment.ResolvedBy)
	assert.Nil(t, payment.ResolvedAt)
}

func TestSubmitIdempotentOnDedupHash(t *testing.T) {
	coordinator, _, auditRepo, _ := newTestCoordinator()
	ctx := context.Background()

	first, created, err := coordinator.Submit(ctx, "admin-1", testFacts(), "hash-dup")
	require.NoError(t, err)
	require.True(t, created)

	// Simulate the ingestion pipeline linking the audit record.
	require.NoError(t, auditRepo.CreateRecord(ctx, &domain.AuditRecord{
		ID: "audit-1", DedupHash: "hash-dup", DecodingStatus: domain.DecodingSuccess,
	}))
	require.NoError(t, auditRepo.LinkPayment(ctx, "audit-1", first.ID))

	second, created, err := coordinator.Submit(ctx, "admin-1", testFacts(), "hash-dup")
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestClaimAtMostOneWinner(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	payment, _, err := coordinator.Submit(ctx, "admin-1", testFacts(), "hash-race")
	require.NoError(t, err)

	const callers = 20
	sellers := []string{"seller-1", "seller-2", "seller-3"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	conflicts := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			seller := sellers[n%len(sellers)]

			var err error
			if n%2 == 0 {
				_, err = coordinator.Claim(ctx, payment.ID, seller)
			} else {
				_, err = coordinator.Reject(ctx, payment.ID, seller, "not mine")
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case domain.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, callers-1, conflicts)
}

func TestResolvedPaymentIsTerminal(t *testing.T) {
	coordinator, paymentRepo, _, _ := newTestCoordinator()
	ctx := context.Background()

	payment, _, err := coordinator.Submit(ctx, "admin-1", testFacts(), "hash-terminal")
	require.NoError(t, err)

	confirmed, err := coordinator.Claim(ctx, payment.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, confirmed.Status)
	assert.Equal(t, "seller-1", confirmed.ResolvedBy)
	require.NotNil(t, confirmed.ResolvedAt)

	// Every later attempt loses, no matter the action or the seller.
	for i := 0; i < 3; i++ {
		_, err = coordinator.Claim(ctx, payment.ID, "seller-2")
		assert.True(t, domain.IsConflict(err))

		_, err = coordinator.Reject(ctx, payment.ID, "seller-3", "late")
		assert.True(t, domain.IsConflict(err))
	}

	stored, err := paymentRepo.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, stored.Status)
	assert.Equal(t, "seller-1", stored.ResolvedBy)
}

func TestRejectTransitionsToRejectedBySeller(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	payment, _, err := coordinator.Submit(ctx, "admin-1", testFacts(), "hash-reject")
	require.NoError(t, err)

	rejected, err := coordinator.Reject(ctx, payment.ID, "seller-2", "wrong amount")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentRejectedBySeller, rejected.Status)
	assert.Equal(t, "seller-2", rejected.ResolvedBy)
}

func TestClaimUnknownPayment(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator()

	_, err := coordinator.Claim(context.Background(), "payment-missing", "seller-1")

	var nfe *domain.NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, domain.UnknownPayment, nfe.Kind)
}

func TestClaimUnknownSeller(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator()
	ctx := context.Background()

	payment, _, err := coordinator.Submit(ctx, "admin-1", testFacts(), "hash-seller")
	require.NoError(t, err)

	_, err = coordinator.Claim(ctx, payment.ID, "seller-of-other-admin")

	var nfe *domain.NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, domain.UnknownSeller, nfe.Kind)

	// Losing on identity must not burn the pending state.
	stored, err := coordinator.Claim(ctx, payment.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, stored.Status)
}

func TestClaimPublishesResolutionEvent(t *testing.T) {
	coordinator, _, _, eventPub := newTestCoordinator()
	ctx := context.Background()

	payment, _, err := coordinator.Submit(ctx, "admin-1", testFacts(), "hash-event")
	require.NoError(t, err)

	_, err = coordinator.Claim(ctx, payment.ID, "seller-1")
	require.NoError(t, err)

	events := eventPub.published()
	require.Len(t, events, 1)
	assert.Equal(t, domain.PaymentResolvedEvent, events[0].Type)
	assert.Equal(t, payment.ID, events[0].PaymentID)
	assert.Equal(t, domain.PaymentConfirmed, events[0].Status)
	assert.Equal(t, "seller-1", events[0].ResolvedBy)
}
