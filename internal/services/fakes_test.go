package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"paynotify-system/internal/domain"
)

// memPaymentRepo honours the same conditional-update contract as the MySQL
// repository: ResolvePayment succeeds only while the row is still pending.
type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*domain.PaymentNotification
	failNext error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: make(map[string]*domain.PaymentNotification)}
}

func (r *memPaymentRepo) CreatePayment(_ context.Context, payment *domain.PaymentNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	copied := *payment
	r.payments[payment.ID] = &copied
	return nil
}

func (r *memPaymentRepo) GetPayment(_ context.Context, paymentID string) (*domain.PaymentNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, exists := r.payments[paymentID]
	if !exists {
		return nil, &domain.NotFoundError{Kind: domain.UnknownPayment, ID: paymentID}
	}
	copied := *payment
	return &copied, nil
}

func (r *memPaymentRepo) ResolvePayment(_ context.Context, paymentID, sellerID string, status domain.PaymentStatus, resolvedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, exists := r.payments[paymentID]
	if !exists || payment.Status != domain.PaymentPending {
		return false, nil
	}
	payment.Status = status
	payment.ResolvedBy = sellerID
	payment.ResolvedAt = &resolvedAt
	return true, nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	records map[string]*domain.AuditRecord
	// linked maps dedup hash -> payment id for successfully linked records.
	linked map[string]string
	calls  []string
}

func newMemAuditRepo() *memAuditRepo {
	return &memAuditRepo{
		records: make(map[string]*domain.AuditRecord),
		linked:  make(map[string]string),
	}
}

func (r *memAuditRepo) CreateRecord(_ context.Context, record *domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *record
	r.records[record.ID] = &copied
	r.calls = append(r.calls, "create")
	return nil
}

func (r *memAuditRepo) MarkDecoded(_ context.Context, recordID string, facts *domain.TransactionFacts) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, exists := r.records[recordID]
	if !exists {
		return errors.New("unknown audit record")
	}
	record.DecodingStatus = domain.DecodingSuccess
	record.ExtractedAmount = facts.Amount
	record.ExtractedName = facts.SenderName
	record.ExtractedCode = facts.SecurityCode
	r.calls = append(r.calls, "decoded")
	return nil
}

func (r *memAuditRepo) MarkFailed(_ context.Context, recordID string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, exists := r.records[recordID]
	if !exists {
		return errors.New("unknown audit record")
	}
	record.DecodingStatus = domain.DecodingFailed
	record.DecodingError = reason
	r.calls = append(r.calls, "failed")
	return nil
}

func (r *memAuditRepo) LinkPayment(_ context.Context, recordID, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, exists := r.records[recordID]
	if !exists {
		return errors.New("unknown audit record")
	}
	record.LinkedPaymentID = paymentID
	if record.DecodingStatus == domain.DecodingSuccess {
		r.linked[record.DedupHash] = paymentID
	}
	r.calls = append(r.calls, "link")
	return nil
}

func (r *memAuditRepo) FindLinkedPaymentByHash(_ context.Context, dedupHash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.linked[dedupHash], nil
}

func (r *memAuditRepo) recordFor(recordID string) *domain.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.records[recordID]
	if record == nil {
		return nil
	}
	copied := *record
	return &copied
}

func (r *memAuditRepo) onlyRecord() *domain.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		copied := *record
		return &copied
	}
	return nil
}

func (r *memAuditRepo) callSequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeDirectory struct {
	sellers map[string][]string
}

func (d *fakeDirectory) SellersFor(_ context.Context, administratorID string) ([]string, error) {
	return d.sellers[administratorID], nil
}

func (d *fakeDirectory) IsSellerOf(_ context.Context, administratorID, sellerID string) (bool, error) {
	for _, id := range d.sellers[administratorID] {
		if id == sellerID {
			return true, nil
		}
	}
	return false, nil
}

type fakeEventPub struct {
	mu     sync.Mutex
	events []*domain.PaymentEvent
}

func (p *fakeEventPub) PublishPaymentEvent(_ context.Context, event *domain.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *event
	p.events = append(p.events, &copied)
	return nil
}

func (p *fakeEventPub) published() []*domain.PaymentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.PaymentEvent(nil), p.events...)
}

// fakeSellerConn implements domain.SellerConnection for gateway tests.
type fakeSellerConn struct {
	sellerID string
	adminID  string
	mu       sync.Mutex
	open     bool
	sent     [][]byte
	failSend bool
}

func newFakeSellerConn(sellerID, adminID string) *fakeSellerConn {
	return &fakeSellerConn{sellerID: sellerID, adminID: adminID, open: true}
}

func (f *fakeSellerConn) Send(message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeSellerConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

func (f *fakeSellerConn) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeSellerConn) SellerID() string        { return f.sellerID }
func (f *fakeSellerConn) AdministratorID() string { return f.adminID }

func (f *fakeSellerConn) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

// fakeRegistry is a minimal domain.ConnectionRegistry for gateway tests.
type fakeRegistry struct {
	mu    sync.Mutex
	conns map[string]domain.SellerConnection
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{conns: make(map[string]domain.SellerConnection)}
}

func (r *fakeRegistry) Register(sellerID string, conn domain.SellerConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sellerID] = conn
}

func (r *fakeRegistry) Unregister(sellerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, sellerID)
}

func (r *fakeRegistry) UnregisterIfSame(sellerID string, conn domain.SellerConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, exists := r.conns[sellerID]; exists && current == conn {
		delete(r.conns, sellerID)
	}
}

func (r *fakeRegistry) ConnectionsFor(sellerIDs []string) []domain.SellerConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	var open []domain.SellerConnection
	for _, sellerID := range sellerIDs {
		if conn, exists := r.conns[sellerID]; exists && conn.IsOpen() {
			open = append(open, conn)
		}
	}
	return open
}

func (r *fakeRegistry) IsConnected(sellerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, exists := r.conns[sellerID]
	return exists && conn.IsOpen()
}

func (r *fakeRegistry) PruneClosed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for sellerID, conn := range r.conns {
		if !conn.IsOpen() {
			delete(r.conns, sellerID)
			pruned++
		}
	}
	return pruned
}
