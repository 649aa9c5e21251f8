package services

import (
	"context"
	"time"

	"paynotify-system/internal/decoder"
	"paynotify-system/internal/domain"
	"paynotify-system/pkg/logger"
	"paynotify-system/pkg/metrics"
	"paynotify-system/pkg/utils"
)

// InboundNotification is one captured payment notification as delivered by
// the administrator's device.
type InboundNotification struct {
	AdministratorID   string
	RawPayload        []byte
	DeviceKeyMaterial string
	DeviceKeyID       string
	ObservedAt        int64
	DedupHash         string
}

// IngestionService drives the pipeline: audit record first, then decode,
// then hand the facts to the coordinator. The audit write happens before any
// decode work so that failures stay diagnosable.
type IngestionService struct {
	decoder     *decoder.Decoder
	auditRepo   domain.AuditRepository
	coordinator *ClaimCoordinator
	eventPub    domain.EventPublisher
	log         logger.Logger
}

func NewIngestionService(
	dec *decoder.Decoder,
	auditRepo domain.AuditRepository,
	coordinator *ClaimCoordinator,
	eventPub domain.EventPublisher,
	log logger.Logger,
) *IngestionService {
	return &IngestionService{
		decoder:     dec,
		auditRepo:   auditRepo,
		coordinator: coordinator,
		eventPub:    eventPub,
		log:         log,
	}
}

func (s *IngestionService) Process(ctx context.Context, in *InboundNotification) (*domain.PaymentNotification, error) {
	record := &domain.AuditRecord{
		ID:              utils.GenerateID("audit"),
		AdministratorID: in.AdministratorID,
		RawPayload:      string(in.RawPayload),
		DeviceKeyID:     in.DeviceKeyID,
		ObservedAt:      in.ObservedAt,
		DedupHash:       in.DedupHash,
		DecodingStatus:  domain.DecodingPending,
		CreatedAt:       time.Now(),
	}

	if err := s.auditRepo.CreateRecord(ctx, record); err != nil {
		metrics.NotificationsIngested.WithLabelValues("audit_failed").Inc()
		return nil, err
	}

	facts, err := s.decoder.Decode(in.RawPayload, in.DeviceKeyMaterial, in.ObservedAt)
	if err != nil {
		if markErr := s.auditRepo.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
			s.log.Error("Failed to record decode failure",
				"audit_id", record.ID, "error", markErr)
		}
		s.log.Warn("Notification decode failed",
			"audit_id", record.ID, "administrator_id", in.AdministratorID, "error", err)
		metrics.NotificationsIngested.WithLabelValues("decode_failed").Inc()
		return nil, err
	}

	if err := s.auditRepo.MarkDecoded(ctx, record.ID, facts); err != nil {
		s.log.Error("Failed to record decode success", "audit_id", record.ID, "error", err)
	}

	payment, created, err := s.coordinator.Submit(ctx, in.AdministratorID, facts, in.DedupHash)
	if err != nil {
		metrics.NotificationsIngested.WithLabelValues("submit_failed").Inc()
		return nil, err
	}

	if err := s.auditRepo.LinkPayment(ctx, record.ID, payment.ID); err != nil {
		s.log.Error("Failed to link audit record",
			"audit_id", record.ID, "payment_id", payment.ID, "error", err)
	}

	// A dedup hit surfaces an existing payment; it was announced when it was
	// first created, so only genuinely new payments are broadcast.
	if created {
		s.publishPending(ctx, payment)
	}

	metrics.NotificationsIngested.WithLabelValues("success").Inc()
	return payment, nil
}

func (s *IngestionService) publishPending(ctx context.Context, payment *domain.PaymentNotification) {
	event := &domain.PaymentEvent{
		Type:            domain.PaymentPendingEvent,
		PaymentID:       payment.ID,
		AdministratorID: payment.AdministratorID,
		Amount:          payment.Amount,
		SenderName:      payment.SenderName,
		Status:          payment.Status,
		Timestamp:       payment.CreatedAt,
	}

	if err := s.eventPub.PublishPaymentEvent(ctx, event); err != nil {
		s.log.Error("Failed to publish pending event",
			"payment_id", payment.ID, "error", err)
	}
}
