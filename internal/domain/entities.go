package domain

import (
	"time"
)

// PaymentNotification is one inbound payment signal surfaced to sellers.
// It is append-only: once resolved it is never mutated again.
type PaymentNotification struct {
	ID              string        `json:"id"`
	AdministratorID string        `json:"administrator_id"`
	Amount          float64       `json:"amount"`
	SenderName      string        `json:"sender_name"`
	ExternalCode    string        `json:"external_code"`
	Status          PaymentStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	ResolvedBy      string        `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
}

type PaymentStatus string

const (
	PaymentPending          PaymentStatus = "pending"
	PaymentConfirmed        PaymentStatus = "confirmed"
	PaymentRejectedBySeller PaymentStatus = "rejected_by_seller"
)

func (s PaymentStatus) Resolved() bool {
	return s == PaymentConfirmed || s == PaymentRejectedBySeller
}

// TransactionFacts are the facts extracted from a decoded notification.
type TransactionFacts struct {
	Amount       float64
	SenderName   string
	SecurityCode string
	ExternalCode string
}

// AuditRecord traces one raw inbound notification attempt, whether or not
// decoding succeeded. It is created before decoding starts and updated at
// most twice: once with the decoding outcome, once with the linked payment.
type AuditRecord struct {
	ID              string
	AdministratorID string
	RawPayload      string
	DeviceKeyID     string
	ObservedAt      int64
	DedupHash       string
	DecodingStatus  DecodingStatus
	DecodingError   string
	ExtractedAmount float64
	ExtractedName   string
	ExtractedCode   string
	LinkedPaymentID string
	CreatedAt       time.Time
}

type DecodingStatus string

const (
	DecodingPending DecodingStatus = "pending"
	DecodingSuccess DecodingStatus = "success"
	DecodingFailed  DecodingStatus = "failed"
)

// PaymentEvent travels over the event bus between service instances.
type PaymentEvent struct {
	Type            PaymentEventType `json:"type"`
	PaymentID       string           `json:"payment_id"`
	AdministratorID string           `json:"administrator_id"`
	Amount          float64          `json:"amount"`
	SenderName      string           `json:"sender_name"`
	Status          PaymentStatus    `json:"status"`
	ResolvedBy      string           `json:"resolved_by,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

type PaymentEventType string

const (
	PaymentPendingEvent  PaymentEventType = "payment_pending"
	PaymentResolvedEvent PaymentEventType = "payment_resolved"
)

// NewPaymentView is the push frame sellers receive when a payment becomes
// claimable.
type NewPaymentView struct {
	Type       string    `json:"type"`
	PaymentID  string    `json:"payment_id"`
	Amount     float64   `json:"amount"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResolutionView is the push frame sellers receive once a payment has been
// claimed or rejected by one of them.
type ResolutionView struct {
	Type       string        `json:"type"`
	PaymentID  string        `json:"payment_id"`
	Status     PaymentStatus `json:"status"`
	ResolvedBy string        `json:"resolved_by"`
	ResolvedAt time.Time     `json:"resolved_at"`
}
