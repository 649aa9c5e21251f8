package mysql

import (
	"context"
	"database/sql"
	"errors"

	"paynotify-system/internal/domain"
)

type MySQLAuditRepository struct {
	db *sql.DB
}

func NewMySQLAuditRepository(db *sql.DB) *MySQLAuditRepository {
	return &MySQLAuditRepository{db: db}
}

func (r *MySQLAuditRepository) CreateRecord(ctx context.Context, record *domain.AuditRecord) error {
	query := `
        INSERT INTO audit_records (id, administrator_id, raw_payload, device_key_id, observed_at, dedup_hash, decoding_status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.AdministratorID, record.RawPayload,
		record.DeviceKeyID, record.ObservedAt, record.DedupHash,
		string(record.DecodingStatus), record.CreatedAt)
	if err != nil {
		return &domain.PersistenceError{Op: "create audit record", Err: err}
	}
	return nil
}

func (r *MySQLAuditRepository) MarkDecoded(ctx context.Context, recordID string, facts *domain.TransactionFacts) error {
	query := `
        UPDATE audit_records
        SET decoding_status = 'success', extracted_amount = ?, extracted_name = ?, extracted_code = ?
        WHERE id = ?
    `
	_, err := r.db.ExecContext(ctx, query,
		facts.Amount, facts.SenderName, facts.SecurityCode, recordID)
	if err != nil {
		return &domain.PersistenceError{Op: "mark audit decoded", Err: err}
	}
	return nil
}

func (r *MySQLAuditRepository) MarkFailed(ctx context.Context, recordID string, reason string) error {
	query := `
        UPDATE audit_records
        SET decoding_status = 'failed', decoding_error = ?
        WHERE id = ?
    `
	_, err := r.db.ExecContext(ctx, query, reason, recordID)
	if err != nil {
		return &domain.PersistenceError{Op: "mark audit failed", Err: err}
	}
	return nil
}

func (r *MySQLAuditRepository) LinkPayment(ctx context.Context, recordID, paymentID string) error {
	query := `UPDATE audit_records SET linked_payment_id = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, paymentID, recordID)
	if err != nil {
		return &domain.PersistenceError{Op: "link audit payment", Err: err}
	}
	return nil
}

func (r *MySQLAuditRepository) FindLinkedPaymentByHash(ctx context.Context, dedupHash string) (string, error) {
	query := `
        SELECT linked_payment_id
        FROM audit_records
        WHERE dedup_hash = ? AND decoding_status = 'success' AND linked_payment_id IS NOT NULL
        ORDER BY created_at ASC
        LIMIT 1
    `

	var paymentID string
	err := r.db.QueryRowContext(ctx, query, dedupHash).Scan(&paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &domain.PersistenceError{Op: "find linked payment", Err: err}
	}
	return paymentID, nil
}
