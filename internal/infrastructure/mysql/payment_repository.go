package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"paynotify-system/internal/domain"
)

type MySQLPaymentRepository struct {
	db *sql.DB
}

func NewMySQLPaymentRepository(db *sql.DB) *MySQLPaymentRepository {
	return &MySQLPaymentRepository{db: db}
}

func (r *MySQLPaymentRepository) CreatePayment(ctx context.Context, payment *domain.PaymentNotification) error {
	query := `
        INSERT INTO payment_notifications (id, administrator_id, amount, sender_name, external_code, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.AdministratorID, payment.Amount,
		payment.SenderName, payment.ExternalCode,
		string(payment.Status), payment.CreatedAt)
	if err != nil {
		return &domain.PersistenceError{Op: "create payment", Err: err}
	}
	return nil
}

func (r *MySQLPaymentRepository) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentNotification, error) {
	query := `
        SELECT id, administrator_id, amount, sender_name, external_code, status, created_at, resolved_by, resolved_at
        FROM payment_notifications WHERE id = ?
    `

	var payment domain.PaymentNotification
	var status string
	var resolvedBy sql.NullString
	var resolvedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, paymentID).Scan(
		&payment.ID, &payment.AdministratorID, &payment.Amount,
		&payment.SenderName, &payment.ExternalCode,
		&status, &payment.CreatedAt, &resolvedBy, &resolvedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: domain.UnknownPayment, ID: paymentID}
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get payment", Err: err}
	}

	payment.Status = domain.PaymentStatus(status)
	if resolvedBy.Valid {
		payment.ResolvedBy = resolvedBy.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		payment.ResolvedAt = &t
	}
	return &payment, nil
}

// ResolvePayment transitions the row out of pending. The status guard in the
// WHERE clause is the only ordering authority for racing claims: the first
// statement to commit wins and everyone else sees zero affected rows.
func (r *MySQLPaymentRepository) ResolvePayment(ctx context.Context, paymentID, sellerID string, status domain.PaymentStatus, resolvedAt time.Time) (bool, error) {
	query := `
        UPDATE payment_notifications
        SET status = ?, resolved_by = ?, resolved_at = ?
        WHERE id = ? AND status = 'pending'
    `
	result, err := r.db.ExecContext(ctx, query, string(status), sellerID, resolvedAt, paymentID)
	if err != nil {
		return false, &domain.PersistenceError{Op: "resolve payment", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, &domain.PersistenceError{Op: "resolve payment", Err: err}
	}
	return affected == 1, nil
}
