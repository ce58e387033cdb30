package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
// Уникальный индекс на order_id закрепляет инвариант "один платёж на заказ".
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Create(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, payment_key, amount_minor, status, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		payment.ID, payment.OrderID, payment.PaymentKey, payment.AmountMinor,
		string(payment.Status), payment.Version, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPaymentAlreadyExists
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) GetByOrderID(orderID string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	payment, err := r.scanPayment(r.db.QueryRowContext(ctx, `
		SELECT id, order_id, payment_key, amount_minor, status, version, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}

	return payment, nil
}

func (r *paymentRepository) ExistsByOrderID(orderID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM payments WHERE order_id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check payment exists: %w", err)
}

func (r *paymentRepository) Save(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET payment_key = $1,
		    status = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $4
		  AND version = $5
	`,
		payment.PaymentKey,
		string(payment.Status),
		payment.UpdatedAt,
		payment.ID,
		payment.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.paymentExists(ctx, payment.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrPaymentNotFound
		}
		return domain.ErrPaymentVersionConflict
	}

	return nil
}

func (r *paymentRepository) ListExpiredReady(before time.Time, limit int) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, payment_key, amount_minor, status, version, created_at, updated_at
		FROM payments
		WHERE status = $1
		  AND created_at < $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`, string(domain.PaymentStatusReady), before, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		payment, err := r.scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) scanPayment(row rowScanner) (domain.Payment, error) {
	var (
		payment domain.Payment
		status  string
	)

	if err := row.Scan(
		&payment.ID, &payment.OrderID, &payment.PaymentKey, &payment.AmountMinor,
		&status, &payment.Version, &payment.CreatedAt, &payment.UpdatedAt,
	); err != nil {
		return domain.Payment{}, err
	}

	payment.Status = domain.PaymentStatus(status)
	return payment, nil
}

func (r *paymentRepository) paymentExists(ctx context.Context, id string) (bool, error) {
	var existing string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM payments WHERE id = $1`, id).Scan(&existing)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check payment exists: %w", err)
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
