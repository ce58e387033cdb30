package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type reservationRepository struct {
	db *sql.DB
}

// NewReservationRepository создаёт PostgreSQL-реализацию ReservationRepository.
// Таблица намеренно без FK на orders: компенсационные записи release_failed
// могут ссылаться на заказ, который так и не был сохранён.
func NewReservationRepository(store *Store) domain.ReservationRepository {
	return &reservationRepository{db: store.DB()}
}

func (r *reservationRepository) CreateAll(reservations []domain.StockReservation) error {
	if len(reservations) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, res := range reservations {
		if res.ID == "" {
			res.ID = uuid.NewString()
		}
		if res.CreatedAt.IsZero() {
			res.CreatedAt = now
		}
		if res.UpdatedAt.IsZero() {
			res.UpdatedAt = res.CreatedAt
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO stock_reservations (
				id, order_id, product_id, variant_id, qty, token, status, expires_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			res.ID, res.OrderID, res.ProductID, res.VariantID, res.Qty,
			res.Token, string(res.Status), nullableTime(res.ExpiresAt),
			res.CreatedAt, res.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert stock reservation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create reservations: %w", err)
	}

	return nil
}

func (r *reservationRepository) ListByOrder(orderID string) ([]domain.StockReservation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.query(ctx, `
		SELECT id, order_id, product_id, variant_id, qty, token, status, expires_at, created_at, updated_at
		FROM stock_reservations
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
}

func (r *reservationRepository) UpdateStatus(id string, status domain.ReservationStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE stock_reservations
		SET status = $1,
		    updated_at = $2
		WHERE id = $3
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("stock reservation %s not found", id)
	}

	return nil
}

func (r *reservationRepository) ListReleaseFailed(limit int) ([]domain.StockReservation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	return r.query(ctx, `
		SELECT id, order_id, product_id, variant_id, qty, token, status, expires_at, created_at, updated_at
		FROM stock_reservations
		WHERE status = $1
		ORDER BY updated_at ASC, id ASC
		LIMIT $2
	`, string(domain.ReservationStatusReleaseFailed), limit)
}

func (r *reservationRepository) query(ctx context.Context, query string, args ...any) ([]domain.StockReservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stock reservations: %w", err)
	}
	defer rows.Close()

	reservations := make([]domain.StockReservation, 0)
	for rows.Next() {
		var (
			res       domain.StockReservation
			status    string
			expiresAt sql.NullTime
		)
		if err := rows.Scan(
			&res.ID, &res.OrderID, &res.ProductID, &res.VariantID, &res.Qty,
			&res.Token, &status, &expiresAt, &res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock reservation: %w", err)
		}
		res.Status = domain.ReservationStatus(status)
		if expiresAt.Valid {
			res.ExpiresAt = expiresAt.Time.UTC()
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock reservations: %w", err)
	}

	return reservations, nil
}

var _ domain.ReservationRepository = (*reservationRepository)(nil)
