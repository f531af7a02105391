package postgres

import (
	"context"

	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

// UpsertByOrder keys the history row on (order_id, purpose); re-applying a
// settlement refreshes the row instead of duplicating it.
func (r *transactionsRepo) UpsertByOrder(ctx context.Context, t models.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transactions(id, user_id, purpose, order_id, amount_cents, coin, network, status)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (order_id, purpose) DO UPDATE
		 SET amount_cents = EXCLUDED.amount_cents,
		     status = EXCLUDED.status,
		     updated_at = now()`,
		t.ID, t.UserID, t.Purpose, t.OrderID, t.Amount, t.Coin, t.Network, t.Status,
	)
	return err
}

func (r *transactionsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, purpose, order_id, amount_cents, coin, network, status, created_at, updated_at
		   FROM transactions
		  WHERE user_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Purpose, &t.OrderID, &t.Amount, &t.Coin, &t.Network,
			&t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
