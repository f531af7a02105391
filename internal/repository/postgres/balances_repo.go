package postgres

import (
	"context"

	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/giftshift/giftshift-backend/internal/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type balancesRepo struct{ pool *pgxpool.Pool }

const balanceCols = `user_id, balance_cents, total_deposited_cents, total_spent_cents, updated_at`

func scanBalance(row pgx.Row) (models.Balance, error) {
	var b models.Balance
	err := row.Scan(&b.UserID, &b.Balance, &b.TotalDeposited, &b.TotalSpent, &b.UpdatedAt)
	return b, err
}

func (r *balancesRepo) Get(ctx context.Context, userID string) (models.Balance, error) {
	return scanBalance(r.pool.QueryRow(ctx,
		`SELECT `+balanceCols+` FROM balances WHERE user_id=$1`, userID))
}

func (r *balancesRepo) GetOrCreate(ctx context.Context, userID string) (models.Balance, error) {
	if b, err := r.Get(ctx, userID); err == nil {
		return b, nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO balances(user_id, balance_cents, total_deposited_cents, total_spent_cents, updated_at)
		 VALUES($1, 0, 0, 0, now())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return models.Balance{}, err
	}
	return r.Get(ctx, userID)
}

// CompareAndAdd is the optimistic first attempt: the write lands only if the
// balance is still what the caller read.
func (r *balancesRepo) CompareAndAdd(ctx context.Context, userID string, observed, delta, depositedDelta money.Cents) (models.Balance, bool, error) {
	b, err := scanBalance(r.pool.QueryRow(ctx,
		`UPDATE balances
		    SET balance_cents = balance_cents + $3,
		        total_deposited_cents = total_deposited_cents + $4,
		        updated_at = now()
		  WHERE user_id = $1 AND balance_cents = $2
		  RETURNING `+balanceCols,
		userID, observed, delta, depositedDelta,
	))
	if err == pgx.ErrNoRows {
		return models.Balance{}, false, nil
	}
	if err != nil {
		return models.Balance{}, false, err
	}
	return b, true, nil
}

func (r *balancesRepo) Add(ctx context.Context, userID string, delta, depositedDelta money.Cents) (models.Balance, error) {
	return scanBalance(r.pool.QueryRow(ctx,
		`UPDATE balances
		    SET balance_cents = balance_cents + $2,
		        total_deposited_cents = total_deposited_cents + $3,
		        updated_at = now()
		  WHERE user_id = $1
		  RETURNING `+balanceCols,
		userID, delta, depositedDelta,
	))
}

// CompareAndDeduct combines "unchanged since read" and "covers the amount" in
// one conditional write, so a deduction can never drive the balance negative.
func (r *balancesRepo) CompareAndDeduct(ctx context.Context, userID string, observed, amount money.Cents) (models.Balance, bool, error) {
	b, err := scanBalance(r.pool.QueryRow(ctx,
		`UPDATE balances
		    SET balance_cents = balance_cents - $3,
		        total_spent_cents = total_spent_cents + $3,
		        updated_at = now()
		  WHERE user_id = $1 AND balance_cents = $2 AND balance_cents >= $3
		  RETURNING `+balanceCols,
		userID, observed, amount,
	))
	if err == pgx.ErrNoRows {
		return models.Balance{}, false, nil
	}
	if err != nil {
		return models.Balance{}, false, err
	}
	return b, true, nil
}
