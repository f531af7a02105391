package postgres

import (
	"context"
	"time"

	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/giftshift/giftshift-backend/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type depositsRepo struct{ pool *pgxpool.Pool }

const depositCols = `id, user_id, amount_cents, coin, network, order_id, deposit_address,
        status, settled_cents, settle_hash, fail_reason, created_at, updated_at, completed_at`

func scanDeposit(row pgx.Row) (models.Deposit, error) {
	var d models.Deposit
	err := row.Scan(&d.ID, &d.UserID, &d.Amount, &d.Coin, &d.Network, &d.OrderID, &d.DepositAddress,
		&d.Status, &d.SettledAmount, &d.SettleHash, &d.FailReason, &d.CreatedAt, &d.UpdatedAt, &d.CompletedAt)
	return d, err
}

func (r *depositsRepo) Create(ctx context.Context, d models.Deposit) (models.Deposit, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = models.DepositPending
	}
	return scanDeposit(r.pool.QueryRow(ctx,
		`INSERT INTO deposits(id, user_id, amount_cents, coin, network, order_id, deposit_address, status)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+depositCols,
		d.ID, d.UserID, d.Amount, d.Coin, d.Network, d.OrderID, d.DepositAddress, d.Status,
	))
}

func (r *depositsRepo) GetByID(ctx context.Context, id string) (models.Deposit, error) {
	return scanDeposit(r.pool.QueryRow(ctx,
		`SELECT `+depositCols+` FROM deposits WHERE id=$1`, id))
}

func (r *depositsRepo) GetByOrderID(ctx context.Context, orderID string) (models.Deposit, error) {
	return scanDeposit(r.pool.QueryRow(ctx,
		`SELECT `+depositCols+` FROM deposits WHERE order_id=$1`, orderID))
}

func (r *depositsRepo) ListUnsettled(ctx context.Context, since time.Time, limit int) ([]models.Deposit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+depositCols+`
		   FROM deposits
		  WHERE status IN ('pending','processing') AND created_at >= $1
		  ORDER BY created_at ASC
		  LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Claim is the conditional status transition: exactly one of N concurrent
// callers sees RowsAffected()==1.
func (r *depositsRepo) Claim(ctx context.Context, id string, from, to models.DepositStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE deposits SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		id, from, to,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *depositsRepo) MarkCompleted(ctx context.Context, id string, settled money.Cents, settleHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE deposits
		    SET status='completed', settled_cents=$2, settle_hash=$3,
		        completed_at=now(), updated_at=now()
		  WHERE id=$1 AND status='processing'`,
		id, settled, nullIfEmpty(settleHash),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *depositsRepo) MarkFailed(ctx context.Context, id string, status models.DepositStatus, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE deposits SET status=$2, fail_reason=$3, updated_at=now()
		  WHERE id=$1 AND status='processing'`,
		id, status, reason,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReclaimStale returns deposits stuck in processing (a crash between claim
// and apply) to pending so a later sweep can re-drive them.
func (r *depositsRepo) ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE deposits SET status='pending', updated_at=now()
		  WHERE status='processing' AND updated_at < $1
		  RETURNING id`,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
