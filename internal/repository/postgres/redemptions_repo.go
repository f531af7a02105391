package postgres

import (
	"context"
	"time"

	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type redemptionsRepo struct{ pool *pgxpool.Pool }

const redemptionCols = `id, gift_card_id, user_id, coin, network, address, order_id, status,
        estimated_cents, settled_amount, settle_hash, fail_reason, created_at, updated_at`

func scanRedemption(row pgx.Row) (models.Redemption, error) {
	var m models.Redemption
	err := row.Scan(&m.ID, &m.GiftCardID, &m.UserID, &m.Coin, &m.Network, &m.Address, &m.OrderID,
		&m.Status, &m.EstimatedAmount, &m.SettledAmount, &m.SettleHash, &m.FailReason,
		&m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *redemptionsRepo) Create(ctx context.Context, m models.Redemption) (models.Redemption, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.RedemptionQuoted
	}
	return scanRedemption(r.pool.QueryRow(ctx,
		`INSERT INTO redemptions(id, gift_card_id, user_id, coin, network, address, order_id, status, estimated_cents)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING `+redemptionCols,
		m.ID, m.GiftCardID, m.UserID, m.Coin, m.Network, m.Address, m.OrderID, m.Status, m.EstimatedAmount,
	))
}

func (r *redemptionsRepo) GetByID(ctx context.Context, id string) (models.Redemption, error) {
	return scanRedemption(r.pool.QueryRow(ctx,
		`SELECT `+redemptionCols+` FROM redemptions WHERE id=$1`, id))
}

func (r *redemptionsRepo) ListUnsettled(ctx context.Context, since time.Time, limit int) ([]models.Redemption, error) {
	return r.list(ctx,
		`SELECT `+redemptionCols+`
		   FROM redemptions
		  WHERE status IN ('quoted','processing') AND created_at >= $1
		  ORDER BY created_at ASC
		  LIMIT $2`, since, limit)
}

func (r *redemptionsRepo) ListByStatus(ctx context.Context, status models.RedemptionStatus, limit int) ([]models.Redemption, error) {
	return r.list(ctx,
		`SELECT `+redemptionCols+`
		   FROM redemptions
		  WHERE status=$1
		  ORDER BY created_at DESC
		  LIMIT $2`, status, limit)
}

func (r *redemptionsRepo) list(ctx context.Context, q string, args ...any) ([]models.Redemption, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Redemption
	for rows.Next() {
		m, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *redemptionsRepo) Claim(ctx context.Context, id string, from, to models.RedemptionStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE redemptions SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		id, from, to,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *redemptionsRepo) MarkCompleted(ctx context.Context, id, settledAmount, settleHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE redemptions SET status='completed', settled_amount=$2, settle_hash=$3, updated_at=now()
		  WHERE id=$1 AND status='processing'`,
		id, nullIfEmpty(settledAmount), nullIfEmpty(settleHash),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *redemptionsRepo) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE redemptions SET status='failed', fail_reason=$2, updated_at=now()
		  WHERE id=$1 AND status='processing'`,
		id, reason,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReclaimStale returns stuck processing redemptions to quoted.
func (r *redemptionsRepo) ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE redemptions SET status='quoted', updated_at=now()
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
