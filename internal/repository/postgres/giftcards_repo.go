package postgres

import (
	"context"
	"time"

	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type giftCardsRepo struct{ pool *pgxpool.Pool }

const giftCardCols = `id, code, secret_code, value_cents, status, password_hash, created_by,
        recipient_name, recipient_email, order_id, payment_proof, fail_reason,
        expires_at, created_at, updated_at`

func scanGiftCard(row pgx.Row) (models.GiftCard, error) {
	var c models.GiftCard
	err := row.Scan(&c.ID, &c.Code, &c.SecretCode, &c.Value, &c.Status, &c.PasswordHash, &c.CreatedBy,
		&c.RecipientName, &c.RecipientEmail, &c.OrderID, &c.PaymentProof, &c.FailReason,
		&c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *giftCardsRepo) Create(ctx context.Context, c models.GiftCard) (models.GiftCard, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return scanGiftCard(r.pool.QueryRow(ctx,
		`INSERT INTO gift_cards(id, code, secret_code, value_cents, status, password_hash,
		   created_by, recipient_name, recipient_email, order_id, expires_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 RETURNING `+giftCardCols,
		c.ID, c.Code, c.SecretCode, c.Value, c.Status, c.PasswordHash,
		c.CreatedBy, c.RecipientName, c.RecipientEmail, c.OrderID, c.ExpiresAt,
	))
}

func (r *giftCardsRepo) GetByID(ctx context.Context, id string) (models.GiftCard, error) {
	return scanGiftCard(r.pool.QueryRow(ctx,
		`SELECT `+giftCardCols+` FROM gift_cards WHERE id=$1`, id))
}

func (r *giftCardsRepo) GetByCode(ctx context.Context, code string) (models.GiftCard, error) {
	return scanGiftCard(r.pool.QueryRow(ctx,
		`SELECT `+giftCardCols+` FROM gift_cards WHERE code=$1`, code))
}

func (r *giftCardsRepo) GetByOrderID(ctx context.Context, orderID string) (models.GiftCard, error) {
	return scanGiftCard(r.pool.QueryRow(ctx,
		`SELECT `+giftCardCols+` FROM gift_cards WHERE order_id=$1`, orderID))
}

// ListUnsettled returns crypto-paid cards still waiting on their order.
func (r *giftCardsRepo) ListUnsettled(ctx context.Context, since time.Time, limit int) ([]models.GiftCard, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+giftCardCols+`
		   FROM gift_cards
		  WHERE status='pending' AND order_id IS NOT NULL AND created_at >= $1
		  ORDER BY created_at ASC
		  LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GiftCard
	for rows.Next() {
		c, err := scanGiftCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *giftCardsRepo) Claim(ctx context.Context, id string, from, to models.GiftCardStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE gift_cards SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		id, from, to,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *giftCardsRepo) Activate(ctx context.Context, id, paymentProof string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE gift_cards SET status='active', payment_proof=$2, updated_at=now()
		  WHERE id=$1 AND status='processing'`,
		id, nullIfEmpty(paymentProof),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *giftCardsRepo) MarkFailed(ctx context.Context, id string, status models.GiftCardStatus, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE gift_cards SET status=$2, fail_reason=$3, updated_at=now()
		  WHERE id=$1 AND status='processing'`,
		id, status, reason,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRedeemed only succeeds from active, so two racing redeemers cannot both
// cash the same card.
func (r *giftCardsRepo) MarkRedeemed(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE gift_cards SET status='redeemed', updated_at=now()
		  WHERE id=$1 AND status='active'`,
		id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *giftCardsRepo) ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE gift_cards SET status='pending', updated_at=now()
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
