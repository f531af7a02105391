package postgres

import (
	"context"

	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ledgerRepo struct{ pool *pgxpool.Pool }

// Append inserts one immutable entry. There is no update or delete path.
func (r *ledgerRepo) Append(ctx context.Context, e models.LedgerEntry) (models.LedgerEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ledger_entries(
		   id, user_id, kind, amount_cents, balance_before_cents, balance_after_cents,
		   description, reference_id, coin, network, order_id
		 ) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 RETURNING created_at`,
		e.ID, e.UserID, e.Kind, e.Amount, e.BalanceBefore, e.BalanceAfter,
		e.Description, e.ReferenceID,
		nullIfEmpty(e.Crypto.Coin), nullIfEmpty(e.Crypto.Network), nullIfEmpty(e.Crypto.OrderID),
	).Scan(&e.CreatedAt)
	return e, err
}

func (r *ledgerRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, kind, amount_cents, balance_before_cents, balance_after_cents,
		        description, reference_id, coin, network, order_id, created_at
		   FROM ledger_entries
		  WHERE user_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var coin, network, orderID *string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
			&e.Description, &e.ReferenceID, &coin, &network, &orderID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Crypto = models.CryptoDetail{Coin: deref(coin), Network: deref(network), OrderID: deref(orderID)}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByReference finds the committed deposit-like credit for a record id.
func (r *ledgerRepo) GetByReference(ctx context.Context, referenceID string) (models.LedgerEntry, bool, error) {
	var e models.LedgerEntry
	var coin, network, orderID *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, kind, amount_cents, balance_before_cents, balance_after_cents,
		        description, reference_id, coin, network, order_id, created_at
		   FROM ledger_entries
		  WHERE reference_id=$1 AND kind IN ('deposit','underpayment_credit')
		  LIMIT 1`,
		referenceID,
	).Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
		&e.Description, &e.ReferenceID, &coin, &network, &orderID, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return models.LedgerEntry{}, false, nil
	}
	if err != nil {
		return models.LedgerEntry{}, false, err
	}
	e.Crypto = models.CryptoDetail{Coin: deref(coin), Network: deref(network), OrderID: deref(orderID)}
	return e, true, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
