package repository

import (
	"context"
	"time"

	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/giftshift/giftshift-backend/internal/money"
)

type Users interface {
	Create(ctx context.Context, username, email, passwordHash, role string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// Balances exposes the raw conditional writes the ledger service composes.
// Every mutating call reports whether it matched a row; that zero-vs-one row
// count is the only concurrency primitive the engine uses.
type Balances interface {
	Get(ctx context.Context, userID string) (models.Balance, error)
	GetOrCreate(ctx context.Context, userID string) (models.Balance, error)
	// CompareAndAdd adds delta only if the stored balance still equals
	// observed. ok=false means another writer got there first.
	CompareAndAdd(ctx context.Context, userID string, observed, delta, depositedDelta money.Cents) (models.Balance, bool, error)
	// Add is the unconditional second attempt; returns the fresh row.
	Add(ctx context.Context, userID string, delta, depositedDelta money.Cents) (models.Balance, error)
	// CompareAndDeduct deducts amount only if the balance is unchanged since
	// read AND still covers the amount, in one atomic check.
	CompareAndDeduct(ctx context.Context, userID string, observed, amount money.Cents) (models.Balance, bool, error)
}

type Ledger interface {
	Append(ctx context.Context, e models.LedgerEntry) (models.LedgerEntry, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error)
	// GetByReference returns the deposit-like entry crediting the given
	// record, if one was already committed. The applier consults it so a
	// re-applied settlement never credits twice.
	GetByReference(ctx context.Context, referenceID string) (models.LedgerEntry, bool, error)
}

type Deposits interface {
	Create(ctx context.Context, d models.Deposit) (models.Deposit, error)
	GetByID(ctx context.Context, id string) (models.Deposit, error)
	GetByOrderID(ctx context.Context, orderID string) (models.Deposit, error)
	// ListUnsettled returns non-terminal deposits created within the window.
	ListUnsettled(ctx context.Context, since time.Time, limit int) ([]models.Deposit, error)
	// Claim is the idempotent state locker: exactly one concurrent caller
	// observes ok=true for a given transition.
	Claim(ctx context.Context, id string, from, to models.DepositStatus) (bool, error)
	MarkCompleted(ctx context.Context, id string, settled money.Cents, settleHash string) (bool, error)
	MarkFailed(ctx context.Context, id string, status models.DepositStatus, reason string) (bool, error)
	// ReclaimStale returns processing rows older than cutoff to pending.
	ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

type GiftCards interface {
	Create(ctx context.Context, c models.GiftCard) (models.GiftCard, error)
	GetByID(ctx context.Context, id string) (models.GiftCard, error)
	GetByCode(ctx context.Context, code string) (models.GiftCard, error)
	GetByOrderID(ctx context.Context, orderID string) (models.GiftCard, error)
	ListUnsettled(ctx context.Context, since time.Time, limit int) ([]models.GiftCard, error)
	Claim(ctx context.Context, id string, from, to models.GiftCardStatus) (bool, error)
	Activate(ctx context.Context, id, paymentProof string) (bool, error)
	MarkFailed(ctx context.Context, id string, status models.GiftCardStatus, reason string) (bool, error)
	// MarkRedeemed succeeds only from active; redeeming is a claim too.
	MarkRedeemed(ctx context.Context, id string) (bool, error)
	ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

type Redemptions interface {
	Create(ctx context.Context, r models.Redemption) (models.Redemption, error)
	GetByID(ctx context.Context, id string) (models.Redemption, error)
	ListUnsettled(ctx context.Context, since time.Time, limit int) ([]models.Redemption, error)
	ListByStatus(ctx context.Context, status models.RedemptionStatus, limit int) ([]models.Redemption, error)
	Claim(ctx context.Context, id string, from, to models.RedemptionStatus) (bool, error)
	MarkCompleted(ctx context.Context, id, settledAmount, settleHash string) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
	ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

type Transactions interface {
	// UpsertByOrder is keyed on (order_id, purpose) so sweepers re-running
	// a settlement never duplicate history rows.
	UpsertByOrder(ctx context.Context, t models.Transaction) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
