package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/giftshift/giftshift-backend/internal/metrics"
	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/giftshift/giftshift-backend/internal/money"
	repo "github.com/giftshift/giftshift-backend/internal/repository"
)

// LedgerService owns all balance mutations. Every committed add or deduct
// appends exactly one immutable ledger entry carrying the before/after
// snapshot taken from the row the write returned.
type LedgerService struct {
	bal repo.Balances
	led repo.Ledger
}

func NewLedgerService(bal repo.Balances, led repo.Ledger) *LedgerService {
	return &LedgerService{bal: bal, led: led}
}

// Read returns the user's balance, creating a zero row on first access.
func (s *LedgerService) Read(ctx context.Context, userID string) (models.Balance, error) {
	return s.bal.GetOrCreate(ctx, userID)
}

func (s *LedgerService) Entries(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	return s.led.ListByUser(ctx, userID, limit, offset)
}

// CreditExists reports whether a deposit-like entry already references the
// record. A settlement re-applied after a crash (or a stale-claim reclaim)
// checks this before crediting again.
func (s *LedgerService) CreditExists(ctx context.Context, referenceID string) (bool, error) {
	_, ok, err := s.led.GetByReference(ctx, referenceID)
	return ok, err
}

// Add credits amount to the user's balance. The first write is conditional on
// the balance observed at read time; if another writer got there first the
// fresh balance is re-read and the write is retried once, unconditionally.
// Contention handling stops there: a failure on the second attempt is
// surfaced, never blindly retried, since retrying without re-reading state
// could double-credit.
func (s *LedgerService) Add(ctx context.Context, userID string, amount money.Cents, kind models.EntryKind, description string, referenceID *string, crypto models.CryptoDetail) (models.Balance, error) {
	if amount <= 0 {
		return models.Balance{}, fmt.Errorf("add: amount must be > 0, got %s", amount)
	}
	var depositedDelta money.Cents
	if kind.DepositLike() {
		depositedDelta = amount
	}

	observed, err := s.bal.GetOrCreate(ctx, userID)
	if err != nil {
		return models.Balance{}, fmt.Errorf("read balance: %w", err)
	}

	fresh, ok, err := s.bal.CompareAndAdd(ctx, userID, observed.Balance, amount, depositedDelta)
	if err != nil {
		return models.Balance{}, fmt.Errorf("conditional add: %w", err)
	}
	if !ok {
		// Lost the race. Adds are commutative in net effect, so one
		// unconditional retry against the live row is safe.
		fresh, err = s.bal.Add(ctx, userID, amount, depositedDelta)
		if err != nil {
			slog.Error("balance add retry failed", "user_id", userID, "amount", amount, "err", err)
			return models.Balance{}, fmt.Errorf("add retry: %w", err)
		}
	}

	entry := models.LedgerEntry{
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: fresh.Balance - amount,
		BalanceAfter:  fresh.Balance,
		Description:   description,
		ReferenceID:   referenceID,
		Crypto:        crypto,
	}
	if _, err := s.led.Append(ctx, entry); err != nil {
		slog.Error("ledger append failed after committed add", "user_id", userID, "amount", amount, "err", err)
		return fresh, fmt.Errorf("append ledger entry: %w", err)
	}
	metrics.LedgerEntriesTotal.WithLabelValues(string(kind)).Inc()
	return fresh, nil
}

// Deduct debits amount if and only if the balance still covers it. The single
// conditional write requires both "unchanged since read" and "balance >=
// amount", so a race can never drive the balance negative. On a miss the
// fresh balance tells insufficient funds apart from plain contention; the
// caller decides whether a contended deduct is worth retrying.
func (s *LedgerService) Deduct(ctx context.Context, userID string, amount money.Cents, description string, referenceID *string) (models.Balance, error) {
	if amount <= 0 {
		return models.Balance{}, fmt.Errorf("deduct: amount must be > 0, got %s", amount)
	}

	observed, err := s.bal.GetOrCreate(ctx, userID)
	if err != nil {
		return models.Balance{}, fmt.Errorf("read balance: %w", err)
	}
	if observed.Balance < amount {
		return models.Balance{}, ErrInsufficientFunds
	}

	fresh, ok, err := s.bal.CompareAndDeduct(ctx, userID, observed.Balance, amount)
	if err != nil {
		return models.Balance{}, fmt.Errorf("conditional deduct: %w", err)
	}
	if !ok {
		current, err := s.bal.Get(ctx, userID)
		if err != nil {
			return models.Balance{}, fmt.Errorf("re-read balance: %w", err)
		}
		if current.Balance >= amount {
			return models.Balance{}, ErrContention
		}
		return models.Balance{}, ErrInsufficientFunds
	}

	entry := models.LedgerEntry{
		UserID:        userID,
		Kind:          models.EntryPurchase,
		Amount:        -amount,
		BalanceBefore: fresh.Balance + amount,
		BalanceAfter:  fresh.Balance,
		Description:   description,
		ReferenceID:   referenceID,
	}
	if _, err := s.led.Append(ctx, entry); err != nil {
		slog.Error("ledger append failed after committed deduct", "user_id", userID, "amount", amount, "err", err)
		return fresh, fmt.Errorf("append ledger entry: %w", err)
	}
	metrics.LedgerEntriesTotal.WithLabelValues(string(models.EntryPurchase)).Inc()
	return fresh, nil
}

// IsBusinessOutcome reports errors that are expected results rather than
// faults, so handlers map them to 4xx instead of logging them as failures.
func IsBusinessOutcome(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrContention) || errors.Is(err, ErrStillPending)
}
