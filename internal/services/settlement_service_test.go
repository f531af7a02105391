package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/giftshift/giftshift-backend/internal/exchange"
	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/giftshift/giftshift-backend/internal/money"
	"github.com/giftshift/giftshift-backend/internal/worker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settlementHarness struct {
	svc         *SettlementService
	prober      *fakeProber
	balances    *fakeBalances
	ledger      *fakeLedger
	deposits    *fakeDeposits
	cards       *fakeGiftCards
	redemptions *fakeRedemptions
	txns        *fakeTransactions
	audits      *fakeAuditLogs
	pool        *worker.Pool
	drain       func() // stops the pool once, flushing queued audit writes
}

func newSettlementHarness(t *testing.T) *settlementHarness {
	h := &settlementHarness{
		prober:      newFakeProber(),
		balances:    newFakeBalances(),
		ledger:      &fakeLedger{},
		deposits:    newFakeDeposits(),
		cards:       newFakeGiftCards(),
		redemptions: newFakeRedemptions(),
		txns:        newFakeTransactions(),
		audits:      &fakeAuditLogs{},
		pool:        worker.NewPool(1),
	}
	var once sync.Once
	h.drain = func() { once.Do(h.pool.Stop) }
	t.Cleanup(h.drain)
	ledgerSvc := NewLedgerService(h.balances, h.ledger)
	h.svc = NewSettlementService(h.prober, h.deposits, h.cards, h.redemptions, h.txns, h.audits, ledgerSvc, h.pool)
	return h
}

func (h *settlementHarness) seedDeposit(amount money.Cents) models.Deposit {
	dep, _ := h.deposits.Create(context.Background(), models.Deposit{
		UserID:  "u1",
		Amount:  amount,
		Coin:    "BTC",
		Network: "bitcoin",
		OrderID: "ord-1",
		Status:  models.DepositPending,
	})
	return dep
}

func settledOrder(id string, settleUSD string) exchange.Order {
	return exchange.Order{
		ID:           id,
		Status:       exchange.StatusSettled,
		SettleAmount: decimal.RequireFromString(settleUSD),
		SettleHash:   "0xabc",
	}
}

func TestConfirmDepositCreditsExactlyOnce(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	dep := h.seedDeposit(10000)
	h.prober.set(settledOrder("ord-1", "100.00"))

	res, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, string(models.DepositCompleted), res.Status)
	require.NotNil(t, res.NewBalance)
	assert.Equal(t, money.Cents(10000), *res.NewBalance)

	fresh, err := h.deposits.GetByID(ctx, dep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositCompleted, fresh.Status)
	require.NotNil(t, fresh.SettledAmount)
	assert.Equal(t, money.Cents(10000), *fresh.SettledAmount)

	entries := h.ledger.byUser("u1")
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryDeposit, entries[0].Kind)
	assert.Equal(t, "ord-1", entries[0].Crypto.OrderID)
}

func TestConfirmDepositUnderpayment(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	h.seedDeposit(10000)
	// 90.00 settled on a 100.00 request is below the 95% threshold.
	h.prober.set(settledOrder("ord-1", "90.00"))

	res, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.NewBalance)
	assert.Equal(t, money.Cents(9000), *res.NewBalance)

	entries := h.ledger.byUser("u1")
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryUnderpaymentCredit, entries[0].Kind)
	assert.Equal(t, money.Cents(9000), entries[0].Amount)
}

func TestConfirmDepositNearFullPaymentIsPlainDeposit(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	h.seedDeposit(10000)
	// 96.00 on 100.00 clears the threshold.
	h.prober.set(settledOrder("ord-1", "96.00"))

	_, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
	require.NoError(t, err)
	entries := h.ledger.byUser("u1")
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryDeposit, entries[0].Kind)
	assert.Equal(t, money.Cents(9600), entries[0].Amount)
}

// Exactly 95% is not below the threshold; the comparison is strict and done in
// integer cents.
func TestConfirmDepositExactThresholdIsPlainDeposit(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	h.seedDeposit(10000)
	h.prober.set(settledOrder("ord-1", "95.00"))

	_, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
	require.NoError(t, err)
	entries := h.ledger.byUser("u1")
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryDeposit, entries[0].Kind)
	assert.Equal(t, money.Cents(9500), entries[0].Amount)
}

func TestConfirmDepositIdempotent(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	h.seedDeposit(10000)
	h.prober.set(settledOrder("ord-1", "100.00"))

	first, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.AlreadyProcessed)

	second, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.AlreadyProcessed)
	require.NotNil(t, second.NewBalance)
	assert.Equal(t, money.Cents(10000), *second.NewBalance)

	assert.Len(t, h.ledger.byUser("u1"), 1)
}

func TestConfirmDepositConcurrentCallers(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	h.seedDeposit(10000)
	h.prober.set(settledOrder("ord-1", "100.00"))

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
			// A racing caller may observe the row mid-processing.
			if err != nil {
				assert.True(t, errors.Is(err, ErrAlreadyProcessed))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, h.ledger.byUser("u1"), 1, "exactly one credit regardless of caller count")
	b, err := h.balances.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, money.Cents(10000), b.Balance)
}

func TestConfirmDepositTransientProbeFailure(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	dep := h.seedDeposit(10000)
	h.prober.fail("ord-1", &exchange.TransientError{Op: "GET /shifts/ord-1", Err: errors.New("connection reset")})

	res, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
	assert.ErrorIs(t, err, ErrStillPending)
	assert.Equal(t, string(models.DepositPending), res.Status)

	fresh, _ := h.deposits.GetByID(ctx, dep.ID)
	assert.Equal(t, models.DepositPending, fresh.Status, "transient failure must not move the record")
	assert.Empty(t, h.ledger.byUser("u1"))
}

func TestConfirmDepositStillPendingOrder(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	h.seedDeposit(10000)
	h.prober.set(exchange.Order{ID: "ord-1", Status: exchange.StatusProcessing})

	_, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
	assert.ErrorIs(t, err, ErrStillPending)
	assert.Empty(t, h.ledger.byUser("u1"))
}

func TestConfirmDepositExpiredOrder(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	dep := h.seedDeposit(10000)
	h.prober.set(exchange.Order{ID: "ord-1", Status: exchange.StatusExpired})

	res, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, string(models.DepositExpired), res.Status)

	fresh, _ := h.deposits.GetByID(ctx, dep.ID)
	assert.Equal(t, models.DepositExpired, fresh.Status)
	require.NotNil(t, fresh.FailReason)
	assert.Empty(t, h.ledger.byUser("u1"), "failed orders never credit")
}

func TestConfirmDepositOwnership(t *testing.T) {
	h := newSettlementHarness(t)
	h.seedDeposit(10000)
	_, err := h.svc.ConfirmDeposit(context.Background(), "someone-else", "ord-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.svc.ConfirmDeposit(context.Background(), "u1", "no-such-order")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyGiftCardActivation(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	orderID := "pay-1"
	card, err := h.cards.Create(ctx, models.GiftCard{
		Code: "GS-TEST1234", Value: 5000, Status: models.CardProcessing,
		CreatedBy: "u1", OrderID: &orderID,
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.ApplyGiftCard(ctx, card, settledOrder(orderID, "50.00")))

	fresh, _ := h.cards.GetByID(ctx, card.ID)
	assert.Equal(t, models.CardActive, fresh.Status)
	require.NotNil(t, fresh.PaymentProof)
	assert.Equal(t, "0xabc", *fresh.PaymentProof)
}

func TestApplyGiftCardExpiredOrder(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	orderID := "pay-2"
	card, err := h.cards.Create(ctx, models.GiftCard{
		Code: "GS-TEST5678", Value: 5000, Status: models.CardProcessing,
		CreatedBy: "u1", OrderID: &orderID,
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.ApplyGiftCard(ctx, card, exchange.Order{ID: orderID, Status: exchange.StatusExpired}))

	fresh, _ := h.cards.GetByID(ctx, card.ID)
	assert.Equal(t, models.CardExpired, fresh.Status)
}

func TestApplyRedemptionCompletion(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	userID := "u1"
	red, err := h.redemptions.Create(ctx, models.Redemption{
		GiftCardID: "card-1", UserID: &userID, Coin: "ETH", Network: "ethereum",
		OrderID: "out-1", Status: models.RedemptionProcessing, EstimatedAmount: 5000,
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.ApplyRedemption(ctx, red, settledOrder("out-1", "0.0153")))

	fresh, _ := h.redemptions.GetByID(ctx, red.ID)
	assert.Equal(t, models.RedemptionCompleted, fresh.Status)
	require.NotNil(t, fresh.SettledAmount)
	assert.Equal(t, "0.0153", *fresh.SettledAmount)
}

func TestProcessRedemptionAdminFail(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	red, _ := h.redemptions.Create(ctx, models.Redemption{
		GiftCardID: "card-1", OrderID: "out-1", Status: models.RedemptionQuoted, EstimatedAmount: 5000,
	})

	status, err := h.svc.ProcessRedemption(ctx, red.ID, "fail")
	require.NoError(t, err)
	assert.Equal(t, "failed", status)

	fresh, _ := h.redemptions.GetByID(ctx, red.ID)
	assert.Equal(t, models.RedemptionFailed, fresh.Status)

	// Terminal records reject further admin actions.
	_, err = h.svc.ProcessRedemption(ctx, red.ID, "fail")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestProcessRedemptionAdminRequeue(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	red, _ := h.redemptions.Create(ctx, models.Redemption{
		GiftCardID: "card-1", OrderID: "out-1", Status: models.RedemptionProcessing, EstimatedAmount: 5000,
	})

	status, err := h.svc.ProcessRedemption(ctx, red.ID, "requeue")
	require.NoError(t, err)
	assert.Equal(t, "requeued", status)

	fresh, _ := h.redemptions.GetByID(ctx, red.ID)
	assert.Equal(t, models.RedemptionQuoted, fresh.Status)
}

func TestProcessRedemptionProbeAndApply(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	red, _ := h.redemptions.Create(ctx, models.Redemption{
		GiftCardID: "card-1", OrderID: "out-1", Status: models.RedemptionQuoted, EstimatedAmount: 5000,
	})
	h.prober.set(settledOrder("out-1", "0.02"))

	status, err := h.svc.ProcessRedemption(ctx, red.ID, "")
	require.NoError(t, err)
	assert.Equal(t, string(models.RedemptionCompleted), status)

	_, err = h.svc.ProcessRedemption(ctx, red.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestSettlementWritesAuditTrail(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	h.seedDeposit(10000)
	h.prober.set(settledOrder("ord-1", "100.00"))

	_, err := h.svc.ConfirmDeposit(ctx, "u1", "ord-1")
	require.NoError(t, err)

	// Audit writes are async; drain the pool before asserting.
	h.drain()
	h.audits.mu.Lock()
	defer h.audits.mu.Unlock()
	require.Len(t, h.audits.logs, 1)
	assert.Equal(t, "deposit", h.audits.logs[0].EntityType)
	assert.Equal(t, "settled", h.audits.logs[0].Action)
}
