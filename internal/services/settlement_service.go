package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/giftshift/giftshift-backend/internal/exchange"
	"github.com/giftshift/giftshift-backend/internal/metrics"
	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/giftshift/giftshift-backend/internal/money"
	repo "github.com/giftshift/giftshift-backend/internal/repository"
	"github.com/giftshift/giftshift-backend/internal/worker"
)

// underpaymentThresholdPct: settled below 95% of requested is tagged as an
// underpayment credit instead of a plain deposit. The user still gets the
// full amount actually received. Compared in integer cents.
const underpaymentThresholdPct = 95

// Prober is the read-only slice of the exchange client the engine needs.
type Prober interface {
	GetOrder(ctx context.Context, id string) (exchange.Order, error)
}

// SettlementService applies a terminal order outcome to a claimed domain
// record: exactly one ledger credit / card activation / redemption completion
// per order. Apply* methods assume the caller already won the claim and do no
// locking of their own.
type SettlementService struct {
	prober      Prober
	deposits    repo.Deposits
	cards       repo.GiftCards
	redemptions repo.Redemptions
	txns        repo.Transactions
	audits      repo.AuditLogs
	ledger      *LedgerService
	wp          *worker.Pool
}

func NewSettlementService(prober Prober, deps repo.Deposits, cards repo.GiftCards, reds repo.Redemptions,
	txns repo.Transactions, audits repo.AuditLogs, ledger *LedgerService, wp *worker.Pool) *SettlementService {
	return &SettlementService{
		prober: prober, deposits: deps, cards: cards, redemptions: reds,
		txns: txns, audits: audits, ledger: ledger, wp: wp,
	}
}

func (s *SettlementService) audit(entityType, entityID, action string, details map[string]any) {
	id := entityID
	s.wp.Submit(func() {
		if err := s.audits.Create(context.Background(), models.AuditLog{
			EntityType: entityType,
			EntityID:   &id,
			Action:     action,
			Details:    details,
		}); err != nil {
			slog.Warn("audit log write failed", "entity", entityType, "id", id, "err", err)
		}
	})
}

func (s *SettlementService) mirror(ctx context.Context, t models.Transaction) {
	if err := s.txns.UpsertByOrder(ctx, t); err != nil {
		// The mirror is display-only; a failed upsert must not unwind an
		// already-committed settlement.
		slog.Warn("transaction mirror upsert failed", "order_id", t.OrderID, "err", err)
	}
}

type ConfirmResult struct {
	Success          bool         `json:"success"`
	Status           string       `json:"status"`
	AlreadyProcessed bool         `json:"already_processed,omitempty"`
	NewBalance       *money.Cents `json:"new_balance,omitempty"`
}

// ConfirmDeposit drives a single deposit through probe -> claim -> apply on
// behalf of the user who initiated it. Safe to call any number of times and
// concurrently with the sweepers.
func (s *SettlementService) ConfirmDeposit(ctx context.Context, userID, orderID string) (ConfirmResult, error) {
	dep, err := s.deposits.GetByOrderID(ctx, orderID)
	if err != nil {
		return ConfirmResult{}, ErrNotFound
	}
	if dep.UserID != userID {
		return ConfirmResult{}, ErrNotFound
	}

	if dep.Status.Terminal() {
		res := ConfirmResult{Success: dep.Status == models.DepositCompleted, Status: string(dep.Status), AlreadyProcessed: true}
		if dep.Status == models.DepositCompleted {
			if b, err := s.ledger.Read(ctx, userID); err == nil {
				res.NewBalance = &b.Balance
			}
		}
		return res, nil
	}

	order, err := s.prober.GetOrder(ctx, dep.OrderID)
	if err != nil {
		if exchange.IsTransient(err) {
			// Transient probe failure says nothing terminal; report pending.
			return ConfirmResult{Status: string(dep.Status)}, ErrStillPending
		}
		return ConfirmResult{}, err
	}

	if order.Status.IsPending() {
		return ConfirmResult{Status: string(dep.Status)}, ErrStillPending
	}

	locked, err := s.deposits.Claim(ctx, dep.ID, models.DepositPending, models.DepositProcessing)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("claim deposit: %w", err)
	}
	if !locked {
		// Someone else is (or was) processing it; report what the row says.
		fresh, err := s.deposits.GetByID(ctx, dep.ID)
		if err != nil {
			return ConfirmResult{}, err
		}
		if fresh.Status.Terminal() {
			res := ConfirmResult{Success: fresh.Status == models.DepositCompleted, Status: string(fresh.Status), AlreadyProcessed: true}
			if b, err := s.ledger.Read(ctx, userID); err == nil {
				res.NewBalance = &b.Balance
			}
			return res, nil
		}
		return ConfirmResult{Status: string(fresh.Status)}, ErrAlreadyProcessed
	}

	if err := s.ApplyDeposit(ctx, dep, order); err != nil {
		return ConfirmResult{}, err
	}
	b, err := s.ledger.Read(ctx, userID)
	if err != nil {
		return ConfirmResult{Success: true, Status: string(models.DepositCompleted)}, nil
	}
	status := models.DepositCompleted
	if !order.Status.IsComplete() {
		status = failureStatus(order.Status)
	}
	return ConfirmResult{Success: order.Status.IsComplete(), Status: string(status), NewBalance: &b.Balance}, nil
}

func failureStatus(s exchange.Status) models.DepositStatus {
	if s == exchange.StatusExpired {
		return models.DepositExpired
	}
	return models.DepositFailed
}

// ApplyDeposit commits a terminal order outcome to a deposit already claimed
// into processing.
func (s *SettlementService) ApplyDeposit(ctx context.Context, dep models.Deposit, order exchange.Order) error {
	if order.Status.IsComplete() {
		settled := money.FromDecimal(order.SettleAmount)
		if settled <= 0 {
			settled = dep.Amount
		}

		kind := models.EntryDeposit
		desc := fmt.Sprintf("deposit %s via %s", settled, dep.Coin)
		if settled*100 < dep.Amount*underpaymentThresholdPct {
			kind = models.EntryUnderpaymentCredit
			desc = fmt.Sprintf("underpaid deposit: received %s of %s", settled, dep.Amount)
		}

		// A crash between credit and MarkCompleted leaves the row in
		// processing; the recovery sweep reclaims it and apply runs again.
		// The committed entry referencing this deposit is the idempotency
		// record: credit only if it is absent.
		credited, err := s.ledger.CreditExists(ctx, dep.ID)
		if err != nil {
			return fmt.Errorf("check existing credit for deposit %s: %w", dep.ID, err)
		}
		if !credited {
			if _, err := s.ledger.Add(ctx, dep.UserID, settled, kind, desc, &dep.ID,
				models.CryptoDetail{Coin: dep.Coin, Network: dep.Network, OrderID: dep.OrderID}); err != nil {
				return fmt.Errorf("credit deposit %s: %w", dep.ID, err)
			}
		}
		if _, err := s.deposits.MarkCompleted(ctx, dep.ID, settled, order.SettleHash); err != nil {
			return fmt.Errorf("mark deposit completed: %w", err)
		}
		s.mirror(ctx, models.Transaction{
			UserID: dep.UserID, Purpose: models.TxnDeposit, OrderID: dep.OrderID,
			Amount: settled, Coin: dep.Coin, Network: dep.Network, Status: models.TxnCompleted,
		})
		s.audit("deposit", dep.ID, "settled", map[string]any{"settled": settled.String(), "kind": string(kind)})
		metrics.SettlementsTotal.WithLabelValues("deposit", "completed").Inc()
		return nil
	}

	status := failureStatus(order.Status)
	reason := "order " + string(order.Status)
	if _, err := s.deposits.MarkFailed(ctx, dep.ID, status, reason); err != nil {
		return fmt.Errorf("mark deposit failed: %w", err)
	}
	s.mirror(ctx, models.Transaction{
		UserID: dep.UserID, Purpose: models.TxnDeposit, OrderID: dep.OrderID,
		Amount: dep.Amount, Coin: dep.Coin, Network: dep.Network, Status: models.TxnFailed,
	})
	s.audit("deposit", dep.ID, "failed", map[string]any{"reason": reason})
	metrics.SettlementsTotal.WithLabelValues("deposit", "failed").Inc()
	return nil
}

// ApplyGiftCard activates a crypto-paid card (or fails it) after its payment
// order reached a terminal state. Caller holds the claim.
func (s *SettlementService) ApplyGiftCard(ctx context.Context, card models.GiftCard, order exchange.Order) error {
	orderID := ""
	if card.OrderID != nil {
		orderID = *card.OrderID
	}
	if order.Status.IsComplete() {
		if _, err := s.cards.Activate(ctx, card.ID, order.SettleHash); err != nil {
			return fmt.Errorf("activate gift card: %w", err)
		}
		s.mirror(ctx, models.Transaction{
			UserID: card.CreatedBy, Purpose: models.TxnPurchase, OrderID: orderID,
			Amount: card.Value, Status: models.TxnCompleted,
		})
		s.audit("gift_card", card.ID, "activated", map[string]any{"proof": order.SettleHash})
		metrics.SettlementsTotal.WithLabelValues("gift_card", "completed").Inc()
		return nil
	}

	target := models.CardCancelled
	if order.Status == exchange.StatusExpired {
		target = models.CardExpired
	}
	if _, err := s.cards.MarkFailed(ctx, card.ID, target, "payment order "+string(order.Status)); err != nil {
		return fmt.Errorf("mark gift card failed: %w", err)
	}
	s.mirror(ctx, models.Transaction{
		UserID: card.CreatedBy, Purpose: models.TxnPurchase, OrderID: orderID,
		Amount: card.Value, Status: models.TxnFailed,
	})
	s.audit("gift_card", card.ID, "cancelled", map[string]any{"reason": string(order.Status)})
	metrics.SettlementsTotal.WithLabelValues("gift_card", "failed").Inc()
	return nil
}

// ApplyRedemption records the outcome of the outbound order that pays a
// redeemed card out in crypto. No ledger movement: the card's value left the
// books when the redemption was created.
func (s *SettlementService) ApplyRedemption(ctx context.Context, r models.Redemption, order exchange.Order) error {
	userID := ""
	if r.UserID != nil {
		userID = *r.UserID
	}
	if order.Status.IsComplete() {
		if _, err := s.redemptions.MarkCompleted(ctx, r.ID, order.SettleAmount.String(), order.SettleHash); err != nil {
			return fmt.Errorf("mark redemption completed: %w", err)
		}
		if userID != "" {
			s.mirror(ctx, models.Transaction{
				UserID: userID, Purpose: models.TxnRedemption, OrderID: r.OrderID,
				Amount: r.EstimatedAmount, Coin: r.Coin, Network: r.Network, Status: models.TxnCompleted,
			})
		}
		s.audit("redemption", r.ID, "completed", map[string]any{"settled": order.SettleAmount.String()})
		metrics.SettlementsTotal.WithLabelValues("redemption", "completed").Inc()
		return nil
	}

	if _, err := s.redemptions.MarkFailed(ctx, r.ID, "order "+string(order.Status)); err != nil {
		return fmt.Errorf("mark redemption failed: %w", err)
	}
	if userID != "" {
		s.mirror(ctx, models.Transaction{
			UserID: userID, Purpose: models.TxnRedemption, OrderID: r.OrderID,
			Amount: r.EstimatedAmount, Coin: r.Coin, Network: r.Network, Status: models.TxnFailed,
		})
	}
	s.audit("redemption", r.ID, "failed", map[string]any{"reason": string(order.Status)})
	metrics.SettlementsTotal.WithLabelValues("redemption", "failed").Inc()
	return nil
}

// ProcessRedemption is the admin manual trigger. An empty action probes and
// reconciles; "fail" force-fails a stuck quoted redemption; "requeue" returns
// a stuck processing redemption to quoted for the next sweep.
func (s *SettlementService) ProcessRedemption(ctx context.Context, id, action string) (string, error) {
	r, err := s.redemptions.GetByID(ctx, id)
	if err != nil {
		return "", ErrNotFound
	}

	switch action {
	case "fail":
		locked, err := s.redemptions.Claim(ctx, r.ID, models.RedemptionQuoted, models.RedemptionProcessing)
		if err != nil {
			return "", err
		}
		if !locked {
			return "", ErrInvalidState
		}
		if _, err := s.redemptions.MarkFailed(ctx, r.ID, "failed by admin"); err != nil {
			return "", err
		}
		s.audit("redemption", r.ID, "admin_failed", nil)
		return "failed", nil

	case "requeue":
		locked, err := s.redemptions.Claim(ctx, r.ID, models.RedemptionProcessing, models.RedemptionQuoted)
		if err != nil {
			return "", err
		}
		if !locked {
			return "", ErrInvalidState
		}
		s.audit("redemption", r.ID, "admin_requeued", nil)
		return "requeued", nil

	case "":
		if r.Status.Terminal() {
			return string(r.Status), ErrAlreadyProcessed
		}
		order, err := s.prober.GetOrder(ctx, r.OrderID)
		if err != nil {
			if exchange.IsTransient(err) {
				return string(r.Status), ErrStillPending
			}
			return "", err
		}
		if order.Status.IsPending() {
			return string(r.Status), ErrStillPending
		}
		locked, err := s.redemptions.Claim(ctx, r.ID, models.RedemptionQuoted, models.RedemptionProcessing)
		if err != nil {
			return "", err
		}
		if !locked {
			return string(r.Status), ErrAlreadyProcessed
		}
		if err := s.ApplyRedemption(ctx, r, order); err != nil {
			return "", err
		}
		if order.Status.IsComplete() {
			return string(models.RedemptionCompleted), nil
		}
		return string(models.RedemptionFailed), nil

	default:
		return "", errors.New("unknown action: " + action)
	}
}
