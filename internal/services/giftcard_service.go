package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/giftshift/giftshift-backend/internal/auth"
	"github.com/giftshift/giftshift-backend/internal/exchange"
	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/giftshift/giftshift-backend/internal/money"
	repo "github.com/giftshift/giftshift-backend/internal/repository"
	"github.com/google/uuid"
)

const cardValidity = 365 * 24 * time.Hour

type PurchaseRequest struct {
	Value          money.Cents
	PayWith        string // "balance" | "crypto"
	Coin           string
	Network        string
	Password       string
	RecipientName  string
	RecipientEmail string
}

type RedeemRequest struct {
	Code       string
	SecretCode string
	Password   string
	Target     string // "balance" | "crypto"
	Coin       string
	Network    string
	Address    string
}

// GiftCardService issues and redeems cards. A balance purchase deducts and
// activates in one call; a crypto purchase leaves the card pending behind an
// exchange order, and the reconciliation engine activates it.
type GiftCardService struct {
	ex          OrderCreator
	cards       repo.GiftCards
	redemptions repo.Redemptions
	txns        repo.Transactions
	ledger      *LedgerService
}

func NewGiftCardService(ex OrderCreator, cards repo.GiftCards, reds repo.Redemptions, txns repo.Transactions, ledger *LedgerService) *GiftCardService {
	return &GiftCardService{ex: ex, cards: cards, redemptions: reds, txns: txns, ledger: ledger}
}

// newCode builds a redemption code like GS-3F2A9C1B.
func newCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "GS-" + raw[:8]
}

func (s *GiftCardService) Purchase(ctx context.Context, userID string, req PurchaseRequest) (models.GiftCard, error) {
	if req.Value <= 0 {
		return models.GiftCard{}, fmt.Errorf("value must be > 0")
	}

	card := models.GiftCard{
		Code:       newCode(),
		SecretCode: uuid.NewString(),
		Value:      req.Value,
		CreatedBy:  userID,
		ExpiresAt:  time.Now().Add(cardValidity),
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return models.GiftCard{}, fmt.Errorf("hash card password: %w", err)
		}
		card.PasswordHash = &hash
	}
	if req.RecipientName != "" {
		card.RecipientName = &req.RecipientName
	}
	if req.RecipientEmail != "" {
		card.RecipientEmail = &req.RecipientEmail
	}

	switch req.PayWith {
	case "balance":
		cardID := uuid.NewString()
		card.ID = cardID
		if _, err := s.ledger.Deduct(ctx, userID, req.Value,
			fmt.Sprintf("gift card purchase %s", card.Code), &cardID); err != nil {
			return models.GiftCard{}, err
		}
		card.Status = models.CardActive
		created, err := s.cards.Create(ctx, card)
		if err != nil {
			// The deduction committed; refund rather than leave money gone.
			if _, rerr := s.ledger.Add(ctx, userID, req.Value, models.EntryRefund,
				"refund: gift card creation failed", &cardID, models.CryptoDetail{}); rerr != nil {
				return models.GiftCard{}, fmt.Errorf("create card failed (%v) and refund failed: %w", err, rerr)
			}
			return models.GiftCard{}, fmt.Errorf("create card: %w", err)
		}
		return created, nil

	case "crypto":
		order, err := s.ex.CreateOrder(ctx, exchange.CreateOrderRequest{
			DepositCoin:    req.Coin,
			DepositNetwork: req.Network,
			SettleCoin:     "USDC",
			SettleNetwork:  "ethereum",
			SettleAmount:   req.Value.Decimal(),
		})
		if err != nil {
			return models.GiftCard{}, fmt.Errorf("create payment order: %w", err)
		}
		card.Status = models.CardPending
		card.OrderID = &order.ID
		created, err := s.cards.Create(ctx, card)
		if err != nil {
			return models.GiftCard{}, fmt.Errorf("create card: %w", err)
		}
		_ = s.txns.UpsertByOrder(ctx, models.Transaction{
			UserID: userID, Purpose: models.TxnPurchase, OrderID: order.ID,
			Amount: req.Value, Coin: req.Coin, Network: req.Network, Status: models.TxnPending,
		})
		// Expose the deposit address to the buyer via the payment proof slot
		// of the response; the card row itself stores only the order id.
		created.PaymentProof = &order.DepositAddress
		return created, nil

	default:
		return models.GiftCard{}, fmt.Errorf("unknown payment method %q", req.PayWith)
	}
}

// Redeem cashes an active card. MarkRedeemed is a conditional transition from
// active, so two racing redeemers cannot both win. Balance target credits the
// redeemer's ledger; crypto target opens an outbound order tracked by a
// redemption record.
func (s *GiftCardService) Redeem(ctx context.Context, userID string, req RedeemRequest) (*models.Redemption, *models.Balance, error) {
	card, err := s.cards.GetByCode(ctx, strings.TrimSpace(req.Code))
	if err != nil {
		return nil, nil, ErrNotFound
	}
	if card.SecretCode != req.SecretCode {
		return nil, nil, ErrNotFound
	}
	if card.Status != models.CardActive {
		if card.Status == models.CardRedeemed {
			return nil, nil, ErrAlreadyProcessed
		}
		return nil, nil, ErrInvalidState
	}
	if time.Now().After(card.ExpiresAt) {
		// Best effort; the card is unusable either way.
		_, _ = s.cards.Claim(ctx, card.ID, models.CardActive, models.CardExpired)
		return nil, nil, ErrInvalidState
	}
	if card.PasswordHash != nil {
		if err := auth.VerifyPassword(req.Password, *card.PasswordHash); err != nil {
			return nil, nil, ErrNotFound
		}
	}

	switch req.Target {
	case "balance":
		redeemed, err := s.cards.MarkRedeemed(ctx, card.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("redeem card: %w", err)
		}
		if !redeemed {
			return nil, nil, ErrAlreadyProcessed
		}
		bal, err := s.ledger.Add(ctx, userID, card.Value, models.EntryRefund,
			fmt.Sprintf("gift card %s redeemed to balance", card.Code), &card.ID, models.CryptoDetail{})
		if err != nil {
			return nil, nil, fmt.Errorf("credit redemption: %w", err)
		}
		return nil, &bal, nil

	case "crypto":
		// The payout order is opened before the card flips to redeemed: if
		// the flip then loses a race the unfunded order simply expires,
		// whereas un-redeeming a card would break transition monotonicity.
		order, err := s.ex.CreateOrder(ctx, exchange.CreateOrderRequest{
			DepositCoin:    "USDC",
			DepositNetwork: "ethereum",
			SettleCoin:     req.Coin,
			SettleNetwork:  req.Network,
			SettleAmount:   card.Value.Decimal(),
			SettleAddress:  req.Address,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create payout order: %w", err)
		}
		redeemed, err := s.cards.MarkRedeemed(ctx, card.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("redeem card: %w", err)
		}
		if !redeemed {
			return nil, nil, ErrAlreadyProcessed
		}
		red, err := s.redemptions.Create(ctx, models.Redemption{
			GiftCardID:      card.ID,
			UserID:          &userID,
			Coin:            req.Coin,
			Network:         req.Network,
			Address:         req.Address,
			OrderID:         order.ID,
			Status:          models.RedemptionQuoted,
			EstimatedAmount: card.Value,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("persist redemption: %w", err)
		}
		_ = s.txns.UpsertByOrder(ctx, models.Transaction{
			UserID: userID, Purpose: models.TxnRedemption, OrderID: order.ID,
			Amount: card.Value, Coin: req.Coin, Network: req.Network, Status: models.TxnPending,
		})
		return &red, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown redeem target %q", req.Target)
	}
}

func (s *GiftCardService) ListRedemptions(ctx context.Context, status models.RedemptionStatus, limit int) ([]models.Redemption, error) {
	return s.redemptions.ListByStatus(ctx, status, limit)
}
