package services

import (
	"context"
	"fmt"

	"github.com/giftshift/giftshift-backend/internal/exchange"
	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/giftshift/giftshift-backend/internal/money"
	repo "github.com/giftshift/giftshift-backend/internal/repository"
)

// OrderCreator is the write slice of the exchange client.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req exchange.CreateOrderRequest) (exchange.Order, error)
	ListCoins(ctx context.Context) ([]exchange.Coin, error)
}

// DepositService opens funding requests: a fixed-rate exchange order
// converting the user's chosen coin into the treasury's settle asset, plus
// the pending deposit row the sweepers will reconcile.
type DepositService struct {
	ex       OrderCreator
	deposits repo.Deposits
	txns     repo.Transactions
}

func NewDepositService(ex OrderCreator, deposits repo.Deposits, txns repo.Transactions) *DepositService {
	return &DepositService{ex: ex, deposits: deposits, txns: txns}
}

func (s *DepositService) Create(ctx context.Context, userID string, amount money.Cents, coin, network string) (models.Deposit, error) {
	if amount <= 0 {
		return models.Deposit{}, fmt.Errorf("amount must be > 0")
	}

	order, err := s.ex.CreateOrder(ctx, exchange.CreateOrderRequest{
		DepositCoin:    coin,
		DepositNetwork: network,
		SettleCoin:     "USDC",
		SettleNetwork:  "ethereum",
		SettleAmount:   amount.Decimal(),
	})
	if err != nil {
		return models.Deposit{}, fmt.Errorf("create exchange order: %w", err)
	}

	dep, err := s.deposits.Create(ctx, models.Deposit{
		UserID:         userID,
		Amount:         amount,
		Coin:           coin,
		Network:        network,
		OrderID:        order.ID,
		DepositAddress: order.DepositAddress,
		Status:         models.DepositPending,
	})
	if err != nil {
		return models.Deposit{}, fmt.Errorf("persist deposit: %w", err)
	}

	_ = s.txns.UpsertByOrder(ctx, models.Transaction{
		UserID: userID, Purpose: models.TxnDeposit, OrderID: order.ID,
		Amount: amount, Coin: coin, Network: network, Status: models.TxnPending,
	})
	return dep, nil
}

// Coins lists the aggregator's supported coins and networks.
func (s *DepositService) Coins(ctx context.Context) ([]exchange.Coin, error) {
	return s.ex.ListCoins(ctx)
}
