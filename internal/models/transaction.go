package models

import (
	"time"

	"github.com/giftshift/giftshift-backend/internal/money"
)

type TxnPurpose string

const (
	TxnDeposit    TxnPurpose = "deposit"
	TxnPurchase   TxnPurpose = "purchase"
	TxnRedemption TxnPurpose = "redemption"
)

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
)

// Transaction mirrors an external order's lifecycle for user-facing history.
// It is display-only; the ledger is authoritative for balances.
type Transaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Purpose   TxnPurpose        `json:"purpose"`
	OrderID   string            `json:"order_id"`
	Amount    money.Cents       `json:"amount"`
	Coin      string            `json:"coin"`
	Network   string            `json:"network"`
	Status    TransactionStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
