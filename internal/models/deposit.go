package models

import (
	"time"

	"github.com/giftshift/giftshift-backend/internal/money"
)

type DepositStatus string

const (
	DepositPending    DepositStatus = "pending"
	DepositProcessing DepositStatus = "processing"
	DepositCompleted  DepositStatus = "completed"
	DepositFailed     DepositStatus = "failed"
	DepositExpired    DepositStatus = "expired"
)

func (s DepositStatus) Terminal() bool {
	return s == DepositCompleted || s == DepositFailed || s == DepositExpired
}

// Deposit is a pending external funding request tied to one exchange order.
type Deposit struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	Amount         money.Cents   `json:"amount"`
	Coin           string        `json:"coin"`
	Network        string        `json:"network"`
	OrderID        string        `json:"order_id"`
	DepositAddress string        `json:"deposit_address"`
	Status         DepositStatus `json:"status"`
	SettledAmount  *money.Cents  `json:"settled_amount,omitempty"`
	SettleHash     *string       `json:"settle_hash,omitempty"`
	FailReason     *string       `json:"fail_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}
