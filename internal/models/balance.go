package models

import (
	"time"

	"github.com/giftshift/giftshift-backend/internal/money"
)

// Balance is one user's USD balance. It is mutated only through conditional
// updates in the balances repository; the struct itself is a plain snapshot.
type Balance struct {
	UserID         string      `json:"user_id"`
	Balance        money.Cents `json:"balance"`
	TotalDeposited money.Cents `json:"total_deposited"`
	TotalSpent     money.Cents `json:"total_spent"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
