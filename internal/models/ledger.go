package models

import (
	"time"

	"github.com/giftshift/giftshift-backend/internal/money"
)

type EntryKind string

const (
	EntryDeposit            EntryKind = "deposit"
	EntryUnderpaymentCredit EntryKind = "underpayment_credit"
	EntryRefund             EntryKind = "refund"
	EntryAdminAdjustment    EntryKind = "admin_adjustment"
	EntryPurchase           EntryKind = "purchase"
)

// CryptoDetail is the optional crypto leg of a ledger entry.
type CryptoDetail struct {
	Coin    string `json:"coin,omitempty"`
	Network string `json:"network,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

// LedgerEntry is one immutable balance mutation: signed amount plus the
// before/after snapshot taken at commit time. Entries are never updated.
type LedgerEntry struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	Kind          EntryKind    `json:"kind"`
	Amount        money.Cents  `json:"amount"`
	BalanceBefore money.Cents  `json:"balance_before"`
	BalanceAfter  money.Cents  `json:"balance_after"`
	Description   string       `json:"description"`
	ReferenceID   *string      `json:"reference_id,omitempty"`
	Crypto        CryptoDetail `json:"crypto,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// DepositLike reports whether the kind counts toward total_deposited.
func (k EntryKind) DepositLike() bool {
	return k == EntryDeposit || k == EntryUnderpaymentCredit
}
