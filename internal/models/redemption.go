package models

import (
	"time"

	"github.com/giftshift/giftshift-backend/internal/money"
)

type RedemptionStatus string

const (
	RedemptionQuoted     RedemptionStatus = "quoted"
	RedemptionProcessing RedemptionStatus = "processing"
	RedemptionCompleted  RedemptionStatus = "completed"
	RedemptionFailed     RedemptionStatus = "failed"
)

func (s RedemptionStatus) Terminal() bool {
	return s == RedemptionCompleted || s == RedemptionFailed
}

// Redemption links a redeemed gift card to the outbound exchange order that
// delivers crypto to the recipient's address. EstimatedAmount is the USD quote
// at creation; SettledAmount is the actual crypto amount delivered, kept as a
// decimal string because it is denominated in the settle coin, not USD.
type Redemption struct {
	ID              string           `json:"id"`
	GiftCardID      string           `json:"gift_card_id"`
	UserID          *string          `json:"user_id,omitempty"`
	Coin            string           `json:"coin"`
	Network         string           `json:"network"`
	Address         string           `json:"address"`
	OrderID         string           `json:"order_id"`
	Status          RedemptionStatus `json:"status"`
	EstimatedAmount money.Cents      `json:"estimated_amount"`
	SettledAmount   *string          `json:"settled_amount,omitempty"`
	SettleHash      *string          `json:"settle_hash,omitempty"`
	FailReason      *string          `json:"fail_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
