package models

import (
	"time"

	"github.com/giftshift/giftshift-backend/internal/money"
)

type GiftCardStatus string

const (
	CardPending    GiftCardStatus = "pending"
	CardProcessing GiftCardStatus = "processing"
	CardActive     GiftCardStatus = "active"
	CardRedeemed   GiftCardStatus = "redeemed"
	CardExpired    GiftCardStatus = "expired"
	CardCancelled  GiftCardStatus = "cancelled"
)

func (s GiftCardStatus) Terminal() bool {
	return s == CardRedeemed || s == CardExpired || s == CardCancelled
}

// GiftCard. A card paid from balance is active immediately; a card paid with
// crypto stays pending until its exchange order settles. Status transitions
// are monotonic: a cancelled or expired card is never resurrected.
type GiftCard struct {
	ID             string         `json:"id"`
	Code           string         `json:"code"`
	SecretCode     string         `json:"-"`
	Value          money.Cents    `json:"value"`
	Status         GiftCardStatus `json:"status"`
	PasswordHash   *string        `json:"-"`
	CreatedBy      string         `json:"created_by"`
	RecipientName  *string        `json:"recipient_name,omitempty"`
	RecipientEmail *string        `json:"recipient_email,omitempty"`
	OrderID        *string        `json:"order_id,omitempty"`
	PaymentProof   *string        `json:"payment_proof,omitempty"`
	FailReason     *string        `json:"fail_reason,omitempty"`
	ExpiresAt      time.Time      `json:"expires_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
