package services

import (
	"context"

	"github.com/giftshift/giftshift-backend/internal/models"
	repo "github.com/giftshift/giftshift-backend/internal/repository"
)

// TransactionQuery serves the read-mostly history mirror.
type TransactionQuery struct {
	r repo.Transactions
}

func NewTransactionQuery(r repo.Transactions) *TransactionQuery { return &TransactionQuery{r: r} }

func (s *TransactionQuery) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	return s.r.ListByUser(ctx, userID, limit, offset)
}
