package postgres

import (
	repo "github.com/giftshift/giftshift-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Users        repo.Users
	Balances     repo.Balances
	Ledger       repo.Ledger
	Deposits     repo.Deposits
	GiftCards    repo.GiftCards
	Redemptions  repo.Redemptions
	Transactions repo.Transactions
	AuditLogs    repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:        &usersRepo{pool},
		Balances:     &balancesRepo{pool},
		Ledger:       &ledgerRepo{pool},
		Deposits:     &depositsRepo{pool},
		GiftCards:    &giftCardsRepo{pool},
		Redemptions:  &redemptionsRepo{pool},
		Transactions: &transactionsRepo{pool},
		AuditLogs:    &auditLogsRepo{pool},
	}
}
