/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the ledger service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/finvault/ledger-service/internal/domain"
)

// BalanceOps is the set of balance mutations available inside one atomic
// processing scope. Every call acquires a row lock on the mutated account or
// card, so a concurrent debit of the same entity cannot interleave with the
// sufficient-funds check. Each mutation returns the post-mutation balance.
type BalanceOps interface {
	CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error)
	DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error)
	CreditCard(ctx context.Context, cardID uuid.UUID, amount int64) (int64, error)
	DebitCard(ctx context.Context, cardID uuid.UUID, amount int64) (int64, error)
	AppendBalanceHistory(ctx context.Context, accountID uuid.UUID, balance int64) error
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	ListBalanceHistory(ctx context.Context, accountID uuid.UUID, from, to *time.Time) ([]domain.AccountBalanceHistory, error)

	// Card methods
	CreateCard(ctx context.Context, card *domain.Card) error
	FindCardByID(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)
	FindCardsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Card, error)
	UpdateCardStatus(ctx context.Context, cardID uuid.UUID, status domain.CardStatus) error
	CountPendingTransactionsByCard(ctx context.Context, cardID uuid.UUID) (int64, error)

	// Transaction methods
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	ListTransactionsByUserID(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error)
	GetTransactionStats(ctx context.Context, userID uuid.UUID, from, to *time.Time) (*domain.TransactionStats, error)
	MarkTransactionFailed(ctx context.Context, transactionID uuid.UUID, processedAt time.Time, failureReason string) error
	CancelPendingTransaction(ctx context.Context, transactionID uuid.UUID, userID uuid.UUID) (bool, error)

	// ExecBalanceWork runs fn inside one database transaction and, when fn
	// succeeds, moves the PENDING transaction row to COMPLETED in that same
	// transaction. Balance mutations, history appends and the COMPLETED
	// status commit together, or roll back together if any step fails, so a
	// row can never persist as PENDING with its money already moved.
	ExecBalanceWork(ctx context.Context, transactionID uuid.UUID, processedAt time.Time, fn func(ops BalanceOps) error) error
}
