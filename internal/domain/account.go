package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a user's ledger account. Its balance is written only by
// the store's balance mutation queries, never directly.
type Account struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	AccountNumber string    `json:"account_number"`
	Balance       int64     `json:"balance"` // in cents, never negative
	IsDefault     bool      `json:"is_default"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateAccountRequest is the DTO for opening a new account.
type CreateAccountRequest struct {
	Currency  string `json:"currency"`
	IsDefault bool   `json:"is_default"`
}

// AccountBalanceHistory is an append-only audit snapshot of an account's
// balance after a committed mutation. Rows are never updated or deleted.
type AccountBalanceHistory struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Balance   int64     `json:"balance"` // post-mutation snapshot
	CreatedAt time.Time `json:"created_at"`
}
