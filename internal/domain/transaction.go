/**
 * @description
 * This file defines the core domain models for the ledger service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (cents), which
 *   avoids floating-point inaccuracies with financial data.
 * - TransactionType and TransactionStatus are closed string enums so that the
 *   processor can switch over them exhaustively.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType enumerates the financial operations the ledger supports.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeRefund     TransactionType = "REFUND"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer,
		TransactionTypePayment, TransactionTypeRefund:
		return true
	}
	return false
}

// TransactionStatus enumerates the lifecycle states of a transaction.
// COMPLETED, FAILED and CANCELLED are terminal.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// Transaction is the central ledger record for any money movement in the system.
// This struct maps directly to the `transactions` table in the database.
type Transaction struct {
	ID                uuid.UUID         `json:"id"`
	TransactionID     uuid.UUID         `json:"transaction_id"` // externally visible reference
	UserID            uuid.UUID         `json:"user_id"`
	Type              TransactionType   `json:"type"`
	Status            TransactionStatus `json:"status"`
	Amount            int64             `json:"amount"` // in cents
	SenderAccountID   *uuid.UUID        `json:"sender_account_id,omitempty"`
	ReceiverAccountID *uuid.UUID        `json:"receiver_account_id,omitempty"`
	CardID            *uuid.UUID        `json:"card_id,omitempty"`
	Description       string            `json:"description"`
	Category          string            `json:"category"`
	Reference         string            `json:"reference"`
	FailureReason     *string           `json:"failure_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	ProcessedAt       *time.Time        `json:"processed_at,omitempty"`
}

// CreateTransactionRequest is the DTO for incoming transaction execution requests.
type CreateTransactionRequest struct {
	Type              TransactionType `json:"type"`
	Amount            int64           `json:"amount"` // in cents
	SenderAccountID   *uuid.UUID      `json:"sender_account_id,omitempty"`
	ReceiverAccountID *uuid.UUID      `json:"receiver_account_id,omitempty"`
	CardID            *uuid.UUID      `json:"card_id,omitempty"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Reference         string          `json:"reference"`
}

// TransactionDetail is a Transaction enriched with display fields for the API
// layer: account numbers for both endpoints and the masked card number.
type TransactionDetail struct {
	Transaction
	SenderAccountNumber   *string `json:"sender_account_number,omitempty"`
	ReceiverAccountNumber *string `json:"receiver_account_number,omitempty"`
	CardNumberMasked      *string `json:"card_number,omitempty"`
}

// TransactionListOptions controls filtering and pagination for transaction history.
type TransactionListOptions struct {
	Type     string
	Status   string
	Category string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// TransactionStatsBucket is one aggregate row of the statistics surface.
type TransactionStatsBucket struct {
	Key         string `json:"key"`
	Count       int64  `json:"count"`
	TotalAmount int64  `json:"total_amount"`
}

// TransactionStats summarizes completed-transaction volume over a time window,
// plus a status breakdown that includes failed and cancelled attempts.
type TransactionStats struct {
	TotalCount    int64                    `json:"total_count"`
	TotalAmount   int64                    `json:"total_amount"`
	AverageAmount int64                    `json:"average_amount"`
	ByType        []TransactionStatsBucket `json:"by_type"`
	ByStatus      []TransactionStatsBucket `json:"by_status"`
}

// TransactionEvent is the payload published to the message broker when a
// transaction reaches a terminal state.
type TransactionEvent struct {
	TransactionID uuid.UUID         `json:"transaction_id"`
	UserID        uuid.UUID         `json:"user_id"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Amount        int64             `json:"amount"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}
