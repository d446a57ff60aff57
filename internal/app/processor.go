/**
 * @description
 * This file contains the transaction type processor: given a transaction's
 * type and endpoints, it validates the structural requirements and performs
 * the correct sequence of balance mutations through store.BalanceOps.
 *
 * The processor runs entirely inside the orchestrator's balance-work scope,
 * so a failure at any step rolls back every mutation made before it.
 */

package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/finvault/ledger-service/internal/domain"
	"github.com/finvault/ledger-service/internal/store"
)

// validateStructure checks the type-specific endpoint requirements before any
// balance is touched.
func validateStructure(tx *domain.Transaction) error {
	hasSender := tx.SenderAccountID != nil
	hasReceiver := tx.ReceiverAccountID != nil
	hasCard := tx.CardID != nil

	switch tx.Type {
	case domain.TransactionTypeDeposit, domain.TransactionTypeRefund:
		if !hasSender && !hasReceiver && !hasCard {
			return fmt.Errorf("%w: %s requires an account or card endpoint", ErrInvalidTransactionStructure, tx.Type)
		}
	case domain.TransactionTypeWithdrawal, domain.TransactionTypePayment:
		if !hasSender && !hasCard {
			return fmt.Errorf("%w: %s requires a sender account or card", ErrInvalidTransactionStructure, tx.Type)
		}
	case domain.TransactionTypeTransfer:
		if (!hasSender && !hasCard) || !hasReceiver {
			return fmt.Errorf("%w: TRANSFER requires a funding source and a receiver account", ErrInvalidTransactionStructure)
		}
		if hasSender && *tx.SenderAccountID == *tx.ReceiverAccountID {
			return fmt.Errorf("%w: sender and receiver accounts must differ", ErrInvalidTransactionStructure)
		}
	default:
		return ErrInvalidTransactionType
	}
	return nil
}

// processByType executes the balance mutations for the transaction and
// returns the post-mutation balance of every affected account, keyed by
// account id. Card balances are tracked by the store but not snapshotted.
func processByType(ctx context.Context, ops store.BalanceOps, tx *domain.Transaction) (map[uuid.UUID]int64, error) {
	affected := make(map[uuid.UUID]int64)

	switch tx.Type {
	case domain.TransactionTypeDeposit, domain.TransactionTypeRefund:
		// Credit lands in the receiver account, falling back to the sender
		// account when no receiver was supplied. A card endpoint is credited
		// in addition, not instead.
		target := tx.ReceiverAccountID
		if target == nil {
			target = tx.SenderAccountID
		}
		if target != nil {
			balance, err := ops.CreditAccount(ctx, *target, tx.Amount)
			if err != nil {
				return nil, err
			}
			affected[*target] = balance
		}
		if tx.CardID != nil {
			if _, err := ops.CreditCard(ctx, *tx.CardID, tx.Amount); err != nil {
				return nil, err
			}
		}

	case domain.TransactionTypeWithdrawal, domain.TransactionTypePayment:
		// When both a sender account and a card are supplied, both are
		// debited independently. This dual-source behavior is deliberate and
		// pinned by tests; see DESIGN.md before changing it.
		if tx.SenderAccountID != nil {
			balance, err := ops.DebitAccount(ctx, *tx.SenderAccountID, tx.Amount)
			if err != nil {
				return nil, err
			}
			affected[*tx.SenderAccountID] = balance
		}
		if tx.CardID != nil {
			if _, err := ops.DebitCard(ctx, *tx.CardID, tx.Amount); err != nil {
				return nil, err
			}
		}

	case domain.TransactionTypeTransfer:
		// Exactly one funding source: the sender account when present,
		// otherwise the card. The debit runs before the credit so an
		// insufficient-funds failure never leaves a dangling credit.
		if tx.SenderAccountID != nil {
			balance, err := ops.DebitAccount(ctx, *tx.SenderAccountID, tx.Amount)
			if err != nil {
				return nil, err
			}
			affected[*tx.SenderAccountID] = balance
		} else {
			if _, err := ops.DebitCard(ctx, *tx.CardID, tx.Amount); err != nil {
				return nil, err
			}
		}
		balance, err := ops.CreditAccount(ctx, *tx.ReceiverAccountID, tx.Amount)
		if err != nil {
			return nil, err
		}
		affected[*tx.ReceiverAccountID] = balance

	default:
		return nil, ErrInvalidTransactionType
	}

	return affected, nil
}
