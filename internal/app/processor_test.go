package app

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/finvault/ledger-service/internal/domain"
)

func TestValidateStructure(t *testing.T) {
	accountA := uuid.New()
	accountB := uuid.New()
	cardID := uuid.New()

	tests := []struct {
		name    string
		tx      domain.Transaction
		wantErr error
	}{
		{
			name:    "deposit with receiver account",
			tx:      domain.Transaction{Type: domain.TransactionTypeDeposit, ReceiverAccountID: &accountA},
			wantErr: nil,
		},
		{
			name:    "deposit with card only",
			tx:      domain.Transaction{Type: domain.TransactionTypeDeposit, CardID: &cardID},
			wantErr: nil,
		},
		{
			name:    "deposit with no endpoint",
			tx:      domain.Transaction{Type: domain.TransactionTypeDeposit},
			wantErr: ErrInvalidTransactionStructure,
		},
		{
			name:    "refund with sender account",
			tx:      domain.Transaction{Type: domain.TransactionTypeRefund, SenderAccountID: &accountA},
			wantErr: nil,
		},
		{
			name:    "withdrawal with sender account",
			tx:      domain.Transaction{Type: domain.TransactionTypeWithdrawal, SenderAccountID: &accountA},
			wantErr: nil,
		},
		{
			name:    "withdrawal with card only",
			tx:      domain.Transaction{Type: domain.TransactionTypeWithdrawal, CardID: &cardID},
			wantErr: nil,
		},
		{
			name:    "withdrawal with receiver only",
			tx:      domain.Transaction{Type: domain.TransactionTypeWithdrawal, ReceiverAccountID: &accountA},
			wantErr: ErrInvalidTransactionStructure,
		},
		{
			name:    "payment with no funding source",
			tx:      domain.Transaction{Type: domain.TransactionTypePayment},
			wantErr: ErrInvalidTransactionStructure,
		},
		{
			name:    "transfer account to account",
			tx:      domain.Transaction{Type: domain.TransactionTypeTransfer, SenderAccountID: &accountA, ReceiverAccountID: &accountB},
			wantErr: nil,
		},
		{
			name:    "transfer card to account",
			tx:      domain.Transaction{Type: domain.TransactionTypeTransfer, CardID: &cardID, ReceiverAccountID: &accountB},
			wantErr: nil,
		},
		{
			name:    "transfer without receiver",
			tx:      domain.Transaction{Type: domain.TransactionTypeTransfer, SenderAccountID: &accountA},
			wantErr: ErrInvalidTransactionStructure,
		},
		{
			name:    "transfer without funding source",
			tx:      domain.Transaction{Type: domain.TransactionTypeTransfer, ReceiverAccountID: &accountB},
			wantErr: ErrInvalidTransactionStructure,
		},
		{
			name:    "transfer to same account",
			tx:      domain.Transaction{Type: domain.TransactionTypeTransfer, SenderAccountID: &accountA, ReceiverAccountID: &accountA},
			wantErr: ErrInvalidTransactionStructure,
		},
		{
			name:    "unknown type",
			tx:      domain.Transaction{Type: domain.TransactionType("CHARGEBACK"), SenderAccountID: &accountA},
			wantErr: ErrInvalidTransactionType,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateStructure(&tc.tx)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}
