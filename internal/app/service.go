/**
 * @description
 * This file contains the core business logic for the ledger service. The
 * `Service` struct orchestrates all money movement: it validates and creates
 * transaction records, drives them to a terminal state atomically, snapshots
 * balance history, and exposes the read/reporting surface plus the account
 * and card lifecycle the ledger interacts with.
 *
 * Key features:
 * - ExecuteTransaction creates the transaction row, runs the type processor
 *   inside one database transaction, and marks the row COMPLETED or FAILED.
 *   A FAILED row always survives as an audit record while every balance
 *   mutation of the failed attempt is rolled back.
 * - Publishes lifecycle events to RabbitMQ for asynchronous consumers.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Event publishing.
 */

package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finvault/ledger-service/internal/domain"
	"github.com/finvault/ledger-service/internal/store"
	"github.com/finvault/ledger-service/pkg/rabbitmq"
)

const eventsExchange = "ledger.events"

// Service provides the core business logic for the ledger.
type Service struct {
	repo   store.Repository
	events rabbitmq.Publisher
}

// NewService creates a new ledger service instance. The repository and the
// event publisher are injected; the service holds no global state.
func NewService(repo store.Repository, events rabbitmq.Publisher) *Service {
	return &Service{repo: repo, events: events}
}

// ExecuteTransaction is the single entry point that creates a transaction
// record and drives it to a terminal state.
//
// The transaction row is persisted before processing and survives any
// failure; the balance mutations of one attempt commit or roll back as a
// unit. The original processing error is returned unchanged alongside the
// FAILED record so callers can map it to a response.
func (s *Service) ExecuteTransaction(ctx context.Context, userID uuid.UUID, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !req.Type.Valid() {
		return nil, ErrInvalidTransactionType
	}

	if err := s.validateEndpointOwnership(ctx, userID, req); err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID:                uuid.New(),
		TransactionID:     uuid.New(),
		UserID:            userID,
		Type:              req.Type,
		Status:            domain.TransactionStatusPending,
		Amount:            req.Amount,
		SenderAccountID:   req.SenderAccountID,
		ReceiverAccountID: req.ReceiverAccountID,
		CardID:            req.CardID,
		Description:       req.Description,
		Category:          req.Category,
		Reference:         req.Reference,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction record: %w", err)
	}

	now := time.Now().UTC()
	processErr := validateStructure(tx)
	if processErr == nil {
		// The COMPLETED status is written by the store inside this same
		// database transaction, so a row can never stay PENDING once its
		// balance mutations have committed.
		processErr = s.repo.ExecBalanceWork(ctx, tx.ID, now, func(ops store.BalanceOps) error {
			affected, err := processByType(ctx, ops, tx)
			if err != nil {
				return err
			}
			for accountID, balance := range affected {
				if err := ops.AppendBalanceHistory(ctx, accountID, balance); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if processErr != nil {
		if markErr := s.repo.MarkTransactionFailed(ctx, tx.ID, now, processErr.Error()); markErr != nil {
			log.Printf("level=error component=app msg=\"failed to mark transaction failed\" transaction_id=%s err=%v", tx.ID, markErr)
		}
		tx.Status = domain.TransactionStatusFailed
		tx.ProcessedAt = &now
		reason := processErr.Error()
		tx.FailureReason = &reason
		s.publishTransactionEvent(ctx, "transaction.failed", tx, reason)
		return tx, processErr
	}

	tx.Status = domain.TransactionStatusCompleted
	tx.ProcessedAt = &now
	s.publishTransactionEvent(ctx, "transaction.completed", tx, "")

	return tx, nil
}

// validateEndpointOwnership checks that referenced sender account and card
// belong to the requesting user; the receiver account only needs to exist,
// since transfers may target other users.
func (s *Service) validateEndpointOwnership(ctx context.Context, userID uuid.UUID, req domain.CreateTransactionRequest) error {
	if req.SenderAccountID != nil {
		account, err := s.repo.FindAccountByID(ctx, *req.SenderAccountID)
		if err != nil {
			return err
		}
		if account.UserID != userID {
			return ErrNotAccountOwner
		}
	}
	if req.CardID != nil {
		card, err := s.repo.FindCardByID(ctx, *req.CardID)
		if err != nil {
			return err
		}
		if card.UserID != userID {
			return ErrNotCardOwner
		}
	}
	if req.ReceiverAccountID != nil {
		if _, err := s.repo.FindAccountByID(ctx, *req.ReceiverAccountID); err != nil {
			return err
		}
	}
	return nil
}

// CancelTransaction moves a PENDING transaction to CANCELLED. Processing is
// synchronous with creation, so the window is only open for transactions that
// were persisted but never driven through ExecuteTransaction.
func (s *Service) CancelTransaction(ctx context.Context, userID uuid.UUID, transactionID uuid.UUID) (*domain.Transaction, error) {
	cancelled, err := s.repo.CancelPendingTransaction(ctx, transactionID, userID)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		tx, findErr := s.repo.FindTransactionByID(ctx, transactionID)
		if findErr != nil {
			return nil, findErr
		}
		if tx.UserID != userID {
			return nil, store.ErrTransactionNotFound
		}
		return nil, ErrTransactionNotCancellable
	}
	return s.repo.FindTransactionByID(ctx, transactionID)
}

// GetTransaction returns one of the user's transactions enriched with display
// fields: account numbers for both endpoints and the masked card number.
func (s *Service) GetTransaction(ctx context.Context, userID uuid.UUID, transactionID uuid.UUID) (*domain.TransactionDetail, error) {
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, store.ErrTransactionNotFound
	}

	detail := &domain.TransactionDetail{Transaction: *tx}
	if tx.SenderAccountID != nil {
		if account, err := s.repo.FindAccountByID(ctx, *tx.SenderAccountID); err == nil {
			detail.SenderAccountNumber = &account.AccountNumber
		}
	}
	if tx.ReceiverAccountID != nil {
		if account, err := s.repo.FindAccountByID(ctx, *tx.ReceiverAccountID); err == nil {
			detail.ReceiverAccountNumber = &account.AccountNumber
		}
	}
	if tx.CardID != nil {
		if card, err := s.repo.FindCardByID(ctx, *tx.CardID); err == nil {
			masked := card.MaskedNumber()
			detail.CardNumberMasked = &masked
		}
	}
	return detail, nil
}

// ListTransactions returns the user's transaction history with filters applied.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	return s.repo.ListTransactionsByUserID(ctx, userID, opts)
}

// GetTransactionStats aggregates the user's transactions over a time window.
func (s *Service) GetTransactionStats(ctx context.Context, userID uuid.UUID, from, to *time.Time) (*domain.TransactionStats, error) {
	return s.repo.GetTransactionStats(ctx, userID, from, to)
}

// GetBalanceHistory returns the audit snapshots for one of the user's accounts.
func (s *Service) GetBalanceHistory(ctx context.Context, userID uuid.UUID, accountID uuid.UUID, from, to *time.Time) ([]domain.AccountBalanceHistory, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, store.ErrAccountNotFound
	}
	return s.repo.ListBalanceHistory(ctx, accountID, from, to)
}

// CreateAccount opens a new ledger account for the user.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, req domain.CreateAccountRequest) (*domain.Account, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}

	number, err := generateAccountNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account number: %w", err)
	}

	account := &domain.Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountNumber: number,
		Balance:       0,
		IsDefault:     req.IsDefault,
		Currency:      currency,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// ListAccounts returns all of the user's accounts.
func (s *Service) ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	return s.repo.FindAccountsByUserID(ctx, userID)
}

// GetAccount returns one of the user's accounts.
func (s *Service) GetAccount(ctx context.Context, userID uuid.UUID, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

// CreateCard issues a new card after validating the number (Luhn), type,
// expiry and CVV shape. The CVV is checked and discarded, never stored.
func (s *Service) CreateCard(ctx context.Context, userID uuid.UUID, req domain.CreateCardRequest) (*domain.Card, error) {
	number := strings.ReplaceAll(strings.TrimSpace(req.CardNumber), " ", "")
	if !domain.ValidCardNumber(number) {
		return nil, ErrInvalidCardNumber
	}
	if !req.CardType.Valid() {
		return nil, ErrInvalidCardType
	}
	if !validCVV(req.CVV) {
		return nil, ErrInvalidCVV
	}
	if !validExpiry(req.ExpiryMonth, req.ExpiryYear, time.Now().UTC()) {
		return nil, ErrInvalidCardExpiry
	}

	card := &domain.Card{
		ID:          uuid.New(),
		UserID:      userID,
		CardNumber:  number,
		CardType:    req.CardType,
		Balance:     0,
		CreditLimit: req.CreditLimit,
		Status:      domain.CardStatusActive,
		IsDefault:   req.IsDefault,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}
	return card, nil
}

// ListCards returns the user's cards, excluding deleted ones.
func (s *Service) ListCards(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	return s.repo.FindCardsByUserID(ctx, userID)
}

// BlockCard moves a card to BLOCKED without any balance effect.
func (s *Service) BlockCard(ctx context.Context, userID uuid.UUID, cardID uuid.UUID) error {
	if err := s.requireCardOwner(ctx, userID, cardID); err != nil {
		return err
	}
	if err := s.repo.UpdateCardStatus(ctx, cardID, domain.CardStatusBlocked); err != nil {
		return err
	}
	s.publishCardEvent(ctx, "card.blocked", userID, cardID)
	return nil
}

// UnblockCard moves a card back to ACTIVE.
func (s *Service) UnblockCard(ctx context.Context, userID uuid.UUID, cardID uuid.UUID) error {
	if err := s.requireCardOwner(ctx, userID, cardID); err != nil {
		return err
	}
	return s.repo.UpdateCardStatus(ctx, cardID, domain.CardStatusActive)
}

// DeleteCard soft-deletes a card. Deletion is refused while any PENDING
// transaction still references the card.
func (s *Service) DeleteCard(ctx context.Context, userID uuid.UUID, cardID uuid.UUID) error {
	if err := s.requireCardOwner(ctx, userID, cardID); err != nil {
		return err
	}
	pending, err := s.repo.CountPendingTransactionsByCard(ctx, cardID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return ErrCardHasPendingTransactions
	}
	return s.repo.UpdateCardStatus(ctx, cardID, domain.CardStatusDeleted)
}

func (s *Service) requireCardOwner(ctx context.Context, userID uuid.UUID, cardID uuid.UUID) error {
	card, err := s.repo.FindCardByID(ctx, cardID)
	if err != nil {
		return err
	}
	if card.UserID != userID {
		return store.ErrCardNotFound
	}
	return nil
}

func (s *Service) publishTransactionEvent(ctx context.Context, routingKey string, tx *domain.Transaction, failureReason string) {
	if s.events == nil {
		return
	}
	event := domain.TransactionEvent{
		TransactionID: tx.TransactionID,
		UserID:        tx.UserID,
		Type:          tx.Type,
		Status:        tx.Status,
		Amount:        tx.Amount,
		FailureReason: failureReason,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, eventsExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s transaction_id=%s err=%v", routingKey, tx.TransactionID, err)
	}
}

func (s *Service) publishCardEvent(ctx context.Context, routingKey string, userID, cardID uuid.UUID) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"user_id":   userID,
		"card_id":   cardID,
		"timestamp": time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, eventsExchange, routingKey, payload); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s card_id=%s err=%v", routingKey, cardID, err)
	}
}

func validCVV(cvv string) bool {
	if len(cvv) != 3 && len(cvv) != 4 {
		return false
	}
	for _, c := range cvv {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func validExpiry(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return false
	}
	if year < now.Year() {
		return false
	}
	if year == now.Year() && time.Month(month) < now.Month() {
		return false
	}
	return true
}

// generateAccountNumber produces a random 12-digit account number.
func generateAccountNumber() (string, error) {
	max := big.NewInt(0).Exp(big.NewInt(10), big.NewInt(12), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%012d", n), nil
}
