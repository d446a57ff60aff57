/**
 * @description
 * This file implements the `Repository` interface against PostgreSQL using the
 * pgx driver. It contains all SQL for the ledger service: account and card
 * persistence, transaction records, balance mutation under row locks, and the
 * append-only balance history.
 *
 * Key features:
 * - Debits read the current balance with `SELECT ... FOR UPDATE` before the
 *   sufficient-funds check, so concurrent debits of the same row serialize.
 * - `ExecBalanceWork` wraps all balance mutations of one processing attempt
 *   plus the COMPLETED status change in a single database transaction; the
 *   Transaction row itself is inserted outside that scope so a FAILED attempt
 *   survives as an audit record.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5, pgxpool: PostgreSQL driver and pool.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finvault/ledger-service/internal/domain"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrCardNotFound        = errors.New("card not found")
	ErrCardNotActive       = errors.New("card is not active")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// PostgresRepository is the PostgreSQL implementation of the Repository interface.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateAccount inserts a new account record.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, account_number, balance, is_default, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		account.ID,
		account.UserID,
		account.AccountNumber,
		account.Balance,
		account.IsDefault,
		account.Currency,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
}

func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, user_id, account_number, balance, is_default, currency, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var a domain.Account
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&a.ID, &a.UserID, &a.AccountNumber, &a.Balance, &a.IsDefault, &a.Currency, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PostgresRepository) FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	query := `
		SELECT id, user_id, account_number, balance, is_default, currency, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.Balance, &a.IsDefault, &a.Currency, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ListBalanceHistory returns the audit snapshots for an account, oldest first,
// optionally bounded by a date range.
func (r *PostgresRepository) ListBalanceHistory(ctx context.Context, accountID uuid.UUID, from, to *time.Time) ([]domain.AccountBalanceHistory, error) {
	query := `
		SELECT id, account_id, balance, created_at
		FROM account_balance_history
		WHERE account_id = $1
	`
	args := []interface{}{accountID}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.AccountBalanceHistory
	for rows.Next() {
		var h domain.AccountBalanceHistory
		if err := rows.Scan(&h.ID, &h.AccountID, &h.Balance, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// CreateCard inserts a new card record. The full number is stored; masking is
// the domain layer's responsibility on the way out.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *domain.Card) error {
	query := `
		INSERT INTO cards (id, user_id, card_number, card_type, balance, credit_limit, status, is_default, expiry_month, expiry_year)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		card.ID,
		card.UserID,
		card.CardNumber,
		card.CardType,
		card.Balance,
		card.CreditLimit,
		card.Status,
		card.IsDefault,
		card.ExpiryMonth,
		card.ExpiryYear,
	).Scan(&card.CreatedAt, &card.UpdatedAt)
}

func (r *PostgresRepository) FindCardByID(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	query := `
		SELECT id, user_id, card_number, card_type, balance, credit_limit, status, is_default, expiry_month, expiry_year, created_at, updated_at
		FROM cards
		WHERE id = $1 AND status <> 'DELETED'
	`
	var c domain.Card
	err := r.db.QueryRow(ctx, query, cardID).Scan(
		&c.ID, &c.UserID, &c.CardNumber, &c.CardType, &c.Balance, &c.CreditLimit,
		&c.Status, &c.IsDefault, &c.ExpiryMonth, &c.ExpiryYear, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) FindCardsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	query := `
		SELECT id, user_id, card_number, card_type, balance, credit_limit, status, is_default, expiry_month, expiry_year, created_at, updated_at
		FROM cards
		WHERE user_id = $1 AND status <> 'DELETED'
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.UserID, &c.CardNumber, &c.CardType, &c.Balance, &c.CreditLimit,
			&c.Status, &c.IsDefault, &c.ExpiryMonth, &c.ExpiryYear, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (r *PostgresRepository) UpdateCardStatus(ctx context.Context, cardID uuid.UUID, status domain.CardStatus) error {
	query := `UPDATE cards SET status = $1, updated_at = NOW() WHERE id = $2 AND status <> 'DELETED'`
	tag, err := r.db.Exec(ctx, query, status, cardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

// CountPendingTransactionsByCard reports how many PENDING transactions still
// reference the card. Cards with pending references cannot be deleted.
func (r *PostgresRepository) CountPendingTransactionsByCard(ctx context.Context, cardID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE card_id = $1 AND status = 'PENDING'`
	var count int64
	if err := r.db.QueryRow(ctx, query, cardID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateTransaction inserts a new transaction record. The row is written on
// the pool, outside any balance-work transaction, so it persists even when
// processing fails.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id,
			transaction_id,
			user_id,
			type,
			status,
			amount,
			sender_account_id,
			receiver_account_id,
			card_id,
			description,
			category,
			reference
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		tx.ID,
		tx.TransactionID,
		tx.UserID,
		tx.Type,
		tx.Status,
		tx.Amount,
		tx.SenderAccountID,
		tx.ReceiverAccountID,
		tx.CardID,
		tx.Description,
		tx.Category,
		tx.Reference,
	).Scan(&tx.CreatedAt)
}

const transactionColumns = `
	id, transaction_id, user_id, type, status, amount,
	sender_account_id, receiver_account_id, card_id,
	description, category, reference, failure_reason, created_at, processed_at
`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.TransactionID,
		&tx.UserID,
		&tx.Type,
		&tx.Status,
		&tx.Amount,
		&tx.SenderAccountID,
		&tx.ReceiverAccountID,
		&tx.CardID,
		&tx.Description,
		&tx.Category,
		&tx.Reference,
		&tx.FailureReason,
		&tx.CreatedAt,
		&tx.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// ListTransactionsByUserID returns the user's transaction history, newest
// first, applying any filters set on opts.
func (r *PostgresRepository) ListTransactionsByUserID(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	args := []interface{}{userID}

	if t := strings.TrimSpace(opts.Type); t != "" {
		args = append(args, t)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if s := strings.TrimSpace(opts.Status); s != "" {
		args = append(args, s)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if c := strings.TrimSpace(opts.Category); c != "" {
		args = append(args, c)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if opts.From != nil {
		args = append(args, *opts.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if opts.To != nil {
		args = append(args, *opts.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// GetTransactionStats aggregates the user's transactions over an optional
// time window. Monetary aggregates only consider COMPLETED transactions; the
// status breakdown counts every terminal and pending row.
func (r *PostgresRepository) GetTransactionStats(ctx context.Context, userID uuid.UUID, from, to *time.Time) (*domain.TransactionStats, error) {
	window := ""
	args := []interface{}{userID}
	if from != nil {
		args = append(args, *from)
		window += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		window += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	stats := &domain.TransactionStats{}

	totals := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(AVG(amount), 0)::bigint
		FROM transactions
		WHERE user_id = $1 AND status = 'COMPLETED'` + window
	if err := r.db.QueryRow(ctx, totals, args...).Scan(&stats.TotalCount, &stats.TotalAmount, &stats.AverageAmount); err != nil {
		return nil, err
	}

	byType := `
		SELECT type, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND status = 'COMPLETED'` + window + `
		GROUP BY type
		ORDER BY type`
	rows, err := r.db.Query(ctx, byType, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b domain.TransactionStatsBucket
		if err := rows.Scan(&b.Key, &b.Count, &b.TotalAmount); err != nil {
			return nil, err
		}
		stats.ByType = append(stats.ByType, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byStatus := `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1` + window + `
		GROUP BY status
		ORDER BY status`
	statusRows, err := r.db.Query(ctx, byStatus, args...)
	if err != nil {
		return nil, err
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var b domain.TransactionStatsBucket
		if err := statusRows.Scan(&b.Key, &b.Count, &b.TotalAmount); err != nil {
			return nil, err
		}
		stats.ByStatus = append(stats.ByStatus, b)
	}
	return stats, statusRows.Err()
}

// MarkTransactionFailed moves a PENDING transaction to FAILED, recording the
// failure reason for the audit trail.
func (r *PostgresRepository) MarkTransactionFailed(ctx context.Context, transactionID uuid.UUID, processedAt time.Time, failureReason string) error {
	query := `UPDATE transactions SET status = 'FAILED', processed_at = $1, failure_reason = $2 WHERE id = $3 AND status = 'PENDING'`
	tag, err := r.db.Exec(ctx, query, processedAt, failureReason, transactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// CancelPendingTransaction moves a PENDING transaction to CANCELLED. The
// conditional update makes the PENDING -> CANCELLED transition the only one
// this method can perform; it reports whether a row was affected.
func (r *PostgresRepository) CancelPendingTransaction(ctx context.Context, transactionID uuid.UUID, userID uuid.UUID) (bool, error) {
	query := `UPDATE transactions SET status = 'CANCELLED', processed_at = NOW() WHERE id = $1 AND user_id = $2 AND status = 'PENDING'`
	tag, err := r.db.Exec(ctx, query, transactionID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExecBalanceWork runs fn inside one database transaction and, on success,
// moves the PENDING transaction row to COMPLETED before committing. Balance
// mutations, history appends and the COMPLETED status change commit or roll
// back as a unit. The conditional WHERE guards status monotonicity: if the
// row is no longer PENDING, everything rolls back.
func (r *PostgresRepository) ExecBalanceWork(ctx context.Context, transactionID uuid.UUID, processedAt time.Time, fn func(ops BalanceOps) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&txBalanceOps{tx: tx}); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE transactions SET status = 'COMPLETED', processed_at = $1 WHERE id = $2 AND status = 'PENDING'`,
		processedAt, transactionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return tx.Commit(ctx)
}

// txBalanceOps implements BalanceOps on top of an open pgx transaction.
type txBalanceOps struct {
	tx pgx.Tx
}

func (o *txBalanceOps) CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	err := o.tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2 RETURNING balance`,
		amount, accountID,
	).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (o *txBalanceOps) DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	// FOR UPDATE locks the row so the check-then-act below is not racy.
	err := o.tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`,
		accountID,
	).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}

	if balance < amount {
		return 0, ErrInsufficientFunds
	}

	err = o.tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE id = $2 RETURNING balance`,
		amount, accountID,
	).Scan(&balance)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (o *txBalanceOps) CreditCard(ctx context.Context, cardID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	err := o.tx.QueryRow(ctx,
		`UPDATE cards SET balance = balance + $1, updated_at = NOW() WHERE id = $2 AND status <> 'DELETED' RETURNING balance`,
		amount, cardID,
	).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrCardNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (o *txBalanceOps) DebitCard(ctx context.Context, cardID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	var status domain.CardStatus
	err := o.tx.QueryRow(ctx,
		`SELECT balance, status FROM cards WHERE id = $1 AND status <> 'DELETED' FOR UPDATE`,
		cardID,
	).Scan(&balance, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrCardNotFound
		}
		return 0, err
	}

	if status != domain.CardStatusActive {
		return 0, ErrCardNotActive
	}
	// Card balance is the spendable amount regardless of card type; a debit
	// beyond it fails even when a credit limit is configured.
	if balance < amount {
		return 0, ErrInsufficientFunds
	}

	err = o.tx.QueryRow(ctx,
		`UPDATE cards SET balance = balance - $1, updated_at = NOW() WHERE id = $2 RETURNING balance`,
		amount, cardID,
	).Scan(&balance)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (o *txBalanceOps) AppendBalanceHistory(ctx context.Context, accountID uuid.UUID, balance int64) error {
	_, err := o.tx.Exec(ctx,
		`INSERT INTO account_balance_history (id, account_id, balance) VALUES ($1, $2, $3)`,
		uuid.New(), accountID, balance,
	)
	return err
}
