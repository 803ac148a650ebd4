package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// dedupeHorizon is how long a successful debit blocks replays of its
// idempotency key.
const dedupeHorizon = 24 * time.Hour

// Repository provides ledger and balance operations. Every mutation locks the
// account row, so transactions for a single account are strictly serialized
// and the balance update commits together with its log entry.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Debit removes amount from the account balance and appends a negative ledger
// row. Returns ErrInsufficientFunds when the balance cannot cover the amount
// and ErrDuplicateRequest when the idempotency key was already consumed.
func (r *Repository) Debit(ctx context.Context, accountID uuid.UUID, amount int64, reason Reason, idempotencyKey *string) (uuid.UUID, error) {
	if amount <= 0 {
		return uuid.Nil, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	balance, err := lockAccount(ctx2, tx, accountID)
	if err != nil {
		return uuid.Nil, err
	}

	// The row lock serializes debits per account, so checking the key after
	// acquiring it gives at-most-once semantics across concurrent retries.
	if idempotencyKey != nil && *idempotencyKey != "" {
		used, err := r.keyUsed(ctx2, tx, accountID, *idempotencyKey)
		if err != nil {
			return uuid.Nil, err
		}
		if used {
			return uuid.Nil, ErrDuplicateRequest
		}
	}

	if balance < amount {
		return uuid.Nil, &InsufficientFundsError{Required: amount, Balance: balance}
	}

	if _, err := tx.ExecContext(ctx2, `
		UPDATE accounts SET balance = balance - $2, updated_at = now() WHERE id = $1
	`, accountID, amount); err != nil {
		return uuid.Nil, fmt.Errorf("update balance: %w", err)
	}

	txID, err := insertTransaction(ctx2, tx, accountID, -amount, reason, idempotencyKey, nil)
	if err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit tx: %w", err)
	}

	return txID, nil
}

// Credit adds amount to the account balance and appends a positive ledger row.
// referenceTxID links a compensating credit to the debit it undoes.
func (r *Repository) Credit(ctx context.Context, accountID uuid.UUID, amount int64, reason Reason, referenceTxID *uuid.UUID) (uuid.UUID, error) {
	if amount <= 0 {
		return uuid.Nil, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockAccount(ctx2, tx, accountID); err != nil {
		return uuid.Nil, err
	}

	if _, err := tx.ExecContext(ctx2, `
		UPDATE accounts SET balance = balance + $2, updated_at = now() WHERE id = $1
	`, accountID, amount); err != nil {
		return uuid.Nil, fmt.Errorf("update balance: %w", err)
	}

	txID, err := insertTransaction(ctx2, tx, accountID, amount, reason, nil, referenceTxID)
	if err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit tx: %w", err)
	}

	return txID, nil
}

// GetBalance returns the current balance for an account
func (r *Repository) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int64
	err := r.db.GetContext(ctx2, &balance, `SELECT balance FROM accounts WHERE id = $1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// ListTransactions returns the account's ledger history, newest first
func (r *Repository) ListTransactions(ctx context.Context, accountID uuid.UUID, pagination Pagination) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, account_id, delta, reason, idempotency_key, reference_transaction_id, created_at
		FROM ledger_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return transactions, nil
}

// SumDeltas returns the sum of all ledger deltas for an account. It must match
// the stored balance at all times.
func (r *Repository) SumDeltas(ctx context.Context, accountID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var sum int64
	err := r.db.GetContext(ctx2, &sum, `
		SELECT COALESCE(SUM(delta), 0) FROM ledger_transactions WHERE account_id = $1
	`, accountID)
	return sum, err
}

func lockAccount(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock account row: %w", err)
	}
	return balance, nil
}

func (r *Repository) keyUsed(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, key string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM ledger_transactions
			WHERE account_id = $1 AND idempotency_key = $2 AND delta < 0 AND created_at > $3
		)
	`, accountID, key, time.Now().Add(-dedupeHorizon))
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return exists, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, delta int64, reason Reason, idempotencyKey *string, referenceTxID *uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()

	var key interface{}
	if idempotencyKey != nil && *idempotencyKey != "" {
		key = *idempotencyKey
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, account_id, delta, reason, idempotency_key, reference_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, accountID, delta, string(reason), key, referenceTxID); err != nil {
		return uuid.Nil, fmt.Errorf("insert transaction: %w", err)
	}

	return id, nil
}
