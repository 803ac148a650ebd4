package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository handles account database operations
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new account with an initial balance
func (r *Repository) Create(ctx context.Context, a *Account) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, a.Username, a.Balance, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

// GetByID returns an account by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	var a Account
	err := r.db.GetContext(ctx, &a, `
		SELECT id, username, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Exists reports whether an account row exists
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id)
	return exists, err
}
