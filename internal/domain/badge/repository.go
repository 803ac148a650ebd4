package badge

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

// Repository handles badge and win-counter database operations
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// IncrementWinsTx bumps the account's win counter within the caller's
// transaction and returns the new total
func (r *Repository) IncrementWinsTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID) (int, error) {
	var wins int
	err := tx.GetContext(ctx, &wins, `
		INSERT INTO war_stats (account_id, wins)
		VALUES ($1, 1)
		ON CONFLICT (account_id) DO UPDATE SET wins = war_stats.wins + 1
		RETURNING wins
	`, accountID)
	if err != nil {
		return 0, fmt.Errorf("increment wins: %w", err)
	}
	return wins, nil
}

// GetWins returns the cumulative win count for an account
func (r *Repository) GetWins(ctx context.Context, accountID uuid.UUID) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var wins int
	err := r.db.GetContext(ctx2, &wins, `SELECT wins FROM war_stats WHERE account_id = $1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get wins: %w", err)
	}
	return wins, nil
}

// UpsertLevelTx writes the badge level within the caller's transaction, but
// only when it is strictly greater than the stored one.
func (r *Repository) UpsertLevelTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, code string, level int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO badges (account_id, code, level, awarded_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (account_id, code) DO UPDATE
		SET level = EXCLUDED.level, awarded_at = now()
		WHERE badges.level < EXCLUDED.level
	`, accountID, code, level)
	if err != nil {
		return fmt.Errorf("upsert badge level: %w", err)
	}
	return nil
}

// UpsertLevel is the standalone variant of UpsertLevelTx
func (r *Repository) UpsertLevel(ctx context.Context, accountID uuid.UUID, code string, level int) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO badges (account_id, code, level, awarded_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (account_id, code) DO UPDATE
		SET level = EXCLUDED.level, awarded_at = now()
		WHERE badges.level < EXCLUDED.level
	`, accountID, code, level)
	if err != nil {
		return fmt.Errorf("upsert badge level: %w", err)
	}
	return nil
}

// GetBadge returns the stored badge, or nil when none has been awarded
func (r *Repository) GetBadge(ctx context.Context, accountID uuid.UUID, code string) (*Badge, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var b Badge
	err := r.db.GetContext(ctx2, &b, `
		SELECT account_id, code, level, awarded_at FROM badges
		WHERE account_id = $1 AND code = $2
	`, accountID, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get badge: %w", err)
	}
	return &b, nil
}
