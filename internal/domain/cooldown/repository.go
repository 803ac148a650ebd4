package cooldown

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository persists cooldown state. The whole check-and-consume step runs
// under a row lock on (account_id, action_kind) so concurrent attempts for the
// same pair serialize and at most one wins per wait period.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CheckAndConsume applies the escalation algorithm at time now.
func (r *Repository) CheckAndConsume(ctx context.Context, accountID uuid.UUID, kind ActionKind, cfg Config, now time.Time) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	state, err := r.lockState(ctx2, tx, accountID, kind, now)
	if err != nil {
		return err
	}

	if now.After(state.WindowResetAt) {
		state.RecentCount = 0
		state.WindowResetAt = now.Add(window)
	}

	if state.LastActionAt != nil {
		wait := RequiredWait(cfg, state.RecentCount)
		elapsed := now.Sub(*state.LastActionAt)
		if elapsed < wait {
			remaining := int64(math.Ceil((wait - elapsed).Seconds()))
			return &CooldownActiveError{RemainingSeconds: remaining}
		}
	}

	state.RecentCount++
	state.LastActionAt = &now

	if _, err := tx.ExecContext(ctx2, `
		UPDATE cooldown_state
		SET recent_count = $3, window_reset_at = $4, last_action_at = $5
		WHERE account_id = $1 AND action_kind = $2
	`, accountID, string(kind), state.RecentCount, state.WindowResetAt, state.LastActionAt); err != nil {
		return fmt.Errorf("update cooldown state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get returns the stored state, or nil when the pair has never acted
func (r *Repository) Get(ctx context.Context, accountID uuid.UUID, kind ActionKind) (*State, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var state State
	err := r.db.GetContext(ctx2, &state, `
		SELECT account_id, action_kind, recent_count, window_reset_at, last_action_at
		FROM cooldown_state
		WHERE account_id = $1 AND action_kind = $2
	`, accountID, string(kind))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *Repository) lockState(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, kind ActionKind, now time.Time) (*State, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cooldown_state (account_id, action_kind, recent_count, window_reset_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (account_id, action_kind) DO NOTHING
	`, accountID, string(kind), now.Add(window)); err != nil {
		return nil, fmt.Errorf("ensure cooldown state: %w", err)
	}

	var state State
	err := tx.GetContext(ctx, &state, `
		SELECT account_id, action_kind, recent_count, window_reset_at, last_action_at
		FROM cooldown_state
		WHERE account_id = $1 AND action_kind = $2
		FOR UPDATE
	`, accountID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("lock cooldown state: %w", err)
	}
	return &state, nil
}
