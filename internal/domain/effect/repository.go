package effect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository handles effect database operations
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Install inserts a new effect row
func (r *Repository) Install(ctx context.Context, e *Effect) error {
	if e.Magnitude <= 0 {
		return ErrInvalidMagnitude
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO effects (id, account_id, kind, magnitude, uses_remaining, expires_at, source_war_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.AccountID, string(e.Kind), e.Magnitude, e.UsesRemaining, e.ExpiresAt, e.SourceWarID)
	if err != nil {
		return fmt.Errorf("insert effect: %w", err)
	}
	return nil
}

// InstallTx inserts a new effect row within an external transaction. The
// caller commits or rolls back.
func (r *Repository) InstallTx(ctx context.Context, tx *sqlx.Tx, e *Effect) error {
	if e.Magnitude <= 0 {
		return ErrInvalidMagnitude
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO effects (id, account_id, kind, magnitude, uses_remaining, expires_at, source_war_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.AccountID, string(e.Kind), e.Magnitude, e.UsesRemaining, e.ExpiresAt, e.SourceWarID)
	if err != nil {
		return fmt.Errorf("insert effect: %w", err)
	}
	return nil
}

// ActiveByAccount returns the account's effects that apply at the given time:
// not expired and, for limited-use kinds, not exhausted.
func (r *Repository) ActiveByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]Effect, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	effects := make([]Effect, 0)
	err := r.db.SelectContext(ctx2, &effects, `
		SELECT id, account_id, kind, magnitude, uses_remaining, expires_at, source_war_id, notified, created_at
		FROM effects
		WHERE account_id = $1
		  AND expires_at > $2
		  AND (uses_remaining IS NULL OR uses_remaining > 0)
		ORDER BY created_at
	`, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("active effects: %w", err)
	}
	return effects, nil
}

// HasActiveKind reports whether the account holds an unexpired effect of kind
func (r *Repository) HasActiveKind(ctx context.Context, accountID uuid.UUID, kind Kind, now time.Time) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx2, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM effects
			WHERE account_id = $1 AND kind = $2 AND expires_at > $3
			  AND (uses_remaining IS NULL OR uses_remaining > 0)
		)
	`, accountID, string(kind), now)
	return exists, err
}

// ConsumeUse decrements a limited-use effect. Returns false when the effect
// was already exhausted by a concurrent consumer.
func (r *Repository) ConsumeUse(ctx context.Context, effectID uuid.UUID) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE effects SET uses_remaining = uses_remaining - 1
		WHERE id = $1 AND uses_remaining > 0
	`, effectID)
	if err != nil {
		return false, fmt.Errorf("consume use: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// RestoreUse hands a consumed use back to a limited-use effect. Compensation
// for an operation that failed after its quote consumed the use.
func (r *Repository) RestoreUse(ctx context.Context, effectID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx2, `
		UPDATE effects SET uses_remaining = uses_remaining + 1
		WHERE id = $1 AND uses_remaining IS NOT NULL
	`, effectID); err != nil {
		return fmt.Errorf("restore use: %w", err)
	}
	return nil
}

// ExpiringWithin returns unnotified effects expiring before the horizon
func (r *Repository) ExpiringWithin(ctx context.Context, horizon time.Duration, now time.Time) ([]Effect, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	effects := make([]Effect, 0)
	err := r.db.SelectContext(ctx2, &effects, `
		SELECT id, account_id, kind, magnitude, uses_remaining, expires_at, source_war_id, notified, created_at
		FROM effects
		WHERE notified = false AND expires_at > $1 AND expires_at <= $2
		ORDER BY expires_at
	`, now, now.Add(horizon))
	if err != nil {
		return nil, fmt.Errorf("expiring effects: %w", err)
	}
	return effects, nil
}

// MarkNotified flips the notified flag. Returns false when another notifier
// instance already claimed the effect.
func (r *Repository) MarkNotified(ctx context.Context, effectID uuid.UUID) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE effects SET notified = true WHERE id = $1 AND notified = false
	`, effectID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// DeleteExpired removes effects that expired before the cutoff. Storage
// hygiene only — expiry is always enforced at read time.
func (r *Repository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `DELETE FROM effects WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired effects: %w", err)
	}
	return result.RowsAffected()
}
