package war

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

const warColumns = `
	id, challenger_id, challenged_id, status, created_at, starts_at, ends_at,
	challenger_score, challenged_score, winner_id, loser_id, updated_at`

// Repository handles war database operations
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending war. The partial unique index on the unordered
// pair rejects a second open war even when two challengers pass the lookup at
// the same time; that violation surfaces as ErrDuplicateWar.
func (r *Repository) Create(ctx context.Context, w *War) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO wars (id, challenger_id, challenged_id, status)
		VALUES ($1, $2, $3, $4)
	`, w.ID, w.ChallengerID, w.ChallengedID, string(StatusPending))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateWar
		}
		return fmt.Errorf("insert war: %w", err)
	}
	return nil
}

// GetByID returns a war by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*War, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w War
	err := r.db.GetContext(ctx2, &w, `SELECT `+warColumns+` FROM wars WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWarNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get war: %w", err)
	}
	return &w, nil
}

// FindOpenByPair returns the non-terminal war for the unordered account pair,
// or nil when the pair has no open war.
func (r *Repository) FindOpenByPair(ctx context.Context, a, b uuid.UUID) (*War, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w War
	err := r.db.GetContext(ctx2, &w, `
		SELECT `+warColumns+`
		FROM wars
		WHERE status IN ('pending', 'active')
		  AND least(challenger_id, challenged_id) = least($1::uuid, $2::uuid)
		  AND greatest(challenger_id, challenged_id) = greatest($1::uuid, $2::uuid)
		LIMIT 1
	`, a, b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open war: %w", err)
	}
	return &w, nil
}

// Activate transitions pending -> active, fixing the contest window
func (r *Repository) Activate(ctx context.Context, id uuid.UUID, startsAt, endsAt time.Time) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE wars
		SET status = 'active', starts_at = $2, ends_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, startsAt, endsAt)
	if err != nil {
		return fmt.Errorf("activate war: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrWarNotPending
	}
	return nil
}

// MarkDeclined transitions pending -> declined
func (r *Repository) MarkDeclined(ctx context.Context, id uuid.UUID) error {
	return r.closePending(ctx, id, StatusDeclined)
}

// MarkExpired transitions pending -> expired
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	return r.closePending(ctx, id, StatusExpired)
}

func (r *Repository) closePending(ctx context.Context, id uuid.UUID, status Status) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE wars SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("close pending war: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrWarNotPending
	}
	return nil
}

// AddActionAndScore appends a war action and applies its points to the war in
// a single transaction. The UPDATE re-checks active status and the deadline,
// so a war that ended between the caller's read and this write is rejected
// with ErrWarExpired rather than silently scored.
func (r *Repository) AddActionAndScore(ctx context.Context, a *Action, scoreChallenger bool) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	column := "challenged_score"
	if scoreChallenger {
		column = "challenger_score"
	}

	result, err := tx.ExecContext(ctx2, `
		UPDATE wars SET `+column+` = `+column+` + $2, updated_at = now()
		WHERE id = $1 AND status = 'active' AND ends_at > now()
	`, a.WarID, a.PointsDelta)
	if err != nil {
		return fmt.Errorf("apply score: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrWarExpired
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, err := tx.ExecContext(ctx2, `
		INSERT INTO war_actions (id, war_id, actor_id, target_ref, kind, cost, points_delta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.WarID, a.ActorID, a.TargetRef, string(a.Kind), a.Cost, a.PointsDelta); err != nil {
		return fmt.Errorf("insert war action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListActions returns the actions of a war, oldest first
func (r *Repository) ListActions(ctx context.Context, warID uuid.UUID) ([]Action, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	actions := make([]Action, 0)
	err := r.db.SelectContext(ctx2, &actions, `
		SELECT id, war_id, actor_id, target_ref, kind, cost, points_delta, created_at
		FROM war_actions
		WHERE war_id = $1
		ORDER BY created_at
	`, warID)
	if err != nil {
		return nil, fmt.Errorf("list war actions: %w", err)
	}
	return actions, nil
}

// DueWarIDs returns active wars whose contest window has elapsed
func (r *Repository) DueWarIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ids := make([]uuid.UUID, 0)
	err := r.db.SelectContext(ctx2, &ids, `
		SELECT id FROM wars WHERE status = 'active' AND ends_at <= $1 ORDER BY ends_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("due wars: %w", err)
	}
	return ids, nil
}

// StalePendingIDs returns pending wars past their accept deadline
func (r *Repository) StalePendingIDs(ctx context.Context, timeout time.Duration, now time.Time) ([]uuid.UUID, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ids := make([]uuid.UUID, 0)
	err := r.db.SelectContext(ctx2, &ids, `
		SELECT id FROM wars WHERE status = 'pending' AND created_at < $1
	`, now.Add(-timeout))
	if err != nil {
		return nil, fmt.Errorf("stale pending wars: %w", err)
	}
	return ids, nil
}

// LockDue claims one due active war for finalization. SKIP LOCKED lets
// concurrent finalizer instances divide the due set without blocking; nil
// means another instance holds the row or the war is no longer due.
func (r *Repository) LockDue(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, now time.Time) (*War, error) {
	var w War
	err := tx.GetContext(ctx, &w, `
		SELECT `+warColumns+`
		FROM wars
		WHERE id = $1 AND status = 'active' AND ends_at <= $2
		FOR UPDATE SKIP LOCKED
	`, id, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock due war: %w", err)
	}
	return &w, nil
}

// CompleteTx transitions a locked active war to completed within the
// caller's transaction
func (r *Repository) CompleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, winnerID, loserID *uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE wars SET status = 'completed', winner_id = $2, loser_id = $3, updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, id, winnerID, loserID)
	if err != nil {
		return fmt.Errorf("complete war: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrWarNotActive
	}
	return nil
}
