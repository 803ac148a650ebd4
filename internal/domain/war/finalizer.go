package war

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/puzzlearena/arena-api/internal/domain/badge"
	"github.com/puzzlearena/arena-api/internal/domain/effect"
	"github.com/puzzlearena/arena-api/internal/pkg/metrics"
)

// Spoils of a decisive war. Winner effects last a day; the loser additionally
// carries a short promotion cooldown that blocks new challenges.
const (
	winnerEffectTTL  = 24 * time.Hour
	loserEffectTTL   = 24 * time.Hour
	loserCooldownTTL = 2 * time.Hour

	discountUses = 3
)

type grant struct {
	kind      effect.Kind
	magnitude float64
	ttl       time.Duration
	uses      *int
}

func winnerGrants() []grant {
	uses := discountUses
	return []grant{
		{kind: effect.KindExtendedDuration, magnitude: 1.5, ttl: winnerEffectTTL},
		{kind: effect.KindPenaltyImmunity, magnitude: 1.0, ttl: winnerEffectTTL},
		{kind: effect.KindCostDiscount, magnitude: 0.8, ttl: winnerEffectTTL, uses: &uses},
		{kind: effect.KindPriorityBoost, magnitude: 1.25, ttl: winnerEffectTTL},
	}
}

func loserGrants() []grant {
	return []grant{
		{kind: effect.KindPromotionCooldown, magnitude: 1.0, ttl: loserCooldownTTL},
		{kind: effect.KindReducedEffectiveness, magnitude: 0.7, ttl: loserEffectTTL},
		{kind: effect.KindHigherCost, magnitude: 1.25, ttl: loserEffectTTL},
		{kind: effect.KindLowerPriority, magnitude: 0.5, ttl: loserEffectTTL},
	}
}

// Finalizer is the background sweep that closes due wars: it picks winners,
// installs winner/loser effects and updates badges, all in one transaction per
// war. Multiple instances may run concurrently; SKIP LOCKED row claims make
// each due war finalize exactly once.
type Finalizer struct {
	db       *sqlx.DB
	repo     *Repository
	effects  *effect.Repository
	badges   *badge.Service
	cfg      Config
	interval time.Duration
	stopCh   chan struct{}
}

func NewFinalizer(db *sqlx.DB, repo *Repository, effects *effect.Repository, badges *badge.Service, cfg Config, interval time.Duration) *Finalizer {
	if interval == 0 {
		interval = 30 * time.Second
	}
	if cfg.Duration == 0 {
		cfg = DefaultConfig()
	}
	return &Finalizer{
		db:       db,
		repo:     repo,
		effects:  effects,
		badges:   badges,
		cfg:      cfg,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background worker
func (f *Finalizer) Start() {
	log.Info().Dur("interval", f.interval).Msg("Starting war finalizer...")
	go f.loop()
}

// Stop gracefully stops the background worker
func (f *Finalizer) Stop() {
	log.Info().Msg("Stopping war finalizer...")
	close(f.stopCh)
}

func (f *Finalizer) loop() {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.sweep()

	for {
		select {
		case <-ticker.C:
			f.sweep()
		case <-f.stopCh:
			return
		}
	}
}

func (f *Finalizer) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	f.FinalizeDueWars(ctx)
	f.expireStalePending(ctx)
}

// FinalizeDueWars closes every active war whose window has elapsed. A war
// that cannot be finalized is logged and skipped; the next sweep retries it.
// Re-running against already-completed wars is a no-op.
func (f *Finalizer) FinalizeDueWars(ctx context.Context) {
	ids, err := f.repo.DueWarIDs(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list due wars")
		return
	}

	for _, id := range ids {
		if err := f.finalizeOne(ctx, id); err != nil {
			log.Error().Err(err).Str("war_id", id.String()).Msg("Failed to finalize war, will retry next sweep")
		}
	}
}

func (f *Finalizer) finalizeOne(ctx context.Context, id uuid.UUID) error {
	tx, err := f.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	w, err := f.repo.LockDue(ctx, tx, id, time.Now())
	if err != nil {
		return err
	}
	if w == nil {
		// Claimed by a concurrent finalizer, or no longer due.
		return nil
	}

	var winnerID, loserID *uuid.UUID
	switch {
	case w.ChallengerScore > w.ChallengedScore:
		winnerID, loserID = &w.ChallengerID, &w.ChallengedID
	case w.ChallengedScore > w.ChallengerScore:
		winnerID, loserID = &w.ChallengedID, &w.ChallengerID
	}

	if err := f.repo.CompleteTx(ctx, tx, w.ID, winnerID, loserID); err != nil {
		return err
	}

	outcome := "tie"
	if winnerID != nil {
		outcome = "decisive"
		if err := f.installGrants(ctx, tx, *winnerID, w.ID, winnerGrants()); err != nil {
			return err
		}
		if err := f.installGrants(ctx, tx, *loserID, w.ID, loserGrants()); err != nil {
			return err
		}
		if err := f.badges.RecordWinTx(ctx, tx, *winnerID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	metrics.WarsFinalizedTotal.WithLabelValues(outcome).Inc()

	event := log.Info().
		Str("war_id", w.ID.String()).
		Int64("challenger_score", w.ChallengerScore).
		Int64("challenged_score", w.ChallengedScore).
		Str("outcome", outcome)
	if winnerID != nil {
		event = event.Str("winner_id", winnerID.String())
	}
	event.Msg("war finalized")

	return nil
}

func (f *Finalizer) installGrants(ctx context.Context, tx *sqlx.Tx, accountID, warID uuid.UUID, grants []grant) error {
	now := time.Now()
	for _, g := range grants {
		e := &effect.Effect{
			AccountID:     accountID,
			Kind:          g.kind,
			Magnitude:     g.magnitude,
			UsesRemaining: g.uses,
			ExpiresAt:     now.Add(g.ttl),
			SourceWarID:   &warID,
		}
		if err := f.effects.InstallTx(ctx, tx, e); err != nil {
			return err
		}
	}
	return nil
}

// expireStalePending closes pending wars past the accept deadline that no
// read has touched.
func (f *Finalizer) expireStalePending(ctx context.Context) {
	ids, err := f.repo.StalePendingIDs(ctx, f.cfg.AcceptTimeout, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list stale pending wars")
		return
	}

	for _, id := range ids {
		if err := f.repo.MarkExpired(ctx, id); err != nil && err != ErrWarNotPending {
			log.Error().Err(err).Str("war_id", id.String()).Msg("Failed to expire pending war")
		}
	}
}
