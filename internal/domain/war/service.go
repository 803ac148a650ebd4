package war

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/puzzlearena/arena-api/internal/domain/account"
	"github.com/puzzlearena/arena-api/internal/domain/cooldown"
	"github.com/puzzlearena/arena-api/internal/domain/effect"
	"github.com/puzzlearena/arena-api/internal/domain/ledger"
	"github.com/puzzlearena/arena-api/internal/pkg/metrics"
)

// Config tunes the war lifecycle.
type Config struct {
	Duration      time.Duration // active contest window
	AcceptTimeout time.Duration // pending wars expire after this
}

// DefaultConfig returns the product defaults: 60min wars, 1h to accept.
func DefaultConfig() Config {
	return Config{Duration: 60 * time.Minute, AcceptTimeout: time.Hour}
}

// Service drives the challenge/accept/decline/action lifecycle. Costs flow
// through the ledger's scoped spend so a failed action never strands a charge.
type Service struct {
	repo      *Repository
	accounts  *account.Repository
	credits   *ledger.Service
	effects   *effect.Service
	cooldowns *cooldown.Service
	cfg       Config
}

func NewService(repo *Repository, accounts *account.Repository, credits *ledger.Service, effects *effect.Service, cooldowns *cooldown.Service, cfg Config) *Service {
	if cfg.Duration == 0 {
		cfg = DefaultConfig()
	}
	return &Service{
		repo:      repo,
		accounts:  accounts,
		credits:   credits,
		effects:   effects,
		cooldowns: cooldowns,
		cfg:       cfg,
	}
}

// Challenge opens a pending war from challenger to challenged. The cooldown
// slot is consumed before the insert, so a challenge that loses the open-pair
// race to a concurrent challenger still counts against the throttle.
func (s *Service) Challenge(ctx context.Context, challengerID, challengedID uuid.UUID) (*War, error) {
	if challengerID == challengedID {
		return nil, ErrSelfChallenge
	}

	if _, err := s.accounts.GetByID(ctx, challengedID); err != nil {
		return nil, err
	}

	blocked, err := s.effects.HasActiveCooldown(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrChallengeBlocked
	}

	existing, err := s.repo.FindOpenByPair(ctx, challengerID, challengedID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing, err = s.lazyExpire(ctx, existing)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrDuplicateWar
		}
	}

	if err := s.cooldowns.CheckAndConsume(ctx, challengerID, cooldown.ActionChallenge); err != nil {
		return nil, err
	}

	w := &War{
		ChallengerID: challengerID,
		ChallengedID: challengedID,
		Status:       StatusPending,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}

	log.Info().
		Str("war_id", w.ID.String()).
		Str("challenger_id", challengerID.String()).
		Str("challenged_id", challengedID.String()).
		Msg("war challenge created")

	return s.repo.GetByID(ctx, w.ID)
}

// Accept transitions a pending war to active. Only the challenged account may
// accept, and only within the accept window.
func (s *Service) Accept(ctx context.Context, warID, actorID uuid.UUID) (*War, error) {
	w, err := s.repo.GetByID(ctx, warID)
	if err != nil {
		return nil, err
	}

	if !w.IsParticipant(actorID) {
		return nil, ErrNotParticipant
	}
	if actorID != w.ChallengedID {
		return nil, ErrNotChallenged
	}

	w, err = s.lazyExpire(ctx, w)
	if err != nil {
		return nil, err
	}
	if w == nil || w.Status == StatusExpired {
		return nil, ErrWarExpired
	}
	if w.Status != StatusPending {
		return nil, ErrWarNotPending
	}

	now := time.Now()
	if err := s.repo.Activate(ctx, warID, now, now.Add(s.cfg.Duration)); err != nil {
		return nil, err
	}

	log.Info().Str("war_id", warID.String()).Msg("war accepted")
	return s.repo.GetByID(ctx, warID)
}

// Decline transitions a pending war to declined.
func (s *Service) Decline(ctx context.Context, warID, actorID uuid.UUID) (*War, error) {
	w, err := s.repo.GetByID(ctx, warID)
	if err != nil {
		return nil, err
	}

	if !w.IsParticipant(actorID) {
		return nil, ErrNotParticipant
	}
	if actorID != w.ChallengedID {
		return nil, ErrNotChallenged
	}
	if w.Status != StatusPending {
		return nil, ErrWarNotPending
	}

	if err := s.repo.MarkDeclined(ctx, warID); err != nil {
		return nil, err
	}

	log.Info().Str("war_id", warID.String()).Msg("war declined")
	return s.repo.GetByID(ctx, warID)
}

// RecordAction charges the actor the effective cost and applies the effective
// points to the war. Boosts raise the actor's side; unboosts lower the
// opponent's. Actions against an ended war fail with ErrWarExpired and never
// touch the scores; a failed action also hands back any limited use its
// quotes consumed.
func (s *Service) RecordAction(ctx context.Context, warID, actorID uuid.UUID, kind ActionKind, targetRef string, baseCost, basePoints int64) (*War, error) {
	w, err := s.repo.GetByID(ctx, warID)
	if err != nil {
		return nil, err
	}

	if !w.IsParticipant(actorID) {
		return nil, ErrNotParticipant
	}
	if w.Status != StatusActive {
		return nil, ErrWarNotActive
	}
	if w.EndsAt == nil || !time.Now().Before(*w.EndsAt) {
		return nil, ErrWarExpired
	}

	cost, costUse, err := s.effects.QuoteCost(ctx, actorID, baseCost)
	if err != nil {
		return nil, err
	}
	points, pointsUse, err := s.effects.QuoteEffectiveness(ctx, actorID, basePoints)
	if err != nil {
		s.restoreUses(ctx, costUse)
		return nil, err
	}

	action := &Action{
		WarID:     warID,
		ActorID:   actorID,
		TargetRef: targetRef,
		Kind:      kind,
		Cost:      cost,
	}

	// Boost adds to the actor's own side; unboost subtracts from the
	// opponent's side.
	scoreChallenger := actorID == w.ChallengerID
	if kind == ActionUnboost {
		scoreChallenger = !scoreChallenger
		action.PointsDelta = -points
	} else {
		action.PointsDelta = points
	}

	err = s.credits.ScopedSpend(ctx, actorID, cost, ledger.ReasonWarAction, nil, func(ctx context.Context) error {
		return s.repo.AddActionAndScore(ctx, action, scoreChallenger)
	})
	if err != nil {
		s.restoreUses(ctx, costUse, pointsUse)
		return nil, err
	}

	metrics.WarActionsTotal.WithLabelValues(string(kind)).Inc()
	log.Info().
		Str("war_id", warID.String()).
		Str("actor_id", actorID.String()).
		Str("kind", string(kind)).
		Int64("cost", cost).
		Int64("points", action.PointsDelta).
		Msg("war action recorded")

	return s.repo.GetByID(ctx, warID)
}

// restoreUses hands back limited uses consumed for an action that did not go
// through. Like the ledger's compensating credit, it runs even when the
// request context is already cancelled.
func (s *Service) restoreUses(ctx context.Context, ids ...*uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range ids {
		if id == nil {
			continue
		}
		if err := s.effects.RestoreUse(ctx, *id); err != nil {
			log.Error().Err(err).Str("effect_id", id.String()).Msg("failed to restore effect use")
		}
	}
}

// Status returns the war's public state, lazily expiring a pending war whose
// accept window has passed.
func (s *Service) Status(ctx context.Context, warID uuid.UUID) (*War, error) {
	w, err := s.repo.GetByID(ctx, warID)
	if err != nil {
		return nil, err
	}

	w, err = s.lazyExpire(ctx, w)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return s.repo.GetByID(ctx, warID)
	}
	return w, nil
}

// lazyExpire transitions a stale pending war to expired on read. Returns nil
// when the war was expired by this call (it is terminal for the caller), the
// war unchanged otherwise.
func (s *Service) lazyExpire(ctx context.Context, w *War) (*War, error) {
	if !w.AcceptDeadlinePassed(s.cfg.AcceptTimeout, time.Now()) {
		return w, nil
	}

	if err := s.repo.MarkExpired(ctx, w.ID); err != nil && err != ErrWarNotPending {
		return nil, err
	}
	log.Info().Str("war_id", w.ID.String()).Msg("pending war expired")
	return nil, nil
}
