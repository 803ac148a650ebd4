package effect

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service evaluates cost and effectiveness modifiers at call time. Precedence
// is fixed: a benefit wins over the opposing penalty, and an active
// penalty_immunity suppresses penalties entirely. Magnitudes never blend.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Install attaches a modifier to an account
func (s *Service) Install(ctx context.Context, accountID uuid.UUID, kind Kind, magnitude float64, expiresAt time.Time, usesRemaining *int, sourceWarID *uuid.UUID) error {
	e := &Effect{
		AccountID:     accountID,
		Kind:          kind,
		Magnitude:     magnitude,
		UsesRemaining: usesRemaining,
		ExpiresAt:     expiresAt,
		SourceWarID:   sourceWarID,
	}
	if err := s.repo.Install(ctx, e); err != nil {
		return err
	}

	log.Info().
		Str("account_id", accountID.String()).
		Str("kind", string(kind)).
		Float64("magnitude", magnitude).
		Time("expires_at", expiresAt).
		Msg("effect installed")
	return nil
}

// ActiveByAccount returns the modifiers applying to the account right now
func (s *Service) ActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]Effect, error) {
	return s.repo.ActiveByAccount(ctx, accountID, time.Now())
}

// HasActiveCooldown reports whether the account holds a live promotion
// cooldown penalty (blocks new war challenges)
func (s *Service) HasActiveCooldown(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return s.repo.HasActiveKind(ctx, accountID, KindPromotionCooldown, time.Now())
}

// EffectiveCost returns the cost of an operation for the account after
// applying active modifiers. A limited-use discount is consumed by the call.
func (s *Service) EffectiveCost(ctx context.Context, accountID uuid.UUID, baseCost int64) (int64, error) {
	cost, _, err := s.quote(ctx, accountID, baseCost, resolveCost)
	return cost, err
}

// EffectiveEffectiveness returns the points an operation yields for the
// account after applying active modifiers. A limited-use boost is consumed by
// the call.
func (s *Service) EffectiveEffectiveness(ctx context.Context, accountID uuid.UUID, basePoints int64) (int64, error) {
	points, _, err := s.quote(ctx, accountID, basePoints, resolveEffectiveness)
	return points, err
}

// QuoteCost is EffectiveCost plus the id of the limited-use effect the call
// consumed (nil when none was). A caller whose operation fails after quoting
// hands the use back with RestoreUse.
func (s *Service) QuoteCost(ctx context.Context, accountID uuid.UUID, baseCost int64) (int64, *uuid.UUID, error) {
	return s.quote(ctx, accountID, baseCost, resolveCost)
}

// QuoteEffectiveness is EffectiveEffectiveness plus the id of the limited-use
// effect the call consumed.
func (s *Service) QuoteEffectiveness(ctx context.Context, accountID uuid.UUID, basePoints int64) (int64, *uuid.UUID, error) {
	return s.quote(ctx, accountID, basePoints, resolveEffectiveness)
}

// RestoreUse returns a use consumed by a quote whose operation did not go
// through.
func (s *Service) RestoreUse(ctx context.Context, effectID uuid.UUID) error {
	return s.repo.RestoreUse(ctx, effectID)
}

func (s *Service) quote(ctx context.Context, accountID uuid.UUID, base int64, pick func([]Effect) *Effect) (int64, *uuid.UUID, error) {
	effects, err := s.repo.ActiveByAccount(ctx, accountID, time.Now())
	if err != nil {
		return 0, nil, err
	}

	chosen := pick(effects)
	if chosen == nil {
		return base, nil, nil
	}

	if chosen.UsesRemaining != nil {
		consumed, err := s.repo.ConsumeUse(ctx, chosen.ID)
		if err != nil {
			return 0, nil, err
		}
		if !consumed {
			// Exhausted by a concurrent caller between read and consume;
			// re-evaluate without it.
			return s.quote(ctx, accountID, base, pick)
		}
		id := chosen.ID
		return applyMagnitude(base, chosen.Magnitude), &id, nil
	}

	return applyMagnitude(base, chosen.Magnitude), nil, nil
}

// resolveCost picks the single effect governing cost: cost_discount beats
// higher_cost, and higher_cost is void under penalty_immunity.
func resolveCost(effects []Effect) *Effect {
	return resolve(effects, KindCostDiscount, KindHigherCost)
}

// resolveEffectiveness picks the single effect governing points:
// priority_boost beats reduced_effectiveness, which is void under immunity.
func resolveEffectiveness(effects []Effect) *Effect {
	return resolve(effects, KindPriorityBoost, KindReducedEffectiveness)
}

func resolve(effects []Effect, benefit, penalty Kind) *Effect {
	var benefitEffect, penaltyEffect *Effect
	immune := false

	for i := range effects {
		switch effects[i].Kind {
		case KindPenaltyImmunity:
			immune = true
		case benefit:
			if benefitEffect == nil {
				benefitEffect = &effects[i]
			}
		case penalty:
			if penaltyEffect == nil {
				penaltyEffect = &effects[i]
			}
		}
	}

	if benefitEffect != nil {
		return benefitEffect
	}
	if penaltyEffect != nil && !immune {
		return penaltyEffect
	}
	return nil
}

func applyMagnitude(base int64, magnitude float64) int64 {
	scaled := int64(math.Round(float64(base) * magnitude))
	if scaled < 0 {
		return 0
	}
	return scaled
}
