package effect

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func activeEffect(kind Kind, magnitude float64) Effect {
	return Effect{
		ID:        uuid.New(),
		Kind:      kind,
		Magnitude: magnitude,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestResolveBenefitBeatsPenalty(t *testing.T) {
	effects := []Effect{
		activeEffect(KindHigherCost, 1.25),
		activeEffect(KindCostDiscount, 0.8),
	}

	chosen := resolveCost(effects)
	if chosen == nil || chosen.Kind != KindCostDiscount {
		t.Fatalf("expected cost_discount to win, got %+v", chosen)
	}
}

func TestResolvePenaltyAppliesAlone(t *testing.T) {
	effects := []Effect{
		activeEffect(KindReducedEffectiveness, 0.7),
	}

	chosen := resolveEffectiveness(effects)
	if chosen == nil || chosen.Kind != KindReducedEffectiveness {
		t.Fatalf("expected reduced_effectiveness to apply, got %+v", chosen)
	}
}

func TestResolveImmunitySuppressesPenalty(t *testing.T) {
	effects := []Effect{
		activeEffect(KindPenaltyImmunity, 1.0),
		activeEffect(KindHigherCost, 1.25),
	}

	if chosen := resolveCost(effects); chosen != nil {
		t.Fatalf("expected no effect under immunity, got %+v", chosen)
	}
}

func TestResolveImmunityDoesNotSuppressBenefit(t *testing.T) {
	effects := []Effect{
		activeEffect(KindPenaltyImmunity, 1.0),
		activeEffect(KindPriorityBoost, 1.25),
	}

	chosen := resolveEffectiveness(effects)
	if chosen == nil || chosen.Kind != KindPriorityBoost {
		t.Fatalf("expected priority_boost to apply, got %+v", chosen)
	}
}

func TestResolveNoEffects(t *testing.T) {
	if chosen := resolveCost(nil); chosen != nil {
		t.Fatalf("expected nil for empty effects, got %+v", chosen)
	}
}

func TestApplyMagnitude(t *testing.T) {
	cases := []struct {
		base      int64
		magnitude float64
		want      int64
	}{
		{100, 0.8, 80},
		{100, 1.25, 125},
		{10, 0.7, 7},
		{5, 0.7, 4},  // 3.5 rounds to 4
		{1, 0.25, 0}, // rounds down to zero
		{0, 1.5, 0},
	}

	for _, c := range cases {
		if got := applyMagnitude(c.base, c.magnitude); got != c.want {
			t.Errorf("applyMagnitude(%d, %v) = %d, want %d", c.base, c.magnitude, got, c.want)
		}
	}
}

func TestActiveAt(t *testing.T) {
	now := time.Now()

	e := Effect{ExpiresAt: now.Add(time.Minute)}
	if !e.ActiveAt(now) {
		t.Error("unexpired effect should be active")
	}

	e.ExpiresAt = now
	if e.ActiveAt(now) {
		t.Error("effect expiring exactly now should be inactive")
	}

	uses := 0
	e = Effect{ExpiresAt: now.Add(time.Minute), UsesRemaining: &uses}
	if e.ActiveAt(now) {
		t.Error("exhausted effect should be inactive")
	}
}
