package effect

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies a time-boxed account modifier.
type Kind string

const (
	// Winner effects
	KindExtendedDuration Kind = "extended_duration"
	KindPenaltyImmunity  Kind = "penalty_immunity"
	KindCostDiscount     Kind = "cost_discount"
	KindPriorityBoost    Kind = "priority_boost"

	// Loser effects
	KindPromotionCooldown    Kind = "promotion_cooldown"
	KindReducedEffectiveness Kind = "reduced_effectiveness"
	KindHigherCost           Kind = "higher_cost"
	KindLowerPriority        Kind = "lower_priority"
)

// IsPenalty reports whether the kind worsens the account's costs or output.
// Penalties are fully suppressed by an active penalty_immunity effect.
func (k Kind) IsPenalty() bool {
	switch k {
	case KindPromotionCooldown, KindReducedEffectiveness, KindHigherCost, KindLowerPriority:
		return true
	}
	return false
}

// Effect is one modifier installed on an account. Rows are never mutated after
// install except for the uses_remaining decrement and the notified flag;
// expiry is a read-time filter.
type Effect struct {
	ID            uuid.UUID  `db:"id"`
	AccountID     uuid.UUID  `db:"account_id"`
	Kind          Kind       `db:"kind"`
	Magnitude     float64    `db:"magnitude"`
	UsesRemaining *int       `db:"uses_remaining"` // nil means unlimited until expiry
	ExpiresAt     time.Time  `db:"expires_at"`
	SourceWarID   *uuid.UUID `db:"source_war_id"`
	Notified      bool       `db:"notified"`
	CreatedAt     time.Time  `db:"created_at"`
}

// ActiveAt reports whether the effect applies to a query at the given time.
func (e *Effect) ActiveAt(now time.Time) bool {
	if !e.ExpiresAt.After(now) {
		return false
	}
	if e.UsesRemaining != nil && *e.UsesRemaining <= 0 {
		return false
	}
	return true
}
