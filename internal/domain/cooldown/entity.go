package cooldown

import (
	"time"

	"github.com/google/uuid"
)

// ActionKind names the throttled operation class.
type ActionKind string

const (
	ActionChallenge ActionKind = "war_challenge"
	ActionBoost     ActionKind = "war_boost"
	ActionHint      ActionKind = "hint"
)

// State is the rolling-window counter for one (account, action kind) pair.
// recent_count resets hourly; last_action_at survives the reset so the base
// wait still applies across window boundaries.
type State struct {
	AccountID     uuid.UUID  `db:"account_id"`
	ActionKind    ActionKind `db:"action_kind"`
	RecentCount   int        `db:"recent_count"`
	WindowResetAt time.Time  `db:"window_reset_at"`
	LastActionAt  *time.Time `db:"last_action_at"`
}
