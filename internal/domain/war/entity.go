package war

import (
	"time"

	"github.com/google/uuid"
)

// Status represents war lifecycle state
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusDeclined || s == StatusExpired
}

// War is a timed two-party contest over accumulated points. At most one
// non-terminal war exists per unordered pair of accounts.
type War struct {
	ID           uuid.UUID `db:"id"`
	ChallengerID uuid.UUID `db:"challenger_id"`
	ChallengedID uuid.UUID `db:"challenged_id"`
	Status       Status    `db:"status"`

	CreatedAt time.Time  `db:"created_at"`
	StartsAt  *time.Time `db:"starts_at"`
	EndsAt    *time.Time `db:"ends_at"`

	ChallengerScore int64 `db:"challenger_score"`
	ChallengedScore int64 `db:"challenged_score"`

	WinnerID *uuid.UUID `db:"winner_id"`
	LoserID  *uuid.UUID `db:"loser_id"`

	UpdatedAt time.Time `db:"updated_at"`
}

// IsParticipant reports whether the account is one of the two sides
func (w *War) IsParticipant(accountID uuid.UUID) bool {
	return accountID == w.ChallengerID || accountID == w.ChallengedID
}

// Opponent returns the other participant
func (w *War) Opponent(accountID uuid.UUID) uuid.UUID {
	if accountID == w.ChallengerID {
		return w.ChallengedID
	}
	return w.ChallengerID
}

// AcceptDeadlinePassed reports whether a pending war outlived its accept window
func (w *War) AcceptDeadlinePassed(timeout time.Duration, now time.Time) bool {
	return w.Status == StatusPending && now.After(w.CreatedAt.Add(timeout))
}

// ActionKind is what a participant does during an active war.
type ActionKind string

const (
	ActionBoost   ActionKind = "boost"   // add points to the actor's side
	ActionUnboost ActionKind = "unboost" // remove points from the opponent's side
)

// Action is an append-only record of one move inside an active war.
type Action struct {
	ID          uuid.UUID  `db:"id"`
	WarID       uuid.UUID  `db:"war_id"`
	ActorID     uuid.UUID  `db:"actor_id"`
	TargetRef   string     `db:"target_ref"`
	Kind        ActionKind `db:"kind"`
	Cost        int64      `db:"cost"`
	PointsDelta int64      `db:"points_delta"`
	CreatedAt   time.Time  `db:"created_at"`
}
