package war

import (
	"time"

	"github.com/google/uuid"
)

// Response is the public projection of a war returned to clients.
type Response struct {
	ID           uuid.UUID `json:"id"`
	ChallengerID uuid.UUID `json:"challenger_id"`
	ChallengedID uuid.UUID `json:"challenged_id"`
	Status       string    `json:"status"`

	CreatedAt time.Time  `json:"created_at"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`

	ChallengerScore int64 `json:"challenger_score"`
	ChallengedScore int64 `json:"challenged_score"`

	WinnerID *uuid.UUID `json:"winner_id,omitempty"`
	LoserID  *uuid.UUID `json:"loser_id,omitempty"`
}

// ToResponse converts a war to its public projection
func (w *War) ToResponse() *Response {
	return &Response{
		ID:              w.ID,
		ChallengerID:    w.ChallengerID,
		ChallengedID:    w.ChallengedID,
		Status:          string(w.Status),
		CreatedAt:       w.CreatedAt,
		StartsAt:        w.StartsAt,
		EndsAt:          w.EndsAt,
		ChallengerScore: w.ChallengerScore,
		ChallengedScore: w.ChallengedScore,
		WinnerID:        w.WinnerID,
		LoserID:         w.LoserID,
	}
}
