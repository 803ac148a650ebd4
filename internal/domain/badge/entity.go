package badge

import (
	"time"

	"github.com/google/uuid"
)

// CodeWarlord is the badge derived from cumulative promotion-war wins.
const CodeWarlord = "PROMOTION_WARLORD"

// winThresholds maps cumulative wins to badge levels 1..5.
var winThresholds = []int{1, 3, 10, 25, 50}

// LevelForWins returns the badge level earned by a cumulative win count.
func LevelForWins(wins int) int {
	level := 0
	for _, threshold := range winThresholds {
		if wins < threshold {
			break
		}
		level++
	}
	return level
}

// Badge is a monotonic achievement level. A stored level never decreases,
// even if the win counter or threshold table changes later.
type Badge struct {
	AccountID uuid.UUID `db:"account_id"`
	Code      string    `db:"code"`
	Level     int       `db:"level"`
	AwardedAt time.Time `db:"awarded_at"`
}

// Stats is the cumulative war record for an account.
type Stats struct {
	AccountID uuid.UUID `db:"account_id"`
	Wins      int       `db:"wins"`
}
