package account

import (
	"time"

	"github.com/google/uuid"
)

// Account is the holder of a single-currency credit balance.
// The balance column is mutated only through the ledger repository.
type Account struct {
	ID        uuid.UUID `db:"id"`
	Username  string    `db:"username"`
	Balance   int64     `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
