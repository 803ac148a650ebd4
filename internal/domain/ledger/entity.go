package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Reason tags a ledger transaction with the feature that caused it.
type Reason string

const (
	ReasonHint         Reason = "hint"
	ReasonContinue     Reason = "continue"
	ReasonAvatarChange Reason = "avatar_change"
	ReasonWarAction    Reason = "war_action"
	ReasonCompensation Reason = "compensation"
	ReasonGrant        Reason = "grant"
)

// Transaction is an immutable ledger row. For any account the balance always
// equals the sum of its deltas.
type Transaction struct {
	ID                     uuid.UUID  `db:"id"`
	AccountID              uuid.UUID  `db:"account_id"`
	Delta                  int64      `db:"delta"`
	Reason                 string     `db:"reason"`
	IdempotencyKey         *string    `db:"idempotency_key"`
	ReferenceTransactionID *uuid.UUID `db:"reference_transaction_id"`
	CreatedAt              time.Time  `db:"created_at"`
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}
