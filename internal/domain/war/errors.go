package war

import "errors"

var (
	ErrWarNotFound = errors.New("war not found")

	// ErrDuplicateWar is returned when a non-terminal war already exists for
	// the unordered pair of accounts
	ErrDuplicateWar = errors.New("a war between these accounts is already open")

	// ErrChallengeBlocked is returned when the challenger holds an active
	// promotion cooldown penalty
	ErrChallengeBlocked = errors.New("challenges are blocked by an active cooldown penalty")

	ErrSelfChallenge  = errors.New("cannot challenge yourself")
	ErrWarNotPending  = errors.New("war is not pending")
	ErrWarNotActive   = errors.New("war is not active")
	ErrWarExpired     = errors.New("war has ended")
	ErrNotParticipant = errors.New("account is not a participant of this war")
	ErrNotChallenged  = errors.New("only the challenged account may respond")
)
