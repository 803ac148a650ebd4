package badge

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Service derives badge levels from cumulative war wins.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// RecordWinTx increments the winner's counter and recomputes the badge level
// inside the caller's transaction. The SQL guard keeps levels monotonic, so
// re-running against the same state is harmless.
func (s *Service) RecordWinTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID) error {
	wins, err := s.repo.IncrementWinsTx(ctx, tx, accountID)
	if err != nil {
		return err
	}

	level := LevelForWins(wins)
	if level == 0 {
		return nil
	}

	if err := s.repo.UpsertLevelTx(ctx, tx, accountID, CodeWarlord, level); err != nil {
		return err
	}

	log.Info().
		Str("account_id", accountID.String()).
		Int("wins", wins).
		Int("level", level).
		Msg("badge level recomputed")
	return nil
}

// RecomputeLevel re-derives the badge from the stored win counter. Writes
// only when the computed level is strictly greater than the stored one.
func (s *Service) RecomputeLevel(ctx context.Context, accountID uuid.UUID) error {
	wins, err := s.repo.GetWins(ctx, accountID)
	if err != nil {
		return err
	}

	level := LevelForWins(wins)
	if level == 0 {
		return nil
	}
	return s.repo.UpsertLevel(ctx, accountID, CodeWarlord, level)
}

// GetBadge returns the account's stored badge, if any
func (s *Service) GetBadge(ctx context.Context, accountID uuid.UUID) (*Badge, error) {
	return s.repo.GetBadge(ctx, accountID, CodeWarlord)
}
