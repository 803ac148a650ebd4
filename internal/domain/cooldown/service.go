package cooldown

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// window is the rolling period after which the escalation counter resets.
const window = time.Hour

// Config tunes the escalating backoff.
type Config struct {
	BaseMinutes      int
	IncrementMinutes int
	CapMinutes       int
}

// DefaultConfig matches the product defaults: 2min base, +1min per recent
// action, capped at 5min.
func DefaultConfig() Config {
	return Config{BaseMinutes: 2, IncrementMinutes: 1, CapMinutes: 5}
}

// RequiredWait returns the wait enforced before the next action given how
// many actions the current window has already consumed.
func RequiredWait(cfg Config, recentCount int) time.Duration {
	minutes := cfg.BaseMinutes + cfg.IncrementMinutes*recentCount
	if minutes > cfg.CapMinutes {
		minutes = cfg.CapMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Service enforces the per-account, per-action-kind escalating backoff.
type Service struct {
	repo *Repository
	cfg  Config
}

func NewService(repo *Repository, cfg Config) *Service {
	if cfg.BaseMinutes <= 0 {
		cfg = DefaultConfig()
	}
	return &Service{repo: repo, cfg: cfg}
}

// CheckAndConsume admits the action or fails with CooldownActiveError. On
// success the window counter is incremented and the action timestamp recorded.
func (s *Service) CheckAndConsume(ctx context.Context, accountID uuid.UUID, kind ActionKind) error {
	err := s.repo.CheckAndConsume(ctx, accountID, kind, s.cfg, time.Now())
	if err != nil {
		return err
	}

	log.Debug().
		Str("account_id", accountID.String()).
		Str("action_kind", string(kind)).
		Msg("cooldown consumed")
	return nil
}
