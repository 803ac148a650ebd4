package effect

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// retention is how long expired effect rows are kept before the hygiene sweep
// removes them.
const retention = 7 * 24 * time.Hour

// Notifier is a background worker that announces effects nearing expiry and
// prunes long-expired rows. Multiple instances may run concurrently: the
// notified flag is claimed with a conditional update, and a Redis SETNX guard
// keeps instances from racing on the same sweep window.
type Notifier struct {
	repo     *Repository
	redis    *redis.Client
	interval time.Duration
	horizon  time.Duration
	stopCh   chan struct{}
}

func NewNotifier(repo *Repository, redisClient *redis.Client, interval, horizon time.Duration) *Notifier {
	if interval == 0 {
		interval = 15 * time.Minute
	}
	if horizon == 0 {
		horizon = time.Hour
	}
	return &Notifier{
		repo:     repo,
		redis:    redisClient,
		interval: interval,
		horizon:  horizon,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background worker
func (n *Notifier) Start() {
	log.Info().Dur("interval", n.interval).Msg("Starting effect notifier...")
	go n.loop()
}

// Stop gracefully stops the background worker
func (n *Notifier) Stop() {
	log.Info().Msg("Stopping effect notifier...")
	close(n.stopCh)
}

func (n *Notifier) loop() {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	n.sweep()

	for {
		select {
		case <-ticker.C:
			n.sweep()
		case <-n.stopCh:
			return
		}
	}
}

func (n *Notifier) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n.NotifyExpiringEffects(ctx)

	deleted, err := n.repo.DeleteExpired(ctx, time.Now().Add(-retention))
	if err != nil {
		log.Error().Err(err).Msg("Failed to prune expired effects")
	} else if deleted > 0 {
		log.Info().Int64("count", deleted).Msg("Pruned expired effects")
	}
}

// NotifyExpiringEffects announces every unnotified effect expiring within the
// horizon. Idempotent: each effect is claimed exactly once across instances.
func (n *Notifier) NotifyExpiringEffects(ctx context.Context) {
	effects, err := n.repo.ExpiringWithin(ctx, n.horizon, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load expiring effects")
		return
	}

	for i := range effects {
		e := &effects[i]

		if !n.claim(ctx, e) {
			continue
		}

		claimed, err := n.repo.MarkNotified(ctx, e.ID)
		if err != nil {
			log.Error().Err(err).Str("effect_id", e.ID.String()).Msg("Failed to mark effect notified")
			continue
		}
		if !claimed {
			continue
		}

		// Delivery (push, in-app) belongs to the notification surface; the
		// engine's contract ends at emitting the event.
		log.Info().
			Str("account_id", e.AccountID.String()).
			Str("effect_id", e.ID.String()).
			Str("kind", string(e.Kind)).
			Time("expires_at", e.ExpiresAt).
			Msg("effect expiring soon")
	}
}

func (n *Notifier) claim(ctx context.Context, e *Effect) bool {
	if n.redis == nil {
		return true
	}

	ok, err := n.redis.SetNX(ctx, "effect:notify:"+e.ID.String(), 1, n.horizon).Result()
	if err != nil {
		// Redis down: fall through to the DB-level claim.
		return true
	}
	return ok
}
