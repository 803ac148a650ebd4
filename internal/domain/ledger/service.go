package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/puzzlearena/arena-api/internal/pkg/metrics"
)

// Service wraps the ledger repository with the scoped-spend guarantee: a debit
// is undone by a compensating credit whenever the protected unit of work fails.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.repo.GetBalance(ctx, accountID)
}

func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, accountID, Pagination{Limit: limit, Offset: offset})
}

// Spend debits amount without a protected unit of work. A replayed idempotency
// key is reported as ErrDuplicateRequest; callers treat it as a benign no-op.
func (s *Service) Spend(ctx context.Context, accountID uuid.UUID, amount int64, reason Reason, idempotencyKey *string) (int64, error) {
	if _, err := s.repo.Debit(ctx, accountID, amount, reason, idempotencyKey); err != nil {
		if !errors.Is(err, ErrDuplicateRequest) {
			metrics.SpendsTotal.WithLabelValues("failed").Inc()
		}
		return 0, err
	}

	metrics.SpendsTotal.WithLabelValues("ok").Inc()
	log.Info().
		Str("account_id", accountID.String()).
		Int64("amount", amount).
		Str("reason", string(reason)).
		Msg("credits spent")

	return s.repo.GetBalance(ctx, accountID)
}

// ScopedSpend debits amount, runs fn, and issues a compensating credit linked
// to the debit if fn fails for any reason (error or panic). The original
// failure is propagated after compensation, so the caller still observes it
// and the ledger keeps both sides of the aborted charge.
func (s *Service) ScopedSpend(ctx context.Context, accountID uuid.UUID, amount int64, reason Reason, idempotencyKey *string, fn func(ctx context.Context) error) error {
	debitID, err := s.repo.Debit(ctx, accountID, amount, reason, idempotencyKey)
	if err != nil {
		if !errors.Is(err, ErrDuplicateRequest) {
			metrics.SpendsTotal.WithLabelValues("failed").Inc()
		}
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			s.compensate(ctx, accountID, amount, debitID)
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		s.compensate(ctx, accountID, amount, debitID)
		return err
	}

	metrics.SpendsTotal.WithLabelValues("ok").Inc()
	return nil
}

func (s *Service) compensate(ctx context.Context, accountID uuid.UUID, amount int64, debitID uuid.UUID) {
	metrics.SpendsTotal.WithLabelValues("compensated").Inc()

	// Detached context: the compensating credit must land even if the request
	// context was already cancelled by the failure we are recovering from.
	creditID, err := s.repo.Credit(context.WithoutCancel(ctx), accountID, amount, ReasonCompensation, &debitID)
	if err != nil {
		// An uncompensated charge would break balance == sum(deltas) for the
		// caller's view of the operation. Loud log so operators can reconcile.
		log.Error().
			Err(err).
			Str("account_id", accountID.String()).
			Str("debit_id", debitID.String()).
			Int64("amount", amount).
			Msg("FAILED to issue compensating credit")
		return
	}

	metrics.CompensationsTotal.Inc()
	log.Warn().
		Str("account_id", accountID.String()).
		Str("debit_id", debitID.String()).
		Str("credit_id", creditID.String()).
		Int64("amount", amount).
		Msg("compensating credit issued")
}
