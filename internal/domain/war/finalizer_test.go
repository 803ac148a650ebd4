package war_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/puzzlearena/arena-api/internal/domain/effect"
	"github.com/puzzlearena/arena-api/internal/domain/war"
)

func newTestFinalizer(env *testEnv) *war.Finalizer {
	return war.NewFinalizer(env.db, env.repo, env.effectsDB, env.badges, env.cfg, 30*time.Second)
}

func TestFinalizeDecisiveWar(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	env := newTestEnv(db, 50*time.Millisecond)
	a := createTestAccount(t, db, 100)
	b := createTestAccount(t, db, 100)

	w := acceptedWar(t, env, a, b)

	_, err := env.wars.RecordAction(context.Background(), w.ID, a, war.ActionBoost, "", 5, 12)
	requireNoError(t, err)
	_, err = env.wars.RecordAction(context.Background(), w.ID, b, war.ActionBoost, "", 5, 7)
	requireNoError(t, err)

	time.Sleep(100 * time.Millisecond)

	finalizer := newTestFinalizer(env)
	finalizer.FinalizeDueWars(context.Background())

	w, err = env.repo.GetByID(context.Background(), w.ID)
	requireNoError(t, err)
	if w.Status != war.StatusCompleted {
		t.Fatalf("expected completed war, got %s", w.Status)
	}
	if w.WinnerID == nil || *w.WinnerID != a {
		t.Fatalf("expected winner %s, got %v", a, w.WinnerID)
	}
	if w.LoserID == nil || *w.LoserID != b {
		t.Fatalf("expected loser %s, got %v", b, w.LoserID)
	}

	winnerEffects := activeEffectKinds(t, env, a)
	for _, kind := range []effect.Kind{
		effect.KindExtendedDuration,
		effect.KindPenaltyImmunity,
		effect.KindCostDiscount,
		effect.KindPriorityBoost,
	} {
		if !winnerEffects[kind] {
			t.Errorf("winner missing effect %s", kind)
		}
	}

	loserEffects := activeEffectKinds(t, env, b)
	for _, kind := range []effect.Kind{
		effect.KindPromotionCooldown,
		effect.KindReducedEffectiveness,
		effect.KindHigherCost,
		effect.KindLowerPriority,
	} {
		if !loserEffects[kind] {
			t.Errorf("loser missing effect %s", kind)
		}
	}

	wins, err := env.badges.GetBadge(context.Background(), a)
	requireNoError(t, err)
	if wins == nil || wins.Level != 1 {
		t.Fatalf("expected winner badge level 1, got %+v", wins)
	}

	// The loser cannot open a new challenge while the cooldown penalty lasts.
	c := createTestAccount(t, db, 100)
	_, err = env.wars.Challenge(context.Background(), b, c)
	if !errors.Is(err, war.ErrChallengeBlocked) {
		t.Fatalf("expected loser to be blocked, got %v", err)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	env := newTestEnv(db, 50*time.Millisecond)
	a := createTestAccount(t, db, 100)
	b := createTestAccount(t, db, 100)

	w := acceptedWar(t, env, a, b)

	_, err := env.wars.RecordAction(context.Background(), w.ID, a, war.ActionBoost, "", 5, 10)
	requireNoError(t, err)

	time.Sleep(100 * time.Millisecond)

	finalizer := newTestFinalizer(env)
	finalizer.FinalizeDueWars(context.Background())
	finalizer.FinalizeDueWars(context.Background())

	count := countEffects(t, db, a)
	if count != 4 {
		t.Fatalf("expected 4 winner effects after double finalize, got %d", count)
	}

	var wins int
	requireNoError(t, db.Get(&wins, `SELECT wins FROM war_stats WHERE account_id = $1`, a))
	if wins != 1 {
		t.Fatalf("expected 1 win after double finalize, got %d", wins)
	}
}

func TestFinalizeTieInstallsNothing(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	env := newTestEnv(db, 50*time.Millisecond)
	a := createTestAccount(t, db, 100)
	b := createTestAccount(t, db, 100)

	w := acceptedWar(t, env, a, b)

	time.Sleep(100 * time.Millisecond)

	finalizer := newTestFinalizer(env)
	finalizer.FinalizeDueWars(context.Background())

	w, err := env.repo.GetByID(context.Background(), w.ID)
	requireNoError(t, err)
	if w.Status != war.StatusCompleted {
		t.Fatalf("expected completed war, got %s", w.Status)
	}
	if w.WinnerID != nil || w.LoserID != nil {
		t.Fatalf("expected no winner on a tie, got %v/%v", w.WinnerID, w.LoserID)
	}

	if count := countEffects(t, db, a) + countEffects(t, db, b); count != 0 {
		t.Fatalf("expected no effects on a tie, got %d", count)
	}
}

func TestFinalizerExpiresStalePending(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	env := newTestEnvWithTimeout(db, time.Hour, 50*time.Millisecond)
	a := createTestAccount(t, db, 100)
	b := createTestAccount(t, db, 100)

	w, err := env.wars.Challenge(context.Background(), a, b)
	requireNoError(t, err)

	time.Sleep(100 * time.Millisecond)

	ids, err := env.repo.StalePendingIDs(context.Background(), env.cfg.AcceptTimeout, time.Now())
	requireNoError(t, err)
	if len(ids) != 1 || ids[0] != w.ID {
		t.Fatalf("expected the pending war to be stale, got %v", ids)
	}

	requireNoError(t, env.repo.MarkExpired(context.Background(), w.ID))

	w, err = env.repo.GetByID(context.Background(), w.ID)
	requireNoError(t, err)
	if w.Status != war.StatusExpired {
		t.Fatalf("expected expired war, got %s", w.Status)
	}
}

/* =========================
   Helpers
   ========================= */

func activeEffectKinds(t *testing.T, env *testEnv, accountID uuid.UUID) map[effect.Kind]bool {
	t.Helper()

	effects, err := env.effectsDB.ActiveByAccount(context.Background(), accountID, time.Now())
	requireNoError(t, err)

	kinds := make(map[effect.Kind]bool, len(effects))
	for _, e := range effects {
		kinds[e.Kind] = true
	}
	return kinds
}

func countEffects(t *testing.T, db *sqlx.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	requireNoError(t, db.Get(&count, `SELECT count(*) FROM effects WHERE account_id = $1`, accountID))
	return count
}
