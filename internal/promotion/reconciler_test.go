package promotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hungtruong03/SAPromotion/internal/events"
	"github.com/hungtruong03/SAPromotion/internal/models"
)

func TestReconcilerCommitsInterruptedRedemption(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	p := env.createPromotion(t, pt.ID, uid(42))
	ctx := context.Background()

	attempt := &models.RedemptionAttempt{PromotionID: p.ID, UserID: 42, PhoneNumber: "0900"}
	if errCreate := env.store.CreateAttempt(ctx, attempt); errCreate != nil {
		t.Fatalf("create attempt: %v", errCreate)
	}
	if errStatus := env.store.SetAttemptStatus(ctx, attempt.ID, models.RedemptionUpstreamSucceeded, "", nil); errStatus != nil {
		t.Fatalf("set status: %v", errStatus)
	}

	r := NewReconciler(env.svc, ReconcilerOptions{Grace: time.Minute, Retention: -1})
	r.RunOnce(ctx)
	if env.reload(t, p.ID).Redeemed {
		t.Fatal("attempt inside the grace period must not be committed yet")
	}

	env.clock.Advance(2 * time.Minute)
	r.RunOnce(ctx)

	if !env.reload(t, p.ID).Redeemed {
		t.Fatal("expected reconciler to commit the redemption")
	}
	got, errGet := env.store.GetAttempt(ctx, attempt.ID)
	if errGet != nil {
		t.Fatalf("get attempt: %v", errGet)
	}
	if got.Status != models.RedemptionCommitted {
		t.Fatalf("expected committed attempt, got %s", got.Status)
	}
	if published := env.publisher.byType(events.TypeRedeemed); len(published) != 1 {
		t.Fatalf("expected one redeemed event, got %d", len(published))
	}
}

func TestReconcilerMarksConflictWhenAlreadyRedeemed(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	p := env.createPromotion(t, pt.ID, uid(42))
	ctx := context.Background()

	if _, errRedeem := env.svc.RedeemByID(ctx, p.ID, "0900", 42); errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}
	stale := &models.RedemptionAttempt{PromotionID: p.ID, UserID: 42, PhoneNumber: "0900", Status: models.RedemptionUpstreamSucceeded}
	if errCreate := env.store.CreateAttempt(ctx, stale); errCreate != nil {
		t.Fatalf("create attempt: %v", errCreate)
	}

	env.clock.Advance(time.Hour)
	NewReconciler(env.svc, ReconcilerOptions{Retention: -1}).RunOnce(ctx)

	got, errGet := env.store.GetAttempt(ctx, stale.ID)
	if errGet != nil {
		t.Fatalf("get attempt: %v", errGet)
	}
	if got.Status != models.RedemptionConflict {
		t.Fatalf("expected conflict, got %s", got.Status)
	}
}

func TestReconcilerAbandonsStalePendingAndPrunes(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	p := env.createPromotion(t, pt.ID, uid(42))
	ctx := context.Background()

	pending := &models.RedemptionAttempt{PromotionID: p.ID, UserID: 42, PhoneNumber: "0900"}
	if errCreate := env.store.CreateAttempt(ctx, pending); errCreate != nil {
		t.Fatalf("create attempt: %v", errCreate)
	}

	r := NewReconciler(env.svc, ReconcilerOptions{StalePending: 15 * time.Minute, Retention: 24 * time.Hour})
	env.clock.Advance(20 * time.Minute)
	r.RunOnce(ctx)

	got, errGet := env.store.GetAttempt(ctx, pending.ID)
	if errGet != nil {
		t.Fatalf("get attempt: %v", errGet)
	}
	if got.Status != models.RedemptionAbandoned {
		t.Fatalf("expected abandoned, got %s", got.Status)
	}
	if env.reload(t, p.ID).Redeemed {
		t.Fatal("abandoned attempt must not redeem the promotion")
	}

	env.clock.Advance(48 * time.Hour)
	r.RunOnce(ctx)
	if _, errGet = env.store.GetAttempt(ctx, pending.ID); !errors.Is(errGet, ErrNotFound) {
		t.Fatalf("expected finished attempt pruned, got %v", errGet)
	}
}

func TestReconcilerRunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	r := NewReconciler(env.svc, ReconcilerOptions{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	select {
	case errRun := <-done:
		if errRun != nil {
			t.Fatalf("run: %v", errRun)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
}
