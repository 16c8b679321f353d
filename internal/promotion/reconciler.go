package promotion

import (
	"context"
	"time"

	"github.com/hungtruong03/SAPromotion/internal/events"
	"github.com/hungtruong03/SAPromotion/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	defaultReconcileInterval = time.Minute
	defaultReconcileGrace    = 30 * time.Second
	defaultStalePending      = 15 * time.Minute
	defaultAttemptRetention  = 30 * 24 * time.Hour
	reconcileBatchSize       = 100
	maxDeleteBatchesPerRun   = 50
)

// ReconcilerOptions configures a Reconciler. Zero durations use defaults;
// a negative Retention disables attempt cleanup.
type ReconcilerOptions struct {
	Interval     time.Duration
	Grace        time.Duration
	StalePending time.Duration
	Retention    time.Duration
}

// Reconciler finishes redemption attempts interrupted between the partner
// call and the commit, and prunes old attempts.
type Reconciler struct {
	svc          *Service
	interval     time.Duration
	grace        time.Duration
	stalePending time.Duration
	retention    time.Duration
}

// NewReconciler returns a Reconciler for svc.
func NewReconciler(svc *Service, opts ReconcilerOptions) *Reconciler {
	if svc == nil {
		return nil
	}
	r := &Reconciler{
		svc:          svc,
		interval:     opts.Interval,
		grace:        opts.Grace,
		stalePending: opts.StalePending,
		retention:    opts.Retention,
	}
	if r.interval <= 0 {
		r.interval = defaultReconcileInterval
	}
	if r.grace <= 0 {
		r.grace = defaultReconcileGrace
	}
	if r.stalePending <= 0 {
		r.stalePending = defaultStalePending
	}
	if r.retention == 0 {
		r.retention = defaultAttemptRetention
	}
	return r
}

// Run reconciles until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	if r == nil {
		return nil
	}
	log.Infof("redemption reconciler started (interval=%s)", r.interval)
	for {
		if ctx.Err() != nil {
			return nil
		}
		r.RunOnce(ctx)
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce performs a single reconciliation pass.
func (r *Reconciler) RunOnce(ctx context.Context) {
	now := r.svc.now()
	r.commitSucceeded(ctx, now)
	r.abandonStale(ctx, now)
	if r.retention > 0 {
		r.pruneFinished(ctx, now)
	}
}

// commitSucceeded applies the commit for attempts the partner accepted but
// whose commit never landed.
func (r *Reconciler) commitSucceeded(ctx context.Context, now time.Time) {
	attempts, err := r.svc.store.AttemptsInStatus(ctx, models.RedemptionUpstreamSucceeded, now.Add(-r.grace), reconcileBatchSize)
	if err != nil {
		log.WithError(err).Warn("redemption reconciler: list succeeded attempts failed")
		return
	}
	for i := range attempts {
		attempt := &attempts[i]
		redeemAt := r.svc.now().UTC()
		committed, errCommit := r.svc.store.CommitRedemption(ctx, attempt, redeemAt)
		if errCommit != nil {
			log.WithError(errCommit).WithField("attempt_id", attempt.ID).Warn("redemption reconciler: commit failed")
			continue
		}
		fields := log.Fields{"attempt_id": attempt.ID, "promotion_id": attempt.PromotionID}
		if !committed {
			log.WithFields(fields).Warn("redemption reconciler: promotion no longer redeemable, attempt marked conflict")
			continue
		}
		r.svc.metrics.ObserveRedemption("reconciled")
		r.svc.publish(ctx, events.Event{
			Type:        events.TypeRedeemed,
			PromotionID: attempt.PromotionID,
			UserID:      attempt.UserID,
			AttemptID:   attempt.ID,
			OccurredAt:  redeemAt,
		})
		log.WithFields(fields).Info("redemption reconciler: committed interrupted redemption")
	}
}

// abandonStale gives up on attempts that never recorded a partner outcome.
func (r *Reconciler) abandonStale(ctx context.Context, now time.Time) {
	attempts, err := r.svc.store.AttemptsInStatus(ctx, models.RedemptionPending, now.Add(-r.stalePending), reconcileBatchSize)
	if err != nil {
		log.WithError(err).Warn("redemption reconciler: list pending attempts failed")
		return
	}
	for _, attempt := range attempts {
		abandoned, errAbandon := r.svc.store.AbandonAttempt(ctx, attempt.ID)
		if errAbandon != nil {
			log.WithError(errAbandon).WithField("attempt_id", attempt.ID).Warn("redemption reconciler: abandon failed")
			continue
		}
		if abandoned {
			log.WithFields(log.Fields{
				"attempt_id":   attempt.ID,
				"promotion_id": attempt.PromotionID,
			}).Warn("redemption reconciler: pending attempt abandoned, partner outcome unknown")
		}
	}
}

func (r *Reconciler) pruneFinished(ctx context.Context, now time.Time) {
	cutoff := now.Add(-r.retention)
	deletedTotal := int64(0)
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			return
		}
		n, err := r.svc.store.DeleteFinishedAttempts(ctx, cutoff, reconcileBatchSize)
		if err != nil {
			log.WithError(err).Warn("redemption reconciler: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}
	if deletedTotal > 0 {
		log.Infof("redemption reconciler: deleted %d finished attempts (cutoff=%s)", deletedTotal, cutoff.Format(time.RFC3339))
	}
}
