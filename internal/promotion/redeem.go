package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hungtruong03/SAPromotion/internal/codes"
	"github.com/hungtruong03/SAPromotion/internal/events"
	"github.com/hungtruong03/SAPromotion/internal/models"
	"github.com/hungtruong03/SAPromotion/internal/partner"
	"github.com/hungtruong03/SAPromotion/internal/util"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
)

// Redemption describes a committed redemption.
type Redemption struct {
	PromotionID string
	AttemptID   string
	RedeemAt    time.Time
}

// RedeemByID redeems a promotion addressed by id.
func (s *Service) RedeemByID(ctx context.Context, id, phoneNumber string, userID uint64) (*Redemption, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("id is required")
	}
	return s.redeem(ctx, id, phoneNumber, userID)
}

// RedeemByCode redeems the promotion a live short code points to. The code is
// released once the redemption commits.
func (s *Service) RedeemByCode(ctx context.Context, code, phoneNumber string, userID uint64) (*Redemption, error) {
	id, err := s.codes.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, codes.ErrCodeNotFound) {
			s.metrics.ObserveRedemption("invalid_code")
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, err
	}
	result, err := s.redeem(ctx, id, phoneNumber, userID)
	if err != nil {
		return nil, err
	}
	if errRelease := s.codes.Release(context.WithoutCancel(ctx), code); errRelease != nil {
		log.WithError(errRelease).WithField("promotion_id", id).Warn("release redeemed code failed")
	}
	return result, nil
}

func (s *Service) inflightKey(id string) string {
	return s.keyPrefix + "redeeming:" + id
}

// redeem runs the shared redemption procedure for a resolved promotion id.
func (s *Service) redeem(ctx context.Context, id, phoneNumber string, userID uint64) (result *Redemption, err error) {
	ctx, span := s.tracer.Start(ctx, "promotion.redeem")
	span.SetAttributes(attribute.String("promotion.id", id), attribute.Int64("user.id", int64(userID)))
	defer func() {
		s.metrics.ObserveRedemption(redemptionResult(err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return nil, invalid("phoneNumber is required")
	}
	if userID == 0 {
		return nil, invalid("userId is required")
	}

	p, err := s.store.GetPromotion(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkRedeemable(p, userID, s.now()); err != nil {
		return nil, err
	}

	guardToken := uuid.NewString()
	guardExpiry := time.Now().Add(s.inflightTTL)
	acquired, err := s.cache.SetNX(ctx, s.inflightKey(id), guardToken, s.inflightTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire redemption guard: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("promotion %s is being redeemed: %w", id, ErrConflict)
	}
	defer func() {
		// Only our own token is removed; an expired guard may belong to someone else by now.
		if _, errDel := s.cache.DelIfEqual(context.WithoutCancel(ctx), s.inflightKey(id), guardToken); errDel != nil {
			log.WithError(errDel).WithField("promotion_id", id).Warn("release redemption guard failed")
		}
	}()

	attempt := &models.RedemptionAttempt{
		PromotionID: id,
		UserID:      userID,
		PhoneNumber: phoneNumber,
		Status:      models.RedemptionPending,
	}
	if err := s.store.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	discountType, discountValue := p.EffectiveDiscount()
	// The partner call must finish while the guard is still held.
	partnerCtx, cancelPartner := context.WithDeadline(ctx, guardExpiry)
	resp, errPartner := s.partner.Redeem(partnerCtx, attempt.ID, partner.RedeemRequest{
		PhoneNumber:   phoneNumber,
		DiscountType:  discountType,
		DiscountValue: discountValue,
		PartnerID:     p.Type.PartnerID,
	})
	cancelPartner()
	// From here on the partner outcome must be recorded even if the caller
	// went away.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.commitTimeout)
	defer cancel()

	if errPartner != nil {
		if errMark := s.store.SetAttemptStatus(settleCtx, attempt.ID, models.RedemptionUpstreamFailed, errPartner.Error(), nil); errMark != nil {
			log.WithError(errMark).WithField("attempt_id", attempt.ID).Error("record partner failure failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, errPartner)
	}

	var body []byte
	if resp != nil {
		body = resp.Body
	}
	if err := s.store.SetAttemptStatus(settleCtx, attempt.ID, models.RedemptionUpstreamSucceeded, "", body); err != nil {
		// The reconciler cannot see this attempt as succeeded; try the commit anyway.
		log.WithError(err).WithField("attempt_id", attempt.ID).Error("record partner success failed")
	}

	redeemAt := s.now().UTC()
	committed, err := s.store.CommitRedemption(settleCtx, attempt, redeemAt)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"attempt_id":   attempt.ID,
			"promotion_id": id,
		}).Error("commit after partner success failed; left for reconciler")
		return nil, err
	}
	if !committed {
		log.WithFields(log.Fields{
			"attempt_id":   attempt.ID,
			"promotion_id": id,
		}).Warn("partner accepted redemption but promotion was no longer redeemable")
		return nil, fmt.Errorf("promotion %s: %w", id, ErrConflict)
	}

	s.publish(settleCtx, events.Event{
		Type:          events.TypeRedeemed,
		PromotionID:   id,
		TypeID:        p.TypeID,
		UserID:        userID,
		PartnerID:     p.Type.PartnerID,
		DiscountType:  discountType,
		DiscountValue: discountValue,
		AttemptID:     attempt.ID,
		OccurredAt:    redeemAt,
	})
	log.WithFields(log.Fields{
		"promotion_id": id,
		"user_id":      userID,
		"attempt_id":   attempt.ID,
		"phone":        util.MaskPhone(phoneNumber),
	}).Info("promotion redeemed")

	return &Redemption{PromotionID: id, AttemptID: attempt.ID, RedeemAt: redeemAt}, nil
}

// checkRedeemable applies the state checks against one read of the promotion.
func checkRedeemable(p *models.Promotion, userID uint64, now time.Time) error {
	if p.Redeemed {
		return ErrAlreadyRedeemed
	}
	if p.UserID == nil || *p.UserID != userID {
		return ErrOwnershipMismatch
	}
	if p.Type == nil {
		return fmt.Errorf("promotion %s has no type: %w", p.ID, ErrNotFound)
	}
	if p.Type.Expired(now) {
		return ErrExpired
	}
	return nil
}

// publish sends event, waiting at most publishTimeout or whatever is left of
// the caller's deadline. Failures are logged only.
func (s *Service) publish(ctx context.Context, event events.Event) {
	timeout := s.publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	fields := log.Fields{
		"event":        event.Type,
		"promotion_id": event.PromotionID,
	}
	if timeout <= 0 {
		log.WithFields(fields).Warn("publish promotion event skipped: deadline exceeded")
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if errPublish := s.publisher.Publish(publishCtx, event); errPublish != nil {
		log.WithError(errPublish).WithFields(fields).Warn("publish promotion event failed")
	}
}

func redemptionResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, ErrOwnershipMismatch):
		return "ownership_mismatch"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUpstreamFailure):
		return "upstream_failure"
	default:
		return "error"
	}
}
