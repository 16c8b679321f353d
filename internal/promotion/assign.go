package promotion

import (
	"context"
	"errors"

	"github.com/hungtruong03/SAPromotion/internal/events"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
)

// assignBatch is how many pooled candidates are fetched per round.
const assignBatch = 8

// Assign gives userID one pooled promotion of typeID and returns its id.
// Each candidate is claimed with a conditional update, so concurrent callers
// never receive the same promotion.
func (s *Service) Assign(ctx context.Context, userID, typeID uint64) (promotionID string, err error) {
	ctx, span := s.tracer.Start(ctx, "promotion.assign")
	span.SetAttributes(attribute.Int64("user.id", int64(userID)), attribute.Int64("promotion.type_id", int64(typeID)))
	defer func() {
		s.metrics.ObserveAssignment(assignmentResult(err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	if userID == 0 {
		return "", invalid("userId is required")
	}
	if typeID == 0 {
		return "", invalid("typeId is required")
	}
	t, err := s.store.GetType(ctx, typeID)
	if err != nil {
		return "", err
	}
	if t.Expired(s.now()) {
		return "", ErrExpired
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidates, err := s.store.PooledCandidates(ctx, typeID, assignBatch)
		if err != nil {
			return "", err
		}
		if len(candidates) == 0 {
			return "", ErrExhausted
		}
		for _, id := range candidates {
			claimed, errClaim := s.store.ClaimOwner(ctx, id, userID)
			if errClaim != nil {
				return "", errClaim
			}
			if !claimed {
				continue
			}
			s.publish(ctx, events.Event{
				Type:        events.TypeAssigned,
				PromotionID: id,
				TypeID:      typeID,
				UserID:      userID,
				PartnerID:   t.PartnerID,
				OccurredAt:  s.now().UTC(),
			})
			log.WithFields(log.Fields{
				"promotion_id": id,
				"type_id":      typeID,
				"user_id":      userID,
			}).Info("promotion assigned")
			return id, nil
		}
	}
}

func assignmentResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	default:
		return "error"
	}
}
