// Package promotion implements promotion issuance, assignment and redemption.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hungtruong03/SAPromotion/internal/cache"
	"github.com/hungtruong03/SAPromotion/internal/codes"
	"github.com/hungtruong03/SAPromotion/internal/events"
	"github.com/hungtruong03/SAPromotion/internal/metrics"
	"github.com/hungtruong03/SAPromotion/internal/models"
	"github.com/hungtruong03/SAPromotion/internal/partner"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	KeyPrefix     string
	InflightTTL   time.Duration
	CommitTimeout time.Duration

	// PublishTimeout bounds how long a request waits on event publishing.
	PublishTimeout time.Duration
	Publisher      events.Publisher
	Metrics        *metrics.Metrics
	Now            func() time.Time
}

// Service is the promotion use-case layer shared by the HTTP handlers and
// the reconciler.
type Service struct {
	store     *Store
	cache     cache.Cache
	codes     *codes.Allocator
	partner   partner.Redeemer
	publisher events.Publisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	keyPrefix      string
	inflightTTL    time.Duration
	commitTimeout  time.Duration
	publishTimeout time.Duration
	now            func() time.Time
}

// NewService wires a Service.
func NewService(store *Store, c cache.Cache, allocator *codes.Allocator, p partner.Redeemer, opts Options) *Service {
	s := &Service{
		store:          store,
		cache:          c,
		codes:          allocator,
		partner:        p,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		tracer:         otel.Tracer("promotion/service"),
		keyPrefix:      opts.KeyPrefix,
		inflightTTL:    opts.InflightTTL,
		commitTimeout:  opts.CommitTimeout,
		publishTimeout: opts.PublishTimeout,
		now:            opts.Now,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.inflightTTL <= 0 {
		s.inflightTTL = time.Minute
	}
	if s.commitTimeout <= 0 {
		s.commitTimeout = 15 * time.Second
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = 2 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Store returns the backing store.
func (s *Service) Store() *Store { return s.store }

// TypeInput carries the fields of a new promotion type.
type TypeInput struct {
	Name             string
	PartnerID        uint64
	DiscountType     string
	DiscountValue    float64
	ExpiresAt        *time.Time
	Description      string
	ShortDescription string
	Image            string
}

// TypeUpdate carries a partial promotion type update; nil fields are left as is.
type TypeUpdate struct {
	Name             *string
	PartnerID        *uint64
	DiscountType     *string
	DiscountValue    *float64
	ExpiresAt        *time.Time
	ClearExpiresAt   bool
	Description      *string
	ShortDescription *string
	Image            *string
}

// CreateType validates and stores a promotion type.
func (s *Service) CreateType(ctx context.Context, in TypeInput) (*models.PromotionType, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DiscountType = strings.ToUpper(strings.TrimSpace(in.DiscountType))
	if in.Name == "" {
		return nil, invalid("name is required")
	}
	if in.PartnerID == 0 {
		return nil, invalid("partnerId is required")
	}
	if !models.ValidDiscount(in.DiscountType, in.DiscountValue) {
		return nil, invalid("discountType must be FLAT or PERCENT with a non-negative value (at most 100 for PERCENT)")
	}
	t := &models.PromotionType{
		Name:             in.Name,
		PartnerID:        in.PartnerID,
		DiscountType:     in.DiscountType,
		DiscountValue:    in.DiscountValue,
		ExpiresAt:        in.ExpiresAt,
		Description:      in.Description,
		ShortDescription: in.ShortDescription,
		Image:            in.Image,
	}
	if err := s.store.CreateType(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetType returns a promotion type.
func (s *Service) GetType(ctx context.Context, id uint64) (*models.PromotionType, error) {
	return s.store.GetType(ctx, id)
}

// ListTypes lists promotion types.
func (s *Service) ListTypes(ctx context.Context, page Page) ([]models.PromotionType, error) {
	return s.store.ListTypes(ctx, nil, page)
}

// ListTypesByPartner lists the promotion types of one partner.
func (s *Service) ListTypesByPartner(ctx context.Context, partnerID uint64, page Page) ([]models.PromotionType, error) {
	return s.store.ListTypes(ctx, &partnerID, page)
}

// UpdateType applies a partial update and returns the stored type.
func (s *Service) UpdateType(ctx context.Context, id uint64, in TypeUpdate) (*models.PromotionType, error) {
	current, err := s.store.GetType(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("name cannot be empty")
		}
		updates["name"] = name
	}
	if in.PartnerID != nil {
		if *in.PartnerID == 0 {
			return nil, invalid("partnerId cannot be zero")
		}
		updates["partner_id"] = *in.PartnerID
	}
	discountType, discountValue := current.DiscountType, current.DiscountValue
	if in.DiscountType != nil {
		discountType = strings.ToUpper(strings.TrimSpace(*in.DiscountType))
		updates["discount_type"] = discountType
	}
	if in.DiscountValue != nil {
		discountValue = *in.DiscountValue
		updates["discount_value"] = discountValue
	}
	if !models.ValidDiscount(discountType, discountValue) {
		return nil, invalid("discountType must be FLAT or PERCENT with a non-negative value (at most 100 for PERCENT)")
	}
	switch {
	case in.ClearExpiresAt:
		updates["expires_at"] = nil
	case in.ExpiresAt != nil:
		updates["expires_at"] = *in.ExpiresAt
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.ShortDescription != nil {
		updates["short_description"] = *in.ShortDescription
	}
	if in.Image != nil {
		updates["image"] = *in.Image
	}
	if len(updates) == 0 {
		return nil, invalid("no fields to update")
	}

	if err := s.store.UpdateType(ctx, id, updates); err != nil {
		return nil, err
	}
	return s.store.GetType(ctx, id)
}

// DeleteType removes an unreferenced promotion type.
func (s *Service) DeleteType(ctx context.Context, id uint64) error {
	return s.store.DeleteType(ctx, id)
}

// PromotionInput carries the fields of a new promotion.
type PromotionInput struct {
	TypeID        uint64
	UserID        *uint64
	DiscountType  *string
	DiscountValue *float64
}

// PromotionUpdate carries a partial promotion update. The type of a
// promotion cannot change and redeemed can only become true.
type PromotionUpdate struct {
	UserID        *uint64
	Redeemed      *bool
	DiscountType  *string
	DiscountValue *float64
}

func normalizeOverride(discountType *string, discountValue *float64, base *models.PromotionType) (*string, *float64, error) {
	if discountType == nil && discountValue == nil {
		return nil, nil, nil
	}
	effectiveType, effectiveValue := base.DiscountType, base.DiscountValue
	if discountType != nil {
		normalized := strings.ToUpper(strings.TrimSpace(*discountType))
		discountType = &normalized
		effectiveType = normalized
	}
	if discountValue != nil {
		effectiveValue = *discountValue
	}
	if !models.ValidDiscount(effectiveType, effectiveValue) {
		return nil, nil, invalid("discount override must be FLAT or PERCENT with a non-negative value (at most 100 for PERCENT)")
	}
	return discountType, discountValue, nil
}

// CreatePromotion stores a single promotion, pooled when UserID is nil.
func (s *Service) CreatePromotion(ctx context.Context, in PromotionInput) (*models.Promotion, error) {
	if in.TypeID == 0 {
		return nil, invalid("typeId is required")
	}
	if in.UserID != nil && *in.UserID == 0 {
		return nil, invalid("userId must be positive")
	}
	t, err := s.store.GetType(ctx, in.TypeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("promotion type %d: %w", in.TypeID, ErrNotFound)
		}
		return nil, err
	}
	discountType, discountValue, err := normalizeOverride(in.DiscountType, in.DiscountValue, t)
	if err != nil {
		return nil, err
	}
	p := &models.Promotion{
		TypeID:        in.TypeID,
		UserID:        in.UserID,
		DiscountType:  discountType,
		DiscountValue: discountValue,
	}
	if err := s.store.CreatePromotion(ctx, p); err != nil {
		return nil, err
	}
	p.Type = t
	return p, nil
}

// GetPromotion returns a promotion with its type.
func (s *Service) GetPromotion(ctx context.Context, id string) (*models.Promotion, error) {
	return s.store.GetPromotion(ctx, id)
}

// ListPromotions lists promotions matching filter.
func (s *Service) ListPromotions(ctx context.Context, filter Filter, page Page) ([]models.Promotion, error) {
	return s.store.ListPromotions(ctx, filter, page)
}

// ListByUser lists the promotions owned by userID.
func (s *Service) ListByUser(ctx context.Context, userID uint64, page Page) ([]models.Promotion, error) {
	return s.store.ListPromotions(ctx, Filter{UserID: &userID}, page)
}

// UpdatePromotion applies a partial update. Ownership moves from nil to a
// user at most once and redeemed never returns to false.
func (s *Service) UpdatePromotion(ctx context.Context, id string, in PromotionUpdate) (*models.Promotion, error) {
	if in.Redeemed != nil && !*in.Redeemed {
		return nil, invalid("redeemed cannot be set to false")
	}
	if in.UserID != nil && *in.UserID == 0 {
		return nil, invalid("userId must be positive")
	}
	if in.UserID == nil && in.Redeemed == nil && in.DiscountType == nil && in.DiscountValue == nil {
		return nil, invalid("no fields to update")
	}

	current, err := s.store.GetPromotion(ctx, id)
	if err != nil {
		return nil, err
	}

	// Every rule is checked before the first write.
	overrides := map[string]any{}
	if in.DiscountType != nil || in.DiscountValue != nil {
		if current.Redeemed {
			return nil, ErrAlreadyRedeemed
		}
		discountType, discountValue, errOverride := normalizeOverride(in.DiscountType, in.DiscountValue, current.Type)
		if errOverride != nil {
			return nil, errOverride
		}
		if discountType != nil {
			overrides["discount_type"] = *discountType
		}
		if discountValue != nil {
			overrides["discount_value"] = *discountValue
		}
	}
	owner := current.UserID
	claim := false
	if in.UserID != nil {
		switch {
		case current.UserID == nil:
			owner, claim = in.UserID, true
		case *current.UserID != *in.UserID:
			return nil, fmt.Errorf("promotion %s is owned by another user: %w", id, ErrConflict)
		}
	}
	setRedeemed := in.Redeemed != nil && !current.Redeemed
	if setRedeemed && owner == nil {
		return nil, invalid("a promotion must be assigned before it is marked redeemed")
	}

	errTx := s.store.Transaction(ctx, func(tx *Store) error {
		if len(overrides) > 0 {
			ok, errUpdate := tx.UpdateOverride(ctx, id, overrides)
			if errUpdate != nil {
				return errUpdate
			}
			if !ok {
				return ErrAlreadyRedeemed
			}
		}
		if claim {
			ok, errClaim := tx.ClaimOwner(ctx, id, *owner)
			if errClaim != nil {
				return errClaim
			}
			if !ok {
				return fmt.Errorf("promotion %s already claimed: %w", id, ErrConflict)
			}
		}
		if setRedeemed {
			ok, errMark := tx.MarkRedeemed(ctx, id, *owner, s.now().UTC())
			if errMark != nil {
				return errMark
			}
			if !ok {
				return fmt.Errorf("promotion %s changed while marking redeemed: %w", id, ErrConflict)
			}
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	return s.store.GetPromotion(ctx, id)
}

// DeletePromotion removes a promotion.
func (s *Service) DeletePromotion(ctx context.Context, id string) error {
	return s.store.DeletePromotion(ctx, id)
}

// Status is the redemption state reported by CheckStatus.
type Status struct {
	Redeemed bool
	RedeemAt *time.Time
}

// CheckStatus reports whether a promotion has been redeemed.
func (s *Service) CheckStatus(ctx context.Context, id string) (Status, error) {
	p, err := s.store.GetPromotion(ctx, id)
	if err != nil {
		return Status{}, err
	}
	return Status{Redeemed: p.Redeemed, RedeemAt: p.RedeemAt}, nil
}

// GenerateCode binds a fresh short code to an existing promotion and returns
// it together with its lifetime.
func (s *Service) GenerateCode(ctx context.Context, id string) (string, time.Duration, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.generate_code")
	defer span.End()

	code, err := s.codes.Allocate(ctx, id)
	if err != nil {
		if errors.Is(err, codes.ErrUnknownPromotion) {
			return "", 0, ErrNotFound
		}
		span.RecordError(err)
		return "", 0, err
	}
	return code, s.codes.TTL(), nil
}

// LookupCode returns the promotion id a live code points to.
func (s *Service) LookupCode(ctx context.Context, code string) (string, error) {
	id, err := s.codes.Resolve(ctx, code)
	if errors.Is(err, codes.ErrCodeNotFound) {
		return "", ErrInvalidOrExpiredCode
	}
	return id, err
}

// CountRedeemed counts redemptions within [from, to).
func (s *Service) CountRedeemed(ctx context.Context, from, to *time.Time) (int64, error) {
	if from != nil && to != nil && !from.Before(*to) {
		return 0, invalid("from must be before to")
	}
	return s.store.CountRedeemed(ctx, from, to)
}
