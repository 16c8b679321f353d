package promotion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hungtruong03/SAPromotion/internal/models"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultTake = 10
	maxTake     = 100
)

// Page selects a window of a list; Take defaults to 10 and is capped at 100.
type Page struct {
	Skip int
	Take int
}

func (p Page) normalized() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Take <= 0 {
		p.Take = defaultTake
	}
	if p.Take > maxTake {
		p.Take = maxTake
	}
	return p
}

// Filter narrows promotion listings.
type Filter struct {
	TypeID   *uint64
	UserID   *uint64
	Redeemed *bool
}

// Store persists promotions, promotion types and redemption attempts.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn against a Store bound to one database transaction.
// An error from fn rolls every write back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// CreateType inserts a promotion type.
func (s *Store) CreateType(ctx context.Context, t *models.PromotionType) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return errors.Wrap(err, "create promotion type")
	}
	return nil
}

// GetType loads a promotion type by id.
func (s *Store) GetType(ctx context.Context, id uint64) (*models.PromotionType, error) {
	var t models.PromotionType
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFoundOr(err, "get promotion type")
	}
	return &t, nil
}

// ListTypes returns promotion types ordered by id, optionally for one partner.
func (s *Store) ListTypes(ctx context.Context, partnerID *uint64, page Page) ([]models.PromotionType, error) {
	page = page.normalized()
	q := s.db.WithContext(ctx).Model(&models.PromotionType{})
	if partnerID != nil {
		q = q.Where("partner_id = ?", *partnerID)
	}
	var rows []models.PromotionType
	if err := q.Order("id ASC").Offset(page.Skip).Limit(page.Take).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list promotion types")
	}
	return rows, nil
}

// UpdateType applies column updates to a promotion type.
func (s *Store) UpdateType(ctx context.Context, id uint64, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.PromotionType{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update promotion type")
	}
	return nil
}

// DeleteType removes a promotion type that no promotion references.
func (s *Store) DeleteType(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.Promotion{}).Where("type_id = ?", id).Count(&refs).Error; err != nil {
			return errors.Wrap(err, "count promotions for type")
		}
		if refs > 0 {
			return errors.Wrapf(ErrConflict, "promotion type %d is referenced by %d promotions", id, refs)
		}
		res := tx.Delete(&models.PromotionType{}, id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete promotion type")
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreatePromotion inserts a promotion, assigning an id when empty.
func (s *Store) CreatePromotion(ctx context.Context, p *models.Promotion) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return errors.Wrap(err, "create promotion")
	}
	return nil
}

// InsertPromotions inserts rows in one statement, skipping rows that hit a
// unique constraint. It returns the number of rows actually inserted.
func (s *Store) InsertPromotions(ctx context.Context, rows []models.Promotion) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "insert promotions")
	}
	return res.RowsAffected, nil
}

// GetPromotion loads a promotion together with its type in a single read.
func (s *Store) GetPromotion(ctx context.Context, id string) (*models.Promotion, error) {
	var p models.Promotion
	if err := s.db.WithContext(ctx).Joins("Type").Where("promotions.id = ?", id).First(&p).Error; err != nil {
		return nil, notFoundOr(err, "get promotion")
	}
	return &p, nil
}

// PromotionExists reports whether a promotion with id exists.
func (s *Store) PromotionExists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Promotion{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "check promotion")
	}
	return count > 0, nil
}

// ListPromotions returns promotions matching filter with their types.
func (s *Store) ListPromotions(ctx context.Context, filter Filter, page Page) ([]models.Promotion, error) {
	page = page.normalized()
	q := s.db.WithContext(ctx).Joins("Type")
	if filter.TypeID != nil {
		q = q.Where("promotions.type_id = ?", *filter.TypeID)
	}
	if filter.UserID != nil {
		q = q.Where("promotions.user_id = ?", *filter.UserID)
	}
	if filter.Redeemed != nil {
		q = q.Where("promotions.redeemed = ?", *filter.Redeemed)
	}
	var rows []models.Promotion
	if err := q.Order("promotions.created_at DESC").Order("promotions.id ASC").Offset(page.Skip).Limit(page.Take).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	return rows, nil
}

// ClaimOwner sets user_id on a pooled promotion. It reports false when the
// promotion already had an owner or was redeemed.
func (s *Store) ClaimOwner(ctx context.Context, id string, userID uint64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Promotion{}).
		Where("id = ? AND user_id IS NULL AND redeemed = ?", id, false).
		Update("user_id", userID)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "claim promotion")
	}
	return res.RowsAffected == 1, nil
}

// UpdateOverride changes the discount override of an unredeemed promotion.
func (s *Store) UpdateOverride(ctx context.Context, id string, updates map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Promotion{}).
		Where("id = ? AND redeemed = ?", id, false).
		Updates(updates)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "update promotion")
	}
	return res.RowsAffected == 1, nil
}

// markRedeemed flips redeemed for the owner's unredeemed promotion.
func markRedeemed(tx *gorm.DB, id string, userID uint64, at time.Time) (bool, error) {
	res := tx.Model(&models.Promotion{}).
		Where("id = ? AND redeemed = ? AND user_id = ?", id, false, userID).
		Updates(map[string]any{"redeemed": true, "redeem_at": at.UTC()})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "mark promotion redeemed")
	}
	return res.RowsAffected == 1, nil
}

// MarkRedeemed flips redeemed without an attempt record.
func (s *Store) MarkRedeemed(ctx context.Context, id string, userID uint64, at time.Time) (bool, error) {
	return markRedeemed(s.db.WithContext(ctx), id, userID, at)
}

// CommitRedemption marks the promotion redeemed and settles the attempt in
// one transaction. It reports false, with the attempt marked conflict, when
// the promotion was no longer redeemable by the attempt's user.
func (s *Store) CommitRedemption(ctx context.Context, attempt *models.RedemptionAttempt, at time.Time) (bool, error) {
	committed := false
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := markRedeemed(tx, attempt.PromotionID, attempt.UserID, at)
		if err != nil {
			return err
		}
		status, msg := models.RedemptionCommitted, ""
		if !ok {
			status, msg = models.RedemptionConflict, "promotion no longer redeemable at commit"
		}
		if err := tx.Model(&models.RedemptionAttempt{}).Where("id = ?", attempt.ID).
			Updates(map[string]any{"status": status, "error": msg}).Error; err != nil {
			return errors.Wrap(err, "settle redemption attempt")
		}
		committed = ok
		return nil
	})
	if errTx != nil {
		return false, errTx
	}
	return committed, nil
}

// DeletePromotion removes a promotion and its attempts.
func (s *Store) DeletePromotion(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("promotion_id = ?", id).Delete(&models.RedemptionAttempt{}).Error; err != nil {
			return errors.Wrap(err, "delete redemption attempts")
		}
		res := tx.Where("id = ?", id).Delete(&models.Promotion{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete promotion")
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// PooledCandidates returns ids of unowned, unredeemed promotions of a type.
func (s *Store) PooledCandidates(ctx context.Context, typeID uint64, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Promotion{}).
		Where("type_id = ? AND user_id IS NULL AND redeemed = ?", typeID, false).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "find pooled promotions")
	}
	return ids, nil
}

// CountRedeemed counts promotions redeemed within [from, to). Nil bounds are open.
func (s *Store) CountRedeemed(ctx context.Context, from, to *time.Time) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Promotion{}).Where("redeemed = ?", true)
	if from != nil {
		q = q.Where("redeem_at >= ?", from.UTC())
	}
	if to != nil {
		q = q.Where("redeem_at < ?", to.UTC())
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "count redeemed promotions")
	}
	return count, nil
}

// CreateAttempt records a pending redemption attempt.
func (s *Store) CreateAttempt(ctx context.Context, a *models.RedemptionAttempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = models.RedemptionPending
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return errors.Wrap(err, "create redemption attempt")
	}
	return nil
}

// SetAttemptStatus moves an attempt to status, recording an error message
// and the partner response when given.
func (s *Store) SetAttemptStatus(ctx context.Context, id string, status string, msg string, response []byte) error {
	updates := map[string]any{"status": status, "error": msg}
	if len(response) > 0 {
		updates["partner_response"] = datatypes.JSON(response)
	}
	if err := s.db.WithContext(ctx).Model(&models.RedemptionAttempt{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return errors.Wrap(err, "update redemption attempt")
	}
	return nil
}

// GetAttempt loads a redemption attempt by id.
func (s *Store) GetAttempt(ctx context.Context, id string) (*models.RedemptionAttempt, error) {
	var a models.RedemptionAttempt
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "get redemption attempt")
	}
	return &a, nil
}

// AttemptsInStatus returns attempts in status last updated before cutoff, oldest first.
func (s *Store) AttemptsInStatus(ctx context.Context, status string, cutoff time.Time, limit int) ([]models.RedemptionAttempt, error) {
	var rows []models.RedemptionAttempt
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, cutoff.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "find redemption attempts")
	}
	return rows, nil
}

// AbandonAttempt moves a pending attempt to abandoned. It reports false when
// the attempt left pending in the meantime.
func (s *Store) AbandonAttempt(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.RedemptionAttempt{}).
		Where("id = ? AND status = ?", id, models.RedemptionPending).
		Updates(map[string]any{"status": models.RedemptionAbandoned, "error": "no partner outcome recorded"})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "abandon redemption attempt")
	}
	return res.RowsAffected == 1, nil
}

// DeleteFinishedAttempts removes up to limit settled attempts created before cutoff.
func (s *Store) DeleteFinishedAttempts(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.RedemptionAttempt{}).
		Where("created_at < ? AND status IN ?", cutoff.UTC(), []string{
			models.RedemptionCommitted,
			models.RedemptionConflict,
			models.RedemptionUpstreamFailed,
			models.RedemptionAbandoned,
		}).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, errors.Wrap(err, "find finished attempts")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.RedemptionAttempt{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "delete finished attempts")
	}
	return res.RowsAffected, nil
}
