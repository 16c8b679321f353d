package promotion

import (
	"context"
	"strings"

	"github.com/hungtruong03/SAPromotion/internal/models"
	log "github.com/sirupsen/logrus"
)

// MaxBulkCount caps the number of promotions created by one BulkCreate call.
const MaxBulkCount = 1000

// BulkInput describes a batch of pooled promotions.
type BulkInput struct {
	TypeID        uint64
	Count         int
	DiscountType  *string
	DiscountValue *float64
	// BatchKey makes the call retryable: rows already inserted under the
	// same key and position are skipped.
	BatchKey string
}

// BulkCreate inserts Count pooled promotions of one type in a single
// statement and returns how many rows were actually inserted.
func (s *Service) BulkCreate(ctx context.Context, in BulkInput) (int64, error) {
	if in.TypeID == 0 {
		return 0, invalid("typeId is required")
	}
	if in.Count < 1 || in.Count > MaxBulkCount {
		return 0, invalid("amount must be between 1 and 1000")
	}
	batchKey := strings.TrimSpace(in.BatchKey)
	if len(batchKey) > 64 {
		return 0, invalid("batchKey must be at most 64 characters")
	}

	t, err := s.store.GetType(ctx, in.TypeID)
	if err != nil {
		return 0, err
	}
	discountType, discountValue, err := normalizeOverride(in.DiscountType, in.DiscountValue, t)
	if err != nil {
		return 0, err
	}

	rows := make([]models.Promotion, in.Count)
	for i := range rows {
		rows[i] = models.Promotion{
			TypeID:        in.TypeID,
			DiscountType:  discountType,
			DiscountValue: discountValue,
		}
		if batchKey != "" {
			seq := i
			rows[i].BatchKey = &batchKey
			rows[i].BatchSeq = &seq
		}
	}

	inserted, err := s.store.InsertPromotions(ctx, rows)
	if err != nil {
		return 0, err
	}
	entry := log.WithFields(log.Fields{
		"type_id":   in.TypeID,
		"requested": in.Count,
		"inserted":  inserted,
	})
	if batchKey != "" {
		entry = entry.WithField("batch_key", batchKey)
	}
	entry.Info("bulk promotions created")
	return inserted, nil
}
