package promotion

import (
	"context"
	"errors"
	"testing"

	"github.com/hungtruong03/SAPromotion/internal/models"
)

func TestBulkCreateInsertsPooledRows(t *testing.T) {
	env := newTestEnv(t)
	env.createType(t, func(pt *models.PromotionType) {
		pt.ID = 7
		pt.DiscountType = models.DiscountTypePercent
		pt.DiscountValue = 5
	})
	flat := models.DiscountTypeFlat
	value := 10.0

	inserted, errBulk := env.svc.BulkCreate(context.Background(), BulkInput{
		TypeID:        7,
		Count:         3,
		DiscountType:  &flat,
		DiscountValue: &value,
	})
	if errBulk != nil {
		t.Fatalf("bulk create: %v", errBulk)
	}
	if inserted != 3 {
		t.Fatalf("expected 3 inserted, got %d", inserted)
	}

	typeID := uint64(7)
	rows, errList := env.store.ListPromotions(context.Background(), Filter{TypeID: &typeID}, Page{Take: 100})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	ids := map[string]struct{}{}
	for _, row := range rows {
		ids[row.ID] = struct{}{}
		if row.UserID != nil || row.Redeemed {
			t.Fatalf("expected pooled unredeemed row, got %+v", row)
		}
		discountType, discountValue := row.EffectiveDiscount()
		if discountType != models.DiscountTypeFlat || discountValue != 10 {
			t.Fatalf("expected FLAT/10, got %s/%v", discountType, discountValue)
		}
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 distinct ids, got %d", len(ids))
	}
}

func TestBulkCreateBatchKeySkipsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	ctx := context.Background()

	first, errFirst := env.svc.BulkCreate(ctx, BulkInput{TypeID: pt.ID, Count: 4, BatchKey: "campaign-1"})
	if errFirst != nil {
		t.Fatalf("first bulk: %v", errFirst)
	}
	second, errSecond := env.svc.BulkCreate(ctx, BulkInput{TypeID: pt.ID, Count: 6, BatchKey: "campaign-1"})
	if errSecond != nil {
		t.Fatalf("second bulk: %v", errSecond)
	}
	if first != 4 || second != 2 {
		t.Fatalf("expected 4 then 2 inserted, got %d then %d", first, second)
	}

	rows, errList := env.store.ListPromotions(ctx, Filter{TypeID: &pt.ID}, Page{Take: 100})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows in total, got %d", len(rows))
	}
}

func TestBulkCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	ctx := context.Background()
	negative := -1.0

	cases := []BulkInput{
		{TypeID: pt.ID, Count: 0},
		{TypeID: pt.ID, Count: MaxBulkCount + 1},
		{TypeID: 0, Count: 1},
		{TypeID: pt.ID, Count: 1, DiscountValue: &negative},
	}
	for _, in := range cases {
		if _, errBulk := env.svc.BulkCreate(ctx, in); !errors.Is(errBulk, ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", in, errBulk)
		}
	}
	if _, errBulk := env.svc.BulkCreate(ctx, BulkInput{TypeID: 404, Count: 1}); !errors.Is(errBulk, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown type, got %v", errBulk)
	}
}
