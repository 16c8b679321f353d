package promotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hungtruong03/SAPromotion/internal/models"
)

func TestCreateTypeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []TypeInput{
		{Name: "", PartnerID: 1, DiscountType: "FLAT", DiscountValue: 1},
		{Name: "x", PartnerID: 0, DiscountType: "FLAT", DiscountValue: 1},
		{Name: "x", PartnerID: 1, DiscountType: "BOGO", DiscountValue: 1},
		{Name: "x", PartnerID: 1, DiscountType: "PERCENT", DiscountValue: 120},
		{Name: "x", PartnerID: 1, DiscountType: "FLAT", DiscountValue: -5},
	}
	for _, in := range cases {
		if _, errCreate := env.svc.CreateType(ctx, in); !errors.Is(errCreate, ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", in, errCreate)
		}
	}

	created, errCreate := env.svc.CreateType(ctx, TypeInput{Name: " Summer ", PartnerID: 2, DiscountType: "percent", DiscountValue: 15})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if created.Name != "Summer" || created.DiscountType != models.DiscountTypePercent {
		t.Fatalf("expected normalized type, got %+v", created)
	}
}

func TestUpdateTypeMergesAndValidates(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, func(pt *models.PromotionType) {
		pt.DiscountType = models.DiscountTypeFlat
		pt.DiscountValue = 500
	})
	ctx := context.Background()

	percent := "PERCENT"
	if _, errUpdate := env.svc.UpdateType(ctx, pt.ID, TypeUpdate{DiscountType: &percent}); !errors.Is(errUpdate, ErrValidation) {
		t.Fatalf("expected ErrValidation switching to PERCENT with value 500, got %v", errUpdate)
	}

	value := 20.0
	name := "Renamed"
	updated, errUpdate := env.svc.UpdateType(ctx, pt.ID, TypeUpdate{DiscountType: &percent, DiscountValue: &value, Name: &name})
	if errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	if updated.Name != "Renamed" || updated.DiscountType != models.DiscountTypePercent || updated.DiscountValue != 20 {
		t.Fatalf("unexpected updated type %+v", updated)
	}

	if _, errUpdate = env.svc.UpdateType(ctx, 999, TypeUpdate{Name: &name}); !errors.Is(errUpdate, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errUpdate)
	}
	if _, errUpdate = env.svc.UpdateType(ctx, pt.ID, TypeUpdate{}); !errors.Is(errUpdate, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty update, got %v", errUpdate)
	}
}

func TestUpdateTypeWithUnchangedValuesSucceeds(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	ctx := context.Background()

	name := pt.Name
	value := pt.DiscountValue
	updated, errUpdate := env.svc.UpdateType(ctx, pt.ID, TypeUpdate{Name: &name, DiscountValue: &value})
	if errUpdate != nil {
		t.Fatalf("update with unchanged values: %v", errUpdate)
	}
	if updated.ID != pt.ID || updated.Name != pt.Name || updated.DiscountValue != pt.DiscountValue {
		t.Fatalf("unexpected type after no-op update %+v", updated)
	}
}

func TestDeleteTypeInUseConflicts(t *testing.T) {
	env := newTestEnv(t)
	used := env.createType(t, nil)
	unused := env.createType(t, nil)
	env.createPromotion(t, used.ID, nil)
	ctx := context.Background()

	if errDelete := env.svc.DeleteType(ctx, used.ID); !errors.Is(errDelete, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", errDelete)
	}
	if errDelete := env.svc.DeleteType(ctx, unused.ID); errDelete != nil {
		t.Fatalf("delete unused: %v", errDelete)
	}
	if errDelete := env.svc.DeleteType(ctx, unused.ID); !errors.Is(errDelete, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", errDelete)
	}
}

func TestCreatePromotionRequiresExistingType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, errCreate := env.svc.CreatePromotion(ctx, PromotionInput{TypeID: 77}); !errors.Is(errCreate, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errCreate)
	}
	pt := env.createType(t, nil)
	p, errCreate := env.svc.CreatePromotion(ctx, PromotionInput{TypeID: pt.ID, UserID: uid(4)})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if p.ID == "" || p.UserID == nil || *p.UserID != 4 || p.Redeemed {
		t.Fatalf("unexpected promotion %+v", p)
	}
}

func TestUpdatePromotionOwnershipRules(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	p := env.createPromotion(t, pt.ID, nil)
	ctx := context.Background()
	yes := true

	if _, errUpdate := env.svc.UpdatePromotion(ctx, p.ID, PromotionUpdate{Redeemed: &yes}); !errors.Is(errUpdate, ErrValidation) {
		t.Fatalf("expected ErrValidation redeeming unowned promotion, got %v", errUpdate)
	}

	updated, errUpdate := env.svc.UpdatePromotion(ctx, p.ID, PromotionUpdate{UserID: uid(8)})
	if errUpdate != nil {
		t.Fatalf("claim: %v", errUpdate)
	}
	if updated.UserID == nil || *updated.UserID != 8 {
		t.Fatalf("expected owner 8, got %v", updated.UserID)
	}
	if _, errUpdate = env.svc.UpdatePromotion(ctx, p.ID, PromotionUpdate{UserID: uid(8)}); errUpdate != nil {
		t.Fatalf("same owner update should be a no-op, got %v", errUpdate)
	}
	if _, errUpdate = env.svc.UpdatePromotion(ctx, p.ID, PromotionUpdate{UserID: uid(9)}); !errors.Is(errUpdate, ErrConflict) {
		t.Fatalf("expected ErrConflict reassigning owner, got %v", errUpdate)
	}

	updated, errUpdate = env.svc.UpdatePromotion(ctx, p.ID, PromotionUpdate{Redeemed: &yes})
	if errUpdate != nil {
		t.Fatalf("mark redeemed: %v", errUpdate)
	}
	if !updated.Redeemed || updated.RedeemAt == nil {
		t.Fatalf("expected redeemed with timestamp, got %+v", updated)
	}
	value := 3.0
	if _, errUpdate = env.svc.UpdatePromotion(ctx, p.ID, PromotionUpdate{DiscountValue: &value}); !errors.Is(errUpdate, ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed changing a redeemed discount, got %v", errUpdate)
	}
}

func TestUpdatePromotionRejectedOwnerChangeWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	p := env.createPromotion(t, pt.ID, uid(5))
	ctx := context.Background()

	value := 1234.0
	_, errUpdate := env.svc.UpdatePromotion(ctx, p.ID, PromotionUpdate{DiscountValue: &value, UserID: uid(6)})
	if !errors.Is(errUpdate, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", errUpdate)
	}
	got := env.reload(t, p.ID)
	if got.DiscountValue != nil {
		t.Fatalf("expected no discount override, got %v", *got.DiscountValue)
	}
	if got.UserID == nil || *got.UserID != 5 {
		t.Fatalf("expected owner 5, got %v", got.UserID)
	}
}

func TestStoreTransactionRollsBackOnError(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	p := env.createPromotion(t, pt.ID, nil)
	ctx := context.Background()

	value := 77.0
	errTx := env.store.Transaction(ctx, func(tx *Store) error {
		if ok, errUpdate := tx.UpdateOverride(ctx, p.ID, map[string]any{"discount_value": value}); errUpdate != nil || !ok {
			t.Fatalf("override: ok=%v err=%v", ok, errUpdate)
		}
		return ErrConflict
	})
	if !errors.Is(errTx, ErrConflict) {
		t.Fatalf("expected ErrConflict from transaction, got %v", errTx)
	}
	if got := env.reload(t, p.ID); got.DiscountValue != nil {
		t.Fatalf("expected override rolled back, got %v", *got.DiscountValue)
	}
}

func TestListPromotionsPaginatesAndFilters(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	other := env.createType(t, nil)
	for i := 0; i < 12; i++ {
		env.createPromotion(t, pt.ID, nil)
	}
	env.createPromotion(t, other.ID, uid(5))
	ctx := context.Background()

	firstPage, errList := env.svc.ListPromotions(ctx, Filter{TypeID: &pt.ID}, Page{})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(firstPage) != 10 {
		t.Fatalf("expected default page of 10, got %d", len(firstPage))
	}
	secondPage, errList := env.svc.ListPromotions(ctx, Filter{TypeID: &pt.ID}, Page{Skip: 10, Take: 10})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(secondPage) != 2 {
		t.Fatalf("expected 2 rows on second page, got %d", len(secondPage))
	}
	if firstPage[0].Type == nil || firstPage[0].Type.ID != pt.ID {
		t.Fatal("expected type joined on listed promotions")
	}

	mine, errList := env.svc.ListByUser(ctx, 5, Page{})
	if errList != nil {
		t.Fatalf("list by user: %v", errList)
	}
	if len(mine) != 1 || mine[0].TypeID != other.ID {
		t.Fatalf("expected one promotion for user 5, got %+v", mine)
	}

	types, errTypes := env.svc.ListTypesByPartner(ctx, 3, Page{Take: 500})
	if errTypes != nil {
		t.Fatalf("list types: %v", errTypes)
	}
	if len(types) != 2 {
		t.Fatalf("expected 2 types for partner 3, got %d", len(types))
	}
}

func TestCheckStatusAndCountRedeemed(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	p := env.createPromotion(t, pt.ID, uid(1))
	env.createPromotion(t, pt.ID, uid(2))
	ctx := context.Background()

	status, errStatus := env.svc.CheckStatus(ctx, p.ID)
	if errStatus != nil || status.Redeemed {
		t.Fatalf("expected unredeemed status, got %+v err=%v", status, errStatus)
	}
	if _, errRedeem := env.svc.RedeemByID(ctx, p.ID, "0900", 1); errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}
	status, errStatus = env.svc.CheckStatus(ctx, p.ID)
	if errStatus != nil || !status.Redeemed {
		t.Fatalf("expected redeemed status, got %+v err=%v", status, errStatus)
	}

	from := env.clock.Now().Add(-time.Hour)
	to := env.clock.Now().Add(time.Hour)
	count, errCount := env.svc.CountRedeemed(ctx, &from, &to)
	if errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 redeemed, got %d", count)
	}
	if count, _ = env.svc.CountRedeemed(ctx, &to, nil); count != 0 {
		t.Fatalf("expected 0 redeemed after window, got %d", count)
	}
	if _, errCount = env.svc.CountRedeemed(ctx, &to, &from); !errors.Is(errCount, ErrValidation) {
		t.Fatalf("expected ErrValidation for inverted range, got %v", errCount)
	}
	if _, errStatus = env.svc.CheckStatus(ctx, "missing"); !errors.Is(errStatus, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errStatus)
	}
}

func TestDeletePromotionRemovesAttempts(t *testing.T) {
	env := newTestEnv(t)
	pt := env.createType(t, nil)
	p := env.createPromotion(t, pt.ID, uid(1))
	ctx := context.Background()
	result, errRedeem := env.svc.RedeemByID(ctx, p.ID, "0900", 1)
	if errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}

	if errDelete := env.svc.DeletePromotion(ctx, p.ID); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	if _, errGet := env.store.GetAttempt(ctx, result.AttemptID); !errors.Is(errGet, ErrNotFound) {
		t.Fatalf("expected attempt removed, got %v", errGet)
	}
	if errDelete := env.svc.DeletePromotion(ctx, p.ID); !errors.Is(errDelete, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errDelete)
	}
}
