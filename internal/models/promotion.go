package models

import "time"

// Promotion is a single redeemable voucher instance.
type Promotion struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	TypeID uint64         `gorm:"not null;index"`                                                // Promotion type ID.
	Type   *PromotionType `gorm:"foreignKey:TypeID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"` // Promotion type.

	UserID *uint64 `gorm:"index"` // Owner; nil while the promotion is pooled.

	Redeemed bool       `gorm:"not null;default:false;index"` // Set once, never cleared.
	RedeemAt *time.Time // Redemption time, set together with Redeemed.

	DiscountType  *string  `gorm:"type:varchar(16)"`    // Per-promotion override of the type discount.
	DiscountValue *float64 `gorm:"type:decimal(20,4)"` // Per-promotion override value.

	BatchKey *string `gorm:"type:varchar(64);uniqueIndex:idx_promotions_batch"` // Bulk issuance key.
	BatchSeq *int    `gorm:"uniqueIndex:idx_promotions_batch"`                   // Position within the batch.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// EffectiveDiscount returns the override when present, otherwise the type's discount.
func (p *Promotion) EffectiveDiscount() (string, float64) {
	discountType, value := "", 0.0
	if p.Type != nil {
		discountType, value = p.Type.DiscountType, p.Type.DiscountValue
	}
	if p.DiscountType != nil && *p.DiscountType != "" {
		discountType = *p.DiscountType
	}
	if p.DiscountValue != nil {
		value = *p.DiscountValue
	}
	return discountType, value
}
