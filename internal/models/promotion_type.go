package models

import "time"

// Discount types supported by promotion types and per-promotion overrides.
const (
	// DiscountTypeFlat subtracts a fixed amount.
	DiscountTypeFlat = "FLAT"
	// DiscountTypePercent subtracts a percentage in [0, 100].
	DiscountTypePercent = "PERCENT"
)

// PromotionType is a template shared by many promotions.
type PromotionType struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name      string `gorm:"type:varchar(255);not null"` // Display name.
	PartnerID uint64 `gorm:"not null;index"`             // Partner that honours the discount.

	DiscountType  string  `gorm:"type:varchar(16);not null"`    // FLAT or PERCENT.
	DiscountValue float64 `gorm:"type:decimal(20,4);not null"` // Amount or percentage.

	ExpiresAt *time.Time `gorm:"index"` // Optional expiry; redemption and assignment stop after it.

	Description      string `gorm:"type:text"`         // Long description.
	ShortDescription string `gorm:"type:varchar(512)"` // One-line summary.
	Image            string `gorm:"type:varchar(1024)"` // Image URL.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Expired reports whether the type has an expiry before now.
func (t *PromotionType) Expired(now time.Time) bool {
	return t != nil && t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// ValidDiscount reports whether the discount pair is acceptable.
func ValidDiscount(discountType string, value float64) bool {
	switch discountType {
	case DiscountTypeFlat:
		return value >= 0
	case DiscountTypePercent:
		return value >= 0 && value <= 100
	default:
		return false
	}
}
