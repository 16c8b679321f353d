package models

import (
	"time"

	"gorm.io/datatypes"
)

// Lifecycle states of a redemption attempt.
const (
	// RedemptionPending is recorded before the partner is called.
	RedemptionPending = "pending"
	// RedemptionUpstreamFailed means the partner rejected or could not be reached.
	RedemptionUpstreamFailed = "upstream_failed"
	// RedemptionUpstreamSucceeded means the partner accepted but the commit has not landed yet.
	RedemptionUpstreamSucceeded = "upstream_succeeded"
	// RedemptionCommitted means the promotion row was marked redeemed.
	RedemptionCommitted = "committed"
	// RedemptionConflict means the conditional commit matched no row.
	RedemptionConflict = "conflict"
	// RedemptionAbandoned means a pending attempt never finished.
	RedemptionAbandoned = "abandoned"
)

// RedemptionAttempt records one call to the partner API for a promotion.
type RedemptionAttempt struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID, also sent as the partner idempotency key.

	PromotionID string     `gorm:"type:varchar(36);not null;index"`                                      // Target promotion.
	Promotion   *Promotion `gorm:"foreignKey:PromotionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"` // Target promotion record.
	UserID      uint64     `gorm:"not null;index"`                                                       // Redeeming user.
	PhoneNumber string     `gorm:"type:varchar(32);not null"`                                            // Phone number forwarded to the partner.

	Status string `gorm:"type:varchar(32);not null;index"` // Current state.
	Error  string `gorm:"type:text"`                       // Last failure message.

	PartnerResponse datatypes.JSON // Raw partner response body, if JSON.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}
