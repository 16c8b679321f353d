// Package events publishes promotion lifecycle events.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeRedeemed = "promotion.redeemed"
	TypeAssigned = "promotion.assigned"
)

// Event is the JSON payload published after a state change.
type Event struct {
	Type          string    `json:"type"`
	PromotionID   string    `json:"promotionId"`
	TypeID        uint64    `json:"typeId"`
	UserID        uint64    `json:"userId"`
	PartnerID     uint64    `json:"partnerId,omitempty"`
	DiscountType  string    `json:"discountType,omitempty"`
	DiscountValue float64   `json:"discountValue,omitempty"`
	AttemptID     string    `json:"attemptId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
