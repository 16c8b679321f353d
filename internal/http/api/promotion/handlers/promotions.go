package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hungtruong03/SAPromotion/internal/models"
	"github.com/hungtruong03/SAPromotion/internal/promotion"
)

// PromotionHandler serves promotion CRUD, bulk issuance and assignment.
type PromotionHandler struct {
	svc *promotion.Service
}

// NewPromotionHandler constructs a PromotionHandler.
func NewPromotionHandler(svc *promotion.Service) *PromotionHandler {
	return &PromotionHandler{svc: svc}
}

// createPromotionRequest captures the payload for creating a single promotion.
type createPromotionRequest struct {
	TypeID        uint64   `json:"typeId"`        // Promotion type ID.
	UserID        *uint64  `json:"userId"`        // Optional owner; nil leaves it pooled.
	DiscountType  *string  `json:"discountType"`  // Optional discount type override.
	DiscountValue *float64 `json:"discountValue"` // Optional discount value override.
}

// Create stores a single promotion.
func (h *PromotionHandler) Create(c *gin.Context) {
	var body createPromotionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid body")
		return
	}
	p, errCreate := h.svc.CreatePromotion(c.Request.Context(), promotion.PromotionInput{
		TypeID:        body.TypeID,
		UserID:        body.UserID,
		DiscountType:  body.DiscountType,
		DiscountValue: body.DiscountValue,
	})
	if errCreate != nil {
		writeError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, formatPromotion(p))
}

// bulkCreateRequest captures the payload for issuing pooled promotions in bulk.
type bulkCreateRequest struct {
	TypeID        uint64        `json:"typeId"`        // Promotion type ID.
	Amount        int           `json:"amount"`        // Number of promotions to issue.
	PromotionData promotionData `json:"promotionData"` // Override applied to every row.
	BatchKey      string        `json:"batchKey"`      // Optional key that makes retries idempotent.
}

// promotionData carries the discount override shared by a bulk batch.
type promotionData struct {
	DiscountType  *string  `json:"discountType"`  // Optional discount type override.
	DiscountValue *float64 `json:"discountValue"` // Optional discount value override.
}

// BulkCreate issues many pooled promotions of one type.
func (h *PromotionHandler) BulkCreate(c *gin.Context) {
	var body bulkCreateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid body")
		return
	}
	inserted, errCreate := h.svc.BulkCreate(c.Request.Context(), promotion.BulkInput{
		TypeID:        body.TypeID,
		Count:         body.Amount,
		DiscountType:  body.PromotionData.DiscountType,
		DiscountValue: body.PromotionData.DiscountValue,
		BatchKey:      body.BatchKey,
	})
	if errCreate != nil {
		writeError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"count": inserted})
}

// List returns promotions filtered by typeId and redeemed.
func (h *PromotionHandler) List(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	var filter promotion.Filter
	if raw := strings.TrimSpace(c.Query("typeId")); raw != "" {
		typeID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			badRequest(c, "invalid typeId")
			return
		}
		filter.TypeID = &typeID
	}
	if raw := strings.TrimSpace(c.Query("redeemed")); raw != "" {
		redeemed, errParse := strconv.ParseBool(raw)
		if errParse != nil {
			badRequest(c, "invalid redeemed")
			return
		}
		filter.Redeemed = &redeemed
	}
	rows, errList := h.svc.ListPromotions(c.Request.Context(), filter, page)
	if errList != nil {
		writeError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promotions": formatPromotions(rows)})
}

// ListByUser returns the promotions owned by one user.
func (h *PromotionHandler) ListByUser(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	page, ok := parsePage(c)
	if !ok {
		return
	}
	rows, errList := h.svc.ListByUser(c.Request.Context(), userID, page)
	if errList != nil {
		writeError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promotions": formatPromotions(rows)})
}

// Get returns one promotion with its type.
func (h *PromotionHandler) Get(c *gin.Context) {
	id, ok := parseStringParam(c, "id")
	if !ok {
		return
	}
	p, errFind := h.svc.GetPromotion(c.Request.Context(), id)
	if errFind != nil {
		writeError(c, errFind)
		return
	}
	c.JSON(http.StatusOK, formatPromotion(p))
}

// updatePromotionRequest captures a partial promotion update; nil fields are left unchanged.
type updatePromotionRequest struct {
	TypeID        *uint64  `json:"typeId"`        // Rejected when set; the type is fixed.
	UserID        *uint64  `json:"userId"`        // Owner to claim a pooled promotion for.
	Redeemed      *bool    `json:"redeemed"`      // Only true is accepted.
	DiscountType  *string  `json:"discountType"`  // New discount type override.
	DiscountValue *float64 `json:"discountValue"` // New discount value override.
}

// Update applies a partial update to a promotion.
func (h *PromotionHandler) Update(c *gin.Context) {
	id, ok := parseStringParam(c, "id")
	if !ok {
		return
	}
	var body updatePromotionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid body")
		return
	}
	if body.TypeID != nil {
		badRequest(c, "typeId cannot be changed")
		return
	}
	p, errUpdate := h.svc.UpdatePromotion(c.Request.Context(), id, promotion.PromotionUpdate{
		UserID:        body.UserID,
		Redeemed:      body.Redeemed,
		DiscountType:  body.DiscountType,
		DiscountValue: body.DiscountValue,
	})
	if errUpdate != nil {
		writeError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, formatPromotion(p))
}

// Delete removes a promotion and its redemption attempts.
func (h *PromotionHandler) Delete(c *gin.Context) {
	id, ok := parseStringParam(c, "id")
	if !ok {
		return
	}
	if errDelete := h.svc.DeletePromotion(c.Request.Context(), id); errDelete != nil {
		writeError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// assignRequest captures the payload for assigning a pooled promotion.
type assignRequest struct {
	UserID uint64 `json:"userId"` // Receiving user.
	TypeID uint64 `json:"typeId"` // Promotion type to draw from.
}

// Assign hands one pooled promotion of a type to a user.
func (h *PromotionHandler) Assign(c *gin.Context) {
	var body assignRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid body")
		return
	}
	id, errAssign := h.svc.Assign(c.Request.Context(), body.UserID, body.TypeID)
	if errAssign != nil {
		writeError(c, errAssign)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promotionId": id})
}

// RedeemedCount counts redemptions in a time window.
func (h *PromotionHandler) RedeemedCount(c *gin.Context) {
	from, ok := parseTimeQuery(c, "from", false)
	if !ok {
		return
	}
	to, ok := parseTimeQuery(c, "to", true)
	if !ok {
		return
	}
	count, errCount := h.svc.CountRedeemed(c.Request.Context(), from, to)
	if errCount != nil {
		writeError(c, errCount)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func formatPromotions(rows []models.Promotion) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatPromotion(&rows[i]))
	}
	return out
}

func formatPromotion(p *models.Promotion) gin.H {
	discountType, discountValue := p.EffectiveDiscount()
	out := gin.H{
		"id":            p.ID,
		"typeId":        p.TypeID,
		"userId":        p.UserID,
		"redeemed":      p.Redeemed,
		"redeemAt":      p.RedeemAt,
		"discountType":  discountType,
		"discountValue": discountValue,
		"createdAt":     p.CreatedAt,
		"updatedAt":     p.UpdatedAt,
	}
	if p.Type != nil {
		out["type"] = formatType(p.Type)
	}
	return out
}
