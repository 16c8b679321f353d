package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hungtruong03/SAPromotion/internal/models"
	"github.com/hungtruong03/SAPromotion/internal/promotion"
)

// TypeHandler serves promotion type CRUD.
type TypeHandler struct {
	svc *promotion.Service
}

// NewTypeHandler constructs a TypeHandler.
func NewTypeHandler(svc *promotion.Service) *TypeHandler {
	return &TypeHandler{svc: svc}
}

// createTypeRequest captures the payload for creating a promotion type.
type createTypeRequest struct {
	Name             string     `json:"name"`             // Display name.
	PartnerID        uint64     `json:"partnerId"`        // Partner that honors the discount.
	DiscountType     string     `json:"discountType"`     // FLAT or PERCENT.
	DiscountValue    *float64   `json:"discountValue"`    // Discount amount; required.
	ExpiresAt        *time.Time `json:"expiresAt"`        // Optional expiry; nil never expires.
	Description      string     `json:"description"`      // Long description.
	ShortDescription string     `json:"shortDescription"` // Short description.
	Image            string     `json:"image"`            // Image URL.
}

// Create stores a new promotion type.
func (h *TypeHandler) Create(c *gin.Context) {
	var body createTypeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid body")
		return
	}
	if body.DiscountValue == nil {
		badRequest(c, "discountValue is required")
		return
	}
	t, errCreate := h.svc.CreateType(c.Request.Context(), promotion.TypeInput{
		Name:             body.Name,
		PartnerID:        body.PartnerID,
		DiscountType:     body.DiscountType,
		DiscountValue:    *body.DiscountValue,
		ExpiresAt:        body.ExpiresAt,
		Description:      body.Description,
		ShortDescription: body.ShortDescription,
		Image:            body.Image,
	})
	if errCreate != nil {
		writeError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, formatType(t))
}

// List returns a page of promotion types.
func (h *TypeHandler) List(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	rows, errList := h.svc.ListTypes(c.Request.Context(), page)
	if errList != nil {
		writeError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": formatTypes(rows)})
}

// ListByPartner returns the promotion types of one partner.
func (h *TypeHandler) ListByPartner(c *gin.Context) {
	partnerID, ok := parseUintParam(c, "partnerId")
	if !ok {
		return
	}
	page, ok := parsePage(c)
	if !ok {
		return
	}
	rows, errList := h.svc.ListTypesByPartner(c.Request.Context(), partnerID, page)
	if errList != nil {
		writeError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": formatTypes(rows)})
}

// Get returns one promotion type.
func (h *TypeHandler) Get(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	t, errFind := h.svc.GetType(c.Request.Context(), id)
	if errFind != nil {
		writeError(c, errFind)
		return
	}
	c.JSON(http.StatusOK, formatType(t))
}

// updateTypeRequest captures a partial promotion type update; nil fields are left unchanged.
type updateTypeRequest struct {
	Name             *string    `json:"name"`             // New display name.
	PartnerID        *uint64    `json:"partnerId"`        // New partner ID.
	DiscountType     *string    `json:"discountType"`     // New discount type.
	DiscountValue    *float64   `json:"discountValue"`    // New discount amount.
	ExpiresAt        *time.Time `json:"expiresAt"`        // New expiry.
	ClearExpiresAt   bool       `json:"clearExpiresAt"`   // Remove the expiry.
	Description      *string    `json:"description"`      // New long description.
	ShortDescription *string    `json:"shortDescription"` // New short description.
	Image            *string    `json:"image"`            // New image URL.
}

// Update applies a partial update to a promotion type.
func (h *TypeHandler) Update(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var body updateTypeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid body")
		return
	}
	t, errUpdate := h.svc.UpdateType(c.Request.Context(), id, promotion.TypeUpdate{
		Name:             body.Name,
		PartnerID:        body.PartnerID,
		DiscountType:     body.DiscountType,
		DiscountValue:    body.DiscountValue,
		ExpiresAt:        body.ExpiresAt,
		ClearExpiresAt:   body.ClearExpiresAt,
		Description:      body.Description,
		ShortDescription: body.ShortDescription,
		Image:            body.Image,
	})
	if errUpdate != nil {
		writeError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, formatType(t))
}

// Delete removes a promotion type that no promotion references.
func (h *TypeHandler) Delete(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if errDelete := h.svc.DeleteType(c.Request.Context(), id); errDelete != nil {
		writeError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func formatTypes(rows []models.PromotionType) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatType(&rows[i]))
	}
	return out
}

func formatType(t *models.PromotionType) gin.H {
	if t == nil {
		return nil
	}
	return gin.H{
		"id":               t.ID,
		"name":             t.Name,
		"partnerId":        t.PartnerID,
		"discountType":     t.DiscountType,
		"discountValue":    t.DiscountValue,
		"expiresAt":        t.ExpiresAt,
		"description":      t.Description,
		"shortDescription": t.ShortDescription,
		"image":            t.Image,
		"createdAt":        t.CreatedAt,
		"updatedAt":        t.UpdatedAt,
	}
}
