package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hungtruong03/SAPromotion/internal/promotion"
)

// RedemptionHandler serves redemption, status and short-code endpoints.
type RedemptionHandler struct {
	svc *promotion.Service
}

// NewRedemptionHandler constructs a RedemptionHandler.
func NewRedemptionHandler(svc *promotion.Service) *RedemptionHandler {
	return &RedemptionHandler{svc: svc}
}

// redeemRequest captures the payload shared by both redeem endpoints.
type redeemRequest struct {
	PhoneNumber string `json:"phoneNumber"` // Phone number forwarded to the partner.
	UserID      uint64 `json:"userId"`      // User redeeming; must own the promotion.
}

// RedeemByID redeems a promotion addressed by id.
func (h *RedemptionHandler) RedeemByID(c *gin.Context) {
	id, ok := parseStringParam(c, "id")
	if !ok {
		return
	}
	var body redeemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid body")
		return
	}
	result, errRedeem := h.svc.RedeemByID(c.Request.Context(), id, body.PhoneNumber, body.UserID)
	if errRedeem != nil {
		writeError(c, errRedeem)
		return
	}
	c.JSON(http.StatusOK, formatRedemption(result))
}

// RedeemByCode redeems the promotion a live short code points to.
func (h *RedemptionHandler) RedeemByCode(c *gin.Context) {
	code, ok := parseStringParam(c, "code")
	if !ok {
		return
	}
	var body redeemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid body")
		return
	}
	result, errRedeem := h.svc.RedeemByCode(c.Request.Context(), code, body.PhoneNumber, body.UserID)
	if errRedeem != nil {
		writeError(c, errRedeem)
		return
	}
	c.JSON(http.StatusOK, formatRedemption(result))
}

// Status reports whether a promotion has been redeemed.
func (h *RedemptionHandler) Status(c *gin.Context) {
	id, ok := parseStringParam(c, "id")
	if !ok {
		return
	}
	status, errStatus := h.svc.CheckStatus(c.Request.Context(), id)
	if errStatus != nil {
		writeError(c, errStatus)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redeemed": status.Redeemed, "redeemAt": status.RedeemAt})
}

// Encrypt issues a short-lived code for a promotion.
func (h *RedemptionHandler) Encrypt(c *gin.Context) {
	id, ok := parseStringParam(c, "id")
	if !ok {
		return
	}
	code, ttl, errCode := h.svc.GenerateCode(c.Request.Context(), id)
	if errCode != nil {
		writeError(c, errCode)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "expiresIn": int64(ttl.Seconds())})
}

// Decode resolves a short code to its promotion id.
func (h *RedemptionHandler) Decode(c *gin.Context) {
	code, ok := parseStringParam(c, "code")
	if !ok {
		return
	}
	id, errLookup := h.svc.LookupCode(c.Request.Context(), code)
	if errLookup != nil {
		writeError(c, errLookup)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promotionId": id})
}

func formatRedemption(r *promotion.Redemption) gin.H {
	return gin.H{
		"message":     "Promotion redeemed successfully.",
		"promotionId": r.PromotionID,
		"attemptId":   r.AttemptID,
		"redeemAt":    r.RedeemAt,
	}
}
