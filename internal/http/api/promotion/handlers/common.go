package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hungtruong03/SAPromotion/internal/promotion"
	log "github.com/sirupsen/logrus"
)

// errorCode maps a service error to its HTTP status and machine-readable code.
func errorCode(err error) (int, string, error) {
	switch {
	case errors.Is(err, promotion.ErrValidation):
		return http.StatusBadRequest, "validation_error", err
	case errors.Is(err, promotion.ErrNotFound):
		return http.StatusNotFound, "not_found", promotion.ErrNotFound
	case errors.Is(err, promotion.ErrInvalidOrExpiredCode):
		return http.StatusNotFound, "invalid_or_expired_code", promotion.ErrInvalidOrExpiredCode
	case errors.Is(err, promotion.ErrOwnershipMismatch):
		return http.StatusForbidden, "ownership_mismatch", promotion.ErrOwnershipMismatch
	case errors.Is(err, promotion.ErrAlreadyRedeemed):
		return http.StatusConflict, "already_redeemed", promotion.ErrAlreadyRedeemed
	case errors.Is(err, promotion.ErrConflict):
		return http.StatusConflict, "conflict", promotion.ErrConflict
	case errors.Is(err, promotion.ErrExhausted):
		return http.StatusConflict, "exhausted", promotion.ErrExhausted
	case errors.Is(err, promotion.ErrExpired):
		return http.StatusGone, "expired", promotion.ErrExpired
	case errors.Is(err, promotion.ErrUpstreamFailure):
		return http.StatusBadGateway, "upstream_failure", promotion.ErrUpstreamFailure
	case errors.Is(err, promotion.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable, "code_space_exhausted", promotion.ErrCodeSpaceExhausted
	default:
		return http.StatusInternalServerError, "internal_error", errors.New("internal error")
	}
}

// writeError renders err as {"error", "code"}. Only validation messages are
// passed through verbatim; everything else uses the generic text of its kind.
func writeError(c *gin.Context, err error) {
	status, code, public := errorCode(err)
	entry := log.WithError(err).WithFields(log.Fields{
		"path": c.FullPath(),
		"code": code,
	})
	switch {
	case status >= http.StatusInternalServerError:
		entry.Error("promotion request failed")
	case status == http.StatusBadGateway:
		entry.Warn("partner call failed")
	default:
		entry.Debug("promotion request rejected")
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": public.Error(), "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "validation_error"})
}

func parseUintParam(c *gin.Context, name string) (uint64, bool) {
	value, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || value == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return value, true
}

func parseStringParam(c *gin.Context, name string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		badRequest(c, "missing "+name)
		return "", false
	}
	return value, true
}

// parsePage reads skip/take query parameters.
func parsePage(c *gin.Context) (promotion.Page, bool) {
	var page promotion.Page
	if raw := strings.TrimSpace(c.Query("skip")); raw != "" {
		skip, errParse := strconv.Atoi(raw)
		if errParse != nil || skip < 0 {
			badRequest(c, "skip must be a non-negative integer")
			return page, false
		}
		page.Skip = skip
	}
	if raw := strings.TrimSpace(c.Query("take")); raw != "" {
		take, errParse := strconv.Atoi(raw)
		if errParse != nil || take <= 0 {
			badRequest(c, "take must be a positive integer")
			return page, false
		}
		page.Take = take
	}
	return page, true
}

// parseTimeQuery accepts RFC3339 or YYYY-MM-DD. A date-only upper bound
// covers the whole day.
func parseTimeQuery(c *gin.Context, name string, upper bool) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	if parsed, errParse := time.Parse(time.RFC3339, raw); errParse == nil {
		parsed = parsed.UTC()
		return &parsed, true
	}
	parsed, errParse := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if errParse != nil {
		badRequest(c, name+" must be RFC3339 or YYYY-MM-DD")
		return nil, false
	}
	if upper {
		parsed = parsed.AddDate(0, 0, 1)
	}
	return &parsed, true
}
