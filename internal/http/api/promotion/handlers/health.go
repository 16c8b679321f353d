package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hungtruong03/SAPromotion/internal/cache"
	"gorm.io/gorm"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db    *gorm.DB
	cache cache.Cache
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB, c cache.Cache) *HealthHandler {
	return &HealthHandler{db: db, cache: c}
}

// Healthz checks database and cache connectivity and returns status.
func (h *HealthHandler) Healthz(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": false})
		return
	}
	if errPing := sqlDB.PingContext(c.Request.Context()); errPing != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": false})
		return
	}
	if h.cache != nil {
		if errPing := h.cache.Ping(c.Request.Context()); errPing != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": true, "cache": false})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
