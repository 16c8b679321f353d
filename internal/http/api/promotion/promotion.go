package promotion

import (
	"github.com/gin-gonic/gin"
	"github.com/hungtruong03/SAPromotion/internal/http/api/promotion/handlers"
	"github.com/hungtruong03/SAPromotion/internal/promotion"
)

// RegisterPromotionRoutes registers the promotion and promotion type routes.
func RegisterPromotionRoutes(r *gin.Engine, svc *promotion.Service) {
	if r == nil || svc == nil {
		return
	}

	group := r.Group("/promotion")

	typeHandler := handlers.NewTypeHandler(svc)
	group.POST("/type/create", typeHandler.Create)
	group.GET("/type/list", typeHandler.List)
	group.GET("/type/list/:partnerId", typeHandler.ListByPartner)
	group.GET("/type/get/:id", typeHandler.Get)
	group.POST("/type/update/:id", typeHandler.Update)
	group.DELETE("/type/remove/:id", typeHandler.Delete)

	promotionHandler := handlers.NewPromotionHandler(svc)
	group.POST("/create", promotionHandler.Create)
	group.POST("/bulk-create", promotionHandler.BulkCreate)
	group.GET("/list", promotionHandler.List)
	group.GET("/list/:userId", promotionHandler.ListByUser)
	group.GET("/get/:id", promotionHandler.Get)
	group.POST("/update/:id", promotionHandler.Update)
	group.DELETE("/remove/:id", promotionHandler.Delete)
	group.POST("/assign", promotionHandler.Assign)
	group.GET("/stats/redeemed", promotionHandler.RedeemedCount)

	redemptionHandler := handlers.NewRedemptionHandler(svc)
	group.POST("/redeem/:id", redemptionHandler.RedeemByID)
	group.POST("/redeem/code/:code", redemptionHandler.RedeemByCode)
	group.GET("/status/:id", redemptionHandler.Status)
	group.GET("/encrypt/:id", redemptionHandler.Encrypt)
	group.GET("/code/:code", redemptionHandler.Decode)
}
