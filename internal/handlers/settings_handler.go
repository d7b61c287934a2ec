package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-orders/internal/auth"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

// RegisterSettingsRoutes registers the admin settings endpoints.
func RegisterSettingsRoutes(r gin.IRouter, cfg HandlerConfig) {
	v := validation.New()
	admin := auth.RequireAdmin(cfg.Tokens)

	r.GET("/api/settings", admin, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "settings": cfg.Settings.Current()})
	})

	r.PUT("/api/settings", admin, func(c *gin.Context) {
		var req validation.SettingsRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			fail(c, err)
			return
		}
		updated, err := cfg.Settings.Update(c.Request.Context(), req.ToPatch())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "settings": updated})
	})
}
