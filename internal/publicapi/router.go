package publicapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS matches what the venue sites send: simple POST/GET requests plus the
// custom headers their API clients attach.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, apikey, x-api-key, x-client-info, x-action")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// Router wires the public routes. Unknown methods on known paths get 405,
// matching what the venue site clients expect.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.HandleMethodNotAllowed = true

	r.POST("/occasion-pay-and-book", h.PayAndBook)
	r.POST("/send-email", h.SendEmail)
	r.GET("/occasion-info", h.OccasionInfo)
	r.GET("/organiser", h.OrganiserView)
	r.GET("/guest-list", h.GuestList)
	r.POST("/guest-list", h.SetGuestName)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
