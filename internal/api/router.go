package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"farm-alert-service/internal/alerts"
	"farm-alert-service/internal/config"
	"farm-alert-service/internal/dispatch"
	"farm-alert-service/internal/hub"
	"farm-alert-service/internal/logging"
)

func NewRouter(engine *alerts.Engine, dispatcher *dispatch.Dispatcher, liveHub *hub.Hub, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	h := NewHandler(engine, dispatcher, logger)
	api := r.Group(cfg.API.BasePath)
	{
		// Alerts
		api.POST("/farms/:farm_id/alerts", h.CreateAlert)
		api.GET("/farms/:farm_id/alerts", h.GetAlerts)
		api.GET("/farms/:farm_id/alerts/active", h.GetActiveAlerts)
		api.GET("/farms/:farm_id/alerts/stats", h.GetAlertStats)
		api.POST("/farms/:farm_id/readings", h.SubmitReading)
		api.POST("/alerts/:id/resolve", h.ResolveAlert)
		api.POST("/alerts/:id/send", h.SendAlert)
		api.GET("/alerts/:id/history", h.GetAlertHistory)
		api.POST("/alerts/:id/read", h.MarkAlertAsRead)
		api.GET("/recommendations/:type", h.GetRecommendations)

		// Subscriptions
		api.POST("/subscriptions/:recipient_id", h.Subscribe)
		api.PUT("/subscriptions/:recipient_id", h.UpdateSubscription)
		api.GET("/subscriptions/:recipient_id", h.GetSubscription)
	}

	// Live channel attach
	r.GET("/ws", liveHub.Attach)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
