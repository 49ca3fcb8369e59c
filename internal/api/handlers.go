package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"farm-alert-service/internal/alerts"
	"farm-alert-service/internal/dispatch"
	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
)

type Handler struct {
	engine     *alerts.Engine
	dispatcher *dispatch.Dispatcher
	logger     *logging.Logger
}

func NewHandler(engine *alerts.Engine, dispatcher *dispatch.Dispatcher, logger *logging.Logger) *Handler {
	return &Handler{engine: engine, dispatcher: dispatcher, logger: logger}
}

func (h *Handler) CreateAlert(c *gin.Context) {
	farmID := c.Param("farm_id")
	var spec models.AlertSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		h.logger.Errorf("Invalid request body for alert: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if spec.Severity.Rank() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid severity"})
		return
	}

	alert := h.engine.Create(farmID, spec)
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) GetAlerts(c *gin.Context) {
	farmID := c.Param("farm_id")
	var filter models.AlertFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter"})
		return
	}
	c.JSON(http.StatusOK, h.engine.Query(farmID, filter))
}

func (h *Handler) GetActiveAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Active(c.Param("farm_id")))
}

func (h *Handler) GetAlertStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats(c.Param("farm_id")))
}

func (h *Handler) SubmitReading(c *gin.Context) {
	farmID := c.Param("farm_id")
	var reading models.Reading
	if err := c.ShouldBindJSON(&reading); err != nil {
		h.logger.Errorf("Invalid request body for reading: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	reading.FarmID = farmID

	created := h.engine.CreateFromReading(farmID, reading)
	c.JSON(http.StatusCreated, gin.H{"alerts": created, "count": len(created)})
}

func (h *Handler) ResolveAlert(c *gin.Context) {
	id := c.Param("id")
	alert := h.engine.Resolve(id)
	if alert == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found or not active"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) GetRecommendations(c *gin.Context) {
	t := models.AlertType(c.Param("type"))
	recs := alerts.Recommendations(t)
	if recs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown alert type"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": t, "recommendations": recs})
}

func (h *Handler) SendAlert(c *gin.Context) {
	id := c.Param("id")
	alert := h.engine.Get(id)
	if alert == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	// An empty body means "everyone subscribed".
	var body struct {
		RecipientIDs []string `json:"recipient_ids"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	recipients := body.RecipientIDs
	if len(recipients) == 0 {
		recipients = h.dispatcher.Recipients()
	}

	result := h.dispatcher.SendAlert(c.Request.Context(), *alert, recipients)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetAlertHistory(c *gin.Context) {
	id := c.Param("id")
	recipientID := c.Query("recipient_id")
	c.JSON(http.StatusOK, h.dispatcher.History(id, recipientID))
}

func (h *Handler) MarkAlertAsRead(c *gin.Context) {
	id := c.Param("id")
	var body struct {
		RecipientID string `json:"recipient_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !h.dispatcher.MarkRead(id, body.RecipientID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No delivery record found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read", "read_at": time.Now()})
}

func (h *Handler) Subscribe(c *gin.Context) {
	recipientID := c.Param("recipient_id")
	var spec models.SubscriptionSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		h.logger.Errorf("Invalid request body for subscription: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	sub := h.dispatcher.Subscribe(recipientID, spec)
	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) UpdateSubscription(c *gin.Context) {
	recipientID := c.Param("recipient_id")
	var upd models.SubscriptionUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	sub := h.dispatcher.Update(recipientID, upd)
	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) GetSubscription(c *gin.Context) {
	sub := h.dispatcher.Get(c.Param("recipient_id"))
	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	c.JSON(http.StatusOK, sub)
}
