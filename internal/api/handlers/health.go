package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geusenergia/energisa-faturas/internal/models"
)

// Version is stamped at build time
var Version = "dev"

// HealthHandler reports service health
type HealthHandler struct {
	health    func() map[string]interface{}
	startedAt time.Time
}

// NewHealthHandler creates a new health handler over the aggregated
// service health function
func NewHealthHandler(health func() map[string]interface{}) *HealthHandler {
	return &HealthHandler{
		health:    health,
		startedAt: time.Now(),
	}
}

// Health godoc
// @Summary Estado dos servicos
// @Tags saude
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Timestamp: time.Now(),
		Services:  h.health(),
	})
}
