package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/models"
	"github.com/geusenergia/energisa-faturas/internal/services"
)

// SearchHandler exposes the processing triggers and run reports
type SearchHandler struct {
	processor services.ProcessorServiceInterface
	logger    *logrus.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(processor services.ProcessorServiceInterface, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		processor: processor,
		logger:    logger,
	}
}

// StartSearch godoc
// @Summary Processa todas as geradoras
// @Description Enfileira uma execucao completa sobre todas as geradoras configuradas
// @Tags faturas
// @Produce json
// @Success 202 {object} models.StartSearchResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /start-search [post]
func (h *SearchHandler) StartSearch(c *gin.Context) {
	report, err := h.processor.EnqueueAll()
	if err != nil {
		h.serviceUnavailable(c, err)
		return
	}

	geradoras := h.processor.Accounts()
	c.JSON(http.StatusAccepted, models.StartSearchResponse{
		Message:        "processamento iniciado",
		RunID:          report.RunID,
		TotalGeradoras: len(geradoras),
		Geradoras:      geradoras,
	})
}

// StartSearchFiltered godoc
// @Summary Processa geradoras especificas
// @Description Enfileira uma execucao sobre os CNPJs informados, separados por AND
// @Tags faturas
// @Produce json
// @Param cnpjs path string true "CNPJs separados por AND"
// @Success 202 {object} models.StartSearchResponse
// @Failure 404 {object} models.UnknownCNPJResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /start-search/{cnpjs} [post]
func (h *SearchHandler) StartSearchFiltered(c *gin.Context) {
	raw := c.Param("cnpjs")

	requested := make([]string, 0, 4)
	for _, part := range strings.Split(raw, "AND") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			requested = append(requested, trimmed)
		}
	}
	if len(requested) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "nenhum CNPJ informado",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	matched, unknown := h.processor.MatchAccounts(requested)
	if len(unknown) > 0 {
		c.JSON(http.StatusNotFound, models.UnknownCNPJResponse{
			Error:            "geradoras nao configuradas: " + strings.Join(unknown, ", "),
			GeradorasValidas: matched,
		})
		return
	}

	report, err := h.processor.EnqueueAccounts(matched)
	if err != nil {
		h.serviceUnavailable(c, err)
		return
	}

	c.JSON(http.StatusAccepted, models.StartSearchResponse{
		Message:        "processamento iniciado",
		RunID:          report.RunID,
		TotalGeradoras: len(matched),
		Geradoras:      matched,
	})
}

// ListGeradoras godoc
// @Summary Lista as geradoras configuradas
// @Tags faturas
// @Produce json
// @Success 200 {object} models.GeradorasResponse
// @Router /geradoras [get]
func (h *SearchHandler) ListGeradoras(c *gin.Context) {
	geradoras := h.processor.Accounts()
	c.JSON(http.StatusOK, models.GeradorasResponse{
		Total:     len(geradoras),
		Geradoras: geradoras,
	})
}

// GetRun godoc
// @Summary Consulta o relatorio de uma execucao
// @Tags faturas
// @Produce json
// @Param id path string true "Identificador da execucao"
// @Success 200 {object} models.RunReport
// @Failure 404 {object} models.ErrorResponse
// @Router /runs/{id} [get]
func (h *SearchHandler) GetRun(c *gin.Context) {
	runID := c.Param("id")

	report, err := h.processor.GetReport(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:     "execucao nao encontrada",
			Message:   runID,
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Root godoc
// @Summary Lista as operacoes disponiveis
// @Tags faturas
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *SearchHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "energisa-faturas",
		"endpoints": gin.H{
			"POST /start-search":         "processa todas as geradoras",
			"POST /start-search/{cnpjs}": "processa geradoras especificas (CNPJs separados por AND)",
			"GET /geradoras":             "lista as geradoras configuradas",
			"GET /runs/{id}":             "relatorio de uma execucao",
			"GET /health":                "estado dos servicos",
		},
		"exemplo": "/start-search/11222333000181AND99888777000166",
	})
}

func (h *SearchHandler) serviceUnavailable(c *gin.Context, err error) {
	h.logger.WithError(err).Error("Falha ao enfileirar execucao")
	c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
		Error:     "nao foi possivel iniciar o processamento",
		Message:   err.Error(),
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}
