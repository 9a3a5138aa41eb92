package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/config"
)

// AlertService notifies the operations webhook about failures that need
// a human. Without a configured URL it only logs, so local runs never
// page anyone.
type AlertService struct {
	url    string
	logger *logrus.Logger
	client *http.Client
}

// NewAlertService creates a new alert service
func NewAlertService(cfg *config.Config, logger *logrus.Logger) *AlertService {
	return &AlertService{
		url:    cfg.Accounts.AlertURL,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// DownloadFailed notifies that an invoice document could not be
// downloaded after all retries
func (a *AlertService) DownloadFailed(ctx context.Context, uc, referenceMonth string) {
	a.notify(ctx, logrus.Fields{
		"evento": "download_falhou",
		"uc":     uc,
		"mes":    referenceMonth,
	})
}

// AccountFailed notifies that a whole account pass failed
func (a *AlertService) AccountFailed(ctx context.Context, cnpj string, reason string) {
	a.notify(ctx, logrus.Fields{
		"evento":   "geradora_falhou",
		"geradora": cnpj,
		"motivo":   reason,
	})
}

func (a *AlertService) notify(ctx context.Context, fields logrus.Fields) {
	a.logger.WithFields(fields).Error("Alerta para o gestor")
	if a.url == "" {
		return
	}

	body, err := json.Marshal(fields)
	if err != nil {
		a.logger.WithError(err).Warn("Falha ao serializar alerta")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		a.logger.WithError(err).Warn("Falha ao montar alerta")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WithError(err).Warn("Falha ao enviar alerta")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.WithField("status", resp.StatusCode).Warn("Webhook de alerta recusou o envio")
	}
}
