package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/config"
	"github.com/geusenergia/energisa-faturas/internal/invoice"
	"github.com/geusenergia/energisa-faturas/internal/models"
)

// ApiError is a non-2xx reply from a GEUS endpoint
type ApiError struct {
	StatusCode int
	Body       string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("api retornou status %d: %s", e.StatusCode, e.Body)
}

// BillingService submits invoice results to the GEUS billing API
type BillingService struct {
	config *config.Config
	logger *logrus.Logger
	client *http.Client
	now    func() time.Time
}

// NewBillingService creates a new billing service
func NewBillingService(cfg *config.Config, logger *logrus.Logger) *BillingService {
	return &BillingService{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.Billing.Timeout},
		now:    time.Now,
	}
}

// Submit dispatches the request matching the classification. NoChange
// sends nothing. StatusOnly sends the lightweight status patch.
// FullUpdate sends the complete record and requires the downloaded
// document; a full update without one fails before any network call.
func (b *BillingService) Submit(ctx context.Context, classification invoice.Classification, record models.InvoiceRecord) error {
	switch classification {
	case invoice.NoChange:
		return nil

	case invoice.StatusOnly:
		payload := models.UpdateInvoiceRequest{
			ID:                record.ID,
			SituacaoPagamento: record.Situacao,
		}
		return b.post(ctx, b.config.Billing.UpdateURL, payload)

	case invoice.FullUpdate:
		if len(record.Arquivo) == 0 {
			return fmt.Errorf("fatura %d sem documento para envio completo: %w", record.ID, invoice.ErrMissingDocument)
		}
		payload := models.CreateInvoiceRequest{
			ID:                record.ID,
			NovaUC:            record.NovaUC,
			DataVencimento:    record.DataVencimento,
			DataReferencia:    record.DataReferencia,
			Valor:             record.Valor,
			ArquivoFatura:     base64.StdEncoding.EncodeToString(record.Arquivo),
			NomeArquivoFatura: record.NomeArquivo,
			DataEncontrada:    b.now().Format("2006-01-02 15:04:05"),
			SituacaoPagamento: record.Situacao,
			SituacaoEnergiaA:  "sem_injecao",
		}
		return b.post(ctx, b.config.Billing.CreateURL, payload)
	}

	return fmt.Errorf("classificacao desconhecida: %v", classification)
}

func (b *BillingService) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("erro ao serializar payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("erro ao montar requisicao: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.config.Billing.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("erro ao enviar fatura: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("erro ao ler resposta da api: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ApiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	b.logger.WithFields(logrus.Fields{
		"url":    url,
		"status": resp.StatusCode,
	}).Debug("Fatura enviada")
	return nil
}
