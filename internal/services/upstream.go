package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/config"
	"github.com/geusenergia/energisa-faturas/internal/models"
	"github.com/geusenergia/energisa-faturas/internal/utils"
)

// UpstreamService fetches the invoice listing from the GEUS domain API
// and rewrites the staged account files from it.
type UpstreamService struct {
	config  *config.Config
	logger  *logrus.Logger
	staging StagingRepositoryInterface
	client  *http.Client
}

// NewUpstreamService creates a new upstream service
func NewUpstreamService(cfg *config.Config, logger *logrus.Logger, staging StagingRepositoryInterface) *UpstreamService {
	return &UpstreamService{
		config:  cfg,
		logger:  logger,
		staging: staging,
		client:  &http.Client{Timeout: cfg.Upstream.Timeout},
	}
}

// RefreshStaging fetches the current listing and rewrites the staged
// account files; returns the number of files written. Entries without a
// UC or with a non-stageable status are dropped before grouping.
func (u *UpstreamService) RefreshStaging(ctx context.Context) (int, error) {
	records, err := u.fetch(ctx)
	if err != nil {
		return 0, err
	}

	grouped := make(map[string]*models.AccountFile)
	kept := 0
	for _, record := range records {
		if record.NovaUC == "" || !record.SituacaoPagamento.Stageable() {
			continue
		}
		record.Tarefa = record.SituacaoPagamento.TaskName()

		key := utils.AccountKey(record.CNPJGeradora)
		file, ok := grouped[key]
		if !ok {
			file = &models.AccountFile{
				Geradora: key,
				ListaUCs: make(map[string][]models.StagedInvoice),
			}
			grouped[key] = file
		}
		file.ListaUCs[record.NovaUC] = append(file.ListaUCs[record.NovaUC], record)
		kept++
	}

	written := 0
	for key, file := range grouped {
		if err := u.staging.SaveAccount(key, file); err != nil {
			return written, err
		}
		written++
	}

	u.logger.WithFields(logrus.Fields{
		"recebidas": len(records),
		"mantidas":  kept,
		"arquivos":  written,
	}).Info("Staging atualizado a partir da listagem")

	if report, err := u.staging.Report(); err == nil {
		for _, acc := range report.Accounts {
			u.logger.WithFields(logrus.Fields{
				"geradora":  acc.AccountKey,
				"ucs":       acc.UCs,
				"faturas":   acc.Invoices,
				"situacoes": acc.Situacoes,
			}).Info("Resumo do staging por geradora")
		}
		u.logger.WithFields(logrus.Fields{
			"geradoras": len(report.Accounts),
			"ucs":       report.TotalUCs,
			"faturas":   report.TotalInvoices,
		}).Info("Resumo do staging")
	} else {
		u.logger.WithError(err).Warn("Falha ao resumir o staging")
	}
	return written, nil
}

func (u *UpstreamService) fetch(ctx context.Context) ([]models.StagedInvoice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.config.Upstream.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("erro ao montar requisicao da listagem: %w", err)
	}
	req.SetBasicAuth(u.config.Upstream.Login, u.config.Upstream.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erro ao consultar listagem de faturas: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler resposta da listagem: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ApiError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var records []models.StagedInvoice
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("resposta da listagem invalida: %w", err)
	}
	return records, nil
}
