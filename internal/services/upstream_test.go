package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geusenergia/energisa-faturas/internal/config"
	"github.com/geusenergia/energisa-faturas/internal/models"
)

func testUpstreamService(t *testing.T, url string) (*UpstreamService, *StagingRepository) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Staging.Dir = t.TempDir()
	cfg.Upstream.URL = url
	cfg.Upstream.Login = "user"
	cfg.Upstream.Password = "pass"
	cfg.Upstream.Timeout = 5 * time.Second

	repo, err := NewStagingRepository(cfg, logger)
	require.NoError(t, err)
	return NewUpstreamService(cfg, logger, repo), repo
}

func TestUpstreamService_RefreshStaging(t *testing.T) {
	listing := []models.StagedInvoice{
		{ID: 1, CNPJGeradora: "11.222.333/0001-81", NovaUC: "10/1111111-1", DataReferencia: "03/2025", SituacaoPagamento: models.PaymentOverdue},
		{ID: 2, CNPJGeradora: "11.222.333/0001-81", NovaUC: "10/1111111-1", DataReferencia: "04/2025", SituacaoPagamento: models.PaymentDueSoon},
		{ID: 3, CNPJGeradora: "11.222.333/0001-81", NovaUC: "10/2222222-2", DataReferencia: "04/2025", SituacaoPagamento: models.PaymentPending},
		// Paid entries and entries without a UC are dropped.
		{ID: 4, CNPJGeradora: "11.222.333/0001-81", NovaUC: "10/2222222-2", DataReferencia: "02/2025", SituacaoPagamento: models.PaymentPaid},
		{ID: 5, CNPJGeradora: "11.222.333/0001-81", NovaUC: "", DataReferencia: "04/2025", SituacaoPagamento: models.PaymentPending},
		{ID: 6, CNPJGeradora: "99.888.777/0001-66", NovaUC: "10/3333333-3", DataReferencia: "04/2025", SituacaoPagamento: models.PaymentScheduled},
	}

	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		_ = json.NewEncoder(w).Encode(listing)
	}))
	defer server.Close()

	svc, repo := testUpstreamService(t, server.URL)
	written, err := svc.RefreshStaging(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Equal(t, "user", gotUser)
	assert.Equal(t, "pass", gotPass)

	file, err := repo.LoadAccount("11222333000181")
	require.NoError(t, err)
	assert.Len(t, file.ListaUCs, 2)
	require.Len(t, file.ListaUCs["10/1111111-1"], 2)
	assert.Equal(t, "fatura_vencida", file.ListaUCs["10/1111111-1"][0].Tarefa)
	assert.Equal(t, "fatura_a_vencer", file.ListaUCs["10/1111111-1"][1].Tarefa)

	other, err := repo.LoadAccount("99888777000166")
	require.NoError(t, err)
	require.Len(t, other.ListaUCs["10/3333333-3"], 1)
	assert.Equal(t, "fatura_agendado", other.ListaUCs["10/3333333-3"][0].Tarefa)
}

func TestUpstreamService_RefreshLogsStagingSummary(t *testing.T) {
	listing := []models.StagedInvoice{
		{ID: 1, CNPJGeradora: "11.222.333/0001-81", NovaUC: "10/1111111-1", DataReferencia: "03/2025", SituacaoPagamento: models.PaymentOverdue},
		{ID: 2, CNPJGeradora: "11.222.333/0001-81", NovaUC: "10/2222222-2", DataReferencia: "04/2025", SituacaoPagamento: models.PaymentPending},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(listing)
	}))
	defer server.Close()

	logger, hook := logrustest.NewNullLogger()

	cfg := &config.Config{}
	cfg.Staging.Dir = t.TempDir()
	cfg.Upstream.URL = server.URL
	cfg.Upstream.Timeout = 5 * time.Second

	repo, err := NewStagingRepository(cfg, logger)
	require.NoError(t, err)
	svc := NewUpstreamService(cfg, logger, repo)

	_, err = svc.RefreshStaging(context.Background())
	require.NoError(t, err)

	var summary *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Resumo do staging" {
			summary = entry
		}
	}
	require.NotNil(t, summary, "resumo do staging nao foi registrado")
	assert.Equal(t, 1, summary.Data["geradoras"])
	assert.Equal(t, 2, summary.Data["ucs"])
	assert.Equal(t, 2, summary.Data["faturas"])
}

func TestUpstreamService_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc, _ := testUpstreamService(t, server.URL)
	_, err := svc.RefreshStaging(context.Background())
	require.Error(t, err)

	var apiErr *ApiError
	assert.ErrorAs(t, err, &apiErr)
}

func TestUpstreamService_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	svc, _ := testUpstreamService(t, server.URL)
	_, err := svc.RefreshStaging(context.Background())
	assert.Error(t, err)
}
