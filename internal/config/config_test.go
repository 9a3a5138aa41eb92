package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEUS_APIKEY", "test-key")
	t.Setenv("API_CRIAR_FATURA_PROD", "https://geus.example/faturas")
	t.Setenv("API_ATUALIZAR_FATURA_PROD", "https://geus.example/faturas/atualizar")
	t.Setenv("API_DOMAIN_FATURAS_PROD", "https://geus.example/listagem")
	t.Setenv("GERADORAS_CNPJS", "11.222.333/0001-81, 11444777000161")
}

func TestLoad_NormalizesAccountCNPJs(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"11.222.333/0001-81", "11.444.777/0001-61"}, cfg.Accounts.CNPJs)
}

func TestLoad_RejectsInvalidAccountCNPJ(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GERADORAS_CNPJS", "11.222.333/0001-81, 12345678901234")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "12345678901234")
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GEUS_APIKEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DebugModeSelectsDevEndpoints(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEBUG_MODE", "true")
	t.Setenv("API_CRIAR_FATURA_DEV", "https://dev.example/faturas")
	t.Setenv("API_ATUALIZAR_FATURA_DEV", "https://dev.example/faturas/atualizar")
	t.Setenv("API_DOMAIN_FATURAS_DEV", "https://dev.example/listagem")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://dev.example/faturas", cfg.Billing.CreateURL)
	assert.Equal(t, "https://dev.example/listagem", cfg.Upstream.URL)
}
