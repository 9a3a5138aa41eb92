package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/config"
	"github.com/geusenergia/energisa-faturas/internal/models"
)

// ErrStagingFileMissing means an account has no staged file on disk.
// Without one there is nothing to reconcile against, so the account
// pass cannot proceed.
var ErrStagingFileMissing = errors.New("arquivo de staging inexistente")

// StagingRepository stores staged invoice records as one JSON file per
// geradora account, named by the digits-only CNPJ.
type StagingRepository struct {
	dir    string
	logger *logrus.Logger
}

// NewStagingRepository creates a new staging repository
func NewStagingRepository(cfg *config.Config, logger *logrus.Logger) (*StagingRepository, error) {
	if err := os.MkdirAll(cfg.Staging.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("erro ao criar diretorio de staging: %w", err)
	}
	return &StagingRepository{
		dir:    cfg.Staging.Dir,
		logger: logger,
	}, nil
}

func (s *StagingRepository) path(accountKey string) string {
	return filepath.Join(s.dir, accountKey+".json")
}

// LoadAccount loads the staged file for an account key. A missing file
// is fatal to that account's pass and surfaces as ErrStagingFileMissing.
func (s *StagingRepository) LoadAccount(accountKey string) (*models.AccountFile, error) {
	data, err := os.ReadFile(s.path(accountKey))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrStagingFileMissing, accountKey)
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao ler arquivo de staging %s: %w", accountKey, err)
	}

	var file models.AccountFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("arquivo de staging %s invalido: %w", accountKey, err)
	}
	if file.ListaUCs == nil {
		file.ListaUCs = make(map[string][]models.StagedInvoice)
	}
	return &file, nil
}

// SaveAccount writes the staged file for an account key. The write goes
// through a temp file and rename so a crash never leaves a half-written
// file behind.
func (s *StagingRepository) SaveAccount(accountKey string, file *models.AccountFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("erro ao serializar staging %s: %w", accountKey, err)
	}

	tmp, err := os.CreateTemp(s.dir, accountKey+"-*.tmp")
	if err != nil {
		return fmt.Errorf("erro ao criar arquivo temporario: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("erro ao gravar staging %s: %w", accountKey, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("erro ao fechar staging %s: %w", accountKey, err)
	}
	if err := os.Rename(tmpName, s.path(accountKey)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("erro ao renomear staging %s: %w", accountKey, err)
	}

	s.logger.WithFields(logrus.Fields{
		"geradora": accountKey,
		"ucs":      len(file.ListaUCs),
	}).Debug("Arquivo de staging gravado")
	return nil
}

// Report summarises all staged files on disk
func (s *StagingRepository) Report() (*models.StagingReport, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar diretorio de staging: %w", err)
	}

	report := &models.StagingReport{
		Accounts: make([]models.StagingAccountSummary, 0, len(entries)),
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		accountKey := strings.TrimSuffix(name, ".json")
		file, err := s.LoadAccount(accountKey)
		if err != nil {
			s.logger.WithError(err).WithField("geradora", accountKey).Warn("Arquivo de staging ignorado")
			continue
		}

		seen := make(map[string]bool)
		situacoes := make([]string, 0, 4)
		for _, invoices := range file.ListaUCs {
			for _, inv := range invoices {
				status := string(inv.SituacaoPagamento)
				if !seen[status] {
					seen[status] = true
					situacoes = append(situacoes, status)
				}
			}
		}
		sort.Strings(situacoes)

		report.Accounts = append(report.Accounts, models.StagingAccountSummary{
			AccountKey: accountKey,
			Invoices:   file.TotalInvoices(),
			UCs:        len(file.ListaUCs),
			Situacoes:  situacoes,
		})
		report.TotalInvoices += file.TotalInvoices()
		report.TotalUCs += len(file.ListaUCs)
	}
	return report, nil
}
