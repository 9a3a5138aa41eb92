package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/config"
	"github.com/geusenergia/energisa-faturas/internal/invoice"
	"github.com/geusenergia/energisa-faturas/internal/models"
	"github.com/geusenergia/energisa-faturas/internal/utils"
)

const runKeyPrefix = "run:"

// ProcessorService owns the invoice pipeline: staging refresh, the
// sequential account passes and the stored run reports. Runs execute on
// a single background goroutine, so overlapping triggers queue instead
// of racing each other on the portal.
type ProcessorService struct {
	config     *config.Config
	logger     *logrus.Logger
	cache      CacheServiceInterface
	staging    StagingRepositoryInterface
	upstream   UpstreamServiceInterface
	billing    BillingServiceInterface
	portal     PortalServiceInterface
	alert      AlertServiceInterface
	downloader *invoice.Downloader

	jobs chan runJob
	wg   sync.WaitGroup

	mu      sync.Mutex
	running string
	closed  bool
}

type runJob struct {
	runID string
	cnpjs []string
}

// NewProcessorService creates the processor and starts its runner
func NewProcessorService(
	cfg *config.Config,
	logger *logrus.Logger,
	cache CacheServiceInterface,
	staging StagingRepositoryInterface,
	upstream UpstreamServiceInterface,
	billing BillingServiceInterface,
	portal PortalServiceInterface,
	alert AlertServiceInterface,
) *ProcessorService {
	p := &ProcessorService{
		config:     cfg,
		logger:     logger,
		cache:      cache,
		staging:    staging,
		upstream:   upstream,
		billing:    billing,
		portal:     portal,
		alert:      alert,
		downloader: invoice.NewDownloader(logrus.NewEntry(logger)),
		jobs:       make(chan runJob, 16),
	}

	p.wg.Add(1)
	go p.runner()
	return p
}

// Accounts returns the configured geradora CNPJs
func (p *ProcessorService) Accounts() []string {
	return p.config.Accounts.CNPJs
}

// MatchAccounts resolves requested CNPJs against the configured list,
// comparing digits only so formatted and bare identifiers both work.
func (p *ProcessorService) MatchAccounts(requested []string) (matched []string, unknown []string) {
	for _, req := range requested {
		found := ""
		for _, configured := range p.config.Accounts.CNPJs {
			if utils.SameCNPJ(req, configured) {
				found = configured
				break
			}
		}
		if found == "" {
			unknown = append(unknown, req)
		} else {
			matched = append(matched, found)
		}
	}
	return matched, unknown
}

// EnqueueAll queues a run over every configured account
func (p *ProcessorService) EnqueueAll() (*models.RunReport, error) {
	return p.enqueue(p.config.Accounts.CNPJs)
}

// EnqueueAccounts queues a run over the given accounts
func (p *ProcessorService) EnqueueAccounts(cnpjs []string) (*models.RunReport, error) {
	return p.enqueue(cnpjs)
}

func (p *ProcessorService) enqueue(cnpjs []string) (*models.RunReport, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("processador encerrado")
	}
	p.mu.Unlock()

	report := &models.RunReport{
		RunID:     uuid.NewString(),
		Status:    models.RunQueued,
		StartedAt: time.Now(),
	}
	p.storeReport(report)

	select {
	case p.jobs <- runJob{runID: report.RunID, cnpjs: cnpjs}:
	default:
		return nil, fmt.Errorf("fila de execucoes cheia")
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":    report.RunID,
		"geradoras": len(cnpjs),
	}).Info("Execucao enfileirada")
	return report, nil
}

// GetReport fetches a stored run report by id
func (p *ProcessorService) GetReport(ctx context.Context, runID string) (*models.RunReport, error) {
	raw, err := p.cache.Get(ctx, runKeyPrefix+runID)
	if err != nil {
		return nil, err
	}
	var report models.RunReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("relatorio de execucao corrompido: %w", err)
	}
	return &report, nil
}

// Health returns processor health status
func (p *ProcessorService) Health() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]interface{}{
		"status":    "healthy",
		"queued":    len(p.jobs),
		"running":   p.running,
		"geradoras": len(p.config.Accounts.CNPJs),
	}
}

// Close stops the background runner after the current run finishes
func (p *ProcessorService) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
	return nil
}

func (p *ProcessorService) runner() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.mu.Lock()
		p.running = job.runID
		p.mu.Unlock()

		p.executeRun(job)

		p.mu.Lock()
		p.running = ""
		p.mu.Unlock()
	}
}

func (p *ProcessorService) storeReport(report *models.RunReport) {
	data, err := json.Marshal(report)
	if err != nil {
		p.logger.WithError(err).Error("Falha ao serializar relatorio de execucao")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.cache.Set(ctx, runKeyPrefix+report.RunID, string(data)); err != nil {
		p.logger.WithError(err).Error("Falha ao gravar relatorio de execucao")
	}
}

func (p *ProcessorService) executeRun(job runJob) {
	ctx := context.Background()
	log := p.logger.WithField("run_id", job.runID)

	report := &models.RunReport{
		RunID:     job.runID,
		Status:    models.RunRunning,
		StartedAt: time.Now(),
	}
	p.storeReport(report)
	log.WithField("geradoras", len(job.cnpjs)).Info("Execucao iniciada")

	finish := func(status, errMsg string) {
		now := time.Now()
		report.Status = status
		report.Error = errMsg
		report.FinishedAt = &now
		p.storeReport(report)
		log.WithField("status", status).Info("Execucao finalizada")
	}

	// A run over stale staged data would classify everything wrong, so
	// a failed refresh aborts the whole run.
	if _, err := p.upstream.RefreshStaging(ctx); err != nil {
		log.WithError(err).Error("Falha ao atualizar staging, execucao abortada")
		finish(models.RunFailed, fmt.Sprintf("atualizacao do staging falhou: %v", err))
		return
	}

	for i, cnpj := range job.cnpjs {
		if i > 0 {
			time.Sleep(p.config.Accounts.PassInterval)
		}
		result := p.processAccount(ctx, cnpj)
		report.Accounts = append(report.Accounts, result)
		p.storeReport(report)
	}

	finish(models.RunCompleted, "")
}

// processAccount runs one geradora pass. Panics from the browser layer
// are recovered into an account failure so one broken account never
// kills the run.
func (p *ProcessorService) processAccount(ctx context.Context, cnpj string) (result models.AccountResult) {
	result = models.AccountResult{CNPJ: cnpj}
	log := p.logger.WithField("geradora", cnpj)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Panico no processamento da geradora")
			result.Success = false
			result.Error = fmt.Sprintf("panico: %v", r)
		}
	}()

	accountKey := utils.AccountKey(cnpj)
	file, err := p.staging.LoadAccount(accountKey)
	if err != nil {
		result.Error = fmt.Sprintf("staging indisponivel: %v", err)
		p.alert.AccountFailed(ctx, cnpj, result.Error)
		return result
	}
	if len(file.ListaUCs) == 0 {
		log.Info("Geradora sem faturas em aberto no staging")
		result.Success = true
		return result
	}

	session, err := p.portal.OpenSession(ctx, cnpj)
	if err != nil {
		result.Error = fmt.Sprintf("autenticacao falhou: %v", err)
		p.alert.AccountFailed(ctx, cnpj, result.Error)
		return result
	}
	defer func() { _ = session.Close() }()

	ucs := make([]string, 0, len(file.ListaUCs))
	for uc := range file.ListaUCs {
		ucs = append(ucs, uc)
	}
	sort.Strings(ucs)

	results := make(map[string]models.UCResult, len(ucs))
	var failed []string
	for _, uc := range ucs {
		ucResult := p.processUC(ctx, session, uc, file)
		results[uc] = ucResult
		if ucResult.Error != "" {
			failed = append(failed, uc)
		}
	}

	// One in-session retry for UCs that failed: transient portal
	// hiccups usually clear within the same authenticated session.
	for _, uc := range failed {
		log.WithField("uc", uc).Info("Repetindo UC com falha na mesma sessao")
		retry := p.processUC(ctx, session, uc, file)
		if retry.Error == "" {
			results[uc] = retry
		}
	}

	allOK := true
	for _, uc := range ucs {
		ucResult := results[uc]
		result.UCs = append(result.UCs, ucResult)
		if ucResult.Error != "" {
			allOK = false
		}
		for _, inv := range ucResult.Invoices {
			if !inv.Success() {
				allOK = false
			}
		}
	}
	result.Success = allOK

	// Persist what the portal showed so the next run classifies against
	// fresh staged values.
	if err := p.staging.SaveAccount(accountKey, file); err != nil {
		log.WithError(err).Error("Falha ao regravar staging apos o processamento")
	}

	if !allOK {
		p.alert.AccountFailed(ctx, cnpj, "pelo menos uma fatura falhou")
	}
	return result
}

func (p *ProcessorService) processUC(ctx context.Context, session PortalSession, uc string, file *models.AccountFile) models.UCResult {
	result := models.UCResult{UC: uc}
	log := p.logger.WithFields(logrus.Fields{"geradora": file.Geradora, "uc": uc})

	hasInvoices, err := session.PrepareUC(ctx, uc)
	if err != nil {
		result.Error = fmt.Sprintf("navegacao falhou: %v", err)
		return result
	}
	if !hasInvoices {
		log.Info("UC sem faturas no portal")
		result.Skipped = true
		return result
	}

	cards, err := session.Cards(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("leitura das faturas falhou: %v", err)
		return result
	}
	byMonth := make(map[string]InvoiceCard, len(cards))
	for _, card := range cards {
		byMonth[card.Mes] = card
	}

	staged := file.ListaUCs[uc]
	for i := range staged {
		entry := &staged[i]
		result.Invoices = append(result.Invoices, p.processInvoice(ctx, session, entry, byMonth))
	}
	return result
}

// processInvoice reconciles one staged invoice against the portal card
// for its reference month and dispatches the resulting billing request.
// On success the staged entry is updated in place.
func (p *ProcessorService) processInvoice(ctx context.Context, session PortalSession, staged *models.StagedInvoice, byMonth map[string]InvoiceCard) models.InvoiceResult {
	result := models.InvoiceResult{
		ID:     staged.ID,
		UC:     staged.NovaUC,
		Mes:    staged.DataReferencia,
		Tarefa: staged.Tarefa,
	}
	log := p.logger.WithFields(logrus.Fields{
		"fatura": staged.ID,
		"uc":     staged.NovaUC,
		"mes":    staged.DataReferencia,
	})

	card, found := byMonth[staged.DataReferencia]
	if !found {
		result.Outcome = models.OutcomeFailed
		result.Error = "fatura nao encontrada no portal"
		log.Warn("Mes de referencia sem card correspondente")
		return result
	}

	valor, err := invoice.NormalizeAmount(card.Valor)
	if err != nil {
		result.Outcome = models.OutcomeFailed
		result.Error = fmt.Sprintf("valor ilegivel no portal: %v", err)
		return result
	}

	observed := models.InvoiceRecord{
		ID:             staged.ID,
		NovaUC:         staged.NovaUC,
		DataReferencia: staged.DataReferencia,
		Valor:          valor,
		DataVencimento: card.Vencimento,
		Situacao:       card.Situacao,
	}

	classification := invoice.Classify(staged, observed)
	log = log.WithField("classificacao", classification.String())

	if classification == invoice.NoChange {
		result.Outcome = models.OutcomeUnchanged
		log.Info("Fatura sem alteracoes")
		return result
	}

	if classification == invoice.FullUpdate {
		data, err := p.downloader.Download(ctx, session.DownloadAction(card), p.alert, staged.NovaUC, staged.DataReferencia)
		if err != nil {
			result.Outcome = models.OutcomeFailed
			result.Error = fmt.Sprintf("download falhou: %v", err)
			return result
		}
		observed.Arquivo = data
		observed.NomeArquivo = fmt.Sprintf("fatura_%s_%s.pdf", staged.NovaUC, staged.DataReferencia)
	}

	if err := p.billing.Submit(ctx, classification, observed); err != nil {
		result.Outcome = models.OutcomeFailed
		result.Error = fmt.Sprintf("envio falhou: %v", err)
		log.WithError(err).Error("Envio da fatura rejeitado")
		return result
	}

	if classification == invoice.StatusOnly {
		result.Outcome = models.OutcomeStatusUpdated
	} else {
		result.Outcome = models.OutcomeCreated
	}

	staged.Valor = observed.Valor
	staged.DataVencimento = observed.DataVencimento
	staged.SituacaoPagamento = observed.Situacao
	staged.Tarefa = observed.Situacao.TaskName()

	log.Info("Fatura processada")
	return result
}
