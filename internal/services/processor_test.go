package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geusenergia/energisa-faturas/internal/config"
	"github.com/geusenergia/energisa-faturas/internal/invoice"
	"github.com/geusenergia/energisa-faturas/internal/models"
)

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: make(map[string]string)} }

func (m *memCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("chave nao encontrada: %s", key)
	}
	return v, nil
}

func (m *memCache) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

type fakeUpstream struct {
	err   error
	calls int
}

func (f *fakeUpstream) RefreshStaging(ctx context.Context) (int, error) {
	f.calls++
	return 0, f.err
}

type submission struct {
	classification invoice.Classification
	record         models.InvoiceRecord
}

type fakeBilling struct {
	mu          sync.Mutex
	submissions []submission
	err         error
}

func (f *fakeBilling) Submit(ctx context.Context, c invoice.Classification, record models.InvoiceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, submission{c, record})
	return f.err
}

type fakeProcAlert struct {
	mu        sync.Mutex
	downloads []string
	accounts  []string
}

func (f *fakeProcAlert) DownloadFailed(ctx context.Context, uc, mes string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, uc+"|"+mes)
}

func (f *fakeProcAlert) AccountFailed(ctx context.Context, cnpj, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = append(f.accounts, cnpj)
}

// fakePortal scripts one session per account
type fakePortal struct {
	authErr  error
	sessions []*fakeSession
	cards    map[string][]InvoiceCard // uc -> cards
	navErr   map[string]int           // uc -> failures before success
}

func (f *fakePortal) OpenSession(ctx context.Context, cnpj string) (PortalSession, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	s := &fakeSession{portal: f, navErr: map[string]int{}}
	for uc, n := range f.navErr {
		s.navErr[uc] = n
	}
	f.sessions = append(f.sessions, s)
	return s, nil
}

type fakeSession struct {
	portal    *fakePortal
	currentUC string
	navErr    map[string]int
	closed    bool
}

func (s *fakeSession) PrepareUC(ctx context.Context, uc string) (bool, error) {
	if n := s.navErr[uc]; n > 0 {
		s.navErr[uc] = n - 1
		return false, errors.New("pagina nao carregou")
	}
	s.currentUC = uc
	cards, ok := s.portal.cards[uc]
	return ok && len(cards) > 0, nil
}

func (s *fakeSession) Cards(ctx context.Context) ([]InvoiceCard, error) {
	return s.portal.cards[s.currentUC], nil
}

func (s *fakeSession) DownloadAction(card InvoiceCard) invoice.DownloadAction {
	return &immediateDownload{}
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// immediateDownload completes on the first poll
type immediateDownload struct{}

func (d *immediateDownload) Trigger(ctx context.Context) error { return nil }
func (d *immediateDownload) Poll(ctx context.Context) (invoice.PollResult, error) {
	return invoice.PollComplete, nil
}
func (d *immediateDownload) Artifact(ctx context.Context) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}
func (d *immediateDownload) DismissError(ctx context.Context) error { return nil }
func (d *immediateDownload) Reload(ctx context.Context) error       { return nil }

type procFixture struct {
	processor *ProcessorService
	staging   *StagingRepository
	cache     *memCache
	upstream  *fakeUpstream
	billing   *fakeBilling
	portal    *fakePortal
	alert     *fakeProcAlert
}

func newProcFixture(t *testing.T) *procFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Staging.Dir = t.TempDir()
	cfg.Accounts.CNPJs = []string{"11.222.333/0001-81", "99.888.777/0001-66"}
	cfg.Accounts.PassInterval = time.Millisecond
	cfg.Portal.NavRetries = 3
	cfg.Portal.StepDelay = time.Millisecond

	staging, err := NewStagingRepository(cfg, logger)
	require.NoError(t, err)

	f := &procFixture{
		staging:  staging,
		cache:    newMemCache(),
		upstream: &fakeUpstream{},
		billing:  &fakeBilling{},
		portal:   &fakePortal{cards: map[string][]InvoiceCard{}},
		alert:    &fakeProcAlert{},
	}
	f.processor = NewProcessorService(cfg, logger, f.cache, staging, f.upstream, f.billing, f.portal, f.alert)
	t.Cleanup(func() { _ = f.processor.Close() })

	fast := invoice.NewDownloader(logrus.NewEntry(logger))
	fast.PollInterval = time.Millisecond
	fast.PollCeiling = 10 * time.Millisecond
	fast.Backoff = 0
	f.processor.downloader = fast
	return f
}

func (f *procFixture) waitForRun(t *testing.T, runID string) *models.RunReport {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		report, err := f.processor.GetReport(context.Background(), runID)
		if err == nil && (report.Status == models.RunCompleted || report.Status == models.RunFailed) {
			return report
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("execucao nao terminou a tempo")
	return nil
}

func TestProcessor_MatchAccounts(t *testing.T) {
	f := newProcFixture(t)

	matched, unknown := f.processor.MatchAccounts([]string{"11222333000181", "99.888.777/0001-66"})
	assert.Equal(t, []string{"11.222.333/0001-81", "99.888.777/0001-66"}, matched)
	assert.Empty(t, unknown)

	matched, unknown = f.processor.MatchAccounts([]string{"11222333000181", "00000000000000"})
	assert.Equal(t, []string{"11.222.333/0001-81"}, matched)
	assert.Equal(t, []string{"00000000000000"}, unknown)
}

func TestProcessor_RunOutcomes(t *testing.T) {
	f := newProcFixture(t)

	require.NoError(t, f.staging.SaveAccount("11222333000181", &models.AccountFile{
		Geradora: "11222333000181",
		ListaUCs: map[string][]models.StagedInvoice{
			"10/1111111-1": {
				// Matches the card exactly: unchanged, nothing sent.
				{ID: 1, NovaUC: "10/1111111-1", DataReferencia: "03/2025", Valor: "1234.56", DataVencimento: "2025-04-10", SituacaoPagamento: models.PaymentOverdue},
				// Same money, portal says paid: status-only update.
				{ID: 2, NovaUC: "10/1111111-1", DataReferencia: "02/2025", Valor: "500.00", DataVencimento: "2025-03-10", SituacaoPagamento: models.PaymentDueSoon},
				// No staged value yet: full update with download.
				{ID: 3, NovaUC: "10/1111111-1", DataReferencia: "04/2025", SituacaoPagamento: models.PaymentPending},
				// No card for this month: failed.
				{ID: 4, NovaUC: "10/1111111-1", DataReferencia: "01/2024", SituacaoPagamento: models.PaymentPending},
			},
		},
	}))

	f.portal.cards = map[string][]InvoiceCard{
		"10/1111111-1": {
			{Index: 0, Mes: "03/2025", Situacao: models.PaymentOverdue, Valor: "R$ 1.234,56", Vencimento: "2025-04-10"},
			{Index: 1, Mes: "02/2025", Situacao: models.PaymentPaid, Valor: "R$ 500,00", Vencimento: "2025-03-10"},
			{Index: 2, Mes: "04/2025", Situacao: models.PaymentDueSoon, Valor: "R$ 789,01", Vencimento: "2025-05-12"},
		},
	}

	queued, err := f.processor.EnqueueAccounts([]string{"11.222.333/0001-81"})
	require.NoError(t, err)
	report := f.waitForRun(t, queued.RunID)

	assert.Equal(t, models.RunCompleted, report.Status)
	assert.Equal(t, 1, f.upstream.calls)
	require.Len(t, report.Accounts, 1)
	require.Len(t, report.Accounts[0].UCs, 1)

	outcomes := map[int64]string{}
	for _, inv := range report.Accounts[0].UCs[0].Invoices {
		outcomes[inv.ID] = inv.Outcome
	}
	assert.Equal(t, models.OutcomeUnchanged, outcomes[1])
	assert.Equal(t, models.OutcomeStatusUpdated, outcomes[2])
	assert.Equal(t, models.OutcomeCreated, outcomes[3])
	assert.Equal(t, models.OutcomeFailed, outcomes[4])
	assert.False(t, report.Accounts[0].Success)

	// Unchanged invoices never reach the billing API.
	require.Len(t, f.billing.submissions, 2)
	for _, sub := range f.billing.submissions {
		assert.NotEqual(t, invoice.NoChange, sub.classification)
		if sub.classification == invoice.FullUpdate {
			assert.Equal(t, int64(3), sub.record.ID)
			assert.Equal(t, "789.01", sub.record.Valor)
			assert.Equal(t, []byte("%PDF-1.4"), sub.record.Arquivo)
			// Document name derives from the UC and reference month.
			assert.Equal(t, "fatura_10/1111111-1_04/2025.pdf", sub.record.NomeArquivo)
		}
	}

	// The staged file now carries what the portal showed.
	file, err := f.staging.LoadAccount("11222333000181")
	require.NoError(t, err)
	byID := map[int64]models.StagedInvoice{}
	for _, inv := range file.ListaUCs["10/1111111-1"] {
		byID[inv.ID] = inv
	}
	assert.Equal(t, models.PaymentPaid, byID[2].SituacaoPagamento)
	assert.Equal(t, "789.01", byID[3].Valor)
	assert.Equal(t, "fatura_a_vencer", byID[3].Tarefa)

	// The session was closed after the pass.
	require.Len(t, f.portal.sessions, 1)
	assert.True(t, f.portal.sessions[0].closed)
}

func TestProcessor_AuthFailureContinuesRun(t *testing.T) {
	f := newProcFixture(t)
	f.portal.authErr = ErrSessionAuth

	for _, key := range []string{"11222333000181", "99888777000166"} {
		require.NoError(t, f.staging.SaveAccount(key, &models.AccountFile{
			Geradora: key,
			ListaUCs: map[string][]models.StagedInvoice{
				"10/1111111-1": {{ID: 1, NovaUC: "10/1111111-1", DataReferencia: "03/2025"}},
			},
		}))
	}

	queued, err := f.processor.EnqueueAccounts([]string{"11.222.333/0001-81", "99.888.777/0001-66"})
	require.NoError(t, err)
	report := f.waitForRun(t, queued.RunID)

	// The run completes even though no account could log in; each
	// failure stays scoped to its own account.
	assert.Equal(t, models.RunCompleted, report.Status)
	require.Len(t, report.Accounts, 2)
	for _, acc := range report.Accounts {
		assert.False(t, acc.Success)
		assert.Contains(t, acc.Error, "autenticacao")
	}

	assert.Contains(t, f.alert.accounts, "11.222.333/0001-81")
	assert.Contains(t, f.alert.accounts, "99.888.777/0001-66")
}

func TestProcessor_MissingStagingFileFailsAccount(t *testing.T) {
	f := newProcFixture(t)

	queued, err := f.processor.EnqueueAccounts([]string{"11.222.333/0001-81"})
	require.NoError(t, err)
	report := f.waitForRun(t, queued.RunID)

	assert.Equal(t, models.RunCompleted, report.Status)
	require.Len(t, report.Accounts, 1)
	assert.False(t, report.Accounts[0].Success)
	assert.Contains(t, report.Accounts[0].Error, "staging")

	// No portal session is opened for an account without staged data.
	assert.Empty(t, f.portal.sessions)
	assert.Contains(t, f.alert.accounts, "11.222.333/0001-81")
}

func TestProcessor_EmptyStagedFileCountsAsSuccess(t *testing.T) {
	f := newProcFixture(t)

	// The file exists but the upstream listing left nothing open.
	require.NoError(t, f.staging.SaveAccount("11222333000181", &models.AccountFile{
		Geradora: "11222333000181",
		ListaUCs: map[string][]models.StagedInvoice{},
	}))

	queued, err := f.processor.EnqueueAccounts([]string{"11.222.333/0001-81"})
	require.NoError(t, err)
	report := f.waitForRun(t, queued.RunID)

	require.Len(t, report.Accounts, 1)
	assert.True(t, report.Accounts[0].Success)
	assert.Empty(t, f.portal.sessions)
}

func TestProcessor_UpstreamFailureAbortsRun(t *testing.T) {
	f := newProcFixture(t)
	f.upstream.err = errors.New("listagem fora do ar")

	queued, err := f.processor.EnqueueAll()
	require.NoError(t, err)
	report := f.waitForRun(t, queued.RunID)

	assert.Equal(t, models.RunFailed, report.Status)
	assert.Contains(t, report.Error, "staging")
	assert.Empty(t, report.Accounts)
}

func TestProcessor_NavigationRetryWithinSession(t *testing.T) {
	f := newProcFixture(t)

	require.NoError(t, f.staging.SaveAccount("11222333000181", &models.AccountFile{
		Geradora: "11222333000181",
		ListaUCs: map[string][]models.StagedInvoice{
			"10/1111111-1": {
				{ID: 1, NovaUC: "10/1111111-1", DataReferencia: "03/2025", Valor: "1234.56", DataVencimento: "2025-04-10", SituacaoPagamento: models.PaymentOverdue},
			},
		},
	}))
	f.portal.cards = map[string][]InvoiceCard{
		"10/1111111-1": {
			{Index: 0, Mes: "03/2025", Situacao: models.PaymentOverdue, Valor: "R$ 1.234,56", Vencimento: "2025-04-10"},
		},
	}
	// Fails more times than one PrepareUC retry budget allows, but the
	// in-session second pass clears it.
	f.portal.navErr = map[string]int{"10/1111111-1": 4}

	queued, err := f.processor.EnqueueAccounts([]string{"11.222.333/0001-81"})
	require.NoError(t, err)
	report := f.waitForRun(t, queued.RunID)

	assert.Equal(t, models.RunCompleted, report.Status)
	require.Len(t, report.Accounts, 1)
	require.Len(t, report.Accounts[0].UCs, 1)
	assert.Empty(t, report.Accounts[0].UCs[0].Error)
	assert.True(t, report.Accounts[0].Success)
}

func TestProcessor_GetReportUnknownRun(t *testing.T) {
	f := newProcFixture(t)
	_, err := f.processor.GetReport(context.Background(), "nao-existe")
	assert.Error(t, err)
}
