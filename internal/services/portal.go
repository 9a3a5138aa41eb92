package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/config"
	"github.com/geusenergia/energisa-faturas/internal/invoice"
	"github.com/geusenergia/energisa-faturas/internal/models"
)

// ErrSessionAuth means the portal login failed; the account pass is
// abandoned but the run continues with the next geradora.
var ErrSessionAuth = errors.New("falha na autenticacao no portal")

// ErrNavigation means a portal page never reached the expected state
var ErrNavigation = errors.New("falha de navegacao no portal")

// Portal selectors. The portal is a SPA, so most of these are stable
// component classes rather than ids.
const (
	selLoginCNPJ     = `input[name="documento"]`
	selLoginSubmit   = `//button[contains(., "ENTRAR")]`
	selPhoneOption   = `input[name="canalEnvio"]`
	selAdvance       = `//button[contains(., "AVANÇAR")]`
	selCodeResend    = `//button[contains(., "Reenviar")]`
	selUCFilter      = `input[placeholder*="unidade consumidora"]`
	selUCFirstResult = `.uc-list__item`
	selCardBilling   = `.card-billing`
	selShowMore      = `//button[contains(., "Mostrar mais faturas")]`
	selDownloadBtn   = `button[data-pix="false"]`
	selWelcomeEmpty  = `.welcome-screen`
)

// Code entry is four single-digit inputs filled left to right.
var codeInputs = [4]string{
	`input[name="input1"]`,
	`input[name="input2"]`,
	`input[name="input3"]`,
	`input[name="input4"]`,
}

// The download failure modal is recognized by its message text, which
// has outlived the portal's modal component changes. Dismissal is tried
// in order.
const downloadErrorText = "Houve um erro na sua tentativa de download"

var modalCloseSelectors = []string{`button.swal2-confirm`, `.modal--error button`, `.alert-danger .close`}

var monthNumbers = map[string]string{
	"jan": "01", "fev": "02", "mar": "03", "abr": "04",
	"mai": "05", "jun": "06", "jul": "07", "ago": "08",
	"set": "09", "out": "10", "nov": "11", "dez": "12",
}

// InvoiceCard is one invoice card scraped from the portal invoice page
type InvoiceCard struct {
	Index      int
	Mes        string // MM/YYYY
	Situacao   models.PaymentStatus
	Valor      string // raw portal text, e.g. "R$ 1.234,56"
	Vencimento string // YYYY-MM-DD, empty when the card shows none
}

// PortalService opens authenticated Energisa sessions
type PortalService struct {
	config   *config.Config
	logger   *logrus.Logger
	browsers BrowserServiceInterface
	mail     MailCodeServiceInterface
}

// NewPortalService creates a new portal service
func NewPortalService(cfg *config.Config, logger *logrus.Logger, browsers BrowserServiceInterface, mail MailCodeServiceInterface) *PortalService {
	return &PortalService{
		config:   cfg,
		logger:   logger,
		browsers: browsers,
		mail:     mail,
	}
}

// OpenSession logs a geradora into the portal. The login triggers an
// SMS code to the account phone; the code arrives through the mail
// service. Any failure here closes the browser and wraps ErrSessionAuth.
func (p *PortalService) OpenSession(ctx context.Context, cnpj string) (PortalSession, error) {
	browser, err := p.browsers.NewBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionAuth, err)
	}

	session := &portalSession{
		config:  p.config,
		logger:  p.logger.WithField("geradora", cnpj),
		browser: browser,
	}
	if err := session.authenticate(ctx, cnpj, p.mail); err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("%w: %v", ErrSessionAuth, err)
	}
	return session, nil
}

// portalSession is one authenticated pass over a geradora's UCs
type portalSession struct {
	config  *config.Config
	logger  *logrus.Entry
	browser Browser
}

func (s *portalSession) authenticate(ctx context.Context, cnpj string, mail MailCodeServiceInterface) error {
	b := s.browser
	cfg := s.config.Portal

	if err := b.Navigate(ctx, cfg.LoginURL); err != nil {
		return err
	}
	if err := b.WaitVisible(ctx, selLoginCNPJ); err != nil {
		return err
	}
	if err := b.SendKeys(ctx, selLoginCNPJ, cnpj); err != nil {
		return err
	}
	if err := b.Click(ctx, selLoginSubmit); err != nil {
		return err
	}

	// Channel selection: the first option is the registered phone.
	if err := b.WaitVisible(ctx, selPhoneOption); err != nil {
		return err
	}
	if err := b.Click(ctx, selPhoneOption); err != nil {
		return err
	}
	if err := b.Click(ctx, selAdvance); err != nil {
		return err
	}

	authCtx, cancel := context.WithTimeout(ctx, cfg.AuthTimeout)
	defer cancel()

	code, err := mail.WaitForCode(authCtx, func(rctx context.Context) error {
		return b.Click(rctx, selCodeResend)
	})
	if err != nil {
		return err
	}
	if len(code) != len(codeInputs) {
		return fmt.Errorf("codigo recebido com tamanho inesperado: %q", code)
	}

	s.logger.Debug("Codigo de verificacao recebido")
	for i, sel := range codeInputs {
		if err := b.SendKeys(ctx, sel, string(code[i])); err != nil {
			return err
		}
	}
	if err := b.Click(ctx, selAdvance); err != nil {
		return err
	}
	if err := b.WaitVisible(ctx, selUCFilter); err != nil {
		return err
	}

	s.logger.Info("Sessao autenticada no portal")
	return nil
}

// PrepareUC switches the session to a UC and opens its invoice page.
// Navigation is retried a bounded number of times; a UC whose invoice
// page shows the empty-account welcome screen returns false.
func (s *portalSession) PrepareUC(ctx context.Context, uc string) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= s.config.Portal.NavRetries; attempt++ {
		hasInvoices, err := s.tryPrepareUC(ctx, uc)
		if err == nil {
			return hasInvoices, nil
		}
		lastErr = err
		s.logger.WithError(err).WithFields(logrus.Fields{
			"uc":        uc,
			"tentativa": attempt,
		}).Warn("Falha ao abrir pagina de faturas")

		if sleepErr := sleepContext(ctx, s.config.Portal.StepDelay); sleepErr != nil {
			return false, sleepErr
		}
	}
	return false, fmt.Errorf("%w: %v", ErrNavigation, lastErr)
}

func (s *portalSession) tryPrepareUC(ctx context.Context, uc string) (bool, error) {
	b := s.browser
	cfg := s.config.Portal

	if err := b.Navigate(ctx, cfg.UCListURL); err != nil {
		return false, err
	}
	if err := b.WaitVisible(ctx, selUCFilter); err != nil {
		return false, err
	}
	if err := b.SendKeys(ctx, selUCFilter, uc); err != nil {
		return false, err
	}
	if err := b.Click(ctx, selUCFirstResult); err != nil {
		return false, err
	}
	if err := b.Click(ctx, selAdvance); err != nil {
		return false, err
	}
	if err := sleepContext(ctx, cfg.StepDelay); err != nil {
		return false, err
	}

	if err := b.Navigate(ctx, cfg.InvoicesURL); err != nil {
		return false, err
	}

	// Accounts with no invoices yet land on a welcome screen instead of
	// the card list.
	if empty, err := b.Exists(ctx, selWelcomeEmpty); err == nil && empty {
		return false, nil
	}
	if err := b.WaitVisible(ctx, selCardBilling); err != nil {
		return false, err
	}

	// Older invoices hide behind a show-more button.
	if err := b.Click(ctx, selShowMore); err == nil {
		_ = sleepContext(ctx, cfg.StepDelay)
	}
	return true, nil
}

// Cards scrapes the invoice cards currently rendered
func (s *portalSession) Cards(ctx context.Context) ([]InvoiceCard, error) {
	html, err := s.browser.OuterHTML(ctx)
	if err != nil {
		return nil, err
	}
	return parseInvoiceCards(html)
}

// DownloadAction builds the retry-loop action for one card
func (s *portalSession) DownloadAction(card InvoiceCard) invoice.DownloadAction {
	return &cardDownloadAction{
		session: s,
		card:    card,
	}
}

// Close closes the session's browser
func (s *portalSession) Close() error {
	return s.browser.Close()
}

// parseInvoiceCards extracts the invoice cards from the invoice page
// HTML. Cards missing a readable reference month are skipped.
func parseInvoiceCards(html string) ([]InvoiceCard, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("erro ao interpretar pagina de faturas: %w", err)
	}

	var cards []InvoiceCard
	doc.Find(selCardBilling).Each(func(i int, sel *goquery.Selection) {
		mes, ok := parseReferenceMonth(sel.Find(".card-billing__date").Text())
		if !ok {
			return
		}
		cards = append(cards, InvoiceCard{
			Index:      i,
			Mes:        mes,
			Situacao:   statusFromCardClass(sel.Find(".card-billing__top")),
			Valor:      strings.TrimSpace(sel.Find(".card-billing__price").Text()),
			Vencimento: parseDueDate(sel.Find(".card-billing__due-date").Text()),
		})
	})
	return cards, nil
}

// parseReferenceMonth turns card date text like "Março 2025" or
// "MAR/2025" into "03/2025".
func parseReferenceMonth(text string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	cleaned = strings.NewReplacer("/", " ", "ç", "c").Replace(cleaned)
	fields := strings.Fields(cleaned)
	if len(fields) < 2 {
		return "", false
	}

	monthName := fields[0]
	year := fields[len(fields)-1]
	if len(monthName) < 3 || len(year) != 4 {
		return "", false
	}
	month, ok := monthNumbers[monthName[:3]]
	if !ok {
		return "", false
	}
	return month + "/" + year, true
}

// statusFromCardClass maps the card header modifier class to a payment
// status: green means paid, orange due soon, red overdue.
func statusFromCardClass(sel *goquery.Selection) models.PaymentStatus {
	class, _ := sel.Attr("class")
	switch {
	case strings.Contains(class, "card-billing__top--green"):
		return models.PaymentPaid
	case strings.Contains(class, "card-billing__top--orange"):
		return models.PaymentDueSoon
	case strings.Contains(class, "card-billing__top--red"):
		return models.PaymentOverdue
	}
	return models.PaymentUnknown
}

// parseDueDate turns "10/04/2025" into "2025-04-10"
func parseDueDate(text string) string {
	cleaned := strings.TrimSpace(text)
	if idx := strings.LastIndex(cleaned, " "); idx >= 0 {
		cleaned = cleaned[idx+1:]
	}
	parsed, err := time.Parse("02/01/2006", cleaned)
	if err != nil {
		return ""
	}
	return parsed.Format("2006-01-02")
}

// cardDownloadAction drives one card's document download. Completion is
// observed through the browser download directory; Chrome keeps partial
// files with a .crdownload suffix until they finish.
type cardDownloadAction struct {
	session  *portalSession
	card     InvoiceCard
	baseline map[string]bool
	artifact string
}

func (a *cardDownloadAction) Trigger(ctx context.Context) error {
	a.baseline = a.listFiles()
	a.artifact = ""

	selector := fmt.Sprintf("%s:nth-of-type(%d) %s", selCardBilling, a.card.Index+1, selDownloadBtn)
	return a.session.browser.Click(ctx, selector)
}

func (a *cardDownloadAction) Poll(ctx context.Context) (invoice.PollResult, error) {
	if found, err := a.session.browser.ContainsText(ctx, downloadErrorText); err == nil && found {
		return invoice.PollErrorModal, nil
	}

	for name := range a.listFiles() {
		if a.baseline[name] || strings.HasSuffix(name, ".crdownload") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		a.artifact = name
		return invoice.PollComplete, nil
	}
	return invoice.PollNothing, nil
}

func (a *cardDownloadAction) Artifact(ctx context.Context) ([]byte, error) {
	if a.artifact == "" {
		return nil, fmt.Errorf("nenhum arquivo baixado para a fatura %s", a.card.Mes)
	}
	path := filepath.Join(a.session.browser.DownloadDir(), a.artifact)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler arquivo baixado: %w", err)
	}
	return data, nil
}

func (a *cardDownloadAction) DismissError(ctx context.Context) error {
	var lastErr error
	for _, sel := range modalCloseSelectors {
		if err := a.session.browser.Click(ctx, sel); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("erro ao fechar modal de falha: %w", lastErr)
}

func (a *cardDownloadAction) Reload(ctx context.Context) error {
	return a.session.browser.Reload(ctx)
}

func (a *cardDownloadAction) listFiles() map[string]bool {
	files := make(map[string]bool)
	entries, err := os.ReadDir(a.session.browser.DownloadDir())
	if err != nil {
		return files
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			files[entry.Name()] = true
		}
	}
	return files
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
