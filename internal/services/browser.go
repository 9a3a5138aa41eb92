package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/config"
)

// BrowserService creates browser instances for portal sessions
type BrowserService struct {
	config *config.Config
	logger *logrus.Logger
}

// NewBrowserService creates a new browser service
func NewBrowserService(cfg *config.Config, logger *logrus.Logger) *BrowserService {
	return &BrowserService{
		config: cfg,
		logger: logger,
	}
}

// NewBrowser starts a fresh browser with its own download directory.
// The portal is stateful across navigation, so sessions never share a
// browser instance.
func (b *BrowserService) NewBrowser(ctx context.Context) (Browser, error) {
	downloadDir, err := os.MkdirTemp(b.config.Browser.DownloadDir, "faturas-*")
	if err != nil {
		return nil, fmt.Errorf("erro ao criar diretorio de download: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Browser.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1366, 768),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser and point downloads at the session directory.
	err = chromedp.Run(browserCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir),
	)
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		_ = os.RemoveAll(downloadDir)
		return nil, fmt.Errorf("erro ao iniciar navegador: %w", err)
	}

	b.logger.WithField("download_dir", downloadDir).Debug("Navegador iniciado")

	return &chromedpBrowser{
		ctx:         browserCtx,
		cancels:     []context.CancelFunc{cancelBrowser, cancelAlloc},
		downloadDir: downloadDir,
		pageTimeout: b.config.Browser.PageTimeout,
		logger:      b.logger,
	}, nil
}

// Health returns browser service health status
func (b *BrowserService) Health() map[string]interface{} {
	return map[string]interface{}{
		"status":   "healthy",
		"headless": b.config.Browser.Headless,
	}
}

// chromedpBrowser implements Browser over a chromedp context
type chromedpBrowser struct {
	ctx         context.Context
	cancels     []context.CancelFunc
	downloadDir string
	pageTimeout time.Duration
	logger      *logrus.Logger
}

func (c *chromedpBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := c.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(c.ctx, deadline)
		defer cancel()
	} else {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(c.ctx, c.pageTimeout)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate navigates the page to a URL
func (c *chromedpBrowser) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("erro ao navegar para %s: %w", url, err)
	}
	return nil
}

// queryOption picks the chromedp matcher: XPath expressions (leading
// "//") go through search, everything else is a CSS query.
func queryOption(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// WaitVisible waits for an element to become visible
func (c *chromedpBrowser) WaitVisible(ctx context.Context, selector string) error {
	if err := c.run(ctx, chromedp.WaitVisible(selector, queryOption(selector))); err != nil {
		return fmt.Errorf("elemento %s nao ficou visivel: %w", selector, err)
	}
	return nil
}

// Click clicks an element
func (c *chromedpBrowser) Click(ctx context.Context, selector string) error {
	if err := c.run(ctx, chromedp.Click(selector, queryOption(selector))); err != nil {
		return fmt.Errorf("erro ao clicar em %s: %w", selector, err)
	}
	return nil
}

// SendKeys types text into an element
func (c *chromedpBrowser) SendKeys(ctx context.Context, selector, text string) error {
	if err := c.run(ctx, chromedp.SendKeys(selector, text, queryOption(selector))); err != nil {
		return fmt.Errorf("erro ao digitar em %s: %w", selector, err)
	}
	return nil
}

// Exists reports whether a selector matches anything right now
func (c *chromedpBrowser) Exists(ctx context.Context, selector string) (bool, error) {
	var count int
	script := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := c.run(ctx, chromedp.Evaluate(script, &count)); err != nil {
		return false, fmt.Errorf("erro ao consultar %s: %w", selector, err)
	}
	return count > 0, nil
}

// ContainsText reports whether the visible page text contains the fragment
func (c *chromedpBrowser) ContainsText(ctx context.Context, text string) (bool, error) {
	var found bool
	script := fmt.Sprintf(`document.body ? document.body.innerText.includes(%q) : false`, text)
	if err := c.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return false, fmt.Errorf("erro ao inspecionar texto da pagina: %w", err)
	}
	return found, nil
}

// OuterHTML returns the full page HTML
func (c *chromedpBrowser) OuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("erro ao capturar HTML: %w", err)
	}
	return html, nil
}

// Reload reloads the current page
func (c *chromedpBrowser) Reload(ctx context.Context) error {
	if err := c.run(ctx, chromedp.Reload()); err != nil {
		return fmt.Errorf("erro ao recarregar pagina: %w", err)
	}
	return nil
}

// DownloadDir is the directory this browser saves downloads into
func (c *chromedpBrowser) DownloadDir() string {
	return c.downloadDir
}

// Close tears the browser down and removes its download directory
func (c *chromedpBrowser) Close() error {
	for _, cancel := range c.cancels {
		cancel()
	}
	c.logger.WithField("download_dir", c.downloadDir).Debug("Navegador encerrado")
	return os.RemoveAll(c.downloadDir)
}
