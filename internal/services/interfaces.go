package services

import (
	"context"

	"github.com/geusenergia/energisa-faturas/internal/invoice"
	"github.com/geusenergia/energisa-faturas/internal/models"
)

// CacheServiceInterface defines the interface for cache service
type CacheServiceInterface interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value string) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Health returns cache service health status
	Health() map[string]interface{}
}

// StagingRepositoryInterface defines the staged invoice file repository.
// One JSON file per account, keyed by the digits-only CNPJ, so the
// storage format can be swapped without touching classifier or dispatcher.
type StagingRepositoryInterface interface {
	// LoadAccount loads the staged file for an account key
	LoadAccount(accountKey string) (*models.AccountFile, error)

	// SaveAccount writes the staged file for an account key
	SaveAccount(accountKey string, file *models.AccountFile) error

	// Report summarises all staged files on disk
	Report() (*models.StagingReport, error)
}

// UpstreamServiceInterface defines the upstream invoice-listing client
type UpstreamServiceInterface interface {
	// RefreshStaging fetches the current listing and rewrites the staged
	// account files; returns the number of files written
	RefreshStaging(ctx context.Context) (int, error)
}

// BillingServiceInterface defines the invoice submission dispatcher
type BillingServiceInterface interface {
	// Submit dispatches the appropriate billing request for the
	// classification: nothing for NoChange, a status patch for
	// StatusOnly, the full record for FullUpdate
	Submit(ctx context.Context, classification invoice.Classification, record models.InvoiceRecord) error
}

// MailCodeServiceInterface defines the 2FA code inbox poller
type MailCodeServiceInterface interface {
	// FetchCode checks the inbox once for a fresh verification code
	FetchCode(ctx context.Context) (string, error)

	// WaitForCode polls the inbox until a code arrives or the context
	// deadline expires, invoking resend periodically
	WaitForCode(ctx context.Context, resend func(context.Context) error) (string, error)
}

// AlertServiceInterface is the manager notification sink
type AlertServiceInterface interface {
	invoice.AlertSink

	// AccountFailed notifies that a whole account pass failed
	AccountFailed(ctx context.Context, cnpj string, reason string)
}

// BrowserServiceInterface creates dedicated browser contexts. The portal
// session is stateful, so each account pass gets its own browser; there
// is no pooling.
type BrowserServiceInterface interface {
	// NewBrowser starts a fresh browser for one account pass
	NewBrowser(ctx context.Context) (Browser, error)

	// Health returns browser service health status
	Health() map[string]interface{}
}

// Browser is a minimal automation surface over one browser instance
type Browser interface {
	// Navigate navigates the page to a URL
	Navigate(ctx context.Context, url string) error

	// WaitVisible waits for an element to become visible
	WaitVisible(ctx context.Context, selector string) error

	// Click clicks an element
	Click(ctx context.Context, selector string) error

	// SendKeys types text into an element
	SendKeys(ctx context.Context, selector, text string) error

	// Exists reports whether a selector matches anything right now
	Exists(ctx context.Context, selector string) (bool, error)

	// ContainsText reports whether the visible page text contains the
	// given fragment
	ContainsText(ctx context.Context, text string) (bool, error)

	// OuterHTML returns the full page HTML
	OuterHTML(ctx context.Context) (string, error)

	// Reload reloads the current page
	Reload(ctx context.Context) error

	// DownloadDir is the directory this browser saves downloads into
	DownloadDir() string

	// Close tears the browser down
	Close() error
}

// PortalServiceInterface opens authenticated portal sessions
type PortalServiceInterface interface {
	// OpenSession logs a geradora into the portal, driving the 2FA
	// exchange; the caller owns the returned session
	OpenSession(ctx context.Context, cnpj string) (PortalSession, error)
}

// PortalSession is one authenticated pass over a geradora's UCs
type PortalSession interface {
	// PrepareUC switches the session to a UC and opens its invoice
	// page; returns false when the UC has no invoices yet
	PrepareUC(ctx context.Context, uc string) (bool, error)

	// Cards scrapes the invoice cards currently rendered
	Cards(ctx context.Context) ([]InvoiceCard, error)

	// DownloadAction builds the retry-loop action for one card
	DownloadAction(card InvoiceCard) invoice.DownloadAction

	// Close closes the session's browser
	Close() error
}

// ProcessorServiceInterface runs and tracks processing pipelines
type ProcessorServiceInterface interface {
	// Accounts returns the configured geradora CNPJs
	Accounts() []string

	// MatchAccounts resolves requested CNPJs against the configured
	// list, comparing digits only
	MatchAccounts(requested []string) (matched []string, unknown []string)

	// EnqueueAll queues a run over every configured account
	EnqueueAll() (*models.RunReport, error)

	// EnqueueAccounts queues a run over the given accounts
	EnqueueAccounts(cnpjs []string) (*models.RunReport, error)

	// GetReport fetches a stored run report by id
	GetReport(ctx context.Context, runID string) (*models.RunReport, error)

	// Health returns processor health status
	Health() map[string]interface{}

	// Close stops the background runner
	Close() error
}
