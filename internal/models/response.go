package models

import "time"

// ErrorResponse is the standard error body returned by the API
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

// StartSearchResponse is returned when a processing run is accepted
type StartSearchResponse struct {
	Message        string   `json:"message"`
	RunID          string   `json:"run_id"`
	TotalGeradoras int      `json:"total_geradoras"`
	Geradoras      []string `json:"geradoras"`
}

// GeradorasResponse lists the configured accounts
type GeradorasResponse struct {
	Total     int      `json:"total"`
	Geradoras []string `json:"geradoras"`
}

// UnknownCNPJResponse is returned when a trigger names CNPJs that are
// not configured
type UnknownCNPJResponse struct {
	Error            string   `json:"error"`
	GeradorasValidas []string `json:"geradoras_validas"`
}

// Run lifecycle states
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Per-invoice outcomes of a pass
const (
	OutcomeCreated       = "created"
	OutcomeStatusUpdated = "status_updated"
	OutcomeUnchanged     = "unchanged"
	OutcomeFailed        = "failed"
)

// RunReport is the stored result of one pipeline run
type RunReport struct {
	RunID      string          `json:"run_id"`
	Status     string          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Error      string          `json:"error,omitempty"`
	Accounts   []AccountResult `json:"accounts,omitempty"`
}

// AccountResult is the outcome of one geradora within a run
type AccountResult struct {
	CNPJ    string     `json:"cnpj"`
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
	UCs     []UCResult `json:"ucs,omitempty"`
}

// UCResult is the outcome of one sub-account within a geradora
type UCResult struct {
	UC       string          `json:"uc"`
	Skipped  bool            `json:"skipped,omitempty"`
	Error    string          `json:"error,omitempty"`
	Invoices []InvoiceResult `json:"invoices,omitempty"`
}

// InvoiceResult is the outcome of a single invoice within a pass
type InvoiceResult struct {
	ID      int64  `json:"id"`
	UC      string `json:"uc"`
	Mes     string `json:"mes"`
	Tarefa  string `json:"tarefa,omitempty"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Success reports whether the invoice pass ended in a non-failure outcome.
func (r InvoiceResult) Success() bool {
	return r.Outcome != OutcomeFailed
}

// StagingReport summarises the staged account files on disk
type StagingReport struct {
	Accounts      []StagingAccountSummary `json:"accounts"`
	TotalInvoices int                     `json:"total_invoices"`
	TotalUCs      int                     `json:"total_ucs"`
}

// StagingAccountSummary is the per-account slice of a StagingReport
type StagingAccountSummary struct {
	AccountKey string   `json:"account_key"`
	Invoices   int      `json:"invoices"`
	UCs        int      `json:"ucs"`
	Situacoes  []string `json:"situacoes"`
}
