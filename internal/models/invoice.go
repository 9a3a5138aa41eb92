package models

// PaymentStatus is the payment situation of an invoice as reported by the
// portal card colors and by the upstream listing API.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pendente"
	PaymentDueSoon   PaymentStatus = "a_vencer"
	PaymentOverdue   PaymentStatus = "vencida"
	PaymentScheduled PaymentStatus = "agendado"
	PaymentPaid      PaymentStatus = "paga"
	PaymentUnknown   PaymentStatus = "desconhecida"
)

// Stageable reports whether the status is one of the situations the
// upstream fetch keeps when building staged account files.
func (s PaymentStatus) Stageable() bool {
	switch s {
	case PaymentPending, PaymentDueSoon, PaymentOverdue, PaymentScheduled:
		return true
	}
	return false
}

// TaskName maps a payment status to the staged task identifier
// (fatura_pendente, fatura_a_vencer, ...).
func (s PaymentStatus) TaskName() string {
	return "fatura_" + string(s)
}

// StagedInvoice is a single invoice entry inside a staged account file.
// It is what the upstream API knew about the invoice when the file was
// written; valor and data_vencimento may be absent for pending entries.
type StagedInvoice struct {
	ID                int64         `json:"id"`
	CNPJGeradora      string        `json:"cnpj_geradora,omitempty"`
	NovaUC            string        `json:"nova_uc"`
	DataReferencia    string        `json:"data_referencia"`
	Valor             string        `json:"valor,omitempty"`
	DataVencimento    string        `json:"data_vencimento,omitempty"`
	SituacaoPagamento PaymentStatus `json:"situacao_pagamento"`
	Tarefa            string        `json:"tarefa,omitempty"`
}

// AccountFile is the on-disk schema of a staged account file: the
// geradora CNPJ plus its UC -> invoice-list mapping.
type AccountFile struct {
	Geradora string                     `json:"geradora"`
	ListaUCs map[string][]StagedInvoice `json:"lista_ucs"`
}

// TotalInvoices counts the staged invoices across all UCs.
func (f *AccountFile) TotalInvoices() int {
	total := 0
	for _, invoices := range f.ListaUCs {
		total += len(invoices)
	}
	return total
}

// InvoiceRecord is an invoice as observed on the portal invoice page,
// with monetary and date fields already normalized. Arquivo stays nil
// until the document has been downloaded.
type InvoiceRecord struct {
	ID             int64         `json:"id"`
	NovaUC         string        `json:"nova_uc"`
	DataReferencia string        `json:"data_referencia"` // MM/YYYY
	Valor          string        `json:"valor"`           // "1234.56"
	DataVencimento string        `json:"data_vencimento"` // YYYY-MM-DD
	Situacao       PaymentStatus `json:"situacao_pagamento"`
	Arquivo        []byte        `json:"-"`
	NomeArquivo    string        `json:"nome_arquivo_fatura"`
}

// CreateInvoiceRequest is the full-record payload sent to the billing
// create endpoint. Field names follow the GEUS API contract.
type CreateInvoiceRequest struct {
	ID                int64         `json:"id"`
	NovaUC            string        `json:"nova_uc"`
	DataVencimento    string        `json:"data_vencimento"`
	DataReferencia    string        `json:"data_referencia"`
	Valor             string        `json:"valor"`
	ArquivoFatura     string        `json:"arquivo_fatura"`
	NomeArquivoFatura string        `json:"nome_arquivo_fatura"`
	DataEncontrada    string        `json:"data_encontrada"`
	SituacaoPagamento PaymentStatus `json:"situacao_pagamento"`
	SituacaoEnergiaA  string        `json:"situacao_energia_a"`
	TipoTensao        *string       `json:"tipo_tensao"`
	TipoGD            *string       `json:"tipo_gd"`
}

// UpdateInvoiceRequest is the lightweight status-only payload sent to
// the billing update endpoint.
type UpdateInvoiceRequest struct {
	ID                int64         `json:"id"`
	SituacaoPagamento PaymentStatus `json:"situacao_pagamento"`
}
