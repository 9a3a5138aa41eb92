package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geusenergia/energisa-faturas/internal/models"
)

func observedRecord() models.InvoiceRecord {
	return models.InvoiceRecord{
		ID:             42,
		NovaUC:         "10/1234567-1",
		DataReferencia: "03/2025",
		Valor:          "182.90",
		DataVencimento: "2025-03-20",
		Situacao:       models.PaymentOverdue,
	}
}

func stagedFrom(obs models.InvoiceRecord) *models.StagedInvoice {
	return &models.StagedInvoice{
		ID:                obs.ID,
		NovaUC:            obs.NovaUC,
		DataReferencia:    obs.DataReferencia,
		Valor:             obs.Valor,
		DataVencimento:    obs.DataVencimento,
		SituacaoPagamento: obs.Situacao,
	}
}

func TestClassifyNoPrevious(t *testing.T) {
	assert.Equal(t, FullUpdate, Classify(nil, observedRecord()))

	// Regardless of observed contents.
	assert.Equal(t, FullUpdate, Classify(nil, models.InvoiceRecord{}))
}

func TestClassifyNoChange(t *testing.T) {
	obs := observedRecord()
	assert.Equal(t, NoChange, Classify(stagedFrom(obs), obs))
}

func TestClassifyStatusOnly(t *testing.T) {
	obs := observedRecord()
	prev := stagedFrom(obs)
	prev.SituacaoPagamento = models.PaymentDueSoon

	assert.Equal(t, StatusOnly, Classify(prev, obs))
}

func TestClassifyAmountChanged(t *testing.T) {
	obs := observedRecord()
	prev := stagedFrom(obs)
	prev.Valor = "200.00"

	assert.Equal(t, FullUpdate, Classify(prev, obs))
}

func TestClassifyDueDateChanged(t *testing.T) {
	obs := observedRecord()
	prev := stagedFrom(obs)
	prev.DataVencimento = "2025-04-20"

	assert.Equal(t, FullUpdate, Classify(prev, obs))
}

func TestClassifyFinancialChangeWinsOverStatus(t *testing.T) {
	// Amount and status both moved: the heavy path is taken.
	obs := observedRecord()
	prev := stagedFrom(obs)
	prev.Valor = "200.00"
	prev.SituacaoPagamento = models.PaymentPaid

	assert.Equal(t, FullUpdate, Classify(prev, obs))
}

func TestClassifyEquivalentAmountForms(t *testing.T) {
	// Staged "0" and observed "0.00" are the same value; must not force
	// a re-download.
	obs := observedRecord()
	obs.Valor = "0.00"
	prev := stagedFrom(obs)
	prev.Valor = "0"

	assert.Equal(t, NoChange, Classify(prev, obs))
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "no_change", NoChange.String())
	assert.Equal(t, "status_only", StatusOnly.String())
	assert.Equal(t, "full_update", FullUpdate.String())
}
