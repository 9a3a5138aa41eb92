package invoice

import (
	"github.com/geusenergia/energisa-faturas/internal/models"
)

// Classification is the reconciliation verdict for an observed invoice
// against its previously staged record.
type Classification int

const (
	// NoChange means every compared field matches; no submission needed.
	NoChange Classification = iota
	// StatusOnly means only the payment status moved; a lightweight
	// update is enough and no document download is required.
	StatusOnly
	// FullUpdate means the invoice is new or a financial field changed;
	// the document must be (re)downloaded and the full record submitted.
	FullUpdate
)

func (c Classification) String() string {
	switch c {
	case NoChange:
		return "no_change"
	case StatusOnly:
		return "status_only"
	case FullUpdate:
		return "full_update"
	default:
		return "unknown"
	}
}

// Classify compares the freshly observed invoice against the previously
// staged record. Rules, in order: no previous record forces a full
// submission; an amount or due-date difference forces a full submission
// regardless of status; a lone status difference takes the lightweight
// path; otherwise nothing changed.
func Classify(previous *models.StagedInvoice, observed models.InvoiceRecord) Classification {
	if previous == nil {
		return FullUpdate
	}

	if amountsDiffer(previous.Valor, observed.Valor) || previous.DataVencimento != observed.DataVencimento {
		return FullUpdate
	}

	if previous.SituacaoPagamento != observed.Situacao {
		return StatusOnly
	}

	return NoChange
}

// amountsDiffer compares two amounts after normalization so that staged
// values like "0" and observed values like "0.00" do not force a
// spurious re-download.
func amountsDiffer(previous, observed string) bool {
	if previous == observed {
		return false
	}

	prevNorm, errPrev := NormalizeAmount(previous)
	obsNorm, errObs := NormalizeAmount(observed)
	if errPrev != nil || errObs != nil {
		// Unparseable on either side: fall back to the raw comparison.
		return true
	}

	return prevNorm != obsNorm
}
