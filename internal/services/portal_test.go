package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geusenergia/energisa-faturas/internal/models"
)

const invoicePageHTML = `
<html><body>
  <div class="card-billing">
    <div class="card-billing__top card-billing__top--red">
      <span class="card-billing__date">Março 2025</span>
    </div>
    <span class="card-billing__price">R$ 1.234,56</span>
    <span class="card-billing__due-date">Vencimento 10/04/2025</span>
    <button data-pix="false">Baixar fatura</button>
  </div>
  <div class="card-billing">
    <div class="card-billing__top card-billing__top--orange">
      <span class="card-billing__date">ABR/2025</span>
    </div>
    <span class="card-billing__price">R$ 987,00</span>
    <span class="card-billing__due-date">12/05/2025</span>
    <button data-pix="false">Baixar fatura</button>
  </div>
  <div class="card-billing">
    <div class="card-billing__top card-billing__top--green">
      <span class="card-billing__date">Fevereiro 2025</span>
    </div>
    <span class="card-billing__price">R$ 500,00</span>
    <span class="card-billing__due-date">10/03/2025</span>
  </div>
  <div class="card-billing">
    <div class="card-billing__top">
      <span class="card-billing__date">???</span>
    </div>
  </div>
</body></html>`

func TestParseInvoiceCards(t *testing.T) {
	cards, err := parseInvoiceCards(invoicePageHTML)
	require.NoError(t, err)
	// The card with an unreadable reference month is dropped.
	require.Len(t, cards, 3)

	assert.Equal(t, 0, cards[0].Index)
	assert.Equal(t, "03/2025", cards[0].Mes)
	assert.Equal(t, models.PaymentOverdue, cards[0].Situacao)
	assert.Equal(t, "R$ 1.234,56", cards[0].Valor)
	assert.Equal(t, "2025-04-10", cards[0].Vencimento)

	assert.Equal(t, "04/2025", cards[1].Mes)
	assert.Equal(t, models.PaymentDueSoon, cards[1].Situacao)
	assert.Equal(t, "2025-05-12", cards[1].Vencimento)

	assert.Equal(t, "02/2025", cards[2].Mes)
	assert.Equal(t, models.PaymentPaid, cards[2].Situacao)
}

func TestParseReferenceMonth(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Março 2025", "03/2025", true},
		{"março 2025", "03/2025", true},
		{"MAR/2025", "03/2025", true},
		{"dezembro 2024", "12/2024", true},
		{"  Janeiro   2026  ", "01/2026", true},
		{"2025", "", false},
		{"xyz 2025", "", false},
		{"maio 25", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := parseReferenceMonth(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseDueDate(t *testing.T) {
	assert.Equal(t, "2025-04-10", parseDueDate("10/04/2025"))
	assert.Equal(t, "2025-04-10", parseDueDate("Vencimento 10/04/2025"))
	assert.Equal(t, "", parseDueDate("sem vencimento"))
	assert.Equal(t, "", parseDueDate(""))
}

func TestStatusFromUnknownCardClass(t *testing.T) {
	cards, err := parseInvoiceCards(`
		<div class="card-billing">
		  <div class="card-billing__top card-billing__top--purple">
		    <span class="card-billing__date">jan 2025</span>
		  </div>
		</div>`)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, models.PaymentUnknown, cards[0].Situacao)
}
