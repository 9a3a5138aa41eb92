package invoice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeAmount converts a portal amount string ("R$ 1.234,56", "0",
// "1234.56") into the canonical two-decimal dot-separated form the
// billing API expects. Normalization is idempotent: feeding the output
// back in yields the same value.
func NormalizeAmount(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	if s == "" {
		return "", fmt.Errorf("empty amount")
	}

	// Portal values use "." for thousands and "," for decimals. When a
	// comma is present the dots are separators; without one the value is
	// already dot-decimal.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", raw, err)
	}

	return d.StringFixed(2), nil
}
