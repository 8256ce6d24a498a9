package notify

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders a decimal as pt-BR currency, e.g. "R$ 1.260,00".
func FormatBRL(v decimal.Decimal) string {
	f, _ := v.Round(2).Float64()
	return brPrinter.Sprintf("R$ %.2f", f)
}
