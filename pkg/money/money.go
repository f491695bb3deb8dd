// Package money formats FCFA amounts for customer-facing documents.
package money

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/angelmondragon/labstore-backend/pkg/enums"
)

var printer = message.NewPrinter(language.French)

// Format renders amount with French digit grouping, e.g. 1 234 567 FCFA.
// The narrow no-break space emitted by the French locale is normalized to a
// plain space so renderers without full Unicode fonts stay readable.
func Format(amount int64) string {
	return Number(amount) + " " + enums.CurrencyXOF.Label()
}

// Number renders amount with French digit grouping and no currency label.
func Number(amount int64) string {
	out := printer.Sprintf("%d", amount)
	return strings.NewReplacer("\u202f", " ", "\u00a0", " ").Replace(out)
}
