// =============================================================================
// Ticket Ledger Export - Localization
// =============================================================================
//
// This package turns a language tag into an explicit Localizer value. The
// Localizer formats amounts, translates description templates and labels card
// types. It is created once from configuration and passed to the exporter, so
// nothing in the export depends on process-wide locale state.
//
// TRANSLATIONS:
//   English is the source language. Danish translations live in a private
//   message catalog built by newCatalog.
//
// =============================================================================

package l10n

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"golang.org/x/text/number"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// Message keys. They double as the English text.
const (
	MsgTicketSaleCard   = "Ticket sale (%s): %s"
	MsgTicketSale       = "Ticket sale: %s"
	MsgTicketRefundCard = "Ticket refund (%s): %s"
	MsgTicketRefund     = "Ticket refund: %s"
	MsgCashPayment      = "Cash payment (%s): %s"
	MsgOrderExport      = "Order export from %s"
	MsgCredit           = "credit"
	MsgDebit            = "debit"
)

var danish = map[string]string{
	MsgTicketSaleCard:   "Billetsalg (%s): %s",
	MsgTicketSale:       "Billetsalg: %s",
	MsgTicketRefundCard: "Billetrefusion (%s): %s",
	MsgTicketRefund:     "Billetrefusion: %s",
	MsgCashPayment:      "Kontant betaling (%s): %s",
	MsgOrderExport:      "Ordreeksport fra %s",
	MsgCredit:           "kredit",
	MsgDebit:            "debet",
}

// amountScale is the number of decimals in formatted amounts.
const amountScale = 2

// =============================================================================
// LOCALIZER
// =============================================================================

// Localizer holds everything that depends on the export language.
type Localizer struct {
	tag       language.Tag
	printer   *message.Printer
	grouping  bool
	cardTypes map[string]string

	// Separators as rendered by the printer, used by ParseAmount.
	decimalSep string
	groupSep   string
}

// Option configures a Localizer.
type Option func(*Localizer)

// WithGrouping enables thousands separators in formatted amounts.
func WithGrouping(enabled bool) Option {
	return func(l *Localizer) { l.grouping = enabled }
}

// WithCardTypeLabels replaces the card type code → label mapping. Labels are
// message keys and get translated.
func WithCardTypeLabels(labels map[string]string) Option {
	return func(l *Localizer) { l.cardTypes = labels }
}

// New creates a Localizer for the given language.
func New(tag language.Tag, opts ...Option) *Localizer {
	l := &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(newCatalog())),
		cardTypes: map[string]string{
			types.CardTypeCredit: MsgCredit,
			types.CardTypeDebit:  MsgDebit,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.decimalSep, l.groupSep = l.separators()
	return l
}

// Parse creates a Localizer from a BCP 47 language string such as "da" or
// "en-GB".
func Parse(lang string, opts ...Option) (*Localizer, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", lang, err)
	}
	return New(tag, opts...), nil
}

// Language returns the language tag of the Localizer.
func (l *Localizer) Language() language.Tag {
	return l.tag
}

// newCatalog builds the message catalog with all translations.
func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range danish {
		// SetString only fails on malformed messages; these are literals.
		_ = b.SetString(language.Danish, key, msg)
	}
	return b
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatAmount renders an amount with exactly two decimals using the
// separators of the Localizer's language.
func (l *Localizer) FormatAmount(amount decimal.Decimal) string {
	opts := []number.Option{number.Scale(amountScale)}
	if !l.grouping {
		opts = append(opts, number.NoSeparator())
	}
	return l.printer.Sprint(number.Decimal(amount.Round(amountScale).InexactFloat64(), opts...))
}

// ParseAmount is the inverse of FormatAmount.
func (l *Localizer) ParseAmount(s string) (decimal.Decimal, error) {
	normalized := strings.TrimSpace(s)
	if l.groupSep != "" {
		normalized = strings.ReplaceAll(normalized, l.groupSep, "")
	}
	if l.decimalSep != "." {
		normalized = strings.ReplaceAll(normalized, l.decimalSep, ".")
	}
	// Some languages render the minus sign as U+2212.
	normalized = strings.ReplaceAll(normalized, "−", "-")

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// separators probes the printer for the decimal and grouping separators.
func (l *Localizer) separators() (decimalSep, groupSep string) {
	probe := []rune(l.printer.Sprint(number.Decimal(1234.5, number.Scale(amountScale))))

	// The probe renders as 1<group>234<decimal>50.
	decimalSep = "."
	if len(probe) >= 4 {
		decimalSep = string(probe[len(probe)-3])
	}
	if len(probe) >= 8 {
		groupSep = string(probe[1 : len(probe)-6])
	}
	return decimalSep, groupSep
}

// CardType returns the human readable label of a card type code. Unknown
// codes are returned unchanged.
func (l *Localizer) CardType(code string) string {
	label, ok := l.cardTypes[code]
	if !ok {
		return code
	}
	return l.printer.Sprintf(label)
}

// Sprintf translates key and formats it with args.
func (l *Localizer) Sprintf(key string, args ...interface{}) string {
	return l.printer.Sprintf(key, args...)
}
