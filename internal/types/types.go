// =============================================================================
// Ticket Ledger Export - Shared Types
// =============================================================================
//
// This package contains the types shared by the source, exporter, validation
// and delivery packages. Keeping them here avoids import cycles between the
// modules that produce rows and the modules that consume them.
//
// =============================================================================

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// Kind identifies which of the three disjoint transaction sets a record
// belongs to.
type Kind int

const (
	// KindCardPayment is a confirmed (or later refunded) card payment.
	KindCardPayment Kind = iota

	// KindCardRefund is a completed refund of a card payment.
	KindCardRefund

	// KindCashPayment is a confirmed cash payment.
	KindCashPayment
)

// String returns the name used for the kind in fixture files and logs.
func (k Kind) String() string {
	switch k {
	case KindCardPayment:
		return "payment"
	case KindCardRefund:
		return "refund"
	case KindCashPayment:
		return "cash"
	default:
		return "unknown"
	}
}

// MetaPSP is the event metadata key holding the PSP element (cost center).
const MetaPSP = "PSP"

// EventMetadata is the read-only metadata attached to an event.
// An absent key means the dimension is null.
type EventMetadata map[string]string

// PSP returns the PSP element of the event, or "" when the event has none.
func (m EventMetadata) PSP() string {
	return m[MetaPSP]
}

// Transaction is a single monetary record loaded from a source.
// Transactions are immutable once loaded.
type Transaction struct {
	// Kind tells which set the transaction was loaded from.
	Kind Kind

	// ID is the source identifier (payment or refund id).
	ID string

	// Amount is always positive; sources drop zero and negative amounts.
	Amount decimal.Decimal

	// Timestamp is the payment date or refund execution date.
	Timestamp time.Time

	// Provider is the payment provider identifier, e.g. "dibs" or "cash".
	Provider string

	// Organizer is the slug of the organizer owning the event.
	Organizer string

	// EventSlug is the slug of the event the order belongs to.
	EventSlug string

	// OrderCode is the order code assigned by the ticketing platform.
	OrderCode string

	// OrderRef is the order reference used in the export text.
	OrderRef string

	// Email is the address of the payer.
	Email string

	// CardType is the provider-assigned card type. Empty when unknown.
	CardType string

	// Meta is the metadata of the event.
	Meta EventMetadata
}

// OrderReference builds the order reference for an event and order code.
func OrderReference(eventSlug, orderCode string) string {
	if eventSlug == "" {
		return orderCode
	}
	return eventSlug + "-" + orderCode
}

// =============================================================================
// TIME WINDOW
// =============================================================================

// Window is a half-open time interval [Start, End).
// A nil bound leaves that side of the interval open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// NewWindow returns a window with both bounds set.
func NewWindow(start, end time.Time) Window {
	return Window{Start: &start, End: &end}
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && !t.Before(*w.End) {
		return false
	}
	return true
}

// =============================================================================
// OUTPUT ROWS
// =============================================================================

// ColumnCount is the fixed width of an export row.
const ColumnCount = 25

// Row is one line of the export. Rows are arrays, so assigning a row copies
// every field.
type Row [ColumnCount]string

// Column positions used by the exporter. The remaining columns are reserved
// by the receiving system and always left empty.
const (
	ColAccount     = 0
	ColCostCenter  = 1
	ColPSP         = 2
	ColProfitCtr   = 3
	ColOrder       = 4
	ColDebitCredit = 5
	ColAmount      = 6
	ColText        = 8
)

// Header is the literal header row. It is emitted first in every export.
var Header = Row{
	"Artskonto",
	"Omkostningssted",
	"PSP-element",
	"Profitcenter",
	"Ordre",
	"Debet/kredit",
	"Beløb",
	"Næste agent",
	"Tekst",
	"Betalingsart",
	"Påligningsår",
	"Betalingsmodtagernr.",
	"Betalingsmodtagernr.kode",
	"Ydelsesmodtagernr.",
	"Ydelsesmodtagernr.kode",
	"Ydelsesperiode fra",
	"Ydelsesperiode til",
	"Oplysningspligtnr.",
	"Oplysningspligtmodtagernr.kode",
	"Oplysningspligtkode",
	"Netværk",
	"Operation",
	"Mængde",
	"Mængdeenhed",
	"Referencenøgle",
}

// Values of the Debet/kredit column.
const (
	FlagDebit  = "debet"
	FlagCredit = "kredit"
)

// Card type codes assigned by the card payment provider.
const (
	CardTypeCredit = "credit_card"
	CardTypeDebit  = "debit_card"
)
