package exporter

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pretix-unofficial/pretix-itk-export/internal/l10n"
	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// =============================================================================
// ROW SYNTHESIS
// =============================================================================

// postingKind selects the wording and flag direction of a group row.
type postingKind int

const (
	postingSale postingKind = iota
	postingRefund
)

// FormatData builds the complete row sequence: the header, one row per
// payment group, one row per refund group and two rows per cash payment.
//
// PARAMETERS:
//   - payments: card payments in source order
//   - refunds: card refunds in source order
//   - cash: cash payments in source order
//
// RETURNS:
//   - The rows, header first. An empty input yields the header only.
func (e *Exporter) FormatData(payments, refunds, cash []types.Transaction) ([]types.Row, error) {
	if !e.granularity.known() {
		return nil, e.notImplemented()
	}

	rows := []types.Row{types.Header}

	paymentGroups, err := e.Group(payments)
	if err != nil {
		return nil, err
	}
	for _, g := range paymentGroups {
		rows = append(rows, e.groupRow(g, postingSale))
	}

	refundGroups, err := e.Group(refunds)
	if err != nil {
		return nil, err
	}
	for _, g := range refundGroups {
		rows = append(rows, e.groupRow(g, postingRefund))
	}

	for _, tx := range cash {
		debit, credit := e.cashRows(tx)
		rows = append(rows, debit, credit)
	}

	e.logger.Debug("synthesized rows",
		"grouping", e.granularity,
		"payment_groups", len(paymentGroups),
		"refund_groups", len(refundGroups),
		"cash_pairs", len(cash),
	)

	return rows, nil
}

// groupRow turns a group into a single row. The debit leg of a sale is
// flagged debet and its credit leg kredit; refunds reverse both flags.
func (e *Exporter) groupRow(g *Group, kind postingKind) types.Row {
	var row types.Row

	amount := decimal.Zero
	for _, tx := range g.Transactions {
		amount = amount.Add(tx.Amount)
	}

	row[types.ColAccount] = g.Key.Account
	row[types.ColPSP] = g.Key.CostCenter
	row[types.ColDebitCredit] = flag(g.Key.Leg, kind)
	row[types.ColAmount] = e.l10n.FormatAmount(amount)
	row[types.ColText] = e.describe(kind, g.Key.CardType, orderRefs(g.Transactions))

	return row
}

// cashRows builds the two legs of a cash payment. The credit row is a copy of
// the debit row with account, PSP element and flag replaced.
func (e *Exporter) cashRows(tx types.Transaction) (debit, credit types.Row) {
	debit[types.ColAccount] = e.cashAccount
	debit[types.ColDebitCredit] = types.FlagDebit
	debit[types.ColAmount] = e.l10n.FormatAmount(tx.Amount)
	debit[types.ColText] = e.l10n.Sprintf(l10n.MsgCashPayment, tx.Email, tx.OrderRef)

	credit = debit
	credit[types.ColAccount] = e.creditAccount
	credit[types.ColPSP] = tx.Meta.PSP()
	credit[types.ColDebitCredit] = types.FlagCredit

	return debit, credit
}

func flag(leg Leg, kind postingKind) string {
	debit := leg == LegDebit
	if kind == postingRefund {
		debit = !debit
	}
	if debit {
		return types.FlagDebit
	}
	return types.FlagCredit
}

func (e *Exporter) describe(kind postingKind, cardType, refs string) string {
	switch {
	case kind == postingSale && cardType != "":
		return e.l10n.Sprintf(l10n.MsgTicketSaleCard, e.l10n.CardType(cardType), refs)
	case kind == postingSale:
		return e.l10n.Sprintf(l10n.MsgTicketSale, refs)
	case cardType != "":
		return e.l10n.Sprintf(l10n.MsgTicketRefundCard, e.l10n.CardType(cardType), refs)
	default:
		return e.l10n.Sprintf(l10n.MsgTicketRefund, refs)
	}
}

// orderRefs joins the distinct order references of the transactions in
// first-seen order.
func orderRefs(transactions []types.Transaction) string {
	seen := make(map[string]bool, len(transactions))
	refs := make([]string, 0, len(transactions))
	for _, tx := range transactions {
		if seen[tx.OrderRef] {
			continue
		}
		seen[tx.OrderRef] = true
		refs = append(refs, tx.OrderRef)
	}
	return strings.Join(refs, ", ")
}
