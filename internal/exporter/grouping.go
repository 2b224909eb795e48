package exporter

import (
	"fmt"
	"strings"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// =============================================================================
// GROUPING GRANULARITY
// =============================================================================

// Granularity decides which parts of the accounting key take part in
// grouping.
type Granularity int

const (
	// Ungrouped emits one row pair per transaction.
	Ungrouped Granularity = iota

	// GroupedByAccountAndOrder groups by account, cost center, card type and
	// order reference. This is the default.
	GroupedByAccountAndOrder

	// GroupedByAccount groups by account and cost center only. Several orders
	// collapse into one row listing all order references.
	GroupedByAccount
)

// String returns the configuration name of the granularity.
func (g Granularity) String() string {
	switch g {
	case Ungrouped:
		return "ungrouped"
	case GroupedByAccountAndOrder:
		return "line"
	case GroupedByAccount:
		return "grouped"
	default:
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
}

func (g Granularity) known() bool {
	return g >= Ungrouped && g <= GroupedByAccount
}

// ParseGranularity parses a configuration name. The empty string selects the
// default line-level grouping.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "line", "grouped_by_account_and_order":
		return GroupedByAccountAndOrder, nil
	case "ungrouped":
		return Ungrouped, nil
	case "grouped", "grouped_by_account":
		return GroupedByAccount, nil
	default:
		return 0, fmt.Errorf("%w: unknown grouping %q", ErrConfiguration, s)
	}
}

// =============================================================================
// ACCOUNTING KEY
// =============================================================================

// Leg is one side of a double-entry posting.
type Leg int

const (
	LegDebit Leg = iota
	LegCredit
)

// AccountingKey identifies a group. Empty strings stand for null dimensions.
type AccountingKey struct {
	Account    string
	CostCenter string
	CardType   string
	OrderRef   string
	Leg        Leg

	// seq separates transactions that must never be merged.
	seq int
}

// Group is a set of transactions sharing an accounting key, in source order.
type Group struct {
	Key          AccountingKey
	Transactions []types.Transaction
}

// groups keeps groups in first-encounter order.
type groups struct {
	index map[AccountingKey]*Group
	order []*Group
}

func newGroups() *groups {
	return &groups{index: make(map[AccountingKey]*Group)}
}

func (g *groups) add(key AccountingKey, tx types.Transaction) {
	group, ok := g.index[key]
	if !ok {
		group = &Group{Key: key}
		g.index[key] = group
		g.order = append(g.order, group)
	}
	group.Transactions = append(group.Transactions, tx)
}

// =============================================================================
// GROUPING
// =============================================================================

// Group folds payment or refund transactions into groups. Every transaction
// lands in two groups: the debit leg on the debit account and the credit leg
// on the credit account carrying the event's PSP element.
func (e *Exporter) Group(transactions []types.Transaction) ([]*Group, error) {
	result := newGroups()

	for i, tx := range transactions {
		debit, credit, err := e.keys(tx, i)
		if err != nil {
			return nil, err
		}
		result.add(debit, tx)
		result.add(credit, tx)
	}

	return result.order, nil
}

// keys builds the debit and credit keys of a transaction for the exporter's
// granularity.
func (e *Exporter) keys(tx types.Transaction, seq int) (debit, credit AccountingKey, err error) {
	cardType := e.cardType(tx)
	psp := tx.Meta.PSP()

	switch e.granularity {
	case Ungrouped:
		debit = AccountingKey{Account: e.debitAccount, CardType: cardType, OrderRef: tx.OrderRef, Leg: LegDebit, seq: seq}
		credit = AccountingKey{Account: e.creditAccount, CostCenter: psp, OrderRef: tx.OrderRef, Leg: LegCredit, seq: seq}
	case GroupedByAccountAndOrder:
		debit = AccountingKey{Account: e.debitAccount, CardType: cardType, OrderRef: tx.OrderRef, Leg: LegDebit}
		credit = AccountingKey{Account: e.creditAccount, CostCenter: psp, OrderRef: tx.OrderRef, Leg: LegCredit}
	case GroupedByAccount:
		debit = AccountingKey{Account: e.debitAccount, Leg: LegDebit}
		credit = AccountingKey{Account: e.creditAccount, CostCenter: psp, Leg: LegCredit}
	default:
		return debit, credit, e.notImplemented()
	}

	return debit, credit, nil
}

// cardType returns the card type of a transaction paid through the card
// provider, and "" for every other provider.
func (e *Exporter) cardType(tx types.Transaction) string {
	if tx.Provider != e.cardProvider {
		return ""
	}
	return tx.CardType
}

func (e *Exporter) notImplemented() error {
	return fmt.Errorf("%w: exporter %q has no row synthesis", ErrNotImplemented, e.granularity)
}
