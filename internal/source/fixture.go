package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/pretix-unofficial/pretix-itk-export/internal/csvparser"
	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// Fixture replays transactions from a CSV file. It applies the same filters
// as the database queries, so a fixture may contain records of any kind,
// provider, organizer or amount.
type Fixture struct {
	filter       Filter
	transactions []types.Transaction
}

// LoadFixture reads the fixture file at path.
func LoadFixture(path string, filter Filter) (*Fixture, error) {
	data, err := csvparser.ParseFile(path, csvparser.Settings{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}

	transactions, err := csvparser.Transactions(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}

	return NewFixture(transactions, filter), nil
}

// NewFixture wraps in-memory transactions.
func NewFixture(transactions []types.Transaction, filter Filter) *Fixture {
	return &Fixture{filter: filter, transactions: transactions}
}

// LoadPayments returns the card payments of the window.
func (f *Fixture) LoadPayments(_ context.Context, window types.Window) ([]types.Transaction, error) {
	return f.selectTransactions(types.KindCardPayment, f.filter.CardProvider, window), nil
}

// LoadRefunds returns the card refunds of the window.
func (f *Fixture) LoadRefunds(_ context.Context, window types.Window) ([]types.Transaction, error) {
	return f.selectTransactions(types.KindCardRefund, f.filter.CardProvider, window), nil
}

// LoadCashPayments returns the cash payments of the window.
func (f *Fixture) LoadCashPayments(_ context.Context, window types.Window) ([]types.Transaction, error) {
	return f.selectTransactions(types.KindCashPayment, f.filter.CashProvider, window), nil
}

func (f *Fixture) selectTransactions(kind types.Kind, provider string, window types.Window) []types.Transaction {
	var selected []types.Transaction

	for _, tx := range f.transactions {
		if tx.Kind != kind || tx.Provider != provider {
			continue
		}
		if !tx.Amount.IsPositive() {
			continue
		}
		if !f.inScope(tx.Organizer) || !window.Contains(tx.Timestamp) {
			continue
		}
		selected = append(selected, tx)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})

	return selected
}

func (f *Fixture) inScope(organizer string) bool {
	if len(f.filter.Organizers) == 0 {
		return true
	}
	for _, o := range f.filter.Organizers {
		if o == organizer {
			return true
		}
	}
	return false
}
