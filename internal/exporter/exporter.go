// =============================================================================
// Ticket Ledger Export - Exporter
// =============================================================================
//
// This module contains the core export logic. It loads the three transaction
// sets from a Source, groups them by accounting key and turns every group into
// one export row per double-entry leg.
//
// EXPORT PIPELINE:
//   1. Load card payments, card refunds and cash payments for a window
//   2. Group payments and refunds by accounting key (see grouping.go)
//   3. Synthesize one row per group and two rows per cash payment (rows.go)
//
// The exporter never writes anything; serialization and delivery happen in
// the csvwriter, xlsxwriter and delivery packages once all rows exist.
//
// =============================================================================

package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/pretix-unofficial/pretix-itk-export/internal/l10n"
	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConfiguration is returned when required settings are missing.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotImplemented is returned when a grouping policy has no row
	// synthesis. It signals a wiring defect, not bad data.
	ErrNotImplemented = errors.New("not implemented")
)

// =============================================================================
// SOURCE CONTRACT
// =============================================================================

// Source loads the transactions of a time window. Implementations filter by
// provider, organizer scope and amount > 0, and return records ordered by
// timestamp.
type Source interface {
	LoadPayments(ctx context.Context, window types.Window) ([]types.Transaction, error)
	LoadRefunds(ctx context.Context, window types.Window) ([]types.Transaction, error)
	LoadCashPayments(ctx context.Context, window types.Window) ([]types.Transaction, error)
}

// =============================================================================
// EXPORTER
// =============================================================================

// Options configures an Exporter.
type Options struct {
	// DebitAccount is debited for card payments (the bank).
	DebitAccount string

	// CreditAccount is credited for income.
	CreditAccount string

	// CashAccount is debited for cash payments.
	CashAccount string

	// CardProvider is the provider whose payments carry a card type.
	CardProvider string

	// Granularity selects how transactions are aggregated into rows.
	Granularity Granularity

	// Localizer formats amounts and description texts. Defaults to Danish.
	Localizer *l10n.Localizer

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Exporter builds export rows from transactions.
type Exporter struct {
	debitAccount  string
	creditAccount string
	cashAccount   string
	cardProvider  string
	granularity   Granularity
	l10n          *l10n.Localizer
	logger        *log.Logger
}

// New creates an Exporter. It fails with ErrConfiguration when any of the
// three ledger accounts is missing, before any data is accessed.
func New(opts Options) (*Exporter, error) {
	required := []struct {
		name  string
		value string
	}{
		{"debit_account", opts.DebitAccount},
		{"credit_account", opts.CreditAccount},
		{"cash_account", opts.CashAccount},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("%w: missing %q in settings", ErrConfiguration, r.name)
		}
	}

	e := &Exporter{
		debitAccount:  opts.DebitAccount,
		creditAccount: opts.CreditAccount,
		cashAccount:   opts.CashAccount,
		cardProvider:  opts.CardProvider,
		granularity:   opts.Granularity,
		l10n:          opts.Localizer,
		logger:        opts.Logger,
	}
	if e.l10n == nil {
		e.l10n, _ = l10n.Parse("da")
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	return e, nil
}

// GetData loads all transactions of the window from src and returns the
// complete row sequence, header first.
func (e *Exporter) GetData(ctx context.Context, src Source, window types.Window) ([]types.Row, error) {
	payments, err := src.LoadPayments(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	refunds, err := src.LoadRefunds(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load refunds: %w", err)
	}

	cash, err := src.LoadCashPayments(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load cash payments: %w", err)
	}

	e.logger.Debug("loaded transactions",
		"payments", len(payments),
		"refunds", len(refunds),
		"cash", len(cash),
	)

	return e.FormatData(payments, refunds, cash)
}
