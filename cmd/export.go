// =============================================================================
// Ticket Ledger Export - Export Command
// =============================================================================
//
// This file defines the 'export' command, which is the main command of the
// tool. It orchestrates the entire export pipeline.
//
// COMMAND USAGE:
//   itk-export export [flags]
//
// FLAGS:
//   --period         : Named period (previous-week, previous-month, ...)
//   --starttime      : Start of the window (inclusive)
//   --endtime        : End of the window (exclusive)
//   --debit-account  : Ledger account debited for card payments
//   --credit-account : Ledger account credited for ticket income
//   --cash-account   : Ledger account debited for cash payments
//   --organizer      : Organizer slug to include (repeatable)
//   --recipient      : Email recipient (repeatable)
//   --dry-run        : Build and validate the export without delivering it
//
// EXPORT PIPELINE:
//   1. Load configuration and apply command line overrides
//   2. Create the exporter (fails on missing accounts before any data access)
//   3. Resolve the time window
//   4. Load payments, refunds and cash payments from the source
//   5. Group and format the rows
//   6. Validate the rows
//   7. Serialize as CSV or XLSX
//   8. Deliver by email, into the output directory, or to stdout
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pretix-unofficial/pretix-itk-export/internal/config"
	"github.com/pretix-unofficial/pretix-itk-export/internal/csvwriter"
	"github.com/pretix-unofficial/pretix-itk-export/internal/delivery"
	"github.com/pretix-unofficial/pretix-itk-export/internal/exporter"
	"github.com/pretix-unofficial/pretix-itk-export/internal/l10n"
	"github.com/pretix-unofficial/pretix-itk-export/internal/period"
	"github.com/pretix-unofficial/pretix-itk-export/internal/source"
	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
	"github.com/pretix-unofficial/pretix-itk-export/internal/validation"
	"github.com/pretix-unofficial/pretix-itk-export/internal/xlsxwriter"
	"github.com/pretix-unofficial/pretix-itk-export/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// exportFlags holds the local flags of the export command. Flags override
// the configuration file only when given on the command line.
type exportFlags struct {
	period    string
	startTime string
	endTime   string

	debitAccount  string
	creditAccount string
	cashAccount   string
	organizers    []string

	recipients []string
	sender     string

	grouping  string
	locale    string
	fixture   string
	outputDir string
	format    string

	dryRun bool
}

// =============================================================================
// EXPORT COMMAND DEFINITION
// =============================================================================

// newExportCmd creates the 'export' command.
func newExportCmd(root *rootOptions) *cobra.Command {
	flags := &exportFlags{}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export payments, refunds and cash payments of a time window",
		Long: `The export command loads the card payments, refunds and cash payments of a
time window, groups them into double-entry rows and delivers the result.

The window is given either as a named period or as --starttime/--endtime.
A period takes precedence over explicit times. Supported periods:
  current-day, previous-day, current-week, previous-week,
  current-month, previous-month, current-year, previous-year,
  previous-week+N, previous-week-N

Delivery:
  - With recipients the export is sent as an email attachment
  - With an output directory it is written there
  - Otherwise it is written to stdout

Nothing is delivered when loading, grouping or validation fails.`,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd, root, flags)
		},
	}

	f := exportCmd.Flags()
	f.StringVar(&flags.period, "period", "", "Named period, e.g. previous-week or previous-month")
	f.StringVar(&flags.startTime, "starttime", "", "Start of the window (inclusive)")
	f.StringVar(&flags.endTime, "endtime", "", "End of the window (exclusive)")
	f.StringVar(&flags.debitAccount, "debit-account", "", "Ledger account debited for card payments")
	f.StringVar(&flags.creditAccount, "credit-account", "", "Ledger account credited for ticket income")
	f.StringVar(&flags.cashAccount, "cash-account", "", "Ledger account debited for cash payments")
	f.StringArrayVar(&flags.organizers, "organizer", nil, "Organizer slug to include (repeatable, default all)")
	f.StringArrayVar(&flags.recipients, "recipient", nil, "Email recipient (repeatable)")
	f.StringVar(&flags.sender, "sender", "", "Sender address of export emails")
	f.StringVar(&flags.grouping, "grouping", "", "Row grouping: line, grouped or ungrouped")
	f.StringVar(&flags.locale, "locale", "", "Language of amounts and texts, e.g. da or en")
	f.StringVar(&flags.fixture, "fixture", "", "Read transactions from a CSV file instead of the database")
	f.StringVar(&flags.outputDir, "output-dir", "", "Write the export into this directory")
	f.StringVar(&flags.format, "format", "", "Output format: csv or xlsx")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Build and validate the export without delivering it")

	return exportCmd
}

// =============================================================================
// EXPORT PIPELINE
// =============================================================================

// runExport executes the export pipeline.
func runExport(ctx context.Context, cmd *cobra.Command, root *rootOptions, flags *exportFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := root.logger
	now := root.now()

	// ==========================================================================
	// STEP 1: Load Configuration
	// ==========================================================================

	cfg, err := config.Load(root.cfgFile)
	if err != nil {
		return err
	}
	flags.apply(cfg, cmd.Flags().Changed)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !root.verbose && !root.debug {
		if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
			logger.SetLevel(level)
		}
	}

	if root.debug {
		dump, err := cfg.Dump()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.ErrOrStderr(), dump)
	}

	// ==========================================================================
	// STEP 2: Create Exporter
	// ==========================================================================

	localizer, err := l10n.Parse(cfg.Locale, l10n.WithGrouping(cfg.ThousandsSeparator))
	if err != nil {
		return err
	}

	granularity, err := exporter.ParseGranularity(cfg.Grouping)
	if err != nil {
		return err
	}

	exp, err := exporter.New(exporter.Options{
		DebitAccount:  cfg.Accounts.Debit,
		CreditAccount: cfg.Accounts.Credit,
		CashAccount:   cfg.Accounts.Cash,
		CardProvider:  cfg.Providers.Card,
		Granularity:   granularity,
		Localizer:     localizer,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	// ==========================================================================
	// STEP 3: Resolve Window
	// ==========================================================================

	window, err := period.Window(flags.period, flags.startTime, flags.endTime, now)
	if err != nil {
		return err
	}
	logger.Info("exporting", "window", describeWindow(window), "grouping", granularity, "locale", localizer.Language())

	// ==========================================================================
	// STEP 4-5: Load And Group
	// ==========================================================================

	src, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	rows, err := exp.GetData(ctx, src, window)
	if err != nil {
		return err
	}

	// ==========================================================================
	// STEP 6: Validate
	// ==========================================================================

	validator := validation.NewValidator(localizer, validation.ValidationOptions{
		CreditAccount: cfg.Accounts.Credit,
	})
	result, err := validator.Validate(rows)
	if err != nil {
		return err
	}
	for _, warning := range result.Warnings() {
		logger.Warn(warning.Error())
	}

	// ==========================================================================
	// STEP 7: Serialize
	// ==========================================================================

	doc, err := encode(cfg, rows, window, now)
	if err != nil {
		return err
	}

	if flags.dryRun {
		logger.Info("dry run, nothing delivered",
			"rows", len(rows)-1,
			"debit", result.DebitTotal.StringFixed(2),
			"credit", result.CreditTotal.StringFixed(2),
			"document", doc.Name,
		)
		return nil
	}

	// ==========================================================================
	// STEP 8: Deliver
	// ==========================================================================

	sink := newSink(cfg, localizer, window, now, cmd.OutOrStdout(), logger)
	if err := sink.Deliver(ctx, doc); err != nil {
		return err
	}

	if file, ok := sink.(*delivery.File); ok {
		logger.Info("export written", "path", file.Written, "rows", len(rows)-1)
	}

	return nil
}

// apply copies the flags that were set on the command line into cfg.
func (f *exportFlags) apply(cfg *config.Config, changed func(name string) bool) {
	set := func(name string, dst *string, value string) {
		if changed(name) {
			*dst = value
		}
	}

	set("debit-account", &cfg.Accounts.Debit, f.debitAccount)
	set("credit-account", &cfg.Accounts.Credit, f.creditAccount)
	set("cash-account", &cfg.Accounts.Cash, f.cashAccount)
	set("sender", &cfg.Delivery.Sender, f.sender)
	set("grouping", &cfg.Grouping, f.grouping)
	set("locale", &cfg.Locale, f.locale)
	set("fixture", &cfg.Database.Fixture, f.fixture)
	set("output-dir", &cfg.Delivery.OutputDir, f.outputDir)
	set("format", &cfg.Delivery.Format, f.format)

	if changed("organizer") {
		cfg.Organizers = f.organizers
	}
	if changed("recipient") {
		cfg.Delivery.Recipients = f.recipients
	}
}

// openSource returns the fixture source when one is configured and the
// database source otherwise. The returned func releases the source.
func openSource(ctx context.Context, cfg *config.Config, logger *log.Logger) (exporter.Source, func() error, error) {
	filter := source.Filter{
		Organizers:   cfg.Organizers,
		CardProvider: cfg.Providers.Card,
		CashProvider: cfg.Providers.Cash,
	}

	if cfg.Database.Fixture != "" {
		logger.Debug("reading fixture", "path", cfg.Database.Fixture)
		fixture, err := source.LoadFixture(cfg.Database.Fixture, filter)
		if err != nil {
			return nil, nil, err
		}
		return fixture, func() error { return nil }, nil
	}

	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("%w: no database url or fixture configured", exporter.ErrConfiguration)
	}

	db, err := source.OpenPostgres(ctx, cfg.Database.URL, source.PostgresOptions{
		Filter:          filter,
		MetaPSPKey:      cfg.MetaPSPKey,
		CardTypeInfoKey: cfg.CardTypeInfoKey,
		Logger:          logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}

// encode serializes rows in the configured format.
func encode(cfg *config.Config, rows []types.Row, window types.Window, now time.Time) (delivery.Document, error) {
	doc := delivery.Document{Window: window}

	switch cfg.Delivery.Format {
	case config.FormatXLSX:
		content, err := xlsxwriter.Generate(rows)
		if err != nil {
			return doc, err
		}
		doc.Content = content
		doc.ContentType = xlsxwriter.ContentType
		doc.Name = utils.ExportFileName(cfg.Delivery.FilenamePrefix, window, now, xlsxwriter.Extension)
	default:
		content, err := csvwriter.Generate(rows)
		if err != nil {
			return doc, err
		}
		doc.Content = content
		doc.ContentType = csvwriter.ContentType
		doc.Name = utils.ExportFileName(cfg.Delivery.FilenamePrefix, window, now, csvwriter.Extension)
	}

	return doc, nil
}

// newSink picks the delivery target: email when recipients are configured,
// the output directory when one is set, stdout otherwise.
func newSink(cfg *config.Config, localizer *l10n.Localizer, window types.Window, now time.Time, stdout io.Writer, logger *log.Logger) delivery.Sink {
	switch {
	case len(cfg.Delivery.Recipients) > 0:
		return &delivery.Email{
			Sender: delivery.NewDialer(delivery.SMTPSettings{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
			}),
			From:       cfg.Delivery.Sender,
			Recipients: cfg.Delivery.Recipients,
			Subject:    delivery.Subject(localizer, cfg.Delivery.SiteName, window, now),
			RunID:      utils.RunID(),
			Logger:     logger,
		}
	case cfg.Delivery.OutputDir != "":
		return delivery.NewFile(cfg.Delivery.OutputDir)
	default:
		return delivery.Stream{W: stdout}
	}
}

// describeWindow renders a window for log output.
func describeWindow(w types.Window) string {
	bound := func(t *time.Time) string {
		if t == nil {
			return "open"
		}
		return t.Format("2006-01-02T15:04:05Z07:00")
	}
	return strings.Join([]string{bound(w.Start), bound(w.End)}, " - ")
}
