// =============================================================================
// Ticket Ledger Export - Validation Engine
// =============================================================================
//
// This module checks a finished row sequence before it is delivered. A run
// that fails validation delivers nothing.
//
// VALIDATION LEVELS:
//   1. Document: the header row comes first and matches the fixed header
//   2. Row: every data row has an account, a debet/kredit flag and an amount
//   3. Balance: the debet amounts sum to the kredit amounts
//
// Rows on the credit account without a PSP element are reported as warnings.
// They balance, but the receiving system books them without a cost center.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// ErrInvalidExport is returned when the rows fail validation.
var ErrInvalidExport = errors.New("invalid export")

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError is a single finding.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Row is the 0-based index in the row sequence; the header is row 0.
	// Document-wide findings use -1.
	Row int

	// Column is the header name of the offending field, if any.
	Column string

	// Value is the offending value.
	Value string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("[%s] %s", strings.ToUpper(e.Severity), e.Message)
	}
	if e.Column == "" {
		return fmt.Sprintf("[%s] Row %d: %s", strings.ToUpper(e.Severity), e.Row, e.Message)
	}
	return fmt.Sprintf("[%s] Row %d, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.Row,
		e.Column,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains all findings, including warnings.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// RowsValidated counts data rows, not the header.
	RowsValidated int

	// DebitTotal and CreditTotal are the sums of parseable amounts.
	DebitTotal  decimal.Decimal
	CreditTotal decimal.Decimal
}

// =============================================================================
// VALIDATOR
// =============================================================================

// AmountParser turns a formatted amount back into a number.
// *l10n.Localizer implements it.
type AmountParser interface {
	ParseAmount(s string) (decimal.Decimal, error)
}

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// CreditAccount enables the missing PSP warning for rows on this account.
	CreditAccount string

	// TreatWarningsAsErrors makes warnings fatal.
	TreatWarningsAsErrors bool
}

// Validator checks export rows.
type Validator struct {
	amounts AmountParser
	options ValidationOptions
}

// NewValidator creates a Validator that parses amounts with amounts.
func NewValidator(amounts AmountParser, options ValidationOptions) *Validator {
	return &Validator{amounts: amounts, options: options}
}

// Validate checks rows and returns an error wrapping ErrInvalidExport when
// any fatal finding exists.
func (v *Validator) Validate(rows []types.Row) (*ValidationResult, error) {
	result := v.ValidateAll(rows)
	if !result.IsValid {
		return result, fmt.Errorf("%w: %s", ErrInvalidExport, FormatErrors(result.Errors))
	}
	return result, nil
}

// ValidateAll checks every rule and collects all findings.
func (v *Validator) ValidateAll(rows []types.Row) *ValidationResult {
	result := &ValidationResult{
		IsValid:     true,
		DebitTotal:  decimal.Zero,
		CreditTotal: decimal.Zero,
	}

	if len(rows) == 0 {
		v.add(result, &ValidationError{Severity: SeverityError, Message: "missing header row"})
		return result
	}

	if rows[0] != types.Header {
		v.add(result, &ValidationError{Severity: SeverityError, Message: "first row is not the export header"})
	}

	for i, row := range rows[1:] {
		v.validateRow(result, i+1, row)
		result.RowsValidated++
	}

	if !result.DebitTotal.Equal(result.CreditTotal) {
		v.add(result, &ValidationError{
			Severity: SeverityError,
			Row:      -1,
			Message: fmt.Sprintf("debit total %s does not equal credit total %s",
				result.DebitTotal.StringFixed(2), result.CreditTotal.StringFixed(2)),
		})
	}

	return result
}

func (v *Validator) validateRow(result *ValidationResult, index int, row types.Row) {
	fail := func(column int, message string) {
		v.add(result, &ValidationError{
			Severity: SeverityError,
			Row:      index,
			Column:   types.Header[column],
			Value:    row[column],
			Message:  message,
		})
	}

	if row[types.ColAccount] == "" {
		fail(types.ColAccount, "account is required")
	}

	amount, err := v.amounts.ParseAmount(row[types.ColAmount])
	switch {
	case err != nil:
		fail(types.ColAmount, "amount is not a number")
	case !amount.IsPositive():
		fail(types.ColAmount, "amount must be positive")
	}

	switch row[types.ColDebitCredit] {
	case types.FlagDebit:
		result.DebitTotal = result.DebitTotal.Add(amount)
	case types.FlagCredit:
		result.CreditTotal = result.CreditTotal.Add(amount)
	default:
		fail(types.ColDebitCredit, fmt.Sprintf("flag must be %q or %q", types.FlagDebit, types.FlagCredit))
	}

	if row[types.ColText] == "" {
		fail(types.ColText, "text is required")
	}

	if v.options.CreditAccount != "" &&
		row[types.ColAccount] == v.options.CreditAccount &&
		row[types.ColPSP] == "" {
		v.add(result, &ValidationError{
			Severity: SeverityWarning,
			Row:      index,
			Column:   types.Header[types.ColPSP],
			Message:  "credit row without PSP element",
		})
	}
}

func (v *Validator) add(result *ValidationResult, finding *ValidationError) {
	result.Errors = append(result.Errors, finding)

	if finding.Severity == SeverityError {
		result.ErrorCount++
		result.IsValid = false
		return
	}

	result.WarningCount++
	if v.options.TreatWarningsAsErrors {
		result.IsValid = false
	}
}

// Warnings returns the non-fatal findings.
func (r *ValidationResult) Warnings() []*ValidationError {
	var warnings []*ValidationError
	for _, e := range r.Errors {
		if e.Severity == SeverityWarning {
			warnings = append(warnings, e)
		}
	}
	return warnings
}

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}
