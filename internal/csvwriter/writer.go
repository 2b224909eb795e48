// =============================================================================
// Ticket Ledger Export - CSV Writer Module
// =============================================================================
//
// This module serializes export rows in the CSV dialect the ledger import
// expects:
//
//   Artskonto;Omkostningssted;PSP-element;...;Referencenøgle\r\n
//   1000;;;;;debet;150.00;;Ticket sale (credit): concert-ABC12;...\r\n
//
//   - fields separated by ";"
//   - fields quoted with '"' only when they contain the separator, a quote
//     or a line break
//   - every record terminated by CRLF
//
// =============================================================================

package csvwriter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// Document properties of CSV exports.
const (
	Extension   = "csv"
	ContentType = "text/csv"
)

// =============================================================================
// CSV GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for CSV generation.
type GenerateOptions struct {
	// Delimiter separates fields.
	// Default: ';'
	Delimiter rune

	// UseCRLF terminates records with \r\n instead of \n.
	// Default: true
	UseCRLF bool
}

// DefaultGenerateOptions returns the options of the ledger import format.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Delimiter: ';',
		UseCRLF:   true,
	}
}

// =============================================================================
// CSV GENERATION FUNCTIONS
// =============================================================================

// Generate serializes rows with the default options.
func Generate(rows []types.Row) ([]byte, error) {
	return GenerateWithOptions(rows, DefaultGenerateOptions())
}

// GenerateWithOptions serializes rows with custom options.
func GenerateWithOptions(rows []types.Row, options GenerateOptions) ([]byte, error) {
	var buffer bytes.Buffer

	if err := Write(&buffer, rows, options); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// Write streams rows to w.
func Write(w io.Writer, rows []types.Row, options GenerateOptions) error {
	if options.Delimiter == 0 {
		options.Delimiter = ';'
	}

	writer := csv.NewWriter(w)
	writer.Comma = options.Delimiter
	writer.UseCRLF = options.UseCRLF

	for i := range rows {
		if err := writer.Write(rows[i][:]); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}

	return nil
}
