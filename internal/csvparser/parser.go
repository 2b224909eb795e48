// =============================================================================
// Ticket Ledger Export - Transaction CSV Parser
// =============================================================================
//
// This module reads transaction fixture files. A fixture is a CSV file with
// one transaction per row; it lets an export be replayed without a database.
//
// EXPECTED COLUMNS (header names, any order):
//   kind        payment | refund | cash
//   id          source identifier
//   timestamp   payment date or refund execution date
//   provider    payment provider, e.g. dibs or cash
//   organizer   organizer slug
//   event       event slug
//   order_code  order code
//   email       payer email
//   amount      decimal with a dot as separator
//   card_type   optional card type code
//   psp         optional PSP element of the event
//
// Unknown columns are ignored. Missing optional columns read as empty.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// Column names of a fixture file.
const (
	ColumnKind      = "kind"
	ColumnID        = "id"
	ColumnTimestamp = "timestamp"
	ColumnProvider  = "provider"
	ColumnOrganizer = "organizer"
	ColumnEvent     = "event"
	ColumnOrderCode = "order_code"
	ColumnEmail     = "email"
	ColumnAmount    = "amount"
	ColumnCardType  = "card_type"
	ColumnPSP       = "psp"
)

var requiredColumns = []string{
	ColumnKind,
	ColumnTimestamp,
	ColumnProvider,
	ColumnOrderCode,
	ColumnAmount,
}

// =============================================================================
// PARSED DATA STRUCTURE
// =============================================================================

// CSVData holds the parsed content of a CSV file.
type CSVData struct {
	// Headers are the cleaned column names.
	Headers []string

	// Rows maps column names to values, one map per non-empty data row.
	Rows []map[string]string

	// Lines holds the 1-based file line of each entry in Rows.
	Lines []int

	// SourceFile is the path the data was read from, if any.
	SourceFile string
}

// Settings controls how CSV files are read.
type Settings struct {
	// Delimiter is a single character or one of "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string
}

// =============================================================================
// PARSING FUNCTIONS
// =============================================================================

// ParseFile parses the CSV file at filePath.
func ParseFile(filePath string, settings Settings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := Parse(file, settings)
	if err != nil {
		return nil, err
	}
	data.SourceFile = filePath
	return data, nil
}

// Parse reads CSV data with a single header row.
func Parse(r io.Reader, settings Settings) (*CSVData, error) {
	csvReader := csv.NewReader(bufio.NewReader(r))
	configureReader(csvReader, settings)

	headers, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	data := &CSVData{Headers: cleanHeaders(headers)}

	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		if isRowEmpty(row) {
			continue
		}

		rowMap := make(map[string]string, len(data.Headers))
		for col, header := range data.Headers {
			if col < len(row) {
				rowMap[header] = strings.TrimSpace(row[col])
			} else {
				rowMap[header] = ""
			}
		}

		line, _ := csvReader.FieldPos(0)
		data.Rows = append(data.Rows, rowMap)
		data.Lines = append(data.Lines, line)
	}

	return data, nil
}

// configureReader applies the settings to a csv.Reader.
func configureReader(reader *csv.Reader, settings Settings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Rows may be shorter than the header; missing cells read as empty.
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
}

// cleanHeaders trims and lowercases header names and strips a UTF-8 BOM.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimPrefix(header, "\ufeff")
		header = strings.ToLower(strings.TrimSpace(header))

		if header == "" {
			header = fmt.Sprintf("column_%d", i+1)
		}

		cleaned[i] = header
	}

	return cleaned
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// TRANSACTION CONVERSION
// =============================================================================

// Transactions converts parsed rows into transactions.
//
// RETURNS:
//   - The transactions in file order.
//   - An error naming the file line of the first bad row.
func Transactions(data *CSVData) ([]types.Transaction, error) {
	for _, column := range requiredColumns {
		if !hasHeader(data.Headers, column) {
			return nil, fmt.Errorf("missing required column %q", column)
		}
	}

	transactions := make([]types.Transaction, 0, len(data.Rows))

	for i, row := range data.Rows {
		tx, err := transaction(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", data.Lines[i], err)
		}
		transactions = append(transactions, tx)
	}

	return transactions, nil
}

func transaction(row map[string]string) (types.Transaction, error) {
	kind, err := parseKind(row[ColumnKind])
	if err != nil {
		return types.Transaction{}, err
	}

	amount, err := decimal.NewFromString(row[ColumnAmount])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("invalid amount %q: %w", row[ColumnAmount], err)
	}

	timestamp, err := dateparse.ParseIn(row[ColumnTimestamp], time.UTC)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("invalid timestamp %q: %w", row[ColumnTimestamp], err)
	}

	var meta types.EventMetadata
	if psp := row[ColumnPSP]; psp != "" {
		meta = types.EventMetadata{types.MetaPSP: psp}
	}

	return types.Transaction{
		Kind:      kind,
		ID:        row[ColumnID],
		Amount:    amount,
		Timestamp: timestamp.UTC(),
		Provider:  row[ColumnProvider],
		Organizer: row[ColumnOrganizer],
		EventSlug: row[ColumnEvent],
		OrderCode: row[ColumnOrderCode],
		OrderRef:  types.OrderReference(row[ColumnEvent], row[ColumnOrderCode]),
		Email:     row[ColumnEmail],
		CardType:  row[ColumnCardType],
		Meta:      meta,
	}, nil
}

func parseKind(s string) (types.Kind, error) {
	for _, kind := range []types.Kind{types.KindCardPayment, types.KindCardRefund, types.KindCashPayment} {
		if strings.EqualFold(s, kind.String()) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}

func hasHeader(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}
