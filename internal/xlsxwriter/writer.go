// =============================================================================
// Ticket Ledger Export - XLSX Writer Module
// =============================================================================
//
// This module writes export rows to a single-sheet workbook for people who
// review exports in a spreadsheet before they are imported. The sheet holds
// exactly the rows of the CSV export; amounts stay text so the localized
// formatting is kept.
//
// SHEET LAYOUT:
//   Sheet "Export", row 1 = bold header, frozen while scrolling.
//
// =============================================================================

package xlsxwriter

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// Document properties of XLSX exports.
const (
	Extension   = "xlsx"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// SheetName is the name of the only sheet.
const SheetName = "Export"

// Generate builds a workbook from rows.
func Generate(rows []types.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i, err)
		}

		values := rows[i][:]
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := formatHeader(f); err != nil {
		return nil, err
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	return buffer.Bytes(), nil
}

// formatHeader makes the header row bold and freezes it.
func formatHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetRowStyle(SheetName, 1, 1, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	// Account, flag and amount columns are narrow; the text column is not.
	if err := f.SetColWidth(SheetName, "A", "H", 14); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "I", "I", 48); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	return nil
}

// Read returns the rows of a workbook written by Generate.
func Read(data []byte) ([]types.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	cells, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", SheetName, err)
	}

	rows := make([]types.Row, len(cells))
	for i, values := range cells {
		if len(values) > types.ColumnCount {
			return nil, fmt.Errorf("row %d has %d columns, want at most %d", i+1, len(values), types.ColumnCount)
		}
		copy(rows[i][:], values)
	}

	return rows, nil
}
