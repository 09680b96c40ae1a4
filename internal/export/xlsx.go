package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"pocketbalance/internal/core"
)

const (
	XLSXFilename    = "pocketbalance_data.xlsx"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	transactionsSheet = "Transactions"
	summarySheet      = "Summary"
)

// WriteXLSX writes a workbook with the same columns as the CSV export plus
// a summary sheet holding the totals. Amounts are numeric cells.
func WriteXLSX(w io.Writer, txs []core.Transaction) error {
	if len(txs) == 0 {
		return ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range Columns {
		if err := setCell(f, transactionsSheet, i+1, 1, h); err != nil {
			return err
		}
	}
	for i, tx := range txs {
		row := i + 2
		category := ""
		if tx.IsSpending() {
			category = string(tx.Category)
		}
		values := []any{tx.ID, tx.Type.String(), tx.Description, tx.Amount, category, tx.Date}
		for col, v := range values {
			if err := setCell(f, transactionsSheet, col+1, row, v); err != nil {
				return err
			}
		}
	}
	widths := map[string]float64{"A": 38, "B": 10, "C": 30, "D": 12, "E": 15, "F": 26}
	for col, width := range widths {
		if err := f.SetColWidth(transactionsSheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	totals := core.Aggregate(txs)
	summary := [][]any{
		{"totalIncome", totals.TotalIncome.InexactFloat64()},
		{"totalSpending", totals.TotalSpending.InexactFloat64()},
		{"balance", totals.Balance.InexactFloat64()},
	}
	for i, r := range summary {
		for col, v := range r {
			if err := setCell(f, summarySheet, col+1, i+1, v); err != nil {
				return err
			}
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
	}
	return nil
}
