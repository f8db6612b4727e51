// Package export renders a user's expenses as downloadable CSV or XLSX.
package export

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
	"github.com/FACorreiaa/sms-finance-tracker/pkg/money"
)

const xlsxSheet = "Expenses"

// WriteCSV streams the transactions as CSV. Column headers come from the
// csv tags on the transaction type.
func WriteCSV(w io.Writer, txs []expense.Transaction) error {
	if err := gocsv.Marshal(&txs, w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

var xlsxHeader = []any{
	"ID", "User", "Amount", "Currency", "Display", "Merchant", "Category",
	"Direction", "Occurred At", "Ingested At", "Raw Text",
}

// WriteXLSX streams the transactions as a single-sheet workbook.
func WriteXLSX(w io.Writer, txs []expense.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(xlsxSheet)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	if err := f.SetSheetRow(xlsxSheet, "A1", &xlsxHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, t := range txs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("addressing row %d: %w", i+2, err)
		}
		// Round to the currency's fraction so three-decimal currencies
		// like KWD keep their fils in the sheet.
		amount := t.Amount.Round(int32(money.Fraction(t.Currency)))
		row := []any{
			t.ID,
			t.UserID,
			amount.InexactFloat64(),
			t.Currency,
			money.Format(t.Amount, t.Currency),
			t.MerchantClean,
			t.Category,
			t.Direction,
			t.OccurredAt.UTC().Format("2006-01-02 15:04:05"),
			t.IngestedAt.UTC().Format("2006-01-02 15:04:05"),
			t.RawText,
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
