package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/security/validation"
	"github.com/xuri/excelize/v2"
)

const transactionsSheet = "Transactions"

var exportHeaders = []string{"Date", "Type", "Category", "Amount", "Description", "Currency"}

type exportServiceImpl struct {
	ledger Ledger
}

func NewExportService(ledger Ledger) ExportService {
	return &exportServiceImpl{ledger: ledger}
}

type exportRow struct {
	date        string
	typ         string
	category    string
	amount      float64
	amountText  string
	description string
	currency    string
}

// rows resolves category names and sanitizes every free-text cell against
// formula injection. Expenses are exported negative.
func (s *exportServiceImpl) rows(ctx context.Context, accountID string, opts *models.QueryOptions) ([]exportRow, error) {
	account, txs, err := s.ledger.QueryTransactions(ctx, accountID, opts)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	for _, c := range s.ledger.Snapshot().Categories {
		names[c.ID] = c.Name
	}

	out := make([]exportRow, 0, len(txs))
	for _, tx := range txs {
		category := names[tx.CategoryID]
		if category == "" {
			category = tx.CategoryID
		}
		signed := tx.SignedAmount()
		out = append(out, exportRow{
			date:        tx.Date.Format("2006-01-02"),
			typ:         string(tx.Type),
			category:    validation.SanitizeForFormulaInjection(category),
			amount:      signed.InexactFloat64(),
			amountText:  signed.StringFixed(2),
			description: validation.SanitizeForFormulaInjection(tx.Description),
			currency:    account.Currency,
		})
	}
	return out, nil
}

func (s *exportServiceImpl) WriteTransactions(ctx context.Context, w io.Writer, format ExportFormat, accountID string, opts *models.QueryOptions) error {
	switch format {
	case FormatXLSX, FormatCSV:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}

	rows, err := s.rows(ctx, accountID, opts)
	if err != nil {
		return err
	}
	if format == FormatCSV {
		err = writeCSV(w, rows)
	} else {
		err = writeXLSX(w, rows)
	}
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Transactions exported", "format", format, "rows", len(rows))
	return nil
}

func writeCSV(w io.Writer, rows []exportRow) error {
	// UTF-8 BOM so spreadsheet apps pick the right encoding.
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeaders); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write([]string{r.date, r.typ, r.category, r.amountText, r.description, r.currency}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeXLSX(w io.Writer, rows []exportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), transactionsSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(transactionsSheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, r := range rows {
		row := i + 2
		values := []any{r.date, r.typ, r.category, r.amount, r.description, r.currency}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(transactionsSheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	widths := map[string]float64{"A": 12, "B": 10, "C": 16, "D": 12, "E": 40, "F": 10}
	for col, width := range widths {
		if err := f.SetColWidth(transactionsSheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
