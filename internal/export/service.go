package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/entity"
	"github.com/joseph-ayodele/receipt-extractor/internal/repository"
)

const (
	transactionsSheet = "Transactions"
	itemsSheet        = "Items"
)

// Filter narrows an export. Zero value exports everything.
type Filter struct {
	UserID      *int64
	From, To    *time.Time // inclusive, compared on the receipt date
	FlaggedOnly bool
}

// Service produces XLSX bytes for stored transactions.
type Service struct {
	repo   repository.TransactionRepository
	logger *slog.Logger
}

func NewService(repo repository.TransactionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportXLSX returns a workbook with a Transactions sheet and an Items sheet.
// If only From is set the window runs to today.
func (s *Service) ExportXLSX(ctx context.Context, filter Filter) ([]byte, error) {
	start := time.Now()

	var (
		txs []*entity.Transaction
		err error
	)
	if filter.UserID != nil {
		txs, err = s.repo.ListByUser(ctx, *filter.UserID)
	} else {
		txs, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	txs = filter.apply(txs, time.Now())

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("xlsx close error", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}

	if err := writeTransactions(f, txs, money); err != nil {
		return nil, err
	}
	items, err := writeItems(f, txs, money)
	if err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(txs),
		"items", items,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteXLSX is ExportXLSX streamed to w.
func (s *Service) WriteXLSX(ctx context.Context, w io.Writer, filter Filter) error {
	b, err := s.ExportXLSX(ctx, filter)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func (fl Filter) apply(txs []*entity.Transaction, now time.Time) []*entity.Transaction {
	var from, to string
	if fl.From != nil {
		from = fl.From.Format(constants.DateLayout)
		to = now.UTC().Format(constants.DateLayout)
	}
	if fl.To != nil {
		to = fl.To.Format(constants.DateLayout)
	}

	out := make([]*entity.Transaction, 0, len(txs))
	for _, tx := range txs {
		if fl.FlaggedOnly && !tx.Flagged {
			continue
		}
		// YYYY-MM-DD compares correctly as text
		if from != "" && tx.Date < from {
			continue
		}
		if to != "" && tx.Date > to {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func writeTransactions(f *excelize.File, txs []*entity.Transaction, money int) error {
	headers := []any{
		"ID", "Date", "Vendor", "Category", "Subtotal", "Tax", "Total",
		"Payment Method", "Confidence", "Method", "Flagged", "Source File",
	}
	if err := f.SetSheetRow(transactionsSheet, "A1", &headers); err != nil {
		return err
	}

	for i, tx := range txs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		flagged := "no"
		if tx.Flagged {
			flagged = "yes"
		}
		row := []any{
			tx.ID, tx.Date, tx.Vendor, tx.Category, tx.Subtotal, tx.Tax, tx.Amount,
			tx.PaymentMethod, tx.ConfidenceScore, tx.ExtractionMethod, flagged, tx.SourceFile,
		}
		if err := f.SetSheetRow(transactionsSheet, cell, &row); err != nil {
			return err
		}
	}

	if len(txs) > 0 {
		last := fmt.Sprintf("G%d", len(txs)+1)
		if err := f.SetCellStyle(transactionsSheet, "E2", last, money); err != nil {
			return err
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(transactionsSheet, "B", "B", 12) // date
	_ = f.SetColWidth(transactionsSheet, "C", "C", 28) // vendor
	_ = f.SetColWidth(transactionsSheet, "D", "D", 16) // category
	_ = f.SetColWidth(transactionsSheet, "E", "G", 12) // amounts
	_ = f.SetColWidth(transactionsSheet, "H", "J", 16)
	_ = f.SetColWidth(transactionsSheet, "L", "L", 48) // source
	return nil
}

func writeItems(f *excelize.File, txs []*entity.Transaction, money int) (int, error) {
	headers := []any{"Transaction ID", "Date", "Vendor", "Item", "Price"}
	if err := f.SetSheetRow(itemsSheet, "A1", &headers); err != nil {
		return 0, err
	}

	row := 2
	for _, tx := range txs {
		for _, it := range tx.Items {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := []any{tx.ID, tx.Date, tx.Vendor, it.Name, it.Price}
			if err := f.SetSheetRow(itemsSheet, cell, &values); err != nil {
				return 0, err
			}
			row++
		}
	}
	if row > 2 {
		if err := f.SetCellStyle(itemsSheet, "E2", fmt.Sprintf("E%d", row-1), money); err != nil {
			return 0, err
		}
	}
	_ = f.SetColWidth(itemsSheet, "C", "D", 28)
	return row - 2, nil
}
