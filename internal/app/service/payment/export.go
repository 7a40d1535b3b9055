package payment

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
)

const ledgerSheet = "Invoices"

var ledgerHeader = []interface{}{
	"Invoice Number", "Issued At", "Subscription", "Customer", "Description",
	"Method", "Reference", "Amount", "Currency", "Status",
}

// exportPageSize bounds each scan while building the ledger.
const exportPageSize = 500

// ExportInvoices writes every invoice matching req.Filters as an .xlsx ledger.
func (s *Service) ExportInvoices(ctx context.Context, req *store.ScanRequest, w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(ledgerSheet, "A1", &ledgerHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	page := store.ScanRequest{SortBy: "issued_at", SortOrder: "asc", Size: exportPageSize}
	if req != nil {
		page.Filters = req.Filters
	}
	if err := page.Validate(invoiceColumns); err != nil {
		return 0, apperr.InvalidArgument.Withf("%v", err)
	}
	written := 0
	for {
		resp, err := s.ScanInvoices(ctx, &page)
		if err != nil {
			return written, err
		}
		for _, inv := range resp.Items {
			cell, err := excelize.CoordinatesToCellName(1, written+2)
			if err != nil {
				return written, err
			}
			row := []interface{}{
				inv.InvoiceNumber, inv.IssuedAt.Format("2006-01-02 15:04:05"), inv.SubscriptionID, inv.CustomerID, inv.Description,
				string(inv.Method), inv.Reference, float64(inv.Amount) / 100, inv.Currency, string(inv.Status),
			}
			if err := f.SetSheetRow(ledgerSheet, cell, &row); err != nil {
				return written, fmt.Errorf("failed to write row: %w", err)
			}
			written++
		}
		page.From += len(resp.Items)
		if len(resp.Items) < exportPageSize || int64(page.From) >= resp.Total {
			break
		}
	}
	if err := f.Write(w); err != nil {
		return written, fmt.Errorf("failed to write ledger: %w", err)
	}
	return written, nil
}
