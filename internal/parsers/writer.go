package parsers

import (
	"encoding/csv"
	"os"

	"invoice-insights-service/internal/models"
	"invoice-insights-service/pkg/errors"
	"invoice-insights-service/pkg/logger"
)

// TableWriter persists a cleaned invoice table back to CSV. The header row is
// written exactly as it appeared in the source file; modeled values are the
// normalized forms (dates as YYYY-MM-DD, missing values as empty strings) and
// extra columns are written back verbatim.
type TableWriter struct {
	config *InvoiceParserConfig
	logger logger.Logger
}

// NewTableWriter creates a writer sharing the parser's column configuration
func NewTableWriter(config *InvoiceParserConfig) *TableWriter {
	if config == nil {
		config = DefaultInvoiceParserConfig()
	}
	return &TableWriter{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("table_writer"),
	}
}

// WriteFile writes the table to the given path, creating or truncating it
func (tw *TableWriter) WriteFile(table *models.Table, filePath string) error {
	tw.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"rows":      table.Len(),
	}).Info("Writing cleaned invoice table")

	file, err := os.Create(filePath)
	if err != nil {
		if os.IsPermission(err) {
			return errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = tw.config.Delimiter

	if err := writer.Write(table.Headers); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}

	for _, row := range table.Rows {
		record := make([]string, len(table.Headers))
		for i, header := range table.Headers {
			record[i] = tw.fieldValue(row, tw.config.ResolveField(CanonicalizeHeader(header)))
		}
		if err := writer.Write(record); err != nil {
			return errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}

	return nil
}

func (tw *TableWriter) fieldValue(inv *models.Invoice, field string) string {
	switch field {
	case FieldClientName:
		return inv.ClientName
	case FieldReference:
		return inv.Reference
	case FieldDateInvoiced:
		return inv.DateInvoiced.String()
	case FieldDatePaid:
		return inv.DatePaid.String()
	case FieldInvoiceAmount:
		return inv.InvoiceAmount.String()
	case FieldPaidAmount:
		return inv.PaidAmount.String()
	case FieldDaysToPay:
		return inv.DaysToPay.String()
	default:
		return inv.Extra[field]
	}
}
