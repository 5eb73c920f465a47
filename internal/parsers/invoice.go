package parsers

import (
	"context"
	"io"
	"strings"

	"invoice-insights-service/internal/models"
	"invoice-insights-service/pkg/errors"
	"invoice-insights-service/pkg/logger"
)

// InvoiceParser loads invoice CSV exports into a models.Table
type InvoiceParser struct {
	*BaseParser
	config *InvoiceParserConfig
	logger logger.Logger
}

// NewInvoiceParser creates a new InvoiceParser with the given configuration
func NewInvoiceParser(config *InvoiceParserConfig) (*InvoiceParser, error) {
	if config == nil {
		config = DefaultInvoiceParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"invoice_parser_config",
			config,
			err,
		).WithSuggestion("Check the invoice parser configuration values")
	}

	parseConfig := &ParseConfig{
		HasHeader:        config.HasHeader,
		Delimiter:        config.Delimiter,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}

	return &InvoiceParser{
		BaseParser: NewBaseParser(parseConfig),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("invoice_parser"),
	}, nil
}

// ParseTable parses a CSV file into an invoice table
func (ip *InvoiceParser) ParseTable(filePath string) (*models.Table, *ParseStats, error) {
	return ip.ParseTableWithContext(context.Background(), filePath)
}

// ParseTableWithContext parses with cancellation support.
//
// Row-level data problems never fail the parse: unparseable numerics become
// missing markers and everything else is carried through as trimmed text for
// the cleaning rules to deal with. The only fatal conditions are file access,
// encoding, and missing required columns.
func (ip *InvoiceParser) ParseTableWithContext(ctx context.Context, filePath string) (*models.Table, *ParseStats, error) {
	ip.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"operation": "parse_invoices",
	}).Info("Starting invoice parsing")

	file, reader, err := ip.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := &ParseStats{}

	if err := ip.ReadHeaders(reader, parseCtx, ip.config, filePath); err != nil {
		ip.logger.WithError(err).WithField("file_path", filePath).Error("Failed to read or validate headers")
		return nil, stats, err
	}

	table := models.NewTable(parseCtx.RawHeaders)
	extras := extraColumns(parseCtx, ip.config)

	for {
		record, err := ip.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, stats, errors.ParseError(
				errors.CodeInvalidFormat,
				filePath,
				parseCtx.LineNumber,
				"record",
				"",
				err,
			)
		}

		stats.RecordsRead++
		table.Rows = append(table.Rows, ip.invoiceFromRecord(record, parseCtx, extras))
	}

	stats.TotalLines = parseCtx.LineNumber

	ip.logger.WithFields(logger.Fields{
		"file_path":    filePath,
		"total_lines":  stats.TotalLines,
		"records_read": stats.RecordsRead,
	}).Info("Invoice parsing completed")

	return table, stats, nil
}

// extraColumn is a source column that does not map onto a modeled field. Its
// values ride along on the invoice untouched.
type extraColumn struct {
	field string
	index int
}

// extraColumns lists the non-modeled columns in header order. When a header
// appears twice, the first column wins, matching the field map.
func extraColumns(parseCtx *ParseContext, config *InvoiceParserConfig) []extraColumn {
	modeled := config.modelFields()

	var extras []extraColumn
	for i, header := range parseCtx.RawHeaders {
		field := config.ResolveField(CanonicalizeHeader(header))
		if modeled[field] {
			continue
		}
		if parseCtx.FieldMap[field] != i {
			continue
		}
		extras = append(extras, extraColumn{field: field, index: i})
	}
	return extras
}

// invoiceFromRecord coerces one CSV record into an Invoice. String fields are
// trimmed with missing values as empty strings; numeric fields parse to
// missing markers on failure; date fields keep their raw text alongside an
// eager parse so later passes can re-parse independently. Values from extra
// columns are kept as-is.
func (ip *InvoiceParser) invoiceFromRecord(record []string, parseCtx *ParseContext, extras []extraColumn) *models.Invoice {
	rawInvoiced := parseCtx.FieldValue(record, FieldDateInvoiced)
	rawPaid := parseCtx.FieldValue(record, FieldDatePaid)

	var extra map[string]string
	if len(extras) > 0 {
		extra = make(map[string]string, len(extras))
		for _, col := range extras {
			value := ""
			if col.index < len(record) {
				value = strings.TrimSpace(record[col.index])
			}
			extra[col.field] = value
		}
	}

	return &models.Invoice{
		Row:             parseCtx.LineNumber,
		ClientName:      parseCtx.FieldValue(record, FieldClientName),
		Reference:       parseCtx.FieldValue(record, FieldReference),
		DateInvoiced:    models.ParseDate(rawInvoiced),
		DatePaid:        models.ParseDate(rawPaid),
		InvoiceAmount:   models.ParseAmount(parseCtx.FieldValue(record, FieldInvoiceAmount)),
		PaidAmount:      models.ParseAmount(parseCtx.FieldValue(record, FieldPaidAmount)),
		DaysToPay:       models.ParseDays(parseCtx.FieldValue(record, FieldDaysToPay)),
		RawDateInvoiced: rawInvoiced,
		RawDatePaid:     rawPaid,
		Extra:           extra,
	}
}
