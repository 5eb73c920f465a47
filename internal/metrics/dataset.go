// Package metrics derives per-company financial statistics from the cleaned
// invoice table. The dataset is loaded once at process start and treated as
// immutable afterwards, so concurrent readers need no locking; every request
// filters and aggregates over the same shared table.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"invoice-insights-service/internal/models"
	"invoice-insights-service/internal/parsers"
	"invoice-insights-service/pkg/errors"
	"invoice-insights-service/pkg/logger"
)

// CompanyPrefix prefixes client names to form external company identifiers
const CompanyPrefix = "company_"

// Dataset is the cleaned invoice table indexed by company. It is never
// mutated after load.
type Dataset struct {
	companies []string
	byCompany map[string][]*models.Invoice
	total     int
	logger    logger.Logger
}

// LoadDataset reads the cleaned CSV produced by the cleaning pipeline.
// Missing required columns are a schema error and the caller should refuse
// to start. Days-to-pay is recomputed from the parsed dates at load so the
// metrics never trust a stale recorded value.
func LoadDataset(filePath string, config *parsers.InvoiceParserConfig) (*Dataset, error) {
	log := logger.GetGlobalLogger().WithComponent("dataset")

	parser, err := parsers.NewInvoiceParser(config)
	if err != nil {
		return nil, err
	}

	table, stats, err := parser.ParseTable(filePath)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		byCompany: make(map[string][]*models.Invoice),
		logger:    log,
	}

	for _, row := range table.Rows {
		if row.DateInvoiced.Valid && row.DatePaid.Valid {
			row.DaysToPay = models.NewDays(row.DateInvoiced.DaysBetween(row.DatePaid))
		} else {
			row.DaysToPay = models.MissingDays()
		}

		client := strings.TrimSpace(row.ClientName)
		if client == "" {
			continue
		}

		id := CompanyPrefix + client
		ds.byCompany[id] = append(ds.byCompany[id], row)
		ds.total++
	}

	ds.companies = make([]string, 0, len(ds.byCompany))
	for id := range ds.byCompany {
		ds.companies = append(ds.companies, id)
	}
	sort.Strings(ds.companies)

	// Invoices are served sorted by invoice date ascending; rows whose date
	// never parsed sort last.
	for _, rows := range ds.byCompany {
		sort.SliceStable(rows, func(i, j int) bool {
			di, dj := rows[i].DateInvoiced, rows[j].DateInvoiced
			if di.Valid != dj.Valid {
				return di.Valid
			}
			return di.Time.Before(dj.Time)
		})
	}

	log.WithFields(logger.Fields{
		"file_path": filePath,
		"rows":      ds.total,
		"companies": len(ds.companies),
		"stats":     stats.String(),
	}).Info("Loaded cleaned invoice dataset")

	return ds, nil
}

// Companies returns the sorted company identifiers. The slice is a copy; the
// dataset stays immutable.
func (ds *Dataset) Companies() []string {
	out := make([]string, len(ds.companies))
	copy(out, ds.companies)
	return out
}

// CompanyInvoices returns one company's invoices sorted by invoice date
// ascending. An unrecognized identifier yields a lookup error: it is distinct
// from a recognized company, which by construction always has at least one
// row.
func (ds *Dataset) CompanyInvoices(companyID string) ([]*models.Invoice, error) {
	rows, exists := ds.byCompany[companyID]
	if !exists {
		return nil, errors.CompanyNotFoundError(companyID)
	}
	return rows, nil
}

// Len returns the number of rows attributed to a company
func (ds *Dataset) Len() int {
	return ds.total
}

// SampleCSV renders up to limit rows of one company as CSV text, header
// included. Used to bound the insight prompt size.
func (ds *Dataset) SampleCSV(companyID string, limit int) (string, error) {
	rows, err := ds.CompanyInvoices(companyID)
	if err != nil {
		return "", err
	}

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	var b strings.Builder
	b.WriteString("client_name,invoice_reference,date_invoiced,invoice_amount,paid_amount,date_paid,days_to_pay\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s,%s\n",
			row.ClientName, row.Reference,
			row.DateInvoiced.String(), row.InvoiceAmount.String(),
			row.PaidAmount.String(), row.DatePaid.String(),
			row.DaysToPay.String())
	}

	return b.String(), nil
}
