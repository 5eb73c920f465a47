package parsers

import (
	"fmt"
	"strings"
)

// Field names used internally once headers are canonicalized
const (
	FieldClientName    = "client_name"
	FieldReference     = "invoice_reference"
	FieldDateInvoiced  = "date_invoiced"
	FieldInvoiceAmount = "invoice_amount"
	FieldPaidAmount    = "paid_amount"
	FieldDatePaid      = "date_paid"
	FieldDaysToPay     = "days_to_pay"
)

// InvoiceParserConfig holds configuration for parsing invoice CSV files
type InvoiceParserConfig struct {
	ClientColumn        string            `json:"client_column"`
	ReferenceColumn     string            `json:"reference_column"`
	DateInvoicedColumn  string            `json:"date_invoiced_column"`
	InvoiceAmountColumn string            `json:"invoice_amount_column"`
	PaidAmountColumn    string            `json:"paid_amount_column"`
	DatePaidColumn      string            `json:"date_paid_column"`
	DaysColumn          string            `json:"days_column"`
	HasHeader           bool              `json:"has_header"`
	Delimiter           rune              `json:"delimiter"`
	ColumnAliases       map[string]string `json:"column_aliases,omitempty"`
}

// DefaultInvoiceParserConfig returns a configuration matching the standard
// invoice export format ("Client Name", "Invoice Reference", ...). Columns are
// matched after canonicalization, so header casing and spacing do not matter.
func DefaultInvoiceParserConfig() *InvoiceParserConfig {
	return &InvoiceParserConfig{
		ClientColumn:        FieldClientName,
		ReferenceColumn:     FieldReference,
		DateInvoicedColumn:  FieldDateInvoiced,
		InvoiceAmountColumn: FieldInvoiceAmount,
		PaidAmountColumn:    FieldPaidAmount,
		DatePaidColumn:      FieldDatePaid,
		DaysColumn:          FieldDaysToPay,
		HasHeader:           true,
		Delimiter:           ',',
		ColumnAliases: map[string]string{
			// Common aliases for invoice columns
			"client":               FieldClientName,
			"company":              FieldClientName,
			"customer":             FieldClientName,
			"ref":                  FieldReference,
			"reference":            FieldReference,
			"invoice_ref":          FieldReference,
			"invoice_date":         FieldDateInvoiced,
			"amount":               FieldInvoiceAmount,
			"amount_invoiced":      FieldInvoiceAmount,
			"amount_paid":          FieldPaidAmount,
			"paid_date":            FieldDatePaid,
			"no_days_taken_to_pay": FieldDaysToPay,
			"days_taken_to_pay":    FieldDaysToPay,
			"days":                 FieldDaysToPay,
		},
	}
}

// Validate checks if the invoice parser configuration is valid
func (c *InvoiceParserConfig) Validate() error {
	if strings.TrimSpace(c.ClientColumn) == "" {
		return fmt.Errorf("client column cannot be empty")
	}

	if strings.TrimSpace(c.ReferenceColumn) == "" {
		return fmt.Errorf("reference column cannot be empty")
	}

	if strings.TrimSpace(c.DateInvoicedColumn) == "" {
		return fmt.Errorf("date invoiced column cannot be empty")
	}

	if strings.TrimSpace(c.InvoiceAmountColumn) == "" {
		return fmt.Errorf("invoice amount column cannot be empty")
	}

	if strings.TrimSpace(c.PaidAmountColumn) == "" {
		return fmt.Errorf("paid amount column cannot be empty")
	}

	if strings.TrimSpace(c.DatePaidColumn) == "" {
		return fmt.Errorf("date paid column cannot be empty")
	}

	return nil
}

// RequiredFields returns the canonical field names that must be present in the
// source file. The recorded days column is not required: when absent, every
// day count starts as a missing value and the recompute rule fills it in.
func (c *InvoiceParserConfig) RequiredFields() []string {
	return []string{
		c.ClientColumn,
		c.ReferenceColumn,
		c.DateInvoicedColumn,
		c.InvoiceAmountColumn,
		c.PaidAmountColumn,
		c.DatePaidColumn,
	}
}

// modelFields returns the set of canonical names that feed the modeled
// invoice fields, including any configured column overrides. Columns outside
// this set are carried through as extra data.
func (c *InvoiceParserConfig) modelFields() map[string]bool {
	fields := map[string]bool{
		FieldClientName:    true,
		FieldReference:     true,
		FieldDateInvoiced:  true,
		FieldInvoiceAmount: true,
		FieldPaidAmount:    true,
		FieldDatePaid:      true,
		FieldDaysToPay:     true,
	}
	for _, column := range []string{
		c.ClientColumn, c.ReferenceColumn, c.DateInvoicedColumn,
		c.InvoiceAmountColumn, c.PaidAmountColumn, c.DatePaidColumn, c.DaysColumn,
	} {
		if column != "" {
			fields[column] = true
		}
	}
	return fields
}

// CanonicalizeHeader converts a raw header name to its canonical form:
// trimmed, lowercased, word separators collapsed to single underscores.
// "No. Days taken to Pay" becomes "no_days_taken_to_pay".
func CanonicalizeHeader(header string) string {
	header = strings.ToLower(strings.TrimSpace(header))

	var b strings.Builder
	lastUnderscore := false
	for _, r := range header {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "_")
}

// ResolveField maps a canonical header name to the field it represents,
// consulting aliases first. Unknown headers map to themselves.
func (c *InvoiceParserConfig) ResolveField(canonical string) string {
	if alias, exists := c.ColumnAliases[canonical]; exists {
		return alias
	}
	return canonical
}
