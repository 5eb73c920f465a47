// Package cleaner implements the invoice validation and repair pipeline: five
// independent rule passes chained by a fixed-order orchestrator.
//
// Every rule is a pure function over the table: it clones its input, applies
// its fix, and returns the new table together with a report of the rows it
// altered or could not fix. Anything a rule cannot repair is left in place
// and flagged; no rule raises a row-level error and no rule consults another
// rule's report.
package cleaner

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"invoice-insights-service/internal/models"
)

// Rule names, used as keys in the issue report
const (
	RuleReferenceFormat = "invoice_reference_fixed"
	RuleDateFormat      = "date_format_fixed"
	RuleDaysToPay       = "days_to_pay_fixed"
	RulePaidClip        = "paid_gt_invoice_clipped"
	RuleMissingFill     = "missing_values_filled"
)

// referencePattern is the canonical invoice reference format: a 4-digit year
// segment, a hyphen, and one or more digits.
var referencePattern = regexp.MustCompile(`^\d{4}-\d+$`)

// Rule is a single fix-up pass over the invoice table
type Rule interface {
	Name() string
	Apply(table *models.Table) (*models.Table, *RuleReport)
}

// ReferenceRule canonicalizes invoice references: uppercase, internal spaces
// removed, slashes replaced with hyphens. No zero-padding is attempted.
// Rows whose resulting reference still fails the canonical pattern are
// flagged for review; empty references skip the transform but are flagged
// too, since an empty string never matches the pattern.
type ReferenceRule struct{}

// Name returns the rule's report key
func (r *ReferenceRule) Name() string { return RuleReferenceFormat }

// Apply runs the reference fix-up over a clone of the table
func (r *ReferenceRule) Apply(table *models.Table) (*models.Table, *RuleReport) {
	work := table.Clone()
	report := NewRuleReport(r.Name())

	for _, row := range work.Rows {
		if row.Reference != "" {
			ref := strings.ToUpper(row.Reference)
			ref = strings.ReplaceAll(ref, " ", "")
			ref = strings.ReplaceAll(ref, "/", "-")
			row.Reference = ref
		}

		if !referencePattern.MatchString(row.Reference) {
			report.Flag(row)
		}
	}

	return work, report
}

// DateRule parses the two date columns from their original free-form text.
// Unparseable values become the null-date marker and are flagged per column;
// they are not corrected further by this or any other rule. Successfully
// parsed values carry date-only precision.
type DateRule struct{}

// Name returns the rule's report key
func (r *DateRule) Name() string { return RuleDateFormat }

// Apply runs the date parse over a clone of the table
func (r *DateRule) Apply(table *models.Table) (*models.Table, *RuleReport) {
	work := table.Clone()
	report := NewRuleReport(r.Name())

	for _, row := range work.Rows {
		row.DateInvoiced = models.ParseDate(row.RawDateInvoiced)
		if !row.DateInvoiced.Valid {
			report.FlagColumn(row, "date_invoiced")
		}

		row.DatePaid = models.ParseDate(row.RawDatePaid)
		if !row.DatePaid.Valid {
			report.FlagColumn(row, "date_paid")
		}
	}

	return work, report
}

// DaysRule recomputes days-to-pay as paid date minus invoice date in whole
// days and overwrites the recorded value unconditionally. It re-parses the
// original date text itself rather than relying on the date rule having run,
// keeping the passes order-independent. Rows whose recomputed value differs
// from the value on record before this rule ran are flagged for audit; a row
// where both the recorded and recomputed value are missing is not a mismatch.
type DaysRule struct{}

// Name returns the rule's report key
func (r *DaysRule) Name() string { return RuleDaysToPay }

// Apply runs the recompute over a clone of the table
func (r *DaysRule) Apply(table *models.Table) (*models.Table, *RuleReport) {
	work := table.Clone()
	report := NewRuleReport(r.Name())

	for _, row := range work.Rows {
		invoiced := models.ParseDate(row.RawDateInvoiced)
		paid := models.ParseDate(row.RawDatePaid)

		computed := models.MissingDays()
		if invoiced.Valid && paid.Valid {
			computed = models.NewDays(invoiced.DaysBetween(paid))
		}

		if !computed.Equal(row.DaysToPay) {
			report.Flag(row)
		}

		row.DaysToPay = computed
	}

	return work, report
}

// ClipRule enforces paid_amount <= invoice_amount by clipping the paid amount
// down to the invoice amount. It never adjusts upward. Flagged snapshots are
// taken before the clip so the pre-clip values stay recoverable.
type ClipRule struct{}

// Name returns the rule's report key
func (r *ClipRule) Name() string { return RulePaidClip }

// Apply runs the clip over a clone of the table
func (r *ClipRule) Apply(table *models.Table) (*models.Table, *RuleReport) {
	work := table.Clone()
	report := NewRuleReport(r.Name())

	for _, row := range work.Rows {
		if !row.PaidAmount.Valid || !row.InvoiceAmount.Valid {
			continue
		}
		if row.PaidAmount.Value.GreaterThan(row.InvoiceAmount.Value) {
			report.Flag(row)
			row.PaidAmount = models.NewAmount(row.InvoiceAmount.Value)
		}
	}

	return work, report
}

// FillRule eliminates whatever missing values remain after the earlier rules:
// missing numerics become zero, missing strings stay empty. It runs over all
// columns, not only the ones earlier rules touched. Dates that never parsed
// stay null and serialize as empty strings. Rows that had any missing field
// are snapshotted before filling.
type FillRule struct{}

// Name returns the rule's report key
func (r *FillRule) Name() string { return RuleMissingFill }

// Apply runs the fill over a clone of the table
func (r *FillRule) Apply(table *models.Table) (*models.Table, *RuleReport) {
	work := table.Clone()
	report := NewRuleReport(r.Name())

	for _, row := range work.Rows {
		if row.HasMissing() {
			report.Flag(row)
		}

		if !row.InvoiceAmount.Valid {
			row.InvoiceAmount = models.NewAmount(decimal.Zero)
		}
		if !row.PaidAmount.Valid {
			row.PaidAmount = models.NewAmount(decimal.Zero)
		}
		if !row.DaysToPay.Valid {
			row.DaysToPay = models.NewDays(0)
		}
	}

	return work, report
}
