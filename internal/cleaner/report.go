package cleaner

import (
	"encoding/json"
	"fmt"
	"strings"

	"invoice-insights-service/internal/models"
)

// FlaggedRow is one entry in a rule's report: a snapshot of the record taken
// at the moment the rule altered or flagged it. For rules that mutate the row
// (clip, recompute) the snapshot holds the pre-mutation values.
type FlaggedRow struct {
	Row     int             `json:"row"`
	Column  string          `json:"column,omitempty"` // set by per-column rules (dates)
	Invoice *models.Invoice `json:"-"`
}

// MarshalJSON flattens the invoice snapshot into the entry
func (f *FlaggedRow) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"row": f.Row,
	}
	if f.Column != "" {
		out["column"] = f.Column
	}
	if f.Invoice != nil {
		out["client_name"] = f.Invoice.ClientName
		out["invoice_reference"] = f.Invoice.Reference
		out["date_invoiced"] = f.Invoice.DateInvoiced
		out["date_paid"] = f.Invoice.DatePaid
		out["invoice_amount"] = f.Invoice.InvoiceAmount
		out["paid_amount"] = f.Invoice.PaidAmount
		out["days_to_pay"] = f.Invoice.DaysToPay
	}
	return json.Marshal(out)
}

// RuleReport collects the rows a single rule altered or could not fix. It is
// diagnostic only: no rule ever reads another rule's report.
type RuleReport struct {
	Rule    string        `json:"rule"`
	Entries []*FlaggedRow `json:"entries"`
}

// NewRuleReport creates an empty report for a rule
func NewRuleReport(rule string) *RuleReport {
	return &RuleReport{
		Rule:    rule,
		Entries: make([]*FlaggedRow, 0),
	}
}

// Flag records a snapshot of a row
func (r *RuleReport) Flag(inv *models.Invoice) {
	r.Entries = append(r.Entries, &FlaggedRow{Row: inv.Row, Invoice: inv.Clone()})
}

// FlagColumn records a snapshot of a row attributed to one column
func (r *RuleReport) FlagColumn(inv *models.Invoice, column string) {
	r.Entries = append(r.Entries, &FlaggedRow{Row: inv.Row, Column: column, Invoice: inv.Clone()})
}

// Len returns the number of flagged rows
func (r *RuleReport) Len() int {
	return len(r.Entries)
}

// IssueReport aggregates every rule's report, keyed by rule name, preserving
// the order the rules ran in.
type IssueReport struct {
	Order   []string
	Reports map[string]*RuleReport
}

// NewIssueReport creates an empty issue report
func NewIssueReport() *IssueReport {
	return &IssueReport{
		Order:   make([]string, 0),
		Reports: make(map[string]*RuleReport),
	}
}

// Add appends a rule report, keeping run order
func (ir *IssueReport) Add(report *RuleReport) {
	if _, exists := ir.Reports[report.Rule]; !exists {
		ir.Order = append(ir.Order, report.Rule)
	}
	ir.Reports[report.Rule] = report
}

// Get returns the report for a rule, or nil
func (ir *IssueReport) Get(rule string) *RuleReport {
	return ir.Reports[rule]
}

// TotalFlagged returns the number of flagged rows across all rules
func (ir *IssueReport) TotalFlagged() int {
	total := 0
	for _, report := range ir.Reports {
		total += report.Len()
	}
	return total
}

// Summary returns a one-line-per-rule human-readable summary
func (ir *IssueReport) Summary() string {
	var b strings.Builder
	for _, rule := range ir.Order {
		fmt.Fprintf(&b, "%s: %d rows fixed or flagged\n", rule, ir.Reports[rule].Len())
	}
	return b.String()
}

// MarshalJSON emits the report as a map of rule name to flagged entries
func (ir *IssueReport) MarshalJSON() ([]byte, error) {
	out := make(map[string][]*FlaggedRow, len(ir.Reports))
	for rule, report := range ir.Reports {
		out[rule] = report.Entries
	}
	return json.Marshal(out)
}
