package cleaner

import (
	"encoding/json"
	"strings"
	"testing"

	"invoice-insights-service/internal/models"
)

func TestPipelineRuleOrder(t *testing.T) {
	pipeline := NewPipeline()

	want := []string{
		RuleReferenceFormat,
		RuleDateFormat,
		RuleDaysToPay,
		RulePaidClip,
		RuleMissingFill,
	}

	rules := pipeline.Rules()
	if len(rules) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(rules))
	}
	for i, rule := range rules {
		if rule.Name() != want[i] {
			t.Errorf("rule %d: expected %s, got %s", i, want[i], rule.Name())
		}
	}
}

func TestPipelineRun(t *testing.T) {
	// A single row exercising several rules at once: slashed reference,
	// recorded days missing, overpayment.
	table := makeTable(
		makeInvoice(2, "2021/001", "2021-01-01", "2021-01-10", "100.00", "150.00", ""),
	)

	pipeline := NewPipeline()
	cleaned, report := pipeline.Run(table)

	row := cleaned.Rows[0]
	if row.Reference != "2021-001" {
		t.Errorf("expected reference 2021-001, got %q", row.Reference)
	}
	if !row.DaysToPay.Equal(models.NewDays(9)) {
		t.Errorf("expected 9 days, got %v", row.DaysToPay)
	}
	if row.PaidAmount.String() != "100" {
		t.Errorf("expected paid clipped to 100, got %q", row.PaidAmount.String())
	}

	if report.Get(RuleDaysToPay).Len() != 1 {
		t.Error("expected the row in the days report")
	}
	if report.Get(RulePaidClip).Len() != 1 {
		t.Error("expected the row in the clip report")
	}
	if report.Get(RuleReferenceFormat).Len() != 0 {
		t.Error("repaired reference should not be flagged")
	}
	if report.Get(RuleMissingFill).Len() != 0 {
		t.Error("nothing missing remains after the earlier rules")
	}

	// Input table untouched
	if table.Rows[0].Reference != "2021/001" {
		t.Error("pipeline mutated its input table")
	}
}

func TestPipelineIsIdempotent(t *testing.T) {
	table := makeTable(
		makeInvoice(2, "2021/001", "03/15/2021", "03/25/2021", "100.00", "150.00", "3"),
		makeInvoice(3, "bad ref", "garbage", "2021-04-01", "", "", ""),
	)

	pipeline := NewPipeline()
	once, _ := pipeline.Run(table)
	twice, report := pipeline.Run(once)

	for i := range once.Rows {
		a, b := once.Rows[i], twice.Rows[i]
		if a.Reference != b.Reference {
			t.Errorf("row %d: reference changed on second run: %q -> %q", i, a.Reference, b.Reference)
		}
		if !a.DateInvoiced.Equal(b.DateInvoiced) || !a.DatePaid.Equal(b.DatePaid) {
			t.Errorf("row %d: dates changed on second run", i)
		}
		if !a.InvoiceAmount.Equal(b.InvoiceAmount) || !a.PaidAmount.Equal(b.PaidAmount) {
			t.Errorf("row %d: amounts changed on second run", i)
		}
	}

	// The days rule recomputes from raw text, so a row whose dates never
	// parsed keeps being flagged: its filled zero never matches the missing
	// recompute. That is the only acceptable repeat flag for this input.
	if got := report.Get(RuleDaysToPay).Len(); got != 1 {
		t.Errorf("expected 1 repeat days flag for the unparseable-date row, got %d", got)
	}
	if got := report.Get(RulePaidClip).Len(); got != 0 {
		t.Errorf("clip should not re-flag on second run, got %d", got)
	}
}

func TestIssueReportJSON(t *testing.T) {
	table := makeTable(
		makeInvoice(2, "bad", "2021-01-01", "2021-01-10", "100", "150", "9"),
	)

	pipeline := NewPipeline()
	_, report := pipeline.Run(table)

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string][]map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{
		RuleReferenceFormat, RuleDateFormat, RuleDaysToPay, RulePaidClip, RuleMissingFill,
	} {
		if _, exists := decoded[key]; !exists {
			t.Errorf("expected report key %q", key)
		}
	}

	clipEntries := decoded[RulePaidClip]
	if len(clipEntries) != 1 {
		t.Fatalf("expected 1 clip entry, got %d", len(clipEntries))
	}
	entry := clipEntries[0]
	if entry["row"] != float64(2) {
		t.Errorf("expected row 2 in entry, got %v", entry["row"])
	}
	if entry["paid_amount"] != "150" {
		t.Errorf("expected pre-clip paid amount in snapshot, got %v", entry["paid_amount"])
	}
}

func TestIssueReportSummary(t *testing.T) {
	table := makeTable(
		makeInvoice(2, "bad", "2021-01-01", "2021-01-10", "100", "150", "9"),
	)

	pipeline := NewPipeline()
	_, report := pipeline.Run(table)

	summary := report.Summary()
	if !strings.Contains(summary, "invoice_reference_fixed: 1 rows fixed or flagged") {
		t.Errorf("summary missing reference line: %q", summary)
	}
	if !strings.Contains(summary, "paid_gt_invoice_clipped: 1 rows fixed or flagged") {
		t.Errorf("summary missing clip line: %q", summary)
	}

	lines := strings.Count(summary, "\n")
	if lines != 5 {
		t.Errorf("expected 5 summary lines, got %d", lines)
	}
}
