package metrics

import (
	"testing"
	"time"
)

func TestCompanyMetrics(t *testing.T) {
	ds := loadTestDataset(t, testCSV)
	engine := NewEngine(ds)

	// company_3 recomputed day counts: 9, 2, 20
	m, err := engine.CompanyMetrics("company_3")
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}

	if m.AverageDaysToPay != 10.33 {
		t.Errorf("expected average 10.33, got %v", m.AverageDaysToPay)
	}
	if m.MinDaysToPay != 2 {
		t.Errorf("expected min 2, got %d", m.MinDaysToPay)
	}
	if m.MaxDaysToPay != 20 {
		t.Errorf("expected max 20, got %d", m.MaxDaysToPay)
	}

	if m.LateDefinition != "> avg days_to_pay (10.33 days)" {
		t.Errorf("unexpected late definition: %q", m.LateDefinition)
	}
}

func TestCompanyMetricsLateInvoices(t *testing.T) {
	ds := loadTestDataset(t, testCSV)
	engine := NewEngine(ds)

	m, err := engine.CompanyMetrics("company_3")
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}

	// Only the 20-day invoice exceeds the 10.33-day mean; the 9-day one is
	// below it and must not be marked late.
	if len(m.LateInvoices) != 1 {
		t.Fatalf("expected 1 late invoice, got %d: %v", len(m.LateInvoices), m.LateInvoices)
	}
	if m.LateInvoices[0] != "2021-002" {
		t.Errorf("expected 2021-002 late, got %s", m.LateInvoices[0])
	}
}

func TestCompanyMetricsLateStrictlyGreater(t *testing.T) {
	// Two invoices with identical day counts: the mean equals every value,
	// so nothing is late.
	csv := `Client Name,Invoice Reference,Date Invoiced,Invoice Amount,Paid Amount,Date Paid,Days To Pay
3,2021-001,2021-01-01,100.00,100.00,2021-01-11,10
3,2021-002,2021-02-01,200.00,200.00,2021-02-11,10
`
	ds := loadTestDataset(t, csv)
	engine := NewEngine(ds)

	m, err := engine.CompanyMetrics("company_3")
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	if len(m.LateInvoices) != 0 {
		t.Errorf("rows at the mean are on time, got %v", m.LateInvoices)
	}
}

func TestCompanyMetricsBucketTotals(t *testing.T) {
	ds := loadTestDataset(t, testCSV)
	engine := NewEngine(ds)

	m, err := engine.CompanyMetrics("company_3")
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}

	if len(m.MonthlyTotals) != 2 {
		t.Fatalf("expected 2 monthly buckets, got %d", len(m.MonthlyTotals))
	}
	jan := m.MonthlyTotals[0]
	if jan.Label != "2021-01" {
		t.Errorf("expected label 2021-01, got %q", jan.Label)
	}
	if jan.InvoiceTotal.String() != "400" {
		t.Errorf("expected January invoice total 400, got %s", jan.InvoiceTotal.String())
	}
	if jan.PaidTotal.String() != "400" {
		t.Errorf("expected January paid total 400, got %s", jan.PaidTotal.String())
	}
	if jan.InvoiceCount != 2 {
		t.Errorf("expected 2 January invoices, got %d", jan.InvoiceCount)
	}

	feb := m.MonthlyTotals[1]
	if feb.Label != "2021-02" || feb.PaidTotal.String() != "150" {
		t.Errorf("unexpected February bucket: %s paid %s", feb.Label, feb.PaidTotal.String())
	}

	if len(m.AnnualTotals) != 1 {
		t.Fatalf("expected 1 annual bucket, got %d", len(m.AnnualTotals))
	}
	year := m.AnnualTotals[0]
	if year.Label != "2021" || year.InvoiceTotal.String() != "600" || year.InvoiceCount != 3 {
		t.Errorf("unexpected annual bucket: %s total %s count %d",
			year.Label, year.InvoiceTotal.String(), year.InvoiceCount)
	}

	if len(m.WeeklyTotals) != 3 {
		t.Fatalf("expected 3 weekly buckets, got %d", len(m.WeeklyTotals))
	}
	wantWeeks := []string{"2021-00", "2021-02", "2021-05"}
	for i, want := range wantWeeks {
		if m.WeeklyTotals[i].Label != want {
			t.Errorf("week %d: expected label %s, got %s", i, want, m.WeeklyTotals[i].Label)
		}
	}
}

func TestWeekLabel(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{date: "2024-01-01", want: "2024-01"}, // Monday, first week
		{date: "2024-01-07", want: "2024-01"}, // Sunday of the same week
		{date: "2024-01-08", want: "2024-02"},
		{date: "2023-01-01", want: "2023-00"}, // Sunday before the first Monday
		{date: "2023-01-02", want: "2023-01"},
		{date: "2021-01-01", want: "2021-00"}, // Friday before the first Monday
		{date: "2024-12-31", want: "2024-53"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			day, err := time.Parse("2006-01-02", tt.date)
			if err != nil {
				t.Fatalf("bad test date: %v", err)
			}
			if got := weekLabel(day); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCompanyMetricsRevenueOverTime(t *testing.T) {
	ds := loadTestDataset(t, testCSV)
	engine := NewEngine(ds)

	m, err := engine.CompanyMetrics("company_3")
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}

	if len(m.RevenueOverTime) != 3 {
		t.Fatalf("expected 3 revenue points, got %d", len(m.RevenueOverTime))
	}

	wantCum := []string{"100", "400", "550"}
	wantDates := []string{"2021-01-01", "2021-01-15", "2021-02-01"}
	for i := range wantCum {
		point := m.RevenueOverTime[i]
		if point.CumPaid.String() != wantCum[i] {
			t.Errorf("point %d: expected cumulative %s, got %s", i, wantCum[i], point.CumPaid.String())
		}
		if point.Date.String() != wantDates[i] {
			t.Errorf("point %d: expected date %s, got %s", i, wantDates[i], point.Date.String())
		}
	}
}

func TestCompanyMetricsSeasonality(t *testing.T) {
	ds := loadTestDataset(t, testCSV)
	engine := NewEngine(ds)

	m, err := engine.CompanyMetrics("company_3")
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}

	if len(m.Seasonality) != 2 {
		t.Fatalf("expected 2 seasonal points, got %d", len(m.Seasonality))
	}

	jan := m.Seasonality[0]
	if jan.Month != 1 {
		t.Errorf("expected month 1 first, got %d", jan.Month)
	}
	if jan.AvgInvoiceValue.String() != "200" {
		t.Errorf("expected January average 200, got %s", jan.AvgInvoiceValue.String())
	}
	if jan.InvoiceCount != 2 {
		t.Errorf("expected 2 January invoices, got %d", jan.InvoiceCount)
	}

	feb := m.Seasonality[1]
	if feb.Month != 2 || feb.InvoiceCount != 1 {
		t.Errorf("unexpected February point: month %d count %d", feb.Month, feb.InvoiceCount)
	}
}

func TestCompanyMetricsSeasonalityCollapsesYears(t *testing.T) {
	csv := `Client Name,Invoice Reference,Date Invoiced,Invoice Amount,Paid Amount,Date Paid,Days To Pay
3,2020-001,2020-03-10,100.00,100.00,2020-03-15,5
3,2021-001,2021-03-10,300.00,300.00,2021-03-15,5
`
	ds := loadTestDataset(t, csv)
	engine := NewEngine(ds)

	m, err := engine.CompanyMetrics("company_3")
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}

	if len(m.Seasonality) != 1 {
		t.Fatalf("expected both years collapsed into one March point, got %d", len(m.Seasonality))
	}
	point := m.Seasonality[0]
	if point.Month != 3 || point.InvoiceCount != 2 {
		t.Errorf("unexpected point: month %d count %d", point.Month, point.InvoiceCount)
	}
	if point.AvgInvoiceValue.String() != "200" {
		t.Errorf("expected average 200 across years, got %s", point.AvgInvoiceValue.String())
	}

	// Annual buckets stay per-year
	if len(m.AnnualTotals) != 2 {
		t.Errorf("expected 2 annual buckets, got %d", len(m.AnnualTotals))
	}
}

func TestCompanyMetricsUnknownCompany(t *testing.T) {
	ds := loadTestDataset(t, testCSV)
	engine := NewEngine(ds)

	if _, err := engine.CompanyMetrics("company_99"); err == nil {
		t.Fatal("expected error for unknown company")
	}
}
