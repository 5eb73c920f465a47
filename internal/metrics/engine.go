package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"invoice-insights-service/internal/models"
	"invoice-insights-service/pkg/logger"
)

// CompanyMetrics is the full derived view for one company. All values are
// computed fresh per request from the immutable dataset; nothing is cached,
// in particular not the late threshold, which depends only on that company's
// own rows.
type CompanyMetrics struct {
	AverageDaysToPay float64          `json:"average_days_to_pay"`
	MinDaysToPay     int              `json:"min_days_to_pay"`
	MaxDaysToPay     int              `json:"max_days_to_pay"`
	LateInvoices     []string         `json:"late_invoices"`
	MonthlyTotals    []*BucketTotal   `json:"monthly_totals"`
	WeeklyTotals     []*BucketTotal   `json:"weekly_totals"`
	AnnualTotals     []*BucketTotal   `json:"annual_totals"`
	RevenueOverTime  []*RevenuePoint  `json:"revenue_over_time"`
	Seasonality      []*SeasonalPoint `json:"seasonality"`
	LateDefinition   string           `json:"late_definition"`
}

// BucketTotal is the sum of invoice and paid amounts plus the invoice count
// for one calendar bucket. The JSON label key matches the bucket kind
// (month, week or year).
type BucketTotal struct {
	Label        string
	labelKey     string
	InvoiceTotal decimal.Decimal
	PaidTotal    decimal.Decimal
	InvoiceCount int
}

// MarshalJSON emits the bucket with its kind-specific label key
func (b *BucketTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		b.labelKey:      b.Label,
		"invoice_total": b.InvoiceTotal.String(),
		"paid_total":    b.PaidTotal.String(),
		"invoice_count": b.InvoiceCount,
	})
}

// RevenuePoint is one step of the cumulative paid revenue series
type RevenuePoint struct {
	Date    models.Date     `json:"date"`
	CumPaid decimal.Decimal `json:"cum_paid"`
}

// MarshalJSON emits the cumulative amount as a decimal string
func (rp *RevenuePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"date":     rp.Date,
		"cum_paid": rp.CumPaid.String(),
	})
}

// SeasonalPoint is the average invoice value and invoice count for one
// calendar month number, collapsed across all years. The count field keeps
// its historical avg_invoice_count name even though it is a plain count.
type SeasonalPoint struct {
	Month           int             `json:"month"`
	AvgInvoiceValue decimal.Decimal `json:"avg_invoice_value"`
	InvoiceCount    int             `json:"avg_invoice_count"`
}

// MarshalJSON emits the average as a decimal string
func (sp *SeasonalPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"month":             sp.Month,
		"avg_invoice_value": sp.AvgInvoiceValue.String(),
		"avg_invoice_count": sp.InvoiceCount,
	})
}

// Engine computes per-company metrics over a loaded dataset
type Engine struct {
	dataset *Dataset
	logger  logger.Logger
}

// NewEngine creates a metrics engine over the dataset
func NewEngine(dataset *Dataset) *Engine {
	return &Engine{
		dataset: dataset,
		logger:  logger.GetGlobalLogger().WithComponent("metrics"),
	}
}

// Dataset returns the underlying dataset
func (e *Engine) Dataset() *Dataset {
	return e.dataset
}

// CompanyMetrics computes the full metrics view for one company. Unknown
// identifiers yield the dataset's lookup error.
func (e *Engine) CompanyMetrics(companyID string) (*CompanyMetrics, error) {
	rows, err := e.dataset.CompanyInvoices(companyID)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logger.Fields{
		"company": companyID,
		"rows":    len(rows),
	}).Debug("Computing company metrics")

	avg, min, max := daysStats(rows)

	// Late is relative to this company's own mean, strictly greater than.
	// Rows equal to the mean are on time.
	late := make([]string, 0)
	for _, row := range rows {
		if row.DaysToPay.Valid && float64(row.DaysToPay.Value) > avg {
			late = append(late, row.Reference)
		}
	}

	roundedAvg := math.Round(avg*100) / 100

	return &CompanyMetrics{
		AverageDaysToPay: roundedAvg,
		MinDaysToPay:     min,
		MaxDaysToPay:     max,
		LateInvoices:     late,
		MonthlyTotals:    bucketTotals(rows, "month", monthLabel),
		WeeklyTotals:     bucketTotals(rows, "week", weekLabel),
		AnnualTotals:     bucketTotals(rows, "year", yearLabel),
		RevenueOverTime:  revenueOverTime(rows),
		Seasonality:      seasonality(rows),
		LateDefinition:   fmt.Sprintf("> avg days_to_pay (%s days)", strconv.FormatFloat(roundedAvg, 'f', -1, 64)),
	}, nil
}

// daysStats returns the mean, minimum and maximum days-to-pay over the rows
// that carry a valid day count
func daysStats(rows []*models.Invoice) (avg float64, min, max int) {
	count := 0
	sum := 0
	for _, row := range rows {
		if !row.DaysToPay.Valid {
			continue
		}
		d := row.DaysToPay.Value
		if count == 0 || d < min {
			min = d
		}
		if count == 0 || d > max {
			max = d
		}
		sum += d
		count++
	}

	if count == 0 {
		return 0, 0, 0
	}
	return float64(sum) / float64(count), min, max
}

func monthLabel(t time.Time) string { return t.Format("2006-01") }
func yearLabel(t time.Time) string  { return t.Format("2006") }

// weekLabel renders the week-of-year with Monday as the first day; days
// before the year's first Monday fall in week zero.
func weekLabel(t time.Time) string {
	yday := t.YearDay()
	weekday := (int(t.Weekday()) + 6) % 7 // Monday = 0
	mondayYday := yday - weekday

	week := 0
	if mondayYday > 0 {
		week = (mondayYday-1)/7 + 1
	}

	return fmt.Sprintf("%04d-%02d", t.Year(), week)
}

// bucketTotals groups rows by a calendar bucket of the invoice date and sums
// invoice amounts, paid amounts and counts. Rows without a parseable invoice
// date have no bucket and are skipped. Buckets come back sorted by label,
// which is chronological for every label format used here.
func bucketTotals(rows []*models.Invoice, labelKey string, label func(time.Time) string) []*BucketTotal {
	buckets := make(map[string]*BucketTotal)

	for _, row := range rows {
		if !row.DateInvoiced.Valid {
			continue
		}

		key := label(row.DateInvoiced.Time)
		bucket, exists := buckets[key]
		if !exists {
			bucket = &BucketTotal{Label: key, labelKey: labelKey}
			buckets[key] = bucket
		}

		if row.InvoiceAmount.Valid {
			bucket.InvoiceTotal = bucket.InvoiceTotal.Add(row.InvoiceAmount.Value)
		}
		if row.PaidAmount.Valid {
			bucket.PaidTotal = bucket.PaidTotal.Add(row.PaidAmount.Value)
		}
		bucket.InvoiceCount++
	}

	result := make([]*BucketTotal, 0, len(buckets))
	for _, bucket := range buckets {
		result = append(result, bucket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Label < result[j].Label
	})

	return result
}

// revenueOverTime returns the running total of paid amounts in invoice date
// order, one point per row. Rows are already date-sorted by the dataset.
func revenueOverTime(rows []*models.Invoice) []*RevenuePoint {
	result := make([]*RevenuePoint, 0, len(rows))
	running := decimal.Zero

	for _, row := range rows {
		if !row.DateInvoiced.Valid {
			continue
		}
		if row.PaidAmount.Valid {
			running = running.Add(row.PaidAmount.Value)
		}
		result = append(result, &RevenuePoint{
			Date:    row.DateInvoiced,
			CumPaid: running,
		})
	}

	return result
}

// seasonality averages invoice values and counts invoices per calendar month
// number, collapsing across years
func seasonality(rows []*models.Invoice) []*SeasonalPoint {
	type acc struct {
		total decimal.Decimal
		count int
	}
	months := make(map[int]*acc)

	for _, row := range rows {
		if !row.DateInvoiced.Valid {
			continue
		}

		m := int(row.DateInvoiced.Time.Month())
		a, exists := months[m]
		if !exists {
			a = &acc{}
			months[m] = a
		}

		if row.InvoiceAmount.Valid {
			a.total = a.total.Add(row.InvoiceAmount.Value)
		}
		a.count++
	}

	result := make([]*SeasonalPoint, 0, len(months))
	for m, a := range months {
		avg := decimal.Zero
		if a.count > 0 {
			avg = a.total.Div(decimal.NewFromInt(int64(a.count))).Round(2)
		}
		result = append(result, &SeasonalPoint{
			Month:           m,
			AvgInvoiceValue: avg,
			InvoiceCount:    a.count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Month < result[j].Month
	})

	return result
}
