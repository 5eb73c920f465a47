package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a decimal monetary value with a missing marker. Unparseable
// numeric fields become a missing Amount rather than a row error.
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

// NewAmount creates a present Amount
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Value: d, Valid: true}
}

// MissingAmount returns the missing-value marker for numeric fields
func MissingAmount() Amount {
	return Amount{}
}

// ParseAmount parses a decimal value from a raw CSV field. Currency symbols
// and thousand separators are tolerated. Failure yields a missing Amount.
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return MissingAmount()
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return MissingAmount()
	}

	return NewAmount(d)
}

// String returns the decimal representation, or empty string when missing
func (a Amount) String() string {
	if !a.Valid {
		return ""
	}
	return a.Value.String()
}

// Equal compares two Amounts, treating missing as equal to missing
func (a Amount) Equal(other Amount) bool {
	if a.Valid != other.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.Value.Equal(other.Value)
}

// MarshalJSON emits the decimal as a string, or null when missing
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value.String())
}

// Date is a calendar date with a missing marker. Time-of-day is always
// discarded on parse.
type Date struct {
	Time  time.Time
	Valid bool
}

// NewDate creates a present Date truncated to date-only precision
func NewDate(t time.Time) Date {
	return Date{
		Time:  time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		Valid: true,
	}
}

// MissingDate returns the null-date marker
func MissingDate() Date {
	return Date{}
}

// dateFormats are the accepted layouts for free-form date fields, tried in order
var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// ParseDate attempts a permissive date parse; failure yields the null-date
// marker, never an error.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return MissingDate()
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return NewDate(t)
		}
	}

	return MissingDate()
}

// String returns the date as YYYY-MM-DD, or empty string when missing
func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format("2006-01-02")
}

// Equal compares two Dates, treating missing as equal to missing
func (d Date) Equal(other Date) bool {
	if d.Valid != other.Valid {
		return false
	}
	if !d.Valid {
		return true
	}
	return d.Time.Equal(other.Time)
}

// MarshalJSON emits the date as a YYYY-MM-DD string, or null when missing
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// DaysBetween returns whole days from d to other. Both dates must be valid.
func (d Date) DaysBetween(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

// Days is an integer day count with a missing marker. May be negative when an
// invoice was paid before it was issued; that is recomputed, not corrected.
type Days struct {
	Value int
	Valid bool
}

// NewDays creates a present Days value
func NewDays(n int) Days {
	return Days{Value: n, Valid: true}
}

// MissingDays returns the missing marker for day counts
func MissingDays() Days {
	return Days{}
}

// ParseDays parses an integer day count from a raw CSV field. Decimal
// renderings of whole numbers ("9.0") are accepted. Failure yields the
// missing marker.
func ParseDays(s string) Days {
	s = strings.TrimSpace(s)
	if s == "" {
		return MissingDays()
	}

	if n, err := strconv.Atoi(s); err == nil {
		return NewDays(n)
	}

	// Cleaned exports may render day counts as decimals
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return NewDays(int(f))
	}

	return MissingDays()
}

// String returns the integer representation, or empty string when missing
func (d Days) String() string {
	if !d.Valid {
		return ""
	}
	return strconv.Itoa(d.Value)
}

// Equal compares two Days values, treating missing as equal to missing
func (d Days) Equal(other Days) bool {
	if d.Valid != other.Valid {
		return false
	}
	if !d.Valid {
		return true
	}
	return d.Value == other.Value
}

// MarshalJSON emits the day count as a number, or null when missing
func (d Days) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.Value)
}

// Invoice represents one row of the invoice table.
//
// The raw date strings are kept alongside the parsed dates: the days-to-pay
// recompute rule re-parses the original values independently of the date rule,
// so the two passes stay order-independent.
type Invoice struct {
	Row             int // 1-based data row number in the source file
	ClientName      string
	Reference       string
	DateInvoiced    Date
	DatePaid        Date
	InvoiceAmount   Amount
	PaidAmount      Amount
	DaysToPay       Days
	RawDateInvoiced string
	RawDatePaid     string

	// Extra carries source columns beyond the modeled fields, keyed by
	// canonical header name. Cleaning never touches them; the writer puts
	// them back verbatim so no data is lost on the round trip.
	Extra map[string]string
}

// Clone returns a copy of the invoice; rule passes mutate copies, never the
// table they were given.
func (inv *Invoice) Clone() *Invoice {
	clone := *inv
	if inv.Extra != nil {
		clone.Extra = make(map[string]string, len(inv.Extra))
		for k, v := range inv.Extra {
			clone.Extra[k] = v
		}
	}
	return &clone
}

// HasMissing reports whether any field of the record carries a missing
// marker. String fields are not considered: missing strings are normalized to
// empty strings at load time, so only dates, amounts and day counts can still
// be missing by the time the fill rule runs.
func (inv *Invoice) HasMissing() bool {
	return !inv.DateInvoiced.Valid ||
		!inv.DatePaid.Valid ||
		!inv.InvoiceAmount.Valid ||
		!inv.PaidAmount.Valid ||
		!inv.DaysToPay.Valid
}

// String returns a compact representation for logging
func (inv *Invoice) String() string {
	return fmt.Sprintf("Invoice{Row: %d, Client: %s, Ref: %s, Invoiced: %s, Paid: %s, Amount: %s, PaidAmount: %s, Days: %s}",
		inv.Row, inv.ClientName, inv.Reference,
		inv.DateInvoiced.String(), inv.DatePaid.String(),
		inv.InvoiceAmount.String(), inv.PaidAmount.String(), inv.DaysToPay.String())
}
