package models

// Table is the invoice table threaded through the cleaning pipeline. Headers
// keeps the source file's header row verbatim so the cleaned export preserves
// the original column set.
type Table struct {
	Headers []string
	Rows    []*Invoice
}

// NewTable creates a table with the given header row
func NewTable(headers []string) *Table {
	return &Table{
		Headers: append([]string(nil), headers...),
		Rows:    make([]*Invoice, 0),
	}
}

// Clone returns a deep copy of the table. Rule passes operate on clones so a
// pass returns a new table version instead of mutating its input.
func (t *Table) Clone() *Table {
	clone := &Table{
		Headers: append([]string(nil), t.Headers...),
		Rows:    make([]*Invoice, len(t.Rows)),
	}
	for i, row := range t.Rows {
		clone.Rows[i] = row.Clone()
	}
	return clone
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}
