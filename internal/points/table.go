// Package points converts mentor marks into bounded SAP points and aggregates them.
package points

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Range maps raw marks in [Start, End) to a fixed point value.
type Range struct {
	Start  float64
	End    float64
	Points int
}

// Label renders the range the way the marks reference table shows it (inclusive whole marks).
func (r Range) Label() string {
	return fmt.Sprintf("%s-%s", formatMark(r.Start), formatMark(r.End-1))
}

func formatMark(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Table is an ordered, contiguous, non-overlapping set of ranges starting at zero.
type Table struct {
	rows []Range
	max  int
}

// NewTable validates the rows and builds a conversion table.
func NewTable(rows []Range) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.New("conversion table must contain at least one range")
	}
	if rows[0].Start != 0 {
		return nil, fmt.Errorf("conversion table must start at 0, got %v", rows[0].Start)
	}

	for i, row := range rows {
		if math.IsNaN(row.Start) || math.IsNaN(row.End) || row.End <= row.Start {
			return nil, fmt.Errorf("range %d: end must be greater than start", i)
		}
		if row.Points < 0 {
			return nil, fmt.Errorf("range %d: points must not be negative", i)
		}
		if i == 0 {
			continue
		}
		prev := rows[i-1]
		if row.Start != prev.End {
			return nil, fmt.Errorf("range %d: starts at %v but previous range ends at %v", i, row.Start, prev.End)
		}
		if row.Points < prev.Points {
			return nil, fmt.Errorf("range %d: points decrease from %d to %d", i, prev.Points, row.Points)
		}
	}

	return &Table{
		rows: append([]Range(nil), rows...),
		max:  rows[len(rows)-1].Points,
	}, nil
}

// Convert maps a raw mark to SAP points. Negative, non-finite and out-of-table marks yield 0.
func (t *Table) Convert(raw float64) int {
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 {
		return 0
	}
	for _, row := range t.rows {
		if raw >= row.Start && raw < row.End {
			return row.Points
		}
	}
	return 0
}

// Max returns the largest point value any mark can convert to.
func (t *Table) Max() int {
	return t.max
}

// Rows returns a copy of the table rows.
func (t *Table) Rows() []Range {
	return append([]Range(nil), t.rows...)
}

// Mark ranges are whole marks; each row ends just before the next row starts.
var defaultTable = mustTable([]Range{
	{Start: 0, End: 21, Points: 0},
	{Start: 21, End: 50, Points: 2},
	{Start: 50, End: 80, Points: 3},
	{Start: 80, End: 101, Points: 4},
	{Start: 101, End: 151, Points: 5},
})

func mustTable(rows []Range) *Table {
	t, err := NewTable(rows)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTable returns the authoritative conversion table.
func DefaultTable() *Table {
	return defaultTable
}

// ConvertMarkToPoints converts a raw mark with the default table.
func ConvertMarkToPoints(raw float64) int {
	return defaultTable.Convert(raw)
}

// ParseMark extracts a numeric mark from a decoded JSON value. Non-numeric input yields NaN.
func ParseMark(v interface{}) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case uint:
		return float64(value)
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return math.NaN()
		}
		return parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return math.NaN()
		}
		return parsed
	default:
		return math.NaN()
	}
}
