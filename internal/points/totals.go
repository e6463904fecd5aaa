package points

import (
	"math"
	"sort"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/dto"
)

// TotalPointsForEvent sums the converted value of every mentor mark.
func TotalPointsForEvent(marks map[string]interface{}) int {
	return defaultTable.TotalForEvent(marks)
}

// TotalForEvent sums the converted value of every mentor mark using t.
func (t *Table) TotalForEvent(marks map[string]interface{}) int {
	total := 0
	for _, mark := range marks {
		total += t.Convert(ParseMark(mark))
	}
	return total
}

// TotalPointsForStudent aggregates the SAP points of all decided records.
func TotalPointsForStudent(records []dto.SubmissionRecord) int {
	return defaultTable.TotalForStudent(records)
}

// TotalForStudent aggregates the SAP points of all decided records using t.
// Reviewed events and accepted single-decision records count; everything else contributes 0.
func (t *Table) TotalForStudent(records []dto.SubmissionRecord) int {
	total := 0
	for _, record := range records {
		if record.IsAggregated() {
			for _, event := range record.Events {
				if event.Status == dto.StatusReviewed {
					total += t.TotalForEvent(event.MentorMarks)
				}
			}
			continue
		}
		if record.Status == dto.StatusAccepted && record.MarksAwarded != nil && *record.MarksAwarded > 0 {
			total += *record.MarksAwarded
		}
	}
	return total
}

// Breakdown converts each mentor mark, ordered by criterion key.
func (t *Table) Breakdown(marks map[string]interface{}) []dto.CriterionPoints {
	keys := make([]string, 0, len(marks))
	for key := range marks {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]dto.CriterionPoints, 0, len(keys))
	for _, key := range keys {
		raw := ParseMark(marks[key])
		points := t.Convert(raw)
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			raw = 0
		}
		out = append(out, dto.CriterionPoints{Key: key, RawMark: raw, Points: points})
	}
	return out
}

// Reference renders the table as the marks reference DTO.
func (t *Table) Reference() dto.PointsReference {
	rows := make([]dto.PointsRangeRow, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, dto.PointsRangeRow{
			Range:  row.Label(),
			Start:  row.Start,
			End:    row.End,
			Points: row.Points,
		})
	}
	return dto.PointsReference{Ranges: rows, MaxPoints: t.max}
}

// ClaimedPoints is the student's self-claimed weight total for a category,
// sum(count x weight) capped at the category maximum. Unknown criteria are ignored.
func ClaimedPoints(category catalog.Category, counts map[string]int) int {
	total := 0
	for _, criterion := range category.Criteria {
		count := counts[criterion.Key]
		if count <= 0 || criterion.Points <= 0 {
			continue
		}
		if count > (category.MaxPoints-total)/criterion.Points {
			return category.MaxPoints
		}
		total += count * criterion.Points
		if total >= category.MaxPoints {
			return category.MaxPoints
		}
	}
	return total
}
