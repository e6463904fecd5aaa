package sapclient

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/points"
)

// StudentInfo is the identity block shared by every draft of a session.
type StudentInfo = dto.StudentInfo

// FieldKind selects which per-criterion mapping a field update targets.
type FieldKind string

const (
	// FieldCount updates the count entered for a criterion.
	FieldCount FieldKind = "counts"
	// FieldStudentMark updates the student's self-assessed mark for a criterion.
	FieldStudentMark FieldKind = "studentMarks"
)

// Attachment is one labelled proof file.
type Attachment struct {
	ID    string
	Label string
	File  File
}

// Draft is the unsubmitted data for one category. It is owned by a single session.
type Draft struct {
	category    catalog.Category
	info        *StudentInfo
	counts      map[string]int
	marks       map[string]float64
	attachments []Attachment
}

func newDraft(category catalog.Category, info *StudentInfo) *Draft {
	return &Draft{
		category: category,
		info:     info,
		counts:   make(map[string]int),
		marks:    make(map[string]float64),
	}
}

// Category returns the category the draft was opened for.
func (d *Draft) Category() catalog.Category {
	return d.category
}

// Counts returns a copy of the entered counts.
func (d *Draft) Counts() map[string]int {
	out := make(map[string]int, len(d.counts))
	for k, v := range d.counts {
		out[k] = v
	}
	return out
}

// StudentMarks returns a copy of the entered student marks.
func (d *Draft) StudentMarks() map[string]float64 {
	out := make(map[string]float64, len(d.marks))
	for k, v := range d.marks {
		out[k] = v
	}
	return out
}

// Attachments returns the attachments in insertion order.
func (d *Draft) Attachments() []Attachment {
	return append([]Attachment(nil), d.attachments...)
}

// ClaimedPoints is the capped weight total implied by the entered counts.
func (d *Draft) ClaimedPoints() int {
	return points.ClaimedPoints(d.category, d.counts)
}

// UpdateField sets a count or student mark from raw input. An empty value clears the entry.
func (d *Draft) UpdateField(kind FieldKind, key, value string) error {
	if kind != FieldCount && kind != FieldStudentMark {
		return fmt.Errorf("%w: %s", ErrUnknownField, kind)
	}
	if !d.category.HasCriterion(key) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, kind, key)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		if kind == FieldCount {
			delete(d.counts, key)
		} else {
			delete(d.marks, key)
		}
		return nil
	}

	if kind == FieldCount {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s.%s=%q", ErrInvalidValue, kind, key, value)
		}
		return d.SetCount(key, n)
	}

	mark, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: %s.%s=%q", ErrInvalidValue, kind, key, value)
	}
	return d.SetStudentMark(key, mark)
}

// SetCount records a non-negative count for a criterion.
func (d *Draft) SetCount(key string, count int) error {
	if !d.category.HasCriterion(key) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, FieldCount, key)
	}
	if count < 0 {
		return fmt.Errorf("%w: %s.%s must not be negative", ErrInvalidValue, FieldCount, key)
	}
	d.counts[key] = count
	return nil
}

// SetStudentMark records a non-negative self-assessed mark for a criterion.
func (d *Draft) SetStudentMark(key string, mark float64) error {
	if !d.category.HasCriterion(key) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, FieldStudentMark, key)
	}
	if math.IsNaN(mark) || math.IsInf(mark, 0) || mark < 0 {
		return fmt.Errorf("%w: %s.%s must be a non-negative number", ErrInvalidValue, FieldStudentMark, key)
	}
	d.marks[key] = mark
	return nil
}

// AddAttachment appends a labelled file and returns its generated id.
func (d *Draft) AddAttachment(file File, label string) (string, error) {
	if file == nil || strings.TrimSpace(label) == "" {
		return "", ErrInvalidAttachment
	}

	id := uuid.NewString()
	d.attachments = append(d.attachments, Attachment{
		ID:    id,
		Label: strings.TrimSpace(label),
		File:  file,
	})
	return id, nil
}

// RemoveAttachment drops the attachment with the given id and reports whether one was removed.
func (d *Draft) RemoveAttachment(id string) bool {
	for i, attachment := range d.attachments {
		if attachment.ID == id {
			d.attachments = append(d.attachments[:i], d.attachments[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Draft) eventData() dto.EventData {
	return dto.EventData{
		Counts:       d.Counts(),
		StudentMarks: d.StudentMarks(),
	}
}
