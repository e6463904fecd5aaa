package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// EventStatusPending indicates the mentor has not decided yet.
	EventStatusPending = "pending"
	// EventStatusReviewed indicates the mentor entered marks for the event.
	EventStatusReviewed = "reviewed"
	// EventStatusRejected indicates the mentor rejected the event.
	EventStatusRejected = "rejected"
)

// EventSubmission stores one submitted activity category of a student.
type EventSubmission struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	StudentEmail     string            `gorm:"size:255;not null;index" json:"student_email"`
	StudentName      string            `gorm:"size:255" json:"student_name"`
	MentorEmail      string            `gorm:"size:255;not null;index" json:"mentor_email"`
	StudentInfo      datatypes.JSON    `gorm:"type:json" json:"student_info"`
	EventKey         string            `gorm:"size:64;not null;index" json:"event_key"`
	EventTitle       string            `gorm:"size:255;not null" json:"event_title"`
	Counts           datatypes.JSONMap `gorm:"type:json" json:"counts"`
	StudentMarks     datatypes.JSONMap `gorm:"type:json" json:"student_marks"`
	MentorMarks      datatypes.JSONMap `gorm:"type:json" json:"mentor_marks"`
	MentorNote       string            `gorm:"type:text" json:"mentor_note"`
	Status           string            `gorm:"size:32;not null" json:"status"`
	MentorDecisionAt *time.Time        `json:"mentor_decision_at"`
	Attachments      []EventAttachment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"attachments"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// IsDecided reports whether the mentor acted on the submission.
func (s EventSubmission) IsDecided() bool {
	return s.Status == EventStatusReviewed || s.Status == EventStatusRejected
}

// EventAttachment is one stored proof file of an event submission.
type EventAttachment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	EventSubmissionID uint      `gorm:"not null;index" json:"event_submission_id"`
	Position          int       `gorm:"not null" json:"position"`
	Label             string    `gorm:"size:255;not null" json:"label"`
	FileName          string    `gorm:"size:255;not null" json:"file_name"`
	URL               string    `gorm:"size:1024;not null" json:"url"`
	StorageKey        string    `gorm:"size:512" json:"storage_key"`
	ContentType       string    `gorm:"size:128" json:"content_type"`
	Size              int64     `json:"size"`
	CreatedAt         time.Time `json:"created_at"`
}
