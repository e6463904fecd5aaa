package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// ActivityStatusPending indicates the mentor has not decided yet.
	ActivityStatusPending = "pending"
	// ActivityStatusAccepted indicates the mentor accepted the proof.
	ActivityStatusAccepted = "accepted"
	// ActivityStatusRejected indicates the mentor rejected the proof.
	ActivityStatusRejected = "rejected"
)

// ActivitySubmission is a single-proof submission decided as a whole by the mentor.
type ActivitySubmission struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	StudentName      string     `gorm:"size:255;not null" json:"student_name"`
	StudentEmail     string     `gorm:"size:255;not null;index" json:"student_email"`
	MentorEmail      string     `gorm:"size:255;not null;index" json:"mentor_email"`
	Activity         string     `gorm:"size:255;not null" json:"activity"`
	ProofURL         string     `gorm:"size:1024" json:"proof_url"`
	ProofKey         string     `gorm:"size:512" json:"proof_key"`
	Status           string     `gorm:"size:32;not null" json:"status"`
	MarksAwarded     *int       `json:"marks_awarded"`
	DecisionNote     string     `gorm:"type:text" json:"decision_note"`
	MentorDecisionAt *time.Time `json:"mentor_decision_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ReviewLog captures every mentor decision stored by the backend.
type ReviewLog struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	MentorEmail string            `gorm:"size:255;not null;index" json:"mentor_email"`
	Action      string            `gorm:"size:64;not null" json:"action"`
	EntityType  string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID    uint              `gorm:"not null" json:"entity_id"`
	Metadata    datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}
