package dto

import (
	"io"
	"time"
)

// ProofFile is one uploaded proof as received by the backend.
type ProofFile struct {
	Label    string
	FileName string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// EventSubmissionRequest is the decoded multipart body of an individual event submission.
// EventData holds the raw JSON {counts, studentMarks} object as sent by the client.
type EventSubmissionRequest struct {
	StudentInfo StudentInfo
	EventKey    string      `validate:"required,max=64"`
	EventTitle  string      `validate:"max=255"`
	MentorEmail string      `validate:"required,email"`
	Email       string      `validate:"required,email"`
	EventData   string      `validate:"max=65536"`
	Files       []ProofFile `validate:"-"`
}

// ActivitySubmissionRequest is the legacy single-proof submission.
type ActivitySubmissionRequest struct {
	Name        string     `validate:"required,max=255"`
	Email       string     `validate:"required,email"`
	Activity    string     `validate:"required,max=255"`
	MentorEmail string     `validate:"required,email"`
	Proof       *ProofFile `validate:"-"`
}

// ActivitySubmissionResponse acknowledges a legacy submission.
type ActivitySubmissionResponse struct {
	ID          uint      `json:"id"`
	Activity    string    `json:"activity"`
	Status      string    `json:"status"`
	ProofURL    string    `json:"proofUrl,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// EventReviewRequest stores a mentor decision on one event submission.
type EventReviewRequest struct {
	Status      string                 `json:"status" validate:"required,oneof=reviewed rejected"`
	MentorMarks map[string]interface{} `json:"mentorMarks"`
	MentorNote  *string                `json:"mentorNote" validate:"omitempty,max=2000"`
}

// ActivityReviewRequest stores a mentor decision on a legacy submission.
type ActivityReviewRequest struct {
	Status       string  `json:"status" validate:"required,oneof=accepted rejected"`
	MarksAwarded *int    `json:"marksAwarded" validate:"omitempty,min=0"`
	DecisionNote *string `json:"decisionNote" validate:"omitempty,max=2000"`
}

// HealthResponse is returned by the preflight endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checkedAt"`
}

// SubmissionEvent is published to the broker whenever a submission is created or reviewed.
type SubmissionEvent struct {
	Type         string    `json:"type"`
	Kind         string    `json:"kind"`
	SubmissionID uint      `json:"submissionId"`
	StudentEmail string    `json:"studentEmail"`
	MentorEmail  string    `json:"mentorEmail"`
	EventKey     string    `json:"eventKey,omitempty"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurredAt"`
}
