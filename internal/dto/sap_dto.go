package dto

import "time"

// RecordCategoryIndividualEvents marks the aggregated record that bundles per-event submissions.
const RecordCategoryIndividualEvents = "individualEvents"

// Record and event statuses as reported by the backend.
const (
	StatusPending  = "pending"
	StatusReviewed = "reviewed"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// StudentInfo carries the identity block attached to every submission.
type StudentInfo struct {
	StudentName  string `json:"studentName" validate:"max=255"`
	RollNumber   string `json:"rollNumber" validate:"max=64"`
	Year         string `json:"year" validate:"max=32"`
	Section      string `json:"section" validate:"max=32"`
	Semester     string `json:"semester,omitempty" validate:"max=32"`
	AcademicYear string `json:"academicYear,omitempty" validate:"max=32"`
	MentorName   string `json:"mentorName,omitempty" validate:"max=255"`
	StudentEmail string `json:"studentEmail" validate:"omitempty,email"`
	MentorEmail  string `json:"mentorEmail" validate:"omitempty,email"`
}

// EventData is the counts/marks snapshot submitted for one category.
type EventData struct {
	Counts       map[string]int     `json:"counts"`
	StudentMarks map[string]float64 `json:"studentMarks"`
}

// AttachmentRef describes a stored proof file.
type AttachmentRef struct {
	Label       string `json:"label"`
	FileName    string `json:"fileName"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// EventRecord is one category submission inside an aggregated record.
type EventRecord struct {
	ID               uint                   `json:"id"`
	EventKey         string                 `json:"eventKey"`
	Title            string                 `json:"title"`
	Status           string                 `json:"status"`
	EventData        EventData              `json:"eventData"`
	Attachments      []AttachmentRef        `json:"attachments,omitempty"`
	MentorMarks      map[string]interface{} `json:"mentorMarks,omitempty"`
	MentorNote       string                 `json:"mentorNote,omitempty"`
	SubmittedAt      time.Time              `json:"submittedAt"`
	MentorDecisionAt *time.Time             `json:"mentorDecisionAt,omitempty"`
}

// SubmissionRecord is a backend-owned record as returned by the student marks endpoint.
// Aggregated records carry Events; single-decision records carry Activity and MarksAwarded.
type SubmissionRecord struct {
	ID               string        `json:"_id,omitempty"`
	Category         string        `json:"category,omitempty"`
	Activity         string        `json:"activity,omitempty"`
	StudentEmail     string        `json:"studentEmail"`
	StudentName      string        `json:"studentName,omitempty"`
	MentorEmail      string        `json:"mentorEmail"`
	Status           string        `json:"status"`
	Events           []EventRecord `json:"events,omitempty"`
	MarksAwarded     *int          `json:"marksAwarded,omitempty"`
	DecisionNote     string        `json:"decisionNote,omitempty"`
	ProofURL         string        `json:"proofUrl,omitempty"`
	SubmittedAt      time.Time     `json:"submittedAt"`
	MentorDecisionAt *time.Time    `json:"mentorDecisionAt,omitempty"`
}

// IsAggregated reports whether the record bundles per-event sub-records.
func (r SubmissionRecord) IsAggregated() bool {
	return r.Category == RecordCategoryIndividualEvents
}

// SubmissionAck is the acknowledgment returned for an accepted event submission.
type SubmissionAck struct {
	ID          uint            `json:"id"`
	EventKey    string          `json:"eventKey"`
	EventTitle  string          `json:"eventTitle"`
	Status      string          `json:"status"`
	Attachments []AttachmentRef `json:"attachments"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// Notification is a lightweight status line for the notification view.
type Notification struct {
	ID        string    `json:"_id"`
	Activity  string    `json:"activity"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PointsRangeRow is one row of the marks reference table.
type PointsRangeRow struct {
	Range  string  `json:"range"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Points int     `json:"points"`
}

// PointsReference exposes the conversion table.
type PointsReference struct {
	Ranges    []PointsRangeRow `json:"ranges"`
	MaxPoints int              `json:"maxPoints"`
}

// CriterionPoints is the converted value of one mentor mark.
type CriterionPoints struct {
	Key     string  `json:"key"`
	RawMark float64 `json:"rawMark"`
	Points  int     `json:"points"`
}

// EventPoints summarises the SAP points of one event submission.
type EventPoints struct {
	ID        uint              `json:"id"`
	EventKey  string            `json:"eventKey"`
	Title     string            `json:"title"`
	Status    string            `json:"status"`
	Points    int               `json:"points"`
	Breakdown []CriterionPoints `json:"breakdown"`
}

// StudentPointsResponse is the derived SAP total for one student.
type StudentPointsResponse struct {
	StudentEmail string        `json:"studentEmail"`
	TotalPoints  int           `json:"totalPoints"`
	Events       []EventPoints `json:"events"`
	Activities   int           `json:"activityPoints"`
}
