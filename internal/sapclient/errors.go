package sapclient

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnreachable indicates the health preflight failed; nothing was submitted.
	ErrBackendUnreachable = errors.New("backend is not reachable")
	// ErrMissingMentorEmail indicates the session has no mentor email to route the submission to.
	ErrMissingMentorEmail = errors.New("mentor email is required")
	// ErrInvalidAttachment indicates an attachment without a file or without a label.
	ErrInvalidAttachment = errors.New("attachment requires a file and a non-empty label")
	// ErrAttachmentRequired indicates the category needs at least one proof attachment.
	ErrAttachmentRequired = errors.New("category requires at least one attachment")
	// ErrInvalidStudentInfo indicates malformed student information, such as a bad email.
	ErrInvalidStudentInfo = errors.New("invalid student information")
	// ErrUnknownField indicates a field or criterion the category does not define.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidValue indicates a negative or non-numeric field value.
	ErrInvalidValue = errors.New("invalid field value")
	// ErrSubmissionFailed indicates every transport attempt failed.
	ErrSubmissionFailed = errors.New("submission failed")
	// ErrApplicationRejected indicates the backend answered with a non-2xx status.
	ErrApplicationRejected = errors.New("submission rejected by server")
	// ErrFeedUnavailable indicates the status feed could not be fetched.
	ErrFeedUnavailable = errors.New("status feed unavailable")
	// ErrAlreadySubmitted indicates the category was already submitted in this session.
	ErrAlreadySubmitted = errors.New("category already submitted")
	// ErrSubmissionInProgress indicates a submission for the category is still running.
	ErrSubmissionInProgress = errors.New("submission already in progress")
)

// SubmissionFailedError carries the last transport error after retries were exhausted.
type SubmissionFailedError struct {
	Attempts int
	Err      error
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("submission failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SubmissionFailedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSubmissionFailed) hold.
func (e *SubmissionFailedError) Is(target error) bool {
	return target == ErrSubmissionFailed
}

// ApplicationRejectedError is a definitive rejection carrying the server's message verbatim.
type ApplicationRejectedError struct {
	StatusCode int
	Message    string
}

func (e *ApplicationRejectedError) Error() string {
	return fmt.Sprintf("submission rejected (status %d): %s", e.StatusCode, e.Message)
}

// Is makes errors.Is(err, ErrApplicationRejected) hold.
func (e *ApplicationRejectedError) Is(target error) bool {
	return target == ErrApplicationRejected
}
