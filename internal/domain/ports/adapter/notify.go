package adapter

import "context"

type SubmissionCreatedEvent struct {
	FileID             string `json:"file_id"`
	SubmissionID       string `json:"submission_id"`
	RemoteSubmissionID string `json:"remote_submission_id"`
	AssignmentID       string `json:"assignment_id,omitempty"`
	CourseID           string `json:"course_id,omitempty"`
}

// MarkerNotifier tells the downstream marking tool that a learner file entered checking.
type MarkerNotifier interface {
	SubmissionCreated(ctx context.Context, ev SubmissionCreatedEvent) error
}
