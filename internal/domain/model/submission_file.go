package model

import "time"

// FileRole distinguishes learner uploads from marker-authored feedback files.
type FileRole string

const (
	FileRoleLearnerSubmission FileRole = "learner_submission"
	FileRoleMarkerFeedback    FileRole = "marker_feedback"
)

// IntegrityStatus is the externally visible progress of a file through the pipeline.
type IntegrityStatus string

const (
	IntegrityNotSubmitted IntegrityStatus = "not_submitted"
	IntegrityPending      IntegrityStatus = "pending"
	IntegrityProcessing   IntegrityStatus = "processing"
	IntegrityComplete     IntegrityStatus = "complete"
	IntegrityError        IntegrityStatus = "error"
)

type PDFStatus string

const (
	PDFStatusNone       PDFStatus = ""
	PDFStatusProcessing PDFStatus = "processing"
	PDFStatusComplete   PDFStatus = "complete"
	PDFStatusError      PDFStatus = "error"
)

// SubmissionFile is one uploaded file of a submission together with its integrity fields.
// Submitter and course fields are joined from the parent submission.
type SubmissionFile struct {
	ID           string
	SubmissionID string
	FileName     string
	BlobRef      string
	Role         FileRole

	SubmitterEmail string
	SubmitterID    string
	AssignmentID   string
	CourseID       string

	IntegrityStatus    IntegrityStatus
	RemoteSubmissionID string
	SimilarityScore    *float64
	ProcessedAt        *time.Time
	IntegrityError     string

	PDFID          string
	PDFStatus      PDFStatus
	PDFRef         string
	PDFGeneratedAt *time.Time
}
