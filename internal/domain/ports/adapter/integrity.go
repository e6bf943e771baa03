package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type ReportStatus string

const (
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusComplete   ReportStatus = "COMPLETE"
)

type ArtifactStatus string

const (
	ArtifactStatusPending ArtifactStatus = "PENDING"
	ArtifactStatusSuccess ArtifactStatus = "SUCCESS"
	ArtifactStatusFailed  ArtifactStatus = "FAILED"
)

// GroupContext carries the course the submission belongs to.
type GroupContext struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Group carries the assignment the submission belongs to.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

type Person struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type SubmissionMetadata struct {
	Owners       []Person      `json:"owners,omitempty"`
	Submitter    *Person       `json:"submitter,omitempty"`
	Group        *Group        `json:"group,omitempty"`
	GroupContext *GroupContext `json:"group_context,omitempty"`
}

type CreateSubmissionRequest struct {
	Owner     string
	Submitter string
	Title     string
	Metadata  *SubmissionMetadata
	EULA      *EULAAcceptance
}

type RemoteSubmission struct {
	ID     string
	Status string
}

type SimilarityOptions struct {
	SearchRepositories []string
	Priority           string
}

type SimilarityReport struct {
	Status              ReportStatus
	OverallMatch        float64
	InternetMatch       float64
	PublicationMatch    float64
	SubmittedWorksMatch float64
	TimeGenerated       time.Time
}

type PDFArtifact struct {
	ID     string
	Status ArtifactStatus
}

type Features struct {
	RequireEULA bool
}

type EULAVersion struct {
	Version            string
	AvailableLanguages []string
}

type EULAAcceptance struct {
	UserID     string
	Version    string
	AcceptedAt time.Time
	Language   string
}

// IntegrityService is the port for the remote integrity-checking API.
// Non-2xx responses are returned as *RemoteError.
type IntegrityService interface {
	Features(ctx context.Context) (*Features, error)
	CreateSubmission(ctx context.Context, req CreateSubmissionRequest) (*RemoteSubmission, error)
	UploadOriginal(ctx context.Context, submissionID string, data []byte, fileName string) error
	RequestSimilarityReport(ctx context.Context, submissionID string, opts SimilarityOptions) error
	GetSimilarityReport(ctx context.Context, submissionID string) (*SimilarityReport, error)
	RequestPDF(ctx context.Context, submissionID, locale string) (*PDFArtifact, error)
	GetPDFStatus(ctx context.Context, submissionID, pdfID string) (*PDFArtifact, error)
	DownloadPDF(ctx context.Context, submissionID, pdfID string) ([]byte, error)
	LatestEULA(ctx context.Context) (*EULAVersion, error)
	GetEULAAcceptance(ctx context.Context, version, userID string) (*EULAAcceptance, error)
	AcceptEULA(ctx context.Context, acc EULAAcceptance) (*EULAAcceptance, error)
}

// RemoteError is a decoded non-2xx response from the integrity service.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("integrity %s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("integrity %s: http %d: %s", e.Op, e.StatusCode, e.Message)
}

// Retryable is true for throttling and server-side failures.
func (e *RemoteError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}
