package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

type JobKind string

const (
	JobKindIntegrityCheck JobKind = "integrity_check"
	JobKindWordCount      JobKind = "word_count"
)

// JobPayload is implemented by exactly one type per JobKind.
type JobPayload interface {
	Kind() JobKind
	clone() JobPayload
}

// IntegrityStage tracks where an integrity check sits in the remote workflow.
type IntegrityStage string

const (
	StageSubmit     IntegrityStage = "submit"
	StageSimilarity IntegrityStage = "similarity"
	StagePDF        IntegrityStage = "pdf"
)

type IntegrityCheckPayload struct {
	FileID             string         `json:"file_id"`
	SubmissionID       string         `json:"submission_id"`
	FileName           string         `json:"file_name"`
	BlobRef            string         `json:"blob_ref"`
	SubmitterEmail     string         `json:"submitter_email"`
	SubmitterID        string         `json:"submitter_id,omitempty"`
	AssignmentID       string         `json:"assignment_id,omitempty"`
	CourseID           string         `json:"course_id,omitempty"`
	Stage              IntegrityStage `json:"stage"`
	RemoteSubmissionID string         `json:"remote_submission_id,omitempty"`
	PDFID              string         `json:"pdf_id,omitempty"`
}

func (*IntegrityCheckPayload) Kind() JobKind { return JobKindIntegrityCheck }

func (p *IntegrityCheckPayload) clone() JobPayload {
	cp := *p
	return &cp
}

// OwnerID is the identity the remote service records as owner and submitter.
func (p *IntegrityCheckPayload) OwnerID() string {
	if p.SubmitterID != "" {
		return p.SubmitterID
	}
	return p.SubmitterEmail
}

type WordCountPayload struct {
	SubmissionID string `json:"submission_id"`
	FileName     string `json:"file_name"`
	BlobRef      string `json:"blob_ref"`
}

func (*WordCountPayload) Kind() JobKind { return JobKindWordCount }

func (p *WordCountPayload) clone() JobPayload {
	cp := *p
	return &cp
}

type Job struct {
	ID          string
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	NextRunAt   time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Payload     JobPayload
}

func (j *Job) Kind() JobKind {
	if j.Payload == nil {
		return ""
	}
	return j.Payload.Kind()
}

// Terminal reports whether the job has reached completed or failed.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Eligible reports whether the scheduler may advance the job at now.
func (j *Job) Eligible(now time.Time) bool {
	if j.Status != JobStatusPending && j.Status != JobStatusProcessing {
		return false
	}
	return !now.Before(j.NextRunAt) && j.Attempts < j.MaxAttempts
}

// RecordFailure counts a failed step. Below the attempt cap the job is pushed back by
// base*attempts; at the cap it is marked failed and true is returned.
func (j *Job) RecordFailure(err error, base time.Duration, now time.Time) bool {
	if j.Attempts < j.MaxAttempts {
		j.Attempts++
	}
	if err != nil {
		j.LastError = err.Error()
	}
	j.UpdatedAt = now
	if j.Attempts >= j.MaxAttempts {
		j.Status = JobStatusFailed
		return true
	}
	j.NextRunAt = now.Add(base * time.Duration(j.Attempts))
	return false
}

func (j *Job) Clone() *Job {
	cp := *j
	if j.Payload != nil {
		cp.Payload = j.Payload.clone()
	}
	return &cp
}

type jobJSON struct {
	ID          string          `json:"id"`
	Kind        JobKind         `json:"kind"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	NextRunAt   time.Time       `json:"next_run_at"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Payload     json.RawMessage `json:"payload"`
}

func (j *Job) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(j.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jobJSON{
		ID: j.ID, Kind: j.Kind(), Status: j.Status,
		Attempts: j.Attempts, MaxAttempts: j.MaxAttempts,
		NextRunAt: j.NextRunAt, LastError: j.LastError,
		CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt,
		Payload: payload,
	})
}

func (j *Job) UnmarshalJSON(b []byte) error {
	var raw jobJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var payload JobPayload
	switch raw.Kind {
	case JobKindIntegrityCheck:
		payload = &IntegrityCheckPayload{}
	case JobKindWordCount:
		payload = &WordCountPayload{}
	default:
		return fmt.Errorf("decode job %s: unknown kind %q", raw.ID, raw.Kind)
	}
	if err := json.Unmarshal(raw.Payload, payload); err != nil {
		return fmt.Errorf("decode job %s payload: %w", raw.ID, err)
	}
	*j = Job{
		ID: raw.ID, Status: raw.Status,
		Attempts: raw.Attempts, MaxAttempts: raw.MaxAttempts,
		NextRunAt: raw.NextRunAt, LastError: raw.LastError,
		CreatedAt: raw.CreatedAt, UpdatedAt: raw.UpdatedAt,
		Payload: payload,
	}
	return nil
}
