package usecase

import (
	"context"
	"fmt"
	"time"

	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/adapter"
	"integrity-pipeline/internal/domain/ports/repository"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const notifyTimeout = 10 * time.Second

// IntegrityOptions are the per-deployment knobs of the integrity workflow.
type IntegrityOptions struct {
	PollDelay          time.Duration
	SearchRepositories []string
	Priority           string
	PDFLocale          string
}

// integrityJob walks one file through submit, similarity and PDF, one stage per call.
type integrityJob struct {
	files    repository.SubmissionFileRepository
	blobs    adapter.BlobStore
	svc      adapter.IntegrityService
	consent  *ConsentResolver
	notifier adapter.MarkerNotifier
	opts     IntegrityOptions
	now      func() time.Time
	log      *zerolog.Logger
}

func reportPrefix(fileID string) string { return "reports/" + fileID + "/" }

// reportKey is time-sortable, so the last key under reportPrefix is the newest report.
func reportKey(fileID string) string {
	return reportPrefix(fileID) + ulid.Make().String() + ".pdf"
}

func (w *integrityJob) step(ctx context.Context, job *model.Job, p *model.IntegrityCheckPayload) error {
	switch p.Stage {
	case model.StageSubmit, "":
		return w.submit(ctx, job, p)
	case model.StageSimilarity:
		return w.pollSimilarity(ctx, job, p)
	case model.StagePDF:
		w.pollPDF(ctx, job, p)
		return nil
	default:
		return fmt.Errorf("integrity job %s: unknown stage %q", job.ID, p.Stage)
	}
}

func (w *integrityJob) later(job *model.Job) {
	job.NextRunAt = w.now().Add(w.opts.PollDelay)
	job.UpdatedAt = w.now()
}

func (w *integrityJob) submit(ctx context.Context, job *model.Job, p *model.IntegrityCheckPayload) error {
	file, err := w.files.FindByID(ctx, p.FileID)
	if err != nil {
		return fmt.Errorf("load file %s: %w", p.FileID, err)
	}
	if file.Role == model.FileRoleMarkerFeedback {
		if err := w.files.UpdateIntegrityStatus(ctx, p.FileID, model.IntegrityNotSubmitted, ""); err != nil {
			return fmt.Errorf("mark feedback file %s: %w", p.FileID, err)
		}
		job.Status = model.JobStatusCompleted
		job.UpdatedAt = w.now()
		w.log.Debug().Str("job_id", job.ID).Str("file_id", p.FileID).Msg("marker feedback file skipped")
		return nil
	}

	data, err := w.blobs.Download(ctx, p.BlobRef)
	if err != nil {
		return fmt.Errorf("download %s: %w", p.BlobRef, err)
	}

	if p.RemoteSubmissionID == "" {
		owner := p.OwnerID()
		req := adapter.CreateSubmissionRequest{
			Owner:     owner,
			Submitter: owner,
			Title:     p.FileName,
			Metadata:  submissionMetadata(p),
			EULA:      w.consent.Ensure(ctx, owner),
		}
		sub, err := w.svc.CreateSubmission(ctx, req)
		if err != nil {
			return err
		}
		// kept on the payload so a retry never creates a second remote record
		p.RemoteSubmissionID = sub.ID
	}

	if err := w.svc.UploadOriginal(ctx, p.RemoteSubmissionID, data, p.FileName); err != nil {
		return err
	}
	if err := w.files.SetRemoteSubmission(ctx, p.FileID, p.RemoteSubmissionID); err != nil {
		return fmt.Errorf("record remote submission for %s: %w", p.FileID, err)
	}

	job.Status = model.JobStatusProcessing
	p.Stage = model.StageSimilarity
	w.later(job)
	w.notifyMarker(p)
	w.log.Info().Str("job_id", job.ID).Str("file_id", p.FileID).Str("remote_submission_id", p.RemoteSubmissionID).
		Msg("file uploaded to integrity service")
	return nil
}

func submissionMetadata(p *model.IntegrityCheckPayload) *adapter.SubmissionMetadata {
	person := adapter.Person{ID: p.OwnerID(), Email: p.SubmitterEmail}
	md := &adapter.SubmissionMetadata{Owners: []adapter.Person{person}, Submitter: &person}
	if p.AssignmentID != "" {
		md.Group = &adapter.Group{ID: p.AssignmentID, Type: "ASSIGNMENT"}
	}
	if p.CourseID != "" {
		md.GroupContext = &adapter.GroupContext{ID: p.CourseID}
	}
	return md
}

// notifyMarker is fire-and-forget; its outcome never touches the job.
func (w *integrityJob) notifyMarker(p *model.IntegrityCheckPayload) {
	ev := adapter.SubmissionCreatedEvent{
		FileID:             p.FileID,
		SubmissionID:       p.SubmissionID,
		RemoteSubmissionID: p.RemoteSubmissionID,
		AssignmentID:       p.AssignmentID,
		CourseID:           p.CourseID,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := w.notifier.SubmissionCreated(ctx, ev); err != nil {
			w.log.Debug().Err(err).Str("file_id", ev.FileID).Msg("marker notification failed")
		}
	}()
}

func (w *integrityJob) pollSimilarity(ctx context.Context, job *model.Job, p *model.IntegrityCheckPayload) error {
	rep, err := w.svc.GetSimilarityReport(ctx, p.RemoteSubmissionID)
	if adapter.IsNotFound(err) {
		opts := adapter.SimilarityOptions{SearchRepositories: w.opts.SearchRepositories, Priority: w.opts.Priority}
		if err := w.svc.RequestSimilarityReport(ctx, p.RemoteSubmissionID, opts); err != nil {
			return err
		}
		w.later(job)
		w.log.Debug().Str("job_id", job.ID).Str("file_id", p.FileID).Msg("similarity report requested")
		return nil
	}
	if err != nil {
		return err
	}
	if rep.Status != adapter.ReportStatusComplete {
		w.later(job)
		return nil
	}

	processedAt := rep.TimeGenerated
	if processedAt.IsZero() {
		processedAt = w.now()
	}
	if err := w.files.SaveSimilarity(ctx, p.FileID, rep.OverallMatch, processedAt); err != nil {
		return fmt.Errorf("save similarity for %s: %w", p.FileID, err)
	}
	w.log.Info().Str("job_id", job.ID).Str("file_id", p.FileID).
		Float64("overall", rep.OverallMatch).
		Float64("internet", rep.InternetMatch).
		Float64("publication", rep.PublicationMatch).
		Float64("submitted_works", rep.SubmittedWorksMatch).
		Msg("similarity report complete")

	p.Stage = model.StagePDF
	w.requestPDF(ctx, job, p)
	return nil
}

func (w *integrityJob) requestPDF(ctx context.Context, job *model.Job, p *model.IntegrityCheckPayload) {
	art, err := w.svc.RequestPDF(ctx, p.RemoteSubmissionID, w.opts.PDFLocale)
	if err != nil {
		w.abandonPDF(ctx, job, p, err)
		return
	}
	p.PDFID = art.ID
	if err := w.files.SavePDFState(ctx, p.FileID, art.ID, model.PDFStatusProcessing); err != nil {
		w.log.Warn().Err(err).Str("file_id", p.FileID).Msg("could not record pdf id")
	}
	w.later(job)
}

func (w *integrityJob) pollPDF(ctx context.Context, job *model.Job, p *model.IntegrityCheckPayload) {
	if p.PDFID == "" {
		w.requestPDF(ctx, job, p)
		return
	}
	st, err := w.svc.GetPDFStatus(ctx, p.RemoteSubmissionID, p.PDFID)
	if err != nil {
		w.abandonPDF(ctx, job, p, err)
		return
	}
	switch st.Status {
	case adapter.ArtifactStatusSuccess:
	case adapter.ArtifactStatusFailed:
		w.abandonPDF(ctx, job, p, fmt.Errorf("pdf %s generation failed", p.PDFID))
		return
	default:
		w.later(job)
		return
	}

	data, err := w.svc.DownloadPDF(ctx, p.RemoteSubmissionID, p.PDFID)
	if err != nil {
		w.abandonPDF(ctx, job, p, err)
		return
	}
	ref, err := w.blobs.Upload(ctx, reportKey(p.FileID), data, map[string]string{
		"content_type":         "application/pdf",
		"file_id":              p.FileID,
		"remote_submission_id": p.RemoteSubmissionID,
	})
	if err != nil {
		w.abandonPDF(ctx, job, p, err)
		return
	}
	if err := w.files.SavePDFArtifact(ctx, p.FileID, ref, w.now()); err != nil {
		w.abandonPDF(ctx, job, p, err)
		return
	}
	job.Status = model.JobStatusCompleted
	job.UpdatedAt = w.now()
	w.log.Info().Str("job_id", job.ID).Str("file_id", p.FileID).Str("ref", ref).Msg("similarity pdf stored")
}

// abandonPDF ends the job successfully; the similarity score is already persisted.
func (w *integrityJob) abandonPDF(ctx context.Context, job *model.Job, p *model.IntegrityCheckPayload, cause error) {
	w.log.Warn().Err(cause).Str("job_id", job.ID).Str("file_id", p.FileID).Msg("similarity pdf unavailable")
	if err := w.files.SavePDFState(ctx, p.FileID, p.PDFID, model.PDFStatusError); err != nil {
		w.log.Warn().Err(err).Str("file_id", p.FileID).Msg("could not record pdf error")
	}
	job.Status = model.JobStatusCompleted
	job.UpdatedAt = w.now()
}
