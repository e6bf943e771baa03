//go:build !integration

package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"integrity-pipeline/internal/config"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/adapter"
	"integrity-pipeline/internal/infra/scheduler"
)

type harness struct {
	clock    *fakeClock
	files    *memFileRepo
	subs     *memSubmissionRepo
	consents *memConsentRepo
	blobs    *memBlobStore
	svc      *mockIntegrity
	notifier *mockNotifier
	runner   *JobRunner
	sched    *scheduler.Scheduler
}

func newHarness(t *testing.T, files ...*model.SubmissionFile) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		files:    newMemFileRepo(files...),
		subs:     newMemSubmissionRepo(),
		consents: newMemConsentRepo(),
		blobs:    newMemBlobStore(),
		svc:      &mockIntegrity{},
		notifier: newMockNotifier(),
	}
	logger := newTestLogger()
	consent := NewConsentResolver(h.svc, h.consents, "v1beta", "en-US", logger)
	h.runner = NewJobRunner(JobRunnerDeps{
		Files:       h.files,
		Submissions: h.subs,
		Blobs:       h.blobs,
		Integrity:   h.svc,
		Consent:     consent,
		Notifier:    h.notifier,
		Extractor:   &mockExtractor{ExtractFunc: func(string, []byte) (string, error) { return "", nil }},
	}, IntegrityOptions{PollDelay: time.Minute, Priority: "LOW", PDFLocale: "en-US"}, time.Minute, logger).
		WithClock(h.clock.Now)
	h.sched = scheduler.New(config.SchedulerConfig{BatchSize: 10}, scheduler.NewMemoryStore(), h.runner, logger,
		scheduler.WithClock(h.clock.Now))
	return h
}

func learnerFile() *model.SubmissionFile {
	return &model.SubmissionFile{
		ID:              "file-1",
		SubmissionID:    "sub-1",
		FileName:        "essay.pdf",
		BlobRef:         "uploads/sub-1/essay.pdf",
		Role:            model.FileRoleLearnerSubmission,
		SubmitterEmail:  "learner@example.com",
		IntegrityStatus: model.IntegrityNotSubmitted,
	}
}

func (h *harness) enqueue(t *testing.T, maxAttempts int) string {
	t.Helper()
	_, _ = h.blobs.Upload(context.Background(), "uploads/sub-1/essay.pdf", []byte("%PDF-original"), nil)
	id, err := h.sched.Enqueue(context.Background(), &model.IntegrityCheckPayload{
		FileID:         "file-1",
		SubmissionID:   "sub-1",
		FileName:       "essay.pdf",
		BlobRef:        "uploads/sub-1/essay.pdf",
		SubmitterEmail: "learner@example.com",
		AssignmentID:   "asg-1",
		CourseID:       "course-1",
		Stage:          model.StageSubmit,
	}, maxAttempts, 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return id
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	if _, err := h.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func (h *harness) job(t *testing.T) *model.Job {
	t.Helper()
	jobs, _ := h.sched.ActiveJobs(context.Background())
	if len(jobs) != 1 {
		t.Fatalf("expected one job in registry, got %d", len(jobs))
	}
	return jobs[0]
}

func indexOf(calls []string, op string) int {
	for i, c := range calls {
		if c == op {
			return i
		}
	}
	return -1
}

func TestIntegrityJob_FullWorkflow(t *testing.T) {
	h := newHarness(t, learnerFile())
	similarityCalls := 0
	h.svc.GetSimilarityReportFunc = func(ctx context.Context, id string) (*adapter.SimilarityReport, error) {
		similarityCalls++
		if similarityCalls == 1 {
			return nil, notFound("get_similarity")
		}
		return &adapter.SimilarityReport{Status: adapter.ReportStatusComplete, OverallMatch: 42.5, InternetMatch: 40}, nil
	}
	h.enqueue(t, 5)

	// Tick 1: remote record created and bytes uploaded.
	h.tick(t)
	job := h.job(t)
	if job.Status != model.JobStatusProcessing {
		t.Fatalf("expected processing job, got %s", job.Status)
	}
	if p := job.Payload.(*model.IntegrityCheckPayload); p.RemoteSubmissionID != "remote-1" || p.Stage != model.StageSimilarity {
		t.Fatalf("unexpected payload after submit: %+v", p)
	}
	if f := h.files.get("file-1"); f.IntegrityStatus != model.IntegrityProcessing || f.RemoteSubmissionID != "remote-1" {
		t.Fatalf("unexpected file after submit: %+v", f)
	}
	select {
	case ev := <-h.notifier.events:
		if ev.RemoteSubmissionID != "remote-1" {
			t.Errorf("unexpected marker event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("marker was not notified")
	}

	// Not yet due: a tick at the same instant does nothing.
	h.tick(t)
	if h.svc.count("get_similarity") != 0 {
		t.Fatal("similarity polled before the poll delay elapsed")
	}

	// Tick 2: report not requested yet.
	h.clock.Advance(time.Minute)
	h.tick(t)
	if h.svc.count("request_similarity") != 1 {
		t.Fatalf("expected similarity to be requested once, calls=%v", h.svc.Calls())
	}
	if h.svc.count("request_pdf") != 0 {
		t.Fatal("pdf requested before similarity completed")
	}

	// Tick 3: report complete; pdf requested in the same tick.
	h.clock.Advance(time.Minute)
	h.tick(t)
	f := h.files.get("file-1")
	if f.IntegrityStatus != model.IntegrityComplete || f.SimilarityScore == nil || *f.SimilarityScore != 42.5 {
		t.Fatalf("expected complete with 42.5, got %+v", f)
	}
	calls := h.svc.Calls()
	if indexOf(calls, "request_pdf") < indexOf(calls, "request_similarity") {
		t.Fatalf("pdf requested out of order: %v", calls)
	}
	if f.PDFID != "pdf-1" || f.PDFStatus != model.PDFStatusProcessing {
		t.Errorf("unexpected pdf state: %+v", f)
	}

	// Tick 4: pdf ready, downloaded and stored; job done.
	h.clock.Advance(time.Minute)
	h.tick(t)
	if jobs, _ := h.sched.ActiveJobs(context.Background()); len(jobs) != 0 {
		t.Fatalf("expected job to be removed, got %d", len(jobs))
	}
	f = h.files.get("file-1")
	if !strings.HasPrefix(f.PDFRef, "reports/file-1/") || f.PDFStatus != model.PDFStatusComplete {
		t.Fatalf("unexpected pdf artifact: %+v", f)
	}
	stored, err := h.blobs.Download(context.Background(), f.PDFRef)
	if err != nil || string(stored) != "%PDF-report" {
		t.Errorf("stored report mismatch: %q (%v)", stored, err)
	}
	if n := h.svc.count("create_submission"); n != 1 {
		t.Errorf("expected one remote submission, got %d", n)
	}
}

func TestIntegrityJob_MarkerFeedbackMakesNoRemoteCalls(t *testing.T) {
	f := learnerFile()
	f.Role = model.FileRoleMarkerFeedback
	h := newHarness(t, f)
	h.enqueue(t, 5)

	h.tick(t)

	if calls := h.svc.Calls(); len(calls) != 0 {
		t.Fatalf("expected no remote calls, got %v", calls)
	}
	if got := h.files.get("file-1").IntegrityStatus; got != model.IntegrityNotSubmitted {
		t.Errorf("expected not_submitted, got %s", got)
	}
	if jobs, _ := h.sched.ActiveJobs(context.Background()); len(jobs) != 0 {
		t.Errorf("expected job to be completed and removed")
	}
}

func TestIntegrityJob_ExhaustedRetriesMarkFileError(t *testing.T) {
	h := newHarness(t, learnerFile())
	h.svc.CreateSubmissionFunc = func(ctx context.Context, req adapter.CreateSubmissionRequest) (*adapter.RemoteSubmission, error) {
		return nil, &adapter.RemoteError{Op: "create_submission", StatusCode: http.StatusInternalServerError, Message: "server exploded"}
	}
	const maxAttempts = 3
	h.enqueue(t, maxAttempts)

	prev := 0
	for i := 1; i <= maxAttempts; i++ {
		h.tick(t)
		if i < maxAttempts {
			job := h.job(t)
			if job.Attempts < prev || job.Attempts > job.MaxAttempts {
				t.Fatalf("attempts went from %d to %d (max %d)", prev, job.Attempts, job.MaxAttempts)
			}
			if job.Attempts != i {
				t.Fatalf("expected %d attempts, got %d", i, job.Attempts)
			}
			if want := h.clock.Now().Add(time.Duration(i) * time.Minute); !job.NextRunAt.Equal(want) {
				t.Errorf("expected linear backoff to %s, got %s", want, job.NextRunAt)
			}
			prev = job.Attempts
			h.clock.Advance(time.Duration(i) * time.Minute)
		}
	}

	if jobs, _ := h.sched.ActiveJobs(context.Background()); len(jobs) != 0 {
		t.Fatalf("expected job to be discarded, got %d", len(jobs))
	}
	f := h.files.get("file-1")
	if f.IntegrityStatus != model.IntegrityError || !strings.Contains(f.IntegrityError, "server exploded") {
		t.Errorf("expected error status with message, got %+v", f)
	}
	if n := h.svc.count("create_submission"); n != maxAttempts {
		t.Errorf("expected %d create attempts, got %d", maxAttempts, n)
	}
}

func TestIntegrityJob_UploadRetryReusesRemoteSubmission(t *testing.T) {
	h := newHarness(t, learnerFile())
	uploads := 0
	h.svc.UploadOriginalFunc = func(ctx context.Context, id string, data []byte, name string) error {
		uploads++
		if uploads == 1 {
			return errors.New("connection reset")
		}
		if string(data) != "%PDF-original" || name != "essay.pdf" {
			t.Errorf("unexpected upload %q %q", data, name)
		}
		return nil
	}
	h.enqueue(t, 5)

	h.tick(t)
	job := h.job(t)
	if job.Status != model.JobStatusPending || job.Attempts != 1 {
		t.Fatalf("expected pending job with one attempt, got %+v", job)
	}
	if got := h.files.get("file-1").IntegrityStatus; got == model.IntegrityProcessing {
		t.Fatal("file must not be processing before upload succeeds")
	}

	h.clock.Advance(time.Minute)
	h.tick(t)
	if n := h.svc.count("create_submission"); n != 1 {
		t.Errorf("expected a single remote submission across retries, got %d", n)
	}
	if got := h.job(t).Status; got != model.JobStatusProcessing {
		t.Errorf("expected processing after successful upload, got %s", got)
	}
}

func TestIntegrityJob_PDFFailureStillCompletes(t *testing.T) {
	h := newHarness(t, learnerFile())
	h.svc.GetSimilarityReportFunc = func(ctx context.Context, id string) (*adapter.SimilarityReport, error) {
		return &adapter.SimilarityReport{Status: adapter.ReportStatusComplete, OverallMatch: 10}, nil
	}
	h.svc.GetPDFStatusFunc = func(ctx context.Context, id, pdfID string) (*adapter.PDFArtifact, error) {
		return &adapter.PDFArtifact{ID: pdfID, Status: adapter.ArtifactStatusFailed}, nil
	}
	h.enqueue(t, 5)

	h.tick(t)
	h.clock.Advance(time.Minute)
	h.tick(t)
	h.clock.Advance(time.Minute)
	h.tick(t)

	if jobs, _ := h.sched.ActiveJobs(context.Background()); len(jobs) != 0 {
		t.Fatalf("expected job to complete despite pdf failure")
	}
	f := h.files.get("file-1")
	if f.IntegrityStatus != model.IntegrityComplete || f.PDFStatus != model.PDFStatusError {
		t.Errorf("unexpected file state: %+v", f)
	}
	if h.svc.count("download_pdf") != 0 {
		t.Error("failed pdf must not be downloaded")
	}
}

func TestIntegrityJob_ProcessingReportWaits(t *testing.T) {
	h := newHarness(t, learnerFile())
	h.svc.GetSimilarityReportFunc = func(ctx context.Context, id string) (*adapter.SimilarityReport, error) {
		return &adapter.SimilarityReport{Status: adapter.ReportStatusProcessing}, nil
	}
	h.enqueue(t, 5)
	h.tick(t)
	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
		h.tick(t)
	}
	job := h.job(t)
	if job.Attempts != 0 {
		t.Errorf("waiting on the report must not count as a failure, got %d attempts", job.Attempts)
	}
	if h.svc.count("request_pdf") != 0 {
		t.Error("pdf requested while report still processing")
	}
}
