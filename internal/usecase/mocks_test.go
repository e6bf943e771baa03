// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memFileRepo is a small in-memory SubmissionFileRepository.
type memFileRepo struct {
	mu    sync.Mutex
	files map[string]*model.SubmissionFile
}

func newMemFileRepo(files ...*model.SubmissionFile) *memFileRepo {
	m := &memFileRepo{files: make(map[string]*model.SubmissionFile)}
	for _, f := range files {
		m.files[f.ID] = f
	}
	return m
}

func (m *memFileRepo) get(id string) model.SubmissionFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.files[id]
}

func (m *memFileRepo) update(id string, fn func(f *model.SubmissionFile)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(f)
	return nil
}

func (m *memFileRepo) FindByID(ctx context.Context, id string) (*model.SubmissionFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFileRepo) UpdateIntegrityStatus(ctx context.Context, id string, status model.IntegrityStatus, errMsg string) error {
	return m.update(id, func(f *model.SubmissionFile) {
		f.IntegrityStatus = status
		f.IntegrityError = errMsg
	})
}

func (m *memFileRepo) SetRemoteSubmission(ctx context.Context, id, remoteID string) error {
	return m.update(id, func(f *model.SubmissionFile) {
		f.RemoteSubmissionID = remoteID
		f.IntegrityStatus = model.IntegrityProcessing
		f.IntegrityError = ""
	})
}

func (m *memFileRepo) SaveSimilarity(ctx context.Context, id string, score float64, processedAt time.Time) error {
	return m.update(id, func(f *model.SubmissionFile) {
		f.SimilarityScore = &score
		f.ProcessedAt = &processedAt
		f.IntegrityStatus = model.IntegrityComplete
		f.IntegrityError = ""
	})
}

func (m *memFileRepo) SavePDFState(ctx context.Context, id, pdfID string, status model.PDFStatus) error {
	return m.update(id, func(f *model.SubmissionFile) {
		if pdfID != "" {
			f.PDFID = pdfID
		}
		f.PDFStatus = status
	})
}

func (m *memFileRepo) SavePDFArtifact(ctx context.Context, id, ref string, generatedAt time.Time) error {
	return m.update(id, func(f *model.SubmissionFile) {
		f.PDFRef = ref
		f.PDFGeneratedAt = &generatedAt
		f.PDFStatus = model.PDFStatusComplete
	})
}

type memSubmissionRepo struct {
	mu     sync.Mutex
	counts map[string]int
}

func newMemSubmissionRepo() *memSubmissionRepo {
	return &memSubmissionRepo{counts: make(map[string]int)}
}

func (m *memSubmissionRepo) UpdateWordCount(ctx context.Context, submissionID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[submissionID] = count
	return nil
}

func (m *memSubmissionRepo) count(id string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counts[id]
	return c, ok
}

type memConsentRepo struct {
	mu   sync.Mutex
	accs map[string]*model.ConsentAcceptance
}

func newMemConsentRepo() *memConsentRepo {
	return &memConsentRepo{accs: make(map[string]*model.ConsentAcceptance)}
}

func (m *memConsentRepo) FindAcceptance(ctx context.Context, userID, version string) (*model.ConsentAcceptance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accs[userID+"|"+version]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memConsentRepo) SaveAcceptance(ctx context.Context, a *model.ConsentAcceptance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accs[a.UserID+"|"+a.Version] = &cp
	return nil
}

type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (m *memBlobStore) Download(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (m *memBlobStore) Upload(ctx context.Context, key string, data []byte, meta map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return key, nil
}

func (m *memBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memBlobStore) SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + ref, nil
}

// mockIntegrity records every call by operation name; unset funcs return benign defaults.
type mockIntegrity struct {
	mu    sync.Mutex
	calls []string

	FeaturesFunc                func(ctx context.Context) (*adapter.Features, error)
	CreateSubmissionFunc        func(ctx context.Context, req adapter.CreateSubmissionRequest) (*adapter.RemoteSubmission, error)
	UploadOriginalFunc          func(ctx context.Context, submissionID string, data []byte, fileName string) error
	RequestSimilarityReportFunc func(ctx context.Context, submissionID string, opts adapter.SimilarityOptions) error
	GetSimilarityReportFunc     func(ctx context.Context, submissionID string) (*adapter.SimilarityReport, error)
	RequestPDFFunc              func(ctx context.Context, submissionID, locale string) (*adapter.PDFArtifact, error)
	GetPDFStatusFunc            func(ctx context.Context, submissionID, pdfID string) (*adapter.PDFArtifact, error)
	DownloadPDFFunc             func(ctx context.Context, submissionID, pdfID string) ([]byte, error)
	LatestEULAFunc              func(ctx context.Context) (*adapter.EULAVersion, error)
	GetEULAAcceptanceFunc       func(ctx context.Context, version, userID string) (*adapter.EULAAcceptance, error)
	AcceptEULAFunc              func(ctx context.Context, acc adapter.EULAAcceptance) (*adapter.EULAAcceptance, error)
}

func (m *mockIntegrity) record(op string) {
	m.mu.Lock()
	m.calls = append(m.calls, op)
	m.mu.Unlock()
}

func (m *mockIntegrity) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockIntegrity) count(op string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

func notFound(op string) error {
	return &adapter.RemoteError{Op: op, StatusCode: http.StatusNotFound}
}

func (m *mockIntegrity) Features(ctx context.Context) (*adapter.Features, error) {
	m.record("features")
	if m.FeaturesFunc != nil {
		return m.FeaturesFunc(ctx)
	}
	return &adapter.Features{}, nil
}

func (m *mockIntegrity) CreateSubmission(ctx context.Context, req adapter.CreateSubmissionRequest) (*adapter.RemoteSubmission, error) {
	m.record("create_submission")
	if m.CreateSubmissionFunc != nil {
		return m.CreateSubmissionFunc(ctx, req)
	}
	return &adapter.RemoteSubmission{ID: "remote-1", Status: "CREATED"}, nil
}

func (m *mockIntegrity) UploadOriginal(ctx context.Context, submissionID string, data []byte, fileName string) error {
	m.record("upload_original")
	if m.UploadOriginalFunc != nil {
		return m.UploadOriginalFunc(ctx, submissionID, data, fileName)
	}
	return nil
}

func (m *mockIntegrity) RequestSimilarityReport(ctx context.Context, submissionID string, opts adapter.SimilarityOptions) error {
	m.record("request_similarity")
	if m.RequestSimilarityReportFunc != nil {
		return m.RequestSimilarityReportFunc(ctx, submissionID, opts)
	}
	return nil
}

func (m *mockIntegrity) GetSimilarityReport(ctx context.Context, submissionID string) (*adapter.SimilarityReport, error) {
	m.record("get_similarity")
	if m.GetSimilarityReportFunc != nil {
		return m.GetSimilarityReportFunc(ctx, submissionID)
	}
	return nil, notFound("get_similarity")
}

func (m *mockIntegrity) RequestPDF(ctx context.Context, submissionID, locale string) (*adapter.PDFArtifact, error) {
	m.record("request_pdf")
	if m.RequestPDFFunc != nil {
		return m.RequestPDFFunc(ctx, submissionID, locale)
	}
	return &adapter.PDFArtifact{ID: "pdf-1", Status: adapter.ArtifactStatusPending}, nil
}

func (m *mockIntegrity) GetPDFStatus(ctx context.Context, submissionID, pdfID string) (*adapter.PDFArtifact, error) {
	m.record("get_pdf_status")
	if m.GetPDFStatusFunc != nil {
		return m.GetPDFStatusFunc(ctx, submissionID, pdfID)
	}
	return &adapter.PDFArtifact{ID: pdfID, Status: adapter.ArtifactStatusSuccess}, nil
}

func (m *mockIntegrity) DownloadPDF(ctx context.Context, submissionID, pdfID string) ([]byte, error) {
	m.record("download_pdf")
	if m.DownloadPDFFunc != nil {
		return m.DownloadPDFFunc(ctx, submissionID, pdfID)
	}
	return []byte("%PDF-report"), nil
}

func (m *mockIntegrity) LatestEULA(ctx context.Context) (*adapter.EULAVersion, error) {
	m.record("latest_eula")
	if m.LatestEULAFunc != nil {
		return m.LatestEULAFunc(ctx)
	}
	return &adapter.EULAVersion{Version: "v2", AvailableLanguages: []string{"en-US"}}, nil
}

func (m *mockIntegrity) GetEULAAcceptance(ctx context.Context, version, userID string) (*adapter.EULAAcceptance, error) {
	m.record("get_eula_acceptance")
	if m.GetEULAAcceptanceFunc != nil {
		return m.GetEULAAcceptanceFunc(ctx, version, userID)
	}
	return nil, notFound("get_eula_acceptance")
}

func (m *mockIntegrity) AcceptEULA(ctx context.Context, acc adapter.EULAAcceptance) (*adapter.EULAAcceptance, error) {
	m.record("accept_eula")
	if m.AcceptEULAFunc != nil {
		return m.AcceptEULAFunc(ctx, acc)
	}
	return &acc, nil
}

type mockNotifier struct {
	events chan adapter.SubmissionCreatedEvent
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{events: make(chan adapter.SubmissionCreatedEvent, 8)}
}

func (m *mockNotifier) SubmissionCreated(ctx context.Context, ev adapter.SubmissionCreatedEvent) error {
	m.events <- ev
	return nil
}

type mockExtractor struct {
	ExtractFunc func(fileName string, data []byte) (string, error)
}

func (m *mockExtractor) Extract(fileName string, data []byte) (string, error) {
	return m.ExtractFunc(fileName, data)
}

// mockScheduler captures enqueued payloads for use case tests.
type mockScheduler struct {
	mu       sync.Mutex
	enqueued []model.JobPayload
	attempts []int
}

func (m *mockScheduler) Enqueue(ctx context.Context, payload model.JobPayload, maxAttempts int, delay time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, payload)
	m.attempts = append(m.attempts, maxAttempts)
	return "job-" + string(rune('0'+len(m.enqueued))), nil
}

func (m *mockScheduler) ActiveJobs(ctx context.Context) ([]*model.Job, error) { return nil, nil }

func (m *mockScheduler) JobCount(ctx context.Context) (map[model.JobStatus]int, error) {
	return map[model.JobStatus]int{}, nil
}
