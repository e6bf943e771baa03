package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"time"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/adapter"
	"integrity-pipeline/internal/usecase"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoArtifact):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type jobView struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	Status             string    `json:"status"`
	Stage              string    `json:"stage,omitempty"`
	Attempts           int       `json:"attempts"`
	MaxAttempts        int       `json:"max_attempts"`
	NextRunAt          time.Time `json:"next_run_at"`
	LastError          string    `json:"last_error,omitempty"`
	FileID             string    `json:"file_id,omitempty"`
	SubmissionID       string    `json:"submission_id,omitempty"`
	RemoteSubmissionID string    `json:"remote_submission_id,omitempty"`
}

func toJobView(j *model.Job) jobView {
	v := jobView{
		ID:          j.ID,
		Kind:        string(j.Kind()),
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		NextRunAt:   j.NextRunAt,
		LastError:   j.LastError,
	}
	switch p := j.Payload.(type) {
	case *model.IntegrityCheckPayload:
		v.Stage = string(p.Stage)
		v.FileID = p.FileID
		v.SubmissionID = p.SubmissionID
		v.RemoteSubmissionID = p.RemoteSubmissionID
	case *model.WordCountPayload:
		v.SubmissionID = p.SubmissionID
	}
	return v
}

func jobsListHandler(uc usecase.PipelineUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := uc.ActiveJobs(r.Context())
		if err != nil {
			http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
			return
		}
		out := make([]jobView, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, toJobView(j))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func jobsCountHandler(uc usecase.PipelineUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := uc.JobCount(r.Context())
		if err != nil {
			http.Error(w, "Failed to count jobs", http.StatusInternalServerError)
			return
		}
		out := make(map[string]int, len(counts))
		total := 0
		for k, v := range counts {
			out[string(k)] = v
			total += v
		}
		writeJSON(w, http.StatusOK, struct {
			Total    int            `json:"total"`
			ByStatus map[string]int `json:"by_status"`
		}{Total: total, ByStatus: out})
	}
}

// enqueueHandler turns a per-file enqueue call into a 202 carrying the job id.
func enqueueHandler(enqueue func(ctx context.Context, fileID string) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := enqueue(r.Context(), chi.URLParam(r, "fileID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
	}
}

func startIntegrityHandler(uc usecase.PipelineUseCase) http.HandlerFunc {
	return enqueueHandler(uc.StartIntegrityCheck)
}

func startWordCountHandler(uc usecase.PipelineUseCase) http.HandlerFunc {
	return enqueueHandler(uc.StartWordCount)
}

func retryHandler(uc usecase.PipelineUseCase) http.HandlerFunc {
	return enqueueHandler(uc.RetryIntegrityCheck)
}

func reportURLHandler(uc usecase.PipelineUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := uc.ReportURL(r.Context(), chi.URLParam(r, "fileID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

// blobHandler serves artifact bytes to holders of a token minted for exactly that ref.
func blobHandler(blobs adapter.BlobStore, tokens TokenVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "*")
		granted, err := tokens.Verify(r.URL.Query().Get("token"))
		if err != nil || granted != ref {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		data, err := blobs.Download(r.Context(), ref)
		if err != nil {
			writeError(w, err)
			return
		}
		if path.Ext(ref) == ".pdf" {
			w.Header().Set("Content-Type", "application/pdf")
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		w.Header().Set("Cache-Control", "private, no-store")
		_, _ = w.Write(data)
	}
}
