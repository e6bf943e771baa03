package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/adapter"
	"integrity-pipeline/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// CountWords counts whitespace-delimited tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

type wordCountJob struct {
	submissions repository.SubmissionRepository
	blobs       adapter.BlobStore
	extractor   adapter.TextExtractor
	now         func() time.Time
	log         *zerolog.Logger
}

func (w *wordCountJob) step(ctx context.Context, job *model.Job, p *model.WordCountPayload) error {
	data, err := w.blobs.Download(ctx, p.BlobRef)
	if err != nil {
		return fmt.Errorf("download %s: %w", p.BlobRef, err)
	}
	text, err := w.extractor.Extract(p.FileName, data)
	if err != nil {
		return err
	}
	count := CountWords(text)
	if err := w.submissions.UpdateWordCount(ctx, p.SubmissionID, count); err != nil {
		return fmt.Errorf("save word count for %s: %w", p.SubmissionID, err)
	}
	job.Status = model.JobStatusCompleted
	job.UpdatedAt = w.now()
	w.log.Debug().Str("job_id", job.ID).Str("submission_id", p.SubmissionID).Int("words", count).Msg("word count stored")
	return nil
}
