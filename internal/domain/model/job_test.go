//go:build !integration

package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestJob_RecordFailure(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("backs off linearly until the cap", func(t *testing.T) {
		job := &Job{Status: JobStatusPending, MaxAttempts: 3}

		if exhausted := job.RecordFailure(errors.New("boom"), time.Minute, now); exhausted {
			t.Fatal("first failure should not exhaust the job")
		}
		if want := now.Add(time.Minute); !job.NextRunAt.Equal(want) {
			t.Errorf("expected next run %s, got %s", want, job.NextRunAt)
		}
		if exhausted := job.RecordFailure(errors.New("boom"), time.Minute, now); exhausted {
			t.Fatal("second failure should not exhaust the job")
		}
		if want := now.Add(2 * time.Minute); !job.NextRunAt.Equal(want) {
			t.Errorf("expected next run %s, got %s", want, job.NextRunAt)
		}
		if exhausted := job.RecordFailure(errors.New("final"), time.Minute, now); !exhausted {
			t.Fatal("third failure should exhaust the job")
		}
		if job.Status != JobStatusFailed {
			t.Errorf("expected failed status, got %s", job.Status)
		}
		if job.LastError != "final" {
			t.Errorf("expected last error 'final', got %q", job.LastError)
		}
	})

	t.Run("never exceeds max attempts", func(t *testing.T) {
		job := &Job{Status: JobStatusProcessing, Attempts: 2, MaxAttempts: 2}
		job.RecordFailure(errors.New("again"), time.Minute, now)
		if job.Attempts != 2 {
			t.Errorf("expected attempts to stay at 2, got %d", job.Attempts)
		}
	})
}

func TestJob_Eligible(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		job  Job
		want bool
	}{
		{"pending and due", Job{Status: JobStatusPending, NextRunAt: now, MaxAttempts: 1}, true},
		{"processing not yet due", Job{Status: JobStatusProcessing, NextRunAt: now.Add(time.Second), MaxAttempts: 1}, false},
		{"completed", Job{Status: JobStatusCompleted, NextRunAt: now.Add(-time.Hour), MaxAttempts: 1}, false},
		{"attempts exhausted", Job{Status: JobStatusPending, Attempts: 3, MaxAttempts: 3}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.job.Eligible(now); got != tc.want {
				t.Errorf("Eligible() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestJob_JSONKeepsPayloadVariant(t *testing.T) {
	job := &Job{
		ID:          "job-1",
		Status:      JobStatusProcessing,
		MaxAttempts: 5,
		Payload: &IntegrityCheckPayload{
			FileID:             "file-1",
			Stage:              StageSimilarity,
			RemoteSubmissionID: "remote-1",
		},
	}
	b, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Job
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p, ok := decoded.Payload.(*IntegrityCheckPayload)
	if !ok {
		t.Fatalf("expected integrity payload, got %T", decoded.Payload)
	}
	if p.RemoteSubmissionID != "remote-1" || p.Stage != StageSimilarity {
		t.Errorf("payload not preserved: %+v", p)
	}

	if err := json.Unmarshal([]byte(`{"id":"x","kind":"mystery","payload":{}}`), &decoded); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestJob_CloneIsIndependent(t *testing.T) {
	orig := &Job{ID: "a", Payload: &WordCountPayload{SubmissionID: "s1"}}
	cp := orig.Clone()
	cp.Payload.(*WordCountPayload).SubmissionID = "s2"
	if orig.Payload.(*WordCountPayload).SubmissionID != "s1" {
		t.Error("clone shares payload with original")
	}
}
