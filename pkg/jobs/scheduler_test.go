package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
)

type countingJob struct {
	runs atomic.Int32
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Execute(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestSchedulerRunOnStartAndStop(t *testing.T) {
	s := NewScheduler(logger.Discard())
	job := &countingJob{}
	s.AddJob(job, time.Hour, true)

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for job.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if got := job.runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}
}

func TestSchedulerRunOnce(t *testing.T) {
	s := NewScheduler(logger.Discard())
	job := &countingJob{}
	s.AddJob(job, time.Hour, false)

	if err := s.RunOnce(context.Background(), "counting"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if err := s.RunOnce(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
	if job.runs.Load() != 1 {
		t.Fatalf("runs = %d", job.runs.Load())
	}
}
