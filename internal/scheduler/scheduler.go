package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/metrics"
)

const (
	JobACLCleanup = "acl_cleanup"
	JobChatDigest = "chat_digest"
	JobIndexCheck = "index_check"
)

type ACLCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

type Digester interface {
	Digest(ctx context.Context) (int, error)
}

type IndexChecker interface {
	CheckIndexes(ctx context.Context) error
}

type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs the periodic maintenance jobs. A job that is still running when its next
// activation fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	jobs    []Job
}

func New(acl ACLCleaner, chat Digester, indexes IndexChecker, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		timeout: timeout,
		jobs: []Job{
			{Name: JobACLCleanup, Spec: "@every 1h", Run: func(ctx context.Context) error {
				n, err := acl.Cleanup(ctx)
				if err != nil {
					return err
				}
				zap.L().Info("removed orphaned access rules", zap.Int64("count", n))
				return nil
			}},
			{Name: JobChatDigest, Spec: "@daily", Run: func(ctx context.Context) error {
				n, err := chat.Digest(ctx)
				if err != nil {
					return err
				}
				zap.L().Info("sent unread message digests", zap.Int("count", n))
				return nil
			}},
			{Name: JobIndexCheck, Spec: "@weekly", Run: indexes.CheckIndexes},
		},
	}
}

func (s *Scheduler) Jobs() []Job {
	return s.jobs
}

// Start registers every job and starts the cron loop in its own goroutine.
func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() { s.execute(job) }); err != nil {
			return fmt.Errorf("s.cron.AddFunc(%s) -> %w", job.Name, err)
		}
	}
	s.cron.Start()
	zap.L().Info("scheduler started", zap.Int("jobs", len(s.jobs)))

	return nil
}

// Stop halts activations and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) execute(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)

	metrics.RecordJobRun(job.Name, duration, err)
	if err != nil {
		zap.L().Error("scheduled job failed", zap.String("job", job.Name), zap.Duration("duration", duration), zap.Error(err))
		return
	}
	zap.L().Debug("scheduled job finished", zap.String("job", job.Name), zap.Duration("duration", duration))
}
