package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

type MailJob struct {
	ID     string
	UserID uint
	To     string
	Name   string
	Token  string
}

// MailSender delivers a single verification mail
type MailSender interface {
	SendVerification(ctx context.Context, job *MailJob) error
}

// MailQueue decouples mail delivery from request handling. Enqueue never
// blocks, a full queue drops the job and reports ErrQueueFull.
type MailQueue struct {
	jobs    chan *MailJob
	pending atomic.Int32
	workers int
	timeout time.Duration
	sender  MailSender

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewMailQueue initializes a new queue that holds at most size jobs
func NewMailQueue(sender MailSender, workers, size int, timeout time.Duration) *MailQueue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 100
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	zap.L().Debug("Initializing mail queue", zap.Int("size", size), zap.Int("workers", workers))

	return &MailQueue{
		jobs:    make(chan *MailJob, size),
		workers: workers,
		timeout: timeout,
		sender:  sender,
	}
}

func (q *MailQueue) StartWorkerPool() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *MailQueue) worker() {
	defer q.wg.Done()

	for job := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.sender.SendVerification(ctx, job)
		cancel()

		q.pending.Add(-1)

		if err != nil {
			zap.L().Error("Failed to send verification mail",
				zap.String("job_id", job.ID),
				zap.Uint("user_id", job.UserID),
				zap.Error(err))
			continue
		}

		zap.L().Debug("Verification mail sent", zap.String("job_id", job.ID), zap.Uint("user_id", job.UserID))
	}
}

func (q *MailQueue) Enqueue(job *MailJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	if job.ID == "" {
		job.ID, _ = gonanoid.New(12)
	}

	q.pending.Add(1)

	select {
	case q.jobs <- job:
		zap.L().Debug("New mail job enqueued", zap.Int32("pending", q.pending.Load()), zap.Uint("user_id", job.UserID))
		return nil
	default:
		q.pending.Add(-1)
		return ErrQueueFull
	}
}

// Pending returns the number of jobs accepted but not yet processed
func (q *MailQueue) Pending() int {
	return int(q.pending.Load())
}

// Close stops accepting jobs and waits for the workers to drain the queue
func (q *MailQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}
