package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Scheduler runs job executions on a bounded worker pool. The
// concurrent-job limit is structural: at most the pool size runs at
// once, further submissions queue, and a full queue is a submission
// error rather than an unbounded backlog.
type Scheduler struct {
	processor *Processor
	queue     chan Request
	logger    *slog.Logger

	mu      sync.Mutex
	active  int
	started bool
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Processor *Processor
	QueueSize int // pending submissions beyond the running set (default 64)
	Logger    *slog.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Scheduler{
		processor: cfg.Processor,
		queue:     make(chan Request, queueSize),
		logger:    logger,
	}
}

// RunWorkers starts numWorkers goroutines that drain the queue until
// ctx is cancelled. Call once, in a goroutine or not - it returns after
// spawning.
func (s *Scheduler) RunWorkers(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 2
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("starting job workers", "count", numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.workerLoop(ctx, n)
		}(i)
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		s.logger.Info("all job workers stopped")
	}()
}

func (s *Scheduler) workerLoop(ctx context.Context, n int) {
	log := s.logger.With("worker", n)
	log.Debug("job worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("job worker stopping")
			return
		case req := <-s.queue:
			s.mu.Lock()
			s.active++
			s.mu.Unlock()

			s.processor.Run(ctx, req)

			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		}
	}
}

// Submit enqueues a job for background execution. The job stays
// StatusPending until a worker picks it up. Returns an error when the
// queue is full.
func (s *Scheduler) Submit(req Request) error {
	select {
	case s.queue <- req:
		s.logger.Debug("job queued", "job_id", req.JobID)
		return nil
	default:
		return fmt.Errorf("job queue full (%d pending)", cap(s.queue))
	}
}

// Active returns the number of jobs currently executing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// QueueDepth returns the number of queued, not-yet-started jobs.
func (s *Scheduler) QueueDepth() int {
	return len(s.queue)
}
