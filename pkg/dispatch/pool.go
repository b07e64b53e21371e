// Package dispatch provides the non-blocking boundary for fire-and-forget
// notifications. Jobs run on a small worker pool, each under its own timeout,
// and their only observable effect is logging: failures never reach the caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/reflex/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 32
	defaultJobTimeout        = 8 * time.Second
)

var (
	// ErrQueueFull is returned by Enqueue when the job was dropped.
	ErrQueueFull = errors.New("dispatch queue full")

	// ErrPoolClosed is returned by Enqueue after Close.
	ErrPoolClosed = errors.New("dispatch pool closed")
)

// Job is a unit of work for the pool.
type Job struct {
	// Name identifies the job in logs (e.g. "capture", "forge").
	Name string

	// Run performs the work. The context carries the per-job timeout and is
	// cancelled when the pool gives up on in-flight work.
	Run func(ctx context.Context) error
}

// Config is the configuration options for the pool.
type Config struct {
	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 32).
	QueueSize uint

	// JobTimeout bounds each job (defaults to 8s).
	JobTimeout time.Duration

	// Logger receives job outcomes.
	Logger *slog.Logger
}

// Stats counts job outcomes.
type Stats struct {
	Enqueued  int64
	Succeeded int64
	Failed    int64
	Dropped   int64
}

// Pool runs jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	enqueued  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	base, cancel := context.WithCancel(context.Background())

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
		base:   base,
		cancel: cancel,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job without blocking. The job is dropped and
// ErrQueueFull returned when the queue is at capacity.
func (p *Pool) Enqueue(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return ErrPoolClosed
	}

	select {
	case p.queue <- job:
		p.enqueued.Add(1)
		p.logger.Debug("job queued", "job", job.Name)
		return nil
	default:
		p.dropped.Add(1)
		p.logger.Warn("job not queued, queue full, job dropped", "job", job.Name)
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued and in-flight jobs until
// ctx is done. Jobs still running at that point are cancelled and abandoned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Debug("abandoning in-flight jobs", "pending", len(p.queue))
		return ctx.Err()
	}
}

// Stats returns a snapshot of job outcomes.
func (p *Pool) Stats() Stats {
	return Stats{
		Enqueued:  p.enqueued.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()

	for job := range p.queue {
		if p.base.Err() != nil {
			continue
		}
		p.processJob(id, job)
	}
}

func (p *Pool) processJob(id uint, job Job) {
	ctx, cancel := context.WithTimeout(p.base, p.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := p.run(ctx, job)
	elapsed := time.Since(start)

	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("job failed",
			"job", job.Name,
			"worker_id", id,
			"elapsed", elapsed,
			"error", err,
		)
		return
	}

	p.succeeded.Add(1)
	p.logger.Debug("job done",
		"job", job.Name,
		"worker_id", id,
		"elapsed", elapsed,
	)
}

func (p *Pool) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	if job.Run == nil {
		return errors.New("job has no run function")
	}
	return job.Run(ctx)
}
