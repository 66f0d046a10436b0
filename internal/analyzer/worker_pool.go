package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ppiankov/compatspectre/internal/models"
)

type serviceJob struct {
	index int
	name  string
}

type serviceResult struct {
	index    int
	analysis models.ServiceCompatibilityAnalysis
}

// WorkerPool runs per-service analyses with bounded concurrency
type WorkerPool struct {
	workers int
	handle  func(ctx context.Context, name string) models.ServiceCompatibilityAnalysis
	jobs    chan serviceJob
	results chan serviceResult
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int, handle func(ctx context.Context, name string) models.ServiceCompatibilityAnalysis) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		handle:  handle,
		jobs:    make(chan serviceJob, workers*2),
		results: make(chan serviceResult, workers*2),
	}
}

// Start starts the worker pool; handlers receive ctx
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.results <- serviceResult{index: job.index, analysis: p.run(id, job)}
	}
}

// run never lets a panicking handler drop a service from the report
func (p *WorkerPool) run(id int, job serviceJob) (analysis models.ServiceCompatibilityAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker panic recovered",
				slog.Int("worker_id", id),
				slog.String("service", job.name),
				slog.String("panic", fmt.Sprint(r)),
			)
			analysis = checkerFailure(job.name, "", models.StatusError, nil, fmt.Errorf("panic: %v", r))
		}
	}()
	return p.handle(p.ctx, job.name)
}

// Submit queues a service; it blocks while the queue is full
func (p *WorkerPool) Submit(index int, name string) {
	p.jobs <- serviceJob{index: index, name: name}
}

// Results returns the results channel
func (p *WorkerPool) Results() <-chan serviceResult {
	return p.results
}

// Stop closes the queue and waits for all workers to finish
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
	close(p.results)

	if p.cancel != nil {
		p.cancel()
	}

	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
}

// runAll analyzes names concurrently and returns results in input order
func runAll(ctx context.Context, workers int, names []string, handle func(ctx context.Context, name string) models.ServiceCompatibilityAnalysis) []models.ServiceCompatibilityAnalysis {
	out := make([]models.ServiceCompatibilityAnalysis, len(names))
	if len(names) == 0 {
		return out
	}
	if workers > len(names) {
		workers = len(names)
	}

	pool := NewWorkerPool(workers, handle)
	pool.Start(ctx)

	go func() {
		for i, name := range names {
			pool.Submit(i, name)
		}
		pool.Stop()
	}()

	for result := range pool.Results() {
		out[result.index] = result.analysis
	}
	return out
}
