// Package worker runs keyed background tasks on a fixed set of goroutines.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Task is a unit of background work. ctx is cancelled when the pool stops.
type Task func(ctx context.Context)

type job struct {
	key  string
	task Task
}

// Pool is a bounded worker pool that holds at most one queued or running task per key.
type Pool struct {
	name     string
	workers  int
	logger   *zap.Logger
	queue    chan job
	stopChan chan struct{}
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	inFlight map[string]struct{}
	stopped  bool
}

// NewPool creates a pool with the given number of workers and a queue of twice that size.
func NewPool(name string, workers int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		name:     name,
		workers:  workers,
		logger:   logger.With(zap.String("pool", name)),
		queue:    make(chan job, workers*2),
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[string]struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop cancels running tasks, drops queued ones and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	close(p.stopChan)
	p.wg.Wait()
}

// Submit enqueues task under key. It returns false without enqueuing when a task with the
// same key is already queued or running, when the queue is full, or after Stop.
func (p *Pool) Submit(key string, task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	if _, busy := p.inFlight[key]; busy {
		return false
	}
	select {
	case p.queue <- job{key: key, task: task}:
		p.inFlight[key] = struct{}{}
		return true
	default:
		p.logger.Warn("queue full, dropping task", zap.String("key", key))
		return false
	}
}

// InFlight reports whether a task for key is queued or running.
func (p *Pool) InFlight(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inFlight[key]
	return ok
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.queue:
			p.run(j)
		case <-p.stopChan:
			return
		}
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", zap.String("key", j.key), zap.Any("panic", r))
		}
		p.mu.Lock()
		delete(p.inFlight, j.key)
		p.mu.Unlock()
	}()
	j.task(p.ctx)
}
