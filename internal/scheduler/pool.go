package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// pool runs the jobs of one kind on a fixed number of workers.
type pool struct {
	kind    Kind
	logger  *slog.Logger
	workers int
	timeout time.Duration
	exec    func(ctx context.Context, e *entry) error

	ch   chan *entry
	wg   sync.WaitGroup
	once sync.Once
}

func newPool(kind Kind, workers int, timeout time.Duration, logger *slog.Logger, exec func(context.Context, *entry) error) *pool {
	if workers <= 0 {
		workers = 1
	}
	return &pool{
		kind:    kind,
		logger:  logger,
		workers: workers,
		timeout: timeout,
		exec:    exec,
		ch:      make(chan *entry, workers),
	}
}

func (p *pool) start(ctx context.Context, finish func(*entry, error)) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("scheduler.worker.started", "kind", p.kind.String(), "worker_id", workerID)
				for e := range p.ch {
					finish(e, p.runOne(ctx, e))
				}
				p.logger.Debug("scheduler.worker.stopped", "kind", p.kind.String(), "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (p *pool) runOne(ctx context.Context, e *entry) (err error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("scheduler.job.panic", "job", e.job.ID, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.exec(ctx, e)
}

func (p *pool) submit(e *entry) { p.ch <- e }

func (p *pool) shutdown() {
	close(p.ch)
	p.wg.Wait()
}
