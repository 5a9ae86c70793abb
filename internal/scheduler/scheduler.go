package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
)

// ErrCycle fails jobs that depend on themselves through other jobs.
var ErrCycle = errors.New("dependency cycle")

// Scheduler owns the job table. Add jobs, then call Run once.
type Scheduler struct {
	logger   *slog.Logger
	workers  map[Kind]int
	timeout  time.Duration
	interval time.Duration
	board    *Board
	observer func(Event)

	mu       sync.Mutex
	jobs     map[string]*entry
	order    []string
	finished map[Kind]bool
	started  bool
}

type Option func(*Scheduler)

// WithWorkers sets the pool size of kind.
func WithWorkers(kind Kind, n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers[kind] = n
		}
	}
}

// WithJobTimeout bounds every job's context.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithStatusInterval sets how often the status poller renders.
func WithStatusInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBoard renders status snapshots on b.
func WithBoard(b *Board) Option {
	return func(s *Scheduler) { s.board = b }
}

// WithObserver receives every status transition. It is called from worker
// goroutines and must be safe for concurrent use.
func WithObserver(fn func(Event)) Option {
	return func(s *Scheduler) { s.observer = fn }
}

func New(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		logger:   logger,
		workers:  map[Kind]int{OCR: runtime.NumCPU(), Image: 2, Text: 2},
		interval: 2 * time.Second,
		jobs:     make(map[string]*entry),
		finished: make(map[Kind]bool),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add registers a job. Ids must be unique and Run must not have started.
func (s *Scheduler) Add(job Job) error {
	if job.ID == "" || job.Run == nil {
		return common.NewAppError("INVALID_JOB", "job needs an id and a func", common.ErrInvalidInput)
	}
	if !job.Kind.Valid() {
		return common.NewAppError("INVALID_JOB", fmt.Sprintf("job %s has unknown %s", job.ID, job.Kind), common.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return common.NewAppError("SCHEDULER_STARTED", fmt.Sprintf("cannot add %s after Run", job.ID), common.ErrInvalidInput)
	}
	if _, ok := s.jobs[job.ID]; ok {
		return common.NewAppError("DUPLICATE_JOB", fmt.Sprintf("job %s already added", job.ID), common.ErrInvalidInput)
	}
	job.Deps = append([]string(nil), job.Deps...)
	s.jobs[job.ID] = &entry{job: job, done: make(chan struct{})}
	s.order = append(s.order, job.ID)
	return nil
}

// Snapshot counts jobs per kind and status.
func (s *Scheduler) Snapshot() Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tallyLocked()
}

func (s *Scheduler) tallyLocked() Tally {
	t := newTally()
	for _, id := range s.order {
		e := s.jobs[id]
		t = t.add(e.job.Kind, e.status, e.job.Doc)
	}
	return t
}

// Run executes every job and blocks until all are done or failed. Job
// failures never abort the run; they are reported in the returned Tally.
func (s *Scheduler) Run(ctx context.Context) Tally {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return s.Snapshot()
	}
	s.started = true
	entries := make([]*entry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.jobs[id])
	}
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info("scheduler.run.start", "jobs", len(entries))
	cyclic := s.validate(entries)
	for _, e := range cyclic {
		s.finish(e, ErrCycle)
	}

	pools := make(map[Kind]*pool, len(Kinds))
	for _, k := range Kinds {
		p := newPool(k, s.workers[k], s.timeout, s.logger, s.exec)
		p.start(ctx, s.finish)
		pools[k] = p
	}

	stop := make(chan struct{})
	var pollWG sync.WaitGroup
	pollWG.Add(1)
	go func() {
		defer pollWG.Done()
		s.poll(stop)
	}()

	skip := make(map[*entry]bool, len(cyclic))
	for _, e := range cyclic {
		skip[e] = true
	}
	var waiters sync.WaitGroup
	for _, e := range entries {
		if skip[e] {
			continue
		}
		waiters.Add(1)
		go func(e *entry) {
			defer waiters.Done()
			if failed := s.awaitDeps(e); failed != "" {
				s.finish(e, fmt.Errorf("%w: %s", common.ErrDependency, failed))
				return
			}
			pools[e.job.Kind].submit(e)
		}(e)
	}
	waiters.Wait()
	for _, p := range pools {
		p.shutdown()
	}
	close(stop)
	pollWG.Wait()

	t := s.Snapshot()
	if s.board != nil {
		s.board.Render(t)
	}
	s.logger.Info("scheduler.run.finished",
		"jobs", t.Total, "done", t.Done, "failed", t.Failed,
		"elapsed_ms", time.Since(start).Milliseconds())
	return t
}

// validate drops unknown dependencies and returns the jobs on a cycle.
func (s *Scheduler) validate(entries []*entry) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		kept := e.job.Deps[:0]
		for _, d := range e.job.Deps {
			if _, ok := s.jobs[d]; !ok {
				s.logger.Warn("scheduler.dep.unknown", "job", e.job.ID, "dep", d)
				continue
			}
			kept = append(kept, d)
		}
		e.job.Deps = kept
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(entries))
	onCycle := make(map[string]bool)
	var stack []string
	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)
		for _, d := range s.jobs[id].job.Deps {
			switch color[d] {
			case white:
				visit(d)
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					onCycle[stack[i]] = true
					if stack[i] == d {
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}
	for _, e := range entries {
		if color[e.job.ID] == white {
			visit(e.job.ID)
		}
	}

	var out []*entry
	ids := make([]string, 0, len(onCycle))
	for _, e := range entries {
		if onCycle[e.job.ID] {
			out = append(out, e)
			ids = append(ids, e.job.ID)
		}
	}
	if len(ids) > 0 {
		sort.Strings(ids)
		s.logger.Error("scheduler.dep.cycle", "jobs", ids)
	}
	return out
}

// awaitDeps blocks until every dependency is terminal and returns the id of
// the first failed one.
func (s *Scheduler) awaitDeps(e *entry) string {
	for _, id := range e.job.Deps {
		dep := s.jobs[id]
		<-dep.done
		s.mu.Lock()
		st := dep.status
		s.mu.Unlock()
		if st == Failed {
			return id
		}
	}
	return ""
}

func (s *Scheduler) exec(ctx context.Context, e *entry) error {
	s.transition(e, Running, nil)
	return e.job.Run(ctx)
}

func (s *Scheduler) finish(e *entry, err error) {
	st := Done
	if err != nil {
		st = Failed
		s.logger.Warn("scheduler.job.failed", "job", e.job.ID, "doc", e.job.Doc, "kind", e.job.Kind.String(), "error", err)
	}
	s.transition(e, st, err)
	close(e.done)
}

func (s *Scheduler) transition(e *entry, st Status, err error) {
	s.mu.Lock()
	e.status = st
	e.err = err
	var drained *Counts
	var failedDocs []string
	if st.Terminal() && !s.finished[e.job.Kind] {
		t := s.tallyLocked()
		if c := t.ByKind[e.job.Kind]; c.Drained() {
			s.finished[e.job.Kind] = true
			drained = &c
			failedDocs = t.FailedDocs[e.job.Kind]
		}
	}
	s.mu.Unlock()

	if s.observer != nil {
		s.observer(Event{JobID: e.job.ID, Doc: e.job.Doc, Kind: e.job.Kind, Status: st, Err: err})
	}
	if drained != nil {
		s.kindFinished(e.job.Kind, *drained, failedDocs)
	}
}

// kindFinished emits the one final line of a kind.
func (s *Scheduler) kindFinished(k Kind, c Counts, failedDocs []string) {
	if c.Failed == 0 {
		s.logger.Info("scheduler.kind.finished", "kind", k.String(), "marker", "ok", "done", c.Done)
	} else {
		s.logger.Warn("scheduler.kind.finished", "kind", k.String(), "marker", "warning",
			"done", c.Done, "failed", c.Failed, "failed_docs", failedDocs)
	}
	if s.board != nil {
		s.board.Final(k, c, failedDocs)
	}
}

func (s *Scheduler) poll(stop <-chan struct{}) {
	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			t := s.Snapshot()
			if s.board != nil {
				s.board.Render(t)
				continue
			}
			for _, k := range Kinds {
				c := t.ByKind[k]
				if c.Total() == 0 {
					continue
				}
				s.logger.Info("scheduler.status", "kind", k.String(),
					"pending", c.Pending, "running", c.Running, "done", c.Done, "failed", c.Failed)
			}
		}
	}
}

// Err returns the error a job failed with, if any.
func (s *Scheduler) Err(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.jobs[id]; ok {
		return e.err
	}
	return nil
}

// Status returns a job's status.
func (s *Scheduler) Status(id string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return Pending, false
	}
	return e.status, true
}
