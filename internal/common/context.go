package common

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyRun       contextKey = "run"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// RunContext carries state scoped to one batch run: its id, call counters
// keyed by document and task, and the cost ledger. Nothing here is global;
// every run builds its own.
type RunContext struct {
	ID        string
	StartedAt time.Time

	mu    sync.Mutex
	calls map[callKey]int
	cost  float64
	saved float64
}

type callKey struct {
	doc  string
	task string
}

// NewRunContext returns a RunContext with a fresh run id.
func NewRunContext() *RunContext {
	return &RunContext{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		calls:     make(map[callKey]int),
	}
}

// NextCall returns the zero-based index of this call for (doc, task) and advances it.
func (r *RunContext) NextCall(doc, task string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := callKey{doc: doc, task: task}
	n := r.calls[k]
	r.calls[k] = n + 1
	return n
}

// AddCost records money spent on a round-trip.
func (r *RunContext) AddCost(c float64) {
	r.mu.Lock()
	r.cost += c
	r.mu.Unlock()
}

// AddSaved records money avoided through a cache hit.
func (r *RunContext) AddSaved(c float64) {
	r.mu.Lock()
	r.saved += c
	r.mu.Unlock()
}

// Costs returns (spent, saved).
func (r *RunContext) Costs() (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cost, r.saved
}

// WithRun attaches a RunContext to ctx.
func WithRun(ctx context.Context, run *RunContext) context.Context {
	return context.WithValue(ctx, ContextKeyRun, run)
}

// RunFromContext extracts the RunContext from ctx.
func RunFromContext(ctx context.Context) (*RunContext, bool) {
	run, ok := ctx.Value(ContextKeyRun).(*RunContext)
	return run, ok && run != nil
}
