// Package scheduler runs per-document OCR, image and text jobs across one
// bounded worker pool per kind while honoring dependencies between them.
package scheduler

import (
	"context"
	"fmt"
)

// Kind selects the pool a job runs in.
type Kind int

const (
	OCR Kind = iota
	Image
	Text
)

// Kinds lists every kind in display order.
var Kinds = [...]Kind{OCR, Image, Text}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool { return k >= OCR && k <= Text }

func (k Kind) String() string {
	switch k {
	case OCR:
		return "ocr"
	case Image:
		return "image"
	case Text:
		return "text"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status is a job's position in pending -> running -> done|failed.
type Status int

const (
	Pending Status = iota
	Running
	Done
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool { return s == Done || s == Failed }

// Func is the work of a job.
type Func func(ctx context.Context) error

// Job is one unit of work. Deps name jobs that must finish first.
type Job struct {
	ID   string
	Doc  string
	Kind Kind
	Deps []string
	Run  Func
}

// JobID is the conventional id of the kind job of doc.
func JobID(doc string, kind Kind) string { return kind.String() + ":" + doc }

// Event is a status transition, passed to observers.
type Event struct {
	JobID  string
	Doc    string
	Kind   Kind
	Status Status
	Err    error
}

type entry struct {
	job    Job
	status Status
	err    error
	done   chan struct{}
}
